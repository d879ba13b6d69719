package playback

import (
	"errors"
	"fmt"
	"time"
)

// Ошибки контроллера воспроизведения
var (
	// ErrTrackNotFound запрошенный трек отсутствует в каталоге
	ErrTrackNotFound = errors.New("трек не найден")
	// ErrMediaPlayback движок отказался воспроизводить трек
	ErrMediaPlayback = errors.New("ошибка воспроизведения")
	// ErrNoMediaLocator у трека нет адреса аудиофайла
	ErrNoMediaLocator = fmt.Errorf("%w: у трека отсутствует URL аудио", ErrMediaPlayback)
	// ErrHistoryRecord не удалось записать прослушивание в историю (только логируется)
	ErrHistoryRecord = errors.New("ошибка записи истории прослушиваний")
	// ErrSuperseded запуск вытеснен более новым запросом Play
	ErrSuperseded = errors.New("запуск вытеснен более новым запросом")
	// ErrInvalidSeek позиция перемотки вне диапазона [0, 1]
	ErrInvalidSeek = errors.New("позиция перемотки должна быть в диапазоне [0, 1]")
	// ErrInvalidVolume громкость вне диапазона [0, 1]
	ErrInvalidVolume = errors.New("громкость должна быть в диапазоне [0, 1]")
	// ErrIndexOutOfRange индекс вне очереди
	ErrIndexOutOfRange = errors.New("индекс вне очереди")
)

// State состояние контроллера
type State int

const (
	// StateIdle трек не загружен
	StateIdle State = iota
	// StateLoading медиа запрошено, но еще не воспроизводится
	StateLoading
	// StatePlaying трек воспроизводится
	StatePlaying
	// StatePaused трек на паузе
	StatePaused
	// StateError последний запуск завершился ошибкой, активного трека нет
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Snapshot неизменяемый снимок состояния для отрисовки интерфейса
type Snapshot struct {
	State       State
	CurrentID   string   // Текущий трек или пустая строка
	Queue       []string // Копия очереди
	Position    int      // Индекс в очереди
	Playing     bool
	PendingSeek bool
	Elapsed     time.Duration
	Duration    time.Duration
	Volume      float64
	Err         error // Последняя ошибка воспроизведения, если была
}

// Fraction возвращает долю прослушанного в диапазоне [0, 1]
func (s Snapshot) Fraction() float64 {
	if s.Duration <= 0 {
		return 0
	}
	f := float64(s.Elapsed) / float64(s.Duration)
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}
