// Package player содержит медиадвижок на основе beep
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"

	"github.com/hazadus/go-tunes/internal/logging"
	"github.com/hazadus/go-tunes/internal/playback"
	"github.com/hazadus/go-tunes/internal/streaming"
)

// Частота динамиков; треки с другой частотой ресемплируются
const speakerSampleRate = beep.SampleRate(44100)

var (
	// ErrNoSession в движке нет активного трека
	ErrNoSession = errors.New("нет активного трека")
	// ErrNotSeekable источник не поддерживает перемотку
	ErrNotSeekable = errors.New("источник не поддерживает перемотку")
)

// Status представляет текущий статус плеера
type Status struct {
	Current    time.Duration // Текущая позиция
	Total      time.Duration // Общая продолжительность
	IsPlaying  bool          // Воспроизводится ли трек
	StuckCount int           // Счетчик зависших состояний
}

// media декодированный трек, еще не переданный динамикам
type media struct {
	streamer beep.StreamSeekCloser
	format   beep.Format
	seekable bool

	once sync.Once
	err  error
}

func (m *media) Close() error {
	m.once.Do(func() {
		m.err = m.streamer.Close()
	})
	return m.err
}

// Player реализует playback.Engine поверх динамиков beep
type Player struct {
	events chan playback.Event
	logger *log.Logger

	ctx        context.Context
	cancel     context.CancelFunc
	bufferSize int

	mutex         sync.Mutex
	isInitialized bool
	session       uint64
	current       *media
	ctrl          *beep.Ctrl
	volume        *effects.Volume
	level         float64
	stuckCount    int
	stopMonitor   context.CancelFunc
}

// Option настраивает плеер
type Option func(*Player)

// WithLogger задает логгер плеера
func WithLogger(l *log.Logger) Option {
	return func(p *Player) {
		p.logger = logging.Component(l, "player")
	}
}

// WithBufferSize задает размер буфера потокового чтения
func WithBufferSize(size int) Option {
	return func(p *Player) {
		if size > 0 {
			p.bufferSize = size
		}
	}
}

// NewPlayer создает новый экземпляр плеера
func NewPlayer(opts ...Option) *Player {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		events:     make(chan playback.Event, 16),
		logger:     logging.Component(nil, "player"),
		ctx:        ctx,
		cancel:     cancel,
		bufferSize: streaming.DefaultBufferSize,
		level:      1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Events возвращает канал уведомлений движка
func (p *Player) Events() <-chan playback.Event {
	return p.events
}

// Load открывает и декодирует источник, не трогая динамики.
// Поток живет до закрытия источника, а не до отмены ctx.
func (p *Player) Load(ctx context.Context, locator string) (playback.Media, error) {
	rc, err := streaming.Open(p.ctx, locator, p.bufferSize)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия источника: %w", err)
	}
	if err := ctx.Err(); err != nil {
		rc.Close()
		return nil, err
	}

	_, seekable := rc.(io.Seeker)

	streamer, format, err := mp3.Decode(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("ошибка декодирования MP3: %w", err)
	}

	p.logger.Debug("источник загружен", "locator", locator, "sample_rate", format.SampleRate, "seekable", seekable)
	return &media{streamer: streamer, format: format, seekable: seekable}, nil
}

// Start делает загруженный источник единственным звучащим
func (p *Player) Start(m playback.Media, session uint64) error {
	next, ok := m.(*media)
	if !ok {
		return fmt.Errorf("неизвестный тип источника: %T", m)
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	// Инициализируем speaker (только один раз)
	if !p.isInitialized {
		if err := speaker.Init(speakerSampleRate, speakerSampleRate.N(time.Second/10)); err != nil {
			return fmt.Errorf("ошибка инициализации динамиков: %w", err)
		}
		p.isInitialized = true
	}

	p.stopInternal()

	var stream beep.Streamer = next.streamer
	if next.format.SampleRate != speakerSampleRate {
		stream = beep.Resample(4, next.format.SampleRate, speakerSampleRate, next.streamer)
	}

	p.ctrl = &beep.Ctrl{Streamer: stream}
	p.volume = &effects.Volume{Streamer: p.ctrl, Base: 2}
	applyVolume(p.volume, p.level)

	p.current = next
	p.session = session
	p.stuckCount = 0

	speaker.Play(beep.Seq(p.volume, beep.Callback(func() {
		// Вызывается под блокировкой динамиков, отправка не должна блокировать
		go p.emit(playback.Event{Kind: playback.EventEnded, Session: session})
	})))

	monitorCtx, stop := context.WithCancel(p.ctx)
	p.stopMonitor = stop
	go p.monitorProgress(monitorCtx, next, session)

	return nil
}

// Resume возобновляет воспроизведение
func (p *Player) Resume() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.ctrl == nil {
		return ErrNoSession
	}
	speaker.Lock()
	p.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

// Pause приостанавливает воспроизведение
func (p *Player) Pause() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.ctrl != nil {
		speaker.Lock()
		p.ctrl.Paused = true
		speaker.Unlock()
	}
}

// IsPaused возвращает true, если активный трек на паузе
func (p *Player) IsPaused() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.ctrl == nil {
		return false
	}
	speaker.Lock()
	defer speaker.Unlock()
	return p.ctrl.Paused
}

// CurrentTime возвращает позицию активного трека
func (p *Player) CurrentTime() time.Duration {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.current == nil {
		return 0
	}
	speaker.Lock()
	defer speaker.Unlock()
	return p.current.format.SampleRate.D(p.current.streamer.Position())
}

// Duration возвращает длительность активного трека или 0, если она неизвестна
func (p *Player) Duration() time.Duration {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.current == nil {
		return 0
	}
	speaker.Lock()
	defer speaker.Unlock()
	return lengthOf(p.current)
}

// SetCurrentTime перематывает активный трек
func (p *Player) SetCurrentTime(d time.Duration) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.current == nil {
		return ErrNoSession
	}
	if !p.current.seekable {
		return ErrNotSeekable
	}

	speaker.Lock()
	defer speaker.Unlock()

	pos := p.current.format.SampleRate.N(d)
	if n := p.current.streamer.Len(); n > 0 && pos >= n {
		pos = n - 1
	}
	if err := p.current.streamer.Seek(pos); err != nil {
		return fmt.Errorf("ошибка перемотки: %w", err)
	}
	return nil
}

// SetVolume задает громкость в диапазоне [0, 1]
func (p *Player) SetVolume(v float64) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.level = v
	if p.volume != nil {
		speaker.Lock()
		applyVolume(p.volume, v)
		speaker.Unlock()
	}
}

// Stop останавливает воспроизведение
func (p *Player) Stop() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.stopInternal()
}

// stopInternal внутренний метод остановки (должен вызываться под мьютексом)
func (p *Player) stopInternal() {
	if p.stopMonitor != nil {
		p.stopMonitor()
		p.stopMonitor = nil
	}
	if p.ctrl != nil {
		speaker.Clear()
		p.ctrl = nil
		p.volume = nil
	}
	if p.current != nil {
		p.current.Close()
		p.current = nil
	}
	p.session = 0
}

// Close закрывает плеер и освобождает ресурсы
func (p *Player) Close() error {
	p.cancel()
	p.Stop()
	return nil
}

// Status возвращает состояние активного трека для вывода в консоль
func (p *Player) Status() Status {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.current == nil || p.ctrl == nil {
		return Status{}
	}
	speaker.Lock()
	defer speaker.Unlock()
	return Status{
		Current:    p.current.format.SampleRate.D(p.current.streamer.Position()),
		Total:      lengthOf(p.current),
		IsPlaying:  !p.ctrl.Paused,
		StuckCount: p.stuckCount,
	}
}

// monitorProgress раз в секунду отправляет позицию активного трека
func (p *Player) monitorProgress(ctx context.Context, m *media, session uint64) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	lastPosition := -1

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mutex.Lock()
			if p.current != m || p.ctrl == nil {
				p.mutex.Unlock()
				return
			}

			speaker.Lock()
			position := m.streamer.Position()
			paused := p.ctrl.Paused
			total := lengthOf(m)
			speaker.Unlock()

			// Проверяем, не застрял ли поток
			if !paused && position == lastPosition {
				p.stuckCount++
			} else {
				p.stuckCount = 0
			}
			lastPosition = position
			p.mutex.Unlock()

			p.emitNow(playback.Event{
				Kind:    playback.EventTimeUpdate,
				Session: session,
				Current: m.format.SampleRate.D(position),
				Total:   total,
			})
		}
	}
}

// emit доставляет событие, которое нельзя потерять
func (p *Player) emit(ev playback.Event) {
	select {
	case p.events <- ev:
	case <-p.ctx.Done():
	}
}

// emitNow отправляет событие без ожидания; при переполнении оно пропускается
func (p *Player) emitNow(ev playback.Event) {
	select {
	case p.events <- ev:
	default:
	}
}

// lengthOf длительность источника (вызывается под блокировкой динамиков)
func lengthOf(m *media) time.Duration {
	n := m.streamer.Len()
	if n <= 0 {
		return 0
	}
	return m.format.SampleRate.D(n)
}

// applyVolume переводит линейную громкость в логарифмическую шкалу beep
func applyVolume(v *effects.Volume, level float64) {
	if level <= 0 {
		v.Silent = true
		v.Volume = 0
		return
	}
	v.Silent = false
	v.Volume = math.Log2(math.Min(level, 1))
}

var _ playback.Engine = (*Player)(nil)
