package playback

import (
	"context"
	"io"
	"time"

	"github.com/hazadus/go-tunes/internal/data"
)

// Catalog разрешает идентификатор трека в запись каталога
type Catalog interface {
	ResolveTrack(ctx context.Context, id string) (*data.Track, error)
}

// HistorySink записывает факт прослушивания. Вызывается без ожидания результата;
// at время запуска трека, а не момент записи.
type HistorySink interface {
	RecordPlay(ctx context.Context, trackID string, at time.Time) error
}

// EventKind тип уведомления движка
type EventKind int

const (
	// EventTimeUpdate периодическое обновление позиции
	EventTimeUpdate EventKind = iota
	// EventEnded трек доигран до конца
	EventEnded
)

// Event уведомление движка. Session совпадает с номером, переданным в Start.
type Event struct {
	Kind    EventKind
	Session uint64
	Current time.Duration
	Total   time.Duration
}

// Media загруженный, но еще не звучащий источник
type Media interface {
	io.Closer
}

// Engine медиадвижок. Одновременно активна только одна сессия: Start заменяет
// предыдущую и при ошибке оставляет ее нетронутой.
type Engine interface {
	Load(ctx context.Context, locator string) (Media, error)
	Start(media Media, session uint64) error
	Resume() error
	Pause()
	IsPaused() bool
	CurrentTime() time.Duration
	Duration() time.Duration
	SetCurrentTime(d time.Duration) error
	SetVolume(v float64)
	Stop()
	Events() <-chan Event
}
