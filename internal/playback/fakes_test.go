package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hazadus/go-tunes/internal/data"
)

// MockCatalog каталог в памяти
type MockCatalog struct {
	tracks map[string]*data.Track
}

func newMockCatalog(tracks ...data.Track) *MockCatalog {
	c := &MockCatalog{tracks: make(map[string]*data.Track)}
	for i := range tracks {
		c.tracks[tracks[i].ID] = &tracks[i]
	}
	return c
}

func (c *MockCatalog) ResolveTrack(_ context.Context, id string) (*data.Track, error) {
	track, ok := c.tracks[id]
	if !ok {
		return nil, data.ErrTrackNotFound
	}
	return track, nil
}

// mockMedia загруженный источник
type mockMedia struct {
	locator string
	mu      sync.Mutex
	closed  bool
}

func (m *mockMedia) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockMedia) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockEngine медиадвижок для тестов
type MockEngine struct {
	mu sync.Mutex

	// loadFunc переопределяет загрузку; по умолчанию успешная
	loadFunc  func(ctx context.Context, locator string) (Media, error)
	startErr  error
	resumeErr error
	seekErr   error
	duration  time.Duration

	started  []string
	sessions []uint64
	paused   bool
	position time.Duration
	volume   float64
	stopped  int
	loaded   []*mockMedia

	events chan Event
}

func newMockEngine() *MockEngine {
	return &MockEngine{
		events: make(chan Event, 16),
		volume: -1,
	}
}

func (e *MockEngine) Load(ctx context.Context, locator string) (Media, error) {
	e.mu.Lock()
	loadFunc := e.loadFunc
	e.mu.Unlock()

	if loadFunc != nil {
		return loadFunc(ctx, locator)
	}

	m := &mockMedia{locator: locator}
	e.mu.Lock()
	e.loaded = append(e.loaded, m)
	e.mu.Unlock()
	return m, nil
}

func (e *MockEngine) Start(media Media, session uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.startErr != nil {
		return e.startErr
	}
	m, ok := media.(*mockMedia)
	if !ok {
		return errors.New("неизвестный источник")
	}
	e.started = append(e.started, m.locator)
	e.sessions = append(e.sessions, session)
	e.paused = false
	e.position = 0
	return nil
}

func (e *MockEngine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resumeErr != nil {
		return e.resumeErr
	}
	e.paused = false
	return nil
}

func (e *MockEngine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
}

func (e *MockEngine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *MockEngine) CurrentTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

func (e *MockEngine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

func (e *MockEngine) SetCurrentTime(d time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seekErr != nil {
		return e.seekErr
	}
	e.position = d
	return nil
}

func (e *MockEngine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = v
}

func (e *MockEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped++
}

func (e *MockEngine) Events() <-chan Event {
	return e.events
}

func (e *MockEngine) startedLocators() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.started...)
}

func (e *MockEngine) lastSession() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.sessions) == 0 {
		return 0
	}
	return e.sessions[len(e.sessions)-1]
}

// MockHistory история прослушиваний
type MockHistory struct {
	mu       sync.Mutex
	recorded []string
	times    []time.Time
	err      error
	calls    chan string
	// block задерживает запись, пока канал не закрыт
	block chan struct{}
}

func newMockHistory() *MockHistory {
	return &MockHistory{calls: make(chan string, 32)}
}

func (h *MockHistory) RecordPlay(_ context.Context, trackID string, at time.Time) error {
	if h.block != nil {
		<-h.block
	}
	h.mu.Lock()
	h.recorded = append(h.recorded, trackID)
	h.times = append(h.times, at)
	err := h.err
	h.mu.Unlock()

	h.calls <- trackID
	return err
}

func (h *MockHistory) playTimes() []time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Time(nil), h.times...)
}

func (h *MockHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.recorded)
}

// testTracks создает треки с URL вида mem://<id>
func testTracks(ids ...string) []data.Track {
	tracks := make([]data.Track, len(ids))
	for i, id := range ids {
		tracks[i] = data.Track{
			ID:       id,
			Title:    "Title " + id,
			Artist:   "Artist",
			Duration: 180,
			AudioURL: fmt.Sprintf("mem://%s", id),
		}
	}
	return tracks
}
