// Package playback содержит контроллер воспроизведения: очередь, текущий трек и
// синхронизацию с медиадвижком и историей прослушиваний
package playback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/hazadus/go-tunes/internal/data"
	"github.com/hazadus/go-tunes/internal/logging"
)

const defaultHistoryTimeout = 5 * time.Second

var timeNow = time.Now

// Option настраивает контроллер
type Option func(*Controller)

// WithLogger задает логгер контроллера
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		c.logger = logging.Component(l, "playback")
	}
}

// WithHistoryTimeout задает таймаут записи в историю прослушиваний
func WithHistoryTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.historyTimeout = d
		}
	}
}

// WithVolume задает начальную громкость
func WithVolume(v float64) Option {
	return func(c *Controller) {
		if v >= 0 && v <= 1 {
			c.volume = v
		}
	}
}

// Controller управляет очередью и текущим треком. Создается один раз на сессию
// и передается интерфейсу явно.
type Controller struct {
	catalog Catalog
	engine  Engine
	history HistorySink
	logger  *log.Logger

	historyTimeout time.Duration
	historyWG      sync.WaitGroup

	mu sync.Mutex
	// gen номер последнего выданного запуска; результаты более старых отбрасываются
	gen uint64
	// active номер сессии, запущенной в движке (0, если нет)
	active uint64
	state  State

	// queue и index относятся к запущенному треку и меняются только после Start
	queue []string
	index int

	// pendingQueue очередь запуска pendingGen, который еще загружается (0, если нет)
	pendingGen   uint64
	pendingQueue []string
	pendingIndex int

	current     string
	pendingSeek bool
	elapsed     time.Duration
	duration    time.Duration
	volume      float64
	lastErr     error
	subscribers map[chan Snapshot]struct{}
	closed      bool
}

// New создает контроллер в состоянии Idle
func New(catalog Catalog, engine Engine, history HistorySink, opts ...Option) *Controller {
	c := &Controller{
		catalog:        catalog,
		engine:         engine,
		history:        history,
		logger:         logging.Component(nil, "playback"),
		historyTimeout: defaultHistoryTimeout,
		state:          StateIdle,
		volume:         1,
		subscribers:    make(map[chan Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.engine.SetVolume(c.volume)
	return c
}

// playRequest описывает один запуск
type playRequest struct {
	id       string
	queue    []string
	hasQueue bool
	index    int // -1: вычислить по позиции id в очереди
}

// Play запускает трек, сохраняя текущую очередь.
// Возвращает nil, ErrTrackNotFound, ErrMediaPlayback или ErrSuperseded.
func (c *Controller) Play(ctx context.Context, id string) error {
	return c.start(ctx, playRequest{id: id, index: -1})
}

// PlayQueue заменяет очередь и запускает трек. Если трека нет в очереди,
// позиция становится 0.
func (c *Controller) PlayQueue(ctx context.Context, id string, queue []string) error {
	return c.start(ctx, playRequest{
		id:       id,
		queue:    append([]string(nil), queue...),
		hasQueue: true,
		index:    -1,
	})
}

// PlayIndex запускает трек по позиции в текущей очереди
func (c *Controller) PlayIndex(ctx context.Context, index int) error {
	c.mu.Lock()
	queue, _ := c.viewLocked()
	if index < 0 || index >= len(queue) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	id := queue[index]
	c.mu.Unlock()

	return c.start(ctx, playRequest{id: id, queue: queue, hasQueue: true, index: index})
}

// Next переходит к следующему треку по кругу. На пустой очереди ничего не делает.
func (c *Controller) Next(ctx context.Context) error {
	return c.step(ctx, 1)
}

// Previous переходит к предыдущему треку по кругу. На пустой очереди ничего не делает.
func (c *Controller) Previous(ctx context.Context) error {
	return c.step(ctx, -1)
}

func (c *Controller) step(ctx context.Context, delta int) error {
	c.mu.Lock()
	queue, current := c.viewLocked()
	n := len(queue)
	if n == 0 {
		c.mu.Unlock()
		return nil
	}
	index := ((current+delta)%n + n) % n
	id := queue[index]
	c.mu.Unlock()

	return c.start(ctx, playRequest{id: id, queue: queue, hasQueue: true, index: index})
}

// viewLocked возвращает очередь и позицию, которые видит пользователь:
// загружаемые, если запуск еще идет, иначе подтвержденные
func (c *Controller) viewLocked() ([]string, int) {
	if c.pendingGen != 0 && c.pendingGen == c.gen {
		return c.pendingQueue, c.pendingIndex
	}
	return c.queue, c.index
}

func (c *Controller) start(ctx context.Context, req playRequest) error {
	track, err := c.catalog.ResolveTrack(ctx, req.id)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTrackNotFound, req.id, err)
	}
	if track == nil {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, req.id)
	}

	playedAt := timeNow()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("%w: контроллер закрыт", ErrMediaPlayback)
	}

	if track.AudioURL == "" {
		c.lastErr = ErrNoMediaLocator
		if c.active == 0 && c.state != StateLoading {
			c.state = StateError
		}
		c.notifyLocked()
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoMediaLocator, req.id)
	}

	queue, _ := c.viewLocked()
	if req.hasQueue {
		queue = req.queue
	}
	index := req.index
	if index < 0 {
		index = max(lo.IndexOf(queue, req.id), 0)
	}

	c.gen++
	gen := c.gen
	c.pendingGen = gen
	c.pendingQueue = queue
	c.pendingIndex = index

	c.state = StateLoading
	c.pendingSeek = false
	c.notifyLocked()
	c.mu.Unlock()

	media, err := c.engine.Load(ctx, track.AudioURL)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		if media != nil {
			_ = media.Close()
		}
		c.logger.Debug("устаревшая загрузка отброшена", "track", req.id, "gen", gen, "latest", c.gen)
		return fmt.Errorf("%w: %s", ErrSuperseded, req.id)
	}

	c.pendingGen = 0
	c.pendingQueue = nil

	if err != nil {
		c.failLocked(err)
		return fmt.Errorf("%w: %s: %w", ErrMediaPlayback, req.id, err)
	}

	if err := c.engine.Start(media, gen); err != nil {
		_ = media.Close()
		c.failLocked(err)
		return fmt.Errorf("%w: %s: %w", ErrMediaPlayback, req.id, err)
	}

	c.active = gen
	c.queue = queue
	c.index = index
	c.state = StatePlaying
	c.current = req.id
	c.elapsed = 0
	c.duration = time.Duration(track.Duration) * time.Second
	if d := c.engine.Duration(); d > 0 {
		c.duration = d
	}
	c.lastErr = nil
	c.notifyLocked()

	c.recordPlay(req.id, playedAt)
	return nil
}

// failLocked фиксирует ошибку запуска. Очередь, позиция и текущий трек
// остаются от последнего успешного запуска.
func (c *Controller) failLocked(err error) {
	c.lastErr = err

	switch {
	case c.active != 0 && c.engine.IsPaused():
		c.state = StatePaused
	case c.active != 0:
		c.state = StatePlaying
	default:
		c.state = StateError
	}
	c.logger.Warn("не удалось запустить трек", "err", err)
	c.notifyLocked()
}

// recordPlay записывает прослушивание в фоне. Ошибка только логируется.
func (c *Controller) recordPlay(id string, at time.Time) {
	if c.history == nil {
		return
	}

	c.historyWG.Add(1)
	go func() {
		defer c.historyWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.historyTimeout)
		defer cancel()

		if err := c.history.RecordPlay(ctx, id, at); err != nil {
			c.logger.Warn("история прослушиваний не обновлена",
				"track", id, "err", fmt.Errorf("%w: %w", ErrHistoryRecord, err))
		}
	}()
}

// TogglePlay переключает паузу по фактическому состоянию движка
func (c *Controller) TogglePlay() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == 0 || c.state == StateLoading {
		return nil
	}

	if c.engine.IsPaused() {
		if err := c.engine.Resume(); err != nil {
			c.lastErr = err
			c.state = StatePaused
			c.notifyLocked()
			return fmt.Errorf("%w: %w", ErrMediaPlayback, err)
		}
		c.state = StatePlaying
	} else {
		c.engine.Pause()
		c.state = StatePaused
	}
	c.notifyLocked()
	return nil
}

// Seek перематывает на долю длительности. Без известной длительности ничего не делает.
func (c *Controller) Seek(fraction float64) error {
	if math.IsNaN(fraction) || fraction < 0 || fraction > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSeek, fraction)
	}

	c.mu.Lock()
	if c.active == 0 || c.state == StateLoading {
		c.mu.Unlock()
		return nil
	}

	total := c.engine.Duration()
	if total <= 0 {
		total = c.duration
	}
	target := fraction * float64(total)
	if total <= 0 || math.IsInf(target, 0) || math.IsNaN(target) {
		c.mu.Unlock()
		return nil
	}

	session := c.active
	gen := c.gen
	prevState := c.state
	c.state = StateLoading
	c.pendingSeek = true
	c.notifyLocked()
	c.mu.Unlock()

	err := c.engine.SetCurrentTime(time.Duration(target))

	c.mu.Lock()
	defer c.mu.Unlock()

	if session != c.active || gen != c.gen {
		// Пока шла перемотка, был запущен другой трек
		return nil
	}

	c.pendingSeek = false
	c.state = prevState
	if err != nil {
		c.lastErr = err
		c.notifyLocked()
		return fmt.Errorf("%w: %w", ErrMediaPlayback, err)
	}
	c.elapsed = time.Duration(target)
	c.notifyLocked()
	return nil
}

// SetVolume задает громкость в диапазоне [0, 1]
func (c *Controller) SetVolume(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidVolume, v)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.volume = v
	c.engine.SetVolume(v)
	c.notifyLocked()
	return nil
}

// Stop останавливает воспроизведение и отменяет незавершенные загрузки
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	c.gen++
	c.pendingGen = 0
	c.pendingQueue = nil
	c.engine.Stop()
	c.active = 0
	c.state = StateIdle
	c.current = ""
	c.elapsed = 0
	c.duration = 0
	c.pendingSeek = false
	c.notifyLocked()
}

// Snapshot возвращает снимок состояния
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	queue, index := c.viewLocked()
	return Snapshot{
		State:       c.state,
		CurrentID:   c.current,
		Queue:       append([]string(nil), queue...),
		Position:    index,
		Playing:     c.state == StatePlaying,
		PendingSeek: c.pendingSeek,
		Elapsed:     c.elapsed,
		Duration:    c.duration,
		Volume:      c.volume,
		Err:         c.lastErr,
	}
}

// Subscribe возвращает канал с последним снимком после каждого изменения.
// Медленный подписчик получает только самый свежий снимок.
func (c *Controller) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		close(ch)
		return ch
	}
	c.subscribers[ch] = struct{}{}
	ch <- c.snapshotLocked()
	return ch
}

// Unsubscribe отписывает канал, полученный из Subscribe
func (c *Controller) Unsubscribe(sub <-chan Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for ch := range c.subscribers {
		if ch == sub {
			delete(c.subscribers, ch)
			close(ch)
			return
		}
	}
}

// notifyLocked рассылает снимок подписчикам (вызывается под мьютексом)
func (c *Controller) notifyLocked() {
	if len(c.subscribers) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for ch := range c.subscribers {
		select {
		case ch <- snap:
		default:
			// Вытесняем устаревший снимок
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Run обрабатывает уведомления движка до отмены контекста
func (c *Controller) Run(ctx context.Context) error {
	events := c.engine.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.handleEvent(ctx, ev)
		}
	}
}

func (c *Controller) handleEvent(ctx context.Context, ev Event) {
	c.mu.Lock()

	if ev.Session != c.active {
		c.mu.Unlock()
		c.logger.Debug("событие устаревшей сессии отброшено", "session", ev.Session)
		return
	}

	switch ev.Kind {
	case EventTimeUpdate:
		if !c.pendingSeek && c.state != StateLoading {
			c.elapsed = ev.Current
			if ev.Total > 0 {
				c.duration = ev.Total
			}
			c.notifyLocked()
		}
		c.mu.Unlock()

	case EventEnded:
		if len(c.queue) == 0 {
			c.engine.Stop()
			c.active = 0
			c.state = StateIdle
			c.elapsed = c.duration
			c.notifyLocked()
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		if err := c.Next(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
			c.logger.Warn("не удалось перейти к следующему треку", "err", err)
		}

	default:
		c.mu.Unlock()
	}
}

// Close останавливает движок, дожидается фоновых записей истории и закрывает подписки
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	// После этого start не дойдет до recordPlay: новые запуски отклоняются,
	// а загрузки в процессе устаревают вместе с gen
	c.closed = true
	c.stopLocked()
	c.mu.Unlock()

	c.historyWG.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	for ch := range c.subscribers {
		close(ch)
		delete(c.subscribers, ch)
	}
	return nil
}

// CurrentTrack разрешает текущий трек через каталог
func (c *Controller) CurrentTrack(ctx context.Context) (*data.Track, error) {
	id := c.Snapshot().CurrentID
	if id == "" {
		return nil, nil
	}
	return c.catalog.ResolveTrack(ctx, id)
}
