package playback

import (
	"context"
	"errors"
	"math"
	"slices"
	"sync"
	"testing"
	"time"
)

// waitFor ждет выполнения условия не дольше секунды
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Не дождались: %s", what)
}

func newTestController(t *testing.T, ids ...string) (*Controller, *MockEngine, *MockHistory) {
	t.Helper()
	engine := newMockEngine()
	history := newMockHistory()
	ctrl := New(newMockCatalog(testTracks(ids...)...), engine, history)
	t.Cleanup(func() { _ = ctrl.Close() })
	return ctrl, engine, history
}

func TestNewControllerIsIdle(t *testing.T) {
	ctrl, engine, _ := newTestController(t)

	snap := ctrl.Snapshot()
	if snap.State != StateIdle {
		t.Errorf("Ожидалось состояние idle, получено %s", snap.State)
	}
	if snap.CurrentID != "" || snap.Playing || len(snap.Queue) != 0 {
		t.Errorf("Начальный снимок должен быть пустым: %+v", snap)
	}
	if snap.Volume != 1 || engine.volume != 1 {
		t.Errorf("Ожидалась громкость 1, получено %v (движок %v)", snap.Volume, engine.volume)
	}
}

func TestPlayQueueSetsPosition(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		id       string
		queue    []string
		expected int
	}{
		{"first", "A", []string{"A", "B", "C"}, 0},
		{"middle", "B", []string{"A", "B", "C"}, 1},
		{"last", "C", []string{"A", "B", "C"}, 2},
		{"absent from queue", "D", []string{"A", "B", "C"}, 0},
		{"empty queue", "A", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl, _, _ := newTestController(t, "A", "B", "C", "D")

			if err := ctrl.PlayQueue(ctx, tt.id, tt.queue); err != nil {
				t.Fatalf("Ошибка запуска: %v", err)
			}

			snap := ctrl.Snapshot()
			if snap.Position != tt.expected {
				t.Errorf("Ожидалась позиция %d, получено %d", tt.expected, snap.Position)
			}
			if snap.CurrentID != tt.id || snap.State != StatePlaying || !snap.Playing {
				t.Errorf("Неверное состояние после запуска: %+v", snap)
			}
			if !slices.Equal(snap.Queue, tt.queue) {
				t.Errorf("Очередь не заменена: %v", snap.Queue)
			}
		})
	}
}

func TestPlayKeepsQueueWithoutContext(t *testing.T) {
	ctx := context.Background()
	ctrl, _, _ := newTestController(t, "A", "B", "C")

	if err := ctrl.PlayQueue(ctx, "A", []string{"A", "B", "C"}); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}
	if err := ctrl.Play(ctx, "C"); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}

	snap := ctrl.Snapshot()
	if snap.Position != 2 || len(snap.Queue) != 3 {
		t.Errorf("Ожидалась позиция 2 в прежней очереди, получено %d в %v", snap.Position, snap.Queue)
	}
}

func TestPlayMissingTrack(t *testing.T) {
	ctrl, engine, history := newTestController(t)

	err := ctrl.Play(context.Background(), "missing-id")
	if !errors.Is(err, ErrTrackNotFound) {
		t.Fatalf("Ожидалась ErrTrackNotFound, получено %v", err)
	}

	snap := ctrl.Snapshot()
	if snap.State != StateIdle || snap.CurrentID != "" || snap.Err != nil {
		t.Errorf("Состояние не должно меняться: %+v", snap)
	}
	if len(engine.startedLocators()) != 0 {
		t.Error("Движок не должен запускаться")
	}
	if history.count() != 0 {
		t.Error("История не должна записываться")
	}
}

func TestNextIsCyclic(t *testing.T) {
	ctx := context.Background()
	ids := []string{"A", "B", "C", "D", "E"}

	for n := 1; n <= len(ids); n++ {
		queue := ids[:n]
		for start := 0; start < n; start++ {
			ctrl, _, _ := newTestController(t, ids...)
			if err := ctrl.PlayQueue(ctx, queue[start], queue); err != nil {
				t.Fatalf("Ошибка запуска: %v", err)
			}

			for i := 0; i < n; i++ {
				if err := ctrl.Next(ctx); err != nil {
					t.Fatalf("Ошибка Next: %v", err)
				}
			}

			if pos := ctrl.Snapshot().Position; pos != start {
				t.Errorf("Очередь из %d, старт %d: после %d вызовов Next позиция %d", n, start, n, pos)
			}
		}
	}
}

func TestNextScenario(t *testing.T) {
	ctx := context.Background()
	ctrl, _, _ := newTestController(t, "A", "B", "C")

	if err := ctrl.PlayQueue(ctx, "A", []string{"A", "B", "C"}); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}

	expected := []struct {
		position int
		id       string
	}{
		{1, "B"},
		{2, "C"},
		{0, "A"},
	}

	for _, step := range expected {
		if err := ctrl.Next(ctx); err != nil {
			t.Fatalf("Ошибка Next: %v", err)
		}
		snap := ctrl.Snapshot()
		if snap.Position != step.position || snap.CurrentID != step.id {
			t.Errorf("Ожидалось %d (%s), получено %d (%s)", step.position, step.id, snap.Position, snap.CurrentID)
		}
	}
}

func TestPreviousThenNextRestoresPosition(t *testing.T) {
	ctx := context.Background()
	queue := []string{"A", "B", "C", "D"}

	for start := range queue {
		ctrl, _, _ := newTestController(t, queue...)
		if err := ctrl.PlayQueue(ctx, queue[start], queue); err != nil {
			t.Fatalf("Ошибка запуска: %v", err)
		}

		if err := ctrl.Previous(ctx); err != nil {
			t.Fatalf("Ошибка Previous: %v", err)
		}
		wantPrev := (start - 1 + len(queue)) % len(queue)
		if pos := ctrl.Snapshot().Position; pos != wantPrev {
			t.Errorf("Previous от %d: ожидалась позиция %d, получено %d", start, wantPrev, pos)
		}

		if err := ctrl.Next(ctx); err != nil {
			t.Fatalf("Ошибка Next: %v", err)
		}
		if pos := ctrl.Snapshot().Position; pos != start {
			t.Errorf("Previous+Next от %d: получено %d", start, pos)
		}
	}
}

func TestNextPreviousOnEmptyQueue(t *testing.T) {
	ctx := context.Background()
	ctrl, engine, _ := newTestController(t, "A")

	before := ctrl.Snapshot()

	if err := ctrl.Next(ctx); err != nil {
		t.Errorf("Next на пустой очереди вернул ошибку: %v", err)
	}
	if err := ctrl.Previous(ctx); err != nil {
		t.Errorf("Previous на пустой очереди вернул ошибку: %v", err)
	}

	after := ctrl.Snapshot()
	if after.State != before.State || after.Position != before.Position || after.CurrentID != before.CurrentID {
		t.Errorf("Состояние изменилось: %+v -> %+v", before, after)
	}
	if len(engine.startedLocators()) != 0 {
		t.Error("Движок не должен запускаться")
	}

	// Трек без очереди: Next по-прежнему ничего не делает
	if err := ctrl.Play(ctx, "A"); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}
	if err := ctrl.Next(ctx); err != nil {
		t.Errorf("Next вернул ошибку: %v", err)
	}
	if got := engine.startedLocators(); len(got) != 1 {
		t.Errorf("Ожидался один запуск, получено %v", got)
	}
}

func TestNextWithDuplicateEntries(t *testing.T) {
	ctx := context.Background()
	ctrl, _, _ := newTestController(t, "A", "B")

	queue := []string{"A", "B", "A"}
	if err := ctrl.PlayQueue(ctx, "A", queue); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}

	var positions []int
	for i := 0; i < 4; i++ {
		if err := ctrl.Next(ctx); err != nil {
			t.Fatalf("Ошибка Next: %v", err)
		}
		positions = append(positions, ctrl.Snapshot().Position)
	}

	if !slices.Equal(positions, []int{1, 2, 0, 1}) {
		t.Errorf("Повторяющиеся треки не должны сбивать позицию: %v", positions)
	}
}

func TestPlayIndex(t *testing.T) {
	ctx := context.Background()
	ctrl, _, _ := newTestController(t, "A", "B", "C")

	if err := ctrl.PlayQueue(ctx, "A", []string{"A", "B", "C"}); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}
	if err := ctrl.PlayIndex(ctx, 2); err != nil {
		t.Fatalf("Ошибка PlayIndex: %v", err)
	}
	if snap := ctrl.Snapshot(); snap.Position != 2 || snap.CurrentID != "C" {
		t.Errorf("Ожидалась позиция 2 (C), получено %d (%s)", snap.Position, snap.CurrentID)
	}

	for _, idx := range []int{-1, 3} {
		if err := ctrl.PlayIndex(ctx, idx); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("PlayIndex(%d): ожидалась ErrIndexOutOfRange, получено %v", idx, err)
		}
	}
}

func TestSeekRejectsOutOfRange(t *testing.T) {
	ctx := context.Background()
	ctrl, engine, _ := newTestController(t, "A")
	engine.duration = 200 * time.Second

	if err := ctrl.Play(ctx, "A"); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}
	if err := ctrl.Seek(0.25); err != nil {
		t.Fatalf("Ошибка перемотки: %v", err)
	}

	for _, f := range []float64{-0.01, 1.01, math.NaN(), math.Inf(1)} {
		if err := ctrl.Seek(f); !errors.Is(err, ErrInvalidSeek) {
			t.Errorf("Seek(%v): ожидалась ErrInvalidSeek, получено %v", f, err)
		}
	}

	if pos := engine.CurrentTime(); pos != 50*time.Second {
		t.Errorf("Позиция не должна меняться: %s", pos)
	}
	if snap := ctrl.Snapshot(); snap.Elapsed != 50*time.Second {
		t.Errorf("Позиция в снимке не должна меняться: %s", snap.Elapsed)
	}
}

func TestSeek(t *testing.T) {
	ctx := context.Background()
	ctrl, engine, _ := newTestController(t, "A")

	if err := ctrl.Play(ctx, "A"); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}

	// Длительность берется из каталога (180 с), если движок ее не знает
	if err := ctrl.Seek(0.5); err != nil {
		t.Fatalf("Ошибка перемотки: %v", err)
	}
	if pos := engine.CurrentTime(); pos != 90*time.Second {
		t.Errorf("Ожидалась позиция 90s, получено %s", pos)
	}

	snap := ctrl.Snapshot()
	if snap.State != StatePlaying || snap.PendingSeek || snap.Elapsed != 90*time.Second {
		t.Errorf("Неверное состояние после перемотки: %+v", snap)
	}
	if snap.Fraction() != 0.5 {
		t.Errorf("Ожидалась доля 0.5, получено %v", snap.Fraction())
	}
}

func TestSeekIgnoredWithoutDuration(t *testing.T) {
	ctx := context.Background()
	engine := newMockEngine()
	tracks := testTracks("A")
	tracks[0].Duration = 0
	ctrl := New(newMockCatalog(tracks...), engine, nil)
	defer ctrl.Close()

	if err := ctrl.Play(ctx, "A"); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}
	if err := ctrl.Seek(0.5); err != nil {
		t.Errorf("Перемотка без длительности должна игнорироваться: %v", err)
	}
	if pos := engine.CurrentTime(); pos != 0 {
		t.Errorf("Позиция не должна меняться: %s", pos)
	}

	// Без загруженного трека перемотка тоже игнорируется
	idle, _, _ := newTestController(t)
	if err := idle.Seek(0.3); err != nil {
		t.Errorf("Перемотка без трека должна игнорироваться: %v", err)
	}
}

func TestSeekEngineError(t *testing.T) {
	ctx := context.Background()
	ctrl, engine, _ := newTestController(t, "A")
	engine.seekErr = errors.New("поток не поддерживает перемотку")

	if err := ctrl.Play(ctx, "A"); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}

	err := ctrl.Seek(0.5)
	if !errors.Is(err, ErrMediaPlayback) {
		t.Fatalf("Ожидалась ErrMediaPlayback, получено %v", err)
	}

	snap := ctrl.Snapshot()
	if snap.State != StatePlaying || snap.PendingSeek || snap.Elapsed != 0 {
		t.Errorf("Состояние должно вернуться к воспроизведению: %+v", snap)
	}
}

func TestTogglePlayFollowsEngine(t *testing.T) {
	ctx := context.Background()
	ctrl, engine, _ := newTestController(t, "A")

	// Без трека ничего не происходит
	if err := ctrl.TogglePlay(); err != nil {
		t.Fatalf("TogglePlay без трека: %v", err)
	}
	if ctrl.Snapshot().State != StateIdle {
		t.Error("Состояние не должно меняться без трека")
	}

	if err := ctrl.Play(ctx, "A"); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}

	if err := ctrl.TogglePlay(); err != nil {
		t.Fatalf("Ошибка паузы: %v", err)
	}
	if snap := ctrl.Snapshot(); snap.State != StatePaused || snap.Playing || !engine.IsPaused() {
		t.Errorf("Ожидалась пауза: %+v", snap)
	}

	if err := ctrl.TogglePlay(); err != nil {
		t.Fatalf("Ошибка возобновления: %v", err)
	}
	if snap := ctrl.Snapshot(); snap.State != StatePlaying || engine.IsPaused() {
		t.Errorf("Ожидалось воспроизведение: %+v", snap)
	}

	// Пауза в обход контроллера: переключение опирается на движок
	engine.Pause()
	if err := ctrl.TogglePlay(); err != nil {
		t.Fatalf("Ошибка переключения: %v", err)
	}
	if engine.IsPaused() || ctrl.Snapshot().State != StatePlaying {
		t.Error("Переключение должно возобновить воспроизведение по состоянию движка")
	}
}

func TestTogglePlayResumeRejected(t *testing.T) {
	ctx := context.Background()
	ctrl, engine, _ := newTestController(t, "A")

	if err := ctrl.Play(ctx, "A"); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}
	if err := ctrl.TogglePlay(); err != nil {
		t.Fatalf("Ошибка паузы: %v", err)
	}

	engine.resumeErr = errors.New("autoplay запрещен")
	if err := ctrl.TogglePlay(); !errors.Is(err, ErrMediaPlayback) {
		t.Fatalf("Ожидалась ErrMediaPlayback, получено %v", err)
	}
	if snap := ctrl.Snapshot(); snap.State != StatePaused || snap.Err == nil {
		t.Errorf("Ожидалась пауза с ошибкой: %+v", snap)
	}
}

func TestMissingLocator(t *testing.T) {
	ctx := context.Background()
	engine := newMockEngine()
	tracks := testTracks("A")
	tracks[0].AudioURL = ""
	ctrl := New(newMockCatalog(tracks...), engine, nil)
	defer ctrl.Close()

	err := ctrl.Play(ctx, "A")
	if !errors.Is(err, ErrNoMediaLocator) || !errors.Is(err, ErrMediaPlayback) {
		t.Fatalf("Ожидалась ErrNoMediaLocator, получено %v", err)
	}

	snap := ctrl.Snapshot()
	if snap.State != StateError || snap.CurrentID != "" || snap.Playing {
		t.Errorf("Ожидалось состояние ошибки без трека: %+v", snap)
	}
	if len(engine.startedLocators()) != 0 {
		t.Error("Движок не должен запускаться")
	}
}

func TestMediaErrorKeepsPriorState(t *testing.T) {
	ctx := context.Background()
	ctrl, engine, history := newTestController(t, "A", "B", "C")

	if err := ctrl.PlayQueue(ctx, "A", []string{"A", "B"}); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}
	<-history.calls

	engine.startErr = errors.New("воспроизведение отклонено")
	err := ctrl.PlayQueue(ctx, "C", []string{"C"})
	if !errors.Is(err, ErrMediaPlayback) {
		t.Fatalf("Ожидалась ErrMediaPlayback, получено %v", err)
	}

	snap := ctrl.Snapshot()
	if snap.CurrentID != "A" || snap.State != StatePlaying || snap.Position != 0 {
		t.Errorf("Должно сохраниться прежнее состояние: %+v", snap)
	}
	if !slices.Equal(snap.Queue, []string{"A", "B"}) {
		t.Errorf("Очередь не должна меняться: %v", snap.Queue)
	}
	if snap.Err == nil {
		t.Error("Ошибка должна быть видна в снимке")
	}
	if history.count() != 1 {
		t.Errorf("Неудачный запуск не должен записываться в историю: %d", history.count())
	}
}

func TestLoadErrorFromIdle(t *testing.T) {
	ctx := context.Background()
	ctrl, engine, _ := newTestController(t, "A")
	engine.loadFunc = func(context.Context, string) (Media, error) {
		return nil, errors.New("404")
	}

	if err := ctrl.Play(ctx, "A"); !errors.Is(err, ErrMediaPlayback) {
		t.Fatalf("Ожидалась ErrMediaPlayback, получено %v", err)
	}
	if snap := ctrl.Snapshot(); snap.State != StateError || snap.CurrentID != "" {
		t.Errorf("Ожидалось состояние ошибки: %+v", snap)
	}

	// Из состояния ошибки можно запустить трек снова
	engine.loadFunc = nil
	if err := ctrl.Play(ctx, "A"); err != nil {
		t.Fatalf("Повторный запуск: %v", err)
	}
	if snap := ctrl.Snapshot(); snap.State != StatePlaying || snap.Err != nil {
		t.Errorf("Ожидалось воспроизведение без ошибки: %+v", snap)
	}
}

func TestSupersededLoadIsDiscarded(t *testing.T) {
	ctx := context.Background()
	ctrl, engine, history := newTestController(t, "X", "Y")

	loadingX := make(chan struct{})
	releaseX := make(chan struct{})
	var mediaX *mockMedia

	engine.loadFunc = func(_ context.Context, locator string) (Media, error) {
		m := &mockMedia{locator: locator}
		if locator == "mem://X" {
			mediaX = m
			close(loadingX)
			<-releaseX
		}
		return m, nil
	}

	errX := make(chan error, 1)
	go func() {
		errX <- ctrl.Play(ctx, "X")
	}()

	<-loadingX
	if snap := ctrl.Snapshot(); snap.State != StateLoading {
		t.Errorf("Ожидалось состояние loading, получено %s", snap.State)
	}

	if err := ctrl.Play(ctx, "Y"); err != nil {
		t.Fatalf("Ошибка запуска Y: %v", err)
	}

	close(releaseX)
	if err := <-errX; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("Ожидалась ErrSuperseded для X, получено %v", err)
	}

	snap := ctrl.Snapshot()
	if snap.CurrentID != "Y" || snap.State != StatePlaying {
		t.Errorf("Состояние должно отражать только Y: %+v", snap)
	}
	if started := engine.startedLocators(); !slices.Equal(started, []string{"mem://Y"}) {
		t.Errorf("Движок должен запустить только Y: %v", started)
	}
	if !mediaX.isClosed() {
		t.Error("Устаревший источник должен быть закрыт")
	}

	if got := <-history.calls; got != "Y" {
		t.Errorf("В историю должен попасть Y, получено %s", got)
	}
}

func TestFailedLoadKeepsCommittedQueue(t *testing.T) {
	ctx := context.Background()
	ctrl, engine, history := newTestController(t, "X", "Y", "Z", "W")

	if err := ctrl.PlayQueue(ctx, "X", []string{"X"}); err != nil {
		t.Fatalf("Ошибка запуска X: %v", err)
	}
	<-history.calls

	loadingY := make(chan struct{})
	releaseY := make(chan struct{})
	engine.loadFunc = func(_ context.Context, locator string) (Media, error) {
		switch locator {
		case "mem://Y":
			close(loadingY)
			<-releaseY
		case "mem://W":
			return nil, errors.New("404")
		}
		return &mockMedia{locator: locator}, nil
	}

	errY := make(chan error, 1)
	go func() {
		errY <- ctrl.PlayQueue(ctx, "Y", []string{"Y", "Z"})
	}()
	<-loadingY

	if snap := ctrl.Snapshot(); !slices.Equal(snap.Queue, []string{"Y", "Z"}) {
		t.Errorf("Во время загрузки видна новая очередь, получено %v", snap.Queue)
	}

	if err := ctrl.PlayQueue(ctx, "W", []string{"W"}); !errors.Is(err, ErrMediaPlayback) {
		t.Fatalf("Ожидалась ErrMediaPlayback для W, получено %v", err)
	}

	close(releaseY)
	if err := <-errY; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("Ожидалась ErrSuperseded для Y, получено %v", err)
	}

	snap := ctrl.Snapshot()
	if snap.CurrentID != "X" || snap.Position != 0 || snap.State != StatePlaying {
		t.Errorf("Должен остаться X на позиции 0: %+v", snap)
	}
	if !slices.Equal(snap.Queue, []string{"X"}) {
		t.Errorf("Очередь незавершенного запуска не должна восстанавливаться: %v", snap.Queue)
	}

	// Переход идет по подтвержденной очереди
	engine.loadFunc = nil
	if err := ctrl.Next(ctx); err != nil {
		t.Fatalf("Ошибка перехода: %v", err)
	}
	if snap := ctrl.Snapshot(); snap.CurrentID != "X" {
		t.Errorf("Ожидался X после перехода по очереди [X], получено %s", snap.CurrentID)
	}
}

func TestHistoryGetsStartTime(t *testing.T) {
	ctx := context.Background()
	ctrl, _, history := newTestController(t, "A", "B")
	history.block = make(chan struct{})

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	calls := 0
	timeNow = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}
	t.Cleanup(func() { timeNow = time.Now })

	for _, id := range []string{"A", "B"} {
		if err := ctrl.Play(ctx, id); err != nil {
			t.Fatalf("Ошибка запуска %s: %v", id, err)
		}
	}
	// Записи выполняются уже после обоих запусков
	close(history.block)
	<-history.calls
	<-history.calls

	history.mu.Lock()
	got := make(map[string]time.Time)
	for i, id := range history.recorded {
		got[id] = history.times[i]
	}
	history.mu.Unlock()

	if !got["A"].Equal(base.Add(time.Second)) || !got["B"].Equal(base.Add(2*time.Second)) {
		t.Errorf("Время прослушивания должно браться в момент запуска: %v", got)
	}
	if len(history.playTimes()) != 2 {
		t.Errorf("Ожидалось 2 записи, получено %d", len(history.playTimes()))
	}
}

func TestCloseRejectsPlayWhileWaitingForHistory(t *testing.T) {
	ctx := context.Background()
	ctrl, engine, history := newTestController(t, "A")
	history.block = make(chan struct{})

	if err := ctrl.Play(ctx, "A"); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}

	closed := make(chan error, 1)
	go func() { closed <- ctrl.Close() }()

	waitFor(t, "остановки при закрытии", func() bool {
		return ctrl.Snapshot().State == StateIdle
	})

	if err := ctrl.Play(ctx, "A"); !errors.Is(err, ErrMediaPlayback) {
		t.Errorf("Запуск после Close должен отклоняться, получено %v", err)
	}

	select {
	case <-closed:
		t.Fatal("Close не должен завершаться до записи истории")
	default:
	}

	close(history.block)
	if err := <-closed; err != nil {
		t.Errorf("Ошибка закрытия: %v", err)
	}
	if history.count() != 1 {
		t.Errorf("Ожидалась одна запись истории, получено %d", history.count())
	}
	if started := engine.startedLocators(); len(started) != 1 {
		t.Errorf("Движок должен запуститься один раз: %v", started)
	}
}

func TestHistoryRecordedOnEveryPlay(t *testing.T) {
	ctx := context.Background()
	ctrl, _, history := newTestController(t, "A", "B")

	for _, id := range []string{"A", "A", "B"} {
		if err := ctrl.Play(ctx, id); err != nil {
			t.Fatalf("Ошибка запуска %s: %v", id, err)
		}
	}

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case id := <-history.calls:
			got = append(got, id)
		case <-time.After(time.Second):
			t.Fatal("История не записана")
		}
	}

	slices.Sort(got)
	if !slices.Equal(got, []string{"A", "A", "B"}) {
		t.Errorf("Каждый запуск должен записываться без дедупликации: %v", got)
	}
}

func TestHistoryErrorDoesNotAffectPlayback(t *testing.T) {
	ctx := context.Background()
	ctrl, _, history := newTestController(t, "A")
	history.err = errors.New("сеть недоступна")

	if err := ctrl.Play(ctx, "A"); err != nil {
		t.Fatalf("Ошибка истории не должна возвращаться: %v", err)
	}
	<-history.calls

	snap := ctrl.Snapshot()
	if snap.State != StatePlaying || snap.Err != nil {
		t.Errorf("Ошибка истории не должна влиять на воспроизведение: %+v", snap)
	}
}

func TestSetVolume(t *testing.T) {
	ctrl, engine, _ := newTestController(t)

	if err := ctrl.SetVolume(0.3); err != nil {
		t.Fatalf("Ошибка установки громкости: %v", err)
	}
	if engine.volume != 0.3 || ctrl.Snapshot().Volume != 0.3 {
		t.Errorf("Громкость не применена: движок %v", engine.volume)
	}

	for _, v := range []float64{-0.1, 1.5, math.NaN()} {
		if err := ctrl.SetVolume(v); !errors.Is(err, ErrInvalidVolume) {
			t.Errorf("SetVolume(%v): ожидалась ErrInvalidVolume, получено %v", v, err)
		}
	}
	if ctrl.Snapshot().Volume != 0.3 {
		t.Error("Неверная громкость не должна применяться")
	}
}

func TestRunAppliesOnlyCurrentSessionEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl, engine, _ := newTestController(t, "A", "B")
	go ctrl.Run(ctx)

	if err := ctrl.Play(ctx, "A"); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}
	oldSession := engine.lastSession()
	if err := ctrl.Play(ctx, "B"); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}
	session := engine.lastSession()

	engine.events <- Event{Kind: EventTimeUpdate, Session: oldSession, Current: 100 * time.Second, Total: 300 * time.Second}
	engine.events <- Event{Kind: EventTimeUpdate, Session: session, Current: 12 * time.Second, Total: 240 * time.Second}

	waitFor(t, "обновление позиции", func() bool {
		snap := ctrl.Snapshot()
		return snap.Elapsed == 12*time.Second && snap.Duration == 240*time.Second
	})

	// Устаревшее завершение не должно переключать трек
	engine.events <- Event{Kind: EventEnded, Session: oldSession}
	engine.events <- Event{Kind: EventTimeUpdate, Session: session, Current: 13 * time.Second}
	waitFor(t, "второе обновление", func() bool {
		return ctrl.Snapshot().Elapsed == 13*time.Second
	})
	if snap := ctrl.Snapshot(); snap.CurrentID != "B" {
		t.Errorf("Устаревшее событие изменило трек: %+v", snap)
	}
}

func TestRunEndedAdvancesQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl, engine, _ := newTestController(t, "A", "B")
	go ctrl.Run(ctx)

	if err := ctrl.PlayQueue(ctx, "A", []string{"A", "B"}); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}

	engine.events <- Event{Kind: EventEnded, Session: engine.lastSession()}
	waitFor(t, "переход к следующему треку", func() bool {
		snap := ctrl.Snapshot()
		return snap.CurrentID == "B" && snap.Position == 1
	})
}

func TestRunEndedWithoutQueueStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl, engine, _ := newTestController(t, "A")
	go ctrl.Run(ctx)

	if err := ctrl.Play(ctx, "A"); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}

	engine.events <- Event{Kind: EventEnded, Session: engine.lastSession()}
	waitFor(t, "остановка", func() bool {
		return ctrl.Snapshot().State == StateIdle
	})
}

func TestSubscribeReceivesLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	ctrl, _, _ := newTestController(t, "A", "B")

	sub := ctrl.Subscribe()
	initial := <-sub
	if initial.State != StateIdle {
		t.Errorf("Первый снимок должен быть idle: %+v", initial)
	}

	if err := ctrl.PlayQueue(ctx, "A", []string{"A", "B"}); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}
	if err := ctrl.Next(ctx); err != nil {
		t.Fatalf("Ошибка Next: %v", err)
	}

	// Подписчик не читал: в канале остался только последний снимок
	latest := <-sub
	if latest.CurrentID != "B" || latest.State != StatePlaying {
		t.Errorf("Ожидался последний снимок с B: %+v", latest)
	}

	ctrl.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Error("Канал должен быть закрыт после отписки")
	}
}

func TestStopSupersedesLoad(t *testing.T) {
	ctx := context.Background()
	ctrl, engine, _ := newTestController(t, "A")

	loading := make(chan struct{})
	release := make(chan struct{})
	engine.loadFunc = func(_ context.Context, locator string) (Media, error) {
		close(loading)
		<-release
		return &mockMedia{locator: locator}, nil
	}

	errA := make(chan error, 1)
	go func() { errA <- ctrl.Play(ctx, "A") }()

	<-loading
	ctrl.Stop()
	close(release)

	if err := <-errA; !errors.Is(err, ErrSuperseded) {
		t.Errorf("Ожидалась ErrSuperseded после Stop, получено %v", err)
	}
	if snap := ctrl.Snapshot(); snap.State != StateIdle || snap.CurrentID != "" {
		t.Errorf("Ожидалось состояние idle: %+v", snap)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateIdle:    "idle",
		StateLoading: "loading",
		StatePlaying: "playing",
		StatePaused:  "paused",
		StateError:   "error",
		State(42):    "state(42)",
	}
	for state, expected := range tests {
		if state.String() != expected {
			t.Errorf("%d: ожидалось %s, получено %s", int(state), expected, state.String())
		}
	}
}
