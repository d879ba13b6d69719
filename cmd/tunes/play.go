package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/hazadus/go-tunes/internal/data"
	"github.com/hazadus/go-tunes/internal/playback"
	"github.com/hazadus/go-tunes/internal/streaming"
	"github.com/hazadus/go-tunes/internal/track"
	"github.com/hazadus/go-tunes/internal/utils"
)

const (
	seekStep   = 0.05
	volumeStep = 0.1
)

// playOptions откуда брать очередь воспроизведения
type playOptions struct {
	album  bool
	liked  bool
	search string
	mix    int
}

// createPlayCommand создает команду play с привязкой к экземпляру приложения
func (app *Application) createPlayCommand(ctx context.Context) *cobra.Command {
	opts := playOptions{mix: -1}

	cmd := &cobra.Command{
		Use:   "play [track id]",
		Short: "Play a track with an optional queue",
		Long: `Play a track by its ID. The queue is taken from the track's album, liked songs,
search results or a daily mix. Without a queue the player stops after the track.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			queue, id, err := app.resolveQueue(ctx, id, opts)
			if err != nil {
				return err
			}
			return app.playInteractive(ctx, id, queue)
		},
	}

	cmd.Flags().BoolVar(&opts.album, "album", false, "queue the whole album of the track")
	cmd.Flags().BoolVar(&opts.liked, "liked", false, "queue liked tracks")
	cmd.Flags().StringVar(&opts.search, "search", "", "queue search results")
	cmd.Flags().IntVar(&opts.mix, "mix", -1, "play daily mix N (track id is optional)")

	return cmd
}

// resolveQueue определяет очередь и стартовый трек. Пустая очередь означает
// воспроизведение одного трека.
func (app *Application) resolveQueue(ctx context.Context, id string, opts playOptions) ([]string, string, error) {
	switch {
	case opts.mix >= 0:
		queue, start := app.Library.DailyMix(opts.mix)
		if len(queue) == 0 {
			return nil, "", errors.New("каталог пуст")
		}
		if id == "" {
			id = start
		}
		return queue, id, nil
	case id == "":
		return nil, "", errors.New("нужно указать ID трека или --mix")
	case opts.album:
		t, err := app.Library.ResolveTrack(ctx, id)
		if err != nil {
			return nil, "", err
		}
		return track.TrackIDs(app.Library.AlbumTracks(t.AlbumID)), id, nil
	case opts.liked:
		return track.TrackIDs(app.Library.Liked()), id, nil
	case opts.search != "":
		return track.TrackIDs(app.Library.Search(opts.search)), id, nil
	default:
		return nil, id, nil
	}
}

// enableRawMode включает режим raw для терминала (без буферизации и echo)
func enableRawMode() {
	cmd := exec.Command("stty", "-echo", "-icanon")
	cmd.Stdin = os.Stdin
	_ = cmd.Run() // Игнорируем ошибку, так как это не критично для работы плеера
}

// disableRawMode восстанавливает нормальный режим терминала
func disableRawMode() {
	cmd := exec.Command("stty", "echo", "icanon")
	cmd.Stdin = os.Stdin
	_ = cmd.Run() // Игнорируем ошибку, так как это не критично для работы плеера
}

// readSingleChar читает одиночный символ без ожидания Enter
func readSingleChar() (byte, error) {
	buffer := make([]byte, 1)
	_, err := os.Stdin.Read(buffer)
	return buffer[0], err
}

// readKeys читает клавиши и отправляет их названия в канал.
// Стрелки приходят последовательностью ESC [ C/D.
func readKeys(keys chan<- string) {
	var seq []byte
	for {
		char, err := readSingleChar()
		if err != nil {
			close(keys)
			return
		}

		if len(seq) > 0 || char == 27 {
			seq = append(seq, char)
			if len(seq) < 3 {
				continue
			}
			key := parseEscape(seq)
			seq = seq[:0]
			if key != "" {
				keys <- key
			}
			continue
		}

		if key := parseKey(char); key != "" {
			keys <- key
		}
	}
}

func parseKey(char byte) string {
	switch char {
	case ' ', '\n', '\r':
		return "toggle"
	case 'n':
		return "next"
	case 'r':
		return "restart"
	case 'f':
		return "like"
	case 'o':
		return "queue"
	case 'p':
		return "previous"
	case 'l':
		return "forward"
	case 'h':
		return "back"
	case '+', '=':
		return "louder"
	case '-':
		return "quieter"
	case 'q':
		return "quit"
	}
	return ""
}

func parseEscape(seq []byte) string {
	if len(seq) != 3 || seq[0] != 27 || seq[1] != '[' {
		return ""
	}
	switch seq[2] {
	case 'C':
		return "forward"
	case 'D':
		return "back"
	}
	return ""
}

func (app *Application) playInteractive(ctx context.Context, id string, queue []string) error {
	ctrl := app.Playback(ctx)

	var err error
	if len(queue) > 0 {
		err = ctrl.PlayQueue(ctx, id, queue)
	} else {
		err = ctrl.Play(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("ошибка запуска воспроизведения: %w", err)
	}

	sub := ctrl.Subscribe()
	defer ctrl.Unsubscribe(sub)

	fmt.Printf("🎮 Управление:\n")
	fmt.Printf("   [Пробел] - пауза/воспроизведение\n")
	fmt.Printf("   [n]/[p] - следующий/предыдущий трек\n")
	fmt.Printf("   [r] - начать трек сначала\n")
	fmt.Printf("   [f] - нравится/не нравится\n")
	fmt.Printf("   [o] - показать очередь\n")
	fmt.Printf("   [←]/[→] - перемотка\n")
	fmt.Printf("   [+]/[-] - громкость\n")
	fmt.Printf("   [q] - остановить и выйти\n")
	fmt.Println()

	current := ""
	app.announce(ctx, ctrl.Snapshot(), &current)

	// Включаем raw режим для чтения одиночных клавиш
	enableRawMode()
	defer disableRawMode()

	keys := make(chan string)
	go readKeys(keys)

	// Главный цикл обработки событий
	for {
		select {
		case snap, ok := <-sub:
			if !ok {
				return nil
			}
			app.announce(ctx, snap, &current)
			switch snap.State {
			case playback.StateIdle:
				fmt.Println("\n✅ Воспроизведение завершено")
				return nil
			case playback.StateError:
				fmt.Println()
				return fmt.Errorf("воспроизведение остановлено: %w", snap.Err)
			}
			app.displayProgress(snap)
		case key, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			switch key {
			case "quit":
				fmt.Println("\n⏹️  Воспроизведение остановлено пользователем")
				ctrl.Stop()
				return nil
			case "like":
				if err := app.likeCurrent(ctx, ctrl.Snapshot()); err != nil {
					fmt.Printf("\r\033[K⚠️  %v\n", err)
				}
				continue
			case "queue":
				app.printQueue(ctx, ctrl.Snapshot())
				continue
			}
			if err := handleKey(ctx, ctrl, key); err != nil && !errors.Is(err, playback.ErrSuperseded) {
				fmt.Printf("\r\033[K⚠️  %v\n", err)
			}
		case <-ctx.Done():
			fmt.Println("\n🚫 Операция отменена")
			ctrl.Stop()
			return nil
		}
	}
}

// handleKey выполняет действие клавиши
func handleKey(ctx context.Context, ctrl *playback.Controller, key string) error {
	snap := ctrl.Snapshot()
	switch key {
	case "toggle":
		return ctrl.TogglePlay()
	case "next":
		return ctrl.Next(ctx)
	case "previous":
		return ctrl.Previous(ctx)
	case "restart":
		if len(snap.Queue) == 0 {
			return ctrl.Play(ctx, snap.CurrentID)
		}
		return ctrl.PlayIndex(ctx, snap.Position)
	case "forward":
		return ctrl.Seek(math.Min(snap.Fraction()+seekStep, 1))
	case "back":
		return ctrl.Seek(math.Max(snap.Fraction()-seekStep, 0))
	case "louder":
		return ctrl.SetVolume(math.Min(snap.Volume+volumeStep, 1))
	case "quieter":
		return ctrl.SetVolume(math.Max(snap.Volume-volumeStep, 0))
	}
	return nil
}

// likeCurrent переключает отметку «нравится» у текущего трека
func (app *Application) likeCurrent(ctx context.Context, snap playback.Snapshot) error {
	if snap.CurrentID == "" {
		return nil
	}
	liked, err := app.Library.ToggleLike(ctx, snap.CurrentID)
	if err != nil {
		return fmt.Errorf("ошибка отметки трека: %w", err)
	}
	if liked {
		fmt.Printf("\r\033[K♥ Добавлено в понравившиеся\n")
	} else {
		fmt.Printf("\r\033[K♡ Удалено из понравившихся\n")
	}
	return nil
}

// printQueue выводит очередь, отмечая текущую позицию
func (app *Application) printQueue(ctx context.Context, snap playback.Snapshot) {
	fmt.Printf("\r\033[K📋 Очередь:\n")
	if len(snap.Queue) == 0 {
		fmt.Println("   (пусто)")
		return
	}
	for i, id := range snap.Queue {
		marker := "  "
		if i == snap.Position {
			marker = "▶ "
		}
		name := id
		if t, err := app.Library.ResolveTrack(ctx, id); err == nil && t != nil {
			name = fmt.Sprintf("%s - %s", t.Artist, t.Title)
		}
		fmt.Printf(" %s%d. %s\n", marker, i+1, name)
	}
}

// announce выводит карточку трека при смене текущего трека
func (app *Application) announce(ctx context.Context, snap playback.Snapshot, current *string) {
	if snap.CurrentID == "" || snap.CurrentID == *current {
		return
	}
	t, err := app.playback.CurrentTrack(ctx)
	if err != nil || t == nil || t.ID != snap.CurrentID {
		return
	}
	*current = t.ID
	printNowPlaying(t, app.Library.Album(t.AlbumID), snap)
}

func printNowPlaying(t *data.Track, album *data.Album, snap playback.Snapshot) {
	fmt.Printf("\r\033[K🎵 Сейчас играет")
	if len(snap.Queue) > 0 {
		fmt.Printf(" [%d/%d]", snap.Position+1, len(snap.Queue))
	}
	fmt.Println(":")
	fmt.Printf("   ID: %s\n", t.ID)
	fmt.Printf("   Исполнитель: %s\n", t.Artist)
	fmt.Printf("   Название: %s\n", t.Title)
	if album != nil {
		fmt.Printf("   Альбом: %s\n", album.Title)
	}
	if t.Duration > 0 {
		fmt.Printf("   Продолжительность: %s\n", utils.FormatTime(float64(t.Duration)))
	}
	fmt.Println()
}

// displayProgress отображает прогресс воспроизведения
func (app *Application) displayProgress(snap playback.Snapshot) {
	statusIcon := "▶️"
	statusText := "Воспроизведение"
	if app.engine != nil {
		stuck := app.engine.Status().StuckCount
		statusText = streaming.StreamStatus(stuck)
		if stuck > 3 {
			statusIcon = "⚠️"
		}
	}

	switch {
	case snap.State == playback.StateLoading:
		statusIcon, statusText = "⏳", "Загрузка..."
	case !snap.Playing:
		statusIcon, statusText = "⏸️", "На паузе"
	}

	fmt.Printf("\r\033[K%s  %.1f%% | %s / %s | Громкость: %d%% | Статус: %s",
		statusIcon,
		snap.Fraction()*100,
		utils.FormatDuration(snap.Elapsed),
		utils.FormatDuration(snap.Duration),
		int(math.Round(snap.Volume*100)),
		statusText)
}
