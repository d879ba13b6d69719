// Package player содержит модель экрана «сейчас играет» для TUI
package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hazadus/go-tunes/internal/data"
	"github.com/hazadus/go-tunes/internal/playback"
	"github.com/hazadus/go-tunes/internal/utils"
)

const (
	seekStep   = 0.05
	volumeStep = 0.1
	// queueRows сколько строк очереди видно одновременно
	queueRows = 8
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#0000ff")).
			MarginBottom(1)

	trackInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginBottom(1)

	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(lipgloss.Color("#444444")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Bold(true).
			MarginTop(1).
			MarginBottom(1)

	controlsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff0000")).
			Bold(true)

	likedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))

	queueStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)

	queueCursorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("170")).
				Bold(true)
)

// Controller управление воспроизведением, которое нужно экрану
type Controller interface {
	Snapshot() playback.Snapshot
	Subscribe() <-chan playback.Snapshot
	Unsubscribe(sub <-chan playback.Snapshot)
	PlayQueue(ctx context.Context, id string, queue []string) error
	PlayIndex(ctx context.Context, index int) error
	TogglePlay() error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Seek(fraction float64) error
	SetVolume(v float64) error
}

// Catalog разрешает трек и альбом для отображения и хранит отметки «нравится»
type Catalog interface {
	ResolveTrack(ctx context.Context, id string) (*data.Track, error)
	Album(id string) *data.Album
	IsLiked(id string) bool
	ToggleLike(ctx context.Context, id string) (bool, error)
}

// GoBackMsg отправляется для возврата к списку треков
type GoBackMsg struct{}

// SnapshotMsg новое состояние контроллера
type SnapshotMsg struct {
	Snapshot playback.Snapshot
	source   <-chan playback.Snapshot
}

// SubscriptionClosedMsg подписка закрыта
type SubscriptionClosedMsg struct {
	source <-chan playback.Snapshot
}

// PlaybackErrorMsg отправляется при ошибке команды воспроизведения
type PlaybackErrorMsg struct {
	Error error
}

// LikeToggledMsg результат переключения отметки «нравится» для текущего трека
type LikeToggledMsg struct {
	TrackID string
	Liked   bool
	Err     error
}

// Model представляет модель экрана воспроизведения
type Model struct {
	controller  Controller
	catalog     Catalog
	sub         <-chan playback.Snapshot
	snapshot    playback.Snapshot
	track       *data.Track
	album       *data.Album
	liked       bool
	showQueue   bool
	cursor      int
	progressBar progress.Model
	error       error
	width       int
	height      int
}

// NewModel создает модель, подписанную на состояние контроллера
func NewModel(controller Controller, catalog Catalog) *Model {
	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 40

	m := &Model{
		controller:  controller,
		catalog:     catalog,
		progressBar: prog,
	}
	m.applySnapshot(controller.Snapshot())
	return m
}

// Init подписывается на обновления состояния
func (m *Model) Init() tea.Cmd {
	m.sub = m.controller.Subscribe()
	return m.listen()
}

// Play запускает трек с очередью
func (m *Model) Play(id string, queue []string) tea.Cmd {
	return m.command(func(ctx context.Context) error {
		return m.controller.PlayQueue(ctx, id, queue)
	})
}

// Update обрабатывает сообщения и обновляет модель
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progressBar.Width = min(60, msg.Width-10)
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case SnapshotMsg:
		// Сообщения прежней подписки приходят и после ее закрытия
		if msg.source != m.sub {
			return m, nil
		}
		m.applySnapshot(msg.Snapshot)
		return m, m.listen()

	case SubscriptionClosedMsg:
		if msg.source == m.sub {
			m.sub = nil
		}
		return m, nil

	case PlaybackErrorMsg:
		m.error = msg.Error
		return m, nil

	case LikeToggledMsg:
		if msg.Err != nil {
			m.error = msg.Err
			return m, nil
		}
		if msg.TrackID == m.snapshot.CurrentID {
			m.liked = msg.Liked
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.showQueue {
		switch msg.String() {
		case "up", "k":
			m.cursor = max(m.cursor-1, 0)
			return nil
		case "down", "j":
			m.cursor = min(m.cursor+1, max(len(m.snapshot.Queue)-1, 0))
			return nil
		case "enter":
			if len(m.snapshot.Queue) == 0 {
				return nil
			}
			index := m.cursor
			return m.command(func(ctx context.Context) error {
				return m.controller.PlayIndex(ctx, index)
			})
		}
	}

	switch msg.String() {
	case "q", "esc":
		m.Close()
		return func() tea.Msg { return GoBackMsg{} }

	case "tab":
		m.showQueue = !m.showQueue
		m.cursor = m.snapshot.Position

	case "f":
		return m.toggleLike()

	case " ":
		m.setError(m.controller.TogglePlay())

	case "n":
		return m.command(m.controller.Next)

	case "p":
		return m.command(m.controller.Previous)

	case "right", "l":
		m.setError(m.controller.Seek(clamp(m.snapshot.Fraction() + seekStep)))

	case "left", "h":
		m.setError(m.controller.Seek(clamp(m.snapshot.Fraction() - seekStep)))

	case "+", "=":
		m.setError(m.controller.SetVolume(clamp(roundStep(m.snapshot.Volume + volumeStep))))

	case "-":
		m.setError(m.controller.SetVolume(clamp(roundStep(m.snapshot.Volume - volumeStep))))
	}
	return nil
}

// command выполняет блокирующую операцию контроллера вне цикла обновления
func (m *Model) command(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		err := fn(context.Background())
		if err != nil && !errors.Is(err, playback.ErrSuperseded) {
			return PlaybackErrorMsg{Error: err}
		}
		return nil
	}
}

func (m *Model) toggleLike() tea.Cmd {
	id := m.snapshot.CurrentID
	if id == "" {
		return nil
	}
	return func() tea.Msg {
		liked, err := m.catalog.ToggleLike(context.Background(), id)
		return LikeToggledMsg{TrackID: id, Liked: liked, Err: err}
	}
}

func (m *Model) setError(err error) {
	m.error = err
}

func (m *Model) listen() tea.Cmd {
	sub := m.sub
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := <-sub
		if !ok {
			return SubscriptionClosedMsg{source: sub}
		}
		return SnapshotMsg{Snapshot: snap, source: sub}
	}
}

func (m *Model) applySnapshot(snap playback.Snapshot) {
	prevID := m.snapshot.CurrentID
	m.snapshot = snap
	if m.cursor >= len(snap.Queue) {
		m.cursor = max(len(snap.Queue)-1, 0)
	}
	if snap.Err != nil {
		m.error = snap.Err
	} else if snap.State == playback.StatePlaying {
		m.error = nil
	}

	if snap.CurrentID == "" {
		m.track, m.album, m.liked = nil, nil, false
		return
	}
	if snap.CurrentID == prevID && m.track != nil {
		return
	}

	track, err := m.catalog.ResolveTrack(context.Background(), snap.CurrentID)
	if err != nil {
		m.error = err
		return
	}
	m.track = track
	m.album = m.catalog.Album(track.AlbumID)
	m.liked = m.catalog.IsLiked(track.ID)
}

// View отображает модель
func (m *Model) View() string {
	title := titleStyle.Render("🎵 Сейчас играет")

	if m.track == nil {
		body := trackInfoStyle.Render("Ничего не воспроизводится")
		if m.error != nil {
			body += "\n\n" + errorStyle.Render(m.error.Error())
		}
		return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, controlsStyle.Render("q/esc: назад к списку"))
	}

	albumTitle := "—"
	if m.album != nil {
		albumTitle = m.album.Title
	}
	heart := ""
	if m.liked {
		heart = " " + likedStyle.Render("♥")
	}
	info := []string{
		"🎤 " + m.track.Artist,
		"🎵 " + m.track.Title + heart,
		"💿 " + albumTitle,
	}
	if m.track.CoverURL != "" {
		info = append(info, "🖼  "+m.track.CoverURL)
	}
	trackInfo := trackInfoStyle.Render(strings.Join(info, "\n"))

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	b.WriteString(trackInfo)
	if badges := m.badges(); badges != "" {
		b.WriteString("\n")
		b.WriteString(badges)
	}
	b.WriteString("\n\n")
	b.WriteString(statusStyle.Render(m.status()))
	b.WriteString("\n\n")
	b.WriteString(m.progressBar.ViewAs(m.snapshot.Fraction()))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s / %s   🔊 %d%%",
		utils.FormatDuration(m.snapshot.Elapsed),
		utils.FormatDuration(m.snapshot.Duration),
		int(math.Round(m.snapshot.Volume*100))))

	if m.showQueue {
		b.WriteString("\n\n")
		b.WriteString(m.queueView())
	}

	if m.error != nil {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render(m.error.Error()))
	}

	b.WriteString("\n\n")
	b.WriteString(controlsStyle.Render(
		"Пробел: пауза • n/p: следующий/предыдущий • ←/→: перемотка • +/-: громкость • f: нравится • tab: очередь • q/esc: назад",
	))
	if m.showQueue {
		b.WriteString("\n")
		b.WriteString(controlsStyle.Render("↑/↓: выбор в очереди • enter: играть выбранный"))
	}
	return b.String()
}

// queueView список очереди: ▶ отмечает текущую позицию, > курсор
func (m *Model) queueView() string {
	queue := m.snapshot.Queue
	if len(queue) == 0 {
		return queueStyle.Render("Очередь пуста")
	}

	from := max(0, min(m.cursor-queueRows/2, len(queue)-queueRows))
	to := min(len(queue), from+queueRows)

	lines := []string{fmt.Sprintf("Очередь (%d)", len(queue))}
	for i := from; i < to; i++ {
		marker := "  "
		if i == m.snapshot.Position {
			marker = "▶ "
		}
		line := fmt.Sprintf("%s%d. %s", marker, i+1, m.queueTitle(queue[i]))
		if i == m.cursor {
			line = queueCursorStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return queueStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) queueTitle(id string) string {
	track, err := m.catalog.ResolveTrack(context.Background(), id)
	if err != nil || track == nil {
		return id
	}
	return fmt.Sprintf("%s - %s", track.Artist, track.Title)
}

func (m *Model) badges() string {
	var badges []string
	if m.track.Genre != "" {
		badges = append(badges, badgeStyle.Render(m.track.Genre))
	}
	if m.track.Language != "" {
		badges = append(badges, badgeStyle.Render(strings.ToUpper(m.track.Language)))
	}
	if m.track.Explicit {
		badges = append(badges, badgeStyle.Render("E"))
	}
	return strings.Join(badges, " ")
}

func (m *Model) status() string {
	position := ""
	if n := len(m.snapshot.Queue); n > 0 {
		position = fmt.Sprintf("  [%d/%d]", m.snapshot.Position+1, n)
	}

	switch {
	case m.snapshot.State == playback.StateLoading:
		return "⏳ Загрузка" + position
	case m.snapshot.Playing:
		return "▶️ " + formatStatus(true) + position
	default:
		return "⏸️ " + formatStatus(false) + position
	}
}

// Close отписывается от обновлений контроллера
func (m *Model) Close() {
	if m.sub != nil {
		m.controller.Unsubscribe(m.sub)
		m.sub = nil
	}
}

func formatStatus(isPlaying bool) string {
	if isPlaying {
		return "Воспроизведение"
	}
	return "Пауза"
}

func clamp(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

// roundStep убирает накопленную погрешность шага громкости
func roundStep(v float64) float64 {
	return math.Round(v*100) / 100
}
