// Package tracklist содержит модель экрана списка треков для TUI
package tracklist

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hazadus/go-tunes/internal/data"
	"github.com/hazadus/go-tunes/internal/utils"
)

var (
	titleStyle        = lipgloss.NewStyle().MarginLeft(2)
	itemStyle         = lipgloss.NewStyle().PaddingLeft(4)
	selectedItemStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("170"))
	likedStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	paginationStyle   = list.DefaultStyles().PaginationStyle.PaddingLeft(4)
	helpStyle         = list.DefaultStyles().HelpStyle.PaddingLeft(4).PaddingBottom(1)
	errorStyle        = lipgloss.NewStyle().PaddingLeft(4).Foreground(lipgloss.Color("196"))
	quitTextStyle     = lipgloss.NewStyle().Margin(1, 0, 2, 4)
)

// Library источник треков и отметок «нравится»
type Library interface {
	ListTracks() []data.Track
	Album(id string) *data.Album
	IsLiked(id string) bool
	ToggleLike(ctx context.Context, id string) (bool, error)
}

// TrackSelectedMsg отправляется при выборе трека. Queue содержит видимые
// строки списка в порядке отображения.
type TrackSelectedMsg struct {
	TrackID string
	Queue   []string
}

// OpenPlayerMsg просит показать экран воспроизведения без смены трека
type OpenPlayerMsg struct{}

// UploadRequestedMsg просит открыть форму загрузки
type UploadRequestedMsg struct{}

// LikeToggledMsg результат переключения отметки «нравится»
type LikeToggledMsg struct {
	TrackID string
	Liked   bool
	Err     error
}

// trackItem реализует интерфейс list.Item для трека
type trackItem struct {
	track data.Track
	album string
	liked bool
}

func (i trackItem) FilterValue() string {
	return strings.Join([]string{i.track.Artist, i.track.Title, i.album, i.track.Genre}, " ")
}

// trackItemDelegate реализует отображение элементов списка
type trackItemDelegate struct{}

func (d trackItemDelegate) Height() int                             { return 1 }
func (d trackItemDelegate) Spacing() int                            { return 0 }
func (d trackItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d trackItemDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(trackItem)
	if !ok {
		return
	}

	heart := " "
	if i.liked {
		heart = likedStyle.Render("♥")
	}

	// Исполнитель | Название | Альбом | Продолжительность
	str := fmt.Sprintf("%s %-20s %-40s %-20s %5s",
		heart,
		utils.TruncateString(i.track.Artist, 20),
		utils.TruncateString(i.track.Title, 40),
		utils.TruncateString(i.album, 20),
		utils.FormatTime(float64(i.track.Duration)))

	fn := itemStyle.Render
	if index == m.Index() {
		fn = func(s ...string) string {
			return selectedItemStyle.Render("> " + strings.Join(s, " "))
		}
	}

	fmt.Fprint(w, fn(str))
}

// Model представляет модель экрана списка треков
type Model struct {
	list     list.Model
	library  Library
	err      error
	quitting bool
}

// NewModel создает новую модель списка треков
func NewModel(library Library) *Model {
	l := list.New(nil, trackItemDelegate{}, 0, 0)
	l.Title = "Треки"
	l.SetShowStatusBar(false)
	l.SetShowTitle(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle
	l.Styles.PaginationStyle = paginationStyle
	l.Styles.HelpStyle = helpStyle

	m := &Model{
		list:    l,
		library: library,
	}
	m.RefreshData()
	return m
}

// Init инициализирует модель
func (m *Model) Init() tea.Cmd {
	return nil
}

// RefreshData обновляет данные модели без пересоздания
func (m *Model) RefreshData() {
	tracks := m.library.ListTracks()

	items := make([]list.Item, len(tracks))
	for i, t := range tracks {
		items[i] = m.newItem(t)
	}
	m.list.SetItems(items)
}

func (m *Model) newItem(t data.Track) trackItem {
	item := trackItem{track: t, liked: m.library.IsLiked(t.ID)}
	if a := m.library.Album(t.AlbumID); a != nil {
		item.album = a.Title
	}
	return item
}

// VisibleIDs возвращает идентификаторы видимых строк с учетом фильтра
func (m *Model) VisibleIDs() []string {
	visible := m.list.VisibleItems()
	ids := make([]string, 0, len(visible))
	for _, it := range visible {
		if item, ok := it.(trackItem); ok {
			ids = append(ids, item.track.ID)
		}
	}
	return ids
}

func (m *Model) selected() (trackItem, bool) {
	item, ok := m.list.SelectedItem().(trackItem)
	return item, ok
}

// Update обрабатывает сообщения и обновляет модель
func (m *Model) Update(msg tea.Msg) (*Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		m.list.SetHeight(msg.Height - 4) // Оставляем место для заголовка и справки
		return m, nil

	case LikeToggledMsg:
		m.err = msg.Err
		if msg.Err == nil {
			m.setLiked(msg.TrackID, msg.Liked)
		}
		return m, nil

	case tea.KeyMsg:
		// Пока вводится фильтр, клавиши принадлежат списку
		if m.list.FilterState() == list.Filtering {
			break
		}

		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			if item, ok := m.selected(); ok {
				queue := m.VisibleIDs()
				return m, func() tea.Msg {
					return TrackSelectedMsg{TrackID: item.track.ID, Queue: queue}
				}
			}
			return m, nil

		case "l":
			if item, ok := m.selected(); ok {
				return m, m.toggleLike(item.track.ID)
			}
			return m, nil

		case "o":
			return m, func() tea.Msg { return OpenPlayerMsg{} }

		case "u":
			return m, func() tea.Msg { return UploadRequestedMsg{} }
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) toggleLike(id string) tea.Cmd {
	return func() tea.Msg {
		liked, err := m.library.ToggleLike(context.Background(), id)
		return LikeToggledMsg{TrackID: id, Liked: liked, Err: err}
	}
}

func (m *Model) setLiked(id string, liked bool) {
	for i, it := range m.list.Items() {
		if item, ok := it.(trackItem); ok && item.track.ID == id {
			item.liked = liked
			m.list.SetItem(i, item)
			return
		}
	}
}

// View отображает модель
func (m *Model) View() string {
	if m.quitting {
		return quitTextStyle.Render("До свидания!")
	}

	view := m.list.View()
	if m.err != nil {
		view += "\n" + errorStyle.Render(m.err.Error())
	}
	extraHelp := helpStyle.Render("Enter: воспроизвести • l: нравится • o: сейчас играет • u: загрузить • q: выход")
	return view + "\n" + extraHelp
}
