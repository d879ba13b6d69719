// Package app содержит основную логику TUI приложения
package app

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hazadus/go-tunes/internal/playback"
	tuiPlayer "github.com/hazadus/go-tunes/internal/tui/player"
	"github.com/hazadus/go-tunes/internal/tui/tracklist"
	"github.com/hazadus/go-tunes/internal/tui/upload"
)

var nowPlayingStyle = lipgloss.NewStyle().PaddingLeft(4).Foreground(lipgloss.Color("170"))

// ScreenType определяет тип текущего экрана
type ScreenType int

// Константы для типов экранов
const (
	// TracklistScreen - экран списка треков
	TracklistScreen ScreenType = iota
	// PlayerScreen - экран «сейчас играет»
	PlayerScreen
	// UploadScreen - форма загрузки
	UploadScreen
)

// Library каталог для списка треков и экрана воспроизведения
type Library interface {
	tracklist.Library
	tuiPlayer.Catalog
}

// Deps зависимости интерфейса
type Deps struct {
	Library    Library
	Controller tuiPlayer.Controller
	Uploader   upload.Uploader
}

// MainModel представляет главную модель TUI
type MainModel struct {
	deps           Deps
	currentScreen  ScreenType
	tracklistModel *tracklist.Model
	playerModel    *tuiPlayer.Model
	uploadModel    *upload.Model
}

// NewMainModel создает новую главную модель
func NewMainModel(deps Deps) *MainModel {
	return &MainModel{
		deps:           deps,
		currentScreen:  TracklistScreen,
		tracklistModel: tracklist.NewModel(deps.Library),
	}
}

// Init инициализирует модель
func (m *MainModel) Init() tea.Cmd {
	return m.tracklistModel.Init()
}

// Update обрабатывает сообщения
func (m *MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.closePlayer()
			return m, tea.Quit
		}

	case tracklist.TrackSelectedMsg:
		initCmd := m.openPlayer()
		return m, tea.Batch(initCmd, m.playerModel.Play(msg.TrackID, msg.Queue))

	case tracklist.OpenPlayerMsg:
		return m, m.openPlayer()

	case tracklist.UploadRequestedMsg:
		m.currentScreen = UploadScreen
		m.uploadModel = upload.NewModel(m.deps.Uploader)
		return m, m.uploadModel.Init()

	case tuiPlayer.LikeToggledMsg:
		// Сердечко в списке должно совпадать с экраном воспроизведения
		m.tracklistModel, _ = m.tracklistModel.Update(tracklist.LikeToggledMsg{
			TrackID: msg.TrackID,
			Liked:   msg.Liked,
			Err:     msg.Err,
		})

	case tuiPlayer.GoBackMsg:
		m.closePlayer()
		m.currentScreen = TracklistScreen
		return m, nil

	case upload.GoBackMsg:
		m.currentScreen = TracklistScreen
		m.uploadModel = nil
		m.tracklistModel.RefreshData()
		return m, nil
	}

	return m, m.updateActive(msg)
}

func (m *MainModel) openPlayer() tea.Cmd {
	m.closePlayer()
	m.currentScreen = PlayerScreen
	m.playerModel = tuiPlayer.NewModel(m.deps.Controller, m.deps.Library)
	return m.playerModel.Init()
}

func (m *MainModel) closePlayer() {
	if m.playerModel != nil {
		m.playerModel.Close()
		m.playerModel = nil
	}
}

// updateActive передает сообщение модели текущего экрана
func (m *MainModel) updateActive(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.currentScreen {
	case TracklistScreen:
		m.tracklistModel, cmd = m.tracklistModel.Update(msg)

	case PlayerScreen:
		if m.playerModel != nil {
			var updated tea.Model
			updated, cmd = m.playerModel.Update(msg)
			if playerModel, ok := updated.(*tuiPlayer.Model); ok {
				m.playerModel = playerModel
			}
		}

	case UploadScreen:
		if m.uploadModel != nil {
			m.uploadModel, cmd = m.uploadModel.Update(msg)
		}
	}
	return cmd
}

// View отображает интерфейс
func (m *MainModel) View() string {
	switch m.currentScreen {
	case TracklistScreen:
		return m.tracklistModel.View() + m.nowPlayingLine()

	case PlayerScreen:
		if m.playerModel != nil {
			return m.playerModel.View()
		}
		return "Ошибка: модель плеера не инициализирована"

	case UploadScreen:
		if m.uploadModel != nil {
			return m.uploadModel.View()
		}
		return "Ошибка: форма загрузки не инициализирована"

	default:
		return "Неизвестный экран"
	}
}

// nowPlayingLine строка с текущим треком под списком
func (m *MainModel) nowPlayingLine() string {
	snap := m.deps.Controller.Snapshot()
	if snap.CurrentID == "" || snap.State == playback.StateIdle {
		return ""
	}
	track, err := m.deps.Library.ResolveTrack(context.Background(), snap.CurrentID)
	if err != nil {
		return ""
	}
	icon := "⏸"
	if snap.Playing {
		icon = "▶"
	}
	return "\n" + nowPlayingStyle.Render(fmt.Sprintf("%s %s - %s", icon, track.Artist, track.Title))
}

// Close закрывает ресурсы главной модели
func (m *MainModel) Close() {
	m.closePlayer()
}
