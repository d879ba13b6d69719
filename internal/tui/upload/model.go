// Package upload содержит модель формы загрузки трека для TUI
package upload

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hazadus/go-tunes/internal/data"
	"github.com/hazadus/go-tunes/internal/uploader"
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true).Margin(1, 0)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(15)
	focusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	blurredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Margin(1, 0)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Margin(1, 0)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Margin(1, 0)
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Margin(1, 0)
)

// Uploader публикует трек
type Uploader interface {
	Upload(ctx context.Context, req uploader.Request, progress func(int64)) (*data.Track, error)
}

// GoBackMsg отправляется при выходе из формы
type GoBackMsg struct{}

// UploadDoneMsg результат загрузки
type UploadDoneMsg struct {
	Track *data.Track
	Err   error
}

type fieldType int

const (
	audioField fieldType = iota
	coverField
	titleField
	artistField
	albumField
	genreField
	languageField
	numFields
)

var labels = [numFields]string{
	"Аудиофайл:", "Обложка:", "Название:", "Исполнитель:", "Альбом:", "Жанр:", "Язык:",
}

var placeholders = [numFields]string{
	"путь к mp3",
	"путь к обложке от 1000x1000",
	"по умолчанию имя файла",
	"по умолчанию имя профиля",
	"Single",
	"Pop, Rock...",
	"en, ru...",
}

// Model представляет модель формы загрузки
type Model struct {
	uploader   Uploader
	inputs     []textinput.Model
	explicit   bool
	focusIndex int
	spinner    spinner.Model
	uploading  bool
	err        string
	success    string
}

// NewModel создает новую форму загрузки
func NewModel(up Uploader) *Model {
	inputs := make([]textinput.Model, numFields)
	for i := range inputs {
		inputs[i] = textinput.New()
		inputs[i].Placeholder = placeholders[i]
		inputs[i].PromptStyle = blurredStyle
		inputs[i].TextStyle = blurredStyle
	}
	inputs[audioField].Focus()
	inputs[audioField].PromptStyle = focusedStyle
	inputs[audioField].TextStyle = focusedStyle

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = focusedStyle

	return &Model{
		uploader: up,
		inputs:   inputs,
		spinner:  sp,
	}
}

// Init инициализирует модель
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Request собирает запрос из полей формы
func (m *Model) Request() uploader.Request {
	value := func(f fieldType) string { return strings.TrimSpace(m.inputs[f].Value()) }
	return uploader.Request{
		AudioPath: value(audioField),
		CoverPath: value(coverField),
		Title:     value(titleField),
		Artist:    value(artistField),
		Album:     value(albumField),
		Genre:     value(genreField),
		Language:  value(languageField),
		Explicit:  m.explicit,
	}
}

// Update обрабатывает сообщения и обновляет модель
func (m *Model) Update(msg tea.Msg) (*Model, tea.Cmd) {
	switch msg := msg.(type) {
	case UploadDoneMsg:
		m.uploading = false
		if msg.Err != nil {
			m.err = fmt.Sprintf("Ошибка загрузки: %v", msg.Err)
			m.success = ""
			return m, nil
		}
		m.err = ""
		m.success = fmt.Sprintf("Трек «%s» опубликован!", msg.Track.Title)
		// Возвращаемся к списку треков через небольшую задержку
		return m, tea.Tick(time.Second, func(time.Time) tea.Msg {
			return GoBackMsg{}
		})

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.uploading {
			// Во время загрузки форма заблокирована
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c", "esc":
			return m, func() tea.Msg {
				return GoBackMsg{}
			}

		case "ctrl+s":
			return m, m.submit()

		case "ctrl+e":
			m.explicit = !m.explicit
			return m, nil

		case "tab", "shift+tab", "enter", "up", "down":
			s := msg.String()

			if s == "enter" && m.focusIndex == len(m.inputs) {
				return m, m.submit()
			}

			if s == "up" || s == "shift+tab" {
				m.focusIndex--
			} else {
				m.focusIndex++
			}

			if m.focusIndex > len(m.inputs) {
				m.focusIndex = 0
			} else if m.focusIndex < 0 {
				m.focusIndex = len(m.inputs)
			}

			return m, m.updateFocus()
		}

	case tea.WindowSizeMsg:
		for i := range m.inputs {
			m.inputs[i].Width = msg.Width - 20
		}
		return m, nil
	}

	// Обновляем активное поле ввода
	if m.focusIndex < len(m.inputs) {
		var cmd tea.Cmd
		m.inputs[m.focusIndex], cmd = m.inputs[m.focusIndex].Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) updateFocus() tea.Cmd {
	cmds := make([]tea.Cmd, len(m.inputs))
	for i := range m.inputs {
		if i == m.focusIndex {
			cmds[i] = m.inputs[i].Focus()
			m.inputs[i].PromptStyle = focusedStyle
			m.inputs[i].TextStyle = focusedStyle
		} else {
			m.inputs[i].Blur()
			m.inputs[i].PromptStyle = blurredStyle
			m.inputs[i].TextStyle = blurredStyle
		}
	}
	return tea.Batch(cmds...)
}

// submit проверяет обязательные поля и запускает загрузку
func (m *Model) submit() tea.Cmd {
	req := m.Request()
	if req.AudioPath == "" || req.CoverPath == "" {
		m.err = "Укажите аудиофайл и обложку"
		m.success = ""
		return nil
	}

	m.err = ""
	m.uploading = true
	up := m.uploader
	return func() tea.Msg {
		track, err := up.Upload(context.Background(), req, nil)
		return UploadDoneMsg{Track: track, Err: err}
	}
}

// View отображает модель
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Загрузка трека"))
	b.WriteString("\n\n")

	for i, input := range m.inputs {
		b.WriteString(labelStyle.Render(labels[i]))
		b.WriteString(" ")
		b.WriteString(input.View())
		b.WriteString("\n\n")
	}

	checkbox := "[ ]"
	if m.explicit {
		checkbox = "[x]"
	}
	b.WriteString(labelStyle.Render("Explicit:"))
	b.WriteString(" ")
	b.WriteString(checkbox)
	b.WriteString("\n\n")

	button := "[ Загрузить ]"
	if m.focusIndex == len(m.inputs) {
		button = focusedStyle.Render(button)
	} else {
		button = blurredStyle.Render(button)
	}
	b.WriteString(button)
	b.WriteString("\n\n")

	if m.uploading {
		b.WriteString(m.spinner.View())
		b.WriteString(" Загрузка файлов...\n")
	}
	if m.err != "" {
		b.WriteString(errorStyle.Render(m.err))
		b.WriteString("\n")
	}
	if m.success != "" {
		b.WriteString(successStyle.Render(m.success))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("Tab/Enter: следующее поле • Shift+Tab: предыдущее поле • Ctrl+E: explicit"))
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("Ctrl+S: загрузить • Esc: отмена"))

	return b.String()
}
