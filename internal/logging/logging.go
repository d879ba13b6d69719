// Package logging содержит настройку структурированного логгера приложения
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// NewLogger создает логгер с временными метками и указанием места вызова.
// По умолчанию пишет в os.Stderr, чтобы не смешиваться с выводом команд.
func NewLogger(w io.Writer, level string) (*log.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("неизвестный уровень логирования %q: %w", level, err)
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		ReportCaller:    true,
		Level:           lvl,
	})
	return logger, nil
}

// Discard возвращает логгер, который ничего не пишет (для тестов и по умолчанию)
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// Component создает дочерний логгер с меткой компонента
func Component(l *log.Logger, name string) *log.Logger {
	if l == nil {
		l = Discard()
	}
	return l.With("component", name)
}
