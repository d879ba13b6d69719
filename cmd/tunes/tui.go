package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hazadus/go-tunes/internal/tui"
	tuiapp "github.com/hazadus/go-tunes/internal/tui/app"
)

// createTUICommand создает команду tui с привязкой к экземпляру приложения
func (app *Application) createTUICommand(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Launch TUI (Terminal User Interface)",
		Long:  `Launch interactive terminal user interface for browsing, playing and uploading tracks.`,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return app.launchTUI(ctx)
		},
	}
}

func (app *Application) launchTUI(ctx context.Context) error {
	// Создаем экземпляр TUI приложения
	tuiApp := tui.NewApp(tuiapp.Deps{
		Library:    app.Library,
		Controller: app.Playback(ctx),
		Uploader:   app.Uploader,
	})
	return tuiApp.Run(ctx)
}
