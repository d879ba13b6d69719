package main

import (
	"context"

	"github.com/spf13/cobra"
)

// createRootCommand создает корневую команду с настроенными подкомандами
func (app *Application) createRootCommand(ctx context.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "tunes",
		Short:        "A music streaming client for the terminal",
		Long:         `Browse the catalog, play tracks with a queue, like songs and publish your own music.`,
		SilenceUsage: true,
	}

	// Добавляем команды, передавая в них экземпляр приложения и контекст
	rootCmd.AddCommand(app.createListCommand())
	rootCmd.AddCommand(app.createSearchCommand())
	rootCmd.AddCommand(app.createAlbumsCommand())
	rootCmd.AddCommand(app.createAlbumCommand())
	rootCmd.AddCommand(app.createArtistCommand())
	rootCmd.AddCommand(app.createPlayCommand(ctx))
	rootCmd.AddCommand(app.createLikeCommand(ctx))
	rootCmd.AddCommand(app.createLikedCommand())
	rootCmd.AddCommand(app.createRecentCommand())
	rootCmd.AddCommand(app.createUploadCommand(ctx))
	rootCmd.AddCommand(app.createDeleteCommand(ctx))
	rootCmd.AddCommand(app.createDownloadCommand(ctx))
	rootCmd.AddCommand(app.createSignUpCommand(ctx))
	rootCmd.AddCommand(app.createSignInCommand(ctx))
	rootCmd.AddCommand(app.createSignOutCommand())
	rootCmd.AddCommand(app.createWhoAmICommand(ctx))
	rootCmd.AddCommand(app.createProfileCommand(ctx))
	rootCmd.AddCommand(app.createPlaylistCommand(ctx))
	rootCmd.AddCommand(app.createExportCommand())
	rootCmd.AddCommand(app.createImportCommand(ctx))
	rootCmd.AddCommand(app.createTUICommand(ctx))

	return rootCmd
}
