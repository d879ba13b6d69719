package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// createPlaylistCommand создает команду playlist с подкомандами
func (app *Application) createPlaylistCommand(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "Manage playlists of the signed in account",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create [name]",
		Short: "Create a playlist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			p, err := app.Library.CreatePlaylist(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Printf("✅ Плейлист создан: %s (%s)\n", p.Name, p.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List playlists",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			playlists, err := app.Library.Playlists(ctx)
			if err != nil {
				return err
			}
			if len(playlists) == 0 {
				fmt.Println("🎶 Плейлистов пока нет")
				return nil
			}
			for _, p := range playlists {
				fmt.Printf("🎶 %-36s %s (%s)\n", p.ID, p.Name, p.CreatedAt.Format("02.01.2006"))
			}
			return nil
		},
	})

	return cmd
}
