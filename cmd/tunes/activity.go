package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// createLikeCommand создает команду like
func (app *Application) createLikeCommand(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "like [track id]",
		Short: "Like or unlike a track",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			t, err := app.Library.ResolveTrack(ctx, args[0])
			if err != nil {
				return err
			}
			liked, err := app.Library.ToggleLike(ctx, t.ID)
			if err != nil {
				return fmt.Errorf("ошибка отметки трека: %w", err)
			}
			if liked {
				fmt.Printf("♥ Добавлено в понравившиеся: %s - %s\n", t.Artist, t.Title)
			} else {
				fmt.Printf("♡ Удалено из понравившихся: %s - %s\n", t.Artist, t.Title)
			}
			return nil
		},
	}
}

// createLikedCommand создает команду liked
func (app *Application) createLikedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "liked",
		Short: "List liked tracks",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			tracks := app.Library.Liked()
			if len(tracks) == 0 {
				fmt.Println("♡ Понравившихся треков пока нет")
				return
			}
			fmt.Printf("♥ Понравившиеся треки: %d\n\n", len(tracks))
			app.printTracks(tracks)
		},
	}
}

// createRecentCommand создает команду recent
func (app *Application) createRecentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "recent",
		Short: "List recently played tracks",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			tracks := app.Library.RecentlyPlayed()
			if len(tracks) == 0 {
				fmt.Println("🕘 История прослушиваний пуста")
				return
			}
			fmt.Printf("🕘 Недавно прослушанные: %d\n\n", len(tracks))
			app.printTracks(tracks)
		},
	}
}
