package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazadus/go-tunes/internal/data"
	"github.com/hazadus/go-tunes/internal/uploader"
	"github.com/hazadus/go-tunes/internal/utils"
)

// createListCommand создает команду list с привязкой к экземпляру приложения
func (app *Application) createListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tracks from the catalog",
		Long:  `Display all tracks of the catalog, newest first.`,
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			app.listTracks()
		},
	}
}

// createSearchCommand создает команду search
func (app *Application) createSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Search tracks by title, artist or genre",
		Args:  cobra.MinimumNArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			query := strings.Join(args, " ")
			tracks := app.Library.Search(query)
			if len(tracks) == 0 {
				fmt.Printf("🔍 По запросу «%s» ничего не найдено\n", query)
				return
			}
			fmt.Printf("🔍 Найдено треков: %d\n\n", len(tracks))
			app.printTracks(tracks)
		},
	}
}

// createAlbumsCommand создает команду albums
func (app *Application) createAlbumsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "albums",
		Short: "List albums",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			albums := app.Library.Albums()
			if len(albums) == 0 {
				fmt.Println("💿 Альбомов пока нет")
				return
			}
			fmt.Printf("💿 Найдено альбомов: %d\n\n", len(albums))
			fmt.Printf("%-36s %-30s %-30s %-6s\n", "ID", "Название", "Исполнитель", "Год")
			fmt.Println(strings.Repeat("-", 105))
			for _, a := range albums {
				fmt.Printf("%-36s %-30s %-30s %-6d\n",
					a.ID, utils.TruncateString(a.Title, 28), utils.TruncateString(a.Artist, 28), a.Year)
			}
		},
	}
}

// createAlbumCommand создает команду album
func (app *Application) createAlbumCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "album [album id]",
		Short: "Show album tracks",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			album := app.Library.Album(args[0])
			if album == nil {
				return fmt.Errorf("альбом %s не найден", args[0])
			}
			fmt.Printf("💿 %s - %s\n", album.Artist, album.Title)
			if album.CoverURL != "" {
				fmt.Printf("   Обложка: %s\n", album.CoverURL)
			}
			fmt.Println()
			app.printTracks(app.Library.AlbumTracks(album.ID))
			return nil
		},
	}
}

// createArtistCommand создает команду artist
func (app *Application) createArtistCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "artist [name]",
		Short: "Show top tracks of an artist, or all artists without a name",
		Args:  cobra.MaximumNArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			if len(args) == 0 {
				for _, name := range app.Library.Artists() {
					fmt.Printf("🎤 %s\n", name)
				}
				return
			}
			tracks := app.Library.ArtistTracks(args[0])
			if len(tracks) == 0 {
				fmt.Printf("🎤 У исполнителя %s нет треков\n", args[0])
				return
			}
			fmt.Printf("🎤 %s: популярные треки\n\n", args[0])
			app.printTracks(tracks)
		},
	}
}

func (app *Application) listTracks() {
	tracks := app.Library.ListTracks()
	if len(tracks) == 0 {
		fmt.Println("📚 Библиотека пуста. Добавьте треки с помощью команды 'upload'.")
		return
	}

	fmt.Printf("📚 Найдено треков: %d\n\n", len(tracks))
	app.printTracks(tracks)
}

// printTracks выводит треки таблицей
func (app *Application) printTracks(tracks []data.Track) {
	// Выводим заголовок таблицы
	fmt.Printf("%-36s %-2s %-30s %-30s %-20s %-10s %-12s\n",
		"ID", "", "Исполнитель", "Название", "Альбом", "Длит.", "Размер")
	fmt.Println(strings.Repeat("-", 146))

	for _, track := range tracks {
		// Форматируем длительность
		duration := utils.FormatDurationFromSeconds(track.Duration)
		if track.Duration == 0 {
			duration = "N/A"
		}

		albumTitle := ""
		if album := app.Library.Album(track.AlbumID); album != nil {
			albumTitle = album.Title
		}

		like := ""
		if app.Library.IsLiked(track.ID) {
			like = "♥"
		}

		fmt.Printf("%-36s %-2s %-30s %-30s %-20s %-10s %-12s\n",
			track.ID,
			like,
			utils.TruncateString(track.Artist, 28),
			utils.TruncateString(track.Title, 28),
			utils.TruncateString(albumTitle, 18),
			duration,
			uploader.FormatFileSize(track.FileSize))
	}

	fmt.Println()
}
