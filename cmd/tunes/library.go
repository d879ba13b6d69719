package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazadus/go-tunes/internal/data"
)

// createExportCommand создает команду export
func (app *Application) createExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export the catalog to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			lib := app.Library.Export()
			if err := lib.SaveData(args[0]); err != nil {
				return fmt.Errorf("ошибка экспорта: %w", err)
			}
			fmt.Printf("📦 Экспортировано альбомов: %d, треков: %d в %s\n", len(lib.Albums), len(lib.Tracks), args[0])
			return nil
		},
	}
}

// createImportCommand создает команду import
func (app *Application) createImportCommand(ctx context.Context) *cobra.Command {
	var only string

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import albums and tracks from a YAML file",
		Long:  `Import albums and tracks from a YAML file. Records that already exist are skipped.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			lib := data.NewLibrary()
			if err := lib.LoadData(args[0]); err != nil {
				return fmt.Errorf("ошибка чтения файла: %w", err)
			}
			if only != "" {
				single, err := singleTrack(lib, only)
				if err != nil {
					return err
				}
				lib = single
			}
			added, err := app.Library.Import(ctx, lib)
			if err != nil {
				return fmt.Errorf("ошибка импорта: %w", err)
			}
			fmt.Printf("📦 Импортировано треков: %d из %d\n", added, len(lib.Tracks))
			return nil
		},
	}

	cmd.Flags().StringVar(&only, "only", "", "import a single track with its album")
	return cmd
}

// singleTrack возвращает библиотеку из одного трека и его альбома
func singleTrack(lib *data.Library, id string) (*data.Library, error) {
	t, err := lib.TrackByID(id)
	if err != nil {
		return nil, err
	}
	single := data.NewLibrary()
	single.Tracks = append(single.Tracks, *t)
	if album := lib.AlbumByID(t.AlbumID); album != nil {
		single.Albums = append(single.Albums, *album)
	}
	return single, nil
}
