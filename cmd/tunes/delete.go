package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// createDeleteCommand создает команду delete с привязкой к экземпляру приложения
func (app *Application) createDeleteCommand(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a track by ID",
		Long:  `Delete a track from the catalog together with its files in S3 storage.`,
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			if _, err := uuid.Parse(args[0]); err != nil {
				fmt.Printf("❌ Ошибка: неверный ID '%s'. ID должен быть UUID.\n", args[0])
				return
			}
			app.deleteTrack(ctx, args[0])
		},
	}
}

func (app *Application) deleteTrack(ctx context.Context, id string) {
	// Удаляем трек из каталога, файлы удаляются из хранилища
	track, err := app.Uploader.Delete(ctx, id)
	if err != nil {
		fmt.Printf("❌ Ошибка: %v\n", err)
		return
	}

	fmt.Printf("🗑️  Удален трек: %s - %s\n", track.Artist, track.Title)
	fmt.Println("✅ Трек успешно удален из библиотеки")
}
