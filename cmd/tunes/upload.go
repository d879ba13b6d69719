package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazadus/go-tunes/internal/metadata"
	"github.com/hazadus/go-tunes/internal/uploader"
	"github.com/hazadus/go-tunes/internal/utils"
)

// createUploadCommand создает команду upload с привязкой к экземпляру приложения
func (app *Application) createUploadCommand(ctx context.Context) *cobra.Command {
	var req uploader.Request

	cmd := &cobra.Command{
		Use:   "upload [audio file] [cover image]",
		Short: "Publish a track with its cover",
		Long: `Upload an audio file and a cover image to S3 storage and add the track to the catalog.
Empty fields are filled from the file tags.`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			req.AudioPath = args[0]
			req.CoverPath = args[1]

			// Создаем контекст с таймаутом для загрузки (10 минут)
			uploadCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			defer cancel()
			return app.uploadTrack(uploadCtx, req)
		},
	}

	cmd.Flags().StringVar(&req.Title, "title", "", "track title")
	cmd.Flags().StringVar(&req.Artist, "artist", "", "artist name")
	cmd.Flags().StringVar(&req.Album, "album", "", "album title")
	cmd.Flags().StringVar(&req.Genre, "genre", "", "genre")
	cmd.Flags().StringVar(&req.Language, "language", "", "language code")
	cmd.Flags().BoolVar(&req.Explicit, "explicit", false, "mark the track as explicit")

	return cmd
}

// uploadTrack публикует трек с отображением прогресса
func (app *Application) uploadTrack(ctx context.Context, req uploader.Request) error {
	var size int64
	var duration time.Duration
	if info, err := metadata.NewExtractor().GetFileInfo(req.AudioPath); err == nil {
		size, duration = info.Size, info.Duration
	} else {
		// Длительность определяется только для MP3, размер нужен всегда
		st, statErr := os.Stat(req.AudioPath)
		if statErr != nil {
			return fmt.Errorf("ошибка получения информации о файле: %w", statErr)
		}
		size = st.Size()
	}

	// Отображаем информацию о загрузке
	fmt.Printf("📤 Загружаем трек:\n")
	fmt.Printf("   Файл: %s\n", req.AudioPath)
	fmt.Printf("   Обложка: %s\n", req.CoverPath)
	fmt.Printf("   Размер: %s\n", uploader.FormatFileSize(size))
	if duration > 0 {
		fmt.Printf("   Длительность: %s\n", utils.FormatDuration(duration))
	}
	fmt.Printf("   Бакеты: %s, %s\n", app.Config.AudioBucket, app.Config.CoverBucket)
	fmt.Println()

	// Создаем канал для отслеживания прогресса
	progressChan := make(chan int64)
	done := make(chan struct{})

	// Запускаем горутину для отображения прогресса
	go func() {
		defer close(done)
		startTime := time.Now()

		for progress := range progressChan {
			if progress <= 0 || size <= 0 {
				continue
			}
			elapsed := time.Since(startTime)
			percentage := utils.Progress(float64(progress), float64(size)) * 100

			// Вычисляем скорость загрузки
			speed := float64(progress) / elapsed.Seconds()

			// Вычисляем оставшееся время
			var remaining time.Duration
			if speed > 0 {
				remaining = time.Duration(float64(size-progress) / speed * float64(time.Second))
			}

			// Очищаем строку и выводим прогресс
			fmt.Printf("\r\033[K📊 Прогресс: %.1f%% | Скорость: %s/s | Прошло: %s | Осталось: %s",
				percentage,
				uploader.FormatFileSize(int64(speed)),
				utils.FormatDuration(elapsed),
				utils.FormatDuration(remaining))
		}
	}()

	// Выполняем загрузку с контекстом
	track, err := app.Uploader.Upload(ctx, req, func(bytesRead int64) {
		progressChan <- bytesRead
	})

	// Закрываем канал прогресса
	close(progressChan)
	<-done

	if err != nil {
		if ctx.Err() != nil {
			fmt.Printf("\n🚫 Загрузка отменена\n")
		}
		return fmt.Errorf("ошибка загрузки трека: %w", err)
	}

	fmt.Printf("\n✅ Трек опубликован!\n")
	fmt.Printf("   ID: %s\n", track.ID)
	fmt.Printf("   %s - %s\n", track.Artist, track.Title)
	fmt.Printf("   Длительность: %s\n", utils.FormatTime(float64(track.Duration)))
	fmt.Printf("   URL: %s\n", track.AudioURL)
	return nil
}
