package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kkdai/youtube/v2"
	"github.com/spf13/cobra"
)

var (
	// Паттерны для различных форматов YouTube URL
	videoIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`(?:youtube\.com/embed/)([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`(?:youtube\.com/v/)([a-zA-Z0-9_-]{11})`),
	}
	bareVideoID      = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
	invalidFileChars = regexp.MustCompile(`[<>:"/\\|?*]`)
)

// createDownloadCommand создает команду download с привязкой к экземпляру приложения
func (app *Application) createDownloadCommand(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "download [YouTube URL]",
		Short: "Download audio from YouTube video",
		Long: `Download audio from YouTube video and save it to the configured download directory.
The file can then be published with the upload command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path, err := app.downloadYouTubeAudio(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("💡 Опубликовать: tunes upload %q <обложка>\n", path)
			return nil
		},
	}
}

// downloadYouTubeAudio скачивает аудио из YouTube видео и возвращает путь к файлу
func (app *Application) downloadYouTubeAudio(ctx context.Context, url string) (string, error) {
	fmt.Printf("🔗 Обрабатываем: %s\n", url)

	// Извлекаем ID видео из URL
	videoID, err := extractVideoID(url)
	if err != nil {
		return "", fmt.Errorf("ошибка извлечения ID видео: %w", err)
	}

	fmt.Printf("Скачиваем аудио для видео ID: %s\n", videoID)

	client := youtube.Client{}

	video, err := client.GetVideoContext(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("ошибка получения информации о видео: %w", err)
	}

	fmt.Printf("Название: %s\n", video.Title)
	fmt.Printf("Автор: %s\n", video.Author)

	audioFormat := findBestAudioFormat(video.Formats)
	if audioFormat == nil {
		return "", errors.New("аудио формат не найден")
	}

	fmt.Printf("Используем формат: itag=%d, качество=%s\n", audioFormat.ItagNo, audioFormat.Quality)

	stream, _, err := client.GetStreamContext(ctx, video, audioFormat)
	if err != nil {
		return "", fmt.Errorf("ошибка получения потока: %w", err)
	}
	defer stream.Close()

	if err := os.MkdirAll(app.Config.DownloadDir, 0755); err != nil {
		return "", fmt.Errorf("ошибка создания директории: %w", err)
	}

	filePath := filepath.Join(app.Config.DownloadDir, sanitizeFileName(video.Title)+".mp3")
	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("ошибка создания файла: %w", err)
	}
	defer file.Close()

	fmt.Printf("Скачиваем в файл: %s\n", filePath)

	if _, err := io.Copy(file, stream); err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("ошибка скачивания: %w", err)
	}

	fmt.Printf("Аудио успешно скачано: %s\n", filePath)
	return filePath, nil
}

// extractVideoID извлекает ID видео из различных форматов YouTube URL
func extractVideoID(url string) (string, error) {
	for _, re := range videoIDPatterns {
		if matches := re.FindStringSubmatch(url); len(matches) > 1 {
			return matches[1], nil
		}
	}

	// Если это просто ID видео (11 символов)
	if bareVideoID.MatchString(url) {
		return url, nil
	}

	return "", fmt.Errorf("не удалось извлечь ID видео из URL: %s", url)
}

// findBestAudioFormat находит лучший аудио формат для скачивания
func findBestAudioFormat(formats youtube.FormatList) *youtube.Format {
	audioFormats := formats.WithAudioChannels()
	if len(audioFormats) == 0 {
		return nil
	}

	isMP4 := func(f *youtube.Format) bool {
		return strings.Contains(f.MimeType, "mp4") || strings.Contains(f.MimeType, "m4a")
	}

	// Предпочитаем MP4/M4A, затем более высокий битрейт
	best := &audioFormats[0]
	for i := range audioFormats {
		f := &audioFormats[i]
		switch {
		case isMP4(f) && !isMP4(best):
			best = f
		case isMP4(f) == isMP4(best) && f.Bitrate > best.Bitrate:
			best = f
		}
	}
	return best
}

// sanitizeFileName очищает имя файла от недопустимых символов
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(invalidFileChars.ReplaceAllString(name, "_"))

	// Ограничиваем длину имени файла
	if runes := []rune(name); len(runes) > 200 {
		name = string(runes[:200])
	}
	if name == "" {
		name = "audio"
	}
	return name
}
