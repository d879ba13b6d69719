// Package uploader публикует новые треки: загружает аудио и обложку в хранилище
// и добавляет запись в каталог
package uploader

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // декодер обложек
	_ "image/png"  // декодер обложек
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hazadus/go-tunes/internal/auth"
	"github.com/hazadus/go-tunes/internal/data"
	"github.com/hazadus/go-tunes/internal/logging"
	"github.com/hazadus/go-tunes/internal/metadata"
	"github.com/hazadus/go-tunes/internal/s3"
	"github.com/hazadus/go-tunes/internal/store"
)

const (
	// MinCoverSize минимальная ширина и высота обложки в пикселях
	MinCoverSize = 1000
	// DefaultAlbum альбом для треков без указанного альбома
	DefaultAlbum = "Single"
	// UnknownArtist исполнитель, если определить его не удалось
	UnknownArtist = "Unknown"

	fallbackDuration = 120
	bytesPerSecond   = 100000
)

var (
	ErrMissingFile   = errors.New("нужно выбрать аудиофайл и обложку")
	ErrCoverTooSmall = errors.New("обложка слишком маленькая")
)

// Storage хранилище файлов
type Storage interface {
	UploadFile(ctx context.Context, reader io.Reader, bucket, key string) (string, error)
	DeleteFile(ctx context.Context, bucket, key string) error
	KeyFromURL(bucket, url string) (string, bool)
}

// Library каталог, в который добавляются треки
type Library interface {
	EnsureAlbum(ctx context.Context, title, artist, coverURL string) (*data.Album, error)
	AddTrack(ctx context.Context, t *data.Track) error
	DeleteTrack(ctx context.Context, id string) (*data.Track, error)
}

// Account источник данных о текущем пользователе
type Account interface {
	CurrentUser(ctx context.Context) (*store.User, error)
	Profile(ctx context.Context) (*data.Profile, error)
}

// MetadataExtractor читает теги и длительность
type MetadataExtractor interface {
	ExtractFromFile(filePath string) metadata.TrackMetadata
	GetDuration(filePath string) (time.Duration, error)
}

// Request данные формы загрузки. Пустые поля заполняются автоматически.
type Request struct {
	AudioPath string
	CoverPath string
	Title     string
	Artist    string
	Album     string
	Genre     string
	Language  string
	Explicit  bool
}

// Service управляет процессом загрузки файлов
type Service struct {
	storage     Storage
	library     Library
	account     Account
	extractor   MetadataExtractor
	audioBucket string
	coverBucket string
	now         func() time.Time
	logger      *log.Logger
}

// Option настраивает сервис
type Option func(*Service)

// WithBuckets задает бакеты для аудио и обложек
func WithBuckets(audio, cover string) Option {
	return func(s *Service) {
		s.audioBucket = audio
		s.coverBucket = cover
	}
}

// WithExtractor подменяет извлечение метаданных
func WithExtractor(e MetadataExtractor) Option {
	return func(s *Service) { s.extractor = e }
}

// WithClock подменяет источник времени для ключей объектов
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger задает логгер
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = logging.Component(l, "uploader") }
}

// NewService создает новый сервис загрузки. account может быть nil,
// тогда треки публикуются анонимно.
func NewService(storage Storage, library Library, account Account, opts ...Option) *Service {
	s := &Service{
		storage:     storage,
		library:     library,
		account:     account,
		extractor:   metadata.NewExtractor(),
		audioBucket: "audio",
		coverBucket: "covers",
		now:         time.Now,
		logger:      logging.Component(nil, "uploader"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload проверяет файлы, загружает их в хранилище и добавляет трек в каталог.
// progress получает число отправленных байт аудиофайла.
func (s *Service) Upload(ctx context.Context, req Request, progress func(int64)) (*data.Track, error) {
	if req.AudioPath == "" || req.CoverPath == "" {
		return nil, ErrMissingFile
	}
	audioInfo, err := os.Stat(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("файл не найден: %s: %w", req.AudioPath, err)
	}
	if err := CheckCover(req.CoverPath); err != nil {
		return nil, err
	}

	tags := s.extractor.ExtractFromFile(req.AudioPath)
	s.logger.Debug("метаданные файла", "file", req.AudioPath,
		"tagged", tags.Tagged, "format", tags.Format, "number", tags.Number)

	title := firstNonEmpty(req.Title, tags.Title, filepath.Base(req.AudioPath))
	artist, err := s.resolveArtist(ctx, firstNonEmpty(req.Artist, tags.Artist))
	if err != nil {
		return nil, err
	}
	albumTitle := firstNonEmpty(req.Album, tags.Album, DefaultAlbum)

	duration := EstimateDuration(audioInfo.Size())
	if d, err := s.extractor.GetDuration(req.AudioPath); err == nil && d > 0 {
		duration = int(math.Round(d.Seconds()))
	} else if err != nil {
		s.logger.Debug("длительность оценена по размеру файла", "file", req.AudioPath, "err", err)
	}

	audioURL, err := s.uploadObject(ctx, req.AudioPath, s.audioBucket, audioInfo.Size(), progress)
	if err != nil {
		return nil, err
	}
	coverURL, err := s.uploadObject(ctx, req.CoverPath, s.coverBucket, 0, nil)
	if err != nil {
		s.cleanup(audioURL, "")
		return nil, err
	}

	album, err := s.library.EnsureAlbum(ctx, albumTitle, artist, coverURL)
	if err != nil {
		s.cleanup(audioURL, coverURL)
		return nil, fmt.Errorf("ошибка создания альбома: %w", err)
	}

	track := &data.Track{
		Title:    title,
		Artist:   artist,
		AlbumID:  album.ID,
		Duration: duration,
		AudioURL: audioURL,
		CoverURL: coverURL,
		Genre:    firstNonEmpty(req.Genre, tags.Genre),
		Language: strings.TrimSpace(req.Language),
		Explicit: req.Explicit,
		FileSize: audioInfo.Size(),
	}
	if err := s.library.AddTrack(ctx, track); err != nil {
		s.cleanup(audioURL, coverURL)
		return nil, fmt.Errorf("ошибка сохранения трека: %w", err)
	}

	s.logger.Info("трек опубликован", "id", track.ID, "title", track.Title, "artist", track.Artist)
	return track, nil
}

// Delete удаляет трек из каталога и его файлы из хранилища.
// Ошибки удаления файлов только логируются.
func (s *Service) Delete(ctx context.Context, id string) (*data.Track, error) {
	track, err := s.library.DeleteTrack(ctx, id)
	if err != nil {
		return nil, err
	}
	s.removeObjects(ctx, track.AudioURL, track.CoverURL)
	return track, nil
}

func (s *Service) resolveArtist(ctx context.Context, given string) (string, error) {
	if s.account == nil {
		return firstNonEmpty(given, UnknownArtist), nil
	}

	user, err := s.account.CurrentUser(ctx)
	if errors.Is(err, auth.ErrNotSignedIn) {
		return firstNonEmpty(given, UnknownArtist), nil
	}
	if err != nil {
		return "", err
	}

	if profile, err := s.account.Profile(ctx); err == nil && strings.TrimSpace(profile.Username) != "" {
		return strings.TrimSpace(profile.Username), nil
	} else if err != nil {
		s.logger.Warn("профиль недоступен", "err", err)
	}
	return firstNonEmpty(given, user.Email, UnknownArtist), nil
}

func (s *Service) uploadObject(ctx context.Context, path, bucket string, size int64, progress func(int64)) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("ошибка открытия файла: %w", err)
	}
	defer file.Close()

	// Создаем reader с отслеживанием прогресса
	var reader io.Reader = file
	if progress != nil {
		reader = &ProgressReader{
			Reader:     file,
			Size:       size,
			OnProgress: progress,
		}
	}

	url, err := s.storage.UploadFile(ctx, reader, bucket, s3.ObjectKey(filepath.Base(path), s.now()))
	if err != nil {
		return "", fmt.Errorf("ошибка загрузки в S3: %w", err)
	}
	return url, nil
}

// cleanup убирает уже загруженные файлы после неудачной публикации
func (s *Service) cleanup(audioURL, coverURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.removeObjects(ctx, audioURL, coverURL)
}

func (s *Service) removeObjects(ctx context.Context, audioURL, coverURL string) {
	for _, obj := range []struct{ bucket, url string }{
		{s.audioBucket, audioURL},
		{s.coverBucket, coverURL},
	} {
		if obj.url == "" {
			continue
		}
		key, ok := s.storage.KeyFromURL(obj.bucket, obj.url)
		if !ok {
			s.logger.Debug("файл вне хранилища, пропускаем", "url", obj.url)
			continue
		}
		if err := s.storage.DeleteFile(ctx, obj.bucket, key); err != nil {
			s.logger.Warn("не удалось удалить файл", "bucket", obj.bucket, "key", key, "err", err)
		}
	}
}

// CheckCover проверяет, что обложка не меньше MinCoverSize по обеим сторонам
func CheckCover(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ошибка открытия обложки: %w", err)
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return fmt.Errorf("ошибка чтения обложки: %w", err)
	}
	if cfg.Width < MinCoverSize || cfg.Height < MinCoverSize {
		return fmt.Errorf("%w: %dx%d, минимум %dx%d", ErrCoverTooSmall, cfg.Width, cfg.Height, MinCoverSize, MinCoverSize)
	}
	return nil
}

// EstimateDuration оценивает длительность в секундах по размеру файла
func EstimateDuration(size int64) int {
	if d := int(math.Round(float64(size) / bytesPerSecond)); d > 0 {
		return d
	}
	return fallbackDuration
}

// ProgressReader структура для отслеживания прогресса чтения
type ProgressReader struct {
	io.Reader
	Size       int64
	OnProgress func(int64)
	bytesRead  int64
}

func (pr *ProgressReader) Read(p []byte) (n int, err error) {
	n, err = pr.Reader.Read(p)
	pr.bytesRead += int64(n)
	if pr.OnProgress != nil {
		pr.OnProgress(pr.bytesRead)
	}
	return n, err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// FormatFileSize форматирует размер файла в читаемом виде
func FormatFileSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
