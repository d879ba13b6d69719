package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/hazadus/go-tunes/internal/auth"
	"github.com/hazadus/go-tunes/internal/config"
	"github.com/hazadus/go-tunes/internal/logging"
	"github.com/hazadus/go-tunes/internal/playback"
	"github.com/hazadus/go-tunes/internal/player"
	"github.com/hazadus/go-tunes/internal/s3"
	"github.com/hazadus/go-tunes/internal/store"
	"github.com/hazadus/go-tunes/internal/track"
	"github.com/hazadus/go-tunes/internal/uploader"
)

const (
	defaultConfigPath = "~/.tunes"
)

// Application содержит все зависимости приложения
type Application struct {
	Config   *config.Config
	Logger   *log.Logger
	Store    *store.Store
	Auth     *auth.Service
	Library  *track.Manager
	Uploader *uploader.Service

	playback *playback.Controller
	engine   *player.Player
}

// NewApplication создает и инициализирует новый экземпляр приложения
func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	logger, err := logging.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	secret, err := auth.ResolveSecret(cfg.SessionSecret, filepath.Join(filepath.Dir(cfg.SessionPath), ".tunes-key"))
	if err != nil {
		db.Close()
		return nil, err
	}
	authService := auth.NewService(db, cfg.SessionPath, secret, auth.WithLogger(logger))

	library := track.NewManager(db, authService,
		track.WithHistoryLimit(cfg.HistoryLimit),
		track.WithLogger(logger),
	)
	if err := library.Refresh(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка загрузки каталога: %w", err)
	}

	storage, err := s3.NewUploader(&s3.Config{
		Region:    cfg.AwsRegion,
		AccessKey: cfg.AwsAccessKey,
		SecretKey: cfg.AwsSecretKey,
		Endpoint:  cfg.AwsEndpoint,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка создания S3 uploader: %w", err)
	}

	return &Application{
		Config:  cfg,
		Logger:  logger,
		Store:   db,
		Auth:    authService,
		Library: library,
		Uploader: uploader.NewService(storage, library, authService,
			uploader.WithBuckets(cfg.AudioBucket, cfg.CoverBucket),
			uploader.WithLogger(logger),
		),
	}, nil
}

// Playback возвращает контроллер воспроизведения, создавая его при первом обращении.
// Цикл событий работает до отмены ctx.
func (app *Application) Playback(ctx context.Context) *playback.Controller {
	if app.playback != nil {
		return app.playback
	}

	timeout, err := app.Config.HistoryTimeoutDuration()
	if err != nil {
		timeout = config.DefaultHistoryTimeout
	}

	app.engine = player.NewPlayer(
		player.WithLogger(app.Logger),
		player.WithBufferSize(app.Config.StreamBufferSize()),
	)
	app.playback = playback.New(app.Library, app.engine, app.Library,
		playback.WithLogger(app.Logger),
		playback.WithHistoryTimeout(timeout),
	)

	go func() {
		if err := app.playback.Run(ctx); err != nil && ctx.Err() == nil {
			app.Logger.Error("цикл воспроизведения остановлен", "err", err)
		}
	}()
	return app.playback
}

// Close освобождает ресурсы приложения
func (app *Application) Close() error {
	if app.playback != nil {
		app.playback.Close()
	}
	if app.engine != nil {
		app.engine.Close()
	}
	return app.Store.Close()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Загружаем конфигурацию
	cfg, err := config.LoadConfig(defaultConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	app, err := NewApplication(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка инициализации: %v\n", err)
		os.Exit(1)
	}

	err = app.createRootCommand(ctx).ExecuteContext(ctx)
	app.Close()
	if err != nil {
		os.Exit(1)
	}
}
