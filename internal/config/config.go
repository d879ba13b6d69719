// Package config содержит функции для загрузки конфигурации приложения
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Значения по умолчанию
const (
	DefaultAudioBucket    = "audio"
	DefaultCoverBucket    = "covers"
	DefaultDatabasePath   = "~/.tunes.db"
	DefaultSessionPath    = "~/.tunes-session"
	DefaultDownloadDir    = "~/Downloads"
	DefaultLogLevel       = "info"
	DefaultHistoryLimit   = 50
	DefaultHistoryTimeout = 5 * time.Second
	DefaultStreamBufferKB = 256
)

// Config структура для хранения конфигурации приложения
type Config struct {
	AwsAccessKey   string `yaml:"aws_access_key"`
	AwsSecretKey   string `yaml:"aws_secret_key"`
	AwsRegion      string `yaml:"aws_region"`
	AwsEndpoint    string `yaml:"aws_endpoint"`
	AudioBucket    string `yaml:"audio_bucket"`
	CoverBucket    string `yaml:"cover_bucket"`
	DatabasePath   string `yaml:"database_path"`
	SessionPath    string `yaml:"session_path"`
	SessionSecret  string `yaml:"session_secret"`
	DownloadDir    string `yaml:"download_dir"`
	LogLevel       string `yaml:"log_level"`
	HistoryLimit   int    `yaml:"history_limit"`
	HistoryTimeout string `yaml:"history_timeout"`
	StreamBufferKB int    `yaml:"stream_buffer_kb"`
}

// Default возвращает конфигурацию со значениями по умолчанию (пути не раскрыты)
func Default() *Config {
	return &Config{
		AudioBucket:    DefaultAudioBucket,
		CoverBucket:    DefaultCoverBucket,
		DatabasePath:   DefaultDatabasePath,
		SessionPath:    DefaultSessionPath,
		DownloadDir:    DefaultDownloadDir,
		LogLevel:       DefaultLogLevel,
		HistoryLimit:   DefaultHistoryLimit,
		HistoryTimeout: DefaultHistoryTimeout.String(),
		StreamBufferKB: DefaultStreamBufferKB,
	}
}

// LoadConfig загружает конфигурацию приложения из указанного файла
func LoadConfig(filePath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	path := expandHome(filePath, home)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}

	config.applyDefaults()

	// Раскрываем тильду в путях
	config.DatabasePath = expandHome(config.DatabasePath, home)
	config.SessionPath = expandHome(config.SessionPath, home)
	config.DownloadDir = expandHome(config.DownloadDir, home)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyDefaults устанавливает значения по умолчанию, если они не заданы
func (c *Config) applyDefaults() {
	def := Default()
	if c.AudioBucket == "" {
		c.AudioBucket = def.AudioBucket
	}
	if c.CoverBucket == "" {
		c.CoverBucket = def.CoverBucket
	}
	if c.DatabasePath == "" {
		c.DatabasePath = def.DatabasePath
	}
	if c.SessionPath == "" {
		c.SessionPath = def.SessionPath
	}
	if c.DownloadDir == "" {
		c.DownloadDir = def.DownloadDir
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = def.HistoryLimit
	}
	if c.HistoryTimeout == "" {
		c.HistoryTimeout = def.HistoryTimeout
	}
	if c.StreamBufferKB == 0 {
		c.StreamBufferKB = def.StreamBufferKB
	}
}

// Validate проверяет корректность значений конфигурации
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("неизвестный уровень логирования: %s", c.LogLevel)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit должен быть положительным: %d", c.HistoryLimit)
	}
	if c.StreamBufferKB <= 0 {
		return fmt.Errorf("stream_buffer_kb должен быть положительным: %d", c.StreamBufferKB)
	}
	if _, err := c.HistoryTimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// HistoryTimeoutDuration возвращает таймаут записи истории прослушиваний
func (c *Config) HistoryTimeoutDuration() (time.Duration, error) {
	if c.HistoryTimeout == "" {
		return DefaultHistoryTimeout, nil
	}
	d, err := time.ParseDuration(c.HistoryTimeout)
	if err != nil {
		return 0, fmt.Errorf("неверный history_timeout %q: %w", c.HistoryTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("history_timeout должен быть положительным: %s", c.HistoryTimeout)
	}
	return d, nil
}

// StreamBufferSize возвращает размер буфера потокового чтения в байтах
func (c *Config) StreamBufferSize() int {
	return c.StreamBufferKB * 1024
}

func expandHome(path, home string) string {
	return strings.Replace(path, "~", home, 1)
}
