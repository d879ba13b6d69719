// Package data содержит доменные записи каталога и файл библиотеки в формате YAML
package data

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrTrackNotFound возвращается, когда трек отсутствует в библиотеке
var ErrTrackNotFound = errors.New("трек не найден")

// Track описывает трек каталога. После загрузки не изменяется.
type Track struct {
	ID        string    `yaml:"id"`
	Title     string    `yaml:"title"`
	Artist    string    `yaml:"artist"`
	AlbumID   string    `yaml:"album_id,omitempty"`
	Duration  int       `yaml:"duration"`            // Длина трека в секундах
	AudioURL  string    `yaml:"audio_url"`           // URL аудиофайла в хранилище
	CoverURL  string    `yaml:"cover_url,omitempty"` // URL обложки
	Genre     string    `yaml:"genre,omitempty"`
	Language  string    `yaml:"language,omitempty"`
	Explicit  bool      `yaml:"explicit,omitempty"`
	FileSize  int64     `yaml:"file_size,omitempty"` // Размер файла в байтах
	CreatedAt time.Time `yaml:"created_at"`
}

// Album описывает альбом
type Album struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Artist   string `yaml:"artist"`
	Year     int    `yaml:"year"`
	CoverURL string `yaml:"cover_url,omitempty"`
}

// Playlist описывает плейлист пользователя
type Playlist struct {
	ID        string
	OwnerID   string
	Name      string
	CreatedAt time.Time
}

// Profile содержит публичные данные пользователя
type Profile struct {
	UserID      string
	Username    string
	DisplayName string
}

// Library снимок каталога для экспорта и импорта
type Library struct {
	Albums []Album `yaml:"albums"`
	Tracks []Track `yaml:"tracks"`
}

// NewLibrary создает пустую библиотеку
func NewLibrary() *Library {
	return &Library{
		Albums: make([]Album, 0),
		Tracks: make([]Track, 0),
	}
}

// LoadData загружает библиотеку из файла
func (l *Library) LoadData(filePath string) error {
	path, err := expandPath(filePath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		// Если файл не найден, инициализируем пустыми данными
		if os.IsNotExist(err) {
			*l = *NewLibrary()
			return nil
		}
		return fmt.Errorf("ошибка чтения файла библиотеки: %w", err)
	}
	if len(data) == 0 {
		*l = *NewLibrary()
		return nil
	}
	if err := yaml.Unmarshal(data, l); err != nil {
		return fmt.Errorf("ошибка разбора библиотеки: %w", err)
	}
	return nil
}

// SaveData сохраняет библиотеку в файл
func (l *Library) SaveData(filePath string) error {
	path, err := expandPath(filePath)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(l)
	if err != nil {
		return fmt.Errorf("ошибка сериализации библиотеки: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("ошибка записи файла библиотеки: %w", err)
	}
	return nil
}

// TrackByID возвращает трек по ID
func (l *Library) TrackByID(id string) (*Track, error) {
	for i := range l.Tracks {
		if l.Tracks[i].ID == id {
			return &l.Tracks[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTrackNotFound, id)
}

// AlbumByID возвращает альбом по ID или nil
func (l *Library) AlbumByID(id string) *Album {
	for i := range l.Albums {
		if l.Albums[i].ID == id {
			return &l.Albums[i]
		}
	}
	return nil
}

func expandPath(filePath string) (string, error) {
	if !strings.HasPrefix(filePath, "~") {
		return filePath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return strings.Replace(filePath, "~", home, 1), nil
}
