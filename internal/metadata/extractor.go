// Package metadata читает теги и длительность загружаемых треков
package metadata

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/gopxl/beep/mp3"
)

// nameSeparator разделяет исполнителя и название в имени файла
const nameSeparator = " - "

// TrackMetadata поля трека, которые удалось узнать до загрузки.
// Tagged ложно, если исполнитель и название взяты из имени файла.
type TrackMetadata struct {
	Artist string
	Title  string
	Album  string
	Genre  string
	Year   int
	Number int
	Format string
	Tagged bool
}

// Empty сообщает, что нет ни исполнителя, ни названия
func (m TrackMetadata) Empty() bool {
	return strings.TrimSpace(m.Artist) == "" && strings.TrimSpace(m.Title) == ""
}

// FileInfo размер и длительность аудиофайла
type FileInfo struct {
	Size     int64
	Duration time.Duration
}

// Extractor читает метаданные для формы и сервиса загрузки
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractFromReader читает теги с начала reader. Если тегов нет или в них
// пусто, исполнитель и название разбираются из source вида "Artist - Title.mp3".
func (e *Extractor) ExtractFromReader(reader io.ReadSeeker, source string) TrackMetadata {
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return parseFileName(source)
	}
	tags, err := tag.ReadFrom(reader)
	if err != nil {
		return parseFileName(source)
	}

	m := fromTags(tags)
	if m.Empty() {
		byName := parseFileName(source)
		m.Artist, m.Title, m.Tagged = byName.Artist, byName.Title, false
	}
	return m
}

// ExtractFromFile как ExtractFromReader, но по пути. Недоступный файл
// разбирается только по имени.
func (e *Extractor) ExtractFromFile(filePath string) TrackMetadata {
	f, err := os.Open(filePath)
	if err != nil {
		return parseFileName(filePath)
	}
	defer f.Close()
	return e.ExtractFromReader(f, filePath)
}

// GetDuration декодирует MP3 и возвращает его длительность
func (e *Extractor) GetDuration(filePath string) (time.Duration, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("ошибка открытия файла: %w", err)
	}
	defer f.Close()
	return decodeDuration(f)
}

// GetFileInfo возвращает размер и длительность, открывая файл один раз
func (e *Extractor) GetFileInfo(filePath string) (*FileInfo, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения информации о файле: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения информации о файле: %w", err)
	}
	d, err := decodeDuration(f)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения длительности: %w", err)
	}
	return &FileInfo{Size: stat.Size(), Duration: d}, nil
}

func decodeDuration(r io.ReadCloser) (time.Duration, error) {
	stream, format, err := mp3.Decode(r)
	if err != nil {
		return 0, fmt.Errorf("ошибка декодирования MP3: %w", err)
	}
	defer stream.Close()
	return format.SampleRate.D(stream.Len()), nil
}

func fromTags(tags tag.Metadata) TrackMetadata {
	number, _ := tags.Track()
	return TrackMetadata{
		Artist: strings.TrimSpace(tags.Artist()),
		Title:  strings.TrimSpace(tags.Title()),
		Album:  strings.TrimSpace(tags.Album()),
		Genre:  strings.TrimSpace(tags.Genre()),
		Year:   tags.Year(),
		Number: number,
		Format: string(tags.FileType()),
		Tagged: true,
	}
}

// parseFileName делит имя по первому " - ". Без разделителя исполнитель
// остается пустым, его выберет вызывающий код.
func parseFileName(source string) TrackMetadata {
	base := filepath.Base(source)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	artist, title, ok := strings.Cut(name, nameSeparator)
	if !ok {
		return TrackMetadata{Title: name}
	}
	return TrackMetadata{
		Artist: strings.TrimSpace(artist),
		Title:  strings.TrimSpace(title),
	}
}
