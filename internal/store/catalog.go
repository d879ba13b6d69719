package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hazadus/go-tunes/internal/data"
)

const songColumns = `id, title, artist, album_id, duration, audio_url, cover_url,
	genre, language, explicit, file_size, created_at`

// CreateSong добавляет трек. Пустые ID и CreatedAt заполняются.
func (s *Store) CreateSong(ctx context.Context, t *data.Track) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO songs (`+songColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Artist, nullable(t.AlbumID), t.Duration, t.AudioURL, t.CoverURL,
		t.Genre, t.Language, t.Explicit, t.FileSize, t.CreatedAt.UTC(),
	)
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("%w: трек %s", ErrDuplicate, t.ID)
		}
		return fmt.Errorf("ошибка добавления трека: %w", err)
	}
	return nil
}

// Song возвращает трек по ID
func (s *Store) Song(ctx context.Context, id string) (*data.Track, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+songColumns+` FROM songs WHERE id = ?`, id)
	t, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: трек %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения трека: %w", err)
	}
	return t, nil
}

// Songs возвращает все треки, новые первыми
func (s *Store) Songs(ctx context.Context) ([]data.Track, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+songColumns+` FROM songs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса треков: %w", err)
	}
	defer rows.Close()

	var tracks []data.Track
	for rows.Next() {
		t, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения трека: %w", err)
		}
		tracks = append(tracks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка перебора треков: %w", err)
	}
	return tracks, nil
}

// DeleteSong удаляет трек вместе с лайками и историей
func (s *Store) DeleteSong(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM songs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления трека: %w", err)
	}
	return checkAffected(res, "трек", id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSong(row scanner) (*data.Track, error) {
	var (
		t       data.Track
		albumID sql.NullString
	)
	err := row.Scan(&t.ID, &t.Title, &t.Artist, &albumID, &t.Duration, &t.AudioURL, &t.CoverURL,
		&t.Genre, &t.Language, &t.Explicit, &t.FileSize, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.AlbumID = albumID.String
	return &t, nil
}

// EnsureAlbum находит альбом по названию и исполнителю или создает его с годом из now
func (s *Store) EnsureAlbum(ctx context.Context, title, artist, coverURL string, now time.Time) (*data.Album, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, artist, year, cover_url FROM albums
		WHERE title = ? AND artist = ?
		ORDER BY rowid LIMIT 1`, title, artist)

	album, err := scanAlbum(row)
	if err == nil {
		return album, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ошибка поиска альбома: %w", err)
	}

	album = &data.Album{
		ID:       uuid.NewString(),
		Title:    title,
		Artist:   artist,
		Year:     now.Year(),
		CoverURL: coverURL,
	}
	if err := s.CreateAlbum(ctx, album); err != nil {
		return nil, err
	}
	return album, nil
}

// CreateAlbum добавляет альбом
func (s *Store) CreateAlbum(ctx context.Context, a *data.Album) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO albums (id, title, artist, year, cover_url) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Artist, a.Year, a.CoverURL)
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("%w: альбом %s", ErrDuplicate, a.ID)
		}
		return fmt.Errorf("ошибка добавления альбома: %w", err)
	}
	return nil
}

// Album возвращает альбом по ID
func (s *Store) Album(ctx context.Context, id string) (*data.Album, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, title, artist, year, cover_url FROM albums WHERE id = ?`, id)
	album, err := scanAlbum(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: альбом %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения альбома: %w", err)
	}
	return album, nil
}

// Albums возвращает альбомы, упорядоченные по названию
func (s *Store) Albums(ctx context.Context) ([]data.Album, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, artist, year, cover_url FROM albums ORDER BY title, id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса альбомов: %w", err)
	}
	defer rows.Close()

	var albums []data.Album
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения альбома: %w", err)
		}
		albums = append(albums, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка перебора альбомов: %w", err)
	}
	return albums, nil
}

func scanAlbum(row scanner) (*data.Album, error) {
	var a data.Album
	if err := row.Scan(&a.ID, &a.Title, &a.Artist, &a.Year, &a.CoverURL); err != nil {
		return nil, err
	}
	return &a, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
