package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hazadus/go-tunes/internal/data"
)

// Like отмечает трек как понравившийся. Повторный вызов ничего не меняет.
func (s *Store) Like(ctx context.Context, userID, songID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO likes (user_id, song_id, created_at) VALUES (?, ?, ?)`,
		userID, songID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("ошибка сохранения лайка: %w", err)
	}
	return nil
}

// Unlike снимает отметку
func (s *Store) Unlike(ctx context.Context, userID, songID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM likes WHERE user_id = ? AND song_id = ?`, userID, songID)
	if err != nil {
		return fmt.Errorf("ошибка удаления лайка: %w", err)
	}
	return nil
}

// LikedSongIDs возвращает ID понравившихся треков
func (s *Store) LikedSongIDs(ctx context.Context, userID string) ([]string, error) {
	return s.ids(ctx, `SELECT song_id FROM likes WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

// AddRecentlyPlayed записывает прослушивание
func (s *Store) AddRecentlyPlayed(ctx context.Context, userID, songID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recently_played (user_id, song_id, played_at) VALUES (?, ?, ?)`,
		userID, songID, at.UTC())
	if err != nil {
		return fmt.Errorf("ошибка записи прослушивания: %w", err)
	}
	return nil
}

// RecentlyPlayed возвращает ID последних limit прослушанных треков, новые первыми.
// Повторы сохраняются.
func (s *Store) RecentlyPlayed(ctx context.Context, userID string, limit int) ([]string, error) {
	return s.ids(ctx, `
		SELECT song_id FROM recently_played
		WHERE user_id = ?
		ORDER BY played_at DESC, id DESC
		LIMIT ?`, userID, limit)
}

// CreatePlaylist создает плейлист пользователя
func (s *Store) CreatePlaylist(ctx context.Context, ownerID, name string) (*data.Playlist, error) {
	p := &data.Playlist{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO playlists (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.Name, p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания плейлиста: %w", err)
	}
	return p, nil
}

// Playlists возвращает плейлисты пользователя
func (s *Store) Playlists(ctx context.Context, ownerID string) ([]data.Playlist, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, created_at FROM playlists WHERE owner_id = ? ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса плейлистов: %w", err)
	}
	defer rows.Close()

	var playlists []data.Playlist
	for rows.Next() {
		var p data.Playlist
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения плейлиста: %w", err)
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка перебора плейлистов: %w", err)
	}
	return playlists, nil
}

func (s *Store) ids(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка перебора строк: %w", err)
	}
	return ids, nil
}
