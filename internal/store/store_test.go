package store

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/hazadus/go-tunes/internal/data"
)

// setupTestStore создает базу в памяти с примененными миграциями
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Ошибка открытия базы: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s *Store, email string) *User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), email, "hash")
	if err != nil {
		t.Fatalf("Ошибка создания пользователя: %v", err)
	}
	return u
}

func createTestSong(t *testing.T, s *Store, title string, created time.Time) *data.Track {
	t.Helper()
	song := &data.Track{
		Title:     title,
		Artist:    "Artist",
		Duration:  200,
		AudioURL:  "https://cdn.example.com/audio/" + title + ".mp3",
		CreatedAt: created,
	}
	if err := s.CreateSong(context.Background(), song); err != nil {
		t.Fatalf("Ошибка добавления трека: %v", err)
	}
	return song
}

func TestMigrations(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	// Повторный накат ничего не делает
	if err := migrate(ctx, s.db); err != nil {
		t.Fatalf("Повторный накат миграций: %v", err)
	}

	if err := s.Rollback(ctx); err != nil {
		t.Fatalf("Ошибка отката: %v", err)
	}
	if _, err := s.Songs(ctx); err == nil {
		t.Error("После отката таблица songs не должна существовать")
	}
	if err := s.Rollback(ctx); err == nil {
		t.Error("Ожидалась ошибка при откате без миграций")
	}

	if err := migrate(ctx, s.db); err != nil {
		t.Fatalf("Ошибка повторного наката: %v", err)
	}
	if _, err := s.Songs(ctx); err != nil {
		t.Errorf("После наката таблица songs должна существовать: %v", err)
	}
}

func TestSongs(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	older := createTestSong(t, s, "older", base)
	newer := createTestSong(t, s, "newer", base.Add(time.Hour))

	if older.ID == "" {
		t.Fatal("ID трека должен быть заполнен")
	}

	songs, err := s.Songs(ctx)
	if err != nil {
		t.Fatalf("Ошибка получения треков: %v", err)
	}
	if len(songs) != 2 || songs[0].ID != newer.ID || songs[1].ID != older.ID {
		t.Errorf("Ожидался порядок от новых к старым: %+v", songs)
	}

	got, err := s.Song(ctx, older.ID)
	if err != nil {
		t.Fatalf("Ошибка получения трека: %v", err)
	}
	if got.Title != "older" || got.Duration != 200 || !got.CreatedAt.Equal(base) {
		t.Errorf("Трек прочитан некорректно: %+v", got)
	}

	if err := s.CreateSong(ctx, &data.Track{ID: older.ID, Title: "dup", Artist: "A"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Ожидалась ErrDuplicate, получено %v", err)
	}

	if err := s.DeleteSong(ctx, older.ID); err != nil {
		t.Fatalf("Ошибка удаления: %v", err)
	}
	if _, err := s.Song(ctx, older.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Ожидалась ErrNotFound после удаления, получено %v", err)
	}
	if err := s.DeleteSong(ctx, older.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Повторное удаление: ожидалась ErrNotFound, получено %v", err)
	}
}

func TestSongWithAlbum(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	album, err := s.EnsureAlbum(ctx, "Single", "Artist", "", time.Now())
	if err != nil {
		t.Fatalf("Ошибка создания альбома: %v", err)
	}

	song := &data.Track{Title: "Song", Artist: "Artist", AlbumID: album.ID, Explicit: true, Genre: "rock"}
	if err := s.CreateSong(ctx, song); err != nil {
		t.Fatalf("Ошибка добавления трека: %v", err)
	}

	got, err := s.Song(ctx, song.ID)
	if err != nil {
		t.Fatalf("Ошибка получения трека: %v", err)
	}
	if got.AlbumID != album.ID || !got.Explicit || got.Genre != "rock" {
		t.Errorf("Поля трека прочитаны некорректно: %+v", got)
	}

	if err := s.CreateSong(ctx, &data.Track{Title: "Orphan", Artist: "A", AlbumID: "missing"}); err == nil {
		t.Error("Ожидалась ошибка внешнего ключа для несуществующего альбома")
	}
}

func TestEnsureAlbum(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	first, err := s.EnsureAlbum(ctx, "Blue", "Band", "https://cdn.example.com/covers/blue.jpg", now)
	if err != nil {
		t.Fatalf("Ошибка создания альбома: %v", err)
	}
	if first.Year != 2024 {
		t.Errorf("Ожидался год 2024, получено %d", first.Year)
	}

	same, err := s.EnsureAlbum(ctx, "Blue", "Band", "", now.AddDate(1, 0, 0))
	if err != nil {
		t.Fatalf("Ошибка поиска альбома: %v", err)
	}
	if same.ID != first.ID || same.CoverURL != first.CoverURL {
		t.Errorf("Ожидался существующий альбом %s, получено %+v", first.ID, same)
	}

	other, err := s.EnsureAlbum(ctx, "Blue", "Other Band", "", now)
	if err != nil {
		t.Fatalf("Ошибка создания альбома: %v", err)
	}
	if other.ID == first.ID {
		t.Error("Альбом другого исполнителя должен быть новым")
	}

	albums, err := s.Albums(ctx)
	if err != nil {
		t.Fatalf("Ошибка получения альбомов: %v", err)
	}
	if len(albums) != 2 {
		t.Errorf("Ожидалось 2 альбома, получено %d", len(albums))
	}

	if _, err := s.Album(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Ожидалась ErrNotFound, получено %v", err)
	}
}

func TestUsersAndProfiles(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	u := createTestUser(t, s, "Listener@Example.com ")
	if u.Email != "listener@example.com" {
		t.Errorf("Email должен быть нормализован: %q", u.Email)
	}

	if _, err := s.CreateUser(ctx, "listener@example.com", "other"); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Ожидалась ErrDuplicate, получено %v", err)
	}

	byEmail, err := s.UserByEmail(ctx, "LISTENER@example.com")
	if err != nil || byEmail.ID != u.ID {
		t.Fatalf("Пользователь не найден по email: %v", err)
	}
	if _, err := s.UserByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Ожидалась ErrNotFound, получено %v", err)
	}

	if _, err := s.Profile(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Профиль еще не создан: %v", err)
	}
	if err := s.SaveProfile(ctx, data.Profile{UserID: u.ID, Username: "dj"}); err != nil {
		t.Fatalf("Ошибка сохранения профиля: %v", err)
	}
	if err := s.SaveProfile(ctx, data.Profile{UserID: u.ID, Username: "dj2", DisplayName: "DJ"}); err != nil {
		t.Fatalf("Ошибка обновления профиля: %v", err)
	}

	p, err := s.Profile(ctx, u.ID)
	if err != nil {
		t.Fatalf("Ошибка чтения профиля: %v", err)
	}
	if p.Username != "dj2" || p.DisplayName != "DJ" {
		t.Errorf("Профиль не обновлен: %+v", p)
	}
}

func TestLikes(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	u := createTestUser(t, s, "a@example.com")
	song := createTestSong(t, s, "liked", time.Now())

	for i := 0; i < 2; i++ {
		if err := s.Like(ctx, u.ID, song.ID); err != nil {
			t.Fatalf("Ошибка лайка: %v", err)
		}
	}

	liked, err := s.LikedSongIDs(ctx, u.ID)
	if err != nil {
		t.Fatalf("Ошибка получения лайков: %v", err)
	}
	if !slices.Equal(liked, []string{song.ID}) {
		t.Errorf("Ожидался один лайк, получено %v", liked)
	}

	if err := s.Unlike(ctx, u.ID, song.ID); err != nil {
		t.Fatalf("Ошибка снятия лайка: %v", err)
	}
	liked, _ = s.LikedSongIDs(ctx, u.ID)
	if len(liked) != 0 {
		t.Errorf("Лайков не должно остаться: %v", liked)
	}
}

func TestRecentlyPlayed(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	u := createTestUser(t, s, "a@example.com")
	other := createTestUser(t, s, "b@example.com")
	a := createTestSong(t, s, "a", time.Now())
	b := createTestSong(t, s, "b", time.Now())

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	plays := []struct {
		user, song string
		at         time.Time
	}{
		{u.ID, a.ID, base},
		{u.ID, b.ID, base.Add(time.Minute)},
		{u.ID, a.ID, base.Add(2 * time.Minute)},
		{other.ID, b.ID, base.Add(3 * time.Minute)},
	}
	for _, p := range plays {
		if err := s.AddRecentlyPlayed(ctx, p.user, p.song, p.at); err != nil {
			t.Fatalf("Ошибка записи прослушивания: %v", err)
		}
	}

	recent, err := s.RecentlyPlayed(ctx, u.ID, 50)
	if err != nil {
		t.Fatalf("Ошибка получения истории: %v", err)
	}
	if !slices.Equal(recent, []string{a.ID, b.ID, a.ID}) {
		t.Errorf("Ожидалась история от новых к старым с повторами: %v", recent)
	}

	limited, _ := s.RecentlyPlayed(ctx, u.ID, 2)
	if !slices.Equal(limited, []string{a.ID, b.ID}) {
		t.Errorf("Лимит не применен: %v", limited)
	}
}

func TestDeleteSongCascades(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	u := createTestUser(t, s, "a@example.com")
	song := createTestSong(t, s, "gone", time.Now())

	if err := s.Like(ctx, u.ID, song.ID); err != nil {
		t.Fatalf("Ошибка лайка: %v", err)
	}
	if err := s.AddRecentlyPlayed(ctx, u.ID, song.ID, time.Now()); err != nil {
		t.Fatalf("Ошибка записи прослушивания: %v", err)
	}
	if err := s.DeleteSong(ctx, song.ID); err != nil {
		t.Fatalf("Ошибка удаления: %v", err)
	}

	liked, _ := s.LikedSongIDs(ctx, u.ID)
	recent, _ := s.RecentlyPlayed(ctx, u.ID, 10)
	if len(liked) != 0 || len(recent) != 0 {
		t.Errorf("Связанные записи должны удаляться: лайки %v, история %v", liked, recent)
	}
}

func TestPlaylists(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	u := createTestUser(t, s, "a@example.com")
	other := createTestUser(t, s, "b@example.com")

	for _, name := range []string{"Morning", "Evening"} {
		if _, err := s.CreatePlaylist(ctx, u.ID, name); err != nil {
			t.Fatalf("Ошибка создания плейлиста: %v", err)
		}
	}
	if _, err := s.CreatePlaylist(ctx, other.ID, "Foreign"); err != nil {
		t.Fatalf("Ошибка создания плейлиста: %v", err)
	}

	playlists, err := s.Playlists(ctx, u.ID)
	if err != nil {
		t.Fatalf("Ошибка получения плейлистов: %v", err)
	}
	if len(playlists) != 2 {
		t.Fatalf("Ожидалось 2 плейлиста, получено %d", len(playlists))
	}
	for _, p := range playlists {
		if p.OwnerID != u.ID {
			t.Errorf("Чужой плейлист в выдаче: %+v", p)
		}
	}

	if _, err := s.CreatePlaylist(ctx, "missing", "x"); err == nil {
		t.Error("Ожидалась ошибка для несуществующего владельца")
	}
}
