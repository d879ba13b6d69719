// Package track содержит логику управления каталогом и активностью пользователя
package track

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/hazadus/go-tunes/internal/auth"
	"github.com/hazadus/go-tunes/internal/data"
	"github.com/hazadus/go-tunes/internal/logging"
	"github.com/hazadus/go-tunes/internal/store"
)

const (
	// DefaultHistoryLimit сколько последних прослушиваний держать в памяти
	DefaultHistoryLimit = 50
	// ArtistTopLimit сколько треков показывать на странице исполнителя
	ArtistTopLimit = 8
)

var timeNow = time.Now

// ErrEmptyName пустое название плейлиста
var ErrEmptyName = errors.New("название не может быть пустым")

// Identity определяет текущего пользователя
type Identity interface {
	CurrentUser(ctx context.Context) (*store.User, error)
}

// Manager управляет треками в приложении. Держит копию каталога в памяти
// и используется контроллером воспроизведения как каталог и история.
type Manager struct {
	store        *store.Store
	identity     Identity
	historyLimit int
	logger       *log.Logger

	// historyMu упорядочивает запись прослушивания и перечитывание истории
	historyMu sync.Mutex

	mu     sync.RWMutex
	albums []data.Album
	tracks []data.Track
	liked  map[string]struct{}
	recent []string
}

// Option настраивает менеджер
type Option func(*Manager)

// WithHistoryLimit задает размер истории прослушиваний
func WithHistoryLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.historyLimit = n
		}
	}
}

// WithLogger задает логгер
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = logging.Component(l, "library") }
}

// NewManager создает новый экземпляр Manager
func NewManager(s *store.Store, identity Identity, opts ...Option) *Manager {
	m := &Manager{
		store:        s,
		identity:     identity,
		historyLimit: DefaultHistoryLimit,
		logger:       logging.Component(nil, "library"),
		liked:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Refresh перечитывает альбомы, треки и активность текущего пользователя
func (m *Manager) Refresh(ctx context.Context) error {
	albums, err := m.store.Albums(ctx)
	if err != nil {
		return err
	}
	tracks, err := m.store.Songs(ctx)
	if err != nil {
		return err
	}

	liked := make(map[string]struct{})
	var recent []string

	user, err := m.currentUser(ctx)
	if err != nil {
		return err
	}
	if user != nil {
		ids, err := m.store.LikedSongIDs(ctx, user.ID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			liked[id] = struct{}{}
		}
		if recent, err = m.store.RecentlyPlayed(ctx, user.ID, m.historyLimit); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.albums = albums
	m.tracks = tracks
	m.liked = liked
	m.recent = recent
	return nil
}

// currentUser возвращает nil без ошибки, если вход не выполнен
func (m *Manager) currentUser(ctx context.Context) (*store.User, error) {
	if m.identity == nil {
		return nil, nil
	}
	user, err := m.identity.CurrentUser(ctx)
	if errors.Is(err, auth.ErrNotSignedIn) {
		return nil, nil
	}
	return user, err
}

// requireUser возвращает ErrNotSignedIn, если вход не выполнен
func (m *Manager) requireUser(ctx context.Context) (*store.User, error) {
	user, err := m.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, auth.ErrNotSignedIn
	}
	return user, nil
}

// ListTracks возвращает список всех треков, новые первыми
func (m *Manager) ListTracks() []data.Track {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.tracks)
}

// Albums возвращает альбомы, упорядоченные по названию
func (m *Manager) Albums() []data.Album {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.albums)
}

// Album возвращает альбом по ID или nil
func (m *Manager) Album(id string) *data.Album {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := lo.Find(m.albums, func(a data.Album) bool { return a.ID == id }); ok {
		return &a
	}
	return nil
}

// ResolveTrack возвращает трек по ID, при промахе обращаясь к базе
func (m *Manager) ResolveTrack(ctx context.Context, id string) (*data.Track, error) {
	m.mu.RLock()
	t, ok := lo.Find(m.tracks, func(t data.Track) bool { return t.ID == id })
	m.mu.RUnlock()
	if ok {
		return &t, nil
	}

	track, err := m.store.Song(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", data.ErrTrackNotFound, id)
	}
	return track, err
}

// Search ищет треки без учета регистра по названию, исполнителю и жанру
func (m *Manager) Search(query string) []data.Track {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return m.ListTracks()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Filter(m.tracks, func(t data.Track, _ int) bool {
		return strings.Contains(strings.ToLower(t.Title), q) ||
			strings.Contains(strings.ToLower(t.Artist), q) ||
			strings.Contains(strings.ToLower(t.Genre), q)
	})
}

// AlbumTracks возвращает треки альбома
func (m *Manager) AlbumTracks(albumID string) []data.Track {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Filter(m.tracks, func(t data.Track, _ int) bool { return t.AlbumID == albumID })
}

// ArtistTracks возвращает до ArtistTopLimit треков исполнителя
func (m *Manager) ArtistTracks(artist string) []data.Track {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tracks := lo.Filter(m.tracks, func(t data.Track, _ int) bool { return t.Artist == artist })
	if len(tracks) > ArtistTopLimit {
		tracks = tracks[:ArtistTopLimit]
	}
	return tracks
}

// Artists возвращает исполнителей каталога по алфавиту
func (m *Manager) Artists() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	artists := lo.Uniq(lo.Map(m.tracks, func(t data.Track, _ int) string { return t.Artist }))
	slices.Sort(artists)
	return artists
}

// DailyMix возвращает очередь из всех треков и трек, с которого начинается микс i
func (m *Manager) DailyMix(i int) (queue []string, start string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.tracks)
	if n == 0 {
		return nil, ""
	}
	queue = TrackIDs(m.tracks)
	return queue, queue[((i%n)+n)%n]
}

// IsLiked отмечен ли трек текущим пользователем
func (m *Manager) IsLiked(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.liked[id]
	return ok
}

// Liked возвращает понравившиеся треки
func (m *Manager) Liked() []data.Track {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Filter(m.tracks, func(t data.Track, _ int) bool {
		_, ok := m.liked[t.ID]
		return ok
	})
}

// ToggleLike переключает отметку трека и возвращает новое состояние
func (m *Manager) ToggleLike(ctx context.Context, id string) (bool, error) {
	user, err := m.requireUser(ctx)
	if err != nil {
		return false, err
	}

	if m.IsLiked(id) {
		if err := m.store.Unlike(ctx, user.ID, id); err != nil {
			return true, err
		}
		m.mu.Lock()
		delete(m.liked, id)
		m.mu.Unlock()
		return false, nil
	}

	if err := m.store.Like(ctx, user.ID, id); err != nil {
		return false, err
	}
	m.mu.Lock()
	m.liked[id] = struct{}{}
	m.mu.Unlock()
	return true, nil
}

// RecentlyPlayed возвращает последние прослушанные треки, новые первыми.
// Удаленные треки пропускаются.
func (m *Manager) RecentlyPlayed() []data.Track {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byID := lo.KeyBy(m.tracks, func(t data.Track) string { return t.ID })
	return lo.FilterMap(m.recent, func(id string, _ int) (data.Track, bool) {
		t, ok := byID[id]
		return t, ok
	})
}

// RecordPlay записывает прослушивание со временем at. Без входа ничего не делает.
// Параллельные вызовы выполняются по очереди, поэтому в памяти всегда
// остается список, прочитанный последним.
func (m *Manager) RecordPlay(ctx context.Context, trackID string, at time.Time) error {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()

	user, err := m.currentUser(ctx)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	if err := m.store.AddRecentlyPlayed(ctx, user.ID, trackID, at); err != nil {
		return err
	}

	recent, err := m.store.RecentlyPlayed(ctx, user.ID, m.historyLimit)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.recent = recent
	m.mu.Unlock()

	m.logger.Debug("прослушивание записано", "track", trackID, "user", user.ID)
	return nil
}

// CreatePlaylist создает плейлист текущего пользователя
func (m *Manager) CreatePlaylist(ctx context.Context, name string) (*data.Playlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	user, err := m.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return m.store.CreatePlaylist(ctx, user.ID, name)
}

// Playlists возвращает плейлисты текущего пользователя
func (m *Manager) Playlists(ctx context.Context) ([]data.Playlist, error) {
	user, err := m.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return m.store.Playlists(ctx, user.ID)
}

// EnsureAlbum находит или создает альбом и обновляет кэш
func (m *Manager) EnsureAlbum(ctx context.Context, title, artist, coverURL string) (*data.Album, error) {
	album, err := m.store.EnsureAlbum(ctx, title, artist, coverURL, timeNow())
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !lo.ContainsBy(m.albums, func(a data.Album) bool { return a.ID == album.ID }) {
		m.albums = append(m.albums, *album)
		slices.SortFunc(m.albums, func(a, b data.Album) int { return strings.Compare(a.Title, b.Title) })
	}
	return album, nil
}

// AddTrack сохраняет трек и добавляет его в начало списка
func (m *Manager) AddTrack(ctx context.Context, t *data.Track) error {
	if err := m.store.CreateSong(ctx, t); err != nil {
		return err
	}
	m.mu.Lock()
	m.tracks = append([]data.Track{*t}, m.tracks...)
	m.mu.Unlock()
	return nil
}

// DeleteTrack удаляет трек и возвращает его запись
func (m *Manager) DeleteTrack(ctx context.Context, id string) (*data.Track, error) {
	t, err := m.ResolveTrack(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.store.DeleteSong(ctx, id); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.tracks = lo.Reject(m.tracks, func(t data.Track, _ int) bool { return t.ID == id })
	delete(m.liked, id)
	m.recent = lo.Without(m.recent, id)
	m.mu.Unlock()
	return t, nil
}

// Export возвращает снимок каталога
func (m *Manager) Export() *data.Library {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &data.Library{
		Albums: slices.Clone(m.albums),
		Tracks: slices.Clone(m.tracks),
	}
}

// Import добавляет альбомы и треки снимка, пропуская уже существующие.
// Возвращает число добавленных треков.
func (m *Manager) Import(ctx context.Context, lib *data.Library) (int, error) {
	for i := range lib.Albums {
		if err := m.store.CreateAlbum(ctx, &lib.Albums[i]); err != nil && !errors.Is(err, store.ErrDuplicate) {
			return 0, err
		}
	}

	added := 0
	for i := range lib.Tracks {
		err := m.store.CreateSong(ctx, &lib.Tracks[i])
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		if err != nil {
			return added, err
		}
		added++
	}
	return added, m.Refresh(ctx)
}

// TrackIDs возвращает идентификаторы треков в том же порядке
func TrackIDs(tracks []data.Track) []string {
	return lo.Map(tracks, func(t data.Track, _ int) string { return t.ID })
}
