// Package auth отвечает за учетные записи и сессию пользователя на этом устройстве
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazadus/go-tunes/internal/data"
	"github.com/hazadus/go-tunes/internal/logging"
	"github.com/hazadus/go-tunes/internal/store"
)

const (
	// DefaultSessionTTL срок жизни сессии
	DefaultSessionTTL = 30 * 24 * time.Hour
	minPasswordLength = 6
	issuer            = "go-tunes"
)

var (
	ErrInvalidCredentials = errors.New("неверный email или пароль")
	ErrUserExists         = errors.New("пользователь уже существует")
	ErrNotSignedIn        = errors.New("вход не выполнен")
	ErrInvalidToken       = errors.New("недействительный токен сессии")
	ErrInvalidInput       = errors.New("некорректные данные учетной записи")
)

// Users хранилище учетных записей
type Users interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*store.User, error)
	UserByEmail(ctx context.Context, email string) (*store.User, error)
	UserByID(ctx context.Context, id string) (*store.User, error)
	SaveProfile(ctx context.Context, p data.Profile) error
	Profile(ctx context.Context, userID string) (*data.Profile, error)
}

// Session сохраненная сессия
type Session struct {
	UserID    string
	Email     string
	Token     string
	ExpiresAt time.Time
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Service регистрирует пользователей и хранит сессию в файле
type Service struct {
	users       Users
	sessionPath string
	secret      []byte
	ttl         time.Duration
	cost        int
	now         func() time.Time
	logger      *log.Logger
}

// Option настраивает сервис
type Option func(*Service)

// WithLogger задает логгер
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = logging.Component(l, "auth") }
}

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBcryptCost задает стоимость хеширования паролей
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// NewService создает сервис. secret подписывает токен сессии.
func NewService(users Users, sessionPath string, secret []byte, opts ...Option) *Service {
	s := &Service{
		users:       users,
		sessionPath: sessionPath,
		secret:      secret,
		ttl:         DefaultSessionTTL,
		cost:        bcrypt.DefaultCost,
		now:         time.Now,
		logger:      logging.Component(nil, "auth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignUp создает учетную запись с профилем и сразу выполняет вход
func (s *Service) SignUp(ctx context.Context, email, password, username string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email %q", ErrInvalidInput, email)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: пароль короче %d символов", ErrInvalidInput, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}

	user, err := s.users.CreateUser(ctx, email, string(hash))
	if errors.Is(err, store.ErrDuplicate) {
		return nil, fmt.Errorf("%w: %s", ErrUserExists, email)
	}
	if err != nil {
		return nil, err
	}

	if err := s.users.SaveProfile(ctx, data.Profile{UserID: user.ID, Username: strings.TrimSpace(username)}); err != nil {
		return nil, err
	}

	s.logger.Info("пользователь зарегистрирован", "user", user.ID)
	return s.startSession(user)
}

// SignIn проверяет пароль и сохраняет сессию
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.startSession(user)
}

// SignOut удаляет сохраненную сессию
func (s *Service) SignOut() error {
	if err := os.Remove(s.sessionPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления сессии: %w", err)
	}
	return nil
}

// CurrentUser возвращает пользователя сохраненной сессии или ErrNotSignedIn
func (s *Service) CurrentUser(ctx context.Context) (*store.User, error) {
	raw, err := os.ReadFile(s.sessionPath)
	if os.IsNotExist(err) {
		return nil, ErrNotSignedIn
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения сессии: %w", err)
	}

	c, err := s.parse(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotSignedIn, err)
	}

	user, err := s.users.UserByID(ctx, c.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: учетная запись удалена", ErrNotSignedIn)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Profile возвращает профиль текущего пользователя. Отсутствующий профиль не ошибка.
func (s *Service) Profile(ctx context.Context) (*data.Profile, error) {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.users.Profile(ctx, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		return &data.Profile{UserID: user.ID}, nil
	}
	return p, err
}

// UpdateProfile меняет имя пользователя и отображаемое имя
func (s *Service) UpdateProfile(ctx context.Context, username, displayName string) error {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return err
	}
	return s.users.SaveProfile(ctx, data.Profile{
		UserID:      user.ID,
		Username:    strings.TrimSpace(username),
		DisplayName: strings.TrimSpace(displayName),
	})
}

func (s *Service) startSession(user *store.User) (*Session, error) {
	now := s.now()
	expires := now.Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("ошибка подписи токена: %w", err)
	}

	if err := os.WriteFile(s.sessionPath, []byte(signed), 0600); err != nil {
		return nil, fmt.Errorf("ошибка сохранения сессии: %w", err)
	}

	return &Session{UserID: user.ID, Email: user.Email, Token: signed, ExpiresAt: expires}, nil
}

func (s *Service) parse(token string) (*claims, error) {
	c := &claims{}
	_, err := jwt.ParseWithClaims(token, c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return c, nil
}

// ResolveSecret возвращает секрет из конфигурации, а если он пуст,
// читает или создает случайный ключ в файле keyPath
func ResolveSecret(configured, keyPath string) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}

	raw, err := os.ReadFile(keyPath)
	if err == nil && len(strings.TrimSpace(string(raw))) > 0 {
		return hex.DecodeString(strings.TrimSpace(string(raw)))
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка чтения ключа сессии: %w", err)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("ошибка генерации ключа сессии: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(key)), 0600); err != nil {
		return nil, fmt.Errorf("ошибка сохранения ключа сессии: %w", err)
	}
	return key, nil
}
