package services

import (
	"context"
	"crypto/subtle"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/tbourn/go-merchant-directory/internal/snapshot"
)

// Theme values.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Account is an admin login. PasswordHash is a bcrypt hash.
type Account struct {
	Username     string
	PasswordHash []byte
}

// Session is the signed-in admin, persisted under the "user" key.
type Session struct {
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthService checks admin credentials against a fixed account list and keeps
// the single active session plus the theme preference in the local snapshot.
type AuthService struct {
	accounts []Account
	store    *snapshot.Store
	log      zerolog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	session *Session
}

// NewAuthService restores the persisted session, if any.
func NewAuthService(ctx context.Context, accounts []Account, store *snapshot.Store, log zerolog.Logger) *AuthService {
	if store == nil {
		store = snapshot.New(nil, log)
	}
	s := &AuthService{
		accounts: accounts,
		store:    store,
		log:      log.With().Str("component", "auth").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.session = snapshot.Get[*Session](ctx, store, snapshot.KeyUser, nil)
	if s.session != nil && s.session.Token == "" {
		s.session = nil
	}
	return s
}

// Login verifies the credentials and starts a new session, replacing any
// previous one. Several accounts may share a username with different
// passwords.
func (s *AuthService) Login(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	matched := false
	for _, a := range s.accounts {
		if a.Username != username {
			continue
		}
		if bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)) == nil {
			matched = true
			break
		}
	}
	if !matched {
		s.log.Info().Str("username", username).Msg("login rejected")
		return Session{}, ErrInvalidCredentials
	}

	sess := Session{Username: username, Token: uuid.NewString(), CreatedAt: s.now()}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := snapshot.Set(ctx, s.store, snapshot.KeyUser, &sess); err != nil {
		return Session{}, err
	}
	s.session = &sess
	return sess, nil
}

// Logout ends the session and stores null under the "user" key.
func (s *AuthService) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := snapshot.Set[*Session](ctx, s.store, snapshot.KeyUser, nil); err != nil {
		return err
	}
	s.session = nil
	return nil
}

// Current returns the active session.
func (s *AuthService) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return Session{}, false
	}
	return *s.session, true
}

// Authenticate resolves a bearer token to the active session.
func (s *AuthService) Authenticate(token string) (Session, error) {
	sess, ok := s.Current()
	if !ok || token == "" || subtle.ConstantTimeCompare([]byte(sess.Token), []byte(token)) != 1 {
		return Session{}, ErrUnauthorized
	}
	return sess, nil
}

// Theme returns the stored theme, light by default.
func (s *AuthService) Theme(ctx context.Context) string {
	t := snapshot.Get(ctx, s.store, snapshot.KeyTheme, ThemeLight)
	if t != ThemeDark {
		return ThemeLight
	}
	return t
}

// SetTheme stores theme, which must be light or dark.
func (s *AuthService) SetTheme(ctx context.Context, theme string) error {
	theme = strings.ToLower(strings.TrimSpace(theme))
	if theme != ThemeLight && theme != ThemeDark {
		return ErrInvalidTheme
	}
	return snapshot.Set(ctx, s.store, snapshot.KeyTheme, theme)
}

// ToggleTheme switches between light and dark and returns the new value.
func (s *AuthService) ToggleTheme(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := ThemeDark
	if s.Theme(ctx) == ThemeDark {
		next = ThemeLight
	}
	if err := snapshot.Set(ctx, s.store, snapshot.KeyTheme, next); err != nil {
		return "", err
	}
	return next, nil
}
