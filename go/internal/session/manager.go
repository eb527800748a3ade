// Package session holds the signed-in identity and its persisted token.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mcdev12/subasta/go/internal/models"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrEmptyToken       = errors.New("auth response carried no token")
)

// AuthAPI is the slice of the REST client the manager drives
type AuthAPI interface {
	Login(ctx context.Context, req models.LoginRequest) (models.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) error
	RefreshToken(ctx context.Context) (models.AuthResponse, error)
	ValidateToken(ctx context.Context) (bool, error)
	Logout(ctx context.Context) error
}

// Manager owns the single session of this client.
// It never holds its lock across an API call, since the REST client reads
// the token and reports 401s back into the manager.
type Manager struct {
	api   AuthAPI
	store Store

	mu        sync.RWMutex
	session   models.Session
	listeners map[int]func()
	nextID    int
}

func NewManager(api AuthAPI, store Store) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{
		api:       api,
		store:     store,
		listeners: make(map[int]func()),
	}
}

// Initialize restores the persisted session. A restored token counts as
// authenticated straight away and is validated in the background.
func (m *Manager) Initialize(ctx context.Context) error {
	s, err := m.store.Load()
	if err != nil {
		return err
	}
	if s.Token == "" {
		return nil
	}

	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	log.Info().Str("username", s.User.Username).Msg("restored persisted session")

	go func() {
		if _, err := m.Validate(ctx); err != nil {
			log.Warn().Err(err).Msg("background token validation failed")
		}
	}()
	return nil
}

func (m *Manager) Login(ctx context.Context, email, password string) (models.User, error) {
	resp, err := m.api.Login(ctx, models.LoginRequest{Email: email, Password: password})
	if err != nil {
		return models.User{}, err
	}
	if resp.Token == "" {
		return models.User{}, ErrEmptyToken
	}

	s := resp.Session()
	if err := m.set(s); err != nil {
		return models.User{}, err
	}

	log.Info().Str("username", s.User.Username).Str("role", string(s.User.Role)).Msg("signed in")
	return s.User, nil
}

// Register creates the account and signs in with the same credentials
func (m *Manager) Register(ctx context.Context, req models.RegisterRequest) (models.User, error) {
	if err := m.api.Register(ctx, req); err != nil {
		return models.User{}, err
	}
	return m.Login(ctx, req.Email, req.Password)
}

// Refresh swaps the token for a fresh one, keeping the known user details
func (m *Manager) Refresh(ctx context.Context) error {
	if !m.IsAuthenticated() {
		return ErrNotAuthenticated
	}

	resp, err := m.api.RefreshToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}
	if resp.Token == "" {
		return ErrEmptyToken
	}

	m.mu.RLock()
	s := m.session
	m.mu.RUnlock()

	s.Token = resp.Token
	if resp.Username != "" {
		s.User.Username = resp.Username
	}
	if resp.Email != "" {
		s.User.Email = resp.Email
	}
	if resp.Role != "" {
		s.User.Role = models.Role(resp.Role)
	}
	return m.set(s)
}

// Validate asks the server whether the token is still good. A missing or
// rejected token signs the user out. Transport failures leave the session alone.
func (m *Manager) Validate(ctx context.Context) (bool, error) {
	if !m.IsAuthenticated() {
		return false, nil
	}

	ok, err := m.api.ValidateToken(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		log.Info().Msg("stored token rejected, signing out")
		m.clear()
		return false, nil
	}
	return true, nil
}

// Logout tells the server on a best-effort basis and always clears local state
func (m *Manager) Logout(ctx context.Context) {
	if m.IsAuthenticated() {
		if err := m.api.Logout(ctx); err != nil {
			log.Warn().Err(err).Msg("server logout failed, clearing local session anyway")
		}
	}
	m.clear()
}

// HandleUnauthorized is the global reaction to any 401
func (m *Manager) HandleUnauthorized() {
	if m.IsAuthenticated() {
		log.Warn().Msg("server rejected credentials, session cleared")
	}
	m.clear()
}

func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Token
}

func (m *Manager) IsAuthenticated() bool {
	return m.Token() != ""
}

func (m *Manager) User() (models.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.User, m.session.Token != ""
}

// HasRole reports whether the signed-in user holds role or a higher one
func (m *Manager) HasRole(role models.Role) bool {
	user, ok := m.User()
	if !ok {
		return false
	}
	return roleRank(user.Role) >= roleRank(role)
}

func roleRank(r models.Role) int {
	switch r {
	case models.RoleAdministrator:
		return 3
	case models.RoleModerator:
		return 2
	case models.RoleParticipant:
		return 1
	default:
		return 0
	}
}

// OnSignedOut registers fn to run whenever an authenticated session is cleared
func (m *Manager) OnSignedOut(fn func()) (cancel func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

func (m *Manager) set(s models.Session) error {
	if err := m.store.Save(s); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()
	return nil
}

// clear drops the session and notifies listeners once per signed-in session
func (m *Manager) clear() {
	m.mu.Lock()
	wasSignedIn := m.session.Token != ""
	m.session = models.Session{}
	listeners := make([]func(), 0, len(m.listeners))
	for id := 0; id < m.nextID; id++ {
		if fn, ok := m.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		log.Error().Err(err).Msg("failed to clear persisted session")
	}

	if !wasSignedIn {
		return
	}
	for _, fn := range listeners {
		fn()
	}
}
