// Package session holds the authenticated identity of one browser and the
// bearer token attached to its backend requests. Sessions are constructed by a
// Manager and passed explicitly to whatever needs them.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vbonduro/drakdex/internal/backend"
	"github.com/vbonduro/drakdex/internal/domain"
)

// Keys under which the session persists its state in client storage.
const (
	TokenKey   = "drakdex_token"
	ProfileKey = "user"
)

const (
	MinPasswordLen = 8

	loginFallback    = "Não foi possível entrar. Verifique email e senha."
	registerFallback = "Não foi possível criar a conta."
)

// storage is the subset of store.ClientStorage that sessions require.
type storage interface {
	Get(ctx context.Context, sessionID, key string) (string, bool, error)
	Set(ctx context.Context, sessionID, key, value string) error
	Delete(ctx context.Context, sessionID string, keys ...string) error
}

// AuthenticationError is a rejected login. Message is safe to show to users.
type AuthenticationError struct {
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string { return e.Message }

func (e *AuthenticationError) Unwrap() error { return e.Err }

type Manager struct {
	storage storage
	client  *backend.Client
	logger  *slog.Logger
	now     func() time.Time
}

func NewManager(storage storage, client *backend.Client, logger *slog.Logger) *Manager {
	return &Manager{
		storage: storage,
		client:  client,
		logger:  logger,
		now:     time.Now,
	}
}

// NewID returns a fresh opaque session identifier.
func NewID() string { return uuid.NewString() }

// Open initializes the session of one browser from client storage. When both
// the token and the profile snapshot are present (and the token has not
// expired) the session is authenticated.
func (m *Manager) Open(ctx context.Context, id string) (*Session, error) {
	s := &Session{id: id, mgr: m}

	token, hasToken, err := m.storage.Get(ctx, id, TokenKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}
	raw, hasProfile, err := m.storage.Get(ctx, id, ProfileKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	if !hasToken || !hasProfile {
		return s, nil
	}

	var profile domain.Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		m.logger.Warn("discarding unreadable profile snapshot", "session", id, "error", err)
		return s, m.forget(ctx, id)
	}
	if m.expired(token) {
		m.logger.Info("discarding expired token", "session", id)
		return s, m.forget(ctx, id)
	}

	s.token = token
	s.profile = &profile
	return s, nil
}

// expired reports whether token is a JWT whose exp claim has passed. Tokens
// that are not JWTs are opaque and never considered expired here.
func (m *Manager) expired(token string) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !claims.ExpiresAt.After(m.now())
}

func (m *Manager) forget(ctx context.Context, id string) error {
	if err := m.storage.Delete(ctx, id, TokenKey, ProfileKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

type Session struct {
	id  string
	mgr *Manager

	mu      sync.RWMutex
	token   string
	profile *domain.Profile
}

func (s *Session) ID() string { return s.id }

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile != nil && s.token != ""
}

// Profile returns the identity snapshot of an authenticated session.
func (s *Session) Profile() (domain.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return domain.Profile{}, false
	}
	return *s.profile, true
}

// Client returns the backend client for this session, carrying the bearer
// token when authenticated.
func (s *Session) Client() *backend.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mgr.client.WithBearer(s.token)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"senha"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Name     string `json:"nome"`
	Nickname string `json:"vulgo"`
}

// Login exchanges credentials for a token and persists the identity.
func (s *Session) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if err := validation.Validate(email, validation.Required.Error("Informe o email")); err != nil {
		return &AuthenticationError{Message: err.Error(), Err: err}
	}
	if err := validation.Validate(password, validation.Required.Error("Informe a senha")); err != nil {
		return &AuthenticationError{Message: err.Error(), Err: err}
	}

	var resp loginResponse
	err := s.mgr.client.Post(ctx, "/auth/login", loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			return &AuthenticationError{Message: backend.UserMessage(err, loginFallback), Err: err}
		}
		return fmt.Errorf("failed to log in: %w", err)
	}
	if resp.Token == "" {
		return &AuthenticationError{Message: loginFallback}
	}

	profile := domain.Profile{Name: resp.Name, Nickname: resp.Nickname}
	snapshot, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := s.mgr.storage.Set(ctx, s.id, TokenKey, resp.Token); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	if err := s.mgr.storage.Set(ctx, s.id, ProfileKey, string(snapshot)); err != nil {
		return fmt.Errorf("failed to persist profile: %w", err)
	}

	s.mu.Lock()
	s.token = resp.Token
	s.profile = &profile
	s.mu.Unlock()

	s.mgr.logger.Info("session logged in", "session", s.id, "nickname", profile.Nickname)
	return nil
}

// Registration is the new-account payload.
type Registration struct {
	Name     string `json:"nomeCompleto"`
	Nickname string `json:"vulgo"`
	Email    string `json:"email"`
	Password string `json:"senha"`
}

func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required.Error("Informe o nome completo")),
		validation.Field(&r.Nickname, validation.Required.Error("Informe o vulgo")),
		validation.Field(&r.Email,
			validation.Required.Error("Informe o email"),
			is.EmailFormat.Error("Email inválido"),
		),
		validation.Field(&r.Password,
			validation.Required.Error("Informe a senha"),
			validation.RuneLength(MinPasswordLen, 0).Error("A senha precisa de pelo menos 8 caracteres!"),
		),
	)
}

// Register creates an account. It does not log the caller in.
func (s *Session) Register(ctx context.Context, r Registration) error {
	r.Name = strings.TrimSpace(r.Name)
	r.Nickname = strings.TrimSpace(r.Nickname)
	r.Email = strings.TrimSpace(r.Email)
	if err := r.Validate(); err != nil {
		return err
	}
	if err := s.mgr.client.Post(ctx, "/auth/register", r, nil); err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}
	s.mgr.logger.Info("account registered", "session", s.id, "nickname", r.Nickname)
	return nil
}

// RegisterMessage is the notification text for a failed Register.
func RegisterMessage(err error) string {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		keys := make([]string, 0, len(verrs))
		for k := range verrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		msgs := make([]string, 0, len(keys))
		for _, k := range keys {
			msgs = append(msgs, verrs[k].Error())
		}
		return strings.Join(msgs, ". ")
	}
	return backend.UserMessage(err, registerFallback)
}

// Logout clears the persisted token and profile; later requests carry no
// credential.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.profile = nil
	s.mu.Unlock()

	if err := s.mgr.forget(ctx, s.id); err != nil {
		return err
	}
	s.mgr.logger.Info("session logged out", "session", s.id)
	return nil
}
