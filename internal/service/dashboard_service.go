package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vbonduro/drakdex/internal/catalog"
	"github.com/vbonduro/drakdex/internal/compendium"
	"github.com/vbonduro/drakdex/internal/domain"
	"github.com/vbonduro/drakdex/internal/navigation"
	"github.com/vbonduro/drakdex/internal/session"
)

// DashboardKey is the client storage key holding the navigation position.
const DashboardKey = "dashboard"

// sessionOpener is the subset of session.Manager that DashboardService requires.
type sessionOpener interface {
	Open(ctx context.Context, id string) (*session.Session, error)
}

// stateRepository is the subset of store.ClientStorage that DashboardService requires.
type stateRepository interface {
	Get(ctx context.Context, sessionID, key string) (string, bool, error)
	Set(ctx context.Context, sessionID, key, value string) error
}

type DashboardService struct {
	sessions   sessionOpener
	state      stateRepository
	loader     *catalog.Loader
	compendium compendium.Source
	dashboards *lru.Cache[string, *Dashboard]
	logger     *slog.Logger
}

func NewDashboardService(
	sessions sessionOpener,
	state stateRepository,
	loader *catalog.Loader,
	monsters compendium.Source,
	cacheSize int,
	logger *slog.Logger,
) (*DashboardService, error) {
	dashboards, err := lru.New[string, *Dashboard](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create dashboard cache: %w", err)
	}
	return &DashboardService{
		sessions:   sessions,
		state:      state,
		loader:     loader,
		compendium: monsters,
		dashboards: dashboards,
		logger:     logger,
	}, nil
}

// persisted is the JSON document stored under DashboardKey.
type persisted struct {
	Nav   navigation.State `json:"nav"`
	Scope domain.Scope     `json:"scope"`
}

// Open returns the live dashboard of the browser identified by sessionID,
// restoring it from client storage when it is not cached.
func (s *DashboardService) Open(ctx context.Context, sessionID string) (*Dashboard, error) {
	if d, ok := s.dashboards.Get(sessionID); ok {
		return d, nil
	}

	sess, err := s.sessions.Open(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	d := &Dashboard{
		id:      sessionID,
		svc:     s,
		session: sess,
		nav:     navigation.New(domain.CategoryCreature),
		scope:   domain.ScopePublic,
	}
	if sess.Authenticated() {
		d.scope = domain.ScopeMine
	}
	if err := s.restore(ctx, d); err != nil {
		s.logger.Warn("discarding saved dashboard", "session", sessionID, "error", err)
	}

	if prev, ok, _ := s.dashboards.PeekOrAdd(sessionID, d); ok {
		return prev, nil
	}
	s.logger.Debug("dashboard opened", "session", sessionID, "category", d.nav.Category, "scope", d.scope)
	return d, nil
}

func (s *DashboardService) restore(ctx context.Context, d *Dashboard) error {
	raw, ok, err := s.state.Get(ctx, d.id, DashboardKey)
	if err != nil || !ok {
		return err
	}
	var p persisted
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return fmt.Errorf("failed to decode dashboard: %w", err)
	}
	p.Nav.Normalize()
	d.nav = p.Nav
	if scope, err := domain.ParseScope(string(p.Scope)); err == nil {
		d.scope = scope
	}
	if d.scope == domain.ScopeMine && !d.session.Authenticated() {
		d.scope = domain.ScopePublic
		d.nav = navigation.New(d.nav.Category)
	}
	return nil
}

func (s *DashboardService) persist(ctx context.Context, sessionID string, p persisted) {
	data, err := json.Marshal(p)
	if err != nil {
		s.logger.Error("failed to encode dashboard", "session", sessionID, "error", err)
		return
	}
	if err := s.state.Set(ctx, sessionID, DashboardKey, string(data)); err != nil {
		s.logger.Warn("failed to persist dashboard", "session", sessionID, "error", err)
	}
}

// Monsters lists the compendium.
func (s *DashboardService) Monsters(ctx context.Context) ([]compendium.MonsterRef, error) {
	refs, err := s.compendium.List(ctx)
	if err != nil {
		return nil, &Failure{Text: "Não foi possível consultar o compêndio.", Err: err}
	}
	return refs, nil
}
