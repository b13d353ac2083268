// Package catalog translates a navigation position into one backend read and
// filters the result locally by name.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/text/cases"

	"github.com/vbonduro/drakdex/internal/domain"
)

// reader is the subset of backend.Client the loader requires.
type reader interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Authenticated() bool
}

// Request identifies what to load: a folder when FolderID is set, otherwise
// the root listing of Category in Scope.
type Request struct {
	Category domain.Category
	Scope    domain.Scope
	FolderID *int64
}

// Content is one loaded listing in backend order.
type Content struct {
	Folders   []domain.Folder
	Creatures []domain.Creature
	Items     []domain.Item
	Spells    []domain.Spell
	NPCs      []domain.NPC
}

// Len is the total number of folders and entities.
func (c Content) Len() int {
	return len(c.Folders) + len(c.Creatures) + len(c.Items) + len(c.Spells) + len(c.NPCs)
}

// ForCategory keeps only the folders and entities belonging to category.
func (c Content) ForCategory(category domain.Category) Content {
	out := Content{}
	for _, f := range c.Folders {
		if f.Category == "" || f.Category == category {
			out.Folders = append(out.Folders, f)
		}
	}
	switch category {
	case domain.CategoryCreature:
		out.Creatures = c.Creatures
	case domain.CategoryItem:
		out.Items = c.Items
	case domain.CategorySpell:
		out.Spells = c.Spells
	case domain.CategoryNPC:
		out.NPCs = c.NPCs
	}
	return out
}

type Loader struct {
	logger *slog.Logger
}

func NewLoader(logger *slog.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load issues exactly one read for req, or none when req asks for the
// caller's own folders without a credential.
func (l *Loader) Load(ctx context.Context, client reader, req Request) (Content, error) {
	if req.FolderID != nil {
		return l.folder(ctx, client, *req.FolderID)
	}
	if req.Scope == domain.ScopeMine && !client.Authenticated() {
		l.logger.Debug("skipping owner listing without credential", "category", req.Category)
		return Content{}, nil
	}
	folders, err := l.roots(ctx, client, req.Category, req.Scope)
	if err != nil {
		return Content{}, err
	}
	return Content{Folders: folders}, nil
}

func rootPath(scope domain.Scope) string {
	if scope == domain.ScopePublic {
		return "/api/pastas/publicas"
	}
	return "/api/pastas/meus-bestiarios"
}

func (l *Loader) roots(ctx context.Context, client reader, category domain.Category, scope domain.Scope) ([]domain.Folder, error) {
	var folders []domain.Folder
	query := url.Values{"tipo": {string(category)}}
	if err := client.Get(ctx, rootPath(scope), query, &folders); err != nil {
		return nil, fmt.Errorf("failed to list %s folders: %w", scope, err)
	}
	return folders, nil
}

func (l *Loader) folder(ctx context.Context, client reader, id int64) (Content, error) {
	var f domain.Folder
	if err := client.Get(ctx, domain.KindFolder.ResourcePath(id), nil, &f); err != nil {
		return Content{}, fmt.Errorf("failed to load folder %d: %w", id, err)
	}
	return Content{
		Folders:   f.Subfolders,
		Creatures: f.Creatures,
		Items:     f.Items,
		Spells:    f.Spells,
		NPCs:      f.NPCs,
	}, nil
}

// Filter keeps the folders and entities whose name contains term under
// Unicode case folding. An empty term returns c unchanged.
func Filter(c Content, term string) Content {
	term = strings.TrimSpace(term)
	if term == "" {
		return c
	}
	fold := cases.Fold()
	needle := fold.String(term)
	match := func(name string) bool {
		return strings.Contains(fold.String(name), needle)
	}
	return Content{
		Folders:   keep(c.Folders, match),
		Creatures: keep(c.Creatures, match),
		Items:     keep(c.Items, match),
		Spells:    keep(c.Spells, match),
		NPCs:      keep(c.NPCs, match),
	}
}

type named interface {
	DisplayName() string
}

func keep[T named](in []T, match func(string) bool) []T {
	var out []T
	for _, v := range in {
		if match(v.DisplayName()) {
			out = append(out, v)
		}
	}
	return out
}

// EmptyState tells the view which empty placeholder to show.
type EmptyState int

const (
	EmptyNone EmptyState = iota
	EmptyNoResults
	EmptyNoMatches
)

// NoResults reports that nothing is stored at the current position.
func (e EmptyState) NoResults() bool { return e == EmptyNoResults }

// NoMatches reports that records exist but none survive the search term.
func (e EmptyState) NoMatches() bool { return e == EmptyNoMatches }

// Classify compares loaded content with what survives term.
func Classify(loaded Content, term string) EmptyState {
	if Filter(loaded, term).Len() > 0 {
		return EmptyNone
	}
	if loaded.Len() == 0 || strings.TrimSpace(term) == "" {
		return EmptyNoResults
	}
	return EmptyNoMatches
}
