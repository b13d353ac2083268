package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/drakdex/internal/domain"
)

// stubReader answers GETs from canned JSON bodies keyed by path.
type stubReader struct {
	authenticated bool
	responses     map[string]string
	errs          map[string]error

	mu    sync.Mutex
	calls []string
}

func (s *stubReader) Get(_ context.Context, path string, query url.Values, out any) error {
	s.mu.Lock()
	call := path
	if len(query) > 0 {
		call += "?" + query.Encode()
	}
	s.calls = append(s.calls, call)
	s.mu.Unlock()

	if err := s.errs[path]; err != nil {
		return err
	}
	body, ok := s.responses[path]
	if !ok {
		return errors.New("no canned response for " + path)
	}
	return json.Unmarshal([]byte(body), out)
}

func (s *stubReader) Authenticated() bool { return s.authenticated }

func newTestLoader() *Loader {
	return NewLoader(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func ptr(v int64) *int64 { return &v }

func TestLoadRootListings(t *testing.T) {
	tests := []struct {
		name  string
		scope domain.Scope
		call  string
	}{
		{"mine", domain.ScopeMine, "/api/pastas/meus-bestiarios?tipo=ITEM"},
		{"public", domain.ScopePublic, "/api/pastas/publicas?tipo=ITEM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &stubReader{
				authenticated: true,
				responses: map[string]string{
					"/api/pastas/meus-bestiarios": `[{"id":1,"nome":"Armas","categoria":"ITEM"}]`,
					"/api/pastas/publicas":        `[{"id":1,"nome":"Armas","categoria":"ITEM"}]`,
				},
			}
			c, err := newTestLoader().Load(context.Background(), r, Request{Category: domain.CategoryItem, Scope: tt.scope})
			require.NoError(t, err)
			assert.Equal(t, []string{tt.call}, r.calls)
			require.Len(t, c.Folders, 1)
			assert.Equal(t, "Armas", c.Folders[0].Name)
		})
	}
}

func TestLoadMineWithoutCredentialSkipsRequest(t *testing.T) {
	r := &stubReader{}
	c, err := newTestLoader().Load(context.Background(), r, Request{Category: domain.CategoryCreature, Scope: domain.ScopeMine})
	require.NoError(t, err)
	assert.Empty(t, r.calls)
	assert.Zero(t, c.Len())
}

func TestLoadPublicWithoutCredential(t *testing.T) {
	r := &stubReader{responses: map[string]string{"/api/pastas/publicas": `[]`}}
	_, err := newTestLoader().Load(context.Background(), r, Request{Category: domain.CategoryItem, Scope: domain.ScopePublic})
	require.NoError(t, err)
	assert.Equal(t, []string{"/api/pastas/publicas?tipo=ITEM"}, r.calls)
}

func TestLoadFolderExpansion(t *testing.T) {
	r := &stubReader{responses: map[string]string{
		"/api/pastas/42": `{
			"id": 42, "nome": "Dragons",
			"subPastas": [{"id": 99, "nome": "Ancient"}],
			"criaturas": [{"id": 1, "nome": "Smaug", "tipo": "Dragão", "nivel": 20}],
			"itens": [{"id": 5, "nome": "Escama", "tipo": "TESOURO", "raridade": "RARO"}]
		}`,
	}}
	c, err := newTestLoader().Load(context.Background(), r, Request{
		Category: domain.CategoryCreature,
		Scope:    domain.ScopeMine,
		FolderID: ptr(42),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/api/pastas/42"}, r.calls)
	assert.Len(t, c.Folders, 1)
	assert.Len(t, c.Creatures, 1)
	assert.Len(t, c.Items, 1)

	shown := c.ForCategory(domain.CategoryCreature)
	assert.Len(t, shown.Creatures, 1)
	assert.Empty(t, shown.Items)
	assert.Len(t, shown.Folders, 1)
}

func TestLoadFailureIsReturned(t *testing.T) {
	boom := errors.New("boom")
	r := &stubReader{authenticated: true, errs: map[string]error{"/api/pastas/meus-bestiarios": boom}}
	_, err := newTestLoader().Load(context.Background(), r, Request{Category: domain.CategorySpell, Scope: domain.ScopeMine})
	require.ErrorIs(t, err, boom)
}

func sample() Content {
	return Content{
		Folders:   []domain.Folder{{ID: 1, Name: "Dragões"}, {ID: 2, Name: "Goblins"}},
		Creatures: []domain.Creature{{ID: 3, Name: "Dragão Vermelho"}, {ID: 4, Name: "Lobo"}, {ID: 5, Name: "DRAGÃO azul"}},
	}
}

func TestFilterCaseInsensitive(t *testing.T) {
	got := Filter(sample(), "dragão")
	assert.Empty(t, got.Folders)
	require.Len(t, got.Creatures, 2)
	assert.Equal(t, int64(3), got.Creatures[0].ID)
	assert.Equal(t, int64(5), got.Creatures[1].ID)

	got = Filter(sample(), "DRAG")
	assert.Len(t, got.Folders, 1)
	assert.Len(t, got.Creatures, 2)
}

func TestFilterEmptyTermIsIdentity(t *testing.T) {
	c := sample()
	assert.Equal(t, c, Filter(c, ""))
	assert.Equal(t, c, Filter(c, "   "))
}

func TestFilterIsIdempotent(t *testing.T) {
	for _, term := range []string{"", "o", "drag", "xyz", "LOBO"} {
		once := Filter(sample(), term)
		assert.Equal(t, once, Filter(once, term), term)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		loaded Content
		term   string
		want   EmptyState
	}{
		{"content", sample(), "", EmptyNone},
		{"matches", sample(), "lobo", EmptyNone},
		{"nothing loaded", Content{}, "", EmptyNoResults},
		{"nothing loaded with term", Content{}, "lobo", EmptyNoResults},
		{"term filtered everything", sample(), "xyz", EmptyNoMatches},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.loaded, tt.term))
		})
	}
}

func TestEmptyItemRootIsNoResults(t *testing.T) {
	r := &stubReader{authenticated: true, responses: map[string]string{"/api/pastas/meus-bestiarios": `[]`}}
	c, err := newTestLoader().Load(context.Background(), r, Request{Category: domain.CategoryItem, Scope: domain.ScopeMine})
	require.NoError(t, err)
	assert.Empty(t, c.Folders)
	assert.Equal(t, EmptyNoResults, Classify(c, ""))
}

func TestViewDiscardsStaleResults(t *testing.T) {
	var v View
	first := v.Begin()
	second := v.Begin()

	assert.False(t, v.Apply(first, sample()))
	assert.False(t, v.Loaded())

	fresh := Content{Folders: []domain.Folder{{ID: 9, Name: "Novo"}}}
	assert.True(t, v.Apply(second, fresh))
	assert.Equal(t, fresh, v.Content())

	assert.False(t, v.Apply(first, sample()))
	assert.Equal(t, fresh, v.Content())
	assert.Equal(t, second, v.Current())
}

func TestCollectWalksTree(t *testing.T) {
	r := &stubReader{
		authenticated: true,
		responses: map[string]string{
			"/api/pastas/meus-bestiarios": `[{"id":1,"nome":"Armas"},{"id":2,"nome":"Tesouros"}]`,
			"/api/pastas/1":               `{"id":1,"subPastas":[{"id":3,"nome":"Lâminas"}],"itens":[{"id":11,"nome":"Machado"}]}`,
			"/api/pastas/2":               `{"id":2,"itens":[{"id":12,"nome":"Coroa"}]}`,
			"/api/pastas/3":               `{"id":3,"itens":[{"id":10,"nome":"Vorpal Sword"}],"magias":[{"id":50,"nome":"x"}]}`,
		},
	}
	c, err := newTestLoader().Collect(context.Background(), r, domain.CategoryItem)
	require.NoError(t, err)

	ids := make([]int64, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []int64{10, 11, 12}, ids)
	assert.Empty(t, c.Spells)
	assert.Len(t, r.calls, 4)
}

func TestCollectWithoutCredential(t *testing.T) {
	r := &stubReader{}
	c, err := newTestLoader().Collect(context.Background(), r, domain.CategorySpell)
	require.NoError(t, err)
	assert.Zero(t, c.Len())
	assert.Empty(t, r.calls)
}

func TestCollectFailure(t *testing.T) {
	r := &stubReader{
		authenticated: true,
		responses:     map[string]string{"/api/pastas/meus-bestiarios": `[{"id":1,"nome":"Armas"}]`},
		errs:          map[string]error{"/api/pastas/1": errors.New("boom")},
	}
	_, err := newTestLoader().Collect(context.Background(), r, domain.CategoryItem)
	require.Error(t, err)
}
