package web_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/drakdex/internal/backend"
	"github.com/vbonduro/drakdex/internal/catalog"
	"github.com/vbonduro/drakdex/internal/compendium/remote"
	"github.com/vbonduro/drakdex/internal/db"
	"github.com/vbonduro/drakdex/internal/service"
	"github.com/vbonduro/drakdex/internal/session"
	"github.com/vbonduro/drakdex/internal/store"
	"github.com/vbonduro/drakdex/internal/web"
	"github.com/vbonduro/drakdex/internal/web/templates"
)

const apiToken = "token-ana"

// apiStub is a minimal DrakDex API recording what the console sends.
type apiStub struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]string
	// brokenFolders makes folder reads fail with 500.
	brokenFolders bool
}

func (a *apiStub) breakFolders() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.brokenFolders = true
}

func (a *apiStub) record(r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry := r.Method + " " + r.URL.Path
	if r.Header.Get("Authorization") != "" {
		entry += " [auth]"
	}
	a.requests = append(a.requests, entry)
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		a.bodies[r.Method+" "+r.URL.Path] = string(data)
	}
}

func (a *apiStub) calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.requests...)
}

func (a *apiStub) body(key string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bodies[key]
}

func (a *apiStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	authorized := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bearer "+apiToken {
			w.WriteHeader(http.StatusUnauthorized)
			return false
		}
		return true
	}
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		a.record(r)
		_, _ = w.Write([]byte(`{"token":"` + apiToken + `","nome":"Ana Lima","vulgo":"ana"}`))
	})
	mux.HandleFunc("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		a.record(r)
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("GET /api/pastas/publicas", func(w http.ResponseWriter, r *http.Request) {
		a.record(r)
		if r.URL.Query().Get("tipo") != "CRIATURA" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"id":500,"nome":"Covil do Mestre","categoria":"CRIATURA","publica":true,"donoVulgo":"mestre"}]`))
	})
	mux.HandleFunc("GET /api/pastas/meus-bestiarios", func(w http.ResponseWriter, r *http.Request) {
		a.record(r)
		if !authorized(w, r) {
			return
		}
		switch r.URL.Query().Get("tipo") {
		case "CRIATURA":
			_, _ = w.Write([]byte(`[{"id":42,"nome":"Dragões","categoria":"CRIATURA"}]`))
		case "ITEM":
			_, _ = w.Write([]byte(`[{"id":7,"nome":"Armaria","categoria":"ITEM"}]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	})
	mux.HandleFunc("GET /api/pastas/{id}", func(w http.ResponseWriter, r *http.Request) {
		a.record(r)
		a.mu.Lock()
		broken := a.brokenFolders
		a.mu.Unlock()
		if broken {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		switch r.PathValue("id") {
		case "42":
			_, _ = w.Write([]byte(`{"id":42,"nome":"Dragões","categoria":"CRIATURA","criaturas":[{"id":1,"nome":"Smaug","tipo":"Dragão","nivel":20}]}`))
		case "7":
			_, _ = w.Write([]byte(`{"id":7,"nome":"Armaria","categoria":"ITEM","itens":[{"id":70,"nome":"Adaga","tipo":"ARMA","raridade":"RARO","peso":0.5}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	mux.HandleFunc("POST /api/itens", func(w http.ResponseWriter, r *http.Request) {
		a.record(r)
		if !authorized(w, r) {
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":71}`))
	})
	remove := func(w http.ResponseWriter, r *http.Request) {
		a.record(r)
		if !authorized(w, r) {
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
	mux.HandleFunc("DELETE /api/pastas/{id}", remove)
	mux.HandleFunc("DELETE /api/criaturas/{id}", remove)
	mux.HandleFunc("GET /api/external/monsters", func(w http.ResponseWriter, r *http.Request) {
		a.record(r)
		_, _ = w.Write([]byte(`{"results":[{"index":"adult-red-dragon","name":"Adult Red Dragon"}]}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected backend request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	})
	return mux
}

// newTestServer wires a real web.Server to an in-memory SQLite database and
// a stub API. The returned client keeps cookies and does not follow redirects.
func newTestServer(t *testing.T) (*httptest.Server, *http.Client, *apiStub) {
	t.Helper()
	api := &apiStub{bodies: make(map[string]string)}
	apiSrv := httptest.NewServer(api.handler(t))
	t.Cleanup(apiSrv.Close)

	database, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := backend.New(apiSrv.URL, 5*time.Second, logger)
	require.NoError(t, err)

	storage := store.NewClientStorage(database)
	svc, err := service.NewDashboardService(
		session.NewManager(storage, client, logger),
		storage,
		catalog.NewLoader(logger),
		remote.New(client),
		16,
		logger,
	)
	require.NoError(t, err)

	srv, err := web.NewServer(svc, templates.FS, web.Options{SessionMaxAge: time.Hour}, logger)
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	browser := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return ts, browser, api
}

func send(t *testing.T, c *http.Client, method, target string, form url.Values, htmx bool) (*http.Response, string) {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, target, body)
	require.NoError(t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func login(t *testing.T, srv *httptest.Server, c *http.Client) {
	t.Helper()
	resp, _ := send(t, c, http.MethodPost, srv.URL+"/auth/login",
		url.Values{"email": {"ana@example.com"}, "senha": {"segredo123"}}, false)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))
}

func TestIntegration_PublicListingWithoutToken(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, c, api := newTestServer(t)

	resp, body := send(t, c, http.MethodGet, srv.URL+"/", nil, false)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Covil do Mestre")
	assert.Contains(t, body, "Bestiários Públicos")
	assert.Contains(t, api.calls(), "GET /api/pastas/publicas")
	assert.NotEmpty(t, resp.Header.Get("Set-Cookie"))
}

func TestIntegration_MineRedirectsToLogin(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, c, api := newTestServer(t)

	resp, _ := send(t, c, http.MethodPost, srv.URL+"/scope/mine", url.Values{}, false)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/auth?mode=login", resp.Header.Get("Location"))

	resp, body := send(t, c, http.MethodGet, srv.URL+"/auth?mode=login", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `action="/auth/login"`)
	assert.Contains(t, body, "Faça login para acessar seus arquivos.")

	for _, call := range api.calls() {
		assert.NotContains(t, call, "meus-bestiarios")
	}
}

func TestIntegration_MinePromptsLoginOverHTMX(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, c, _ := newTestServer(t)

	resp, body := send(t, c, http.MethodPost, srv.URL+"/scope/mine", url.Values{}, true)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `id="dashboard"`)
	assert.Contains(t, body, `action="/auth/login"`)
	assert.NotContains(t, body, "<html")
}

func TestIntegration_LoginShowsOwnFolders(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, c, api := newTestServer(t)

	login(t, srv, c)
	_, body := send(t, c, http.MethodGet, srv.URL+"/", nil, false)

	assert.Contains(t, body, "Dragões")
	assert.Contains(t, body, "Meus Bestiários")
	assert.Contains(t, body, "Bem-vindo(a), ana!")
	assert.Contains(t, api.calls(), "GET /api/pastas/meus-bestiarios [auth]")
}

func TestIntegration_FlashShownOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, c, _ := newTestServer(t)

	login(t, srv, c)
	_, first := send(t, c, http.MethodGet, srv.URL+"/", nil, false)
	_, second := send(t, c, http.MethodGet, srv.URL+"/", nil, false)

	assert.Contains(t, first, "Bem-vindo(a), ana!")
	assert.NotContains(t, second, "Bem-vindo(a), ana!")
}

func TestIntegration_LogoutReturnsToPublic(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, c, _ := newTestServer(t)

	login(t, srv, c)
	resp, body := send(t, c, http.MethodPost, srv.URL+"/auth/logout", url.Values{}, true)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Covil do Mestre")
	assert.Contains(t, body, "Você saiu da sua conta.")
	assert.NotContains(t, body, "Dragões")
}

func TestIntegration_BreadcrumbsAndSearch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, c, _ := newTestServer(t)
	login(t, srv, c)

	_, body := send(t, c, http.MethodPost, srv.URL+"/folders/42/enter", url.Values{}, true)
	assert.Contains(t, body, "Smaug")
	assert.Contains(t, body, `action="/breadcrumbs/0"`)

	_, body = send(t, c, http.MethodGet, srv.URL+"/search?q=SMA", nil, true)
	assert.Contains(t, body, `id="content"`)
	assert.Contains(t, body, "Smaug")
	assert.NotContains(t, body, `id="dashboard"`)

	_, body = send(t, c, http.MethodGet, srv.URL+"/search?q=tiamat", nil, true)
	assert.Contains(t, body, `Nenhum resultado para &#34;tiamat&#34;.`)

	_, body = send(t, c, http.MethodPost, srv.URL+"/breadcrumbs/0", url.Values{}, true)
	assert.Contains(t, body, "Meus Bestiários")
	assert.NotContains(t, body, "Smaug")
}

func TestIntegration_CreateItemSendsNumericWeight(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, c, api := newTestServer(t)
	login(t, srv, c)

	send(t, c, http.MethodPost, srv.URL+"/categories/ITEM", url.Values{}, true)
	send(t, c, http.MethodPost, srv.URL+"/folders/7/enter", url.Values{}, true)
	_, body := send(t, c, http.MethodGet, srv.URL+"/forms/item/new", nil, true)
	require.Contains(t, body, `action="/forms/submit"`)

	_, body = send(t, c, http.MethodPost, srv.URL+"/forms/submit", url.Values{
		"nome":     {"Vorpal Sword"},
		"tipo":     {"ARMA"},
		"raridade": {"LENDARIO"},
		"peso":     {"3.5"},
	}, true)

	assert.Contains(t, body, "Item forjado com sucesso!")
	assert.NotContains(t, body, `action="/forms/submit"`)

	var sent map[string]any
	require.NoError(t, json.Unmarshal([]byte(api.body("POST /api/itens")), &sent))
	assert.Equal(t, "Vorpal Sword", sent["nome"])
	assert.Equal(t, 3.5, sent["peso"])
	assert.Equal(t, float64(7), sent["pastaId"])
}

func TestIntegration_CreateSucceedsWhenReloadFails(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, c, api := newTestServer(t)
	login(t, srv, c)

	send(t, c, http.MethodPost, srv.URL+"/categories/ITEM", url.Values{}, true)
	send(t, c, http.MethodPost, srv.URL+"/folders/7/enter", url.Values{}, true)
	send(t, c, http.MethodGet, srv.URL+"/forms/item/new", nil, true)

	api.breakFolders()
	_, body := send(t, c, http.MethodPost, srv.URL+"/forms/submit", url.Values{
		"nome":     {"Vorpal Sword"},
		"tipo":     {"ARMA"},
		"raridade": {"LENDARIO"},
	}, true)

	assert.Contains(t, body, "Item forjado com sucesso!")
	assert.Contains(t, body, "Erro ao carregar dados.")
	assert.NotContains(t, body, `action="/forms/submit"`)
	assert.Contains(t, api.calls(), "POST /api/itens [auth]")
}

func TestIntegration_InvalidFormStaysOpen(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, c, api := newTestServer(t)
	login(t, srv, c)

	send(t, c, http.MethodPost, srv.URL+"/categories/ITEM", url.Values{}, true)
	send(t, c, http.MethodPost, srv.URL+"/folders/7/enter", url.Values{}, true)
	send(t, c, http.MethodGet, srv.URL+"/forms/item/new", nil, true)

	_, body := send(t, c, http.MethodPost, srv.URL+"/forms/submit", url.Values{"nome": {""}, "peso": {"pesado"}}, true)

	assert.Contains(t, body, `action="/forms/submit"`)
	assert.Contains(t, body, "Verifique os campos destacados.")
	assert.Contains(t, body, "pesado")
	assert.NotContains(t, api.calls(), "POST /api/itens [auth]")
}

func TestIntegration_DeleteFolderFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, c, api := newTestServer(t)
	login(t, srv, c)

	_, body := send(t, c, http.MethodPost, srv.URL+"/deletes",
		url.Values{"kind": {"pasta"}, "id": {"42"}, "name": {"Dragões"}}, true)
	assert.Contains(t, body, `action="/deletes/confirm"`)
	assert.Contains(t, body, "Todas as subpastas")

	_, body = send(t, c, http.MethodPost, srv.URL+"/deletes/confirm", url.Values{}, true)
	assert.Contains(t, body, "Pasta excluído(a) com sucesso.")
	assert.NotContains(t, body, `action="/deletes/confirm"`)
	assert.Contains(t, api.calls(), "DELETE /api/pastas/42 [auth]")
}

func TestIntegration_DeleteSucceedsWhenReloadFails(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, c, api := newTestServer(t)
	login(t, srv, c)

	send(t, c, http.MethodPost, srv.URL+"/folders/42/enter", url.Values{}, true)
	send(t, c, http.MethodPost, srv.URL+"/deletes",
		url.Values{"kind": {"criatura"}, "id": {"1"}, "name": {"Smaug"}}, true)

	api.breakFolders()
	_, body := send(t, c, http.MethodPost, srv.URL+"/deletes/confirm", url.Values{}, true)

	assert.Contains(t, body, "excluído(a) com sucesso.")
	assert.Contains(t, body, "Erro ao carregar dados.")
	assert.Contains(t, api.calls(), "DELETE /api/criaturas/1 [auth]")
}

func TestIntegration_CancelDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, c, api := newTestServer(t)
	login(t, srv, c)

	send(t, c, http.MethodPost, srv.URL+"/deletes", url.Values{"kind": {"pasta"}, "id": {"42"}, "name": {"Dragões"}}, true)
	_, body := send(t, c, http.MethodPost, srv.URL+"/deletes/cancel", url.Values{}, true)

	assert.NotContains(t, body, `action="/deletes/confirm"`)
	for _, call := range api.calls() {
		assert.NotContains(t, call, "DELETE")
	}
}

func TestIntegration_PublicContentIsReadOnly(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, c, _ := newTestServer(t)
	login(t, srv, c)

	send(t, c, http.MethodPost, srv.URL+"/scope/public", url.Values{}, true)
	_, body := send(t, c, http.MethodGet, srv.URL+"/forms/pasta/new", nil, true)

	assert.Contains(t, body, "Conteúdo público é somente leitura.")
	assert.NotContains(t, body, `action="/forms/submit"`)
	assert.NotContains(t, body, `action="/deletes"`)
}

func TestIntegration_RegisterValidation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, c, api := newTestServer(t)

	resp, _ := send(t, c, http.MethodPost, srv.URL+"/auth/register", url.Values{
		"nomeCompleto": {"Ana Lima"},
		"vulgo":        {"ana"},
		"email":        {"ana@example.com"},
		"senha":        {"curta"},
	}, false)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/auth?mode=register", resp.Header.Get("Location"))

	_, body := send(t, c, http.MethodGet, srv.URL+"/auth?mode=register", nil, false)
	assert.Contains(t, body, "A senha precisa de pelo menos 8 caracteres!")
	assert.Contains(t, body, `action="/auth/register"`)
	assert.NotContains(t, api.calls(), "POST /auth/register")

	resp, _ = send(t, c, http.MethodPost, srv.URL+"/auth/register", url.Values{
		"nomeCompleto": {"Ana Lima"},
		"vulgo":        {"ana"},
		"email":        {"ana@example.com"},
		"senha":        {"segredo123"},
	}, false)
	assert.Equal(t, "/auth?mode=login", resp.Header.Get("Location"))
	assert.Contains(t, api.calls(), "POST /auth/register")
}

func TestIntegration_CompendiumList(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, c, _ := newTestServer(t)
	login(t, srv, c)
	send(t, c, http.MethodPost, srv.URL+"/folders/42/enter", url.Values{}, true)

	_, body := send(t, c, http.MethodGet, srv.URL+"/compendium/monsters", nil, true)

	assert.Contains(t, body, `id="monsters"`)
	assert.Contains(t, body, "Adult Red Dragon")
	assert.Contains(t, body, `action="/compendium/monsters/adult-red-dragon/prefill"`)
}

func TestIntegration_BadPathValues(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, c, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"unknown category", http.MethodPost, "/categories/PLANETA"},
		{"unknown scope", http.MethodPost, "/scope/everyone"},
		{"bad folder id", http.MethodPost, "/folders/abc/enter"},
		{"bad breadcrumb", http.MethodPost, "/breadcrumbs/x"},
		{"unknown kind", http.MethodGet, "/forms/dragao/new"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := send(t, c, tt.method, srv.URL+tt.path, url.Values{}, false)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestIntegration_SecurityHeaders(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv, c, _ := newTestServer(t)

	resp, _ := send(t, c, http.MethodGet, srv.URL+"/", nil, false)

	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "https://unpkg.com")
}
