package web

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/vbonduro/drakdex/internal/form"
	"github.com/vbonduro/drakdex/internal/service"
)

// Options controls the cookies issued by the server.
type Options struct {
	CookieSecure  bool
	SessionMaxAge time.Duration
}

type Server struct {
	service   *service.DashboardService
	templates *template.Template
	mux       *http.ServeMux
	opts      Options
	logger    *slog.Logger
}

func NewServer(svc *service.DashboardService, tmpl fs.FS, opts Options, logger *slog.Logger) (*Server, error) {
	funcs := template.FuncMap{
		"inc":     func(i int) int { return i + 1 },
		"number":  formatNumber,
		"field":   func(f *form.Form, field form.Field) fieldView { return fieldView{Form: f, Field: field} },
		"card":    func(p pageData, record any) cardView { return cardView{Page: p, Record: record} },
		"actions": newActionsView,
	}
	parsed, err := template.New("").Funcs(funcs).ParseFS(tmpl, "*.html", "pages/*.html", "partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	s := &Server{
		service:   svc,
		templates: parsed,
		mux:       http.NewServeMux(),
		opts:      opts,
		logger:    logger,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /categories/{category}", s.handleSwitchCategory)
	s.mux.HandleFunc("POST /scope/{scope}", s.handleSwitchScope)
	s.mux.HandleFunc("POST /folders/{id}/enter", s.handleEnterFolder)
	s.mux.HandleFunc("POST /breadcrumbs/{index}", s.handleBreadcrumb)
	s.mux.HandleFunc("GET /search", s.handleSearch)

	s.mux.HandleFunc("GET /forms/{kind}/new", s.handleNewForm)
	s.mux.HandleFunc("GET /forms/{kind}/{id}/edit", s.handleEditForm)
	s.mux.HandleFunc("POST /forms/draft", s.handleDraft)
	s.mux.HandleFunc("POST /forms/toggle/{field}/{id}", s.handleToggle)
	s.mux.HandleFunc("POST /forms/submit", s.handleSubmit)
	s.mux.HandleFunc("POST /forms/cancel", s.handleCancelForm)

	s.mux.HandleFunc("POST /deletes", s.handleRequestDelete)
	s.mux.HandleFunc("POST /deletes/confirm", s.handleConfirmDelete)
	s.mux.HandleFunc("POST /deletes/cancel", s.handleCancelDelete)

	s.mux.HandleFunc("GET /auth", s.handleAuth)
	s.mux.HandleFunc("POST /auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /auth/logout", s.handleLogout)

	s.mux.HandleFunc("GET /compendium/monsters", s.handleMonsters)
	s.mux.HandleFunc("POST /compendium/monsters/{index}/prefill", s.handlePrefill)
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		// Creature portraits are hot-linked from arbitrary https hosts.
		h.Set("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src 'self' 'unsafe-inline' https://unpkg.com; "+
				"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com; "+
				"font-src https://fonts.gstatic.com; "+
				"img-src 'self' data: https:; "+
				"connect-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"htmx", isHTMX(r),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// HTTPServer returns an http.Server for addr with the console's timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// renderPage executes the full-page layout.
func (s *Server) renderPage(w http.ResponseWriter, data any) error {
	return s.render(w, "base", data)
}

// renderPartial executes a single named {{define}} block.
func (s *Server) renderPartial(w http.ResponseWriter, name string, data any) error {
	return s.render(w, name, data)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) error {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// formatNumber prints an optional number without trailing zeros.
func formatNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
