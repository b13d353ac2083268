package web

import (
	"net/http"
	"strconv"

	"github.com/vbonduro/drakdex/internal/domain"
	"github.com/vbonduro/drakdex/internal/service"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.showDashboard(w, r, "")
}

// showDashboard renders the full dashboard, loading the current listing the
// first time a session is seen.
func (s *Server) showDashboard(w http.ResponseWriter, r *http.Request, auth string) {
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	notices := s.readFlash(w, r)
	if !d.Snapshot().Loaded {
		if err := d.Load(r.Context()); err != nil {
			notices = append(notices, failure(service.Message(err)))
			if service.NeedsLogin(err) && auth == "" {
				auth = authLogin
			}
		}
	}
	s.show(w, r, s.page(d, auth, notices))
}

func (s *Server) handleSwitchCategory(w http.ResponseWriter, r *http.Request) {
	category, err := domain.ParseCategory(r.PathValue("category"))
	if err != nil {
		http.Error(w, "invalid category", http.StatusBadRequest)
		return
	}
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	if err := d.SwitchCategory(r.Context(), category); err != nil {
		s.fail(w, r, d, err)
		return
	}
	s.respond(w, r, d)
}

func (s *Server) handleSwitchScope(w http.ResponseWriter, r *http.Request) {
	scope, err := domain.ParseScope(r.PathValue("scope"))
	if err != nil {
		http.Error(w, "invalid scope", http.StatusBadRequest)
		return
	}
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	if err := d.SwitchScope(r.Context(), scope); err != nil {
		s.fail(w, r, d, err)
		return
	}
	s.respond(w, r, d)
}

func (s *Server) handleEnterFolder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid folder id", http.StatusBadRequest)
		return
	}
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	if err := d.EnterFolder(r.Context(), id); err != nil {
		s.fail(w, r, d, err)
		return
	}
	s.respond(w, r, d)
}

func (s *Server) handleBreadcrumb(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "invalid breadcrumb index", http.StatusBadRequest)
		return
	}
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	if err := d.NavigateToBreadcrumb(r.Context(), index); err != nil {
		s.fail(w, r, d, err)
		return
	}
	s.respond(w, r, d)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	d.Search(r.URL.Query().Get("q"))

	// HTMX partial update: return only the listing so the search box keeps focus.
	if isHTMX(r) {
		if err := s.renderPartial(w, "content", s.page(d, "", nil)); err != nil {
			s.logger.Error("render partial", "template", "content", "error", err)
		}
		return
	}
	s.show(w, r, s.page(d, "", nil))
}
