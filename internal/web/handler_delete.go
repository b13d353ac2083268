package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/vbonduro/drakdex/internal/domain"
)

func (s *Server) handleRequestDelete(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(r.FormValue("kind"))
	if err != nil {
		http.Error(w, "invalid kind", http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseInt(r.FormValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid record id", http.StatusBadRequest)
		return
	}
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	if err := d.RequestDelete(kind, id, strings.TrimSpace(r.FormValue("name"))); err != nil {
		s.fail(w, r, d, err)
		return
	}
	s.respond(w, r, d)
}

func (s *Server) handleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	msg, err := d.ConfirmDelete(r.Context())
	s.completed(w, r, d, msg, err)
}

func (s *Server) handleCancelDelete(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	d.CancelDelete()
	s.respond(w, r, d)
}
