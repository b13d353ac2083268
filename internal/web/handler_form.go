package web

import (
	"net/http"

	"github.com/vbonduro/drakdex/internal/domain"
	"github.com/vbonduro/drakdex/internal/service"
)

func (s *Server) handleNewForm(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(r.PathValue("kind"))
	if err != nil {
		http.Error(w, "invalid kind", http.StatusBadRequest)
		return
	}
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	if err := d.OpenCreateForm(r.Context(), kind); err != nil {
		s.fail(w, r, d, err)
		return
	}
	s.respond(w, r, d)
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(r.PathValue("kind"))
	if err != nil {
		http.Error(w, "invalid kind", http.StatusBadRequest)
		return
	}
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid record id", http.StatusBadRequest)
		return
	}
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	if err := d.OpenEditForm(r.Context(), kind, id); err != nil {
		s.fail(w, r, d, err)
		return
	}
	s.respond(w, r, d)
}

// handleDraft stores typed values without submitting, so fields that depend
// on other fields can be re-rendered.
func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	if err := d.UpdateForm(r.PostForm); err != nil {
		s.fail(w, r, d, err)
		return
	}
	s.respond(w, r, d)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid record id", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	// The toggle button posts the surrounding form so typed values survive.
	if len(r.PostForm) > 0 {
		if err := d.UpdateForm(r.PostForm); err != nil {
			s.fail(w, r, d, err)
			return
		}
	}
	if err := d.ToggleRelation(r.PathValue("field"), id); err != nil {
		s.fail(w, r, d, err)
		return
	}
	s.respond(w, r, d)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	msg, err := d.SubmitForm(r.Context(), r.PostForm)
	s.completed(w, r, d, msg, err)
}

func (s *Server) handleCancelForm(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	d.CancelForm()
	s.respond(w, r, d)
}

func (s *Server) handleMonsters(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	data := s.page(d, "", nil)
	monsters, err := s.service.Monsters(r.Context())
	if err != nil {
		data.MonstersError = service.Message(err)
	}
	data.Monsters = monsters

	if isHTMX(r) {
		if err := s.renderPartial(w, "monsters", data); err != nil {
			s.logger.Error("render partial", "template", "monsters", "error", err)
		}
		return
	}
	s.show(w, r, data)
}

func (s *Server) handlePrefill(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	if err := d.PrefillMonster(r.Context(), r.PathValue("index")); err != nil {
		s.fail(w, r, d, err)
		return
	}
	s.respond(w, r, d, Notice{Kind: NoticeInfo, Text: "Dados importados do compêndio."})
}
