package web

import (
	"net/http"

	"github.com/vbonduro/drakdex/internal/compendium"
	"github.com/vbonduro/drakdex/internal/domain"
	"github.com/vbonduro/drakdex/internal/form"
	"github.com/vbonduro/drakdex/internal/service"
	"github.com/vbonduro/drakdex/internal/session"
)

const (
	authLogin    = "login"
	authRegister = "register"
)

// pageData is what every dashboard template receives.
type pageData struct {
	service.Snapshot
	Categories     []domain.Category
	Notices        []Notice
	Auth           string
	MinPasswordLen int
	Monsters       []compendium.MonsterRef
	MonstersError  string
}

// cardView hands one listed record to its card template.
type cardView struct {
	Page   pageData
	Record any
}

// actionsView feeds the edit and delete buttons of a card.
type actionsView struct {
	Page  pageData
	Kind  string
	ID    int64
	Name  string
	Owner string
}

func newActionsView(p pageData, kind string, id int64, name, owner string) actionsView {
	return actionsView{Page: p, Kind: kind, ID: id, Name: name, Owner: owner}
}

// fieldView pairs a form with one of its fields for the field template.
type fieldView struct {
	Form  *form.Form
	Field form.Field
}

func (s *Server) page(d *service.Dashboard, auth string, notices []Notice) pageData {
	return pageData{
		Snapshot:       d.Snapshot(),
		Categories:     domain.Categories,
		Notices:        notices,
		Auth:           auth,
		MinPasswordLen: session.MinPasswordLen,
	}
}

// dashboard opens the dashboard bound to the request's session cookie.
func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) (*service.Dashboard, bool) {
	id := s.sessionID(w, r)
	d, err := s.service.Open(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to open session", http.StatusInternalServerError)
		s.logger.Error("open dashboard", "session", id, "error", err)
		return nil, false
	}
	return d, true
}

// show renders the dashboard region for HTMX requests and the whole page
// otherwise.
func (s *Server) show(w http.ResponseWriter, r *http.Request, data pageData) {
	if isHTMX(r) {
		if err := s.renderPartial(w, "dashboard", data); err != nil {
			s.logger.Error("render partial", "template", "dashboard", "error", err)
		}
		return
	}
	if err := s.renderPage(w, data); err != nil {
		s.logger.Error("render page", "error", err)
	}
}

// respond answers a state-changing request: HTMX callers get the refreshed
// dashboard, plain form posts are redirected back with the notices flashed.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, d *service.Dashboard, notices ...Notice) {
	s.respondTo(w, r, d, "", notices...)
}

func (s *Server) respondTo(w http.ResponseWriter, r *http.Request, d *service.Dashboard, auth string, notices ...Notice) {
	if isHTMX(r) {
		s.show(w, r, s.page(d, auth, notices))
		return
	}
	s.writeFlash(w, notices)
	target := "/"
	if auth != "" {
		target = "/auth?mode=" + auth
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// fail turns err into a toast. Errors that need a login open the auth modal.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, d *service.Dashboard, err error) {
	s.logger.Debug("request failed", "path", r.URL.Path, "session", d.ID(), "error", err)
	notice := failure(service.Message(err))
	if service.NeedsLogin(err) {
		s.respondTo(w, r, d, authLogin, notice)
		return
	}
	s.respond(w, r, d, notice)
}

// completed answers a write that went through. A refresh failing after it is
// shown next to the success toast rather than in place of it.
func (s *Server) completed(w http.ResponseWriter, r *http.Request, d *service.Dashboard, msg string, err error) {
	switch {
	case err == nil:
		s.respond(w, r, d, success(msg))
	case msg == "":
		s.fail(w, r, d, err)
	case service.NeedsLogin(err):
		s.respondTo(w, r, d, authLogin, success(msg), failure(service.Message(err)))
	default:
		s.logger.Debug("refresh after write failed", "path", r.URL.Path, "session", d.ID(), "error", err)
		s.respond(w, r, d, success(msg), failure(service.Message(err)))
	}
}
