package web

import (
	"errors"
	"net/http"

	"github.com/vbonduro/drakdex/internal/service"
	"github.com/vbonduro/drakdex/internal/session"
)

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	mode := authLogin
	if r.URL.Query().Get("mode") == authRegister {
		mode = authRegister
	}
	s.showDashboard(w, r, mode)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	err := d.Login(r.Context(), r.FormValue("email"), r.FormValue("senha"))
	if err == nil {
		s.respond(w, r, d, success(welcome(d)))
		return
	}

	var authErr *session.AuthenticationError
	switch {
	case errors.As(err, &authErr):
		s.respondTo(w, r, d, authLogin, failure(authErr.Message))
	case d.Session().Authenticated():
		// Logged in, but the first listing failed.
		s.respond(w, r, d, success(welcome(d)), failure(service.Message(err)))
	default:
		s.logger.Warn("login failed", "session", d.ID(), "error", err)
		s.respondTo(w, r, d, authLogin, failure(service.Message(err)))
	}
}

func welcome(d *service.Dashboard) string {
	if p, ok := d.Session().Profile(); ok && p.Nickname != "" {
		return "Bem-vindo(a), " + p.Nickname + "!"
	}
	return "Login realizado com sucesso!"
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	err := d.Register(r.Context(), session.Registration{
		Name:     r.FormValue("nomeCompleto"),
		Nickname: r.FormValue("vulgo"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("senha"),
	})
	if err != nil {
		s.respondTo(w, r, d, authRegister, failure(session.RegisterMessage(err)))
		return
	}
	s.respondTo(w, r, d, authLogin, success("Conta criada! Faça login para continuar."))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	if err := d.Logout(r.Context()); err != nil {
		s.fail(w, r, d, err)
		return
	}
	s.respond(w, r, d, Notice{Kind: NoticeInfo, Text: "Você saiu da sua conta."})
}
