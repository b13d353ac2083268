package web

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/vbonduro/drakdex/internal/session"
)

const (
	sessionCookie = "drakdex_session"
	flashCookie   = "drakdex_flash"
)

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeInfo    NoticeKind = "info"
	NoticeError   NoticeKind = "error"
)

// Notice is one transient toast.
type Notice struct {
	Kind NoticeKind `json:"kind"`
	Text string     `json:"text"`
}

func success(text string) Notice { return Notice{Kind: NoticeSuccess, Text: text} }

func failure(text string) Notice { return Notice{Kind: NoticeError, Text: text} }

// sessionID returns the browser's session id, issuing a new cookie when the
// request carries none or a malformed one.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if id, err := uuid.Parse(strings.TrimSpace(c.Value)); err == nil {
			return id.String()
		}
	}
	id := session.NewID()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.opts.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// writeFlash stores notices for the page rendered after a redirect.
func (s *Server) writeFlash(w http.ResponseWriter, notices []Notice) {
	if len(notices) == 0 {
		return
	}
	payload, err := json.Marshal(notices)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(payload),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// readFlash returns and expires the pending notices.
func (s *Server) readFlash(w http.ResponseWriter, r *http.Request) []Notice {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(c.Value))
	if err != nil {
		return nil
	}
	var notices []Notice
	if err := json.Unmarshal(raw, &notices); err != nil {
		return nil
	}
	kept := notices[:0]
	for _, n := range notices {
		switch n.Kind {
		case NoticeSuccess, NoticeInfo, NoticeError:
			if strings.TrimSpace(n.Text) != "" {
				kept = append(kept, n)
			}
		}
	}
	return kept
}
