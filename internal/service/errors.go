package service

import (
	"errors"

	"github.com/vbonduro/drakdex/internal/backend"
	"github.com/vbonduro/drakdex/internal/confirm"
)

var (
	ErrLoginRequired  = errors.New("login required")
	ErrReadOnly       = errors.New("public content is read-only")
	ErrSessionExpired = errors.New("session expired")
	ErrUnknownFolder  = errors.New("folder not in current view")
	ErrUnknownRecord  = errors.New("record not in current view")
	ErrNoForm         = errors.New("no form open")
	ErrWrongCategory  = errors.New("kind does not belong to the active category")
	ErrLoadFailed     = errors.New("failed to load content")
)

// Failure carries the notification text chosen where the error happened.
type Failure struct {
	Text string
	Err  error
}

func (f *Failure) Error() string { return f.Text + ": " + f.Err.Error() }

func (f *Failure) Unwrap() error { return f.Err }

// Message is the notification text for an error returned by this package.
func Message(err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return f.Text
	}
	switch {
	case errors.Is(err, ErrLoginRequired):
		return "Faça login para acessar seus arquivos."
	case errors.Is(err, ErrSessionExpired):
		return "Sua sessão expirou. Entre novamente."
	case errors.Is(err, ErrReadOnly):
		return "Conteúdo público é somente leitura."
	case errors.Is(err, ErrUnknownFolder):
		return "Pasta não encontrada. Atualize a página."
	case errors.Is(err, ErrUnknownRecord):
		return "Registro não encontrado. Atualize a página."
	case errors.Is(err, ErrNoForm):
		return "Nenhum formulário aberto."
	case errors.Is(err, ErrWrongCategory):
		return "Esse tipo não pertence à categoria atual."
	case errors.Is(err, confirm.ErrNothingPending):
		return "Nenhuma exclusão pendente."
	case errors.Is(err, ErrLoadFailed):
		return "Erro ao carregar dados."
	}
	return backend.UserMessage(err, "Algo deu errado. Tente novamente.")
}

// NeedsLogin reports whether err should be answered with the login prompt.
func NeedsLogin(err error) bool {
	return errors.Is(err, ErrLoginRequired) || errors.Is(err, ErrSessionExpired)
}
