// Package confirm holds the explicit confirmation step required before any
// destructive backend call.
package confirm

import (
	"context"
	"errors"
	"fmt"

	"github.com/vbonduro/drakdex/internal/domain"
)

// ErrNothingPending is returned by Confirm when the dialog is idle.
var ErrNothingPending = errors.New("no deletion pending")

// deleter is the subset of backend.Client the dialog requires.
type deleter interface {
	Delete(ctx context.Context, path string) error
}

// Target is the record awaiting confirmation.
type Target struct {
	Kind domain.Kind
	ID   int64
	Name string
}

// URL is the resource the DELETE is sent to.
func (t Target) URL() string { return t.Kind.ResourcePath(t.ID) }

// TypeLabel is the human name of the record's kind.
func (t Target) TypeLabel() string { return t.Kind.Label() }

// IsFolder reports whether deleting the target cascades into its contents.
func (t Target) IsFolder() bool { return t.Kind == domain.KindFolder }

// Dialog is Idle when no target is pending and PendingConfirmation otherwise.
// At most one target is pending; a new request replaces it.
type Dialog struct {
	pending *Target
}

func (d *Dialog) Request(t Target) { d.pending = &t }

// Pending returns the target awaiting confirmation.
func (d *Dialog) Pending() (Target, bool) {
	if d.pending == nil {
		return Target{}, false
	}
	return *d.pending, true
}

// Cancel returns to Idle without any request.
func (d *Dialog) Cancel() { d.pending = nil }

// Confirm sends the DELETE for the pending target. On success the dialog is
// Idle and the deleted target is returned so the caller can refresh. On
// failure the target stays pending.
func (d *Dialog) Confirm(ctx context.Context, client deleter) (Target, error) {
	if d.pending == nil {
		return Target{}, ErrNothingPending
	}
	t := *d.pending
	if err := client.Delete(ctx, t.URL()); err != nil {
		return t, fmt.Errorf("failed to delete %s %d: %w", t.Kind, t.ID, err)
	}
	d.pending = nil
	return t, nil
}
