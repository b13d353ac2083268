package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vbonduro/drakdex/internal/backend"
	"github.com/vbonduro/drakdex/internal/catalog"
	"github.com/vbonduro/drakdex/internal/compendium"
	"github.com/vbonduro/drakdex/internal/confirm"
	"github.com/vbonduro/drakdex/internal/domain"
	"github.com/vbonduro/drakdex/internal/form"
	"github.com/vbonduro/drakdex/internal/navigation"
	"github.com/vbonduro/drakdex/internal/session"
)

// errUnchanged aborts a change without reloading.
var errUnchanged = errors.New("unchanged")

// Dashboard is the view state of one browser. It is the only place that
// state is mutated. Backend calls run outside mu and their results are
// applied only when their generation is still current.
type Dashboard struct {
	id      string
	svc     *DashboardService
	session *session.Session

	mu      sync.Mutex
	nav     navigation.State
	scope   domain.Scope
	search  string
	view    catalog.View
	form    *form.Form
	deletes confirm.Dialog
}

func (d *Dashboard) ID() string { return d.id }

func (d *Dashboard) Session() *session.Session { return d.session }

func (d *Dashboard) request() catalog.Request {
	return catalog.Request{Category: d.nav.Category, Scope: d.scope, FolderID: d.nav.FolderID}
}

func (d *Dashboard) persistedLocked() persisted {
	nav := d.nav
	nav.Path = slices.Clone(d.nav.Path)
	return persisted{Nav: nav, Scope: d.scope}
}

// change applies mutate under the lock, starts a new generation, persists the
// position and loads the new content.
func (d *Dashboard) change(ctx context.Context, mutate func() error) error {
	d.mu.Lock()
	if err := mutate(); err != nil {
		d.mu.Unlock()
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	ticket := d.view.Begin()
	req := d.request()
	state := d.persistedLocked()
	client := d.session.Client()
	d.mu.Unlock()

	d.svc.persist(ctx, d.id, state)
	return d.fetch(ctx, ticket, req, client)
}

// navigate moves to a new position the way change does, but the position is
// only kept and persisted once its content has loaded. A failed load returns
// to the previous position, which still matches the displayed content.
func (d *Dashboard) navigate(ctx context.Context, mutate func() error) error {
	d.mu.Lock()
	prev := d.persistedLocked()
	if err := mutate(); err != nil {
		d.mu.Unlock()
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	ticket := d.view.Begin()
	req := d.request()
	client := d.session.Client()
	d.mu.Unlock()

	err := d.fetch(ctx, ticket, req, client)
	if errors.Is(err, ErrSessionExpired) {
		return err
	}

	d.mu.Lock()
	if d.view.Current() != ticket {
		d.mu.Unlock()
		return err
	}
	if err != nil {
		d.nav, d.scope = prev.Nav, prev.Scope
		d.mu.Unlock()
		return err
	}
	state := d.persistedLocked()
	d.mu.Unlock()

	d.svc.persist(ctx, d.id, state)
	return nil
}

func (d *Dashboard) fetch(ctx context.Context, ticket catalog.Ticket, req catalog.Request, client *backend.Client) error {
	content, err := d.svc.loader.Load(ctx, client, req)
	if err != nil {
		if backend.IsUnauthorized(err) && client.Authenticated() {
			return d.expire(ctx)
		}
		d.svc.logger.Warn("failed to load content",
			"session", d.id,
			"category", req.Category,
			"scope", req.Scope,
			"error", err,
		)
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	d.mu.Lock()
	applied := d.view.Apply(ticket, content)
	d.mu.Unlock()
	if !applied {
		d.svc.logger.Debug("discarding stale content", "session", d.id, "ticket", ticket)
	}
	return nil
}

// expire logs the session out after the backend rejected its token.
func (d *Dashboard) expire(ctx context.Context) error {
	if err := d.session.Logout(ctx); err != nil {
		d.svc.logger.Error("failed to clear expired session", "session", d.id, "error", err)
	}
	d.mu.Lock()
	d.resetLocked(domain.ScopePublic)
	state := d.persistedLocked()
	d.mu.Unlock()

	d.svc.persist(ctx, d.id, state)
	d.svc.logger.Info("session expired", "session", d.id)
	return ErrSessionExpired
}

// resetLocked returns to the root of the active category in scope and drops
// the content of the previous scope.
func (d *Dashboard) resetLocked(scope domain.Scope) {
	d.scope = scope
	d.nav = navigation.New(d.nav.Category)
	d.search = ""
	d.form = nil
	d.deletes.Cancel()
	d.view.Apply(d.view.Begin(), catalog.Content{})
}

// classify converts an unauthorized backend error into a session expiry.
func (d *Dashboard) classify(ctx context.Context, err error) error {
	if backend.IsUnauthorized(err) && d.session.Authenticated() {
		return d.expire(ctx)
	}
	return err
}

// Load re-reads the current position without changing it.
func (d *Dashboard) Load(ctx context.Context) error {
	return d.change(ctx, func() error { return nil })
}

func (d *Dashboard) SwitchCategory(ctx context.Context, category domain.Category) error {
	return d.navigate(ctx, func() error {
		d.nav.SwitchCategory(category)
		d.search = ""
		d.form = nil
		return nil
	})
}

// SwitchScope toggles between the caller's folders and the public ones. The
// caller's own folders require a login.
func (d *Dashboard) SwitchScope(ctx context.Context, scope domain.Scope) error {
	if scope == domain.ScopeMine && !d.session.Authenticated() {
		return ErrLoginRequired
	}
	return d.navigate(ctx, func() error {
		d.scope = scope
		d.nav = navigation.New(d.nav.Category)
		d.search = ""
		d.form = nil
		return nil
	})
}

// EnterFolder opens a folder listed in the current view.
func (d *Dashboard) EnterFolder(ctx context.Context, id int64) error {
	return d.navigate(ctx, func() error {
		for _, f := range d.view.Content().Folders {
			if f.ID == id {
				d.nav.EnterFolder(f)
				d.search = ""
				d.form = nil
				return nil
			}
		}
		return ErrUnknownFolder
	})
}

func (d *Dashboard) NavigateToBreadcrumb(ctx context.Context, index int) error {
	return d.navigate(ctx, func() error {
		if !d.nav.NavigateToBreadcrumbIndex(index) {
			return errUnchanged
		}
		d.search = ""
		d.form = nil
		return nil
	})
}

// Search sets the filter term. It never fetches.
func (d *Dashboard) Search(term string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.search = term
}

func (d *Dashboard) writableLocked() error {
	if !d.session.Authenticated() {
		return ErrLoginRequired
	}
	if d.scope != domain.ScopeMine {
		return ErrReadOnly
	}
	return nil
}

func (d *Dashboard) kindAllowedLocked(kind domain.Kind) error {
	if kind != domain.KindFolder && kind != d.nav.Category.EntityKind() {
		return ErrWrongCategory
	}
	return nil
}

// OpenCreateForm opens an empty form for kind in the current folder.
func (d *Dashboard) OpenCreateForm(ctx context.Context, kind domain.Kind) error {
	schema, err := form.Lookup(kind)
	if err != nil {
		return err
	}
	d.mu.Lock()
	if err := d.writableLocked(); err != nil {
		d.mu.Unlock()
		return err
	}
	if err := d.kindAllowedLocked(kind); err != nil {
		d.mu.Unlock()
		return err
	}
	f := form.NewCreate(schema, d.nav.Category, d.nav.FolderID)
	d.form = f
	d.mu.Unlock()

	d.loadChoices(ctx, f)
	return nil
}

// OpenEditForm opens a form seeded with a record of the current view.
func (d *Dashboard) OpenEditForm(ctx context.Context, kind domain.Kind, id int64) error {
	schema, err := form.Lookup(kind)
	if err != nil {
		return err
	}
	d.mu.Lock()
	if err := d.writableLocked(); err != nil {
		d.mu.Unlock()
		return err
	}
	record, ok := find(d.view.Content(), kind, id)
	if !ok {
		d.mu.Unlock()
		return ErrUnknownRecord
	}
	f, err := form.NewEdit(schema, d.nav.Category, id, record)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	d.form = f
	d.mu.Unlock()

	d.loadChoices(ctx, f)
	return nil
}

// loadChoices fills the relation fields of f from the caller's catalogs.
// Failures leave the pick lists empty.
func (d *Dashboard) loadChoices(ctx context.Context, f *form.Form) {
	relations := f.Relations()
	if len(relations) == 0 {
		return
	}
	client := d.session.Client()
	choices := make([][]form.Choice, len(relations))

	g, gctx := errgroup.WithContext(ctx)
	for i, field := range relations {
		g.Go(func() error {
			c, err := d.svc.loader.Collect(gctx, client, field.Source)
			if err != nil {
				return err
			}
			choices[i] = toChoices(c, field.Source)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		d.svc.logger.Warn("failed to load relation choices", "session", d.id, "error", err)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.form != f {
		return
	}
	for i, field := range relations {
		f.SetChoices(field.Key, choices[i])
	}
}

func toChoices(c catalog.Content, category domain.Category) []form.Choice {
	var out []form.Choice
	switch category {
	case domain.CategoryItem:
		for _, it := range c.Items {
			out = append(out, form.Choice{ID: it.ID, Name: it.Name})
		}
	case domain.CategorySpell:
		for _, sp := range c.Spells {
			out = append(out, form.Choice{ID: sp.ID, Name: sp.Name})
		}
	case domain.CategoryCreature:
		for _, cr := range c.Creatures {
			out = append(out, form.Choice{ID: cr.ID, Name: cr.Name})
		}
	case domain.CategoryNPC:
		for _, n := range c.NPCs {
			out = append(out, form.Choice{ID: n.ID, Name: n.Name})
		}
	}
	return out
}

func find(c catalog.Content, kind domain.Kind, id int64) (any, bool) {
	switch kind {
	case domain.KindFolder:
		for _, v := range c.Folders {
			if v.ID == id {
				return v, true
			}
		}
	case domain.KindCreature:
		for _, v := range c.Creatures {
			if v.ID == id {
				return v, true
			}
		}
	case domain.KindItem:
		for _, v := range c.Items {
			if v.ID == id {
				return v, true
			}
		}
	case domain.KindSpell:
		for _, v := range c.Spells {
			if v.ID == id {
				return v, true
			}
		}
	case domain.KindNPC:
		for _, v := range c.NPCs {
			if v.ID == id {
				return v, true
			}
		}
	}
	return nil, false
}

// UpdateForm applies posted draft values to the open form.
func (d *Dashboard) UpdateForm(values url.Values) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.form == nil {
		return ErrNoForm
	}
	d.form.Update(values)
	return nil
}

func (d *Dashboard) ToggleRelation(field string, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.form == nil {
		return ErrNoForm
	}
	return d.form.Toggle(field, id)
}

// SubmitForm applies values to the open form and submits it. On success the
// form closes, the content reloads and the success text is returned.
func (d *Dashboard) SubmitForm(ctx context.Context, values url.Values) (string, error) {
	d.mu.Lock()
	f := d.form
	if f == nil {
		d.mu.Unlock()
		return "", ErrNoForm
	}
	f.Update(values)
	// Submit runs on a copy so the lock is not held during the request.
	draft := f.Clone()
	d.mu.Unlock()

	done := false
	msg, err := draft.Submit(ctx, d.session.Client(), func() { done = true })
	if err != nil {
		if cerr := d.classify(ctx, err); errors.Is(cerr, ErrSessionExpired) {
			return "", cerr
		}
		d.mu.Lock()
		if d.form == f {
			d.form = draft
		}
		d.mu.Unlock()
		d.svc.logger.Info("form rejected",
			"session", d.id,
			"kind", draft.Schema().Kind,
			"fields", backend.FieldSummary(backend.FieldErrors(err)),
			"error", err,
		)
		return "", &Failure{Text: form.FailureMessage(draft.Schema(), err), Err: err}
	}

	d.svc.logger.Info("form submitted", "session", d.id, "kind", draft.Schema().Kind, "edit", draft.Editing())
	if !done {
		return msg, nil
	}
	// The write went through; a failed reload is reported next to msg.
	err = d.change(ctx, func() error {
		if d.form == f {
			d.form = nil
		}
		return nil
	})
	return msg, err
}

// CancelForm closes the open form without persisting.
func (d *Dashboard) CancelForm() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.form == nil {
		return
	}
	d.form.Cancel(func() { d.form = nil })
}

// PrefillMonster copies a compendium monster into the creature form, opening
// a create form first when none is open.
func (d *Dashboard) PrefillMonster(ctx context.Context, index string) error {
	m, err := d.svc.compendium.Get(ctx, index)
	if err != nil {
		return &Failure{Text: "Monstro não encontrado no compêndio.", Err: err}
	}
	schema, err := form.Lookup(domain.KindCreature)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writableLocked(); err != nil {
		return err
	}
	if d.form == nil || d.form.Schema().Kind != domain.KindCreature {
		if err := d.kindAllowedLocked(domain.KindCreature); err != nil {
			return err
		}
		d.form = form.NewCreate(schema, d.nav.Category, d.nav.FolderID)
	}
	for k, v := range compendium.Prefill(m) {
		d.form.Set(k, v)
	}
	return nil
}

// RequestDelete sets the pending deletion, replacing any earlier one.
func (d *Dashboard) RequestDelete(kind domain.Kind, id int64, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writableLocked(); err != nil {
		return err
	}
	d.deletes.Request(confirm.Target{Kind: kind, ID: id, Name: name})
	return nil
}

func (d *Dashboard) CancelDelete() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deletes.Cancel()
}

// ConfirmDelete sends the pending DELETE and reloads on success.
func (d *Dashboard) ConfirmDelete(ctx context.Context) (string, error) {
	d.mu.Lock()
	target, ok := d.deletes.Pending()
	d.mu.Unlock()
	if !ok {
		return "", confirm.ErrNothingPending
	}

	// The dialog is confirmed on a copy holding only this target, so a
	// newer request made meanwhile is not cleared by this one.
	var dialog confirm.Dialog
	dialog.Request(target)
	if _, err := dialog.Confirm(ctx, d.session.Client()); err != nil {
		if cerr := d.classify(ctx, err); errors.Is(cerr, ErrSessionExpired) {
			return "", cerr
		}
		d.svc.logger.Warn("delete failed", "session", d.id, "kind", target.Kind, "id", target.ID, "error", err)
		return "", &Failure{
			Text: backend.UserMessage(err, "Erro ao excluir: "+target.Name+"."),
			Err:  err,
		}
	}

	d.svc.logger.Info("record deleted", "session", d.id, "kind", target.Kind, "id", target.ID)
	err := d.change(ctx, func() error {
		if p, ok := d.deletes.Pending(); ok && p == target {
			d.deletes.Cancel()
		}
		if target.IsFolder() {
			d.dropDeletedFolderLocked(target.ID)
		}
		return nil
	})
	return target.TypeLabel() + " excluído(a) com sucesso.", err
}

// dropDeletedFolderLocked leaves a deleted folder that is on the current path.
func (d *Dashboard) dropDeletedFolderLocked(id int64) {
	for i, c := range d.nav.Path {
		if c.ID != nil && *c.ID == id {
			d.nav.NavigateToBreadcrumbIndex(i - 1)
			return
		}
	}
}

// Login authenticates the session and shows the caller's own folders.
func (d *Dashboard) Login(ctx context.Context, email, password string) error {
	if err := d.session.Login(ctx, email, password); err != nil {
		return err
	}
	return d.change(ctx, func() error {
		d.resetLocked(domain.ScopeMine)
		return nil
	})
}

// Register creates an account without logging in.
func (d *Dashboard) Register(ctx context.Context, r session.Registration) error {
	return d.session.Register(ctx, r)
}

// Logout clears the credential and falls back to the public folders.
func (d *Dashboard) Logout(ctx context.Context) error {
	if err := d.session.Logout(ctx); err != nil {
		return err
	}
	return d.change(ctx, func() error {
		d.resetLocked(domain.ScopePublic)
		return nil
	})
}

// Snapshot copies the state needed to render the dashboard.
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	profile, authenticated := d.session.Profile()
	loaded := d.view.Content().ForCategory(d.nav.Category)
	snap := Snapshot{
		Authenticated: authenticated,
		Profile:       profile,
		Category:      d.nav.Category,
		Scope:         d.scope,
		Path:          append([]navigation.Crumb(nil), d.nav.Path...),
		AtRoot:        d.nav.AtRoot(),
		Search:        d.search,
		Content:       catalog.Filter(loaded, d.search),
		Empty:         catalog.Classify(loaded, d.search),
		Loaded:        d.view.Loaded(),
	}
	if snap.AtRoot {
		snap.Title = d.nav.Category.RootTitle(d.scope)
	} else {
		snap.Title = d.nav.Current().Name
	}
	if d.form != nil {
		snap.Form = d.form.Clone()
	}
	if t, ok := d.deletes.Pending(); ok {
		snap.Pending = &t
	}
	return snap
}

// Snapshot is a consistent copy of one dashboard for rendering.
type Snapshot struct {
	Authenticated bool
	Profile       domain.Profile
	Category      domain.Category
	Scope         domain.Scope
	Path          []navigation.Crumb
	AtRoot        bool
	Title         string
	Search        string
	Content       catalog.Content
	Empty         catalog.EmptyState
	Loaded        bool
	Form          *form.Form
	Pending       *confirm.Target
}

// Writable reports whether create affordances are shown.
func (s Snapshot) Writable() bool {
	return s.Authenticated && s.Scope == domain.ScopeMine
}

// CanModify reports whether edit and delete affordances are shown for a
// record owned by owner. Records without an owner in the view belong to the
// caller's own listing.
func (s Snapshot) CanModify(owner string) bool {
	if !s.Writable() {
		return false
	}
	return owner == "" || strings.EqualFold(owner, s.Profile.Nickname)
}

// EntityKind is the kind of record listed in the active category.
func (s Snapshot) EntityKind() domain.Kind { return s.Category.EntityKind() }

// CanCreateEntity reports whether the create button for entities is shown;
// entities live inside folders.
func (s Snapshot) CanCreateEntity() bool { return s.Writable() && !s.AtRoot }
