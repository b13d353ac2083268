// Package form implements the one generic entity form used for folders,
// creatures, items, spells and NPCs. A Form holds the draft as the raw text
// the user typed and coerces it into the backend payload on Submit.
package form

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/vbonduro/drakdex/internal/backend"
	"github.com/vbonduro/drakdex/internal/domain"
)

// ErrFolderRequired is returned when creating an entity at a category root.
var ErrFolderRequired = errors.New("entities must be created inside a folder")

// writer is the subset of backend.Client the form requires.
type writer interface {
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
}

// Choice is one selectable record of a relation field.
type Choice struct {
	ID   int64
	Name string
}

type Form struct {
	schema   *Schema
	editID   *int64
	folderID *int64
	category domain.Category

	values   map[string]string
	selected map[string][]int64
	choices  map[string][]Choice
	errors   map[string]string
}

// NewCreate opens a create form seeded with defaults. folderID is the folder
// the record will be created in, nil at the category root.
func NewCreate(schema *Schema, category domain.Category, folderID *int64) *Form {
	f := &Form{
		schema:   schema,
		category: category,
		folderID: folderID,
		choices:  make(map[string][]Choice),
	}
	f.Reset()
	return f
}

// NewEdit opens an edit form seeded from entity, any value that marshals to
// the backend's JSON shape.
func NewEdit(schema *Schema, category domain.Category, id int64, entity any) (*Form, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", schema.Kind, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", schema.Kind, err)
	}

	f := NewCreate(schema, category, nil)
	f.editID = &id
	for _, field := range schema.Fields {
		if field.Kind == KindRelation {
			f.selected[field.Key] = seedIDs(doc, field)
			continue
		}
		v, ok := doc[field.Key]
		if !ok {
			continue
		}
		f.values[field.Key] = text(v)
	}
	return f, nil
}

// seedIDs reads relation ids either from the id list itself or from the
// expanded records named by SeedFrom.
func seedIDs(doc map[string]any, field Field) []int64 {
	ids := []int64{}
	if list, ok := doc[field.Key].([]any); ok && len(list) > 0 {
		for _, v := range list {
			if n, ok := v.(float64); ok {
				ids = append(ids, int64(n))
			}
		}
		return ids
	}
	if field.SeedFrom == "" {
		return ids
	}
	list, _ := doc[field.SeedFrom].([]any)
	for _, v := range list {
		obj, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if n, ok := obj["id"].(float64); ok {
			ids = append(ids, int64(n))
		}
	}
	return ids
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// Clone returns a deep copy of the form for rendering outside the lock that
// guards the original.
func (f *Form) Clone() *Form {
	cp := *f
	cp.values = maps.Clone(f.values)
	cp.errors = maps.Clone(f.errors)
	cp.choices = maps.Clone(f.choices)
	cp.selected = make(map[string][]int64, len(f.selected))
	for k, v := range f.selected {
		cp.selected[k] = slices.Clone(v)
	}
	return &cp
}

func (f *Form) Schema() *Schema { return f.schema }

// Editing reports whether the form updates an existing record.
func (f *Form) Editing() bool { return f.editID != nil }

// ID is the record being edited, zero in create mode.
func (f *Form) ID() int64 {
	if f.editID == nil {
		return 0
	}
	return *f.editID
}

func (f *Form) FolderID() *int64 { return f.folderID }

func (f *Form) Category() domain.Category { return f.category }

func (f *Form) Value(key string) string { return f.values[key] }

func (f *Form) Checked(key string) bool {
	b, _ := strconv.ParseBool(f.values[key])
	return b
}

func (f *Form) Selected(key string, id int64) bool {
	return slices.Contains(f.selected[key], id)
}

// SelectedIDs returns the relation ids in selection order.
func (f *Form) SelectedIDs(key string) []int64 { return slices.Clone(f.selected[key]) }

func (f *Form) Choices(key string) []Choice { return f.choices[key] }

// Error is the validation message attached to key by the last Submit.
func (f *Form) Error(key string) string { return f.errors[key] }

// Visible reports whether field applies given the current draft, as with the
// NPC combat stats that only apply to structured sheets.
func (f *Form) Visible(field Field) bool {
	for k, want := range field.ShowWhen {
		if f.values[k] != want {
			return false
		}
	}
	return true
}

// Reset restores the draft to the schema defaults.
func (f *Form) Reset() {
	f.values = make(map[string]string, len(f.schema.Fields))
	f.selected = make(map[string][]int64)
	f.errors = nil
	for _, field := range f.schema.Fields {
		if field.Kind == KindRelation {
			f.selected[field.Key] = []int64{}
			continue
		}
		f.values[field.Key] = field.Default
	}
}

// Set stores raw input for key. Unknown keys and relation fields are ignored.
func (f *Form) Set(key, value string) {
	field, ok := f.schema.Field(key)
	if !ok || field.Kind == KindRelation {
		return
	}
	f.values[key] = value
}

// Update applies a posted HTML form. Unchecked checkboxes are absent from
// browser submissions, so every checkbox not present in values is cleared.
func (f *Form) Update(values url.Values) {
	for _, field := range f.schema.Fields {
		switch field.Kind {
		case KindRelation:
			continue
		case KindCheckbox:
			f.values[field.Key] = strconv.FormatBool(values.Get(field.Key) != "")
		default:
			if values.Has(field.Key) {
				f.values[field.Key] = values.Get(field.Key)
			}
		}
	}
}

// Toggle adds id to or removes it from the relation field key.
func (f *Form) Toggle(key string, id int64) error {
	field, ok := f.schema.Field(key)
	if !ok || field.Kind != KindRelation {
		return fmt.Errorf("%s has no relation %q", f.schema.Kind, key)
	}
	ids := f.selected[key]
	if i := slices.Index(ids, id); i >= 0 {
		f.selected[key] = slices.Delete(ids, i, i+1)
		return nil
	}
	f.selected[key] = append(ids, id)
	return nil
}

// SetChoices installs the selectable records of the relation field key.
func (f *Form) SetChoices(key string, choices []Choice) { f.choices[key] = choices }

// Relations lists the relation fields of the schema.
func (f *Form) Relations() []Field {
	var out []Field
	for _, field := range f.schema.Fields {
		if field.Kind == KindRelation {
			out = append(out, field)
		}
	}
	return out
}

// Validate checks required fields and numeric input. The returned error is
// a validation.Errors keyed by field.
func (f *Form) Validate() error {
	errs := validation.Errors{}
	for _, field := range f.schema.Fields {
		value := strings.TrimSpace(f.values[field.Key])
		if field.Required {
			errs[field.Key] = validation.Validate(value,
				validation.Required.Error(field.Label+" é obrigatório"),
			)
			if errs[field.Key] != nil {
				continue
			}
		}
		if field.Kind.Numeric() && value != "" {
			if _, err := parseNumber(field.Kind, value); err != nil {
				errs[field.Key] = validation.NewError("validation_number", field.Label+" deve ser um número")
			}
		}
	}
	return errs.Filter()
}

func parseNumber(kind FieldKind, value string) (any, error) {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", ".")
	if kind == KindInteger {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n, nil
		}
		// Browsers may post "3.0" for integer inputs.
		fl, err := parseFinite(value)
		if err != nil || fl != math.Trunc(fl) || fl < math.MinInt64 || fl >= math.MaxInt64 {
			return nil, fmt.Errorf("not an integer: %q", value)
		}
		return int64(fl), nil
	}
	return parseFinite(value)
}

// parseFinite rejects the NaN and infinity spellings ParseFloat accepts; they
// have no JSON encoding.
func parseFinite(value string) (float64, error) {
	fl, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(fl) || math.IsInf(fl, 0) {
		return 0, fmt.Errorf("not a finite number: %q", value)
	}
	return fl, nil
}

// Payload is the coerced draft. Empty numeric fields are sent as null. For
// create it carries the target folder (and the category for folders); an
// update never reparents.
func (f *Form) Payload() (map[string]any, error) {
	payload := make(map[string]any, len(f.schema.Fields)+2)
	for _, field := range f.schema.Fields {
		raw := f.values[field.Key]
		switch {
		case field.Kind == KindRelation:
			payload[field.Key] = slices.Clone(f.selected[field.Key])
		case field.Kind == KindCheckbox:
			b, _ := strconv.ParseBool(raw)
			payload[field.Key] = b
		case field.Kind.Numeric():
			if strings.TrimSpace(raw) == "" {
				payload[field.Key] = nil
				continue
			}
			n, err := parseNumber(field.Kind, raw)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field.Key, err)
			}
			payload[field.Key] = n
		default:
			payload[field.Key] = strings.TrimSpace(raw)
		}
	}

	if f.Editing() {
		return payload, nil
	}
	if f.folderID != nil {
		payload[f.schema.FolderKey] = *f.folderID
	} else {
		payload[f.schema.FolderKey] = nil
	}
	if f.schema.CategoryKey != "" {
		payload[f.schema.CategoryKey] = f.category
	}
	return payload, nil
}

// Submit validates the draft and sends it as POST (create) or PUT (edit).
// On success onDone runs once, a create draft resets to defaults, and the
// success notification text is returned. On failure the draft is kept.
func (f *Form) Submit(ctx context.Context, client writer, onDone func()) (string, error) {
	f.errors = nil
	if !f.Editing() && f.schema.RequiresFolder && f.folderID == nil {
		return "", ErrFolderRequired
	}
	if err := f.Validate(); err != nil {
		f.errors = messages(err)
		return "", err
	}
	payload, err := f.Payload()
	if err != nil {
		return "", err
	}

	endpoint := f.schema.Kind.Endpoint()
	if f.Editing() {
		if err := client.Put(ctx, f.schema.Kind.ResourcePath(*f.editID), payload, nil); err != nil {
			f.errors = backend.FieldErrors(err)
			return "", fmt.Errorf("failed to update %s: %w", f.schema.Kind, err)
		}
		if onDone != nil {
			onDone()
		}
		return f.schema.Updated, nil
	}

	if err := client.Post(ctx, endpoint, payload, nil); err != nil {
		f.errors = backend.FieldErrors(err)
		return "", fmt.Errorf("failed to create %s: %w", f.schema.Kind, err)
	}
	f.Reset()
	if onDone != nil {
		onDone()
	}
	return f.schema.Created, nil
}

// Cancel discards the draft without persisting and runs onCancel.
func (f *Form) Cancel(onCancel func()) {
	f.Reset()
	if onCancel != nil {
		onCancel()
	}
}

func messages(err error) map[string]string {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for k, e := range verrs {
		out[k] = e.Error()
	}
	return out
}

// FailureMessage is the notification text for a failed Submit: the
// backend's plain message when it sent one, a generic text otherwise.
func FailureMessage(schema *Schema, err error) string {
	switch {
	case errors.Is(err, ErrFolderRequired):
		return "Abra uma pasta antes de criar: " + schema.Title + "."
	case len(messages(err)) > 0:
		return "Verifique os campos destacados."
	}
	return backend.UserMessage(err, "Erro ao salvar: "+schema.Title+".")
}
