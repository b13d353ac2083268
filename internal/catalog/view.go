package catalog

// Ticket identifies the navigation generation a load was issued for.
type Ticket uint64

// View holds the content currently displayed and discards load results that
// were issued for an earlier navigation generation. It is not safe for
// concurrent use; the dashboard owning it serializes access.
type View struct {
	generation Ticket
	content    Content
	loaded     bool
}

// Begin starts a new generation and returns its ticket. Results for any
// earlier ticket are discarded from now on.
func (v *View) Begin() Ticket {
	v.generation++
	return v.generation
}

// Current is the ticket of the latest generation.
func (v *View) Current() Ticket { return v.generation }

// Apply replaces the displayed content when t is still current and reports
// whether it did.
func (v *View) Apply(t Ticket, c Content) bool {
	if t != v.generation {
		return false
	}
	v.content = c
	v.loaded = true
	return true
}

// Content is the last applied content.
func (v *View) Content() Content { return v.content }

// Loaded reports whether any load has been applied yet.
func (v *View) Loaded() bool { return v.loaded }
