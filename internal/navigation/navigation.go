// Package navigation models where the user is in a category's folder tree,
// independent of what content is displayed there. It performs no I/O.
package navigation

import "github.com/vbonduro/drakdex/internal/domain"

// RootName labels the root sentinel of every breadcrumb path.
const RootName = "Raiz"

// Crumb is one step of the breadcrumb path. The root sentinel has a nil ID.
type Crumb struct {
	ID   *int64 `json:"id"`
	Name string `json:"nome"`
}

// Root reports whether the crumb is the root sentinel.
func (c Crumb) Root() bool { return c.ID == nil }

// State is the navigation position. The last crumb of Path always carries
// FolderID, and Path is just the root sentinel when FolderID is nil.
type State struct {
	Category domain.Category `json:"category"`
	FolderID *int64          `json:"folderId"`
	Path     []Crumb         `json:"path"`
}

func New(category domain.Category) State {
	return State{Category: category, Path: rootPath()}
}

func rootPath() []Crumb {
	return []Crumb{{Name: RootName}}
}

// AtRoot reports whether no folder is open.
func (s *State) AtRoot() bool { return s.FolderID == nil }

// Current is the last crumb of the path.
func (s *State) Current() Crumb { return s.Path[len(s.Path)-1] }

// EnterFolder pushes folder onto the path and makes it current.
func (s *State) EnterFolder(folder domain.Folder) {
	id := folder.ID
	s.Path = append(s.Path, Crumb{ID: &id, Name: folder.Name})
	s.FolderID = &id
}

// NavigateToBreadcrumbIndex truncates the path to i+1 crumbs. Index 0 returns
// to the category root. It reports whether the state changed; out-of-range
// indices are ignored.
func (s *State) NavigateToBreadcrumbIndex(i int) bool {
	if i < 0 || i >= len(s.Path) {
		return false
	}
	s.Path = s.Path[:i+1:i+1]
	if i == 0 {
		s.FolderID = nil
		return true
	}
	id := *s.Path[i].ID
	s.FolderID = &id
	return true
}

// SwitchCategory moves to the root of category.
func (s *State) SwitchCategory(category domain.Category) {
	s.Category = category
	s.FolderID = nil
	s.Path = rootPath()
}

// Normalize repairs a state decoded from storage so that it honours the path
// invariant, falling back to the root of its category.
func (s *State) Normalize() {
	if _, err := domain.ParseCategory(string(s.Category)); err != nil {
		s.Category = domain.CategoryCreature
	}
	valid := len(s.Path) > 0 && s.Path[0].Root()
	for _, c := range s.Path[min(1, len(s.Path)):] {
		if c.ID == nil {
			valid = false
		}
	}
	if valid {
		last := s.Path[len(s.Path)-1]
		switch {
		case last.ID == nil && s.FolderID != nil, last.ID != nil && (s.FolderID == nil || *s.FolderID != *last.ID):
			valid = false
		}
	}
	if !valid {
		s.FolderID = nil
		s.Path = rootPath()
	}
}
