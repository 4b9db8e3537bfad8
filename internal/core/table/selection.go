package table

import "sort"

// Selection is the set of item ids targeted by batch operations
type Selection struct {
	ids map[string]struct{}
}

// NewSelection creates an empty selection
func NewSelection() *Selection {
	return &Selection{ids: make(map[string]struct{})}
}

// SelectAll replaces the selection with ids
func (s *Selection) SelectAll(ids []string) {
	s.ids = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

// SelectNone clears the selection
func (s *Selection) SelectNone() {
	s.ids = make(map[string]struct{})
}

// Toggle adds or removes a single id
func (s *Selection) Toggle(id string, selected bool) {
	if selected {
		s.ids[id] = struct{}{}
		return
	}
	delete(s.ids, id)
}

// Has reports whether id is selected
func (s *Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of selected ids
func (s *Selection) Len() int {
	return len(s.ids)
}

// IDs returns the selected ids in sorted order
func (s *Selection) IDs() []string {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsAllSelected is true iff the selection is non-empty and equals universe
func (s *Selection) IsAllSelected(universe []string) bool {
	if len(s.ids) == 0 {
		return false
	}
	u := toSet(universe)
	if len(u) != len(s.ids) {
		return false
	}
	return s.subsetOf(u)
}

// IsPartiallySelected is true iff the selection is non-empty and a strict subset of universe
func (s *Selection) IsPartiallySelected(universe []string) bool {
	if len(s.ids) == 0 {
		return false
	}
	u := toSet(universe)
	return len(s.ids) < len(u) && s.subsetOf(u)
}

// Remove drops ids from the selection
func (s *Selection) Remove(ids ...string) {
	for _, id := range ids {
		delete(s.ids, id)
	}
}

// Retain drops every selected id not present in existing
func (s *Selection) Retain(existing []string) {
	keep := toSet(existing)
	for id := range s.ids {
		if _, ok := keep[id]; !ok {
			delete(s.ids, id)
		}
	}
}

func (s *Selection) subsetOf(u map[string]struct{}) bool {
	for id := range s.ids {
		if _, ok := u[id]; !ok {
			return false
		}
	}
	return true
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
