// Package selection tracks bulk selection of customers on the visible page.
//
// The tri-state header checkbox is derived from IsAllSelected and
// IsPartiallySelected, so no rendering layer has to compute it.
package selection

// Tracker holds a set of selected customer IDs. The zero value is empty and
// ready to use. A Tracker is not safe for concurrent use; its owner
// serialises access.
type Tracker struct {
	ids map[string]struct{}
}

// SelectAll replaces the selection with exactly the IDs on page.
func (t *Tracker) SelectAll(page []string) {
	t.ids = make(map[string]struct{}, len(page))
	for _, id := range page {
		t.ids[id] = struct{}{}
	}
}

// Clear empties the selection.
func (t *Tracker) Clear() {
	t.ids = nil
}

// Toggle adds id when included is true and removes it otherwise.
func (t *Tracker) Toggle(id string, included bool) {
	if included {
		if t.ids == nil {
			t.ids = make(map[string]struct{})
		}
		t.ids[id] = struct{}{}
		return
	}
	delete(t.ids, id)
}

// IsSelected reports whether id is selected.
func (t *Tracker) IsSelected(id string) bool {
	_, ok := t.ids[id]
	return ok
}

// Len returns the number of selected IDs.
func (t *Tracker) Len() int { return len(t.ids) }

// IsAllSelected is true iff page is non-empty and every ID on it is selected.
func (t *Tracker) IsAllSelected(page []string) bool {
	if len(page) == 0 {
		return false
	}
	for _, id := range page {
		if !t.IsSelected(id) {
			return false
		}
	}
	return true
}

// IsPartiallySelected is true iff at least one, but not every, ID on page is selected.
func (t *Tracker) IsPartiallySelected(page []string) bool {
	n := 0
	for _, id := range page {
		if t.IsSelected(id) {
			n++
		}
	}
	return n > 0 && n < len(page)
}

// Retain drops every selected ID that is not on page.
func (t *Tracker) Retain(page []string) {
	if len(t.ids) == 0 {
		return
	}
	keep := make(map[string]struct{}, len(page))
	for _, id := range page {
		if t.IsSelected(id) {
			keep[id] = struct{}{}
		}
	}
	t.ids = keep
}

// Selected returns the selected IDs in page order. IDs not on page are omitted.
func (t *Tracker) Selected(page []string) []string {
	out := make([]string, 0, len(t.ids))
	for _, id := range page {
		if t.IsSelected(id) {
			out = append(out, id)
		}
	}
	return out
}
