package registry

import "github.com/seisview/markermap/internal/marker"

// Highlight deactivates every marker and then activates id, leaving at most
// one active marker. When id is unknown no marker is left active; found
// reports whether id exists.
func (r *Registry) Highlight(id string) (found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.setAllInactive()

	rec, ok := r.records[id]
	if !ok {
		return false
	}
	r.setActive(rec)
	return true
}

// ActiveIDs returns the ids of active markers, sorted.
func (r *Registry) ActiveIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for _, id := range r.sortedIDs() {
		if r.records[id].Status == marker.StatusActive {
			ids = append(ids, id)
		}
	}
	return ids
}
