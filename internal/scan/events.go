// Package scan walks a photo tree and turns image files into face
// observations using the embedding service, with a read-through encoding
// cache and a bounded worker pool.
package scan

// Phase labels for progress events.
const (
	PhaseExtracting = "extracting"
	PhaseClustering = "clustering"
	PhaseOrganizing = "organizing"
)

// Event is one progress update from a long-running pass. The core sends
// events; presentation (progress bar, SSE) drains them. Sends never block:
// a slow or absent consumer drops updates, it does not stall extraction.
type Event struct {
	Phase   string `json:"phase"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message,omitempty"`
}

// emit sends an event without blocking.
func emit(ch chan<- Event, ev Event) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}
