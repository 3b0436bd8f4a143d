package dodge

type EventKind string

const (
	// EventSnapshotUpdated carries the ranked rows to render.
	EventSnapshotUpdated  EventKind = "snapshot_updated"
	EventStarted          EventKind = "started"
	EventRematchRequested EventKind = "rematch_requested"
	EventSessionEnded     EventKind = "session_ended"
)

type Event struct {
	Kind EventKind
	Rows []Row
	// Name is the requesting player for EventRematchRequested.
	Name string
	Err  error
}

// Synchronizer - what the game loop talks to, on either side of the star.
type Synchronizer interface {
	ReportLocalUpdate(score int, alive bool) error
	Subscribe(handler func(event Event))
	Snapshot() []Row
}

var (
	_ Synchronizer = (*Host)(nil)
	_ Synchronizer = (*Joiner)(nil)
)
