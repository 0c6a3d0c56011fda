package orchestrator

// Status is the lifecycle state of a single component during a run. The
// orchestrator is the only writer; everything else sees snapshots.
type Status int32

const (
	// Pending means the component has not been attempted yet.
	Pending Status = iota
	// Loading means a worker is currently inside the component's loader.
	Loading
	// Loaded means the loader returned a valid handle.
	Loaded
	// Failed means the loader returned an error or timed out.
	Failed
	// Skipped means the component was never attempted: a required
	// dependency failed or was skipped, it was unreachable, or the run was
	// cancelled before its turn.
	Skipped
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}
