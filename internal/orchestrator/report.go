package orchestrator

import "time"

// Entry is one component's outcome in a report snapshot.
type Entry struct {
	Status Status
	// Err is set only for Failed entries and is always a
	// *ComponentLoadError.
	Err error
	// Reason explains Skipped entries: the root failure, the missing
	// dependency, or run cancellation.
	Reason string
	// CompletedAt is when the component reached a terminal status. Zero for
	// Pending and Loading entries.
	CompletedAt time.Time
}

// Report is an immutable snapshot of a run's outcome.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Entries    map[string]Entry
}

// tally counts the terminal statuses in the report.
func (r *Report) tally() (loaded, failed, skipped int) {
	for _, e := range r.Entries {
		switch e.Status {
		case Loaded:
			loaded++
		case Failed:
			failed++
		case Skipped:
			skipped++
		}
	}
	return loaded, failed, skipped
}

// Report returns a detached snapshot of the current per-component state.
// During a run it reflects the moment of the call; after Run returns it is
// the final outcome.
func (o *Orchestrator) Report() *Report {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotReportLocked(time.Time{}, time.Time{})
}

// snapshotReport builds the report Run hands back, stamped with the run's
// start and finish times.
func (o *Orchestrator) snapshotReport(startedAt, finishedAt time.Time) *Report {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotReportLocked(startedAt, finishedAt)
}

func (o *Orchestrator) snapshotReportLocked(startedAt, finishedAt time.Time) *Report {
	r := &Report{
		RunID:      o.runID,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Entries:    make(map[string]Entry, len(o.entries)),
	}
	for name, e := range o.entries {
		r.Entries[name] = Entry{
			Status:      e.status,
			Err:         e.err,
			Reason:      e.reason,
			CompletedAt: e.completedAt,
		}
	}
	return r
}
