package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vk/modkit/internal/ctxlog"
)

// loadResult is what a load goroutine reports back to the dispatcher.
type loadResult struct {
	name    string
	handle  Handle
	err     error
	elapsed time.Duration
}

// runState is the dispatcher's working set for one run. It is owned by the
// Run goroutine; workers only ever touch the results channel, so eligibility
// checks and Pending→Loading transitions happen in a single place.
type runState struct {
	o *Orchestrator

	// index maps a component to its position in the plan order.
	index map[string]int
	// remaining counts the not-yet-Loaded required dependencies.
	remaining map[string]int
	// pending holds every component not yet dispatched, skipped, or failed.
	pending map[string]struct{}
	// ready holds eligible components sorted by plan index, so a single
	// worker processes the plan strictly in order.
	ready []string

	results  chan loadResult
	inflight int
}

// Run drives one loading pass and blocks until every component has reached a
// terminal status or, after cancellation, until in-flight loads drain. The
// loader is invoked exactly once per attempted component. A failure inside a
// single load never escapes as an error; callers inspect the report. The
// returned error is non-nil only for misuse (nil loader, overlapping runs)
// or cancellation.
func (o *Orchestrator) Run(ctx context.Context, loader Loader) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	if loader == nil {
		return nil, errors.New("orchestrator: loader must not be nil")
	}

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrRunInProgress
	}
	o.running = true
	o.runID = uuid.NewString()
	o.resetLocked()
	o.mu.Unlock()

	startedAt := time.Now()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	logger = logger.With("run_id", o.runID)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Info("Load run starting.",
		"components", len(o.plan.Order), "workers", o.workers)
	o.recorder.RunStarted(len(o.plan.Order))

	// Components outside the plan can never be satisfied; settle them first.
	for _, u := range o.plan.Unreachable {
		reason := fmt.Sprintf("required dependency %q is not registered", u.Missing)
		logger.Warn("Skipping unreachable component.", "component", u.Name, "missing", u.Missing)
		o.transition(u.Name, Skipped, nil, reason)
	}

	s := &runState{
		o:         o,
		index:     make(map[string]int, len(o.plan.Order)),
		remaining: make(map[string]int, len(o.plan.Order)),
		pending:   make(map[string]struct{}, len(o.plan.Order)),
		results:   make(chan loadResult),
	}
	for i, name := range o.plan.Order {
		s.index[name] = i
	}
	for _, name := range o.plan.Order {
		s.pending[name] = struct{}{}
		s.remaining[name] = len(o.graph.RequiredDependencies(name))
		if s.remaining[name] == 0 {
			s.pushReady(name)
		}
	}

	cancelled := false
	ctxDone := ctx.Done()

	for len(s.pending) > 0 || s.inflight > 0 {
		if cancelled {
			s.skipQueued(ctx)
		} else {
			s.dispatch(ctx, loader)
		}

		if s.inflight == 0 {
			if len(s.pending) == 0 {
				break
			}
			// Nothing in flight and nothing eligible: every remaining
			// component waits on something that already settled without
			// reaching Loaded. The skip cascade normally clears these, so
			// this is a belt-and-braces guard against a plan/graph mismatch.
			logger.Error("No progress possible, skipping remainder.", "pending", len(s.pending))
			for _, name := range o.plan.Order {
				if _, ok := s.pending[name]; ok {
					delete(s.pending, name)
					o.transition(name, Skipped, nil, "unsatisfiable dependencies")
				}
			}
			break
		}

		select {
		case res := <-s.results:
			s.inflight--
			s.handleResult(ctx, res)
		case <-ctxDone:
			// In-flight loads are allowed to finish; only queued components
			// are written off.
			logger.Warn("Run cancelled, draining in-flight loads.", "inflight", s.inflight)
			cancelled = true
			ctxDone = nil
		}
	}

	report := o.snapshotReport(startedAt, time.Now())
	loaded, failed, skipped := report.tally()
	o.recorder.RunFinished(loaded, failed, skipped)
	logger.Info("Load run finished.",
		"loaded", loaded, "failed", failed, "skipped", skipped,
		"duration", report.FinishedAt.Sub(report.StartedAt))

	if cancelled {
		return report, ctx.Err()
	}
	return report, nil
}

// pushReady inserts name into the ready queue, keeping it sorted by plan
// index.
func (s *runState) pushReady(name string) {
	at := sort.Search(len(s.ready), func(i int) bool {
		return s.index[s.ready[i]] > s.index[name]
	})
	s.ready = slices.Insert(s.ready, at, name)
}

// dispatch releases eligible components to workers up to the in-flight bound.
func (s *runState) dispatch(ctx context.Context, loader Loader) {
	logger := ctxlog.FromContext(ctx)
	for s.inflight < s.o.workers && len(s.ready) > 0 {
		name := s.ready[0]
		s.ready = s.ready[1:]
		delete(s.pending, name)

		logger.Debug("Dispatching component.", "component", name)
		s.o.transition(name, Loading, nil, "")
		s.o.recorder.LoadStarted(name)
		s.inflight++
		go s.o.load(ctx, name, loader, s.results)
	}
}

// handleResult settles one finished load and updates downstream eligibility
// through the reverse map, so no full-graph rescan is ever needed.
func (s *runState) handleResult(ctx context.Context, res loadResult) {
	logger := ctxlog.FromContext(ctx)

	if res.err != nil {
		logger.Error("Component failed to load.",
			"component", res.name, "error", res.err, "elapsed", res.elapsed)
		s.o.transition(res.name, Failed, res.err, "")
		s.o.recorder.LoadFinished(res.name, "failed", res.elapsed)
		s.skipDependents(ctx, res.name, res.name)
		return
	}

	logger.Debug("Component loaded.", "component", res.name, "elapsed", res.elapsed)
	s.o.mu.Lock()
	s.o.handles[res.name] = res.handle
	s.o.mu.Unlock()
	s.o.transition(res.name, Loaded, nil, "")
	s.o.recorder.LoadFinished(res.name, "loaded", res.elapsed)

	for _, dependent := range s.o.graph.RequiredDependents(res.name) {
		if _, waiting := s.pending[dependent]; !waiting {
			continue
		}
		s.remaining[dependent]--
		if s.remaining[dependent] == 0 {
			logger.Debug("Component became eligible.", "component", dependent)
			s.pushReady(dependent)
		}
	}
}

// skipDependents marks the still-pending required dependents of name as
// Skipped, citing the root failure, and cascades transitively. Optional
// edges are left alone: a failed optional dependency never blocks anyone.
func (s *runState) skipDependents(ctx context.Context, name, root string) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range s.o.graph.RequiredDependents(name) {
		if _, waiting := s.pending[dependent]; !waiting {
			continue
		}
		delete(s.pending, dependent)
		logger.Warn("Skipping component, upstream failure.",
			"component", dependent, "blocked_by", root)
		s.o.transition(dependent, Skipped, nil, fmt.Sprintf("blocked by %s", root))
		s.skipDependents(ctx, dependent, root)
	}
}

// skipQueued writes off every component that has not been dispatched yet.
// Used after cancellation, while in-flight loads drain.
func (s *runState) skipQueued(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	for _, name := range s.o.plan.Order {
		if _, ok := s.pending[name]; !ok {
			continue
		}
		delete(s.pending, name)
		logger.Warn("Skipping queued component, run cancelled.", "component", name)
		s.o.transition(name, Skipped, nil, "run cancelled")
	}
	s.ready = nil
}

// load invokes the loader for one component and reports the outcome. It runs
// on a worker goroutine; when a per-call timeout is configured and expires,
// the loader goroutine is abandoned (its context is cancelled, cooperative
// loaders stop themselves) and its eventual result is discarded.
func (o *Orchestrator) load(ctx context.Context, name string, loader Loader, results chan<- loadResult) {
	start := time.Now()

	lctx := ctx
	var timeout <-chan time.Time
	if o.loadTimeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, o.loadTimeout)
		defer cancel()

		timer := time.NewTimer(o.loadTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	done := make(chan loadResult, 1)
	go func() {
		handle, err := loader(lctx, name)
		switch {
		case err != nil:
			done <- loadResult{name: name, err: &ComponentLoadError{Name: name, Err: err}}
		case handle == nil:
			done <- loadResult{name: name, err: &ComponentLoadError{Name: name, Err: errors.New("loader returned a nil handle")}}
		case handle.Name() != name:
			done <- loadResult{name: name, err: &ComponentLoadError{
				Name: name,
				Err:  fmt.Errorf("loader returned a handle for %q", handle.Name()),
			}}
		default:
			done <- loadResult{name: name, handle: handle}
		}
	}()

	select {
	case res := <-done:
		res.elapsed = time.Since(start)
		results <- res
	case <-timeout:
		results <- loadResult{
			name:    name,
			elapsed: time.Since(start),
			err: &ComponentLoadError{
				Name: name,
				Err:  &TimeoutError{Name: name, Timeout: o.loadTimeout},
			},
		}
	}
}
