// Package orchestrator drives the loading pass over a computed plan: it
// invokes the injected loader once per attempted component, tracks status
// transitions, short-circuits the required dependents of failed components,
// and exposes the run's outcome as a detached report.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/vk/modkit/internal/depgraph"
	"github.com/vk/modkit/internal/metrics"
	"github.com/vk/modkit/internal/toposort"
)

// Handle is the capability contract a loader result must satisfy. The core
// never knows what a component does once built; it only verifies, once per
// load, that the handle identifies itself as the component it was asked for.
type Handle interface {
	Name() string
}

// Loader constructs the live artifact for one component. It is supplied by
// the embedding application and may block on I/O; the context carries the
// per-call deadline when one is configured.
type Loader func(ctx context.Context, name string) (Handle, error)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkers bounds the number of in-flight loader calls. The default of 1
// makes the run strictly sequential in plan order.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLoadTimeout applies a per-call deadline to every loader invocation.
// Zero means no deadline.
func WithLoadTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.loadTimeout = d
	}
}

// WithRecorder attaches a metrics recorder to the run.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// Orchestrator owns per-component status for one graph and plan. The graph
// and plan are read-only for the orchestrator's lifetime; the status map is
// the only shared mutable state and is guarded by mu.
type Orchestrator struct {
	graph *depgraph.Graph
	plan  *toposort.Result

	workers     int
	loadTimeout time.Duration
	recorder    metrics.Recorder

	mu      sync.Mutex
	running bool
	runID   string
	entries map[string]*entry
	handles map[string]Handle
}

// entry is the mutable per-component record behind the report snapshots.
type entry struct {
	status      Status
	err         error
	reason      string
	completedAt time.Time
}

// New creates an orchestrator for the given graph and plan. All components
// start out Pending.
func New(g *depgraph.Graph, plan *toposort.Result, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		graph:    g,
		plan:     plan,
		workers:  1,
		recorder: metrics.NopRecorder{},
		entries:  make(map[string]*entry, g.Len()),
		handles:  make(map[string]Handle),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.mu.Lock()
	o.resetLocked()
	o.mu.Unlock()
	return o
}

// resetLocked recreates all per-run state. Callers hold mu.
func (o *Orchestrator) resetLocked() {
	o.entries = make(map[string]*entry, o.graph.Len())
	for _, name := range o.graph.Names() {
		o.entries[name] = &entry{status: Pending}
	}
	o.handles = make(map[string]Handle)
}

// transition moves one component to a new status. Terminal statuses stamp
// the completion time.
func (o *Orchestrator) transition(name string, s Status, err error, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.entries[name]
	if !ok {
		return
	}
	e.status = s
	e.err = err
	e.reason = reason
	switch s {
	case Loaded, Failed, Skipped:
		e.completedAt = time.Now()
	}
}

// Status returns the current status of name. The second return value is
// false for names the graph does not contain.
func (o *Orchestrator) Status(name string) (Status, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.entries[name]
	if !ok {
		return Pending, false
	}
	return e.status, true
}

// Handle returns the live handle of a Loaded component.
func (o *Orchestrator) Handle(name string) (Handle, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	h, ok := o.handles[name]
	return h, ok
}

// Order returns the load order the orchestrator runs over.
func (o *Orchestrator) Order() []string {
	return append([]string(nil), o.plan.Order...)
}

// Unreachable returns the components excluded from the order because their
// required closure names an unregistered component.
func (o *Orchestrator) Unreachable() []toposort.Unreachable {
	return append([]toposort.Unreachable(nil), o.plan.Unreachable...)
}

// Dependents returns the names that declared a dependency on name, required
// and optional alike, in registration order.
func (o *Orchestrator) Dependents(name string) []string {
	edges := o.graph.Dependents(name)
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.Name)
	}
	return out
}
