package toposort

import (
	"context"

	"github.com/vk/modkit/internal/ctxlog"
	"github.com/vk/modkit/internal/depgraph"
)

// Unreachable names a component that cannot be ordered because its required
// closure contains a dependency nobody registered. Missing cites the root
// missing name, also for components only transitively affected.
type Unreachable struct {
	Name    string
	Missing string
}

// Result is a successfully computed load plan.
type Result struct {
	// Order lists every orderable component, dependencies before dependents.
	Order []string
	// Unreachable lists the components excluded from Order, in registration
	// order. The orchestrator marks these Skipped without attempting them.
	Unreachable []Unreachable
}

// Sort computes one valid load order for the graph, or fails with a
// *CyclicDependencyError when none exists.
//
// The traversal is depth-first with white/gray/black coloring: unvisited
// roots are taken in registration order and each node's dependencies are
// recursed in declared order, which pins the result down to a single
// reproducible order for an unchanged descriptor set. Hitting a gray node
// means the walk re-entered its own stack, and that stack suffix is the
// cycle.
func Sort(ctx context.Context, g *depgraph.Graph) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	missingOf := unreachableClosure(g)

	const (
		white = iota
		gray
		black
	)
	colors := make(map[string]int, g.Len())
	stack := make([]string, 0, g.Len())
	order := make([]string, 0, g.Len())

	var visit func(name string) *CyclicDependencyError
	visit = func(name string) *CyclicDependencyError {
		colors[name] = gray
		stack = append(stack, name)

		for _, edge := range g.Dependencies(name) {
			switch colors[edge.Name] {
			case gray:
				return newCycleError(stack, edge.Name)
			case white:
				if err := visit(edge.Name); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[name] = black

		// Unreachable components still take part in cycle detection but
		// never enter the order.
		if _, excluded := missingOf[name]; !excluded {
			order = append(order, name)
		}
		return nil
	}

	for _, name := range g.Names() {
		if colors[name] == white {
			if err := visit(name); err != nil {
				logger.Debug("Sort failed on cycle.", "path", err.Path)
				return nil, err
			}
		}
	}

	var unreachable []Unreachable
	for _, name := range g.Names() {
		if missing, ok := missingOf[name]; ok {
			unreachable = append(unreachable, Unreachable{Name: name, Missing: missing})
		}
	}

	logger.Debug("Load order computed.",
		"ordered", len(order), "unreachable", len(unreachable))
	return &Result{Order: order, Unreachable: unreachable}, nil
}

// unreachableClosure maps every component whose required closure contains an
// unresolved required dependency to the root missing name. Seeds are the
// direct offenders; the closure spreads through required reverse edges.
func unreachableClosure(g *depgraph.Graph) map[string]string {
	missingOf := make(map[string]string)
	var queue []string

	for _, u := range g.Unresolved() {
		if u.Optional {
			continue
		}
		if _, seen := missingOf[u.Component]; !seen {
			missingOf[u.Component] = u.Missing
			queue = append(queue, u.Component)
		}
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, dependent := range g.RequiredDependents(name) {
			if _, seen := missingOf[dependent]; !seen {
				missingOf[dependent] = missingOf[name]
				queue = append(queue, dependent)
			}
		}
	}

	return missingOf
}
