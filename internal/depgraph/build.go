package depgraph

import (
	"context"

	"github.com/vk/modkit/internal/ctxlog"
	"github.com/vk/modkit/internal/descriptor"
)

// Build constructs the dependency graph for the given descriptors. The slice
// must be in registration order; that order is preserved in Names and in the
// reverse map, which is what makes every derived artifact deterministic.
func Build(ctx context.Context, descs []descriptor.Descriptor) *Graph {
	logger := ctxlog.FromContext(ctx)

	g := &Graph{
		names:   make([]string, 0, len(descs)),
		forward: make(map[string][]Edge, len(descs)),
		reverse: make(map[string][]Edge, len(descs)),
	}

	// First pass: register every node so edges can resolve regardless of
	// declaration order.
	for _, d := range descs {
		g.names = append(g.names, d.Name)
		g.forward[d.Name] = nil
		g.reverse[d.Name] = nil
	}
	logger.Debug("Graph nodes created.", "count", len(g.names))

	// Second pass: link edges, required lists first so declared order within
	// a descriptor is "required then optional".
	for _, d := range descs {
		seen := make(map[string]struct{}, len(d.Requires)+len(d.Optional))
		for _, dep := range d.Requires {
			g.link(ctx, d.Name, dep, Required, seen)
		}
		for _, dep := range d.Optional {
			g.link(ctx, d.Name, dep, Optional, seen)
		}
	}
	logger.Debug("Graph linking complete.",
		"nodes", len(g.names), "unresolved", len(g.unresolved))

	return g
}

// link records a single declared dependency. Duplicate declarations within
// one descriptor collapse to the first occurrence, so a name listed as both
// required and optional stays required.
func (g *Graph) link(ctx context.Context, from, to string, kind EdgeKind, seen map[string]struct{}) {
	if _, dup := seen[to]; dup {
		ctxlog.FromContext(ctx).Warn("Duplicate dependency declaration ignored.",
			"component", from, "dependency", to)
		return
	}
	seen[to] = struct{}{}

	if _, known := g.forward[to]; !known {
		g.unresolved = append(g.unresolved, UnresolvedDependency{
			Component: from,
			Missing:   to,
			Optional:  kind == Optional,
		})
		return
	}

	// Self-edges resolve like any other edge; the sorter reports them as a
	// one-node cycle rather than the builder guessing at intent.
	g.forward[from] = append(g.forward[from], Edge{Name: to, Kind: kind})
	g.reverse[to] = append(g.reverse[to], Edge{Name: from, Kind: kind})
}
