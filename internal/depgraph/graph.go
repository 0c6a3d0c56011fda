package depgraph

// EdgeKind distinguishes hard dependencies from soft ones.
type EdgeKind int

const (
	// Required edges gate loading: the target must be Loaded before the
	// source may be attempted.
	Required EdgeKind = iota
	// Optional edges shape ordering but never gate progress.
	Optional
)

func (k EdgeKind) String() string {
	if k == Optional {
		return "optional"
	}
	return "required"
}

// Edge is one resolved dependency declaration between two known components.
type Edge struct {
	// Name is the component on the far side of the edge: the dependency in
	// a forward edge, the dependent in a reverse edge.
	Name string
	Kind EdgeKind
}

// UnresolvedDependency records a declared dependency on a name no descriptor
// carries. Missing optional subsystems are expected; missing required ones
// make the component unreachable at sort time.
type UnresolvedDependency struct {
	// Component is the declaring component.
	Component string
	// Missing is the dependency name that did not resolve.
	Missing string
	// Optional reports whether the declaration came from the optional list.
	Optional bool
}

// Graph is the resolved dependency structure for one descriptor set. It is
// immutable after Build and safe for concurrent reads.
type Graph struct {
	// names holds every component in registration order.
	names []string
	// forward maps a component to its resolved dependencies in declared
	// order, required entries first.
	forward map[string][]Edge
	// reverse maps a component to the components that declared an edge to
	// it, in registration order of the dependents.
	reverse map[string][]Edge
	// unresolved collects declared edges that point at unknown names.
	unresolved []UnresolvedDependency
}

// Has reports whether name belongs to the graph.
func (g *Graph) Has(name string) bool {
	_, ok := g.forward[name]
	return ok
}

// Len returns the number of components in the graph.
func (g *Graph) Len() int {
	return len(g.names)
}

// Names returns every component name in registration order.
func (g *Graph) Names() []string {
	return append([]string(nil), g.names...)
}

// Dependencies returns the resolved dependencies of name in declared order,
// required entries first.
func (g *Graph) Dependencies(name string) []Edge {
	return append([]Edge(nil), g.forward[name]...)
}

// Dependents returns the components that declared an edge to name.
func (g *Graph) Dependents(name string) []Edge {
	return append([]Edge(nil), g.reverse[name]...)
}

// RequiredDependencies returns only the hard dependencies of name.
func (g *Graph) RequiredDependencies(name string) []string {
	return filterEdges(g.forward[name], Required)
}

// RequiredDependents returns the components hard-blocked on name. The
// orchestrator walks this map to propagate skips and eligibility updates
// without rescanning the whole graph.
func (g *Graph) RequiredDependents(name string) []string {
	return filterEdges(g.reverse[name], Required)
}

// Unresolved returns the declared edges that did not resolve, in the order
// they were encountered during the build.
func (g *Graph) Unresolved() []UnresolvedDependency {
	return append([]UnresolvedDependency(nil), g.unresolved...)
}

func filterEdges(edges []Edge, kind EdgeKind) []string {
	var out []string
	for _, e := range edges {
		if e.Kind == kind {
			out = append(out, e.Name)
		}
	}
	return out
}
