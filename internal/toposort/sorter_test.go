package toposort

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/modkit/internal/depgraph"
	"github.com/vk/modkit/internal/descriptor"
)

func sortDescs(t *testing.T, descs ...descriptor.Descriptor) *Result {
	t.Helper()
	g := depgraph.Build(context.Background(), descs)
	res, err := Sort(context.Background(), g)
	require.NoError(t, err)
	return res
}

// indexOf fails the test if name is absent from order.
func indexOf(t *testing.T, order []string, name string) int {
	t.Helper()
	for i, n := range order {
		if n == name {
			return i
		}
	}
	t.Fatalf("component %q not found in order %v", name, order)
	return -1
}

func TestSortEmpty(t *testing.T) {
	res := sortDescs(t)
	assert.Empty(t, res.Order)
	assert.Empty(t, res.Unreachable)
}

func TestSortWorkedExample(t *testing.T) {
	res := sortDescs(t,
		descriptor.Descriptor{Name: "A"},
		descriptor.Descriptor{Name: "B", Requires: []string{"A"}},
		descriptor.Descriptor{Name: "C", Requires: []string{"A", "B"}},
	)
	assert.Equal(t, []string{"A", "B", "C"}, res.Order)
	assert.Empty(t, res.Unreachable)
}

func TestSortRespectsRequiredEdges(t *testing.T) {
	descs := []descriptor.Descriptor{
		{Name: "web", Requires: []string{"auth", "router"}},
		{Name: "router"},
		{Name: "auth", Requires: []string{"db", "sessions"}},
		{Name: "sessions", Requires: []string{"db"}},
		{Name: "db"},
	}
	res := sortDescs(t, descs...)
	require.Len(t, res.Order, len(descs))

	for _, d := range descs {
		for _, dep := range d.Requires {
			assert.Less(t, indexOf(t, res.Order, dep), indexOf(t, res.Order, d.Name),
				"%s must precede %s", dep, d.Name)
		}
	}
}

func TestSortOptionalEdgesShapeOrder(t *testing.T) {
	res := sortDescs(t,
		descriptor.Descriptor{Name: "web", Optional: []string{"metrics"}},
		descriptor.Descriptor{Name: "metrics"},
	)
	// A resolved optional dependency is still loaded first.
	assert.Equal(t, []string{"metrics", "web"}, res.Order)
}

func TestSortDeterminism(t *testing.T) {
	descs := []descriptor.Descriptor{
		{Name: "e"}, {Name: "d"}, {Name: "c"}, {Name: "b"}, {Name: "a"},
	}
	first := sortDescs(t, descs...)
	for i := 0; i < 10; i++ {
		again := sortDescs(t, descs...)
		require.Equal(t, first.Order, again.Order, "run %d diverged", i)
	}
	// Independent components come out in registration order.
	assert.Equal(t, []string{"e", "d", "c", "b", "a"}, first.Order)
}

func TestSortCycleDetection(t *testing.T) {
	g := depgraph.Build(context.Background(), []descriptor.Descriptor{
		{Name: "unrelated"},
		{Name: "A", Requires: []string{"B"}},
		{Name: "B", Requires: []string{"C"}},
		{Name: "C", Requires: []string{"A"}},
		{Name: "leaf", Requires: []string{"unrelated"}},
	})

	_, err := Sort(context.Background(), g)
	var cycErr *CyclicDependencyError
	require.ErrorAs(t, err, &cycErr)

	require.Len(t, cycErr.Path, 3)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, cycErr.Path)
	// Cyclic order: each member is followed by the one it depends on.
	next := map[string]string{"A": "B", "B": "C", "C": "A"}
	for i, name := range cycErr.Path {
		assert.Equal(t, next[name], cycErr.Path[(i+1)%len(cycErr.Path)])
	}
	assert.Contains(t, err.Error(), "cyclic dependency")
}

func TestSortSelfCycle(t *testing.T) {
	g := depgraph.Build(context.Background(), []descriptor.Descriptor{
		{Name: "narcissus", Requires: []string{"narcissus"}},
	})

	_, err := Sort(context.Background(), g)
	var cycErr *CyclicDependencyError
	require.ErrorAs(t, err, &cycErr)
	assert.Equal(t, []string{"narcissus"}, cycErr.Path)
}

func TestSortUnresolvedRequiredExcludesClosure(t *testing.T) {
	res := sortDescs(t,
		descriptor.Descriptor{Name: "standalone"},
		descriptor.Descriptor{Name: "broken", Requires: []string{"ghost"}},
		descriptor.Descriptor{Name: "dependent", Requires: []string{"broken"}},
	)

	assert.Equal(t, []string{"standalone"}, res.Order)
	// Both cite the root missing name, transitively too.
	assert.Equal(t, []Unreachable{
		{Name: "broken", Missing: "ghost"},
		{Name: "dependent", Missing: "ghost"},
	}, res.Unreachable)
}

func TestSortUnresolvedOptionalIsHarmless(t *testing.T) {
	res := sortDescs(t,
		descriptor.Descriptor{Name: "web", Optional: []string{"ghost"}},
	)
	assert.Equal(t, []string{"web"}, res.Order)
	assert.Empty(t, res.Unreachable)
}

func TestSortCoversLargeAcyclicSets(t *testing.T) {
	// A layered graph: each component requires one from the previous layer.
	var descs []descriptor.Descriptor
	for layer := 0; layer < 10; layer++ {
		for i := 0; i < 10; i++ {
			d := descriptor.Descriptor{Name: fmt.Sprintf("l%d-c%d", layer, i)}
			if layer > 0 {
				d.Requires = []string{fmt.Sprintf("l%d-c%d", layer-1, i)}
			}
			descs = append(descs, d)
		}
	}

	res := sortDescs(t, descs...)
	assert.Len(t, res.Order, len(descs))
	assert.Empty(t, res.Unreachable)
}
