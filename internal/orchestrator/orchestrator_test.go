package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/modkit/internal/depgraph"
	"github.com/vk/modkit/internal/descriptor"
	"github.com/vk/modkit/internal/toposort"
)

// testHandle is the minimal capability implementation used by tests.
type testHandle string

func (h testHandle) Name() string { return string(h) }

// okLoader returns a valid handle for every component.
func okLoader(_ context.Context, name string) (Handle, error) {
	return testHandle(name), nil
}

// failOn wraps okLoader, failing the named components.
func failOn(failures map[string]error) Loader {
	return func(ctx context.Context, name string) (Handle, error) {
		if err, ok := failures[name]; ok {
			return nil, err
		}
		return okLoader(ctx, name)
	}
}

// newOrchestrator builds graph, plan, and orchestrator from descriptors.
func newOrchestrator(t *testing.T, descs []descriptor.Descriptor, opts ...Option) *Orchestrator {
	t.Helper()
	g := depgraph.Build(context.Background(), descs)
	plan, err := toposort.Sort(context.Background(), g)
	require.NoError(t, err)
	return New(g, plan, opts...)
}

func TestRunWorkedExample(t *testing.T) {
	o := newOrchestrator(t, []descriptor.Descriptor{
		{Name: "A"},
		{Name: "B", Requires: []string{"A"}},
		{Name: "C", Requires: []string{"A", "B"}},
	})
	require.Equal(t, []string{"A", "B", "C"}, o.Order())

	report, err := o.Run(context.Background(), failOn(map[string]error{"B": errors.New("boom")}))
	require.NoError(t, err)

	assert.Equal(t, Loaded, report.Entries["A"].Status)
	assert.Equal(t, Failed, report.Entries["B"].Status)
	assert.Equal(t, Skipped, report.Entries["C"].Status)

	var loadErr *ComponentLoadError
	require.ErrorAs(t, report.Entries["B"].Err, &loadErr)
	assert.Equal(t, "B", loadErr.Name)
	assert.ErrorContains(t, loadErr, "boom")

	assert.Equal(t, "blocked by B", report.Entries["C"].Reason)
	assert.Nil(t, report.Entries["C"].Err)

	for name, e := range report.Entries {
		assert.False(t, e.CompletedAt.IsZero(), "%s has no completion timestamp", name)
	}
	assert.NotEmpty(t, report.RunID)
}

func TestRunFailureIsolation(t *testing.T) {
	o := newOrchestrator(t, []descriptor.Descriptor{
		{Name: "A"},
		{Name: "B", Requires: []string{"A"}},
		{Name: "C"},
	})

	report, err := o.Run(context.Background(), failOn(map[string]error{"A": errors.New("db unreachable")}))
	require.NoError(t, err)

	assert.Equal(t, Failed, report.Entries["A"].Status)
	assert.Equal(t, Skipped, report.Entries["B"].Status)
	assert.Equal(t, Loaded, report.Entries["C"].Status)
	assert.Equal(t, "blocked by A", report.Entries["B"].Reason)
}

func TestRunTransitiveSkipCitesRoot(t *testing.T) {
	o := newOrchestrator(t, []descriptor.Descriptor{
		{Name: "A"},
		{Name: "B", Requires: []string{"A"}},
		{Name: "C", Requires: []string{"B"}},
		{Name: "D", Requires: []string{"C"}},
	})

	report, err := o.Run(context.Background(), failOn(map[string]error{"A": errors.New("boom")}))
	require.NoError(t, err)

	for _, name := range []string{"B", "C", "D"} {
		assert.Equal(t, Skipped, report.Entries[name].Status)
		assert.Equal(t, "blocked by A", report.Entries[name].Reason)
	}
}

func TestRunOptionalDependencyNeverGates(t *testing.T) {
	t.Run("unregistered optional", func(t *testing.T) {
		o := newOrchestrator(t, []descriptor.Descriptor{
			{Name: "A", Optional: []string{"X"}},
		})

		report, err := o.Run(context.Background(), okLoader)
		require.NoError(t, err)

		assert.Equal(t, Loaded, report.Entries["A"].Status)
		assert.NotContains(t, report.Entries["A"].Reason, "X")
		assert.Empty(t, o.Unreachable())
	})

	t.Run("failed optional", func(t *testing.T) {
		o := newOrchestrator(t, []descriptor.Descriptor{
			{Name: "metrics"},
			{Name: "web", Optional: []string{"metrics"}},
		})

		report, err := o.Run(context.Background(), failOn(map[string]error{"metrics": errors.New("boom")}))
		require.NoError(t, err)

		assert.Equal(t, Failed, report.Entries["metrics"].Status)
		assert.Equal(t, Loaded, report.Entries["web"].Status)
	})
}

func TestRunEmpty(t *testing.T) {
	o := newOrchestrator(t, nil)

	report, err := o.Run(context.Background(), okLoader)
	require.NoError(t, err)
	assert.Empty(t, report.Entries)
	assert.Empty(t, o.Order())
}

func TestRunSequentialFollowsPlanOrder(t *testing.T) {
	o := newOrchestrator(t, []descriptor.Descriptor{
		{Name: "db"},
		{Name: "cache"},
		{Name: "auth", Requires: []string{"db"}},
		{Name: "web", Requires: []string{"auth", "cache"}},
	})

	var mu sync.Mutex
	var sequence []string
	loader := func(ctx context.Context, name string) (Handle, error) {
		mu.Lock()
		sequence = append(sequence, name)
		mu.Unlock()
		return testHandle(name), nil
	}

	_, err := o.Run(context.Background(), loader)
	require.NoError(t, err)
	assert.Equal(t, o.Order(), sequence)
}

func TestRunConcurrentLoadsExactlyOnce(t *testing.T) {
	var descs []descriptor.Descriptor
	for i := 0; i < 50; i++ {
		descs = append(descs, descriptor.Descriptor{Name: fmt.Sprintf("c%02d", i)})
	}
	o := newOrchestrator(t, descs, WithWorkers(4))

	var mu sync.Mutex
	calls := make(map[string]int)
	loader := func(ctx context.Context, name string) (Handle, error) {
		mu.Lock()
		calls[name]++
		mu.Unlock()
		return testHandle(name), nil
	}

	report, err := o.Run(context.Background(), loader)
	require.NoError(t, err)

	require.Len(t, report.Entries, 50)
	for name, e := range report.Entries {
		assert.Equal(t, Loaded, e.Status, "component %s", name)
	}
	require.Len(t, calls, 50)
	for name, n := range calls {
		assert.Equal(t, 1, n, "loader called %d times for %s", n, name)
	}
}

func TestRunConcurrentRespectsDependencies(t *testing.T) {
	// Two independent chains; a dependent must never start before its
	// dependency finished.
	o := newOrchestrator(t, []descriptor.Descriptor{
		{Name: "a1"},
		{Name: "a2", Requires: []string{"a1"}},
		{Name: "b1"},
		{Name: "b2", Requires: []string{"b1"}},
	}, WithWorkers(4))

	var mu sync.Mutex
	finished := make(map[string]bool)
	loader := func(ctx context.Context, name string) (Handle, error) {
		mu.Lock()
		if name == "a2" {
			assert.True(t, finished["a1"])
		}
		if name == "b2" {
			assert.True(t, finished["b1"])
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		finished[name] = true
		mu.Unlock()
		return testHandle(name), nil
	}

	report, err := o.Run(context.Background(), loader)
	require.NoError(t, err)
	for name, e := range report.Entries {
		assert.Equal(t, Loaded, e.Status, "component %s", name)
	}
}

func TestRunTimeout(t *testing.T) {
	o := newOrchestrator(t, []descriptor.Descriptor{
		{Name: "slow"},
		{Name: "fast"},
	}, WithLoadTimeout(20*time.Millisecond))

	loader := func(ctx context.Context, name string) (Handle, error) {
		if name == "slow" {
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
			}
			return nil, ctx.Err()
		}
		return testHandle(name), nil
	}

	report, err := o.Run(context.Background(), loader)
	require.NoError(t, err)

	assert.Equal(t, Failed, report.Entries["slow"].Status)
	assert.Equal(t, Loaded, report.Entries["fast"].Status)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, report.Entries["slow"].Err, &timeoutErr)
	assert.Equal(t, 20*time.Millisecond, timeoutErr.Timeout)
	var loadErr *ComponentLoadError
	assert.ErrorAs(t, report.Entries["slow"].Err, &loadErr)
}

func TestRunCancellation(t *testing.T) {
	o := newOrchestrator(t, []descriptor.Descriptor{
		{Name: "A"},
		{Name: "B", Requires: []string{"A"}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	loader := func(lctx context.Context, name string) (Handle, error) {
		close(started)
		// Simulate an in-flight load that outlives the cancellation: wait
		// until the dispatcher has written off the queued component, then
		// finish successfully.
		<-lctx.Done()
		for {
			if st, _ := o.Status("B"); st == Skipped {
				return testHandle(name), nil
			}
			time.Sleep(time.Millisecond)
		}
	}

	go func() {
		<-started
		cancel()
	}()

	report, err := o.Run(ctx, loader)
	require.ErrorIs(t, err, context.Canceled)

	// The in-flight load was allowed to finish; the queued one never ran.
	assert.Equal(t, Loaded, report.Entries["A"].Status)
	assert.Equal(t, Skipped, report.Entries["B"].Status)
	assert.Equal(t, "run cancelled", report.Entries["B"].Reason)
}

func TestRunUnreachableSkippedWithoutAttempt(t *testing.T) {
	o := newOrchestrator(t, []descriptor.Descriptor{
		{Name: "ok"},
		{Name: "broken", Requires: []string{"ghost"}},
		{Name: "downstream", Requires: []string{"broken"}},
	})

	var mu sync.Mutex
	var attempted []string
	loader := func(ctx context.Context, name string) (Handle, error) {
		mu.Lock()
		attempted = append(attempted, name)
		mu.Unlock()
		return testHandle(name), nil
	}

	report, err := o.Run(context.Background(), loader)
	require.NoError(t, err)

	assert.Equal(t, []string{"ok"}, attempted)
	assert.Equal(t, Loaded, report.Entries["ok"].Status)
	assert.Equal(t, Skipped, report.Entries["broken"].Status)
	assert.Contains(t, report.Entries["broken"].Reason, `"ghost"`)
	assert.Equal(t, Skipped, report.Entries["downstream"].Status)
	assert.Contains(t, report.Entries["downstream"].Reason, `"ghost"`)
}

func TestRunHandleCapabilityChecked(t *testing.T) {
	o := newOrchestrator(t, []descriptor.Descriptor{{Name: "A"}})

	t.Run("nil handle", func(t *testing.T) {
		report, err := o.Run(context.Background(), func(ctx context.Context, name string) (Handle, error) {
			return nil, nil
		})
		require.NoError(t, err)
		assert.Equal(t, Failed, report.Entries["A"].Status)
		assert.ErrorContains(t, report.Entries["A"].Err, "nil handle")
	})

	t.Run("name mismatch", func(t *testing.T) {
		report, err := o.Run(context.Background(), func(ctx context.Context, name string) (Handle, error) {
			return testHandle("impostor"), nil
		})
		require.NoError(t, err)
		assert.Equal(t, Failed, report.Entries["A"].Status)
		assert.ErrorContains(t, report.Entries["A"].Err, "impostor")
	})
}

func TestRunResetsBetweenRuns(t *testing.T) {
	o := newOrchestrator(t, []descriptor.Descriptor{
		{Name: "A"},
		{Name: "B", Requires: []string{"A"}},
	})

	first, err := o.Run(context.Background(), failOn(map[string]error{"A": errors.New("boom")}))
	require.NoError(t, err)
	assert.Equal(t, Failed, first.Entries["A"].Status)
	assert.Equal(t, Skipped, first.Entries["B"].Status)

	second, err := o.Run(context.Background(), okLoader)
	require.NoError(t, err)
	assert.Equal(t, Loaded, second.Entries["A"].Status)
	assert.Equal(t, Loaded, second.Entries["B"].Status)
	assert.Nil(t, second.Entries["A"].Err)
	assert.Empty(t, second.Entries["B"].Reason)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunRejectsOverlappingRuns(t *testing.T) {
	o := newOrchestrator(t, []descriptor.Descriptor{{Name: "A"}})

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := o.Run(context.Background(), func(ctx context.Context, name string) (Handle, error) {
			close(started)
			<-release
			return testHandle(name), nil
		})
		assert.NoError(t, err)
	}()

	<-started
	_, err := o.Run(context.Background(), okLoader)
	assert.ErrorIs(t, err, ErrRunInProgress)
	close(release)
	<-done
}

func TestRunRejectsNilLoader(t *testing.T) {
	o := newOrchestrator(t, []descriptor.Descriptor{{Name: "A"}})
	_, err := o.Run(context.Background(), nil)
	require.Error(t, err)
}

func TestStatusAndHandleQueries(t *testing.T) {
	o := newOrchestrator(t, []descriptor.Descriptor{
		{Name: "A"},
		{Name: "B", Requires: []string{"A"}, Optional: []string{"A"}},
	})

	st, ok := o.Status("A")
	require.True(t, ok)
	assert.Equal(t, Pending, st)

	_, ok = o.Status("ghost")
	assert.False(t, ok)

	_, err := o.Run(context.Background(), okLoader)
	require.NoError(t, err)

	st, ok = o.Status("B")
	require.True(t, ok)
	assert.Equal(t, Loaded, st)

	h, ok := o.Handle("A")
	require.True(t, ok)
	assert.Equal(t, "A", h.Name())

	assert.Equal(t, []string{"B"}, o.Dependents("A"))
}

func TestReportSnapshotIsDetached(t *testing.T) {
	o := newOrchestrator(t, []descriptor.Descriptor{{Name: "A"}})

	before := o.Report()
	assert.Equal(t, Pending, before.Entries["A"].Status)

	_, err := o.Run(context.Background(), okLoader)
	require.NoError(t, err)

	// The earlier snapshot must not have changed.
	assert.Equal(t, Pending, before.Entries["A"].Status)
	assert.Equal(t, Loaded, o.Report().Entries["A"].Status)
}
