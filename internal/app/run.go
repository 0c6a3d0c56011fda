package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/modkit/internal/ctxlog"
	"github.com/vk/modkit/internal/depgraph"
	"github.com/vk/modkit/internal/descriptor"
	"github.com/vk/modkit/internal/orchestrator"
	"github.com/vk/modkit/internal/toposort"
)

// Run executes the main application logic: catalog to store to graph to
// order to orchestrated load. Individual component failures never fail the
// run; cycles and catalog errors do.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.config.HealthcheckPort)
	}

	descs, err := a.source.Load(ctx, a.config.CatalogPath)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	store := descriptor.NewStore()
	for _, d := range descs {
		if err := store.Register(d); err != nil {
			return fmt.Errorf("registering catalog: %w", err)
		}
	}
	a.logger.Info("Catalog registered.", "components", store.Len())

	graph := depgraph.Build(ctx, store.All())
	for _, u := range graph.Unresolved() {
		if u.Optional {
			a.logger.Debug("Optional dependency absent.",
				"component", u.Component, "missing", u.Missing)
		} else {
			a.logger.Warn("Required dependency unresolved.",
				"component", u.Component, "missing", u.Missing)
		}
	}

	plan, err := toposort.Sort(ctx, graph)
	if err != nil {
		return fmt.Errorf("resolving load order: %w", err)
	}
	a.logger.Info("Load order resolved.",
		"ordered", len(plan.Order), "unreachable", len(plan.Unreachable))

	if a.config.DryRun {
		a.printPlan(plan)
		return nil
	}

	orc := orchestrator.New(graph, plan,
		orchestrator.WithWorkers(a.config.Workers),
		orchestrator.WithLoadTimeout(a.config.LoadTimeout),
		orchestrator.WithRecorder(a.collector),
	)

	report, err := orc.Run(ctx, a.simulatedLoader(store))
	if report != nil {
		a.printReport(report)
	}
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// printPlan writes the computed load order without running it.
func (a *App) printPlan(plan *toposort.Result) {
	fmt.Fprintln(a.outW, "Load plan:")
	for i, name := range plan.Order {
		fmt.Fprintf(a.outW, "  %3d. %s\n", i+1, name)
	}
	for _, u := range plan.Unreachable {
		fmt.Fprintf(a.outW, "  unreachable: %s (missing %q)\n", u.Name, u.Missing)
	}
}

// printReport writes the final per-component outcome and a summary line.
func (a *App) printReport(report *orchestrator.Report) {
	names := make([]string, 0, len(report.Entries))
	for name := range report.Entries {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(a.outW, "Load report (run %s):\n", report.RunID)
	loaded, failed, skipped := 0, 0, 0
	for _, name := range names {
		e := report.Entries[name]
		switch e.Status {
		case orchestrator.Loaded:
			loaded++
			fmt.Fprintf(a.outW, "  %-10s %s\n", e.Status, name)
		case orchestrator.Failed:
			failed++
			fmt.Fprintf(a.outW, "  %-10s %s: %v\n", e.Status, name, e.Err)
		case orchestrator.Skipped:
			skipped++
			fmt.Fprintf(a.outW, "  %-10s %s: %s\n", e.Status, name, e.Reason)
		default:
			fmt.Fprintf(a.outW, "  %-10s %s\n", e.Status, name)
		}
	}
	fmt.Fprintf(a.outW, "Summary: %d loaded, %d failed, %d skipped\n",
		loaded, failed, skipped)
}
