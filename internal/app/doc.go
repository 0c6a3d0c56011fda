// Package app wires the resolution core together for the CLI: it loads the
// catalog, registers descriptors, builds the graph, computes the load order,
// and drives the orchestrator with a simulated loader. Real embedders use
// the internal packages directly and inject their own loader.
package app
