// Package toposort computes the load order for a dependency graph: one
// deterministic total order in which every resolved dependency precedes its
// dependents, or a typed error naming the cycle that makes such an order
// impossible.
package toposort
