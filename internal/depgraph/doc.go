// Package depgraph turns a flat list of component descriptors into the
// dependency structure the sorter and orchestrator operate on: forward edge
// lists in declared order, a derived reverse map, and the set of declared
// dependencies that name components nobody registered.
//
// Building never fails. A partially-registered catalog (optional subsystems
// absent) is the expected case, so edges to unknown names are recorded as
// unresolved instead of being inserted into the forward map; deciding what an
// unresolved required edge means is the sorter's job.
package depgraph
