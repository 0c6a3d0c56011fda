// Package descriptor defines the static declaration of a component and the
// ordered store the rest of the core reads those declarations from.
package descriptor

// Descriptor is the immutable declaration of a single component: its unique
// name, the components it needs, and the components it can use when present.
type Descriptor struct {
	// Name uniquely identifies the component across the whole catalog.
	Name string
	// Category is grouping metadata from the catalog. The core carries it
	// but never interprets it.
	Category string
	// Requires lists components that must be Loaded before this one may be
	// attempted.
	Requires []string
	// Optional lists components this one uses when they are present. Their
	// absence or failure never blocks this component.
	Optional []string
	// Settings is opaque catalog metadata, passed through untouched to the
	// embedding application's loader.
	Settings map[string]any
}

// clone returns a copy with its own backing slices and map, so a stored
// descriptor cannot be mutated through values handed out earlier.
func (d Descriptor) clone() Descriptor {
	out := d
	if d.Requires != nil {
		out.Requires = append([]string(nil), d.Requires...)
	}
	if d.Optional != nil {
		out.Optional = append([]string(nil), d.Optional...)
	}
	if d.Settings != nil {
		out.Settings = make(map[string]any, len(d.Settings))
		for k, v := range d.Settings {
			out.Settings[k] = v
		}
	}
	return out
}
