// Package catalog defines the boundary between the resolution core and
// whatever stores component declarations. The core only ever sees the
// ordered descriptor list a Source produces.
package catalog

import (
	"context"

	"github.com/vk/modkit/internal/descriptor"
)

// Source is a format-specific provider of component descriptors. The order
// of the returned slice is the registration order and must be stable for an
// unchanged input.
type Source interface {
	Load(ctx context.Context, paths ...string) ([]descriptor.Descriptor, error)
}
