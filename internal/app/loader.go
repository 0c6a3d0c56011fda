package app

import (
	"context"
	"errors"
	"time"

	"github.com/vk/modkit/internal/descriptor"
	"github.com/vk/modkit/internal/orchestrator"
)

// componentHandle is the artifact the CLI's simulated loader produces.
type componentHandle struct {
	name     string
	category string
}

func (h *componentHandle) Name() string { return h.name }

// simulatedLoader builds the loader the CLI injects: it reads per-component
// settings from the catalog to simulate work and failures, so a load pass
// can be rehearsed before any real construction code exists.
//
// Recognized settings: load_ms (number, sleep duration) and fail (bool).
func (a *App) simulatedLoader(store *descriptor.Store) orchestrator.Loader {
	return func(ctx context.Context, name string) (orchestrator.Handle, error) {
		d, err := store.Get(name)
		if err != nil {
			return nil, err
		}

		if ms, ok := settingNumber(d.Settings, "load_ms"); ok && ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if fail, _ := d.Settings["fail"].(bool); fail {
			return nil, errors.New("component is marked fail in the catalog")
		}

		return &componentHandle{name: d.Name, category: d.Category}, nil
	}
}

// settingNumber reads a numeric setting, tolerating the int/float variants
// different catalog formats produce.
func settingNumber(settings map[string]any, key string) (float64, bool) {
	switch v := settings[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
