package config

import "context"

// Loader is the interface for a format-specific frame graph loader.
type Loader interface {
	// Load reads every file found under paths and merges their declarations
	// into one model, in file order.
	Load(ctx context.Context, paths ...string) (*Model, error)
}
