package patient

import "context"

// Store loads and persists the whole collection as a single document.
// There is no partial I/O: every Save replaces everything.
type Store interface {
	Load(ctx context.Context) (Collection, error)
	Save(ctx context.Context, c Collection) error
	// Init creates an empty collection if none exists yet.
	Init(ctx context.Context) error
}
