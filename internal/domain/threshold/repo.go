package threshold

import "context"

// Repository persists the threshold singleton. Get returns an
// apperr.ErrNotFound error when no configuration has been stored.
type Repository interface {
	Get(ctx context.Context) (*Config, error)
	// GetForUpdate reads the row and, inside a transaction, locks it until
	// commit.
	GetForUpdate(ctx context.Context) (*Config, error)
	CreateIfAbsent(ctx context.Context, c *Config) error
	Save(ctx context.Context, c *Config) error
}
