package threshold

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/M-Affan01/HealthMonitor/internal/platform/apperr"
)

// Store is the read/update surface over the threshold singleton. The first
// Get on an empty repository persists the store's defaults.
type Store struct {
	repo     Repository
	defaults Config
	logger   zerolog.Logger
}

func NewStore(repo Repository, defaults Config, logger zerolog.Logger) *Store {
	return &Store{repo: repo, defaults: defaults, logger: logger}
}

func (s *Store) Get(ctx context.Context) (*Config, error) {
	c, err := s.repo.Get(ctx)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	d := s.defaults
	if err := s.repo.CreateIfAbsent(ctx, &d); err != nil {
		return nil, err
	}
	s.logger.Info().Msg("threshold configuration initialised with defaults")
	return s.repo.Get(ctx)
}

// Update merges patch into the singleton and persists it. The row is read
// with GetForUpdate, so concurrent updates run inside a transaction
// serialise instead of overwriting each other. Callers are responsible for
// checking that the actor is an administrator. Inverted bands are accepted
// and logged.
func (s *Store) Update(ctx context.Context, patch Patch) (*Config, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.Get(ctx); err != nil {
		return nil, err
	}
	c, err := s.repo.GetForUpdate(ctx)
	if err != nil {
		return nil, err
	}
	patch.Apply(c)
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}

	if inverted := c.Inverted(); len(inverted) > 0 {
		s.logger.Warn().Strs("metrics", inverted).Msg("threshold bands are not ordered minCritical <= minLow <= maxLow <= maxCritical")
	}
	return c, nil
}
