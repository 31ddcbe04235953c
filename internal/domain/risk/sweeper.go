package risk

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// PatientLister yields the patients a sweep visits.
type PatientLister interface {
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)
}

// RecomputeFunc refreshes one patient's snapshot.
type RecomputeFunc func(ctx context.Context, patientID uuid.UUID) error

// SweepResult summarizes one sweep.
type SweepResult struct {
	Patients int           `json:"patients"`
	Failed   int           `json:"failed"`
	Took     time.Duration `json:"took"`
}

// Sweeper periodically recomputes every active patient's snapshot so
// alerts ageing out of the window are reflected without a new event.
type Sweeper struct {
	patients    PatientLister
	recompute   RecomputeFunc
	concurrency int
	logger      zerolog.Logger
	cron        *cron.Cron
}

func NewSweeper(patients PatientLister, recompute RecomputeFunc, concurrency int, logger zerolog.Logger) *Sweeper {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Sweeper{
		patients:    patients,
		recompute:   recompute,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "risk-sweeper").Logger(),
	}
}

// RunOnce recomputes all active patients with at most concurrency
// recomputes in flight. A failing patient is logged and counted; only
// listing failures and cancellation abort the sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	start := time.Now()
	ids, err := s.patients.ListActiveIDs(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := s.recompute(gctx, id); err != nil {
				failed.Add(1)
				s.logger.Warn().Err(err).Str("patient_id", id.String()).Msg("risk recompute failed")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SweepResult{}, err
	}

	res := SweepResult{Patients: len(ids), Failed: int(failed.Load()), Took: time.Since(start)}
	s.logger.Info().
		Int("patients", res.Patients).
		Int("failed", res.Failed).
		Dur("took", res.Took).
		Msg("risk sweep finished")
	return res, nil
}

// Start schedules RunOnce on a cron spec such as "@every 1h" and stops the
// schedule when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error().Err(err).Msg("risk sweep aborted")
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info().Str("schedule", schedule).Msg("risk sweep scheduled")

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
	}()
	return nil
}
