package threshold

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/M-Affan01/HealthMonitor/internal/platform/apperr"
)

type mockRepo struct {
	cfg     *Config
	creates int
	saves   int
	locks   int
	getErr  error
}

func (m *mockRepo) Get(context.Context) (*Config, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.cfg == nil {
		return nil, apperr.NotFound("threshold config", 1)
	}
	c := *m.cfg
	return &c, nil
}

func (m *mockRepo) GetForUpdate(ctx context.Context) (*Config, error) {
	m.locks++
	return m.Get(ctx)
}

func (m *mockRepo) CreateIfAbsent(_ context.Context, c *Config) error {
	m.creates++
	if m.cfg == nil {
		cp := *c
		cp.UpdatedAt = time.Now()
		m.cfg = &cp
	}
	return nil
}

func (m *mockRepo) Save(_ context.Context, c *Config) error {
	m.saves++
	c.UpdatedAt = time.Now()
	cp := *c
	m.cfg = &cp
	return nil
}

func TestStore_GetCreatesDefaults(t *testing.T) {
	repo := &mockRepo{}
	s := NewStore(repo, Defaults(), zerolog.Nop())

	c, err := s.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if repo.creates != 1 {
		t.Fatalf("expected defaults to be created once, got %d", repo.creates)
	}
	if c.OxygenMinLow != 94 {
		t.Errorf("expected default oxygenMinLow 94, got %v", c.OxygenMinLow)
	}
}

func TestStore_GetIsIdempotent(t *testing.T) {
	repo := &mockRepo{}
	s := NewStore(repo, Defaults(), zerolog.Nop())

	first, err := s.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := s.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if *first != *second {
		t.Errorf("expected identical values, got %+v and %+v", first, second)
	}
	if repo.creates != 1 {
		t.Errorf("expected a single creation, got %d", repo.creates)
	}
}

func TestStore_GetUsesConfiguredDefaults(t *testing.T) {
	d := Defaults()
	d.HeartRateMaxLow = 105
	s := NewStore(&mockRepo{}, d, zerolog.Nop())

	c, err := s.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.HeartRateMaxLow != 105 {
		t.Errorf("expected profile default 105, got %v", c.HeartRateMaxLow)
	}
}

func TestStore_GetPropagatesRepositoryError(t *testing.T) {
	boom := apperr.Persistence("get thresholds", errors.New("connection reset"))
	s := NewStore(&mockRepo{getErr: boom}, Defaults(), zerolog.Nop())

	if _, err := s.Get(context.Background()); !errors.Is(err, apperr.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestStore_UpdateMergesPartial(t *testing.T) {
	repo := &mockRepo{}
	s := NewStore(repo, Defaults(), zerolog.Nop())

	c, err := s.Update(context.Background(), Patch{OxygenMinLow: ptrFloat(92)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if c.OxygenMinLow != 92 {
		t.Errorf("expected oxygenMinLow 92, got %v", c.OxygenMinLow)
	}
	if c.OxygenMinCritical != 90 {
		t.Errorf("expected untouched oxygenMinCritical 90, got %v", c.OxygenMinCritical)
	}
	if repo.saves != 1 {
		t.Errorf("expected one save, got %d", repo.saves)
	}

	again, _ := s.Get(context.Background())
	if again.OxygenMinLow != 92 {
		t.Errorf("expected persisted value 92, got %v", again.OxygenMinLow)
	}
}

func TestStore_UpdateAcceptsInvertedBands(t *testing.T) {
	s := NewStore(&mockRepo{}, Defaults(), zerolog.Nop())

	c, err := s.Update(context.Background(), Patch{HeartRateMinLow: ptrFloat(150)})
	if err != nil {
		t.Fatalf("inverted bands must be accepted, got %v", err)
	}
	if c.HeartRateMinLow != 150 {
		t.Errorf("expected 150, got %v", c.HeartRateMinLow)
	}
}

func TestStore_UpdateRejectsNaN(t *testing.T) {
	repo := &mockRepo{}
	s := NewStore(repo, Defaults(), zerolog.Nop())

	_, err := s.Update(context.Background(), Patch{TempMaxLow: ptrFloat(math.NaN())})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if repo.saves != 0 {
		t.Error("invalid patch must not be saved")
	}
}

func TestStore_UpdateReadsLockedRow(t *testing.T) {
	repo := &mockRepo{}
	s := NewStore(repo, Defaults(), zerolog.Nop())

	if _, err := s.Update(context.Background(), Patch{HeartRateMaxLow: ptrFloat(105)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if repo.locks != 1 {
		t.Fatalf("expected the merge to read through GetForUpdate once, got %d", repo.locks)
	}
	if repo.creates != 1 {
		t.Errorf("expected defaults to be materialised before locking, got %d creates", repo.creates)
	}
}

func TestStore_SequentialUpdatesKeepEachOther(t *testing.T) {
	repo := &mockRepo{}
	s := NewStore(repo, Defaults(), zerolog.Nop())
	ctx := context.Background()

	if _, err := s.Update(ctx, Patch{HeartRateMaxLow: ptrFloat(105)}); err != nil {
		t.Fatalf("first Update: %v", err)
	}
	// A write landing between two updates must not be lost by the second.
	repo.cfg.TempMaxLow = 37.9
	c, err := s.Update(ctx, Patch{GlucoseMinLow: ptrFloat(75)})
	if err != nil {
		t.Fatalf("second Update: %v", err)
	}
	if c.HeartRateMaxLow != 105 || c.TempMaxLow != 37.9 || c.GlucoseMinLow != 75 {
		t.Errorf("expected all writes to survive, got heartRateMaxLow=%v tempMaxLow=%v glucoseMinLow=%v",
			c.HeartRateMaxLow, c.TempMaxLow, c.GlucoseMinLow)
	}
}
