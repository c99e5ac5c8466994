package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultSweepSchedule runs the subscription sweep at the top of every hour
const DefaultSweepSchedule = "@hourly"

type SweepStore interface {
	SuspendExpiredAgencies(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// Sweeper suspends agencies whose trial or paid plan has lapsed
type Sweeper struct {
	store   SweepStore
	cron    *cron.Cron
	timeout time.Duration
	now     func() time.Time
}

// NewSweeper schedules Sweep on schedule (standard cron syntax or descriptors
// such as @hourly). Overlapping runs are skipped.
func NewSweeper(st SweepStore, schedule string) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	s := &Sweeper{
		store:   st,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		timeout: 2 * time.Minute,
		now:     time.Now,
	}
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			log.Error().Err(err).Msg("Subscription sweep failed")
		}
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("Subscription sweeper started")
}

// Stop waits for a running sweep to finish or ctx to expire
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Sweep suspends every lapsed agency and returns their ids
func (s *Sweeper) Sweep(ctx context.Context) ([]uuid.UUID, error) {
	ids, err := s.store.SuspendExpiredAgencies(ctx, s.now())
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		log.Info().Str("agency_id", id.String()).Msg("Agency suspended after subscription lapse")
	}
	if len(ids) > 0 {
		log.Info().Int("suspended", len(ids)).Msg("Subscription sweep done")
	}
	return ids, nil
}
