package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DeadlinesKey is the sorted set of OPEN requests scored by their
// bidding deadline in Unix milliseconds.
const DeadlinesKey = "bidrequest:deadlines"

const batchSize = 10

// RequestCloser closes a request whose deadline passed
type RequestCloser interface {
	CloseExpired(ctx context.Context, requestID uuid.UUID) error
}

type DeadlineScheduler struct {
	redis    *redis.Client
	closer   RequestCloser
	clock    clock.Clock
	interval time.Duration
	logger   zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

type DeadlineSchedulerParams struct {
	RedisClient *redis.Client
	Closer      RequestCloser
	Clock       clock.Clock
	Interval    time.Duration
	Logger      zerolog.Logger
}

func NewDeadlineScheduler(params DeadlineSchedulerParams) *DeadlineScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	c := params.Clock
	if c == nil {
		c = clock.NewClock()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = time.Second
	}

	return &DeadlineScheduler{
		redis:    params.RedisClient,
		closer:   params.Closer,
		clock:    c,
		interval: interval,
		logger:   params.Logger.With().Str("component", "deadline_scheduler").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetCloser sets the service that closes expired requests
func (s *DeadlineScheduler) SetCloser(closer RequestCloser) {
	s.closer = closer
}

// Schedule adds or moves the deadline of a request
func (s *DeadlineScheduler) Schedule(ctx context.Context, requestID uuid.UUID, dueAt time.Time) error {
	err := s.redis.ZAdd(ctx, DeadlinesKey, redis.Z{
		Score:  float64(dueAt.UnixMilli()),
		Member: requestID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule deadline: %w", err)
	}

	s.logger.Debug().
		Str("request_id", requestID.String()).
		Time("bids_due_at", dueAt).
		Msg("Bidding deadline scheduled")
	return nil
}

// Cancel removes the deadline of a request
func (s *DeadlineScheduler) Cancel(ctx context.Context, requestID uuid.UUID) error {
	if err := s.redis.ZRem(ctx, DeadlinesKey, requestID.String()).Err(); err != nil {
		return fmt.Errorf("failed to cancel deadline: %w", err)
	}
	return nil
}

// Start begins the scheduler loop
func (s *DeadlineScheduler) Start() {
	s.logger.Info().Dur("interval", s.interval).Msg("Starting deadline scheduler")

	s.wg.Add(1)
	go s.schedulerLoop()
}

// Stop gracefully stops the scheduler
func (s *DeadlineScheduler) Stop() {
	s.logger.Info().Msg("Stopping deadline scheduler")
	s.cancel()
	s.wg.Wait()
}

func (s *DeadlineScheduler) schedulerLoop() {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			if _, err := s.ProcessDue(s.ctx); err != nil {
				s.logger.Error().Err(err).Msg("Failed to process due deadlines")
			}
		case <-s.ctx.Done():
			s.logger.Info().Msg("Scheduler loop stopped")
			return
		}
	}
}

// ProcessDue closes up to one batch of requests whose deadline passed and
// returns how many members it handled.
func (s *DeadlineScheduler) ProcessDue(ctx context.Context) (int, error) {
	now := s.clock.Now().UnixMilli()

	due, err := s.redis.ZRangeByScore(ctx, DeadlinesKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now, 10),
		Count: batchSize,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get due deadlines: %w", err)
	}

	if len(due) > 0 {
		s.logger.Debug().Int("count", len(due)).Msg("Found due deadlines")
	}

	for _, member := range due {
		requestID, err := uuid.Parse(member)
		if err != nil {
			s.logger.Error().Err(err).Str("member", member).Msg("Invalid request ID in deadline set")
			if err := s.redis.ZRem(ctx, DeadlinesKey, member).Err(); err != nil {
				s.logger.Error().Err(err).Str("member", member).Msg("Failed to remove invalid deadline")
			}
			continue
		}

		if err := s.closer.CloseExpired(ctx, requestID); err != nil {
			// Left in the set so the next tick retries it.
			s.logger.Error().Err(err).Str("request_id", member).Msg("Failed to close expired request")
			continue
		}

		if err := s.redis.ZRem(ctx, DeadlinesKey, member).Err(); err != nil {
			s.logger.Error().Err(err).Str("request_id", member).Msg("Failed to remove processed deadline")
		}
	}

	return len(due), nil
}
