package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloser struct {
	mu     sync.Mutex
	closed []uuid.UUID
	fail   map[uuid.UUID]bool
}

func (f *fakeCloser) CloseExpired(ctx context.Context, requestID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[requestID] {
		return errors.New("store unavailable")
	}
	f.closed = append(f.closed, requestID)
	return nil
}

func (f *fakeCloser) closedIDs() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.closed...)
}

func newTestScheduler(t *testing.T, closer RequestCloser, start time.Time) (*DeadlineScheduler, *fakeclock.FakeClock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	fc := fakeclock.NewFakeClock(start)
	s := NewDeadlineScheduler(DeadlineSchedulerParams{
		RedisClient: client,
		Closer:      closer,
		Clock:       fc,
		Interval:    time.Second,
		Logger:      zerolog.Nop(),
	})
	return s, fc, mr
}

func TestProcessDueClosesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	closer := &fakeCloser{}
	s, fc, mr := newTestScheduler(t, closer, start)

	soon, later := uuid.New(), uuid.New()
	require.NoError(t, s.Schedule(ctx, soon, start.Add(time.Minute)))
	require.NoError(t, s.Schedule(ctx, later, start.Add(time.Hour)))

	n, err := s.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	fc.Increment(time.Minute)
	n, err = s.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []uuid.UUID{soon}, closer.closedIDs())

	members, err := mr.ZMembers(DeadlinesKey)
	require.NoError(t, err)
	assert.Equal(t, []string{later.String()}, members)
}

func TestProcessDueKeepsFailedMembers(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	failing := uuid.New()
	closer := &fakeCloser{fail: map[uuid.UUID]bool{failing: true}}
	s, fc, mr := newTestScheduler(t, closer, start)

	require.NoError(t, s.Schedule(ctx, failing, start.Add(time.Second)))
	fc.Increment(2 * time.Second)

	_, err := s.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, closer.closedIDs())

	members, err := mr.ZMembers(DeadlinesKey)
	require.NoError(t, err)
	assert.Equal(t, []string{failing.String()}, members)
}

func TestProcessDueDropsInvalidMembers(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	closer := &fakeCloser{}
	s, _, mr := newTestScheduler(t, closer, start)

	_, err := mr.ZAdd(DeadlinesKey, float64(start.Add(-time.Minute).UnixMilli()), "not-a-uuid")
	require.NoError(t, err)

	n, err := s.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, closer.closedIDs())
	assert.False(t, mr.Exists(DeadlinesKey))
}

func TestCancelRemovesDeadline(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	closer := &fakeCloser{}
	s, fc, _ := newTestScheduler(t, closer, start)

	id := uuid.New()
	require.NoError(t, s.Schedule(ctx, id, start.Add(time.Second)))
	require.NoError(t, s.Cancel(ctx, id))

	fc.Increment(time.Minute)
	_, err := s.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, closer.closedIDs())
}

func TestLoopRunsOnTick(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	closer := &fakeCloser{}
	s, fc, _ := newTestScheduler(t, closer, start)

	id := uuid.New()
	require.NoError(t, s.Schedule(ctx, id, start.Add(500*time.Millisecond)))

	s.Start()
	defer s.Stop()

	fc.WaitForWatcherAndIncrement(time.Second)
	assert.Eventually(t, func() bool {
		return len(closer.closedIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
