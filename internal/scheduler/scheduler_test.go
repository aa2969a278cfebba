package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	"github.com/swelljoe/devotional/internal/devotional"
)

type fakeWarmer struct {
	calls atomic.Int32
	err   error
}

func (f *fakeWarmer) Warm(context.Context) error {
	f.calls.Add(1)
	return f.err
}

type fakePurger struct {
	calls atomic.Int32
	err   error
}

func (f *fakePurger) PurgeExpired(context.Context) (int64, error) {
	f.calls.Add(1)
	return 3, f.err
}

func TestSchedulerRunOnce(t *testing.T) {
	warmer := &fakeWarmer{}
	purger := &fakePurger{}
	s := New(warmer, purger, devotional.DefaultRollover().CronSpec())

	require.NoError(t, s.RunOnce(context.Background()))
	require.EqualValues(t, 1, warmer.calls.Load())
	require.EqualValues(t, 1, purger.calls.Load())
}

func TestSchedulerRunOnceAggregatesErrors(t *testing.T) {
	warmer := &fakeWarmer{err: errors.New("verse API down")}
	purger := &fakePurger{err: errors.New("database locked")}
	s := New(warmer, purger, "")

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "verse API down")
	require.Contains(t, err.Error(), "database locked")
}

func TestSchedulerStartRegistersJobs(t *testing.T) {
	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	s := New(&fakeWarmer{}, &fakePurger{}, devotional.DefaultRollover().CronSpec(), WithCron(c))

	require.NoError(t, s.Start())
	defer s.Stop()

	require.Len(t, c.Entries(), 2)
}

func TestSchedulerStartRejectsBadSpec(t *testing.T) {
	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	s := New(&fakeWarmer{}, nil, "not a cron spec", WithCron(c))

	require.Error(t, s.Start())
}

func TestSchedulerDisabled(t *testing.T) {
	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	s := New(nil, nil, "", WithCron(c))

	require.NoError(t, s.Start())
	require.Empty(t, c.Entries())
	require.NoError(t, s.RunOnce(context.Background()))
}

func TestRolloverSpecMatchesNext(t *testing.T) {
	rollover := devotional.DefaultRollover()
	schedule, err := cron.ParseStandard(rollover.CronSpec())
	require.NoError(t, err)

	loc := rollover.Location
	for _, now := range []time.Time{
		time.Date(2024, time.January, 15, 9, 0, 0, 0, loc),
		time.Date(2024, time.January, 15, 6, 59, 30, 0, loc),
		time.Date(2024, time.March, 9, 12, 0, 0, 0, loc),    // day before spring forward
		time.Date(2024, time.November, 2, 23, 0, 0, 0, loc), // night before fall back
	} {
		require.True(t, schedule.Next(now).Equal(rollover.Next(now)), "now=%s cron=%s rollover=%s",
			now, schedule.Next(now), rollover.Next(now))
	}
}

func TestJobsSwallowErrors(t *testing.T) {
	warmer := &fakeWarmer{err: errors.New("boom")}
	purger := &fakePurger{err: errors.New("boom")}
	s := New(warmer, purger, "", WithJobTimeout(time.Second))

	s.runWarm()
	s.runPurge()

	require.EqualValues(t, 1, warmer.calls.Load())
	require.EqualValues(t, 1, purger.calls.Load())
}
