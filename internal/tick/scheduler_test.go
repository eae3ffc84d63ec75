package tick

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestClockMonotonic(t *testing.T) {
	c := NewClock()
	a := c.NowMS()
	time.Sleep(15 * time.Millisecond)
	b := c.NowMS()
	assert.Greater(t, b, a)
}

func TestSchedulerFiresPeriodically(t *testing.T) {
	s := NewScheduler(NewClock(), zaptest.NewLogger(t))
	var fires atomic.Int32
	s.Add(20*time.Millisecond, func(nowMS int64) { fires.Add(1) })

	go s.Run()
	require.Eventually(t, func() bool { return fires.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestSchedulerRemoveStopsJob(t *testing.T) {
	s := NewScheduler(NewClock(), zaptest.NewLogger(t))
	var fires atomic.Int32
	id := s.Add(20*time.Millisecond, func(nowMS int64) { fires.Add(1) })

	go s.Run()
	require.Eventually(t, func() bool { return fires.Load() >= 1 }, time.Second, 5*time.Millisecond)
	s.Remove(id)
	after := fires.Load()
	time.Sleep(80 * time.Millisecond)
	assert.LessOrEqual(t, fires.Load(), after+1, "at most one in-flight firing after Remove")
	s.Stop()
}

func TestSchedulerSkipsOverlappingFirings(t *testing.T) {
	s := NewScheduler(NewClock(), zaptest.NewLogger(t))
	var skips atomic.Int32
	s.OnSkip(func() { skips.Add(1) })

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	s.Add(20*time.Millisecond, func(nowMS int64) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
	})

	go s.Run()
	<-started
	require.Eventually(t, func() bool { return skips.Load() >= 1 }, time.Second, 5*time.Millisecond)
	close(block)
	s.Stop()
}

func TestSchedulerRecoversJobPanic(t *testing.T) {
	s := NewScheduler(NewClock(), zaptest.NewLogger(t))
	var fires atomic.Int32
	s.Add(20*time.Millisecond, func(nowMS int64) {
		fires.Add(1)
		panic("tick boom")
	})

	go s.Run()
	require.Eventually(t, func() bool { return fires.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestSchedulerStopIdempotent(t *testing.T) {
	s := NewScheduler(NewClock(), zaptest.NewLogger(t))
	go s.Run()
	s.Stop()
	s.Stop()
}
