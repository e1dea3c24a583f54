package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"meeting-moderator-be/internal/pkg/logger"
)

type countingAnalyzer struct {
	interval time.Duration
	ticks    atomic.Int64
}

func (c *countingAnalyzer) Interval() time.Duration { return c.interval }

func (c *countingAnalyzer) Tick(_ context.Context, _ string) {
	c.ticks.Add(1)
}

func waitForTicks(t *testing.T, a *countingAnalyzer, n int64) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if a.ticks.Load() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("analyzer never reached %d ticks (got %d)", n, a.ticks.Load())
}

func TestRunnerTicksUntilStopped(t *testing.T) {
	a := &countingAnalyzer{interval: 10 * time.Millisecond}
	runner := NewAnalyzerRunner(logger.NewIsolatedLogger("logs/test.log"), a)

	runner.Start("m1")
	waitForTicks(t, a, 3)

	runner.Stop("m1")
	settled := a.ticks.Load()
	time.Sleep(50 * time.Millisecond)
	// One in-flight tick may land after Stop; nothing more after that.
	assert.LessOrEqual(t, a.ticks.Load(), settled+1)
}

type blockingAnalyzer struct {
	interval time.Duration
	entered  chan struct{}
	release  chan struct{}
	ctxErr   atomic.Value
}

func (b *blockingAnalyzer) Interval() time.Duration { return b.interval }

func (b *blockingAnalyzer) Tick(ctx context.Context, _ string) {
	select {
	case b.entered <- struct{}{}:
	default:
		return // only the first tick participates
	}
	<-b.release
	b.ctxErr.Store(ctx.Err() == nil)
}

func TestRunnerStopLetsInFlightTickFinish(t *testing.T) {
	a := &blockingAnalyzer{
		interval: 10 * time.Millisecond,
		entered:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
	runner := NewAnalyzerRunner(logger.NewIsolatedLogger("logs/test.log"), a)

	runner.Start("m1")

	select {
	case <-a.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("analyzer never ticked")
	}

	// Stop while a pass is in flight, then let it complete.
	runner.Stop("m1")
	close(a.release)
	runner.StopAll()

	alive, ok := a.ctxErr.Load().(bool)
	assert.True(t, ok, "in-flight tick never finished")
	assert.True(t, alive, "stopping a meeting must not cancel the in-flight tick's context")
}

func TestRunnerStartIsIdempotent(t *testing.T) {
	a := &countingAnalyzer{interval: time.Hour}
	runner := NewAnalyzerRunner(logger.NewIsolatedLogger("logs/test.log"), a).(*analyzerRunner)

	runner.Start("m1")
	runner.Start("m1")

	runner.mu.Lock()
	assert.Len(t, runner.cancels, 1)
	runner.mu.Unlock()

	runner.StopAll()
}

func TestRunnerStopUnknownIsNoop(t *testing.T) {
	runner := NewAnalyzerRunner(logger.NewIsolatedLogger("logs/test.log"))
	runner.Stop("never-started")
	runner.StopAll()
}

func TestRunnerStopAllWaitsForLoops(t *testing.T) {
	a := &countingAnalyzer{interval: 5 * time.Millisecond}
	b := &countingAnalyzer{interval: 5 * time.Millisecond}
	runner := NewAnalyzerRunner(logger.NewIsolatedLogger("logs/test.log"), a, b)

	runner.Start("m1")
	runner.Start("m2")
	waitForTicks(t, a, 2)
	waitForTicks(t, b, 2)

	done := make(chan struct{})
	go func() {
		runner.StopAll()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("StopAll did not return")
	}
}
