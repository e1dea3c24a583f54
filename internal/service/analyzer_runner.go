package service

import (
	"context"
	"sync"
	"time"

	"meeting-moderator-be/internal/pkg/logger"
)

// tickTimeout bounds one analysis pass, including its external calls.
const tickTimeout = 30 * time.Second

// PeriodicAnalyzer is any analysis pass that runs on a fixed cadence for a
// single meeting.
type PeriodicAnalyzer interface {
	Interval() time.Duration
	Tick(ctx context.Context, meetingID string)
}

type IAnalyzerRunner interface {
	// Start launches the analysis loops for a meeting. Calling it again for
	// the same meeting is a no-op.
	Start(meetingID string)
	// Stop cancels the loops for a meeting if they are running.
	Stop(meetingID string)
	// StopAll cancels every running loop and waits for them to exit.
	StopAll()
}

type analyzerRunner struct {
	analyzers []PeriodicAnalyzer
	logger    logger.ILogger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewAnalyzerRunner(log logger.ILogger, analyzers ...PeriodicAnalyzer) IAnalyzerRunner {
	return &analyzerRunner{
		analyzers: analyzers,
		logger:    log,
		cancels:   make(map[string]context.CancelFunc),
	}
}

func (r *analyzerRunner) Start(meetingID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, running := r.cancels[meetingID]; running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancels[meetingID] = cancel

	r.logger.Info("analyzer", "starting analysis loops", map[string]interface{}{
		"meeting_id": meetingID,
		"loops":      len(r.analyzers),
	})

	for _, a := range r.analyzers {
		r.wg.Add(1)
		go r.run(ctx, a, meetingID)
	}
}

func (r *analyzerRunner) run(ctx context.Context, a PeriodicAnalyzer, meetingID string) {
	defer r.wg.Done()

	ticker := time.NewTicker(a.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Tick runs synchronously so a slow pass never overlaps the next.
			// The loop context only gates scheduling: stopping a meeting lets
			// the in-flight pass finish on its own deadline.
			tickCtx, cancel := context.WithTimeout(context.Background(), tickTimeout)
			a.Tick(tickCtx, meetingID)
			cancel()
		}
	}
}

func (r *analyzerRunner) Stop(meetingID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cancel, ok := r.cancels[meetingID]
	if !ok {
		return
	}
	cancel()
	delete(r.cancels, meetingID)

	r.logger.Info("analyzer", "stopped analysis loops", map[string]interface{}{
		"meeting_id": meetingID,
	})
}

func (r *analyzerRunner) StopAll() {
	r.mu.Lock()
	for id, cancel := range r.cancels {
		cancel()
		delete(r.cancels, id)
	}
	r.mu.Unlock()

	r.wg.Wait()
}
