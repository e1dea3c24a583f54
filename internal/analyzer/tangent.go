package analyzer

import (
	"context"
	"strings"
	"time"

	"meeting-moderator-be/internal/config"
	"meeting-moderator-be/internal/entity"
	"meeting-moderator-be/internal/pkg/logger"
	"meeting-moderator-be/internal/store"
	"meeting-moderator-be/pkg/events"
	"meeting-moderator-be/pkg/llm"
)

// TangentClassifier is the external classification dependency.
type TangentClassifier interface {
	ClassifyTangent(ctx context.Context, agenda, recentContext string) (llm.TangentVerdict, error)
}

// ChatSender delivers a message into the meeting chat, best-effort.
type ChatSender interface {
	SendChatMessage(ctx context.Context, botID, message string) error
}

// EventPublisher pushes meeting events onto the bus. May be nil.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

const fallbackIntervention = "Quick check-in: we seem to have drifted from the agenda. Shall we get back on track?"

// TangentDetector runs the per-session off-topic check. One Tick is one
// bounded cycle: classify the recent window against the agenda, update the
// strike state, and fire at most one rate-limited intervention.
type TangentDetector struct {
	store      *store.Store
	classifier TangentClassifier
	chat       ChatSender
	events     EventPublisher
	cfg        config.TangentConfig
	logger     logger.ILogger
	now        func() time.Time
}

func NewTangentDetector(
	st *store.Store,
	classifier TangentClassifier,
	chat ChatSender,
	eventPub EventPublisher,
	cfg config.TangentConfig,
	log logger.ILogger,
) *TangentDetector {
	return &TangentDetector{
		store:      st,
		classifier: classifier,
		chat:       chat,
		events:     eventPub,
		cfg:        cfg,
		logger:     log,
		now:        time.Now,
	}
}

// Interval is the detector's tick period.
func (d *TangentDetector) Interval() time.Duration { return d.cfg.CheckEvery }

// Tick executes one detection cycle. Every failure is contained here: a
// classification error or timeout skips the cycle without mutating state, and
// the next tick proceeds on schedule.
func (d *TangentDetector) Tick(ctx context.Context, meetingID string) {
	if !d.cfg.Enabled {
		return
	}

	snap, err := d.store.Snapshot(meetingID)
	if err != nil {
		return // evicted between ticks
	}
	if snap.Status == entity.StatusEnded || snap.Status == entity.StatusError {
		return
	}
	// Inert without an agenda.
	if strings.TrimSpace(snap.Agenda) == "" {
		return
	}

	window := FormatWindow(snap.Tail(d.cfg.RecentUtterances))
	if window == "" {
		return
	}

	// The snapshot is a copy; no session lock is held across this call.
	verdict, err := d.classifier.ClassifyTangent(ctx, snap.Agenda, window)
	if err != nil {
		d.logger.Warn("TangentDetector", "Classification failed, skipping tick", map[string]interface{}{
			"meeting_id": meetingID,
			"error":      err.Error(),
		})
		return
	}

	now := unixNow(d.now())

	var strike *entity.Strike
	if !verdict.OnTopic && verdict.Confidence >= d.cfg.ConfidenceThreshold {
		strike = &entity.Strike{Timestamp: now, Confidence: verdict.Confidence}
	}

	state, err := d.store.TangentState(meetingID)
	if err != nil {
		return
	}
	state, intervene := EvaluateStrikes(state, strike, now, StrikePolicy{
		Window:    d.cfg.StrikeWindow,
		Threshold: d.cfg.StrikeThreshold,
		Cooldown:  d.cfg.Cooldown,
	})
	if err := d.store.SetTangentState(meetingID, state); err != nil {
		return
	}

	if !intervene {
		return
	}

	message := verdict.Message
	if message == "" {
		message = fallbackIntervention
	}

	d.logger.Info("TangentDetector", "Intervention fired", map[string]interface{}{
		"meeting_id": meetingID,
		"confidence": verdict.Confidence,
		"reason":     verdict.Reason,
	})

	if err := d.chat.SendChatMessage(ctx, meetingID, message); err != nil {
		// Best-effort delivery only; the cooldown stands either way so a
		// flaky chat collaborator cannot cause message spam.
		d.logger.Warn("TangentDetector", "Intervention delivery failed", map[string]interface{}{
			"meeting_id": meetingID,
			"error":      err.Error(),
		})
	}

	if d.events != nil {
		_ = d.events.Publish(ctx, events.InterventionFired{
			MeetingID:  meetingID,
			Message:    message,
			Confidence: verdict.Confidence,
			At:         d.now(),
		})
	}
}

func unixNow(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
