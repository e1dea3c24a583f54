package analyzer

import (
	"context"
	"time"

	"meeting-moderator-be/internal/config"
	"meeting-moderator-be/internal/entity"
	"meeting-moderator-be/internal/pkg/logger"
	"meeting-moderator-be/internal/store"
	"meeting-moderator-be/pkg/events"
	"meeting-moderator-be/pkg/llm"
)

// TopicClassifier is the external completion dependency for topic inference.
type TopicClassifier interface {
	DetectTopic(ctx context.Context, meetingContext, recentContext string) (llm.TopicResult, error)
}

// TopicTracker periodically derives a one-line description of the current
// discussion and overwrites the session's topic field. It is the only writer
// of that field.
type TopicTracker struct {
	store      *store.Store
	classifier TopicClassifier
	chat       ChatSender
	events     EventPublisher
	cfg        config.TopicConfig
	logger     logger.ILogger
	now        func() time.Time
}

func NewTopicTracker(
	st *store.Store,
	classifier TopicClassifier,
	chat ChatSender,
	eventPub EventPublisher,
	cfg config.TopicConfig,
	log logger.ILogger,
) *TopicTracker {
	return &TopicTracker{
		store:      st,
		classifier: classifier,
		chat:       chat,
		events:     eventPub,
		cfg:        cfg,
		logger:     log,
		now:        time.Now,
	}
}

// Interval is the tracker's tick period.
func (t *TopicTracker) Interval() time.Duration { return t.cfg.CheckEvery }

// Tick executes one topic inference cycle. On any failure the previous topic
// is left unchanged and the cycle ends; nothing propagates to callers.
func (t *TopicTracker) Tick(ctx context.Context, meetingID string) {
	if !t.cfg.Enabled {
		return
	}

	snap, err := t.store.Snapshot(meetingID)
	if err != nil {
		return
	}
	if snap.Status == entity.StatusEnded || snap.Status == entity.StatusError {
		return
	}
	if len(snap.Utterances) == 0 {
		return // no speech yet
	}

	window := FormatWindow(snap.Tail(t.cfg.RecentUtterances))
	if len(window) < t.cfg.MinContextChars {
		return
	}

	result, err := t.classifier.DetectTopic(ctx, snap.Agenda, window)
	if err != nil {
		t.logger.Warn("TopicTracker", "Topic inference failed, keeping previous topic", map[string]interface{}{
			"meeting_id": meetingID,
			"error":      err.Error(),
		})
		return
	}
	if result.Topic == "" || result.Confidence < t.cfg.MinConfidence {
		return
	}

	previous := snap.CurrentTopic
	if err := t.store.UpdateTopic(meetingID, result.Topic); err != nil {
		return
	}

	// Only announce when the label moved far enough from the previous one,
	// so chat isn't spammed with rephrasings of the same topic.
	if !t.changedEnough(previous, result.Topic) {
		return
	}

	t.logger.Info("TopicTracker", "Topic changed", map[string]interface{}{
		"meeting_id": meetingID,
		"topic":      result.Topic,
		"previous":   previous,
		"confidence": result.Confidence,
	})

	if err := t.chat.SendChatMessage(ctx, meetingID, formatTopicMessage(result.Topic)); err != nil {
		t.logger.Warn("TopicTracker", "Topic check-in delivery failed", map[string]interface{}{
			"meeting_id": meetingID,
			"error":      err.Error(),
		})
	}

	if t.events != nil {
		_ = t.events.Publish(ctx, events.TopicChanged{
			MeetingID:  meetingID,
			Topic:      result.Topic,
			Previous:   previous,
			Confidence: result.Confidence,
			At:         t.now(),
		})
	}
}

func (t *TopicTracker) changedEnough(previous, next string) bool {
	if next == "" {
		return false
	}
	if previous == "" {
		return true
	}
	return TopicSimilarity(previous, next) < t.cfg.SimilarityThreshold
}

func formatTopicMessage(topic string) string {
	if len(topic) > 120 {
		topic = topic[:117] + "..."
	}
	return "Topic check: " + topic
}
