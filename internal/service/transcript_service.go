package service

import (
	"context"
	"encoding/json"
	"fmt"

	"meeting-moderator-be/internal/dto"
	"meeting-moderator-be/internal/entity"
	"meeting-moderator-be/internal/pkg/apperrors"
	"meeting-moderator-be/internal/pkg/logger"
	"meeting-moderator-be/internal/store"
)

// MeetingBroadcaster fans a payload out to every client watching a meeting.
type MeetingBroadcaster interface {
	BroadcastToMeeting(meetingID string, payload []byte)
}

type ITranscriptService interface {
	// Ingest applies one utterance to a session. Partials replace the
	// speaker's previous partial; finals are appended, archived, and
	// broadcast. Events for unknown sessions are dropped.
	Ingest(ctx context.Context, meetingID string, utterance entity.Utterance) error
}

type transcriptService struct {
	store     *store.Store
	publisher IPublisherService
	hub       MeetingBroadcaster
	logger    logger.ILogger
}

func NewTranscriptService(
	sessionStore *store.Store,
	publisher IPublisherService,
	hub MeetingBroadcaster,
	log logger.ILogger,
) ITranscriptService {
	return &transcriptService{
		store:     sessionStore,
		publisher: publisher,
		hub:       hub,
		logger:    log,
	}
}

func (ts *transcriptService) Ingest(ctx context.Context, meetingID string, utterance entity.Utterance) error {
	if !ts.store.Exists(meetingID) {
		ts.logger.Warn("transcript", "dropping utterance for unknown session", map[string]interface{}{
			"meeting_id": meetingID,
		})
		return apperrors.ErrSessionNotFound
	}

	switch utterance.Finality {
	case entity.FinalityPartial:
		return ts.store.SetPartial(meetingID, utterance)
	case entity.FinalityFinal:
	default:
		return fmt.Errorf("%w: finality %q", apperrors.ErrInvalidEvent, utterance.Finality)
	}

	logged, appended, err := ts.store.AppendFinal(meetingID, utterance)
	if err != nil {
		return err
	}
	if !appended {
		// Duplicate final, already recorded.
		return nil
	}

	// Downstream gets the log entry, not the raw event, so the archive and
	// live feed carry the same trimmed fields and clamped timestamp.
	ts.archive(ctx, meetingID, logged)
	ts.broadcast(meetingID, logged)
	return nil
}

func (ts *transcriptService) archive(ctx context.Context, meetingID string, utterance entity.Utterance) {
	payload, err := json.Marshal(dto.ArchiveUtteranceMessage{
		MeetingID: meetingID,
		Timestamp: utterance.Timestamp,
		Speaker:   utterance.Speaker,
		Text:      utterance.Text,
	})
	if err != nil {
		ts.logger.Error("transcript", "failed to marshal archive message", map[string]interface{}{
			"meeting_id": meetingID,
			"error":      err.Error(),
		})
		return
	}
	if err := ts.publisher.Publish(ctx, payload); err != nil {
		ts.logger.Error("transcript", "failed to publish archive message", map[string]interface{}{
			"meeting_id": meetingID,
			"error":      err.Error(),
		})
	}
}

func (ts *transcriptService) broadcast(meetingID string, utterance entity.Utterance) {
	if ts.hub == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"type":       "utterance",
		"meeting_id": meetingID,
		"timestamp":  utterance.Timestamp,
		"speaker":    utterance.Speaker,
		"text":       utterance.Text,
	})
	if err != nil {
		return
	}
	ts.hub.BroadcastToMeeting(meetingID, payload)
}
