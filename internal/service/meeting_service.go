package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"meeting-moderator-be/internal/config"
	"meeting-moderator-be/internal/dto"
	"meeting-moderator-be/internal/entity"
	"meeting-moderator-be/internal/pkg/apperrors"
	"meeting-moderator-be/internal/pkg/logger"
	"meeting-moderator-be/internal/qa"
	"meeting-moderator-be/internal/store"
	"meeting-moderator-be/pkg/events"
	"meeting-moderator-be/pkg/llm"
	"meeting-moderator-be/pkg/recall"
)

// EventPublisher pushes domain events onto the event bus.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Summarizer is the completion dependency for meeting summaries.
type Summarizer interface {
	Summarize(ctx context.Context, transcriptText, meetingDate string) (llm.SummaryResult, error)
}

type IMeetingService interface {
	StartBot(ctx context.Context, req dto.StartMeetingBotRequest) (dto.StartMeetingBotResponse, error)
	SetAgenda(meetingID, agenda string) (dto.AgendaResponse, error)
	GetStatus(ctx context.Context, meetingID string) (dto.MeetingStatusResponse, error)
	GetTopic(meetingID string) (dto.CurrentTopicResponse, error)
	GetTranscript(meetingID string) (dto.TranscriptResponse, error)
	GetSummary(ctx context.Context, meetingID string) (dto.SummaryResponse, error)
	Ask(ctx context.Context, meetingID, question string) (dto.QAResponse, error)
	Leave(ctx context.Context, meetingID string) error
	ListTranscripts() ([]dto.TranscriptInfo, error)

	// TransitionStatus applies a bot lifecycle change: it updates the
	// session, starts or stops the analysis loops, and announces the change.
	TransitionStatus(ctx context.Context, meetingID string, status entity.SessionStatus)
}

type meetingService struct {
	store      *store.Store
	recall     *recall.Client
	runner     IAnalyzerRunner
	qaEngine   *qa.Engine
	summarizer Summarizer
	archiver   IArchiverService
	events     EventPublisher
	hub        MeetingBroadcaster
	cfg        *config.Config
	logger     logger.ILogger
}

func NewMeetingService(
	sessionStore *store.Store,
	recallClient *recall.Client,
	runner IAnalyzerRunner,
	qaEngine *qa.Engine,
	summarizer Summarizer,
	archiver IArchiverService,
	eventBus EventPublisher,
	hub MeetingBroadcaster,
	cfg *config.Config,
	log logger.ILogger,
) IMeetingService {
	return &meetingService{
		store:      sessionStore,
		recall:     recallClient,
		runner:     runner,
		qaEngine:   qaEngine,
		summarizer: summarizer,
		archiver:   archiver,
		events:     eventBus,
		hub:        hub,
		cfg:        cfg,
		logger:     log,
	}
}

func (ms *meetingService) StartBot(ctx context.Context, req dto.StartMeetingBotRequest) (dto.StartMeetingBotResponse, error) {
	webhookURL := ms.realtimeWebhookURL()

	botID, err := ms.recall.CreateBot(ctx, req.MeetingURL, webhookURL)
	if err != nil {
		return dto.StartMeetingBotResponse{}, fmt.Errorf("%w: %v", apperrors.ErrExternalCall, err)
	}

	info := ms.store.Create(botID, strings.TrimSpace(req.Agenda))

	ms.logger.Info("meeting", "bot created", map[string]interface{}{
		"meeting_id":  botID,
		"meeting_url": req.MeetingURL,
	})

	return dto.StartMeetingBotResponse{
		MeetingID: info.ID,
		Status:    string(info.Status),
	}, nil
}

func (ms *meetingService) realtimeWebhookURL() string {
	base := ms.cfg.App.PublicBaseURL
	if base == "" {
		base = "http://localhost:" + ms.cfg.App.Port
	}
	return fmt.Sprintf("%s/api/webhooks/realtime?token=%s", base, ms.cfg.Recall.WebhookToken)
}

func (ms *meetingService) SetAgenda(meetingID, agenda string) (dto.AgendaResponse, error) {
	if err := ms.store.SetAgenda(meetingID, strings.TrimSpace(agenda)); err != nil {
		return dto.AgendaResponse{}, err
	}
	return dto.AgendaResponse{MeetingID: meetingID, Agenda: strings.TrimSpace(agenda)}, nil
}

func (ms *meetingService) GetStatus(ctx context.Context, meetingID string) (dto.MeetingStatusResponse, error) {
	info, err := ms.store.Get(meetingID)
	if err != nil {
		return dto.MeetingStatusResponse{}, err
	}

	if info.Status == entity.StatusEnded && info.RecordingURL == "" {
		if url, ferr := ms.recall.FetchRecordingURL(ctx, meetingID); ferr == nil && url != "" {
			_ = ms.store.SetRecordingURL(meetingID, url)
			info.RecordingURL = url
		}
	}

	participants, _ := ms.store.Participants(meetingID)

	return dto.MeetingStatusResponse{
		MeetingID:    info.ID,
		Status:       string(info.Status),
		RecordingURL: info.RecordingURL,
		Participants: participants,
	}, nil
}

func (ms *meetingService) GetTopic(meetingID string) (dto.CurrentTopicResponse, error) {
	info, err := ms.store.Get(meetingID)
	if err != nil {
		return dto.CurrentTopicResponse{}, err
	}
	return dto.CurrentTopicResponse{MeetingID: info.ID, Topic: info.CurrentTopic}, nil
}

func (ms *meetingService) GetTranscript(meetingID string) (dto.TranscriptResponse, error) {
	utterances, err := ms.transcript(meetingID)
	if err != nil {
		return dto.TranscriptResponse{}, err
	}

	entries := make([]dto.TranscriptEntry, 0, len(utterances))
	for _, u := range utterances {
		entries = append(entries, dto.TranscriptEntryFromUtterance(u))
	}
	return dto.TranscriptResponse{MeetingID: meetingID, Entries: entries}, nil
}

// transcript returns the live transcript, rehydrating an archived session
// from disk when the meeting is no longer held in memory.
func (ms *meetingService) transcript(meetingID string) ([]entity.Utterance, error) {
	if ms.store.Exists(meetingID) {
		return ms.store.SnapshotTranscript(meetingID)
	}

	if !ms.archiver.Exists(meetingID) {
		return nil, apperrors.ErrSessionNotFound
	}

	ms.store.GetOrCreate(meetingID)

	utterances, err := ms.archiver.Load(meetingID)
	if err != nil {
		// A half-hydrated session must not serve later reads.
		ms.store.Evict(meetingID)
		return nil, err
	}

	for _, u := range utterances {
		if _, _, err := ms.store.AppendFinal(meetingID, u); err != nil {
			ms.store.Evict(meetingID)
			return nil, err
		}
	}
	_ = ms.store.SetStatus(meetingID, entity.StatusEnded)

	ms.logger.Info("meeting", "rehydrated archived transcript", map[string]interface{}{
		"meeting_id": meetingID,
		"utterances": len(utterances),
	})
	return utterances, nil
}

func (ms *meetingService) GetSummary(ctx context.Context, meetingID string) (dto.SummaryResponse, error) {
	utterances, err := ms.transcript(meetingID)
	if err != nil {
		return dto.SummaryResponse{}, err
	}

	var sb strings.Builder
	for _, u := range utterances {
		sb.WriteString(fmt.Sprintf("[%.1fs] %s: %s\n", u.Timestamp, u.Speaker, u.Text))
	}

	meetingDate := ""
	if info, err := ms.store.Get(meetingID); err == nil {
		meetingDate = info.CreatedAt.UTC().Format("2006-01-02")
	}

	result, err := ms.summarizer.Summarize(ctx, sb.String(), meetingDate)
	if err != nil {
		return dto.SummaryResponse{}, fmt.Errorf("%w: %v", apperrors.ErrExternalCall, err)
	}

	return dto.SummaryResponse{
		MeetingID:  meetingID,
		Summary:    result.Markdown,
		Confidence: result.Confidence,
	}, nil
}

func (ms *meetingService) Ask(ctx context.Context, meetingID, question string) (dto.QAResponse, error) {
	// Rehydrate archived sessions so historical meetings stay queryable.
	if !ms.store.Exists(meetingID) && ms.archiver.Exists(meetingID) {
		if _, err := ms.transcript(meetingID); err != nil {
			return dto.QAResponse{}, err
		}
	}

	answer := ms.qaEngine.Answer(ctx, meetingID, question)
	return dto.QAResponse{
		MeetingID:    meetingID,
		Question:     question,
		Answer:       answer.Answer,
		Confidence:   answer.Confidence,
		UsedExcerpts: len(answer.UsedExcerpts),
	}, nil
}

func (ms *meetingService) Leave(ctx context.Context, meetingID string) error {
	info, err := ms.store.Get(meetingID)
	if err != nil {
		return err
	}
	if info.Status == entity.StatusEnded || info.Status == entity.StatusError {
		return apperrors.ErrSessionEnded
	}
	if err := ms.recall.LeaveCall(ctx, meetingID); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrExternalCall, err)
	}
	// The terminal transition arrives through the status webhook once the
	// platform confirms the bot is out of the call.
	return nil
}

func (ms *meetingService) ListTranscripts() ([]dto.TranscriptInfo, error) {
	return ms.archiver.List()
}

func (ms *meetingService) TransitionStatus(ctx context.Context, meetingID string, status entity.SessionStatus) {
	ms.store.GetOrCreate(meetingID)
	if err := ms.store.SetStatus(meetingID, status); err != nil {
		ms.logger.Warn("meeting", "status transition rejected", map[string]interface{}{
			"meeting_id": meetingID,
			"status":     string(status),
			"error":      err.Error(),
		})
		return
	}

	ms.logger.Info("meeting", "status changed", map[string]interface{}{
		"meeting_id": meetingID,
		"status":     string(status),
	})

	switch status {
	case entity.StatusActive:
		ms.runner.Start(meetingID)
	case entity.StatusEnded, entity.StatusError:
		ms.runner.Stop(meetingID)
	}

	if status == entity.StatusEnded {
		go ms.fetchRecording(meetingID)
	}

	if ms.events != nil {
		if err := ms.events.Publish(ctx, events.StatusChanged{
			MeetingID: meetingID,
			Status:    string(status),
			At:        time.Now(),
		}); err != nil {
			ms.logger.Warn("meeting", "failed to publish status event", map[string]interface{}{
				"meeting_id": meetingID,
				"error":      err.Error(),
			})
		}
	}

	if ms.hub != nil {
		payload, err := json.Marshal(map[string]interface{}{
			"type":       "status",
			"meeting_id": meetingID,
			"status":     string(status),
		})
		if err == nil {
			ms.hub.BroadcastToMeeting(meetingID, payload)
		}
	}
}

func (ms *meetingService) fetchRecording(meetingID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	url, err := ms.recall.FetchRecordingURL(ctx, meetingID)
	if err != nil {
		ms.logger.Warn("meeting", "recording not available yet", map[string]interface{}{
			"meeting_id": meetingID,
			"error":      err.Error(),
		})
		return
	}
	if url == "" {
		return
	}
	_ = ms.store.SetRecordingURL(meetingID, url)
}
