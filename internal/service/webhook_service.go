package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"meeting-moderator-be/internal/config"
	"meeting-moderator-be/internal/dto"
	"meeting-moderator-be/internal/entity"
	"meeting-moderator-be/internal/pkg/logger"
	"meeting-moderator-be/internal/store"
	"meeting-moderator-be/pkg/recall"
)

const (
	eventTranscriptPartial = "transcript.partial_data"
	eventTranscriptFinal   = "transcript.data"
	eventParticipantJoin   = "participant_events.join"
	eventChatMessage       = "participant_events.chat_message"
)

// botStatusMap translates platform lifecycle codes into session statuses.
// Codes not listed here are informational and ignored.
var botStatusMap = map[string]entity.SessionStatus{
	"bot.joining_call":        entity.StatusJoining,
	"bot.in_waiting_room":     entity.StatusJoining,
	"bot.in_call_not_recording": entity.StatusActive,
	"bot.in_call_recording":   entity.StatusActive,
	"bot.recording_permission_allowed": entity.StatusActive,
	"bot.call_ended":          entity.StatusEnded,
	"bot.done":                entity.StatusEnded,
	"bot.fatal":               entity.StatusError,
}

type IWebhookService interface {
	// HandleRealtimeEvent processes one transcript or participant event.
	// It never fails the webhook: bad events are logged and dropped.
	HandleRealtimeEvent(ctx context.Context, event dto.RealtimeWebhookEvent)
	// HandleStatusEvent processes one bot lifecycle notification.
	HandleStatusEvent(ctx context.Context, event dto.StatusWebhookEvent)
}

type webhookService struct {
	store       *store.Store
	transcripts ITranscriptService
	meetings    IMeetingService
	recall      *recall.Client
	logger      logger.ILogger

	mentionRe *regexp.Regexp
}

func NewWebhookService(
	sessionStore *store.Store,
	transcripts ITranscriptService,
	meetings IMeetingService,
	recallClient *recall.Client,
	cfg *config.Config,
	log logger.ILogger,
) IWebhookService {
	return &webhookService{
		store:       sessionStore,
		transcripts: transcripts,
		meetings:    meetings,
		recall:      recallClient,
		logger:      log,
		mentionRe:   buildMentionPattern(cfg.Recall.BotName, cfg.Recall.BotAliases),
	}
}

// buildMentionPattern matches a leading bot mention such as "@Moderator:" or
// "moderator," followed by the actual question.
func buildMentionPattern(botName string, aliases []string) *regexp.Regexp {
	names := make([]string, 0, len(aliases)+1)
	if n := strings.TrimSpace(botName); n != "" {
		names = append(names, regexp.QuoteMeta(n))
	}
	for _, a := range aliases {
		if a = strings.TrimSpace(a); a != "" {
			names = append(names, regexp.QuoteMeta(a))
		}
	}
	if len(names) == 0 {
		names = []string{"bot"}
	}
	return regexp.MustCompile(`(?i)^\s*@?(?:` + strings.Join(names, "|") + `)\b[,:]?\s*(.*)$`)
}

func (ws *webhookService) HandleRealtimeEvent(ctx context.Context, event dto.RealtimeWebhookEvent) {
	meetingID := event.Data.Bot.ID
	if meetingID == "" {
		ws.logger.Warn("webhook", "realtime event without bot id", map[string]interface{}{
			"event": event.Event,
		})
		return
	}

	switch event.Event {
	case eventTranscriptPartial:
		ws.ingest(ctx, meetingID, event.Data.Data, entity.FinalityPartial)
	case eventTranscriptFinal:
		ws.ingest(ctx, meetingID, event.Data.Data, entity.FinalityFinal)
	case eventParticipantJoin:
		ws.participantJoined(meetingID, event.Data.Data.Participant)
	case eventChatMessage:
		ws.chatMessage(meetingID, event.Data.Data)
	default:
		ws.logger.Debug("webhook", "ignoring realtime event", map[string]interface{}{
			"event": event.Event,
		})
	}
}

func (ws *webhookService) ingest(ctx context.Context, meetingID string, body dto.RealtimeWebhookBody, finality entity.Finality) {
	if len(body.Words) == 0 {
		return
	}

	parts := make([]string, 0, len(body.Words))
	for _, w := range body.Words {
		if t := strings.TrimSpace(w.Text); t != "" {
			parts = append(parts, t)
		}
	}
	text := strings.Join(parts, " ")
	if text == "" {
		return
	}

	speaker := ""
	if body.Participant != nil {
		speaker = body.Participant.Name
	}

	utterance := entity.Utterance{
		Timestamp: body.Words[0].StartTimestamp,
		Speaker:   speaker,
		Text:      text,
		Finality:  finality,
	}

	if err := ws.transcripts.Ingest(ctx, meetingID, utterance); err != nil {
		ws.logger.Warn("webhook", "utterance dropped", map[string]interface{}{
			"meeting_id": meetingID,
			"error":      err.Error(),
		})
	}
}

func (ws *webhookService) participantJoined(meetingID string, participant *dto.WebhookParticipant) {
	if participant == nil || participant.Name == "" {
		return
	}
	if err := ws.store.RememberParticipant(meetingID, participant.Name, participant.ID.String()); err != nil {
		ws.logger.Debug("webhook", "participant join for unknown session", map[string]interface{}{
			"meeting_id": meetingID,
		})
	}
}

func (ws *webhookService) chatMessage(meetingID string, body dto.RealtimeWebhookBody) {
	text := strings.TrimSpace(body.Text)
	if text == "" {
		return
	}

	question, ok := ws.extractQuestion(text)
	if !ok {
		return
	}

	// Answering involves a completion call, so it runs off the webhook path.
	go ws.answerChat(meetingID, question)
}

func (ws *webhookService) extractQuestion(text string) (string, bool) {
	m := ws.mentionRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	question := strings.TrimSpace(m[1])
	if question == "" {
		return "", false
	}
	return question, true
}

func (ws *webhookService) answerChat(meetingID, question string) {
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	resp, err := ws.meetings.Ask(ctx, meetingID, question)
	if err != nil {
		ws.logger.Warn("webhook", "chat question failed", map[string]interface{}{
			"meeting_id": meetingID,
			"error":      err.Error(),
		})
		return
	}

	if err := ws.recall.SendChatMessage(ctx, meetingID, resp.Answer); err != nil {
		ws.logger.Warn("webhook", "failed to send chat answer", map[string]interface{}{
			"meeting_id": meetingID,
			"error":      err.Error(),
		})
	}
}

func (ws *webhookService) HandleStatusEvent(ctx context.Context, event dto.StatusWebhookEvent) {
	meetingID := event.Data.Bot.ID
	if meetingID == "" {
		return
	}

	status, ok := botStatusMap[event.Data.Status.Code]
	if !ok {
		ws.logger.Debug("webhook", "ignoring status code", map[string]interface{}{
			"meeting_id": meetingID,
			"code":       event.Data.Status.Code,
		})
		return
	}

	ws.meetings.TransitionStatus(ctx, meetingID, status)
}
