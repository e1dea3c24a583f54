package dto

import "meeting-moderator-be/internal/entity"

type StartMeetingBotRequest struct {
	MeetingURL string `json:"meeting_url" validate:"required,url"`
	Agenda     string `json:"agenda,omitempty"`
}

type StartMeetingBotResponse struct {
	MeetingID string `json:"meeting_id"`
	Status    string `json:"status"`
}

type SetAgendaRequest struct {
	Agenda string `json:"agenda" validate:"required,min=3"`
}

type AgendaResponse struct {
	MeetingID string `json:"meeting_id"`
	Agenda    string `json:"agenda"`
}

type MeetingStatusResponse struct {
	MeetingID    string   `json:"meeting_id"`
	Status       string   `json:"status"`
	RecordingURL string   `json:"recording_url,omitempty"`
	Participants []string `json:"participants,omitempty"`
}

type CurrentTopicResponse struct {
	MeetingID string `json:"meeting_id"`
	Topic     string `json:"topic"`
}

type TranscriptEntry struct {
	Timestamp float64 `json:"timestamp"`
	Speaker   string  `json:"speaker"`
	Text      string  `json:"text"`
}

type TranscriptResponse struct {
	MeetingID string            `json:"meeting_id"`
	Entries   []TranscriptEntry `json:"entries"`
}

type SummaryResponse struct {
	MeetingID  string  `json:"meeting_id"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

type QARequest struct {
	Question string `json:"question" validate:"required,min=2"`
}

type QAResponse struct {
	MeetingID    string  `json:"meeting_id"`
	Question     string  `json:"question"`
	Answer       string  `json:"answer"`
	Confidence   float64 `json:"confidence"`
	UsedExcerpts int     `json:"used_excerpts"`
}

type TranscriptInfo struct {
	MeetingID  string `json:"meeting_id"`
	SizeBytes  int64  `json:"size_bytes"`
	ModifiedAt string `json:"modified_at"`
}

// ArchiveUtteranceMessage is the payload carried on the archive topic for
// every final transcript entry.
type ArchiveUtteranceMessage struct {
	MeetingID string  `json:"meeting_id"`
	Timestamp float64 `json:"timestamp"`
	Speaker   string  `json:"speaker"`
	Text      string  `json:"text"`
}

func TranscriptEntryFromUtterance(u entity.Utterance) TranscriptEntry {
	return TranscriptEntry{
		Timestamp: u.Timestamp,
		Speaker:   u.Speaker,
		Text:      u.Text,
	}
}
