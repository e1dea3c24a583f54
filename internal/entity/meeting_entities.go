package entity

import "time"

// SessionStatus is the bot lifecycle status for a meeting session.
type SessionStatus string

const (
	StatusJoining SessionStatus = "joining"
	StatusActive  SessionStatus = "active"
	StatusEnded   SessionStatus = "ended"
	StatusError   SessionStatus = "error"
)

// Finality marks whether a transcribed utterance is still revisable.
type Finality string

const (
	FinalityPartial Finality = "partial"
	FinalityFinal   Finality = "final"
)

// Utterance is one speaker turn of transcribed speech.
// Timestamp is seconds since epoch, as delivered by the transcription feed.
type Utterance struct {
	Timestamp float64  `json:"ts"`
	Speaker   string   `json:"speaker"`
	Text      string   `json:"text"`
	Finality  Finality `json:"finality"`
}

// Strike records one confident off-topic classification.
type Strike struct {
	Timestamp  float64 `json:"ts"`
	Confidence float64 `json:"confidence"`
}

// TangentState is the tangent detector's per-session state.
// LastInterventionAt is 0 when no intervention has fired yet.
type TangentState struct {
	Strikes            []Strike `json:"strikes"`
	LastInterventionAt float64  `json:"last_intervention_at"`
}

// SessionInfo is a read-only view of a session's scalar fields,
// safe to hand out without holding the session lock.
type SessionInfo struct {
	ID                 string        `json:"id"`
	Agenda             string        `json:"agenda"`
	Status             SessionStatus `json:"status"`
	CurrentTopic       string        `json:"topic"`
	TopicUpdatedAt     float64       `json:"topic_updated_at"`
	RecordingStartedAt float64       `json:"recording_started_at"`
	RecordingURL       string        `json:"recording_url"`
	CreatedAt          time.Time     `json:"created_at"`
	StatusUpdatedAt    float64       `json:"status_updated_at"`
	UtteranceCount     int           `json:"utterance_count"`
}
