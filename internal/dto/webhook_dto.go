package dto

import "encoding/json"

// RealtimeWebhookEvent is the envelope posted by the meeting bot platform for
// realtime transcript and participant events.
type RealtimeWebhookEvent struct {
	Event string               `json:"event"`
	Data  RealtimeWebhookData  `json:"data"`
}

type RealtimeWebhookData struct {
	Bot  WebhookBotRef       `json:"bot"`
	Data RealtimeWebhookBody `json:"data"`
}

type WebhookBotRef struct {
	ID string `json:"id"`
}

type RealtimeWebhookBody struct {
	Words       []TranscriptWord    `json:"words,omitempty"`
	Participant *WebhookParticipant `json:"participant,omitempty"`
	// Text is set on chat message events.
	Text string `json:"text,omitempty"`
}

type TranscriptWord struct {
	Text           string  `json:"text"`
	StartTimestamp float64 `json:"start_timestamp"`
	EndTimestamp   float64 `json:"end_timestamp"`
}

type WebhookParticipant struct {
	ID     json.Number `json:"id,omitempty"`
	Name   string      `json:"name"`
	IsHost bool        `json:"is_host,omitempty"`
}

// StatusWebhookEvent is the envelope for bot lifecycle change notifications.
type StatusWebhookEvent struct {
	Event string            `json:"event"`
	Data  StatusWebhookData `json:"data"`
}

type StatusWebhookData struct {
	Bot    WebhookBotRef `json:"bot"`
	Status WebhookStatus `json:"status"`
}

type WebhookStatus struct {
	Code      string `json:"code"`
	CreatedAt string `json:"created_at,omitempty"`
}
