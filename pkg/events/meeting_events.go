package events

import "time"

const (
	TypeInterventionFired = "INTERVENTION_FIRED"
	TypeTopicChanged      = "TOPIC_CHANGED"
	TypeStatusChanged     = "STATUS_CHANGED"
)

// InterventionFired is published when the tangent detector sends a
// back-on-track message into a meeting.
type InterventionFired struct {
	MeetingID  string
	Message    string
	Confidence float64
	At         time.Time
}

func (e InterventionFired) EventType() string { return TypeInterventionFired }

func (e InterventionFired) Payload() map[string]interface{} {
	return map[string]interface{}{
		"meeting_id": e.MeetingID,
		"message":    e.Message,
		"confidence": e.Confidence,
	}
}

func (e InterventionFired) Timestamp() time.Time { return e.At }

// TopicChanged is published when the topic tracker overwrites the current
// topic with a materially different one.
type TopicChanged struct {
	MeetingID  string
	Topic      string
	Previous   string
	Confidence float64
	At         time.Time
}

func (e TopicChanged) EventType() string { return TypeTopicChanged }

func (e TopicChanged) Payload() map[string]interface{} {
	return map[string]interface{}{
		"meeting_id": e.MeetingID,
		"topic":      e.Topic,
		"previous":   e.Previous,
		"confidence": e.Confidence,
	}
}

func (e TopicChanged) Timestamp() time.Time { return e.At }

// StatusChanged is published on bot lifecycle transitions.
type StatusChanged struct {
	MeetingID string
	Status    string
	At        time.Time
}

func (e StatusChanged) EventType() string { return TypeStatusChanged }

func (e StatusChanged) Payload() map[string]interface{} {
	return map[string]interface{}{
		"meeting_id": e.MeetingID,
		"status":     e.Status,
	}
}

func (e StatusChanged) Timestamp() time.Time { return e.At }
