package service

import (
	"context"
	"encoding/json"

	"meeting-moderator-be/internal/pkg/logger"
	"meeting-moderator-be/pkg/events"
	"meeting-moderator-be/pkg/nats"
)

const notificationDurable = "meeting-notification-relay"

type INotificationService interface {
	// Listen relays every meeting event from the event bus to the websocket
	// clients watching that meeting.
	Listen() error
}

type notificationService struct {
	subscriber *nats.Subscriber
	hub        MeetingBroadcaster
	logger     logger.ILogger
}

func NewNotificationService(subscriber *nats.Subscriber, hub MeetingBroadcaster, log logger.ILogger) INotificationService {
	return &notificationService{
		subscriber: subscriber,
		hub:        hub,
		logger:     log,
	}
}

func (ns *notificationService) Listen() error {
	return ns.subscriber.Subscribe("meetings.>", notificationDurable, ns.relay)
}

func (ns *notificationService) relay(_ context.Context, event events.Event) error {
	payload := event.Payload()

	meetingID, _ := payload["meeting_id"].(string)
	if meetingID == "" {
		// Nothing to route to; acknowledged and dropped.
		return nil
	}

	body, err := json.Marshal(map[string]interface{}{
		"type":    event.EventType(),
		"payload": payload,
	})
	if err != nil {
		return err
	}

	ns.hub.BroadcastToMeeting(meetingID, body)
	return nil
}
