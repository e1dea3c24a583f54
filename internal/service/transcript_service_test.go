package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meeting-moderator-be/internal/dto"
	"meeting-moderator-be/internal/entity"
	"meeting-moderator-be/internal/pkg/apperrors"
	"meeting-moderator-be/internal/pkg/logger"
	"meeting-moderator-be/internal/store"
)

type capturingPublisher struct {
	payloads [][]byte
	err      error
}

func (c *capturingPublisher) Publish(_ context.Context, payload []byte) error {
	c.payloads = append(c.payloads, payload)
	return c.err
}

type capturingHub struct {
	broadcasts map[string][][]byte
}

func (c *capturingHub) BroadcastToMeeting(meetingID string, payload []byte) {
	if c.broadcasts == nil {
		c.broadcasts = make(map[string][][]byte)
	}
	c.broadcasts[meetingID] = append(c.broadcasts[meetingID], payload)
}

func newTranscriptFixture() (ITranscriptService, *store.Store, *capturingPublisher, *capturingHub) {
	st := store.NewStore(time.Hour)
	pub := &capturingPublisher{}
	hub := &capturingHub{}
	svc := NewTranscriptService(st, pub, hub, logger.NewIsolatedLogger("logs/test.log"))
	return svc, st, pub, hub
}

func TestIngestUnknownSessionDropped(t *testing.T) {
	svc, _, pub, _ := newTranscriptFixture()

	err := svc.Ingest(context.Background(), "ghost", entity.Utterance{
		Timestamp: 1, Speaker: "ana", Text: "hello", Finality: entity.FinalityFinal,
	})

	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	assert.Empty(t, pub.payloads)
}

func TestIngestPartialThenFinal(t *testing.T) {
	svc, st, pub, hub := newTranscriptFixture()
	st.Create("m1", "")

	require.NoError(t, svc.Ingest(context.Background(), "m1", entity.Utterance{
		Timestamp: 1.0, Speaker: "ana", Text: "I thi", Finality: entity.FinalityPartial,
	}))
	require.NoError(t, svc.Ingest(context.Background(), "m1", entity.Utterance{
		Timestamp: 1.0, Speaker: "ana", Text: "I think we", Finality: entity.FinalityPartial,
	}))

	// Partials never reach the log, the archive, or the live feed.
	log, err := st.SnapshotTranscript("m1")
	require.NoError(t, err)
	assert.Empty(t, log)
	assert.Empty(t, pub.payloads)
	assert.Empty(t, hub.broadcasts)

	require.NoError(t, svc.Ingest(context.Background(), "m1", entity.Utterance{
		Timestamp: 1.4, Speaker: "ana", Text: "I think we should ship", Finality: entity.FinalityFinal,
	}))

	log, _ = st.SnapshotTranscript("m1")
	require.Len(t, log, 1)
	assert.Equal(t, "I think we should ship", log[0].Text)

	require.Len(t, pub.payloads, 1)
	var archived dto.ArchiveUtteranceMessage
	require.NoError(t, json.Unmarshal(pub.payloads[0], &archived))
	assert.Equal(t, "m1", archived.MeetingID)
	assert.Equal(t, "I think we should ship", archived.Text)

	assert.Len(t, hub.broadcasts["m1"], 1)
}

func TestIngestArchivesAndBroadcastsLogEntry(t *testing.T) {
	svc, st, pub, hub := newTranscriptFixture()
	st.Create("m1", "")

	require.NoError(t, svc.Ingest(context.Background(), "m1", entity.Utterance{
		Timestamp: 10, Speaker: "ana", Text: "first point", Finality: entity.FinalityFinal,
	}))

	// Raw event with sloppy whitespace and an out-of-order timestamp.
	require.NoError(t, svc.Ingest(context.Background(), "m1", entity.Utterance{
		Timestamp: 4, Speaker: " Ben ", Text: "  second point  ", Finality: entity.FinalityFinal,
	}))

	log, _ := st.SnapshotTranscript("m1")
	require.Len(t, log, 2)

	// Archive and live feed carry the normalized entry the log kept.
	var archived dto.ArchiveUtteranceMessage
	require.NoError(t, json.Unmarshal(pub.payloads[1], &archived))
	assert.Equal(t, log[1].Speaker, archived.Speaker)
	assert.Equal(t, log[1].Text, archived.Text)
	assert.Equal(t, log[1].Timestamp, archived.Timestamp)

	var live map[string]interface{}
	require.NoError(t, json.Unmarshal(hub.broadcasts["m1"][1], &live))
	assert.Equal(t, "Ben", live["speaker"])
	assert.Equal(t, "second point", live["text"])
	assert.Equal(t, float64(10), live["timestamp"])
}

func TestIngestDuplicateFinalIdempotent(t *testing.T) {
	svc, st, pub, hub := newTranscriptFixture()
	st.Create("m1", "")

	utt := entity.Utterance{Timestamp: 2.0, Speaker: "ben", Text: "same words", Finality: entity.FinalityFinal}

	require.NoError(t, svc.Ingest(context.Background(), "m1", utt))
	require.NoError(t, svc.Ingest(context.Background(), "m1", utt))

	log, _ := st.SnapshotTranscript("m1")
	assert.Len(t, log, 1)
	assert.Len(t, pub.payloads, 1, "duplicates are not re-archived")
	assert.Len(t, hub.broadcasts["m1"], 1, "duplicates are not re-broadcast")
}

func TestIngestPublishFailureDoesNotFail(t *testing.T) {
	svc, st, pub, _ := newTranscriptFixture()
	st.Create("m1", "")
	pub.err = assert.AnError

	err := svc.Ingest(context.Background(), "m1", entity.Utterance{
		Timestamp: 1, Speaker: "ana", Text: "still recorded", Finality: entity.FinalityFinal,
	})
	require.NoError(t, err)

	log, _ := st.SnapshotTranscript("m1")
	assert.Len(t, log, 1, "archive trouble never loses the live transcript")
}
