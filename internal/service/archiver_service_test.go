package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meeting-moderator-be/internal/dto"
	"meeting-moderator-be/internal/pkg/apperrors"
	"meeting-moderator-be/internal/pkg/logger"
)

func newArchiverFixture(t *testing.T) (IArchiverService, IPublisherService, string) {
	t.Helper()
	dir := t.TempDir()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))

	archiver := NewArchiverService(pubSub, "archive.final", dir, logger.NewIsolatedLogger("logs/test.log"))
	publisher := NewPublisherService("archive.final", pubSub)
	return archiver, publisher, dir
}

func publishUtterance(t *testing.T, publisher IPublisherService, msg dto.ArchiveUtteranceMessage) {
	t.Helper()
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, publisher.Publish(context.Background(), payload))
}

func waitForFile(t *testing.T, path string, lines int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil {
			count := 0
			for _, b := range data {
				if b == '\n' {
					count++
				}
			}
			if count >= lines {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("transcript file %s never reached %d lines", path, lines)
}

func TestArchiverAppendsAndLoads(t *testing.T) {
	archiver, publisher, dir := newArchiverFixture(t)
	require.NoError(t, archiver.Consume(context.Background()))

	publishUtterance(t, publisher, dto.ArchiveUtteranceMessage{
		MeetingID: "m1", Timestamp: 1.5, Speaker: "ana", Text: "first point",
	})
	publishUtterance(t, publisher, dto.ArchiveUtteranceMessage{
		MeetingID: "m1", Timestamp: 3.0, Speaker: "ben", Text: "second point",
	})

	path := filepath.Join(dir, "transcript_m1.jsonl")
	waitForFile(t, path, 2)

	utterances, err := archiver.Load("m1")
	require.NoError(t, err)
	require.Len(t, utterances, 2)
	assert.Equal(t, "first point", utterances[0].Text)
	assert.Equal(t, "ben", utterances[1].Speaker)
	assert.Equal(t, 3.0, utterances[1].Timestamp)

	assert.True(t, archiver.Exists("m1"))
	assert.False(t, archiver.Exists("m2"))
}

func TestArchiverLoadUnknown(t *testing.T) {
	archiver, _, _ := newArchiverFixture(t)

	_, err := archiver.Load("ghost")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestArchiverLoadSkipsCorruptLines(t *testing.T) {
	archiver, _, dir := newArchiverFixture(t)

	path := filepath.Join(dir, "transcript_m1.jsonl")
	content := `{"ts":1,"speaker":"ana","text":"good line"}` + "\n" +
		"not json at all\n" +
		`{"ts":2,"speaker":"ben","text":"another good line"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	utterances, err := archiver.Load("m1")
	require.NoError(t, err)
	require.Len(t, utterances, 2)
	assert.Equal(t, "good line", utterances[0].Text)
}

func TestArchiverList(t *testing.T) {
	archiver, publisher, _ := newArchiverFixture(t)
	require.NoError(t, archiver.Consume(context.Background()))

	infos, err := archiver.List()
	require.NoError(t, err)
	assert.Empty(t, infos)

	publishUtterance(t, publisher, dto.ArchiveUtteranceMessage{
		MeetingID: "m1", Timestamp: 1, Speaker: "ana", Text: "hello",
	})
	publishUtterance(t, publisher, dto.ArchiveUtteranceMessage{
		MeetingID: "m2", Timestamp: 1, Speaker: "ben", Text: "hi",
	})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		infos, err = archiver.List()
		require.NoError(t, err)
		if len(infos) == 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	require.Len(t, infos, 2)
	ids := []string{infos[0].MeetingID, infos[1].MeetingID}
	assert.ElementsMatch(t, []string{"m1", "m2"}, ids)
	assert.Greater(t, infos[0].SizeBytes, int64(0))
}

func TestArchiverPathEscapesStripped(t *testing.T) {
	archiver, _, dir := newArchiverFixture(t)
	svc := archiver.(*archiverService)

	got := svc.pathFor("../../etc/passwd")
	assert.Equal(t, filepath.Join(dir, "transcript_passwd.jsonl"), got)
}
