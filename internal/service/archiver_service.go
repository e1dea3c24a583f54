package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"meeting-moderator-be/internal/dto"
	"meeting-moderator-be/internal/entity"
	"meeting-moderator-be/internal/pkg/apperrors"
	"meeting-moderator-be/internal/pkg/logger"
)

const transcriptFilePrefix = "transcript_"
const transcriptFileSuffix = ".jsonl"

type IArchiverService interface {
	// Consume subscribes to the archive topic and appends every final
	// utterance to the session's transcript file.
	Consume(ctx context.Context) error
	// Load reads an archived transcript back from disk.
	Load(meetingID string) ([]entity.Utterance, error)
	// List enumerates all archived transcripts.
	List() ([]dto.TranscriptInfo, error)
	// Exists reports whether an archived transcript exists on disk.
	Exists(meetingID string) bool
}

type archiverService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	dir       string
	logger    logger.ILogger

	mu sync.Mutex
}

func NewArchiverService(
	pubSub *gochannel.GoChannel,
	topicName string,
	dir string,
	log logger.ILogger,
) IArchiverService {
	return &archiverService{
		pubSub:    pubSub,
		topicName: topicName,
		dir:       dir,
		logger:    log,
	}
}

func (as *archiverService) Consume(ctx context.Context) error {
	if err := os.MkdirAll(as.dir, 0o755); err != nil {
		return fmt.Errorf("create transcripts dir: %w", err)
	}

	messages, err := as.pubSub.Subscribe(ctx, as.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			as.processMessage(msg)
		}
	}()

	return nil
}

func (as *archiverService) processMessage(msg *message.Message) {
	var payload dto.ArchiveUtteranceMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		as.logger.Error("archiver", "failed to unmarshal archive message", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // malformed payloads never become valid, drop them
		return
	}

	if err := as.appendLine(payload); err != nil {
		as.logger.Error("archiver", "failed to append transcript line", map[string]interface{}{
			"meeting_id": payload.MeetingID,
			"error":      err.Error(),
		})
		msg.Nack()
		return
	}

	msg.Ack()
}

func (as *archiverService) appendLine(payload dto.ArchiveUtteranceMessage) error {
	line, err := json.Marshal(entity.Utterance{
		Timestamp: payload.Timestamp,
		Speaker:   payload.Speaker,
		Text:      payload.Text,
		Finality:  entity.FinalityFinal,
	})
	if err != nil {
		return err
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	f, err := os.OpenFile(as.pathFor(payload.MeetingID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return nil
}

func (as *archiverService) Load(meetingID string) ([]entity.Utterance, error) {
	as.mu.Lock()
	defer as.mu.Unlock()

	f, err := os.Open(as.pathFor(meetingID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.ErrSessionNotFound
		}
		return nil, err
	}
	defer f.Close()

	var utterances []entity.Utterance
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var u entity.Utterance
		if err := json.Unmarshal([]byte(line), &u); err != nil {
			as.logger.Warn("archiver", "skipping corrupt transcript line", map[string]interface{}{
				"meeting_id": meetingID,
				"error":      err.Error(),
			})
			continue
		}
		u.Finality = entity.FinalityFinal
		utterances = append(utterances, u)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return utterances, nil
}

func (as *archiverService) List() ([]dto.TranscriptInfo, error) {
	entries, err := os.ReadDir(as.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []dto.TranscriptInfo{}, nil
		}
		return nil, err
	}

	infos := make([]dto.TranscriptInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, transcriptFilePrefix) || !strings.HasSuffix(name, transcriptFileSuffix) {
			continue
		}
		meetingID := strings.TrimSuffix(strings.TrimPrefix(name, transcriptFilePrefix), transcriptFileSuffix)
		if meetingID == "" {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, dto.TranscriptInfo{
			MeetingID:  meetingID,
			SizeBytes:  fi.Size(),
			ModifiedAt: fi.ModTime().UTC().Format(time.RFC3339),
		})
	}
	return infos, nil
}

func (as *archiverService) Exists(meetingID string) bool {
	_, err := os.Stat(as.pathFor(meetingID))
	return err == nil
}

func (as *archiverService) pathFor(meetingID string) string {
	// Meeting IDs come from external systems; keep them from escaping the dir.
	safe := filepath.Base(meetingID)
	return filepath.Join(as.dir, transcriptFilePrefix+safe+transcriptFileSuffix)
}
