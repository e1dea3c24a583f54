package recall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"meeting-moderator-be/internal/pkg/logger"
)

// Client talks to the Recall.ai meeting-bot platform. Chat delivery is
// best-effort: failures are logged, never retried aggressively.
type Client struct {
	apiKey     string
	baseURL    string
	botName    string
	joinMsg    string
	messageCap int
	httpc      *http.Client
	logger     logger.ILogger
}

func NewClient(apiKey, baseURL, botName, joinMsg string, messageCap int, log logger.ILogger) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		botName:    botName,
		joinMsg:    joinMsg,
		messageCap: messageCap,
		httpc:      &http.Client{Timeout: 30 * time.Second},
		logger:     log,
	}
}

type createBotResponse struct {
	ID string `json:"id"`
}

// CreateBot provisions a meeting bot that streams transcript and participant
// events to webhookURL. Returns the platform bot id, which is also our
// session id.
func (c *Client) CreateBot(ctx context.Context, meetingURL, webhookURL string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("missing RECALL_API_KEY")
	}

	body := map[string]interface{}{
		"meeting_url": meetingURL,
		"bot_name":    c.botName,
		"recording_config": map[string]interface{}{
			"transcript": map[string]interface{}{
				"provider": map[string]interface{}{
					"recallai_streaming": map[string]interface{}{
						"mode":          "prioritize_low_latency",
						"language_code": "en",
					},
				},
			},
			"video_mixed_mp4": map[string]interface{}{},
			"realtime_endpoints": []map[string]interface{}{
				{
					"type": "webhook",
					"url":  webhookURL,
					"events": []string{
						"transcript.partial_data",
						"transcript.data",
						"participant_events.chat_message",
						"participant_events.join",
					},
				},
			},
		},
		"chat": map[string]interface{}{
			"on_bot_join": map[string]interface{}{
				"send_to": "everyone",
				"message": c.joinMsg,
			},
		},
	}

	var res createBotResponse
	if err := c.do(ctx, "POST", "/api/v1/bot/", body, &res); err != nil {
		return "", err
	}
	if res.ID == "" {
		return "", fmt.Errorf("unexpected Recall response: missing bot id")
	}
	return res.ID, nil
}

// SendChatMessage posts a message into the meeting chat via the bot. Messages
// longer than the platform chat limit are truncated with an ellipsis.
func (c *Client) SendChatMessage(ctx context.Context, botID, message string) error {
	body := map[string]interface{}{"message": c.truncate(message)}
	path := fmt.Sprintf("/api/v1/bot/%s/send_chat_message/", botID)
	if err := c.do(ctx, "POST", path, body, nil); err != nil {
		c.logger.Warn("Recall", "Failed to deliver chat message", map[string]interface{}{
			"bot_id": botID,
			"error":  err.Error(),
		})
		return err
	}
	return nil
}

// LeaveCall tells the bot to leave the meeting.
func (c *Client) LeaveCall(ctx context.Context, botID string) error {
	path := fmt.Sprintf("/api/v1/bot/%s/leave_call/", botID)
	return c.do(ctx, "POST", path, nil, nil)
}

type botDetailResponse struct {
	Recordings []struct {
		MediaShortcuts struct {
			VideoMixed struct {
				Data struct {
					DownloadURL string `json:"download_url"`
				} `json:"data"`
			} `json:"video_mixed"`
		} `json:"media_shortcuts"`
	} `json:"recordings"`
}

// FetchRecordingURL returns the mixed-video download URL once the platform
// has processed the recording, or "" when it is not ready yet.
func (c *Client) FetchRecordingURL(ctx context.Context, botID string) (string, error) {
	var res botDetailResponse
	if err := c.do(ctx, "GET", fmt.Sprintf("/api/v1/bot/%s/", botID), nil, &res); err != nil {
		return "", err
	}
	if len(res.Recordings) == 0 {
		return "", nil
	}
	return res.Recordings[0].MediaShortcuts.VideoMixed.Data.DownloadURL, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.authToken())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("recall request failed: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode >= 300 {
		return fmt.Errorf("recall error: status %d, body: %s", res.StatusCode, string(resBody))
	}
	if out != nil {
		if err := json.Unmarshal(resBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func (c *Client) truncate(message string) string {
	if c.messageCap <= 0 {
		return message
	}
	runes := []rune(message)
	if len(runes) <= c.messageCap {
		return message
	}
	return string(runes[:c.messageCap-1]) + "…"
}

func (c *Client) authToken() string {
	if strings.HasPrefix(c.apiKey, "Token ") {
		return c.apiKey
	}
	return "Token " + c.apiKey
}
