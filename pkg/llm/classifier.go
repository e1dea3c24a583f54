package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TangentVerdict is the structured result of an on-topic classification.
type TangentVerdict struct {
	OnTopic    bool    `json:"on_topic"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	Message    string  `json:"message"`
}

// TopicResult is a one-line description of the current discussion.
type TopicResult struct {
	Topic      string  `json:"topic"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// QAResult is a transcript-grounded answer.
type QAResult struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
}

// SummaryResult is a markdown meeting summary.
type SummaryResult struct {
	Markdown   string  `json:"markdown"`
	Confidence float64 `json:"confidence"`
}

// Classifier issues structured-verdict completions against any Provider.
// Every call carries a bounded timeout; exceeding it surfaces as an error the
// callers treat like any other failed external call.
type Classifier struct {
	provider    Provider
	timeout     time.Duration
	temperature float64
	maxTokens   int
}

func NewClassifier(provider Provider, timeout time.Duration, temperature float64, maxTokens int) *Classifier {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Classifier{
		provider:    provider,
		timeout:     timeout,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (c *Classifier) ClassifyTangent(ctx context.Context, agenda, recentContext string) (TangentVerdict, error) {
	system := "You are a meeting moderator. Your job is to keep discussion aligned to the agenda."
	user := "Agenda:\n" + agenda + "\n\n" +
		"Recent transcript (most recent last):\n" + recentContext + "\n\n" +
		"Return JSON only:\n" +
		"{\n" +
		"  \"on_topic\": true/false,\n" +
		"  \"confidence\": number 0..1,\n" +
		"  \"reason\": \"short reason\",\n" +
		"  \"message\": \"If off-topic, 1 short chat message. If on-topic, empty string.\"\n" +
		"}\n" +
		"Rules:\n" +
		"- Mark on_topic = true if discussion is still related to agenda, even if loosely.\n" +
		"- Only mark off-topic if clearly unrelated for >10 seconds.\n" +
		"- Keep message <= 160 characters.\n" +
		"- Avoid personal insults, slurs, or harassment.\n"

	var verdict TangentVerdict
	if err := c.chatJSON(ctx, system, user, &verdict); err != nil {
		return TangentVerdict{}, err
	}
	verdict.Confidence = Clamp01(verdict.Confidence)
	verdict.Message = strings.TrimSpace(verdict.Message)
	if verdict.OnTopic {
		verdict.Message = ""
	}
	verdict.Message = truncate(verdict.Message, 160)
	return verdict, nil
}

func (c *Classifier) DetectTopic(ctx context.Context, meetingContext, recentContext string) (TopicResult, error) {
	system := "You summarize meeting conversation into a short current topic label for chat check-ins."
	user := "Meeting context (agenda / goal). This may be empty:\n" + strings.TrimSpace(meetingContext) + "\n\n" +
		"Recent transcript (most recent last):\n" + recentContext + "\n\n" +
		"Return JSON only:\n" +
		"{\n" +
		"  \"topic\": \"short topic label\",\n" +
		"  \"confidence\": number 0..1,\n" +
		"  \"reason\": \"brief reason\"\n" +
		"}\n" +
		"Rules:\n" +
		"- Output a topic label, a couple sentences.\n" +
		"- If the transcript is too thin/unclear, lower confidence.\n"

	var result TopicResult
	if err := c.chatJSON(ctx, system, user, &result); err != nil {
		return TopicResult{}, err
	}
	result.Topic = truncate(strings.TrimSpace(result.Topic), 80)
	result.Confidence = Clamp01(result.Confidence)
	return result, nil
}

func (c *Classifier) AnswerQuestion(ctx context.Context, agenda, currentTopic, question, transcriptExcerpts string) (QAResult, error) {
	system := "You are a helpful meeting assistant. " +
		"Answer questions using ONLY the provided transcript excerpts. " +
		"If the answer is not in the excerpts, say you haven't heard it yet."
	user := "Meeting agenda/goal (may be empty):\n" + strings.TrimSpace(agenda) + "\n\n" +
		"Current inferred topic (may be empty):\n" + strings.TrimSpace(currentTopic) + "\n\n" +
		"Question:\n" + strings.TrimSpace(question) + "\n\n" +
		"Transcript excerpts (most recent last):\n" + transcriptExcerpts + "\n\n" +
		"Return JSON only:\n" +
		"{\n" +
		"  \"answer\": \"2 sentences max\",\n" +
		"  \"confidence\": number 0..1\n" +
		"}\n" +
		"Rules:\n" +
		"- Keep the answer to ~2 sentences.\n" +
		"- Don't invent details; if it's not in the excerpts, say you haven't heard it yet.\n" +
		"- Avoid targeting individuals; keep tone constructive.\n"

	var result QAResult
	if err := c.chatJSON(ctx, system, user, &result); err != nil {
		return QAResult{}, err
	}
	result.Answer = truncate(strings.TrimSpace(result.Answer), 350)
	result.Confidence = Clamp01(result.Confidence)
	return result, nil
}

func (c *Classifier) Summarize(ctx context.Context, transcriptText, meetingDate string) (SummaryResult, error) {
	if meetingDate == "" {
		meetingDate = "Not specified"
	}
	system := "You are a professional meeting assistant. " +
		"Create a well-structured meeting summary in Markdown format."
	user := "Meeting transcript:\n\n" + transcriptText + "\n\n" +
		"Meeting date: " + meetingDate + "\n\n" +
		"Return JSON with a single field:\n" +
		"{\n" +
		"  \"markdown\": \"Full markdown summary\",\n" +
		"  \"confidence\": number 0..1\n" +
		"}\n\n" +
		"The markdown should follow this structure:\n" +
		"# Meeting Summary\n" +
		"**Date:** [date]\n\n" +
		"## Key Points\n- point 1\n- point 2\n\n" +
		"## Action Items\n- [ ] Action 1\n\n" +
		"## Decisions Made\n- Decision 1\n\n" +
		"## Discussion Topics\nBrief narrative of what was discussed.\n\n" +
		"Rules:\n- Be concise but comprehensive\n- Use bullet points for clarity\n- Use checkboxes for action items\n"

	var result SummaryResult
	if err := c.chatJSON(ctx, system, user, &result); err != nil {
		return SummaryResult{}, err
	}
	result.Markdown = strings.TrimSpace(result.Markdown)
	result.Confidence = Clamp01(result.Confidence)
	return result, nil
}

func (c *Classifier) chatJSON(ctx context.Context, system, user string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := []Option{WithTemperature(c.temperature)}
	if c.maxTokens > 0 {
		opts = append(opts, WithMaxTokens(c.maxTokens))
	}
	raw, err := c.provider.Chat(ctx, []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, opts...)
	if err != nil {
		return err
	}
	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(obj, out)
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSONObject pulls a JSON object out of a model response. It tolerates
// markdown code fences and JSON wrapped in prose, and normalizes a top-level
// array to its first object element.
func ExtractJSONObject(text string) (json.RawMessage, error) {
	b := bytes.TrimSpace([]byte(text))
	b = bytes.TrimPrefix(b, []byte("```json"))
	b = bytes.TrimPrefix(b, []byte("```"))
	b = bytes.TrimSuffix(b, []byte("```"))
	b = bytes.TrimSpace(b)

	if obj, err := normalizeJSONObject(b); err == nil {
		return obj, nil
	}
	if m := jsonObjectRe.Find(b); m != nil {
		return normalizeJSONObject(m)
	}
	return nil, fmt.Errorf("model did not return JSON. Raw: %s", truncate(text, 400))
}

func normalizeJSONObject(b []byte) (json.RawMessage, error) {
	var probe interface{}
	if err := json.Unmarshal(b, &probe); err != nil {
		return nil, err
	}
	switch v := probe.(type) {
	case map[string]interface{}:
		return json.RawMessage(b), nil
	case []interface{}:
		// Some models return [{...}] even when asked for a single object.
		if len(v) > 0 {
			if _, ok := v[0].(map[string]interface{}); ok {
				return json.Marshal(v[0])
			}
		}
	}
	return nil, fmt.Errorf("expected JSON object")
}

// Clamp01 bounds a confidence score into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
