package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meeting-moderator-be/internal/config"
	"meeting-moderator-be/internal/entity"
	"meeting-moderator-be/internal/pkg/logger"
	"meeting-moderator-be/internal/store"
	"meeting-moderator-be/pkg/events"
	"meeting-moderator-be/pkg/llm"
)

type fakeTangentClassifier struct {
	verdict llm.TangentVerdict
	err     error
	calls   int
}

func (f *fakeTangentClassifier) ClassifyTangent(_ context.Context, _, _ string) (llm.TangentVerdict, error) {
	f.calls++
	return f.verdict, f.err
}

type fakeChat struct {
	messages []string
	err      error
}

func (f *fakeChat) SendChatMessage(_ context.Context, _, message string) error {
	f.messages = append(f.messages, message)
	return f.err
}

type fakeEventBus struct {
	published []events.Event
}

func (f *fakeEventBus) Publish(_ context.Context, e events.Event) error {
	f.published = append(f.published, e)
	return nil
}

func tangentTestConfig() config.TangentConfig {
	return config.TangentConfig{
		Enabled:             true,
		CheckEvery:          5 * time.Second,
		ConfidenceThreshold: 0.7,
		StrikeWindow:        20 * time.Second,
		StrikeThreshold:     2,
		Cooldown:            45 * time.Second,
		RecentUtterances:    12,
	}
}

func newTangentFixture(t *testing.T, classifier *fakeTangentClassifier) (*TangentDetector, *store.Store, *fakeChat, *fakeEventBus) {
	t.Helper()
	st := store.NewStore(time.Hour)
	st.Create("m1", "Discuss the Q3 roadmap")
	_, _, err := st.AppendFinal("m1", entity.Utterance{Timestamp: 1, Speaker: "ana", Text: "did anyone see the game last night"})
	require.NoError(t, err)

	chat := &fakeChat{}
	bus := &fakeEventBus{}
	d := NewTangentDetector(st, classifier, chat, bus, tangentTestConfig(), logger.NewIsolatedLogger("logs/test.log"))
	return d, st, chat, bus
}

func TestTangentInterventionAtSecondStrike(t *testing.T) {
	classifier := &fakeTangentClassifier{
		verdict: llm.TangentVerdict{OnTopic: false, Confidence: 0.9, Message: "Back to the roadmap?"},
	}
	d, st, chat, bus := newTangentFixture(t, classifier)

	base := time.Now()
	d.now = func() time.Time { return base }
	d.Tick(context.Background(), "m1")

	state, err := st.TangentState("m1")
	require.NoError(t, err)
	assert.Len(t, state.Strikes, 1)
	assert.Empty(t, chat.messages, "first strike must not intervene")

	d.now = func() time.Time { return base.Add(5 * time.Second) }
	d.Tick(context.Background(), "m1")

	state, _ = st.TangentState("m1")
	assert.Empty(t, state.Strikes, "firing clears the strikes")
	assert.NotZero(t, state.LastInterventionAt)
	require.Len(t, chat.messages, 1)
	assert.Equal(t, "Back to the roadmap?", chat.messages[0])

	require.Len(t, bus.published, 1)
	assert.Equal(t, events.TypeInterventionFired, bus.published[0].EventType())

	// A third off-topic tick lands a fresh strike but cannot fire again
	// inside the cooldown.
	d.now = func() time.Time { return base.Add(10 * time.Second) }
	d.Tick(context.Background(), "m1")

	state, _ = st.TangentState("m1")
	assert.Len(t, state.Strikes, 1)
	assert.Len(t, chat.messages, 1, "at most one intervention per cooldown window")
}

func TestTangentClassifierErrorSkipsTick(t *testing.T) {
	classifier := &fakeTangentClassifier{err: errors.New("deadline exceeded")}
	d, st, chat, _ := newTangentFixture(t, classifier)

	before, err := st.TangentState("m1")
	require.NoError(t, err)

	d.Tick(context.Background(), "m1")

	after, _ := st.TangentState("m1")
	assert.Equal(t, before, after, "a failed classification must not mutate state")
	assert.Empty(t, chat.messages)
	assert.Equal(t, 1, classifier.calls)

	// The schedule continues: a later successful tick still lands a strike.
	classifier.err = nil
	classifier.verdict = llm.TangentVerdict{OnTopic: false, Confidence: 0.95}
	d.Tick(context.Background(), "m1")

	after, _ = st.TangentState("m1")
	assert.Len(t, after.Strikes, 1)
}

func TestTangentLowConfidenceIsNotAStrike(t *testing.T) {
	classifier := &fakeTangentClassifier{
		verdict: llm.TangentVerdict{OnTopic: false, Confidence: 0.5},
	}
	d, st, _, _ := newTangentFixture(t, classifier)

	d.Tick(context.Background(), "m1")

	state, _ := st.TangentState("m1")
	assert.Empty(t, state.Strikes)
}

func TestTangentSkipsWithoutAgenda(t *testing.T) {
	classifier := &fakeTangentClassifier{
		verdict: llm.TangentVerdict{OnTopic: false, Confidence: 0.9},
	}
	d, st, _, _ := newTangentFixture(t, classifier)
	require.NoError(t, st.SetAgenda("m1", ""))

	d.Tick(context.Background(), "m1")

	assert.Zero(t, classifier.calls, "no agenda, no classification")
}

func TestTangentSkipsEndedSession(t *testing.T) {
	classifier := &fakeTangentClassifier{
		verdict: llm.TangentVerdict{OnTopic: false, Confidence: 0.9},
	}
	d, st, _, _ := newTangentFixture(t, classifier)
	require.NoError(t, st.SetStatus("m1", entity.StatusEnded))

	d.Tick(context.Background(), "m1")

	assert.Zero(t, classifier.calls)
}

func TestTangentChatFailureStillStampsCooldown(t *testing.T) {
	classifier := &fakeTangentClassifier{
		verdict: llm.TangentVerdict{OnTopic: false, Confidence: 0.9},
	}
	d, st, chat, _ := newTangentFixture(t, classifier)
	chat.err = errors.New("chat unavailable")

	base := time.Now()
	d.now = func() time.Time { return base }
	d.Tick(context.Background(), "m1")
	d.now = func() time.Time { return base.Add(5 * time.Second) }
	d.Tick(context.Background(), "m1")

	state, _ := st.TangentState("m1")
	assert.NotZero(t, state.LastInterventionAt, "cooldown stands even when delivery fails")
}
