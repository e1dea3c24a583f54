package qa

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
	"meeting-moderator-be/pkg/llm"
)

type fakeQAClassifier struct {
	result   llm.QAResult
	err      error
	calls    int
	excerpts string
}

func (f *fakeQAClassifier) AnswerQuestion(_ context.Context, _, _, _, excerpts string) (llm.QAResult, error) {
	f.calls++
	f.excerpts = excerpts
	return f.result, f.err
}

func qaTestConfig() config.QAConfig {
	return config.QAConfig{
		Enabled:         true,
		MaxExcerpts:     8,
		MinScore:        0.18,
		MinContextChars: 40,
	}
}

func newQAFixture(classifier *fakeQAClassifier) (*Engine, *store.Store) {
	st := store.NewStore(time.Hour)
	engine := NewEngine(st, classifier, qaTestConfig(), logger.NewIsolatedLogger("logs/test.log"))
	return engine, st
}

func seedTranscript(t *testing.T, st *store.Store, id string) {
	t.Helper()
	st.Create(id, "Sprint planning")
	lines := []string{
		"the deployment pipeline broke again on friday afternoon",
		"we agreed the launch date moves to september twelfth",
		"marketing will prepare the announcement draft by monday",
		"someone should follow up with legal about the license terms",
		"the weather has been great for cycling lately",
	}
	for i, text := range lines {
		_, _, err := st.AppendFinal(id, entity.Utterance{
			Timestamp: float64(i * 10),
			Speaker:   "ana",
			Text:      text,
		})
		require.NoError(t, err)
	}
}

func TestAnswerEmptyTranscript(t *testing.T) {
	classifier := &fakeQAClassifier{}
	engine, st := newQAFixture(classifier)
	st.Create("m1", "agenda")

	ans := engine.Answer(context.Background(), "m1", "what did we decide?")

	assert.NotEmpty(t, ans.Answer)
	assert.Zero(t, ans.Confidence)
	assert.Empty(t, ans.UsedExcerpts)
	assert.Zero(t, classifier.calls, "no completion call without context")
}

func TestAnswerUnknownSession(t *testing.T) {
	classifier := &fakeQAClassifier{}
	engine, _ := newQAFixture(classifier)

	ans := engine.Answer(context.Background(), "ghost", "anything?")

	assert.NotEmpty(t, ans.Answer)
	assert.Zero(t, ans.Confidence)
	assert.Zero(t, classifier.calls)
}

func TestAnswerUsesRelevantExcerpts(t *testing.T) {
	classifier := &fakeQAClassifier{
		result: llm.QAResult{Answer: "The launch moved to September 12th.", Confidence: 0.85},
	}
	engine, st := newQAFixture(classifier)
	seedTranscript(t, st, "m1")

	ans := engine.Answer(context.Background(), "m1", "when is the launch date?")

	assert.Equal(t, "The launch moved to September 12th.", ans.Answer)
	assert.Equal(t, 0.85, ans.Confidence)
	require.Equal(t, 1, classifier.calls)
	assert.Contains(t, classifier.excerpts, "launch date moves to september")
	assert.NotContains(t, classifier.excerpts, "cycling", "irrelevant lines stay out of the prompt")
	assert.NotEmpty(t, ans.UsedExcerpts)
}

func TestAnswerClassifierFailure(t *testing.T) {
	classifier := &fakeQAClassifier{err: errors.New("upstream 500")}
	engine, st := newQAFixture(classifier)
	seedTranscript(t, st, "m1")

	ans := engine.Answer(context.Background(), "m1", "when is the launch date?")

	assert.NotEmpty(t, ans.Answer)
	assert.Zero(t, ans.Confidence)
}

func TestAnswerBlankCompletionGetsPlaceholder(t *testing.T) {
	classifier := &fakeQAClassifier{
		result: llm.QAResult{Answer: "   ", Confidence: 0.4},
	}
	engine, st := newQAFixture(classifier)
	seedTranscript(t, st, "m1")

	ans := engine.Answer(context.Background(), "m1", "when is the launch date?")

	assert.NotEmpty(t, ans.Answer)
	assert.Equal(t, 0.4, ans.Confidence)
}

func TestRetrieveFallsBackToRecentUtterances(t *testing.T) {
	classifier := &fakeQAClassifier{
		result: llm.QAResult{Answer: "ok", Confidence: 0.2},
	}
	engine, st := newQAFixture(classifier)
	seedTranscript(t, st, "m1")

	// A question sharing no tokens with the transcript still produces a
	// prompt from the most recent lines.
	ans := engine.Answer(context.Background(), "m1", "zzz qqq xyzzy plugh?")

	assert.Equal(t, 1, classifier.calls)
	assert.NotEmpty(t, classifier.excerpts)
	assert.NotEmpty(t, ans.UsedExcerpts)
}

func TestRetrieveCapsExcerpts(t *testing.T) {
	classifier := &fakeQAClassifier{
		result: llm.QAResult{Answer: "ok", Confidence: 0.5},
	}
	engine, st := newQAFixture(classifier)
	st.Create("m1", "")
	for i := 0; i < 30; i++ {
		_, _, err := st.AppendFinal("m1", entity.Utterance{
			Timestamp: float64(i),
			Speaker:   "ana",
			Text:      "budget discussion continues with more budget details",
		})
		require.NoError(t, err)
	}

	ans := engine.Answer(context.Background(), "m1", "what about the budget?")

	assert.LessOrEqual(t, len(ans.UsedExcerpts), qaTestConfig().MaxExcerpts)
}

func TestFormatExcerptsTrimsFromFront(t *testing.T) {
	excerpts := []entity.Utterance{
		{Speaker: "ana", Text: "older line that can be dropped"},
		{Speaker: "ben", Text: "newer line that must survive"},
	}

	out := formatExcerpts(excerpts, 35)
	assert.Contains(t, out, "newer line that must survive")
	assert.NotContains(t, out, "older line")
}
