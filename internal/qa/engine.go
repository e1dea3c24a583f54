package qa

import (
	"context"
	"sort"
	"strings"

	"meeting-moderator-be/internal/config"
	"meeting-moderator-be/internal/entity"
	"meeting-moderator-be/internal/pkg/logger"
	"meeting-moderator-be/internal/store"
	"meeting-moderator-be/pkg/llm"
	"meeting-moderator-be/pkg/utils"
)

// Per-token cap on candidate indices pulled from the inverted index, so a
// very common token in a long meeting cannot blow up the scoring pass.
const indexCandidateCap = 300

const excerptCharBudget = 2200

const (
	fallbackThinContext = "I haven't heard enough yet to answer that. Try again after a bit more context."
	fallbackUnavailable = "I couldn't check the transcript just now. Please try again in a moment."
)

// Classifier is the external completion dependency.
type Classifier interface {
	AnswerQuestion(ctx context.Context, agenda, currentTopic, question, transcriptExcerpts string) (llm.QAResult, error)
}

// Answer is always well-formed: a degraded external dependency degrades
// answer quality, not availability.
type Answer struct {
	Answer       string   `json:"answer"`
	Confidence   float64  `json:"confidence"`
	UsedExcerpts []string `json:"used_excerpts,omitempty"`
}

// Engine answers free-text questions against the accumulated transcript.
// It keeps no per-session state beyond reading snapshots, so concurrent
// questions are fully independent.
type Engine struct {
	store      *store.Store
	classifier Classifier
	cfg        config.QAConfig
	logger     logger.ILogger
}

func NewEngine(st *store.Store, classifier Classifier, cfg config.QAConfig, log logger.ILogger) *Engine {
	return &Engine{
		store:      st,
		classifier: classifier,
		cfg:        cfg,
		logger:     log,
	}
}

// Answer retrieves relevant excerpts and poses the question to the completion
// service. It never returns an error: failures come back as a fixed fallback
// answer with confidence 0.
func (e *Engine) Answer(ctx context.Context, meetingID, question string) Answer {
	if !e.cfg.Enabled {
		return Answer{Answer: fallbackUnavailable, Confidence: 0}
	}

	snap, err := e.store.Snapshot(meetingID)
	if err != nil {
		return Answer{Answer: fallbackThinContext, Confidence: 0}
	}

	excerpts := e.retrieve(snap, question)
	excerptsText := formatExcerpts(excerpts, excerptCharBudget)
	if len(strings.TrimSpace(excerptsText)) < e.cfg.MinContextChars {
		return Answer{Answer: fallbackThinContext, Confidence: 0}
	}

	res, err := e.classifier.AnswerQuestion(ctx, snap.Agenda, snap.CurrentTopic, question, excerptsText)
	if err != nil {
		e.logger.Warn("QAEngine", "Completion call failed, returning degraded answer", map[string]interface{}{
			"meeting_id": meetingID,
			"error":      err.Error(),
		})
		return Answer{Answer: fallbackUnavailable, Confidence: 0}
	}

	answer := strings.TrimSpace(res.Answer)
	if answer == "" {
		answer = "I don't have a clean answer yet based on what I've heard so far."
	}

	used := make([]string, 0, len(excerpts))
	for _, u := range excerpts {
		used = append(used, u.Speaker+": "+u.Text)
	}
	return Answer{Answer: answer, Confidence: res.Confidence, UsedExcerpts: used}
}

// retrieve selects the transcript excerpts most relevant to the question,
// chronologically ordered. Candidates come from the inverted index when it
// yields anything, otherwise from a full scan; when scoring finds nothing,
// the last few utterances stand in as context.
func (e *Engine) retrieve(snap *store.Snapshot, question string) []entity.Utterance {
	question = strings.TrimSpace(question)
	if question == "" || len(snap.Utterances) == 0 {
		return nil
	}

	history := snap.Utterances
	qt := utils.TokenSet(question)

	var candidates []int
	if len(qt) > 0 {
		seen := make(map[int]struct{})
		for tok := range qt {
			idxs := snap.Index[tok]
			if len(idxs) > indexCandidateCap {
				idxs = idxs[len(idxs)-indexCandidateCap:]
			}
			for _, i := range idxs {
				seen[i] = struct{}{}
			}
		}
		for i := range seen {
			if i >= 0 && i < len(history) {
				candidates = append(candidates, i)
			}
		}
		sort.Ints(candidates)
	}
	if len(candidates) == 0 {
		candidates = make([]int, len(history))
		for i := range history {
			candidates[i] = i
		}
	}

	type scored struct {
		score float64
		idx   int
	}
	ranked := make([]scored, 0, len(candidates))
	for _, i := range candidates {
		s := scoreUtterance(qt, question, history[i].Text)
		if s <= 0 {
			continue
		}
		ranked = append(ranked, scored{score: s, idx: i})
	}
	if len(ranked) == 0 {
		return tail(history, 10)
	}

	sort.Slice(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })

	keep := make(map[int]struct{})
	for _, r := range ranked {
		if len(keep) >= e.cfg.MaxExcerpts {
			break
		}
		if r.score < e.cfg.MinScore {
			continue
		}
		keep[r.idx] = struct{}{}
	}
	if len(keep) == 0 {
		return tail(history, 10)
	}

	// Back to chronological order for the prompt.
	out := make([]entity.Utterance, 0, len(keep))
	for i, u := range history {
		if _, ok := keep[i]; ok {
			out = append(out, u)
		}
	}
	return out
}

// scoreUtterance blends loose similarity with question-token coverage,
// keeping whichever signal is stronger.
func scoreUtterance(questionTokens map[string]struct{}, question, text string) float64 {
	ut := utils.TokenSet(text)
	base := 0.65*utils.Jaccard(questionTokens, ut) + 0.35*utils.BigramDice(question, text)

	if len(questionTokens) > 0 && len(ut) > 0 {
		inter := 0
		for tok := range questionTokens {
			if _, ok := ut[tok]; ok {
				inter++
			}
		}
		overlap := float64(inter) / float64(len(questionTokens))
		if overlap > base {
			base = overlap
		}
	}
	return base
}

func formatExcerpts(excerpts []entity.Utterance, maxChars int) string {
	lines := make([]string, 0, len(excerpts))
	for _, u := range excerpts {
		lines = append(lines, u.Speaker+": "+u.Text)
	}
	joined := strings.Join(lines, "\n")
	// Trim from the front until within budget; the most recent lines matter most.
	for len(lines) > 0 && len(joined) > maxChars {
		lines = lines[1:]
		joined = strings.Join(lines, "\n")
	}
	return joined
}

func tail(history []entity.Utterance, n int) []entity.Utterance {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
