package analyzer

import (
	"strings"

	"meeting-moderator-be/internal/entity"
	"meeting-moderator-be/pkg/utils"
)

// TopicSimilarity returns a score in [0,1]; higher means more similar. It
// blends token overlap (robust for short labels) with character bigram
// overlap (helps when topics are phrased similarly), weighted toward tokens.
func TopicSimilarity(a, b string) float64 {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	jaccard := utils.Jaccard(utils.TokenSet(a), utils.TokenSet(b))
	dice := utils.BigramDice(a, b)

	return 0.6*jaccard + 0.4*dice
}

// FormatWindow renders utterances as "Speaker: text" lines, most recent last,
// the shape every classifier prompt expects.
func FormatWindow(utterances []entity.Utterance) string {
	lines := make([]string, 0, len(utterances))
	for _, u := range utterances {
		lines = append(lines, u.Speaker+": "+u.Text)
	}
	return strings.Join(lines, "\n")
}
