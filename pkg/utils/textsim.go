package utils

import "strings"

// Minimal stopword set for the transcript index and lightweight scoring.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "so": {},
	"to": {}, "of": {}, "in": {}, "on": {}, "for": {}, "with": {}, "at": {},
	"by": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"being": {}, "it": {}, "this": {}, "that": {}, "we": {}, "you": {}, "i": {},
	"they": {}, "he": {}, "she": {}, "them": {}, "us": {}, "our": {}, "your": {},
	"my": {}, "me": {}, "as": {}, "from": {}, "into": {}, "about": {}, "can": {},
	"could": {}, "should": {}, "would": {}, "will": {}, "just": {}, "like": {},
}

// Tokenize lowercases, splits on non-alphanumerics, and drops stopwords and
// tokens shorter than three characters.
func Tokenize(s string) []string {
	s = strings.ToLower(s)
	var out []string
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		tok := b.String()
		b.Reset()
		if len(tok) <= 2 {
			return
		}
		if _, stop := stopwords[tok]; stop {
			return
		}
		out = append(out, tok)
	}
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return out
}

// TokenSet is Tokenize deduplicated into a set.
func TokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(s) {
		set[tok] = struct{}{}
	}
	return set
}

// Jaccard is intersection-over-union of two token sets.
func Jaccard(ta, tb map[string]struct{}) float64 {
	if len(ta) == 0 && len(tb) == 0 {
		return 0.0
	}
	inter := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union < 1 {
		union = 1
	}
	return float64(inter) / float64(union)
}

// BigramDice is Dice's coefficient over character bigram multisets, a cheap
// stand-in for sequence similarity on short labels.
func BigramDice(a, b string) float64 {
	ba := bigrams(strings.ToLower(a))
	bb := bigrams(strings.ToLower(b))
	if len(ba) == 0 || len(bb) == 0 {
		return 0.0
	}
	inter := 0
	totalA, totalB := 0, 0
	for g, n := range ba {
		totalA += n
		if m, ok := bb[g]; ok {
			if m < n {
				inter += m
			} else {
				inter += n
			}
		}
	}
	for _, n := range bb {
		totalB += n
	}
	return 2.0 * float64(inter) / float64(totalA+totalB)
}

func bigrams(s string) map[string]int {
	runes := []rune(s)
	out := make(map[string]int)
	for i := 0; i+1 < len(runes); i++ {
		out[string(runes[i:i+2])]++
	}
	return out
}
