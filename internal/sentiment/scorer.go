// Package sentiment scores article texts with a small financial-news lexicon.
// Scoring is pure and deterministic; no I/O.
package sentiment

import "strings"

var positive = map[string]struct{}{
	"gain": {}, "gains": {}, "surge": {}, "surges": {}, "rally": {}, "rallies": {},
	"beat": {}, "beats": {}, "upgrade": {}, "upgraded": {}, "bullish": {},
	"record": {}, "growth": {}, "strong": {}, "profit": {}, "profits": {},
	"jump": {}, "jumps": {}, "soar": {}, "soars": {}, "outperform": {},
	"buy": {}, "dividend": {}, "expansion": {}, "exceeds": {}, "rise": {}, "rises": {},
}

var negative = map[string]struct{}{
	"loss": {}, "losses": {}, "plunge": {}, "plunges": {}, "drop": {}, "drops": {},
	"miss": {}, "misses": {}, "downgrade": {}, "downgraded": {}, "bearish": {},
	"weak": {}, "decline": {}, "declines": {}, "lawsuit": {}, "recall": {},
	"fall": {}, "falls": {}, "slump": {}, "slumps": {}, "underperform": {},
	"sell": {}, "bankruptcy": {}, "fraud": {}, "layoffs": {}, "warning": {},
}

// Scorer scores text sentiment in [-1, 1].
type Scorer struct{}

// NewScorer creates a new lexicon scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score returns the aggregate sentiment of the given texts: the signed
// fraction of sentiment-bearing tokens, positive minus negative, over all
// matched tokens. Texts with no lexicon hits score 0.
func (s *Scorer) Score(texts []string) float64 {
	var pos, neg int

	for _, text := range texts {
		for _, token := range tokenize(text) {
			if _, ok := positive[token]; ok {
				pos++
				continue
			}
			if _, ok := negative[token]; ok {
				neg++
			}
		}
	}

	total := pos + neg
	if total == 0 {
		return 0
	}

	return float64(pos-neg) / float64(total)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}
