package domain

import "strings"

// SentimentLabel classifies one answer's emotional lean.
type SentimentLabel string

// Sentiment labels.
const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// Classification band: scores within (-0.15, 0.15) read as neutral.
const neutralBand = 0.15

// Classify maps a score in [-1, 1] onto a label.
func Classify(score float64) SentimentLabel {
	switch {
	case score >= neutralBand:
		return SentimentPositive
	case score <= -neutralBand:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// SentimentScorer scores free text in [-1, 1]. Pluggable so deployments can
// swap the built-in lexicon for an external NLP service.
type SentimentScorer interface {
	Score(text string) float64
}

// answerSentiment extracts a sentiment score from one answer, if it carries
// any. Free text goes through the scorer; ordered scales (likert, rating)
// map option position linearly onto [-1, 1].
func answerSentiment(ans Answer, q *Question, scorer SentimentScorer) (float64, bool) {
	if ans.FreeText != "" && scorer != nil {
		return scorer.Score(ans.FreeText), true
	}
	if ans.OptionIndex != nil && q.Type.OrderedScale() {
		return ScaleScore(*ans.OptionIndex, len(q.Options)), true
	}
	return 0, false
}

// ScaleScore maps option position to [-1, 1]: first option -1, last +1.
// A single-option scale is neutral.
func ScaleScore(idx, numOptions int) float64 {
	if numOptions <= 1 {
		return 0
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= numOptions {
		idx = numOptions - 1
	}
	return -1 + 2*float64(idx)/float64(numOptions-1)
}

// LexiconScorer is the built-in scorer: a small workplace-climate lexicon,
// counting hits per token. Crude, but deterministic and dependency-free;
// richer scoring plugs in through SentimentScorer.
type LexiconScorer struct {
	positive map[string]struct{}
	negative map[string]struct{}
}

// NewLexiconScorer creates the default lexicon scorer.
func NewLexiconScorer() *LexiconScorer {
	return &LexiconScorer{
		positive: toSet(positiveWords),
		negative: toSet(negativeWords),
	}
}

// Score returns the normalized lexicon balance of the text in [-1, 1].
func (s *LexiconScorer) Score(text string) float64 {
	var pos, neg int
	for _, token := range Tokenize(text) {
		if _, ok := s.positive[token]; ok {
			pos++
			continue
		}
		if _, ok := s.negative[token]; ok {
			neg++
		}
	}
	total := pos + neg
	if total == 0 {
		return 0
	}
	return float64(pos-neg) / float64(total)
}

var positiveWords = []string{
	"good", "great", "excellent", "happy", "love", "enjoy", "motivated",
	"supported", "appreciated", "valued", "excited", "positive", "helpful",
	"clear", "fair", "trust", "respect", "proud", "growth", "opportunity",
	"balanced", "flexible", "recognized", "collaborative", "improving",
}

var negativeWords = []string{
	"bad", "poor", "terrible", "unhappy", "hate", "frustrated", "stressed",
	"overworked", "ignored", "undervalued", "burnout", "negative", "unclear",
	"unfair", "distrust", "disrespect", "toxic", "stagnant", "blocked",
	"overwhelmed", "rigid", "micromanaged", "isolated", "churn", "worse",
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}
