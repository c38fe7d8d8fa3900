package domain

import (
	"sort"
	"time"
)

const (
	// maxTrackedTerms bounds word-cloud memory per session.
	maxTrackedTerms = 200
	// wordCloudSize is the number of terms exposed to viewers.
	wordCloudSize = 50
	// topThemeCount bounds the extracted theme list.
	topThemeCount = 5
	// themeMinWeight filters one-off words out of the theme list.
	themeMinWeight = 2
)

// SentimentCounts are the running classification tallies. Stored instead of
// percentages so every update is an O(1) increment, order-independent.
type SentimentCounts struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

func (c SentimentCounts) total() int {
	return c.Positive + c.Neutral + c.Negative
}

// SentimentDistribution is the read view: percentages summing to 100,
// or all zero when nothing sentiment-bearing has arrived.
type SentimentDistribution struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

// TermWeight is one word-cloud entry.
type TermWeight struct {
	Term   string `json:"term"`
	Weight int    `json:"weight"`
}

// LiveResults is the materialized aggregation of a session's responses.
// Created empty at session creation, updated by every accepted response
// through Apply, frozen once the session reaches a terminal status.
//
// All stored fields are running counts or sums, so Apply is a commutative,
// associative merge: any arrival order of the same responses produces the
// same snapshot. Percentages are derived on read, never stored.
type LiveResults struct {
	ResponseCount     int                `json:"response_count"`
	ParticipationRate float64            `json:"participation_rate"`
	EngagementLevel   EngagementLevel    `json:"engagement_level"`
	Distribution      map[string][]int   `json:"response_distribution"`
	Sentiment         SentimentCounts    `json:"sentiment_counts"`
	SentimentScoreSum float64            `json:"sentiment_score_sum"`
	SentimentScore    float64            `json:"sentiment_score"`
	TopThemes         []string           `json:"top_themes"`
	WordWeights       map[string]int     `json:"word_weights,omitempty"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// NewLiveResults creates an empty snapshot.
func NewLiveResults() *LiveResults {
	return &LiveResults{
		Distribution:    make(map[string][]int),
		WordWeights:     make(map[string]int),
		EngagementLevel: EngagementLow,
	}
}

// Apply merges one validated response into the snapshot. The caller is
// responsible for serializing Apply calls per session (or running them inside
// a single store transaction); Apply itself does no locking.
func (lr *LiveResults) Apply(resp *Response, mc *Microclimate, scorer SentimentScorer, th EngagementThresholds) {
	if lr.Distribution == nil {
		lr.Distribution = make(map[string][]int)
	}
	if lr.WordWeights == nil {
		lr.WordWeights = make(map[string]int)
	}

	for _, ans := range resp.Answers {
		q := mc.Question(ans.QuestionID)
		if q == nil {
			continue
		}

		if ans.OptionIndex != nil && q.Type.HasOptions() {
			lr.countOption(q, *ans.OptionIndex)
		}

		if mc.Settings.SentimentEnabled {
			if score, ok := answerSentiment(ans, q, scorer); ok {
				lr.recordSentiment(score)
			}
		}

		if mc.Settings.WordCloudEnabled && ans.FreeText != "" {
			for _, term := range Tokenize(ans.FreeText) {
				lr.WordWeights[term]++
			}
		}
	}

	lr.ResponseCount++
	lr.ParticipationRate = participationRate(lr.ResponseCount, mc.TargetParticipantCount)
	lr.EngagementLevel = EngagementFor(lr.ParticipationRate, mc.Settings.ParticipationThreshold, th)

	if mc.Settings.WordCloudEnabled {
		lr.pruneTerms()
		lr.TopThemes = lr.extractThemes()
	}

	lr.UpdatedAt = resp.SubmittedAt
}

// countOption grows the per-question counter slice as needed and increments.
func (lr *LiveResults) countOption(q *Question, idx int) {
	if idx < 0 || idx >= len(q.Options) {
		return
	}
	counts := lr.Distribution[q.ID]
	if len(counts) < len(q.Options) {
		grown := make([]int, len(q.Options))
		copy(grown, counts)
		counts = grown
	}
	counts[idx]++
	lr.Distribution[q.ID] = counts
}

// recordSentiment folds one answer's score into the running aggregate.
// The average stays O(1) per response: a sum and a count, never a replay.
func (lr *LiveResults) recordSentiment(score float64) {
	switch Classify(score) {
	case SentimentPositive:
		lr.Sentiment.Positive++
	case SentimentNegative:
		lr.Sentiment.Negative++
	default:
		lr.Sentiment.Neutral++
	}
	lr.SentimentScoreSum += score
	lr.SentimentScore = lr.SentimentScoreSum / float64(lr.Sentiment.total())
}

// SentimentDistribution derives the percentage view on read.
func (lr *LiveResults) SentimentDistribution() SentimentDistribution {
	total := lr.Sentiment.total()
	if total == 0 {
		return SentimentDistribution{}
	}
	return SentimentDistribution{
		Positive: float64(lr.Sentiment.Positive) / float64(total) * 100,
		Neutral:  float64(lr.Sentiment.Neutral) / float64(total) * 100,
		Negative: float64(lr.Sentiment.Negative) / float64(total) * 100,
	}
}

// OptionPercentages derives per-option percentages for a question on read,
// against the overall response count (every respondent answers the full set).
func (lr *LiveResults) OptionPercentages(questionID string) []float64 {
	counts := lr.Distribution[questionID]
	out := make([]float64, len(counts))
	if lr.ResponseCount == 0 {
		return out
	}
	for i, c := range counts {
		out[i] = float64(c) / float64(lr.ResponseCount) * 100
	}
	return out
}

// WordCloud returns the top terms by weight, bounded to wordCloudSize.
func (lr *LiveResults) WordCloud() []TermWeight {
	return lr.topTerms(wordCloudSize, 1)
}

func (lr *LiveResults) topTerms(k, minWeight int) []TermWeight {
	terms := make([]TermWeight, 0, len(lr.WordWeights))
	for term, weight := range lr.WordWeights {
		if weight >= minWeight {
			terms = append(terms, TermWeight{Term: term, Weight: weight})
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Weight != terms[j].Weight {
			return terms[i].Weight > terms[j].Weight
		}
		return terms[i].Term < terms[j].Term
	})
	if len(terms) > k {
		terms = terms[:k]
	}
	return terms
}

// pruneTerms keeps tracked vocabulary bounded by dropping the lightest terms.
func (lr *LiveResults) pruneTerms() {
	if len(lr.WordWeights) <= maxTrackedTerms {
		return
	}
	keep := lr.topTerms(maxTrackedTerms, 1)
	pruned := make(map[string]int, len(keep))
	for _, tw := range keep {
		pruned[tw.Term] = tw.Weight
	}
	lr.WordWeights = pruned
}

func (lr *LiveResults) extractThemes() []string {
	top := lr.topTerms(topThemeCount, themeMinWeight)
	themes := make([]string, len(top))
	for i, tw := range top {
		themes[i] = tw.Term
	}
	return themes
}

// participationRate clamps to [0, 100] and is zero for an unknown target.
func participationRate(count, target int) float64 {
	if target <= 0 {
		return 0
	}
	rate := float64(count) / float64(target) * 100
	if rate > 100 {
		return 100
	}
	return rate
}
