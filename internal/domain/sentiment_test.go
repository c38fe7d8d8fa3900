package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  SentimentLabel
	}{
		{"strongly positive", 1.0, SentimentPositive},
		{"band boundary positive", 0.15, SentimentPositive},
		{"just inside band", 0.14, SentimentNeutral},
		{"zero", 0, SentimentNeutral},
		{"just inside band negative", -0.14, SentimentNeutral},
		{"band boundary negative", -0.15, SentimentNegative},
		{"strongly negative", -1.0, SentimentNegative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.score))
		})
	}
}

func TestScaleScore(t *testing.T) {
	tests := []struct {
		name string
		idx  int
		n    int
		want float64
	}{
		{"five point low", 0, 5, -1},
		{"five point below middle", 1, 5, -0.5},
		{"five point middle", 2, 5, 0},
		{"five point above middle", 3, 5, 0.5},
		{"five point high", 4, 5, 1},
		{"two point low", 0, 2, -1},
		{"two point high", 1, 2, 1},
		{"single option", 0, 1, 0},
		{"empty scale", 0, 0, 0},
		{"index clamped low", -3, 5, -1},
		{"index clamped high", 9, 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ScaleScore(tt.idx, tt.n), 1e-9)
		})
	}
}

func TestLexiconScorer(t *testing.T) {
	scorer := NewLexiconScorer()

	tests := []struct {
		name string
		text string
		want float64
	}{
		{"all positive", "great team, love the growth here", 1},
		{"all negative", "stressed and overworked, total burnout", -1},
		{"balanced", "good pay but toxic culture", 0},
		{"no lexicon hits", "the quarterly numbers arrived", 0},
		{"mostly positive", "happy happy happy but stressed", 0.5},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scorer.Score(tt.text), 1e-9)
		})
	}
}

func TestAnswerSentiment(t *testing.T) {
	scorer := NewLexiconScorer()
	likert := &Question{ID: "q1", Type: QuestionLikert, Options: []string{"Bad", "OK", "Good"}}
	choice := &Question{ID: "q2", Type: QuestionMultipleChoice, Options: []string{"Remote", "Office"}}
	open := &Question{ID: "q3", Type: QuestionOpenText}

	score, ok := answerSentiment(Answer{QuestionID: "q1", OptionIndex: intPtr(2)}, likert, scorer)
	assert.True(t, ok)
	assert.InDelta(t, 1, score, 1e-9)

	// Unordered choices carry no sentiment.
	_, ok = answerSentiment(Answer{QuestionID: "q2", OptionIndex: intPtr(0)}, choice, scorer)
	assert.False(t, ok)

	score, ok = answerSentiment(Answer{QuestionID: "q3", FreeText: "feeling valued and supported"}, open, scorer)
	assert.True(t, ok)
	assert.InDelta(t, 1, score, 1e-9)

	// Empty answers score nothing.
	_, ok = answerSentiment(Answer{QuestionID: "q3"}, open, scorer)
	assert.False(t, ok)
}
