package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Tokens shorter than this never make the cloud.
const minTokenLength = 3

// stopWords are filtered from word clouds and lexicon scoring.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "his": {}, "has": {}, "have": {},
	"this": {}, "that": {}, "with": {}, "they": {}, "from": {}, "were": {},
	"been": {}, "will": {}, "would": {}, "could": {}, "should": {},
	"there": {}, "their": {}, "about": {}, "which": {}, "when": {},
	"what": {}, "more": {}, "some": {}, "very": {}, "just": {}, "than": {},
	"then": {}, "them": {}, "these": {}, "also": {}, "into": {}, "only": {},
	"because": {}, "really": {}, "much": {}, "many": {}, "most": {},
	"other": {}, "such": {}, "like": {}, "feel": {}, "think": {},
}

// Tokenize splits free text into lowercase ASCII terms suitable for word
// clouds: accents decomposed and stripped, punctuation discarded, stop words
// and short tokens dropped.
func Tokenize(text string) []string {
	// Decompose accented characters, then drop anything non-ASCII.
	decomposed := norm.NFKD.String(text)
	cleaned := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		if unicode.IsLetter(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, decomposed)

	fields := strings.Fields(cleaned)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < minTokenLength {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
