// Package feedback scores free-text assignment submissions with a set of
// additive heuristics and an optional sentiment signal.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

const (
	// MinTextLength is the trimmed length, in characters, below which text
	// is not analysed.
	MinTextLength = 50
	// SentimentInputLimit caps the characters sent to the sentiment
	// classifier.
	SentimentInputLimit = 512
	// NeutralSentiment is reported when no classifier result is available.
	NeutralSentiment = 0.5
)

// Fixed feedback and suggestion strings.
const (
	ShortTextFeedback     = "Text too short to analyze. Please provide more content."
	FallbackFeedback      = "Good work overall!"
	ExpandFeedback        = "Consider expanding your response with more details."
	ComprehensiveFeedback = "Good length! Your response is comprehensive."
	ShortSentenceFeedback = "Try using more complex sentences to improve flow."
	LongSentenceFeedback  = "Some sentences are quite long. Consider breaking them up."
	GrammarGoodFeedback   = "Grammar looks good!"

	SuggestEvidence  = "Add more supporting evidence"
	SuggestStructure = "Improve sentence structure"
)

// ShortTextSuggestions are returned for text below MinTextLength.
var ShortTextSuggestions = []string{"Add more detailed explanation", "Expand your arguments"}

// Analysis is the result of scoring one submission.
type Analysis struct {
	WordCount         int      `json:"word_count"`
	SentenceCount     int      `json:"sentence_count"`
	AvgSentenceLength float64  `json:"avg_sentence_length"`
	GrammarIssueCount int      `json:"grammar_issue_count"`
	Score             int      `json:"score"`
	Feedback          string   `json:"feedback"`
	Suggestions       []string `json:"suggestions"`
	SentimentScore    float64  `json:"sentiment_score"`
}

// MetricsInterface is the subset of metrics the analyzer reports.
type MetricsInterface interface {
	AnalysesInc()
	AssignmentScoreObserve(score float64)
	SentimentFallbackInc()
}

// Analyzer combines the text heuristics with a sentiment classifier.
type Analyzer struct {
	sentiment Sentiment
	metrics   MetricsInterface
	timeout   time.Duration
}

// NewAnalyzer returns an analyzer. A nil sentiment uses Neutral; metrics may
// be nil.
func NewAnalyzer(sentiment Sentiment, metrics MetricsInterface) *Analyzer {
	if sentiment == nil {
		sentiment = Neutral{}
	}
	return &Analyzer{sentiment: sentiment, metrics: metrics}
}

// WithTimeout bounds each sentiment call.
func (a *Analyzer) WithTimeout(d time.Duration) *Analyzer {
	a.timeout = d
	return a
}

// Analyze scores text. Sentiment failures never surface as errors; the
// neutral score is used instead.
func (a *Analyzer) Analyze(ctx context.Context, text string) Analysis {
	res, scored := analyzeText(text)
	if scored {
		res.SentimentScore = roundTo(a.sentimentScore(ctx, text), 2)
	}

	if a.metrics != nil {
		a.metrics.AnalysesInc()
		a.metrics.AssignmentScoreObserve(float64(res.Score))
	}
	return res
}

func (a *Analyzer) sentimentScore(ctx context.Context, text string) float64 {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	label, p, err := a.sentiment.Classify(ctx, truncate(text, SentimentInputLimit))
	if err != nil {
		if !errors.Is(err, ErrSentimentUnavailable) {
			log.Debug().Err(err).Msg("Sentiment classification failed, using neutral score")
		}
		if a.metrics != nil {
			a.metrics.SentimentFallbackInc()
		}
		return NeutralSentiment
	}
	if label == Positive {
		return p
	}
	return 1 - p
}

// Analyze scores text without a sentiment classifier. The result is a pure
// function of text.
func Analyze(text string) Analysis {
	res, scored := analyzeText(text)
	if scored {
		res.SentimentScore = NeutralSentiment
	}
	return res
}

// analyzeText computes every field except the sentiment score. The second
// return is false for text below MinTextLength.
func analyzeText(text string) (Analysis, bool) {
	words := len(strings.Fields(text))

	if utf8.RuneCountInString(strings.TrimSpace(text)) < MinTextLength {
		return Analysis{
			WordCount:      words,
			Feedback:       ShortTextFeedback,
			Suggestions:    append([]string(nil), ShortTextSuggestions...),
			SentimentScore: NeutralSentiment,
		}, false
	}

	sentences := countSentences(text)
	avg := float64(words) / float64(max(sentences, 1))
	issues := CheckGrammar(text)

	score := Score(words, avg, len(issues))

	return Analysis{
		WordCount:         words,
		SentenceCount:     sentences,
		AvgSentenceLength: roundTo(avg, 1),
		GrammarIssueCount: len(issues),
		Score:             score,
		Feedback:          composeFeedback(words, avg, issues),
		Suggestions:       suggestions(score, issues),
	}, true
}

func countSentences(text string) int {
	n := 0
	for _, s := range strings.Split(text, ".") {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	return n
}

// Score applies the additive rubric: a base of 50, up to 20 for length, 15
// or 5 for sentence structure and up to 15 for grammar.
func Score(words int, avgSentenceLength float64, issues int) int {
	score := 50

	switch {
	case words >= 300:
		score += 20
	case words >= 200:
		score += 15
	case words >= 100:
		score += 10
	}

	if avgSentenceLength >= 10 && avgSentenceLength <= 25 {
		score += 15
	} else {
		score += 5
	}

	switch {
	case issues == 0:
		score += 15
	case issues <= 2:
		score += 10
	}

	return min(max(score, 0), 100)
}

func composeFeedback(words int, avg float64, issues []string) string {
	var parts []string

	switch {
	case words < 150:
		parts = append(parts, ExpandFeedback)
	case words > 500:
		parts = append(parts, ComprehensiveFeedback)
	}

	switch {
	case avg < 10:
		parts = append(parts, ShortSentenceFeedback)
	case avg > 30:
		parts = append(parts, LongSentenceFeedback)
	}

	if len(issues) > 0 {
		parts = append(parts, fmt.Sprintf("Grammar suggestions: %s", strings.Join(issues[:min(len(issues), 3)], ", ")))
	} else {
		parts = append(parts, GrammarGoodFeedback)
	}

	if len(parts) == 0 {
		return FallbackFeedback
	}
	return strings.Join(parts, " ")
}

func suggestions(score int, issues []string) []string {
	out := []string{}
	if score < 70 {
		out = append(out, SuggestEvidence, SuggestStructure)
	}
	return append(out, issues[:min(len(issues), 2)]...)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
