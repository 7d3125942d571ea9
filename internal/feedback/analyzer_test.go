package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenWordSentence = "This is a simple test sentence with exactly ten words here."

func repeatSentence(s string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = s
	}
	return strings.Join(parts, " ")
}

type countingMetrics struct {
	mu        sync.Mutex
	analyses  int
	fallbacks int
	scores    []float64
}

func (m *countingMetrics) AnalysesInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses++
}

func (m *countingMetrics) AssignmentScoreObserve(score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores = append(m.scores, score)
}

func (m *countingMetrics) SentimentFallbackInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks++
}

type fixedSentiment struct {
	label Label
	p     float64
	err   error
	got   string
}

func (f *fixedSentiment) Classify(_ context.Context, text string) (Label, float64, error) {
	f.got = text
	return f.label, f.p, f.err
}

func TestAnalyze_PerfectScore(t *testing.T) {
	text := repeatSentence(tenWordSentence, 30)

	res := Analyze(text)

	assert.Equal(t, 330, res.WordCount)
	assert.Equal(t, 30, res.SentenceCount)
	assert.Equal(t, 11.0, res.AvgSentenceLength)
	assert.Equal(t, 0, res.GrammarIssueCount)
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, GrammarGoodFeedback, res.Feedback)
	assert.NotNil(t, res.Suggestions)
	assert.Empty(t, res.Suggestions)
	assert.Equal(t, NeutralSentiment, res.SentimentScore)
}

func TestAnalyze_ShortText(t *testing.T) {
	for _, text := range []string{"", "   ", "Too short.", "i  am not capitalised and short", strings.Repeat("x", 49) + "   "} {
		res := Analyze(text)
		assert.Equal(t, 0, res.Score, text)
		assert.Equal(t, ShortTextFeedback, res.Feedback)
		assert.Equal(t, ShortTextSuggestions, res.Suggestions)
		assert.Equal(t, len(strings.Fields(text)), res.WordCount)
		assert.Equal(t, 0, res.SentenceCount)
		assert.Equal(t, NeutralSentiment, res.SentimentScore)
	}

	res := Analyze(strings.Repeat("x", 50))
	assert.NotEqual(t, ShortTextFeedback, res.Feedback, "fifty characters is enough")
}

func TestAnalyze_ShortTextSkipsSentiment(t *testing.T) {
	s := &fixedSentiment{label: Positive, p: 0.9}
	res := NewAnalyzer(s, nil).Analyze(context.Background(), "short")
	assert.Equal(t, NeutralSentiment, res.SentimentScore)
	assert.Empty(t, s.got)
}

func TestAnalyze_Issues(t *testing.T) {
	text := "hello  there. this sentence is quite short. another one follows it here."

	res := Analyze(text)

	assert.Equal(t, 12, res.WordCount)
	assert.Equal(t, 3, res.SentenceCount)
	assert.Equal(t, 4.0, res.AvgSentenceLength)
	assert.Equal(t, 2, res.GrammarIssueCount)
	assert.Equal(t, 65, res.Score)
	assert.Equal(t,
		ExpandFeedback+" "+ShortSentenceFeedback+" Grammar suggestions: "+IssueDoubleSpace+", "+IssueCapitalStart,
		res.Feedback)
	assert.Equal(t, []string{SuggestEvidence, SuggestStructure, IssueDoubleSpace, IssueCapitalStart}, res.Suggestions)
}

func TestAnalyze_ThreeIssues(t *testing.T) {
	text := "then i said  hello to everyone in the room and then we all sat down together for a while"

	res := Analyze(text)

	assert.Equal(t, 3, res.GrammarIssueCount)
	assert.Contains(t, res.Feedback, "Grammar suggestions: "+IssueLowercaseI+", "+IssueDoubleSpace+", "+IssueCapitalStart)
	// Only the first two issues become suggestions.
	assert.Equal(t, []string{SuggestEvidence, SuggestStructure, IssueLowercaseI, IssueDoubleSpace}, res.Suggestions)
	assert.Equal(t, 50+0+15+0, res.Score)
}

func TestAnalyze_LongSentences(t *testing.T) {
	sentence := "Alpha" + strings.Repeat(" word", 39) + "."
	res := Analyze(repeatSentence(sentence, 15))
	assert.Equal(t, 600, res.WordCount)
	assert.Equal(t, 40.0, res.AvgSentenceLength)
	assert.Equal(t, ComprehensiveFeedback+" "+LongSentenceFeedback+" "+GrammarGoodFeedback, res.Feedback)
	assert.Equal(t, 50+20+5+15, res.Score)
}

func TestAnalyze_Deterministic(t *testing.T) {
	text := repeatSentence("Students who attend lectures regularly tend to do better in exams.", 12)
	assert.Equal(t, Analyze(text), Analyze(text))

	a := NewAnalyzer(nil, nil)
	assert.Equal(t, a.Analyze(context.Background(), text), a.Analyze(context.Background(), text))
	assert.Equal(t, Analyze(text), a.Analyze(context.Background(), text))
}

func TestAnalyze_WordCountMonotonic(t *testing.T) {
	sentence := "Alpha beta gamma delta epsilon zeta eta theta iota kappa."
	prev := 0
	for n := 5; n <= 30; n++ {
		res := Analyze(repeatSentence(sentence, n))
		require.Equal(t, 10*n, res.WordCount)
		require.Equal(t, 0, res.GrammarIssueCount)
		assert.GreaterOrEqual(t, res.Score, prev, "%d words", res.WordCount)
		prev = res.Score
	}
	assert.Equal(t, 100, prev)
}

func TestScore(t *testing.T) {
	tests := []struct {
		words  int
		avg    float64
		issues int
		want   int
	}{
		{50, 5, 3, 55},
		{99, 10, 0, 80},
		{100, 25, 1, 85},
		{199, 25.1, 2, 75},
		{200, 9.9, 0, 85},
		{299, 12, 4, 80},
		{300, 12, 0, 100},
		{10000, 12, 0, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Score(tt.words, tt.avg, tt.issues), "%+v", tt)
	}
}

func TestRules(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		text string
		want bool
	}{
		{"lowercase i", LowercaseI, "Then i went home.", true},
		{"whitelisted phrase anywhere", LowercaseI, "Then i went home. I am tired.", false},
		{"I will suppresses", LowercaseI, "Later i think I will sleep.", false},
		{"capital standalone I also matches", LowercaseI, "Then I went home.", true},
		{"no standalone i", LowercaseI, "It is fine.", false},
		{"double space", DoubleSpace, "Two  spaces.", true},
		{"single spaces", DoubleSpace, "One space each.", false},
		{"lowercase start", CapitalStart, "lowercase start.", true},
		{"leading whitespace", CapitalStart, " Leading space.", true},
		{"digit start", CapitalStart, "42 is the answer.", true},
		{"empty", CapitalStart, "", true},
		{"capital start", CapitalStart, "Capital start.", false},
		{"unicode capital", CapitalStart, "Élan vital.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue, found := tt.rule(tt.text)
			assert.Equal(t, tt.want, found)
			if !found {
				assert.Empty(t, issue)
			}
		})
	}

	assert.Nil(t, CheckGrammar("All good here."))
	assert.Equal(t, []string{IssueLowercaseI, IssueDoubleSpace, IssueCapitalStart}, CheckGrammar("so i  went"))
}

func TestAnalyzer_Sentiment(t *testing.T) {
	text := repeatSentence(tenWordSentence, 60)
	m := &countingMetrics{}

	pos := &fixedSentiment{label: Positive, p: 0.876}
	res := NewAnalyzer(pos, m).Analyze(context.Background(), text)
	assert.Equal(t, 0.88, res.SentimentScore)
	assert.Equal(t, SentimentInputLimit, utf8.RuneCountInString(pos.got))
	assert.True(t, strings.HasPrefix(text, pos.got))

	neg := &fixedSentiment{label: Negative, p: 0.9}
	res = NewAnalyzer(neg, m).Analyze(context.Background(), text)
	assert.InDelta(t, 0.1, res.SentimentScore, 1e-9)

	failing := &fixedSentiment{err: errors.New("boom")}
	res = NewAnalyzer(failing, m).Analyze(context.Background(), text)
	assert.Equal(t, NeutralSentiment, res.SentimentScore)
	assert.Equal(t, 100, res.Score)

	assert.Equal(t, 3, m.analyses)
	assert.Equal(t, 1, m.fallbacks)
	assert.Equal(t, []float64{100, 100, 100}, m.scores)
}

func TestNeutral(t *testing.T) {
	_, _, err := Neutral{}.Classify(context.Background(), "anything")
	assert.True(t, errors.Is(err, ErrSentimentUnavailable))

	m := &countingMetrics{}
	res := NewAnalyzer(Neutral{}, m).Analyze(context.Background(), repeatSentence(tenWordSentence, 30))
	assert.Equal(t, NeutralSentiment, res.SentimentScore)
	assert.Equal(t, 1, m.fallbacks)
}

func TestHTTPSentiment(t *testing.T) {
	var mu sync.Mutex
	var gotAuth, gotInput string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Inputs string `json:"inputs"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		gotInput = body.Inputs
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(body.Inputs, "fail") {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"model is loading"}`))
			return
		}
		_, _ = w.Write([]byte(`[[{"label":"NEGATIVE","score":0.25},{"label":"POSITIVE","score":0.75}]]`))
	}))
	defer server.Close()

	client := NewHTTPSentiment(server.URL, "secret", time.Second)

	label, p, err := client.Classify(context.Background(), "I liked it")
	require.NoError(t, err)
	assert.Equal(t, Positive, label)
	assert.Equal(t, 0.75, p)
	mu.Lock()
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "I liked it", gotInput)
	mu.Unlock()

	_, _, err = client.Classify(context.Background(), "please fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model is loading")

	m := &countingMetrics{}
	res := NewAnalyzer(client, m).Analyze(context.Background(), "This will fail. "+repeatSentence(tenWordSentence, 30))
	assert.Equal(t, NeutralSentiment, res.SentimentScore)
	assert.Equal(t, 1, m.fallbacks)
}

func TestParseScores(t *testing.T) {
	label, p, err := parseScores([]byte(`[{"label":"negative","score":0.6},{"label":"positive","score":0.4}]`))
	require.NoError(t, err)
	assert.Equal(t, Negative, label)
	assert.Equal(t, 0.6, p)

	for _, body := range []string{`[]`, `{}`, `not json`, `[{"label":"NEUTRAL","score":0.9}]`, `[{"label":"POSITIVE","score":1.5}]`} {
		_, _, err := parseScores([]byte(body))
		assert.Error(t, err, body)
	}
}
