package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Label is a sentiment class.
type Label string

const (
	Positive Label = "POSITIVE"
	Negative Label = "NEGATIVE"
)

// ErrSentimentUnavailable is returned by a classifier that cannot run.
var ErrSentimentUnavailable = errors.New("sentiment classifier unavailable")

// Sentiment classifies text as positive or negative with a probability for
// the returned label.
type Sentiment interface {
	Classify(ctx context.Context, text string) (Label, float64, error)
}

// Neutral is the classifier used when none is configured. It always reports
// itself unavailable so callers fall back to the neutral score.
type Neutral struct{}

func (Neutral) Classify(context.Context, string) (Label, float64, error) {
	return "", 0, ErrSentimentUnavailable
}

// HTTPSentiment calls a hosted text-classification endpoint that accepts
// {"inputs": text} and answers with label/score pairs.
type HTTPSentiment struct {
	url   string
	token string
	rest  *resty.Client
}

// NewHTTPSentiment creates a client for url. token is sent as a bearer token
// when non-empty.
func NewHTTPSentiment(url, token string, timeout time.Duration) *HTTPSentiment {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	return &HTTPSentiment{url: url, token: token, rest: r}
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type errorResp struct {
	Error string `json:"error"`
}

func (h *HTTPSentiment) Classify(ctx context.Context, text string) (Label, float64, error) {
	req := h.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"inputs": text})
	if h.token != "" {
		req.SetAuthToken(h.token)
	}

	resp, err := req.Post(h.url)
	if err != nil {
		return "", 0, fmt.Errorf("sentiment request: %w", err)
	}
	if resp.IsError() {
		var e errorResp
		if json.Unmarshal(resp.Body(), &e) == nil && e.Error != "" {
			return "", 0, fmt.Errorf("sentiment: %d %s", resp.StatusCode(), e.Error)
		}
		return "", 0, fmt.Errorf("sentiment: unexpected status %d", resp.StatusCode())
	}

	return parseScores(resp.Body())
}

// parseScores accepts either [{label,score},...] or [[{label,score},...]]
// and returns the highest scoring label.
func parseScores(body []byte) (Label, float64, error) {
	var flat []labelScore
	if err := json.Unmarshal(body, &flat); err != nil {
		var nested [][]labelScore
		if err := json.Unmarshal(body, &nested); err != nil {
			return "", 0, fmt.Errorf("decode sentiment response: %w", err)
		}
		for _, inner := range nested {
			flat = append(flat, inner...)
		}
	}
	if len(flat) == 0 {
		return "", 0, fmt.Errorf("empty sentiment response")
	}

	best := flat[0]
	for _, ls := range flat[1:] {
		if ls.Score > best.Score {
			best = ls
		}
	}

	label := Label(strings.ToUpper(best.Label))
	if label != Positive && label != Negative {
		return "", 0, fmt.Errorf("unknown sentiment label %q", best.Label)
	}
	if best.Score < 0 || best.Score > 1 {
		return "", 0, fmt.Errorf("sentiment score %v out of range", best.Score)
	}
	return label, best.Score, nil
}
