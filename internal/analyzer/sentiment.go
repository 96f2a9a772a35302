package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SentimentNeutral is the degraded verdict used when the service fails.
const SentimentNeutral = "нейтральная"

// Verdict is the sentiment service's answer for one text: a label over
// {крайне отрицательная, негативная, нейтральная, положительная, крайне
// положительная} and a confidence percentage in [0,100]. Extreme-label
// thresholds are the service's policy, not ours.
type Verdict struct {
	Label      string `json:"label"`
	Confidence int    `json:"confidence"`
}

// SentimentClient calls the sentiment sidecar with plain text in, a small
// verdict out. It is treated as an opaque collaborator.
type SentimentClient struct {
	baseURL string
	client  *http.Client
}

func NewSentimentClient(baseURL string, timeout time.Duration) *SentimentClient {
	return &SentimentClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type sentimentRequest struct {
	Text string `json:"text"`
}

// Analyze returns the service's verdict. Any transport or decode failure
// degrades to a neutral verdict with zero confidence and a non-nil error so
// callers can log without aborting the analysis.
func (c *SentimentClient) Analyze(ctx context.Context, text string) (Verdict, error) {
	neutral := Verdict{Label: SentimentNeutral, Confidence: 0}

	body, err := json.Marshal(sentimentRequest{Text: text})
	if err != nil {
		return neutral, fmt.Errorf("failed to encode sentiment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return neutral, fmt.Errorf("failed to build sentiment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return neutral, fmt.Errorf("sentiment request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return neutral, fmt.Errorf("sentiment service returned %d", resp.StatusCode)
	}

	var verdict Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return neutral, fmt.Errorf("failed to decode sentiment response: %w", err)
	}

	if verdict.Label == "" {
		verdict.Label = SentimentNeutral
	}
	if verdict.Confidence < 0 {
		verdict.Confidence = 0
	}
	if verdict.Confidence > 100 {
		verdict.Confidence = 100
	}

	return verdict, nil
}
