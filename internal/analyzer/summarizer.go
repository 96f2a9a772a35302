package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// SummaryFallback is the literal returned when no summary could be produced.
const SummaryFallback = "Не удалось сформировать описание."

// sentenceCaps bounds summary length per category. The service applies its
// own cap; this one is a guard against over-long answers slipping through.
var sentenceCaps = map[string]int{
	"Достоинства": 4,
	"Недостатки":  3,
}

var (
	listPrefixRe = regexp.MustCompile(`\d+\.\s*`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	sentenceRe   = regexp.MustCompile(`[^.!?]*[.!?]`)
)

// SummarizerClient calls the summarization sidecar. The category selects the
// service's prompt template and sentence budget.
type SummarizerClient struct {
	baseURL string
	client  *http.Client
}

func NewSummarizerClient(baseURL string, timeout time.Duration) *SummarizerClient {
	return &SummarizerClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type summarizeRequest struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

// Summarize returns a short per-category summary, or SummaryFallback with a
// non-nil error when the service fails.
func (c *SummarizerClient) Summarize(ctx context.Context, text, category string) (string, error) {
	body, err := json.Marshal(summarizeRequest{Text: text, Category: category})
	if err != nil {
		return SummaryFallback, fmt.Errorf("failed to encode summarize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/summarize", bytes.NewReader(body))
	if err != nil {
		return SummaryFallback, fmt.Errorf("failed to build summarize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return SummaryFallback, fmt.Errorf("summarize request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return SummaryFallback, fmt.Errorf("summarizer service returned %d", resp.StatusCode)
	}

	var out summarizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return SummaryFallback, fmt.Errorf("failed to decode summarize response: %w", err)
	}

	summary := sanitizeSummary(out.Summary, category)
	if summary == "" {
		return SummaryFallback, nil
	}

	return summary, nil
}

// sanitizeSummary strips numbered-list prefixes, collapses whitespace and
// caps the sentence count for the category.
func sanitizeSummary(summary, category string) string {
	summary = listPrefixRe.ReplaceAllString(summary, "")
	summary = whitespaceRe.ReplaceAllString(summary, " ")
	summary = strings.TrimSpace(summary)

	maxSentences, ok := sentenceCaps[category]
	if !ok {
		return summary
	}

	sentences := sentenceRe.FindAllString(summary, -1)
	if len(sentences) == 0 {
		// No terminal punctuation at all; keep the text rather than drop it.
		return summary
	}

	if len(sentences) > maxSentences {
		sentences = sentences[:maxSentences]
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}
	return strings.Join(sentences, " ")
}
