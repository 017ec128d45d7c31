package sentiment

import (
	"context"
	"fmt"
	"strings"

	"callqa/internal/services"
	"callqa/internal/services/llm"
)

// Completer issues one chat completion.
type Completer interface {
	Complete(ctx context.Context, req llm.Request, op string) (string, error)
	Configured() bool
}

// BatchSize bounds how many lines go into one classification request.
const BatchSize = 40

const classifierSystemPrompt = "You are a sentiment classifier for customer support transcripts. Respond with JSON only."

// LLMClassifier classifies lines in batches through a chat model.
type LLMClassifier struct {
	client Completer
}

// NewLLMClassifier returns a classifier over client.
func NewLLMClassifier(client Completer) *LLMClassifier {
	return &LLMClassifier{client: client}
}

type batchResponse struct {
	Results []Result `json:"results"`
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, texts []string) ([]Result, error) {
	if c.client == nil || !c.client.Configured() {
		return nil, services.Wrap(services.ErrConfiguration, "sentiment", "classify", "llm api key not configured", nil)
	}
	out := make([]Result, 0, len(texts))
	for start := 0; start < len(texts); start += BatchSize {
		batch := texts[start:min(start+BatchSize, len(texts))]
		results, err := c.classifyBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, results...)
	}
	return out, nil
}

func (c *LLMClassifier) classifyBatch(ctx context.Context, texts []string) ([]Result, error) {
	var b strings.Builder
	b.WriteString("Classify the sentiment of each numbered line as POSITIVE or NEGATIVE with a confidence score between 0.0 and 1.0.\n\n")
	for i, text := range texts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.ReplaceAll(text, "\n", " "))
	}
	fmt.Fprintf(&b, "\nReturn {\"results\": [{\"label\": \"POSITIVE\", \"score\": 0.98}, ...]} with exactly %d entries in line order.", len(texts))

	content, err := c.client.Complete(ctx, llm.Request{System: classifierSystemPrompt, User: b.String()}, "sentiment")
	if err != nil {
		return nil, err
	}
	var resp batchResponse
	if err := llm.DecodeLLMJSON(content, &resp); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "sentiment", "parse", "malformed results", err)
	}
	if len(resp.Results) != len(texts) {
		return nil, services.Wrap(services.ErrExternalTool, "sentiment", "parse", fmt.Sprintf("expected %d results, got %d", len(texts), len(resp.Results)), nil)
	}
	for i := range resp.Results {
		r := &resp.Results[i]
		r.Label = strings.ToUpper(strings.TrimSpace(r.Label))
		if r.Label != LabelPositive {
			r.Label = LabelNegative
		}
		r.Score = max(0, min(1, r.Score))
	}
	return resp.Results, nil
}
