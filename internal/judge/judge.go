package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"callqa/internal/logging"
	"callqa/internal/services"
	"callqa/internal/services/llm"
	"callqa/internal/sop"
)

// Completer issues one chat completion.
type Completer interface {
	Complete(ctx context.Context, req llm.Request, op string) (string, error)
	Configured() bool
}

const judgeSystemPrompt = "You are a strict but fair quality assurance judge for customer support calls. Return only valid JSON."

// LLMJudge asks a language model to rule on every checklist step.
type LLMJudge struct {
	client Completer
	logger *slog.Logger
}

// New returns a judge over client.
func New(client Completer, logger *slog.Logger) *LLMJudge {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LLMJudge{client: client, logger: logging.NewComponentLogger(logger, "judge")}
}

// Evaluate implements sop.Judge.
func (j *LLMJudge) Evaluate(ctx context.Context, rendered string, checklist sop.Checklist, policy string) (sop.Verdicts, error) {
	if j.client == nil || !j.client.Configured() {
		return nil, services.Wrap(services.ErrConfiguration, "judge", "evaluate", "llm api key not configured", nil)
	}
	content, err := j.client.Complete(ctx, llm.Request{
		System: judgeSystemPrompt,
		User:   BuildPrompt(rendered, checklist, policy),
	}, "judge")
	if err != nil {
		return nil, err
	}
	verdicts, err := ParseVerdicts(content)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "judge", "parse", "malformed verdicts", err)
	}
	logging.WithContext(ctx, j.logger).Debug("judge verdicts received",
		logging.Int("verdicts", len(verdicts)),
		logging.Int("steps", checklist.StepCount()),
	)
	return verdicts, nil
}

// BuildPrompt renders the judge prompt. Each step is listed under its
// section with the key the model must use, and with its internal intent when
// one is defined.
func BuildPrompt(rendered string, checklist sop.Checklist, policy string) string {
	var b strings.Builder
	if policy = strings.TrimSpace(policy); policy != "" {
		b.WriteString("POLICY CONSTRAINTS (authoritative):\n")
		b.WriteString(policy)
		b.WriteString("\n\nThe policy decides which actions are allowed. If the agent promises or implies an action the policy does not allow, mark the affected step FAIL. Where the policy and the conversation disagree, follow the policy.\n\n")
	}
	b.WriteString("TRANSCRIPT (speaker labels in brackets):\n")
	b.WriteString(rendered)
	b.WriteString("\n\nCHECKLIST:\n")
	for _, section := range checklist {
		fmt.Fprintf(&b, "\nSection: %s\n", section.Name)
		for i, step := range section.Steps {
			objective := strings.TrimSpace(step.InternalIntent)
			if objective == "" {
				objective = step.Text
			}
			fmt.Fprintf(&b, "- [StepID: %s] Requirement: %s\n", sop.StepKey(section.Name, i), objective)
		}
	}
	b.WriteString(`
For each StepID decide whether the requirement was fulfilled anywhere in the conversation.
Judge whether the objective was met, not whether exact words were used. Information the customer volunteers counts when the agent acknowledges or acts on it.
Use "PASS" when fully met, "PARTIAL" when met without the needed detail or confirmation, and "FAIL" when missed or handled incorrectly.

Respond with one JSON object keyed by StepID. Each value must be an object with:
- "status": "PASS", "PARTIAL", or "FAIL"
- "reason": one sentence citing what happened in the call
- "confidence": a number between 0.0 and 1.0
`)
	return b.String()
}

type rawVerdict struct {
	Status     string     `json:"status"`
	Reason     string     `json:"reason"`
	Confidence confidence `json:"confidence"`
}

// confidence accepts numbers and numeric strings.
type confidence float64

func (c *confidence) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if text == "" || text == "null" {
		*c = 0
		return nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		*c = 0
		return nil
	}
	*c = confidence(v)
	return nil
}

// ParseVerdicts decodes the model output. Entries whose value is not an
// object are skipped.
func ParseVerdicts(content string) (sop.Verdicts, error) {
	var raw map[string]json.RawMessage
	if err := llm.DecodeLLMJSON(content, &raw); err != nil {
		return nil, err
	}
	verdicts := make(sop.Verdicts, len(raw))
	for key, value := range raw {
		var v rawVerdict
		if err := json.Unmarshal(value, &v); err != nil {
			continue
		}
		verdicts[key] = sop.Verdict{
			Status:     sop.ParseStatus(v.Status),
			Reason:     strings.TrimSpace(v.Reason),
			Confidence: float64(v.Confidence),
		}
	}
	return verdicts, nil
}
