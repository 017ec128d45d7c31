package judge

import (
	"context"
	"slices"
	"strings"

	"callqa/internal/logging"
	"callqa/internal/services"
	"callqa/internal/services/llm"
	"callqa/internal/sop"
)

const (
	intentSystemPrompt     = "You convert customer support script lines into short, verifiable evaluation objectives."
	suggestionSystemPrompt = "You write customer support scripts. Respond with valid JSON only."
)

// ConvertToIntent restates a script line as the action the agent must
// perform. On any failure the original text is returned with the error.
func (j *LLMJudge) ConvertToIntent(ctx context.Context, scriptLine string) (string, error) {
	scriptLine = strings.TrimSpace(scriptLine)
	if scriptLine == "" {
		return "", services.Wrap(services.ErrValidation, "judge", "intent", "script line is empty", nil)
	}
	if j.client == nil || !j.client.Configured() {
		return scriptLine, services.Wrap(services.ErrConfiguration, "judge", "intent", "llm api key not configured", nil)
	}
	content, err := j.client.Complete(ctx, llm.Request{
		System:      intentSystemPrompt,
		User:        "Rewrite this support script line as the objective the agent must achieve. Describe the action, not the exact words, in at most 15 words.\n\nScript line: \"" + scriptLine + "\"\n\nObjective:",
		Temperature: 0.1,
		MaxTokens:   50,
		Text:        true,
	}, "intent")
	if err != nil {
		return scriptLine, err
	}
	intent := strings.TrimSpace(strings.NewReplacer(`"`, "", "'", "").Replace(content))
	if intent == "" {
		return scriptLine, services.Wrap(services.ErrExternalTool, "judge", "intent", "empty objective", nil)
	}
	return intent, nil
}

// Suggestion is a drafted SOP step.
type Suggestion struct {
	Intent     string `json:"intent"`
	Suggestion string `json:"suggestion"`
}

// SuggestStep drafts an intent and a script line from a rough instruction.
func (j *LLMJudge) SuggestStep(ctx context.Context, instruction string) (Suggestion, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return Suggestion{}, services.Wrap(services.ErrValidation, "judge", "suggest", "instruction is empty", nil)
	}
	if j.client == nil || !j.client.Configured() {
		return Suggestion{}, services.Wrap(services.ErrConfiguration, "judge", "suggest", "llm api key not configured", nil)
	}
	content, err := j.client.Complete(ctx, llm.Request{
		System:      suggestionSystemPrompt,
		User:        "Turn this rough instruction into a formal internal intent (what the agent achieves) and a polite script line (what the agent says).\n\nInstruction: \"" + instruction + "\"\n\nReturn {\"intent\": \"...\", \"suggestion\": \"...\"}.",
		Temperature: 0.3,
	}, "suggest")
	if err != nil {
		return Suggestion{}, err
	}
	var out Suggestion
	if err := llm.DecodeLLMJSON(content, &out); err != nil {
		return Suggestion{}, services.Wrap(services.ErrExternalTool, "judge", "suggest", "malformed suggestion", err)
	}
	out.Intent = strings.TrimSpace(out.Intent)
	out.Suggestion = strings.TrimSpace(out.Suggestion)
	if out.Intent == "" {
		out.Intent = instruction
	}
	return out, nil
}

// FillIntents returns a copy of checklist with missing internal intents
// filled in, and how many steps were updated. Steps whose conversion fails
// keep an empty intent and are logged.
func (j *LLMJudge) FillIntents(ctx context.Context, checklist sop.Checklist) (sop.Checklist, int) {
	logger := logging.WithContext(ctx, j.logger)
	out := make(sop.Checklist, len(checklist))
	filled := 0
	for i, section := range checklist {
		steps := slices.Clone(section.Steps)
		for k := range steps {
			if strings.TrimSpace(steps[k].InternalIntent) != "" {
				continue
			}
			intent, err := j.ConvertToIntent(ctx, steps[k].Text)
			if err != nil {
				logging.WarnWithContext(logger, "intent conversion failed", "intent_failed",
					logging.String("section", section.Name),
					logging.Int("step", k),
					logging.Error(err),
					logging.String(logging.FieldImpact, "step keeps its script text as the judge objective"),
				)
				continue
			}
			steps[k].InternalIntent = intent
			filled++
		}
		section.Steps = steps
		out[i] = section
	}
	return out, filled
}
