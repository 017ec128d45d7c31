package judge

import (
	"context"
	"fmt"
	"strings"

	"callqa/internal/logging"
	"callqa/internal/services"
	"callqa/internal/services/llm"
	"callqa/internal/textutil"
	"callqa/internal/transcript"
)

// SpeakerSampleSize bounds how many opening segments the role identifier sees.
const SpeakerSampleSize = 15

// Role labels assigned by IdentifySpeakers.
const (
	RoleAgent    = "Agent"
	RoleCustomer = "Customer"
)

const speakerSystemPrompt = "You identify speaker roles in customer support calls from conversational context. Respond with JSON only."

// IdentifySpeakers maps diarization labels to Agent or Customer using the
// opening of the call. It returns an empty mapping, without calling the
// model, when every segment is unlabelled.
func (j *LLMJudge) IdentifySpeakers(ctx context.Context, segments []transcript.Segment) (map[string]string, error) {
	known := make(map[string]struct{})
	for _, label := range transcript.Speakers(segments) {
		if label != transcript.UnknownSpeaker {
			known[label] = struct{}{}
		}
	}
	if len(known) == 0 {
		return map[string]string{}, nil
	}
	if j.client == nil || !j.client.Configured() {
		return nil, services.Wrap(services.ErrConfiguration, "judge", "speakers", "llm api key not configured", nil)
	}

	sample := segments[:min(len(segments), SpeakerSampleSize)]
	var b strings.Builder
	b.WriteString("One speaker is the support agent: they usually open the call, name the company, and offer help. The other is the customer: they describe a problem and give details.\n\nTRANSCRIPT SAMPLE:\n")
	for _, seg := range sample {
		fmt.Fprintf(&b, "[%s]: %s\n", seg.Speaker, seg.Text)
	}
	b.WriteString("\nReturn a JSON object mapping each speaker ID exactly as written above to \"Agent\" or \"Customer\".")

	content, err := j.client.Complete(ctx, llm.Request{System: speakerSystemPrompt, User: b.String()}, "speakers")
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := llm.DecodeLLMJSON(content, &raw); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "judge", "speakers", "malformed mapping", err)
	}

	mapping := make(map[string]string, len(raw))
	for label, role := range raw {
		if _, ok := known[label]; !ok {
			continue
		}
		switch textutil.NormalizeKey(role) {
		case "agent":
			mapping[label] = RoleAgent
		case "customer":
			mapping[label] = RoleCustomer
		}
	}
	logging.WithContext(ctx, j.logger).Debug("speaker roles identified", logging.Int("mapped", len(mapping)))
	return mapping, nil
}
