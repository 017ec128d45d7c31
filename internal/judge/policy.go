package judge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"callqa/internal/services"
	"callqa/internal/textutil"
)

// MaxChunkChars bounds a policy chunk.
const MaxChunkChars = 2000

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Policy is the stored guardrail text for one SOP.
type Policy struct {
	SOPID   string   `json:"sop_id"`
	RawText string   `json:"raw_text"`
	Chunks  []string `json:"chunks"`
}

// PolicyPath returns where the policy for sopID lives in dir.
func PolicyPath(dir, sopID string) string {
	return filepath.Join(dir, textutil.SanitizeFileName(sopID)+"_policy.json")
}

// LoadPolicy reads the policy text for sopID from dir. It looks for
// <sop_id>_policy.json, then <sop_id>.txt. A blank sopID or a missing file
// yields "" with no error.
func LoadPolicy(dir, sopID string) (string, error) {
	if strings.TrimSpace(dir) == "" || strings.TrimSpace(sopID) == "" {
		return "", nil
	}
	data, err := os.ReadFile(PolicyPath(dir, sopID))
	switch {
	case err == nil:
		var p Policy
		if err := json.Unmarshal(data, &p); err != nil {
			return "", services.Wrap(services.ErrValidation, "policy", "load", sopID, err)
		}
		return strings.TrimSpace(p.RawText), nil
	case !errors.Is(err, os.ErrNotExist):
		return "", services.Wrap(services.ErrConfiguration, "policy", "load", sopID, err)
	}

	data, err = os.ReadFile(filepath.Join(dir, textutil.SanitizeFileName(sopID)+".txt"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", services.Wrap(services.ErrConfiguration, "policy", "load", sopID, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SavePolicy chunks text and stores it as the policy for sopID.
func SavePolicy(dir, sopID, text string) (Policy, error) {
	if strings.TrimSpace(sopID) == "" {
		return Policy{}, services.Wrap(services.ErrValidation, "policy", "save", "sop id is empty", nil)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Policy{}, services.Wrap(services.ErrValidation, "policy", "save", "policy text is empty", nil)
	}
	p := Policy{SOPID: sopID, RawText: text, Chunks: ChunkPolicy(text, MaxChunkChars)}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Policy{}, fmt.Errorf("ensure policies dir: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return Policy{}, fmt.Errorf("encode policy: %w", err)
	}
	if err := os.WriteFile(PolicyPath(dir, sopID), data, 0o644); err != nil {
		return Policy{}, fmt.Errorf("write policy: %w", err)
	}
	return p, nil
}

// ChunkPolicy groups paragraphs into chunks shorter than maxChars. A single
// paragraph longer than maxChars becomes its own chunk.
func ChunkPolicy(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = MaxChunkChars
	}
	var chunks []string
	var current strings.Builder
	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len()+len(para) >= maxChars && current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(para)
		current.WriteString("\n\n")
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}
