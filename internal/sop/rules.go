package sop

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"callqa/internal/services"
)

// Step is one required agent behaviour. InternalIntent restates Text as an
// objective the judge can verify; Suggestion is shown when the step fails.
type Step struct {
	Text           string `json:"text" yaml:"text"`
	InternalIntent string `json:"internal_intent,omitempty" yaml:"internal_intent,omitempty"`
	Suggestion     string `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

// UnmarshalYAML accepts either a mapping or a bare string.
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.Text = node.Value
		return nil
	}
	type plain Step
	return node.Decode((*plain)(s))
}

// UnmarshalJSON accepts either an object or a bare string.
func (s *Step) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &s.Text)
	}
	type plain Step
	return json.Unmarshal(data, (*plain)(s))
}

// Section is a weighted group of steps.
type Section struct {
	Name   string
	Steps  []Step
	Weight float64
}

type sectionBody struct {
	Weight float64 `json:"weight" yaml:"weight"`
	Steps  []Step  `json:"steps" yaml:"steps"`
}

// Checklist is the ordered set of sections. Order is the order sections were
// declared in and is preserved by every output derived from it.
type Checklist []Section

// Section returns the named section.
func (c Checklist) Section(name string) (Section, bool) {
	for _, s := range c {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// StepCount returns the number of steps across all sections.
func (c Checklist) StepCount() int {
	n := 0
	for _, s := range c {
		n += len(s.Steps)
	}
	return n
}

// Validate rejects negative weights, blank names, and duplicate sections.
func (c Checklist) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for _, s := range c {
		if strings.TrimSpace(s.Name) == "" {
			return services.Wrap(services.ErrValidation, "sop", "validate", "section name is empty", nil)
		}
		if _, dup := seen[s.Name]; dup {
			return services.Wrap(services.ErrValidation, "sop", "validate", fmt.Sprintf("duplicate section %q", s.Name), nil)
		}
		seen[s.Name] = struct{}{}
		if s.Weight < 0 {
			return services.Wrap(services.ErrValidation, "sop", "validate", fmt.Sprintf("section %q has negative weight", s.Name), nil)
		}
		for i, step := range s.Steps {
			if strings.TrimSpace(step.Text) == "" {
				return services.Wrap(services.ErrValidation, "sop", "validate", fmt.Sprintf("section %q step %d has no text", s.Name, i), nil)
			}
		}
	}
	return nil
}

// MarshalJSON renders the checklist as an object keyed by section name.
func (c Checklist) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range c {
		steps := s.Steps
		if steps == nil {
			steps = []Step{}
		}
		if err := writeMember(&buf, i == 0, s.Name, sectionBody{Weight: s.Weight, Steps: steps}); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object keyed by section name, keeping key order.
func (c *Checklist) UnmarshalJSON(data []byte) error {
	var out Checklist
	err := eachMember(data, func(key string, raw json.RawMessage) error {
		var body sectionBody
		if err := json.Unmarshal(raw, &body); err != nil {
			return fmt.Errorf("section %q: %w", key, err)
		}
		out = append(out, Section{Name: key, Steps: body.Steps, Weight: body.Weight})
		return nil
	})
	if err != nil {
		return err
	}
	*c = out
	return nil
}

// MarshalYAML renders the checklist as a mapping in section order.
func (c Checklist) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, s := range c {
		value := &yaml.Node{}
		if err := value.Encode(sectionBody{Weight: s.Weight, Steps: s.Steps}); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s.Name}, value)
	}
	return node, nil
}

// UnmarshalYAML reads a mapping keyed by section name, keeping key order.
func (c *Checklist) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: sop_rules must be a mapping", node.Line)
	}
	out := make(Checklist, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var body sectionBody
		if err := node.Content[i+1].Decode(&body); err != nil {
			return fmt.Errorf("section %q: %w", name, err)
		}
		out = append(out, Section{Name: name, Steps: body.Steps, Weight: body.Weight})
	}
	*c = out
	return nil
}

// Rules is the configuration every evaluation runs against. Treat values as
// immutable once loaded; WithChecklist returns a copy.
type Rules struct {
	Checklist    Checklist
	RiskKeywords []string
}

type sentiments struct {
	RiskKeywords []string `json:"risk_keywords" yaml:"risk_keywords"`
}

type rulesFile struct {
	Checklist  Checklist   `json:"sop_rules" yaml:"sop_rules"`
	Sentiments *sentiments `json:"sentiments" yaml:"sentiments"`
}

// WithChecklist returns rules using checklist but the same risk keywords.
func (r Rules) WithChecklist(checklist Checklist) Rules {
	return Rules{Checklist: checklist, RiskKeywords: append([]string(nil), r.RiskKeywords...)}
}

// MarshalJSON renders the rules in the on-disk layout.
func (r Rules) MarshalJSON() ([]byte, error) {
	return json.Marshal(rulesFile{Checklist: r.Checklist, Sentiments: &sentiments{RiskKeywords: r.RiskKeywords}})
}

// MarshalYAML renders the rules in the on-disk layout.
func (r Rules) MarshalYAML() (any, error) {
	return rulesFile{Checklist: r.Checklist, Sentiments: &sentiments{RiskKeywords: r.RiskKeywords}}, nil
}

// Parse decodes rules from YAML or JSON. Documents starting with '{' are read
// as JSON. A document without a sop_rules key is treated as a bare checklist.
func Parse(data []byte) (Rules, error) {
	rules, _, err := parse(data)
	return rules, err
}

// ParseUpdate decodes a replacement rules document. A document without a
// sentiments section keeps the risk keywords of current.
func ParseUpdate(data []byte, current Rules) (Rules, error) {
	rules, hasSentiments, err := parse(data)
	if err != nil {
		return Rules{}, err
	}
	if !hasSentiments {
		return current.WithChecklist(rules.Checklist), nil
	}
	return rules, nil
}

func parse(data []byte) (Rules, bool, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Rules{}, false, services.Wrap(services.ErrValidation, "sop", "parse", "rules document is empty", nil)
	}
	var file rulesFile
	var err error
	if trimmed[0] == '{' {
		file, err = parseJSON(trimmed)
	} else {
		file, err = parseYAML(trimmed)
	}
	if err != nil {
		return Rules{}, false, services.Wrap(services.ErrValidation, "sop", "parse", "invalid rules document", err)
	}
	var keywords []string
	if file.Sentiments != nil {
		keywords = file.Sentiments.RiskKeywords
	}
	rules := Rules{Checklist: file.Checklist, RiskKeywords: cleanKeywords(keywords)}
	if err := rules.Checklist.Validate(); err != nil {
		return Rules{}, false, err
	}
	return rules, file.Sentiments != nil, nil
}

// ParseChecklist decodes a checklist supplied per request, either wrapped in
// a sop_rules key or bare.
func ParseChecklist(data []byte) (Checklist, error) {
	rules, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return rules.Checklist, nil
}

func parseJSON(data []byte) (rulesFile, error) {
	var file rulesFile
	wrapped := false
	err := eachMember(data, func(key string, raw json.RawMessage) error {
		switch key {
		case "sop_rules":
			wrapped = true
			return json.Unmarshal(raw, &file.Checklist)
		case "sentiments":
			file.Sentiments = &sentiments{}
			return json.Unmarshal(raw, file.Sentiments)
		}
		return nil
	})
	if err != nil {
		return rulesFile{}, err
	}
	if !wrapped {
		if err := json.Unmarshal(data, &file.Checklist); err != nil {
			return rulesFile{}, err
		}
	}
	return file, nil
}

func parseYAML(data []byte) (rulesFile, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return rulesFile{}, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return rulesFile{}, errors.New("empty YAML document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return rulesFile{}, fmt.Errorf("line %d: expected a mapping", root.Line)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "sop_rules" {
			var file rulesFile
			err := root.Decode(&file)
			return file, err
		}
	}
	var file rulesFile
	err := root.Decode(&file.Checklist)
	return file, err
}

func cleanKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, kw := range in {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// Load reads rules from path.
func Load(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Rules{}, services.Wrap(services.ErrConfiguration, "sop", "load", fmt.Sprintf("rules file %s not found (create it or set paths.rules_path)", path), err)
		}
		return Rules{}, services.Wrap(services.ErrConfiguration, "sop", "load", path, err)
	}
	return Parse(data)
}

// Save writes rules to path as YAML.
func Save(path string, rules Rules) error {
	data, err := yaml.Marshal(rules)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write rules: %w", err)
	}
	return nil
}
