package scoring

import (
	"encoding/json"
	"strconv"
	"strings"
)

// UnmarshalJSON accepts final_score as a number, a percent string such as
// "85%", or null. Anything unparseable reads as 0.
func (s *Summary) UnmarshalJSON(data []byte) error {
	type plain Summary
	var raw struct {
		plain
		FinalScore json.RawMessage `json:"final_score"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Summary(raw.plain)
	s.FinalScore = ParseScore(raw.FinalScore)
	return nil
}

// ParseScore reads a JSON score value leniently.
func ParseScore(raw json.RawMessage) float64 {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return 0
	}
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(unquoted), "%"))
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return v
}
