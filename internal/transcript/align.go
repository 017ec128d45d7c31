package transcript

// Align assigns each segment the speaker of the first turn, in turn order,
// whose closed interval contains the segment midpoint. Segments whose
// midpoint falls in no turn keep their current label. Segments are mutated in
// place and returned for chaining.
func Align(segments []Segment, turns []SpeakerTurn) []Segment {
	if len(turns) == 0 {
		return segments
	}
	for i := range segments {
		mid := (segments[i].Start + segments[i].End) / 2
		for _, turn := range turns {
			if turn.Start <= mid && mid <= turn.End {
				segments[i].Speaker = turn.Speaker
				break
			}
		}
	}
	return segments
}

// ApplySpeakerMapping rewrites diarization labels to roles (for example
// SPEAKER_00 to Agent). Labels absent from mapping are left alone.
func ApplySpeakerMapping(segments []Segment, mapping map[string]string) []Segment {
	if len(mapping) == 0 {
		return segments
	}
	for i := range segments {
		if role, ok := mapping[segments[i].Speaker]; ok && role != "" {
			segments[i].Speaker = role
		}
	}
	return segments
}
