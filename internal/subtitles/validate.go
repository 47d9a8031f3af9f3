package subtitles

import (
	"fmt"
	"time"
)

// Validate reports format problems in a cue list; an empty result means the
// cues are usable. Issues use short machine-readable tags.
func Validate(cues []Cue) []string {
	if len(cues) == 0 {
		return []string{"empty_subtitle_file"}
	}
	var issues []string
	var previous time.Duration
	for i, cue := range cues {
		if cue.End < cue.Start {
			issues = append(issues, fmt.Sprintf("negative_duration: cue=%d", i+1))
		}
		if cue.Start < previous {
			issues = append(issues, fmt.Sprintf("out_of_order: cue=%d", i+1))
		}
		previous = cue.Start
	}
	return issues
}
