package taskrunner

import (
	"fmt"
	"strings"
	"time"
)

// Summary counts outcomes of a pool run.
type Summary struct {
	Total     int
	Completed int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// Summarize counts the outcomes of a run that took duration.
func Summarize[O any](outcomes []Outcome[O], duration time.Duration) Summary {
	summary := Summary{Total: len(outcomes), Duration: duration}
	for _, outcome := range outcomes {
		switch {
		case outcome.Skipped:
			summary.Skipped++
		case outcome.Err != nil:
			summary.Failed++
			summary.Completed++
		default:
			summary.Completed++
		}
	}
	return summary
}

// String renders the summary as space separated key=value pairs.
func (summary Summary) String() string {
	parts := []string{
		fmt.Sprintf("total.repos=%d", summary.Total),
		fmt.Sprintf("completed=%d", summary.Completed),
		fmt.Sprintf("failed=%d", summary.Failed),
		fmt.Sprintf("skipped=%d", summary.Skipped),
		fmt.Sprintf("duration_ms=%d", summary.Duration.Milliseconds()),
	}
	return strings.Join(parts, " ")
}
