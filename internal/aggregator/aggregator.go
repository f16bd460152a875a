package aggregator

import (
	"fmt"
	"strings"

	"meeting-insights-go/internal/types"
)

const summarySeparator = "\n\n"

// Merge combines per-chunk results, in chunk order, into one result. A single
// result is returned as-is. Inputs are never mutated.
func Merge(results []types.ExtractionResult) types.ExtractionResult {
	switch len(results) {
	case 0:
		return types.ExtractionResult{Decisions: []string{}, Tasks: []types.TaskDraft{}}
	case 1:
		return results[0]
	}

	n := len(results)
	out := types.ExtractionResult{
		Decisions:   []string{},
		Tasks:       []types.TaskDraft{},
		Chunked:     true,
		TotalChunks: n,
	}

	summaries := make([]string, 0, n)
	seenDecision := map[string]struct{}{}
	seenTask := map[string]struct{}{}

	for i, r := range results {
		summaries = append(summaries, fmt.Sprintf("[Part %d/%d] %s", i+1, n, r.Summary))

		for _, d := range r.Decisions {
			if _, dup := seenDecision[d]; dup {
				continue
			}
			seenDecision[d] = struct{}{}
			out.Decisions = append(out.Decisions, d)
		}

		for _, t := range r.Tasks {
			key := DedupKey(t.Description)
			if _, dup := seenTask[key]; dup {
				continue
			}
			seenTask[key] = struct{}{}
			t.FromChunk = i + 1
			out.Tasks = append(out.Tasks, t)
		}

		if out.NextMeeting == "" {
			out.NextMeeting = r.NextMeeting
		}
	}

	out.Summary = strings.Join(summaries, summarySeparator)
	return out
}

// DedupKey normalizes a task description for duplicate detection: trimmed,
// lower-cased, inner whitespace collapsed.
func DedupKey(description string) string {
	return strings.Join(strings.Fields(strings.ToLower(description)), " ")
}
