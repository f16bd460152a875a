package extractor

import (
	"context"
	"fmt"
	"regexp"
)

var partNote = regexp.MustCompile(`This is part (\d+) of (\d+)`)

// MockOracle answers every prompt with a deterministic, fenced JSON document.
// Enabled with USE_MOCK_LLM=true for offline demos.
type MockOracle struct{}

var _ Oracle = MockOracle{}

func (MockOracle) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	part := "1"
	if m := partNote.FindStringSubmatch(prompt); m != nil {
		part = m[1]
	}
	return fmt.Sprintf("```json\n"+`{
  "summary": "Mock analysis of transcript part %[1]s.",
  "decisions": ["Use the mock oracle for offline demos"],
  "tasks": [
    {"description": "Review the meeting notes", "owner": "", "deadline": "", "priority": "Medium", "confidence": 0.9},
    {"description": "Follow up on part %[1]s", "owner": "unassigned", "deadline": "", "priority": "Low", "confidence": 0.6}
  ],
  "next_meeting": ""
}`+"\n```", part), nil
}
