package extractor

import (
	"fmt"

	"meeting-insights-go/internal/types"
)

const promptTemplate = `You are an expert meeting assistant. Analyze the meeting transcript below and
extract a structured record of what was discussed and agreed.
%s
Return a single JSON object with exactly these keys:
{
  "summary": "",
  "decisions": [],
  "tasks": [
    {
      "description": "",
      "owner": "",
      "deadline": "",
      "priority": "High | Medium | Low",
      "confidence": 0.0
    }
  ],
  "next_meeting": ""
}

RULES:
- "summary" is a short executive summary of this transcript text.
- "decisions" lists every decision that was agreed, one sentence each.
- "tasks" lists every actionable item. "owner" is the person's name exactly as
  spoken, or "" when nobody took it. "deadline" is a date (DD/MM/YYYY) or the
  phrase used in the meeting, or "" when none was given.
- "confidence" is your confidence in the task between 0 and 1.
- "next_meeting" is the date/time of the next meeting if one was agreed, else "".
- Use only the transcript. Do not invent people, dates or numbers.
- Return ONLY valid JSON. No prose, no commentary, no markdown fences.

TRANSCRIPT:
%s
`

// BuildPrompt renders the fixed instruction template for one chunk. Chunked
// transcripts get a positional note so the oracle knows it sees a fragment.
func BuildPrompt(chunk types.Chunk) string {
	note := ""
	if chunk.TotalChunks > 1 {
		note = fmt.Sprintf("\nThis is part %d of %d of a longer transcript. Extract only what appears in this part.\n",
			chunk.Index+1, chunk.TotalChunks)
	}
	return fmt.Sprintf(promptTemplate, note, chunk.Text)
}
