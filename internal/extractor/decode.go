package extractor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"meeting-insights-go/internal/types"
)

const defaultConfidence = 0.5

type wireResult struct {
	Summary     json.RawMessage `json:"summary"`
	Decisions   json.RawMessage `json:"decisions"`
	Tasks       json.RawMessage `json:"tasks"`
	NextMeeting json.RawMessage `json:"next_meeting"`
}

type wireTask struct {
	Description json.RawMessage `json:"description"`
	Task        json.RawMessage `json:"task"`
	Owner       json.RawMessage `json:"owner"`
	Deadline    json.RawMessage `json:"deadline"`
	Priority    json.RawMessage `json:"priority"`
	Confidence  json.RawMessage `json:"confidence"`
}

// Decode turns raw oracle text into a typed ExtractionResult. Markdown fences
// are stripped first. Text that is not a single JSON object, an object with
// none of summary, decisions and tasks, or one where they have the wrong
// shape yields a *MalformedResponseError.
func Decode(raw string) (types.ExtractionResult, error) {
	body := StripFences(raw)
	if body == "" {
		return types.ExtractionResult{}, malformed("empty response", nil)
	}
	if !strings.HasPrefix(body, "{") {
		return types.ExtractionResult{}, malformed("not a JSON object", nil)
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var wire wireResult
	if err := dec.Decode(&wire); err != nil {
		return types.ExtractionResult{}, malformed("not a JSON object", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return types.ExtractionResult{}, malformed("trailing data after JSON object", nil)
	}
	if absent(wire.Summary) && absent(wire.Decisions) && absent(wire.Tasks) {
		return types.ExtractionResult{}, malformed("none of summary, decisions or tasks present", nil)
	}

	var out types.ExtractionResult
	var err error

	if out.Summary, err = decodeSummary(wire.Summary); err != nil {
		return types.ExtractionResult{}, err
	}
	if out.Decisions, err = decodeDecisions(wire.Decisions); err != nil {
		return types.ExtractionResult{}, err
	}
	if out.Tasks, err = decodeTasks(wire.Tasks); err != nil {
		return types.ExtractionResult{}, err
	}
	if s, ok := optionalString(wire.NextMeeting); ok {
		out.NextMeeting = strings.TrimSpace(s)
	}
	return out, nil
}

// StripFences removes Markdown code fences around a JSON payload. When the
// remaining text still carries prose, the first balanced object is kept.
func StripFences(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSpace(s)
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	if s == "" || strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return s
	}
	if obj := firstObject(s); obj != "" {
		return obj
	}
	return s
}

// firstObject returns the first brace-balanced {...} span of s, skipping
// braces inside JSON strings.
func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func malformed(reason string, err error) *MalformedResponseError {
	return &MalformedResponseError{Chunk: -1, Reason: reason, Err: err}
}

// absent reports a key missing from the object.
func absent(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// optionalString decodes a JSON string; null and absent decode to "" and
// other types report ok=false.
func optionalString(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func decodeSummary(raw json.RawMessage) (string, error) {
	if s, ok := optionalString(raw); ok {
		return strings.TrimSpace(s), nil
	}
	var parts []string
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", malformed("summary must be a string or a list of strings", err)
	}
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n"), nil
}

func decodeDecisions(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return []string{}, nil
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, malformed("decisions must be a list of strings", err)
	}
	out := make([]string, 0, len(items))
	for _, d := range items {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out, nil
}

func decodeTasks(raw json.RawMessage) ([]types.TaskDraft, error) {
	if isNull(raw) {
		return []types.TaskDraft{}, nil
	}
	var items []wireTask
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, malformed("tasks must be a list of objects", err)
	}

	out := make([]types.TaskDraft, 0, len(items))
	for i, w := range items {
		desc, ok := optionalString(w.Description)
		if !ok {
			return nil, malformed(fmt.Sprintf("task %d: description must be a string", i), nil)
		}
		if strings.TrimSpace(desc) == "" {
			if alt, ok := optionalString(w.Task); ok {
				desc = alt
			}
		}
		desc = strings.TrimSpace(desc)
		if desc == "" {
			continue
		}

		owner, _ := optionalString(w.Owner)
		prio, _ := optionalString(w.Priority)
		out = append(out, types.TaskDraft{
			Description: desc,
			Owner:       strings.TrimSpace(owner),
			Deadline:    decodeDeadline(w.Deadline),
			Priority:    types.ParsePriority(prio),
			Confidence:  decodeConfidence(w.Confidence),
		})
	}
	return out, nil
}

// decodeDeadline keeps strings as-is and renders numbers (epoch
// milliseconds) as integer text.
func decodeDeadline(raw json.RawMessage) string {
	if s, ok := optionalString(raw); ok {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return ""
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := n.Float64(); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return ""
}

func decodeConfidence(raw json.RawMessage) float64 {
	if isNull(raw) {
		return defaultConfidence
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		s, ok := optionalString(raw)
		if !ok {
			return defaultConfidence
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return defaultConfidence
		}
	}
	switch {
	case math.IsNaN(f):
		return defaultConfidence
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
