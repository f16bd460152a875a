// Package chunker splits transcripts into paragraph-aligned chunks small
// enough for a single oracle call.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"meeting-insights-go/internal/types"
)

// DefaultMaxChunkSize is measured in characters (runes), not bytes.
const DefaultMaxChunkSize = 15000

// Separator joins paragraphs inside a chunk.
const Separator = "\n\n"

var blankLine = regexp.MustCompile(`\n[ \t\r\f\v]*\n`)

// Split returns the ordered chunks for text. Text that fits in maxChunkSize
// comes back as one chunk. Longer text is packed greedily paragraph by
// paragraph; a paragraph longer than maxChunkSize is never cut and gets a
// chunk of its own. Whitespace-only input yields no chunks.
func Split(text string, maxChunkSize int) []types.Chunk {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= maxChunkSize {
		return []types.Chunk{{Text: text, Index: 0, TotalChunks: 1}}
	}

	var (
		texts   []string
		current strings.Builder
		curLen  int
	)
	sepLen := utf8.RuneCountInString(Separator)

	flush := func() {
		if curLen > 0 {
			texts = append(texts, current.String())
			current.Reset()
			curLen = 0
		}
	}

	for _, para := range Paragraphs(text) {
		paraLen := utf8.RuneCountInString(para)
		if curLen > 0 && curLen+sepLen+paraLen > maxChunkSize {
			flush()
		}
		if curLen > 0 {
			current.WriteString(Separator)
			curLen += sepLen
		}
		current.WriteString(para)
		curLen += paraLen
	}
	flush()

	chunks := make([]types.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = types.Chunk{Text: t, Index: i, TotalChunks: len(texts)}
	}
	return chunks
}

// Paragraphs splits text on blank lines and drops empty blocks. Each
// paragraph is trimmed.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	raw := blankLine.Split(text, -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
