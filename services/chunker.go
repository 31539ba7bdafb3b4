package services

import (
	"fmt"

	"docqa-platform/models"
)

// Chunker splits extracted text into overlapping rune-window chunks. Window
// boundaries prefer natural breakpoints (paragraph break, then sentence end,
// then whitespace) found within a bounded lookback from the hard cut, so
// chunks tend to end on complete sentences without drifting below the
// configured overlap.
type Chunker struct {
	size     int
	overlap  int
	lookback int
}

func NewChunker(size, overlap, lookback int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrConfig, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", ErrConfig, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", ErrConfig, overlap, size)
	}
	if lookback < 0 {
		lookback = 0
	}
	return &Chunker{size: size, overlap: overlap, lookback: lookback}, nil
}

// Split covers the whole input: every rune belongs to at least one chunk, no
// chunk exceeds the configured size, and consecutive chunks share exactly the
// configured overlap. Chunk IDs are sequential from zero and offsets are rune
// positions into the original text.
func (c *Chunker) Split(text string) []models.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []models.Chunk
	start := 0
	for id := 0; ; id++ {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.cut(runes, start, end)
		}

		chunks = append(chunks, models.Chunk{
			ChunkID: id,
			Text:    string(runes[start:end]),
			Offset:  start,
		})

		if end >= len(runes) {
			return chunks
		}
		start = end - c.overlap
	}
}

// cut picks the chunk end for a window starting at start whose hard limit is
// hard. It never cuts earlier than start+overlap+1, which guarantees the next
// window advances past this one regardless of where a breakpoint is found.
func (c *Chunker) cut(runes []rune, start, hard int) int {
	window := c.lookback
	minEnd := start + c.overlap + 1
	if hard-window < minEnd {
		window = hard - minEnd
	}
	if window <= 0 {
		return hard
	}

	lo := hard - window
	if pos := paragraphBreak(runes, lo, hard); pos > 0 {
		return pos
	}
	if pos := sentenceBreak(runes, lo, hard); pos > 0 {
		return pos
	}
	if pos := wordBreak(runes, lo, hard); pos > 0 {
		return pos
	}
	return hard
}

// paragraphBreak returns the position just after the last blank line in
// [lo, hi), or 0 when there is none.
func paragraphBreak(runes []rune, lo, hi int) int {
	for i := hi - 1; i > lo; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	return 0
}

// sentenceBreak returns the position just after the last sentence-ending
// punctuation followed by whitespace in [lo, hi), or 0 when there is none.
func sentenceBreak(runes []rune, lo, hi int) int {
	for i := hi - 2; i >= lo; i-- {
		if isSentenceEnd(runes[i]) && isSpace(runes[i+1]) {
			return i + 2
		}
	}
	return 0
}

// wordBreak returns the position just after the last whitespace rune in
// [lo, hi), or 0 when there is none.
func wordBreak(runes []rune, lo, hi int) int {
	for i := hi - 1; i >= lo; i-- {
		if isSpace(runes[i]) {
			return i + 1
		}
	}
	return 0
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
