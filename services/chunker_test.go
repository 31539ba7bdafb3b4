package services

import (
	"errors"
	"strings"
	"testing"
)

func TestNewChunkerRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -10, 0},
		{"negative overlap", 100, -1},
		{"overlap equals size", 100, 100},
		{"overlap above size", 100, 150},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewChunker(tc.size, tc.overlap, 0); !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestChunkerShortTextSingleChunk(t *testing.T) {
	c, err := NewChunker(100, 20, 0)
	if err != nil {
		t.Fatal(err)
	}

	text := "short document"
	chunks := c.Split(text)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != text {
		t.Fatalf("chunk text = %q, want %q", chunks[0].Text, text)
	}
	if chunks[0].ChunkID != 0 || chunks[0].Offset != 0 {
		t.Fatalf("unexpected id/offset: %d/%d", chunks[0].ChunkID, chunks[0].Offset)
	}
}

func TestChunkerEmptyText(t *testing.T) {
	c, err := NewChunker(100, 20, 0)
	if err != nil {
		t.Fatal(err)
	}
	if chunks := c.Split(""); chunks != nil {
		t.Fatalf("expected no chunks for empty text, got %d", len(chunks))
	}
}

func TestChunkerExactOverlapWithoutLookback(t *testing.T) {
	c, err := NewChunker(50, 10, 0)
	if err != nil {
		t.Fatal(err)
	}

	text := strings.Repeat("abcdefghij", 23) // 230 runes
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i, ch := range chunks {
		if got := len([]rune(ch.Text)); got > 50 {
			t.Fatalf("chunk %d has %d runes, limit 50", i, got)
		}
		if ch.ChunkID != i {
			t.Fatalf("chunk %d has id %d", i, ch.ChunkID)
		}
		if i == 0 {
			continue
		}
		prev := []rune(chunks[i-1].Text)
		cur := []rune(ch.Text)
		tail := string(prev[len(prev)-10:])
		head := string(cur[:10])
		if tail != head {
			t.Fatalf("chunk %d overlap mismatch: %q vs %q", i, tail, head)
		}
	}
}

func TestChunkerCoversWholeText(t *testing.T) {
	for _, lookback := range []int{0, 40} {
		c, err := NewChunker(120, 30, lookback)
		if err != nil {
			t.Fatal(err)
		}

		text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)
		chunks := c.Split(text)

		// Rebuild the original by appending each chunk minus its leading
		// overlap; any gap or drift breaks the reconstruction.
		var sb strings.Builder
		for i, ch := range chunks {
			runes := []rune(ch.Text)
			if i == 0 {
				sb.WriteString(ch.Text)
				continue
			}
			sb.WriteString(string(runes[30:]))
		}
		if sb.String() != text {
			t.Fatalf("lookback %d: reconstruction does not match original", lookback)
		}
	}
}

func TestChunkerPrefersSentenceBoundary(t *testing.T) {
	c, err := NewChunker(60, 10, 30)
	if err != nil {
		t.Fatal(err)
	}

	text := strings.Repeat("Alpha beta gamma delta. ", 20)
	chunks := c.Split(text)
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	// Every non-final chunk should end right after a sentence boundary.
	for i, ch := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(ch.Text, ". ") {
			t.Fatalf("chunk %d does not end on a sentence boundary: %q", i, ch.Text)
		}
	}
}

func TestChunkerPrefersParagraphBoundary(t *testing.T) {
	c, err := NewChunker(80, 10, 50)
	if err != nil {
		t.Fatal(err)
	}

	para := strings.Repeat("word ", 12) + "end.\n\n" // 66 runes
	text := strings.Repeat(para, 5)
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Text, "\n\n") {
		t.Fatalf("first chunk should end at the paragraph break, got %q", chunks[0].Text)
	}
}

func TestChunkerAlwaysAdvances(t *testing.T) {
	// No breakpoints anywhere; the hard cut must still make progress.
	c, err := NewChunker(10, 9, 8)
	if err != nil {
		t.Fatal(err)
	}

	text := strings.Repeat("x", 100)
	chunks := c.Split(text)
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Offset <= chunks[i-1].Offset {
			t.Fatalf("chunk %d did not advance: offset %d after %d", i, chunks[i].Offset, chunks[i-1].Offset)
		}
	}
	last := chunks[len(chunks)-1]
	if last.Offset+len([]rune(last.Text)) != 100 {
		t.Fatalf("final chunk does not reach end of text")
	}
}

func TestChunkerUnicodeSafe(t *testing.T) {
	c, err := NewChunker(10, 2, 0)
	if err != nil {
		t.Fatal(err)
	}

	text := strings.Repeat("héllo wörld ", 10)
	for i, ch := range c.Split(text) {
		if !strings.Contains(text, ch.Text) {
			t.Fatalf("chunk %d is not a substring, multibyte runes were split: %q", i, ch.Text)
		}
	}
}
