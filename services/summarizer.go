package services

import (
	"context"
	"fmt"
	"strings"
)

const summarizerSystemPrompt = `You are a precise document summarizer. Write a summary of 2 to 5 sentences in plain prose.

State what kind of document it is and its key content. Do not use bullet points, headings, or preamble like "This document...is summarized as". Do not invent facts that are not in the text.`

// summarizerSampleChars bounds the text sent to the backend. Long documents
// are sampled from the head, middle, and tail so the summary reflects the
// whole document, not just its opening.
const summarizerSampleChars = 18000

// Summarizer produces a short prose summary of the document via the
// generation backend.
type Summarizer struct {
	generator TextGenerator
}

func NewSummarizer(generator TextGenerator) *Summarizer {
	return &Summarizer{generator: generator}
}

func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf("Summarize the following document:\n\n%s", sampleForSummary(text, summarizerSampleChars))
	summary, err := s.generator.GenerateText(ctx, summarizerSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: summarization: %v", ErrGeneration, err)
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", fmt.Errorf("%w: summarization returned empty text", ErrGeneration)
	}
	return summary, nil
}

// sampleForSummary keeps the head of a long document plus slices from the
// middle and the tail, at a 60/20/20 split, with elision markers between the
// parts.
func sampleForSummary(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	headLen := max * 6 / 10
	midLen := max * 2 / 10
	tailLen := max - headLen - midLen

	midStart := len(runes)/2 - midLen/2
	head := string(runes[:headLen])
	mid := string(runes[midStart : midStart+midLen])
	tail := string(runes[len(runes)-tailLen:])

	return head + "\n\n[...]\n\n" + mid + "\n\n[...]\n\n" + tail
}
