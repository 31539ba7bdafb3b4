package services

import (
	"context"
	"fmt"
	"strings"

	"docqa-platform/internal/logger"
)

const classifierSystemPrompt = `You are a strict document classifier. You decide whether a document is a CV (curriculum vitae / resume).

A CV describes one person's professional profile: work experience, education, skills, and similar sections.

Answer with exactly one word: "yes" if the document is a CV, "no" otherwise. Do not explain.`

// classifierSampleChars bounds the text sent to the backend. The opening of a
// document is almost always enough to recognize a CV.
const classifierSampleChars = 6000

// Classifier asks the generation backend a single constrained yes/no question
// about the document text.
type Classifier struct {
	generator TextGenerator
}

func NewClassifier(generator TextGenerator) *Classifier {
	return &Classifier{generator: generator}
}

// Classify reports whether the text is a CV. A malformed or ambiguous backend
// response is logged and defaults to false rather than failing the pipeline;
// a backend failure after retries is returned as ErrGeneration.
func (c *Classifier) Classify(ctx context.Context, text string) (bool, error) {
	sample := truncateRunes(text, classifierSampleChars)

	prompt := fmt.Sprintf("Document text:\n\n%s\n\nIs this document a CV? Answer yes or no.", sample)
	response, err := c.generator.GenerateText(ctx, classifierSystemPrompt, prompt)
	if err != nil {
		return false, fmt.Errorf("%w: classification: %v", ErrGeneration, err)
	}

	verdict := firstWord(response)
	switch verdict {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		logger.Warn("classifier returned ambiguous verdict, defaulting to non-CV", "verdict", verdict)
		return false, nil
	}
}

func firstWord(s string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], ".,!:;\"'")
}

// truncateRunes cuts s to at most max runes without splitting a multi-byte
// character.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
