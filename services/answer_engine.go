package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docqa-platform/internal/logger"
	"docqa-platform/internal/vector"
	"docqa-platform/models"
)

// NoInformationAnswer is the deterministic reply returned without calling the
// generation backend when retrieval yields nothing for a question.
const NoInformationAnswer = "The document does not contain information relevant to this question."

const answerSystemPrompt = `You answer questions strictly from the provided document excerpts.

Rules:
- Use only the excerpts below. Do not use outside knowledge.
- If the excerpts do not contain the answer, say the document does not contain that information.
- Answer directly, without preamble and without citing excerpt numbers.`

// AnswerEngine serves grounded question answering over a single document's
// indexed chunks. The question is embedded with the same backend that
// embedded the chunks, the top chunks by cosine similarity become the prompt
// context, and for CV documents the answer is capped to max_words.
type AnswerEngine struct {
	registry  DocumentRegistry
	index     vector.Index
	embedder  Embedder
	generator TextGenerator

	topK           int
	strictMaxWords bool
}

func NewAnswerEngine(registry DocumentRegistry, index vector.Index, embedder Embedder, generator TextGenerator, topK int, strictMaxWords bool) *AnswerEngine {
	if topK <= 0 {
		topK = 4
	}
	return &AnswerEngine{
		registry:       registry,
		index:          index,
		embedder:       embedder,
		generator:      generator,
		topK:           topK,
		strictMaxWords: strictMaxWords,
	}
}

// Answer runs retrieval and generation for one question against one document.
// maxWords <= 0 means unconstrained. For non-CV documents maxWords is either
// rejected (strict mode) or ignored with a log line; it never silently
// truncates a non-CV answer.
func (e *AnswerEngine) Answer(ctx context.Context, docID, question string, maxWords int) (*models.AskResponse, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question must not be empty", ErrConfig)
	}

	doc, err := e.registry.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, docID)
	}

	if maxWords > 0 && !doc.IsCV {
		if e.strictMaxWords {
			return nil, fmt.Errorf("%w: document %s is not a CV", ErrMaxWordsNotAllowed, docID)
		}
		logger.Warn("ignoring max_words for non-CV document", "doc_id", docID, "max_words", maxWords)
		maxWords = 0
	}

	queryVec, err := e.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: embed question: %v", ErrEmbedding, err)
	}

	results, err := e.index.Query(ctx, docID, queryVec, e.topK)
	if errors.Is(err, vector.ErrNoCollection) {
		logger.Warn("question against unindexed document", "doc_id", docID, "status", doc.Status)
		return &models.AskResponse{Answer: NoInformationAnswer, IsCV: doc.IsCV}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	if len(results) == 0 {
		return &models.AskResponse{Answer: NoInformationAnswer, IsCV: doc.IsCV}, nil
	}

	answer, err := e.generator.GenerateText(ctx, answerSystemPrompt, buildAnswerPrompt(question, results, doc.IsCV, maxWords))
	if err != nil {
		return nil, fmt.Errorf("%w: answer generation: %v", ErrGeneration, err)
	}

	answer = strings.TrimSpace(answer)
	if doc.IsCV && maxWords > 0 {
		answer = TruncateWords(answer, maxWords)
	}
	return &models.AskResponse{Answer: answer, IsCV: doc.IsCV}, nil
}

func buildAnswerPrompt(question string, results []vector.Result, isCV bool, maxWords int) string {
	var sb strings.Builder
	sb.WriteString("Document excerpts:\n\n")
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		sb.WriteString(r.Text)
	}
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	if isCV && maxWords > 0 {
		fmt.Fprintf(&sb, "\n\nAnswer in at most %d words.", maxWords)
	}
	return sb.String()
}

// TruncateWords enforces a hard word ceiling. The prompt already asks the
// model to stay under it; this is the guarantee when the model overshoots.
// Answers at or under the limit pass through with their whitespace untouched.
func TruncateWords(s string, max int) string {
	fields := strings.Fields(s)
	if len(fields) <= max {
		return s
	}
	return strings.Join(fields[:max], " ")
}
