package notebook

import (
	"fmt"
	"strings"

	"github.com/kalambet/pagewise/internal/retrieval"
	"github.com/kalambet/pagewise/internal/websearch"
)

// The gate and both answer prompts run at zero temperature.
const answerTemperature = 0

const sufficiencyPrompt = `You are evaluating whether the provided context contains sufficient information to answer the user's question.

Context:
%s

Question: %s

Does the context contain enough information to answer this question?
Respond with ONLY "YES" if the context provides a clear answer, or "NO" if it does not.

Response:`

const answerPrompt = `You are an AI assistant helping a user understand information from their documents.

Context from PDF:
%s

User Question: %s

Provide a clear, accurate answer based on the context above. Be concise but comprehensive.

Answer:`

const webAnswerPrompt = `You are an AI assistant helping a user with their question using web search results.

User Question: %s

Web Search Results:
%s

Provide a clear, accurate answer based on the web search results above. Cite sources where appropriate.

Answer:`

// joinContext concatenates chunk texts separated by blank lines.
func joinContext(chunks []retrieval.ScoredChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, "\n\n")
}

func webContext(results []websearch.Result) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("Title: %s\nURL: %s\nContent: %s", r.Title, r.URL, r.Content)
	}
	return strings.Join(blocks, "\n\n")
}
