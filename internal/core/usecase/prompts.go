package usecase

import (
	"fmt"
	"strings"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
)

const compressionEmptyMarker = "NO_RELEVANT_CONTENT"

func buildCompressionPrompt(query, chunkText string) string {
	return fmt.Sprintf(`Extract from the passage below only the sentences relevant to the question.
Return the sentences verbatim, without commentary. If nothing in the passage
is relevant, return exactly %s.

Question: %s

Passage:
%s`, compressionEmptyMarker, query, chunkText)
}

func buildReformulationPrompt(query string, count int) string {
	return fmt.Sprintf(`Rewrite the following question %d different ways to improve document search recall.
Keep the meaning identical. Return one rewrite per line with no numbering and no commentary.

Question: %s`, count, query)
}

func buildPlanPrompt(question, toolCatalog string) string {
	return fmt.Sprintf(`You route questions for a financial assistant. Decide which sources answer the question:
- "documents" for conceptual or explanatory questions answerable from a document corpus
- "tools" for real-time or numeric questions needing live data
- "both" when the question mixes the two

Available tools:
%s
Respond with a single JSON object, nothing else:
{"route": "documents" | "tools" | "both", "tools": [{"name": "...", "args": {...}}]}
The "tools" array lists the calls to make and must be empty when route is "documents".

Question: %s`, toolCatalog, question)
}

func buildSynthesisPrompt(question string, results []domain.RetrievalResult, toolOutputs []string, notes []string) string {
	var sb strings.Builder
	sb.WriteString(`Answer the user's question using only the material below.
Cite document excerpts by their bracketed source markers, for example [annual_report.pdf, page 12].
For numeric facts taken from live tools, state the tool and the data timestamp.
When a document and a live tool disagree on a current figure, prefer the live tool value and do not cite the document for that figure.
If the material does not cover the question, say so and answer from general knowledge without inventing citations.

`)

	if len(results) > 0 {
		sb.WriteString("Document excerpts:\n")
		for _, result := range results {
			citation := domain.Citation{
				SourceName: result.Chunk.SourceName,
				PageNumber: result.Chunk.PageNumber,
			}
			fmt.Fprintf(&sb, "[%s]\n%s\n\n", citation.String(), result.Chunk.Text)
		}
	}
	if len(toolOutputs) > 0 {
		sb.WriteString("Live tool results:\n")
		for _, output := range toolOutputs {
			fmt.Fprintf(&sb, "- %s\n", output)
		}
		sb.WriteString("\n")
	}
	if len(notes) > 0 {
		sb.WriteString("Limitations to mention:\n")
		for _, note := range notes {
			fmt.Fprintf(&sb, "- %s\n", note)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Question: %s", question)
	return sb.String()
}

const planningFailedApology = "I could not work out how to answer that question. Please try rephrasing it."
