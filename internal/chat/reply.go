package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	"kamiscan-backend/internal/llm"
	"kamiscan-backend/internal/summaries"
)

const (
	defaultConfidence = 0.9
	basicCitationMax  = 3
	basicCitationMin  = 50
)

// reply is the annotated assistant turn after the stream completed.
type reply struct {
	Content     string
	Citations   []summaries.Citation
	Suggestions []string
	Confidence  float64
	Structured  bool
}

type structuredReply struct {
	Content     string               `json:"content"`
	Citations   []summaries.Citation `json:"citations"`
	Suggestions []string             `json:"suggestions"`
	Confidence  float64              `json:"confidence"`
}

// parseReply reads the first balanced JSON object embedded in the model text.
// When none parses, citations are synthesized from the document summary.
func parseReply(text, documentSummary string) reply {
	out := reply{Content: text, Confidence: defaultConfidence}
	raw, ok := llm.FirstJSONObject(text)
	if !ok {
		out.Citations = basicCitations(documentSummary)
		return out
	}
	var parsed structuredReply
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		out.Citations = basicCitations(documentSummary)
		return out
	}
	out.Structured = true
	out.Citations = parsed.Citations
	out.Suggestions = parsed.Suggestions
	if parsed.Confidence > 0 {
		out.Confidence = parsed.Confidence
	}
	if content := strings.TrimSpace(parsed.Content); content != "" {
		out.Content = content
	}
	return out
}

// basicCitations quotes the first sentences of the summary as page references.
func basicCitations(documentSummary string) []summaries.Citation {
	sentences := strings.Split(documentSummary, ". ")
	if len(sentences) > basicCitationMax {
		sentences = sentences[:basicCitationMax]
	}
	citations := []summaries.Citation{}
	for i, sentence := range sentences {
		if len(sentence) <= basicCitationMin {
			continue
		}
		citations = append(citations, summaries.Citation{
			Page:      i + 1,
			Text:      strings.TrimSpace(sentence),
			Relevance: 0.7 - float64(i)*0.1,
			Context:   fmt.Sprintf("Context from page %d", i+1),
		})
	}
	return citations
}

// estimateTokens approximates token usage at four characters per token.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
