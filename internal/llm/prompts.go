package llm

import (
	_ "embed"
	"strings"
)

// Prompt template names.
const (
	PromptSummarize        = "summarize"
	PromptAdvanced         = "advanced"
	PromptChatSearch       = "chat_search"
	PromptChatConversation = "chat_conversation"
)

var (
	//go:embed prompts/summarize.txt
	promptSummarize string
	//go:embed prompts/advanced.txt
	promptAdvanced string
	//go:embed prompts/chat_search.txt
	promptChatSearch string
	//go:embed prompts/chat_conversation.txt
	promptChatConversation string
)

// PromptTemplate returns the template text and whether the name was recognized.
func PromptTemplate(name string) (string, bool) {
	switch name {
	case PromptSummarize:
		return promptSummarize, true
	case PromptAdvanced:
		return promptAdvanced, true
	case PromptChatSearch:
		return promptChatSearch, true
	case PromptChatConversation:
		return promptChatConversation, true
	default:
		return "", false
	}
}

// RenderPrompt substitutes {{KEY}} placeholders. Unknown names render empty.
func RenderPrompt(name string, vars map[string]string) string {
	template, ok := PromptTemplate(name)
	if !ok {
		return ""
	}
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.TrimSpace(strings.NewReplacer(pairs...).Replace(template))
}
