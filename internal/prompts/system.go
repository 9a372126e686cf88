// Package prompts holds all model-facing prompt text and the
// user-facing fallback messages. Keeping prompt text in one package
// makes wording changes reviewable without touching control flow.
package prompts

import (
	"fmt"
	"strings"
)

// memoryContextTemplate frames retrieved long-term memories ahead of
// the user's query so the model can use them without being told to.
const memoryContextTemplate = `%s

User query: %s`

// WithMemoryContext prefixes the user input with retrieved memory
// context. An empty context returns the input unchanged.
func WithMemoryContext(memoryContext, userInput string) string {
	if strings.TrimSpace(memoryContext) == "" {
		return userInput
	}
	return fmt.Sprintf(memoryContextTemplate, memoryContext, userInput)
}

// PersonaPrefix prepends the active persona name to a response, the
// way the conversation surface labels who is speaking.
func PersonaPrefix(personaName, text string) string {
	if personaName == "" {
		return text
	}
	return fmt.Sprintf("[%s] %s", personaName, text)
}
