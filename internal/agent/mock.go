package agent

import "fmt"

// mockPromptChars is how much of the prompt a mock response echoes.
const mockPromptChars = 50

// MockOutput is the deterministic reply returned in test mode, where no agent
// is started.
func MockOutput(prompt, focusPath string) string {
	r := []rune(prompt)
	if len(r) > mockPromptChars {
		r = r[:mockPromptChars]
	}
	return fmt.Sprintf("Mock response for prompt: \"%s...\"\nInspected path: %s", string(r), focusPath)
}
