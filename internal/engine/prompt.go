package engine

import (
	"strings"

	"github.com/TeleQwen/TeleQwen/internal/tools"
)

// composePrompt assembles the full text sent to the reasoning process for
// one turn: persona and tool reference, then conversation history, then the
// resume context if any, then the current input.
func (e *Engine) composePrompt(input, history, taskContext string) string {
	var b strings.Builder
	b.WriteString(e.systemPrompt())
	if history != "" {
		b.WriteString("\n\n## Recent Conversation\n")
		b.WriteString(history)
	}
	if taskContext != "" {
		b.WriteString("\n\n## Task Context\n")
		b.WriteString(taskContext)
	}
	b.WriteString("\n\n## Current Message\n")
	b.WriteString(input)
	b.WriteString("\n\nRespond now. Use a tool if needed, otherwise answer directly.")
	return b.String()
}

func (e *Engine) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a persistent personal assistant agent running on the owner's machine.\n")
	b.WriteString("You work in multi-turn steps: issue at most one tool call per response, then\n")
	b.WriteString("wait for its result before deciding the next step.\n\n")
	b.WriteString(tools.Descriptions)
	if e.workspace != "" {
		b.WriteString("\n\nWorkspace directory: ")
		b.WriteString(e.workspace)
	}
	return b.String()
}
