package answer

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/cue/internal/analyzer"
)

// SystemPrompt is sent with every generation request.
const SystemPrompt = "You are an expert Senior UX Developer in a technical interview."

const technicalPrompt = `You are an expert Senior UX Developer in a technical interview.
Provide a comprehensive, technically accurate response to the following question:

Question: %s`

// CodingInstruction opens every coding prompt.
const CodingInstruction = "Write clean, efficient, production-quality code"

const codingPrompt = `You are an expert Senior UX Developer in a technical interview.
` + CodingInstruction + ` for the following task:

%s

Provide your solution in this format:
1. First, the complete code solution in a single markdown code block tagged with its language
2. Then, a detailed line-by-line explanation of how the code works

Focus on creating elegant, maintainable code that follows best practices for UX development.`

const technicalClosing = "Your response should be detailed but concise, showcasing senior-level understanding."

// BuildPrompt renders the user prompt for an admitted analysis. history is
// the formatted conversation, only used for follow-ups.
func BuildPrompt(a analyzer.Analysis, history string) string {
	var sb strings.Builder
	if a.IsCodingRequest {
		fmt.Fprintf(&sb, codingPrompt, a.SourceText)
	} else {
		fmt.Fprintf(&sb, technicalPrompt, a.SourceText)
	}

	if len(a.Keywords) > 0 {
		sb.WriteString("\n\nFocus on these key concepts: ")
		sb.WriteString(strings.Join(a.Keywords, ", "))
	}

	if a.IsFollowUp {
		sb.WriteString("\n\nThis is a follow-up question. Previous context: ")
		sb.WriteString(a.ContextSnapshot)
		if history != "" {
			sb.WriteString("\n\nConversation so far:\n")
			sb.WriteString(history)
		}
	}

	if !a.IsCodingRequest {
		sb.WriteString("\n\n")
		sb.WriteString(technicalClosing)
	}
	return sb.String()
}
