package answer

import (
	"regexp"
	"strings"
)

// codeBlock matches fenced blocks tagged with a recognized web language. The
// word boundary keeps "```json" from matching as "js".
var codeBlock = regexp.MustCompile("```(?:javascript|typescript|html|css|jsx|tsx|js|ts)\\b([\\s\\S]*?)```")

// ParseResponse splits model output into the first recognized code block and
// the surrounding explanation. Without a recognized block, code is empty and
// the whole response is the explanation.
func ParseResponse(raw string) (code, explanation string) {
	if m := codeBlock.FindStringSubmatch(raw); m != nil {
		code = strings.TrimSpace(m[1])
	}
	explanation = strings.TrimSpace(codeBlock.ReplaceAllString(raw, ""))
	return code, explanation
}

// contextSummary is what the assistant turn records: the explanation for
// plain answers, a truncated code marker for coding answers.
func contextSummary(code, explanation string) string {
	if code == "" {
		return explanation
	}
	r := []rune(code)
	if len(r) > 100 {
		r = r[:100]
	}
	return "Code: " + string(r) + "..."
}
