package businessflow

import "strings"

const feedbackHeader = "REVIEWER FEEDBACK (must address):"

// buildPrompt folds reviewer notes into the base prompt as an explicit trailing block
func buildPrompt(basePrompt string, notes []string) string {
	base := strings.TrimSpace(basePrompt)

	var lines []string
	for _, n := range notes {
		if n = strings.TrimSpace(n); n != "" {
			lines = append(lines, "- "+n)
		}
	}
	if len(lines) == 0 {
		return base
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\n")
	b.WriteString(feedbackHeader)
	b.WriteString("\n")
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

