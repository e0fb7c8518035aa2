package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/automaton-relay/internal/domain/reporting"
)

// GetSystemPrompt provides strict directions for the summary output.
func GetSystemPrompt() string {
	return `You are a senior site reliability engineer. Summarize the failure finding you are given in at most five short sentences of GitHub markdown. State the likely root cause first, then the most useful next diagnostic step. No headings, no code fences, no JSON.`
}

// GetUserPrompt flattens the finding into a compact description.
func GetUserPrompt(f *reporting.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Finding: %s\nSeverity: %s\nSource: %s\nCategory: %s\n",
		f.Title, f.Severity, f.Source, f.Category)
	if f.Subject.Name != "" {
		fmt.Fprintf(&b, "Subject: %s/%s (%s)\n", f.Subject.Namespace, f.Subject.Name, f.Subject.SubjectType)
	}
	if f.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", f.Description)
	}
	return b.String()
}
