package wire

import (
	"regexp"
	"strings"
)

// Upstream blocks carry Slack-flavored markdown (*bold*, <url|text>).
// The platform renders GitHub markdown, so reformat before sending.

var (
	slackBold     = regexp.MustCompile(`\*([^*\n]+)\*`)
	slackLink     = regexp.MustCompile(`<(https?://[^|>]+)\|([^>]+)>`)
	slackBareLink = regexp.MustCompile(`<(https?://[^|>]+)>`)
)

// ToGitHubMarkdown converts Slack markdown to the GitHub flavor.
func ToGitHubMarkdown(text string) string {
	if text == "" {
		return ""
	}
	out := slackLink.ReplaceAllString(text, `[$2]($1)`)
	out = slackBareLink.ReplaceAllString(out, `$1`)
	out = slackBold.ReplaceAllString(out, `**$1**`)
	return strings.ReplaceAll(out, "\r\n", "\n")
}
