package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToGitHubMarkdown(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "no formatting here", "no formatting here"},
		{"bold", "pod *web* restarted", "pod **web** restarted"},
		{"labelled link", "see <https://example.com/runbook|the runbook>", "see [the runbook](https://example.com/runbook)"},
		{"bare link", "docs at <https://example.com>", "docs at https://example.com"},
		{"link and bold", "*alert*: <https://x.io|details>", "**alert**: [details](https://x.io)"},
		{"crlf normalized", "line1\r\nline2", "line1\nline2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ToGitHubMarkdown(tc.in))
		})
	}
}
