package reporting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFindingDefaults(t *testing.T) {
	f := NewFinding(Finding{Title: "pod crash", Severity: SeverityHigh})

	require.NotEmpty(t, f.Fingerprint)
	assert.False(t, f.CreatedAt.IsZero())
	assert.Equal(t, SubjectTypeNone, f.Subject.SubjectType)

	other := NewFinding(Finding{Title: "pod crash", Severity: SeverityHigh})
	assert.NotEqual(t, f.Fingerprint, other.Fingerprint)
}

func TestNewFindingKeepsExplicitFingerprint(t *testing.T) {
	f := NewFinding(Finding{Fingerprint: "abc123"})
	assert.Equal(t, "abc123", f.Fingerprint)
}
