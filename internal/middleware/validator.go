package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var (
	tenantPattern  = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	actionPattern  = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)
	clusterPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,128}$`)
)

// ValidateTenantID validates tenant ID format
func ValidateTenantID(tenant string) error {
	if tenant == "" {
		return fmt.Errorf("tenant ID cannot be empty")
	}
	if !tenantPattern.MatchString(tenant) {
		return fmt.Errorf("invalid tenant ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateAction validates a callback action name
func ValidateAction(action string) error {
	if action == "" {
		return fmt.Errorf("action cannot be empty")
	}
	if !actionPattern.MatchString(action) {
		return fmt.Errorf("invalid action name (lowercase alphanumeric and underscore only, max 64 chars)")
	}
	return nil
}

// ValidateClusterName validates a cluster name
func ValidateClusterName(cluster string) error {
	if cluster == "" {
		return fmt.Errorf("cluster name cannot be empty")
	}
	if !clusterPattern.MatchString(cluster) {
		return fmt.Errorf("invalid cluster name format")
	}
	return nil
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}
