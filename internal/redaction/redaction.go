// Package redaction applies declarative remove/mask policies to structured
// alert payloads and normalizes raw snippets before they become findings.
package redaction

import (
	"maps"
	"strings"
)

// Marker replaces or prefixes masked values.
const Marker = "***"

// Mask kinds accepted in Policy.MaskFields.
const (
	MaskLast3 = "last3"
	MaskFull  = "full"
)

// snippetMaxLen bounds stored snippet size.
const snippetMaxLen = 500

// Policy is a declarative redaction instruction set. The zero value redacts
// nothing.
type Policy struct {
	RemoveFields []string          `json:"remove_fields,omitempty"`
	MaskFields   map[string]string `json:"mask_fields,omitempty"`
}

// IsZero reports whether the policy performs no redaction.
func (p Policy) IsZero() bool {
	return len(p.RemoveFields) == 0 && len(p.MaskFields) == 0
}

// Apply returns a copy of payload with the policy applied. Removal wins over
// masking for a field listed in both: a removed key never reappears. Masking
// only touches string-valued fields; absent or non-string fields are left as
// they are.
func Apply(payload map[string]any, policy Policy) map[string]any {
	out := make(map[string]any, len(payload))
	maps.Copy(out, payload)

	for _, field := range policy.RemoveFields {
		delete(out, field)
	}
	for field, kind := range policy.MaskFields {
		value, ok := out[field]
		if !ok {
			continue
		}
		s, ok := value.(string)
		if !ok {
			continue
		}
		switch kind {
		case MaskLast3:
			out[field] = Marker + lastN(s, 3)
		case MaskFull:
			out[field] = Marker
		}
	}
	return out
}

// SanitizeSnippet collapses whitespace runs to single spaces, trims, and
// truncates to 500 characters. Applied to every raw snippet before storage.
func SanitizeSnippet(snippet string) string {
	collapsed := strings.Join(strings.Fields(snippet), " ")
	return Truncate(collapsed, snippetMaxLen)
}

// Truncate shortens s to at most n characters (runes, not bytes, so a
// multi-byte character is never split).
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func lastN(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
