package logging

import "strings"

const redactedValue = "***"

// Keys whose values never appear in log output, matched case-insensitively
// as substrings so "hibp_api_key" and "Authorization" are both caught.
var sensitiveKeys = []string{
	"password",
	"token",
	"secret",
	"api_key",
	"authorization",
	"auth",
}

// RedactMap returns a copy of attrs safe to log: any key that looks like a
// credential has its value replaced. The input is never mutated.
func RedactMap(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if SensitiveKey(k) {
			out[k] = redactedValue
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = RedactMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// SensitiveKey reports whether a config or payload key should never be logged.
func SensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
