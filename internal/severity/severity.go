// Package severity derives a finding's severity tier from its exposure tags.
package severity

import (
	"strings"

	"github.com/leakwatch/leakwatch/internal/model"
)

var highIndicators = map[string]struct{}{
	"password":    {},
	"hash":        {},
	"credentials": {},
	"credential":  {},
}

var mediumIndicators = map[string]struct{}{
	"phone":   {},
	"address": {},
	"email":   {},
	"ssn":     {},
}

// Classify maps a set of exposure tags to a severity tier. Membership is
// case-insensitive. Any high indicator wins over any medium indicator; tags
// outside both sets yield low.
func Classify(exposureTypes []string) string {
	severity := model.SeverityLow
	for _, tag := range exposureTypes {
		switch tag = strings.ToLower(tag); {
		case contains(highIndicators, tag):
			return model.SeverityHigh
		case contains(mediumIndicators, tag):
			severity = model.SeverityMedium
		}
	}
	return severity
}

func contains(set map[string]struct{}, tag string) bool {
	_, ok := set[tag]
	return ok
}
