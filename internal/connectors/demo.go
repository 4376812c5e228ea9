package connectors

import (
	"context"
	"fmt"

	"github.com/leakwatch/leakwatch/internal/model"
	"github.com/leakwatch/leakwatch/internal/redaction"
	"github.com/leakwatch/leakwatch/internal/severity"
)

// Demo synthesizes one placeholder finding per target. No network I/O; used
// for onboarding and pipeline testing.
type Demo struct{}

func (*Demo) Kind() string { return model.ConnectorDemo }

func (*Demo) Fetch(_ context.Context, in FetchInput) ([]model.Finding, error) {
	findings := make([]model.Finding, 0, len(in.Targets))
	for _, target := range in.Targets {
		exposure := []string{"mention"}
		if target.Type == model.TargetEmail {
			exposure = []string{"email"}
		}
		snippet := fmt.Sprintf("Demo leak mention for %s with placeholder data", target.Value)
		findings = append(findings, model.Finding{
			OrgID:         target.OrgID,
			Source:        model.ConnectorDemo,
			Confidence:    55,
			MatchedEntity: target.Value,
			ExposureTypes: exposure,
			RawSnippet:    redaction.SanitizeSnippet(snippet),
			Severity:      severity.Classify(exposure),
			DedupeHash:    Fingerprint(model.ConnectorDemo, target.Value),
			Metadata:      map[string]any{"note": "demo"},
		})
	}
	return findings, nil
}
