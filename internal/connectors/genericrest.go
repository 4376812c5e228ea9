package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/leakwatch/leakwatch/internal/model"
	"github.com/leakwatch/leakwatch/internal/redaction"
	"github.com/leakwatch/leakwatch/internal/severity"
)

// GenericRest performs a single GET against a configured URL and maps each
// item of the response's "findings" list to a candidate finding. It does not
// iterate targets; the org comes from the calling connector, not from target
// ownership.
type GenericRest struct {
	HTTP *http.Client
}

func (*GenericRest) Kind() string { return model.ConnectorGenericRest }

func (c *GenericRest) Fetch(ctx context.Context, in FetchInput) ([]model.Finding, error) {
	endpoint := configString(in.Config, "url")
	if endpoint == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("user-agent", userAgent)
	for name, value := range configHeaders(in.Config, "headers") {
		req.Header.Set(name, value)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generic_rest fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Source: model.ConnectorGenericRest, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("generic_rest fetch: %w", err)
	}
	var payload struct {
		Findings []map[string]any `json:"findings"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("generic_rest fetch: decode response: %w", err)
	}

	findings := make([]model.Finding, 0, len(payload.Findings))
	for _, item := range payload.Findings {
		exposure := stringSlice(item["exposure_types"])
		findings = append(findings, model.Finding{
			OrgID:         in.OrgID,
			Source:        model.ConnectorGenericRest,
			Confidence:    itemConfidence(item),
			MatchedEntity: itemString(item, "matched_entity", "unknown"),
			ExposureTypes: exposure,
			RawSnippet:    redaction.SanitizeSnippet(itemString(item, "raw_snippet", "")),
			Severity:      severity.Classify(exposure),
			DedupeHash:    itemFingerprint(item),
			Metadata:      item,
		})
	}
	return findings, nil
}

func itemConfidence(item map[string]any) int {
	if v, ok := item["confidence"].(float64); ok {
		return int(v)
	}
	return 50
}

// itemString defaults only when the key is absent; a present empty string is
// kept as-is.
func itemString(item map[string]any, key, def string) string {
	v, ok := item[key]
	if !ok {
		return def
	}
	s, _ := v.(string)
	return s
}
