package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/leakwatch/leakwatch/internal/model"
	"github.com/leakwatch/leakwatch/internal/redaction"
	"github.com/leakwatch/leakwatch/internal/severity"
)

const defaultHIBPBaseURL = "https://haveibeenpwned.com/api/v3/breachedaccount"

// HIBP queries a breached-account lookup endpoint once per email target.
// A 404 for a target means "not breached" and yields nothing; any other
// non-success status is fatal for the whole fetch.
type HIBP struct {
	HTTP *http.Client
}

func (*HIBP) Kind() string { return model.ConnectorHIBP }

func (c *HIBP) Fetch(ctx context.Context, in FetchInput) ([]model.Finding, error) {
	baseURL := configStringDefault(in.Config, "base_url", defaultHIBPBaseURL)
	apiKey := in.Secrets["api_key"]

	var findings []model.Finding
	for _, target := range in.Targets {
		if target.Type != model.TargetEmail {
			continue
		}
		breaches, err := c.lookup(ctx, baseURL, apiKey, target.Value)
		if err != nil {
			return nil, err
		}
		for _, breach := range breaches {
			name, _ := breach["Name"].(string)
			exposure := stringSlice(breach["DataClasses"])
			snippet := fmt.Sprintf("HIBP breach %s affecting %s", name, target.Value)
			findings = append(findings, model.Finding{
				OrgID:         target.OrgID,
				Source:        model.ConnectorHIBP,
				Confidence:    90,
				MatchedEntity: target.Value,
				ExposureTypes: exposure,
				RawSnippet:    redaction.SanitizeSnippet(snippet),
				Severity:      severity.Classify(exposure),
				DedupeHash:    Fingerprint(model.ConnectorHIBP, target.Value, name),
				Metadata:      map[string]any{"breach": breach},
			})
		}
	}
	return findings, nil
}

func (c *HIBP) lookup(ctx context.Context, baseURL, apiKey, account string) ([]map[string]any, error) {
	endpoint := baseURL + "/" + url.PathEscape(account)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("hibp-api-key", apiKey)
	req.Header.Set("user-agent", userAgent)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hibp lookup %s: %w", account, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Source: model.ConnectorHIBP, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("hibp lookup %s: %w", account, err)
	}
	var breaches []map[string]any
	if err := json.Unmarshal(body, &breaches); err != nil {
		return nil, fmt.Errorf("hibp lookup %s: decode response: %w", account, err)
	}
	return breaches, nil
}

func stringSlice(value any) []string {
	raw, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
