package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"

	"github.com/leakwatch/leakwatch/internal/model"
	"github.com/leakwatch/leakwatch/internal/redaction"
	"github.com/leakwatch/leakwatch/internal/severity"
)

const defaultDehashedBaseURL = "https://api.dehashed.com/search"

// Dehashed queries a credential-search endpoint once per target with basic
// auth. A 401 for a query skips that target; other non-success statuses are
// fatal. Exposure types are derived from which non-empty keys exist on each
// result entry.
type Dehashed struct {
	HTTP *http.Client
}

func (*Dehashed) Kind() string { return model.ConnectorDehashed }

func (c *Dehashed) Fetch(ctx context.Context, in FetchInput) ([]model.Finding, error) {
	baseURL := configStringDefault(in.Config, "base_url", defaultDehashedBaseURL)
	username := in.Secrets["username"]
	apiKey := in.Secrets["api_key"]

	var findings []model.Finding
	for _, target := range in.Targets {
		entries, skip, err := c.search(ctx, baseURL, username, apiKey, target.Value)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}
		for _, entry := range entries {
			exposure := populatedKeys(entry)
			snippet := fmt.Sprintf("DeHashed entry for %s", target.Value)
			findings = append(findings, model.Finding{
				OrgID:         target.OrgID,
				Source:        model.ConnectorDehashed,
				Confidence:    70,
				MatchedEntity: target.Value,
				ExposureTypes: exposure,
				RawSnippet:    redaction.SanitizeSnippet(snippet),
				Severity:      severity.Classify(exposure),
				DedupeHash:    Fingerprint(model.ConnectorDehashed, target.Value, entryID(entry)),
				Metadata:      map[string]any{"entry": entry},
			})
		}
	}
	return findings, nil
}

func (c *Dehashed) search(ctx context.Context, baseURL, username, apiKey, query string) (entries []map[string]any, skip bool, err error) {
	endpoint := baseURL + "?query=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, err
	}
	req.SetBasicAuth(username, apiKey)
	req.Header.Set("user-agent", userAgent)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("dehashed search %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, true, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false, &APIError{Source: model.ConnectorDehashed, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("dehashed search %q: %w", query, err)
	}
	var payload struct {
		Entries []map[string]any `json:"entries"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false, fmt.Errorf("dehashed search %q: decode response: %w", query, err)
	}
	return payload.Entries, false, nil
}

// populatedKeys lists the entry keys holding non-empty values, sorted so the
// derived exposure set is deterministic.
func populatedKeys(entry map[string]any) []string {
	keys := make([]string, 0, len(entry))
	for key, value := range entry {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			if v == "" {
				continue
			}
		case bool:
			if !v {
				continue
			}
		case float64:
			if v == 0 {
				continue
			}
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func entryID(entry map[string]any) string {
	if id, ok := entry["id"]; ok && id != nil {
		return fmt.Sprint(id)
	}
	return ""
}
