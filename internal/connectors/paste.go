package connectors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/leakwatch/leakwatch/internal/model"
	"github.com/leakwatch/leakwatch/internal/redaction"
	"github.com/leakwatch/leakwatch/internal/severity"
)

// maxPasteBodySize caps how much of a paste body is read. Public paste dumps
// can be arbitrarily large.
const maxPasteBodySize = 1 << 20

// PublicPaste fetches a single URL's raw text body and matches each target
// value against the whole body, case-insensitively.
type PublicPaste struct {
	HTTP *http.Client
}

func (*PublicPaste) Kind() string { return model.ConnectorPublicPaste }

func (c *PublicPaste) Fetch(ctx context.Context, in FetchInput) ([]model.Finding, error) {
	pasteURL := configString(in.Config, "url")
	if pasteURL == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pasteURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("user-agent", userAgent)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("public_paste fetch %s: %w", pasteURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Source: model.ConnectorPublicPaste, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPasteBodySize))
	if err != nil {
		return nil, fmt.Errorf("public_paste fetch %s: %w", pasteURL, err)
	}
	content := string(body)
	lowered := strings.ToLower(content)

	var findings []model.Finding
	for _, target := range in.Targets {
		if !strings.Contains(lowered, strings.ToLower(target.Value)) {
			continue
		}
		exposure := []string{"mention"}
		findings = append(findings, model.Finding{
			OrgID:         target.OrgID,
			Source:        model.ConnectorPublicPaste,
			Confidence:    35,
			MatchedEntity: target.Value,
			ExposureTypes: exposure,
			RawSnippet:    redaction.SanitizeSnippet(redaction.Truncate(content, feedSnippetLen)),
			Severity:      severity.Classify(exposure),
			DedupeHash:    Fingerprint("paste", target.Value, pasteURL),
			Metadata:      map[string]any{"url": pasteURL},
		})
	}
	return findings, nil
}
