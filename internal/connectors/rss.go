package connectors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/leakwatch/leakwatch/internal/model"
	"github.com/leakwatch/leakwatch/internal/redaction"
	"github.com/leakwatch/leakwatch/internal/severity"
)

const feedSnippetLen = 280

// RSS parses a feed URL and matches every entry's combined title+summary text
// against each target value, case-insensitively. The feed body is fetched
// with the connector's own client so the pipeline timeout applies, then
// handed to gofeed, which understands RSS and Atom alike.
type RSS struct {
	HTTP *http.Client
}

func (*RSS) Kind() string { return model.ConnectorRSS }

func (c *RSS) Fetch(ctx context.Context, in FetchInput) ([]model.Finding, error) {
	feedURL := configString(in.Config, "url")
	if feedURL == "" {
		return nil, nil
	}

	feed, err := c.parse(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	var findings []model.Finding
	for _, entry := range feed.Items {
		content := entry.Title + " " + entry.Description
		lowered := strings.ToLower(content)
		entryID := entry.GUID
		if entryID == "" {
			entryID = entry.Link
		}
		for _, target := range in.Targets {
			if !strings.Contains(lowered, strings.ToLower(target.Value)) {
				continue
			}
			exposure := []string{"mention"}
			findings = append(findings, model.Finding{
				OrgID:         target.OrgID,
				Source:        model.ConnectorRSS,
				Confidence:    40,
				MatchedEntity: target.Value,
				ExposureTypes: exposure,
				RawSnippet:    redaction.SanitizeSnippet(redaction.Truncate(content, feedSnippetLen)),
				Severity:      severity.Classify(exposure),
				DedupeHash:    Fingerprint(model.ConnectorRSS, entryID),
				Metadata:      map[string]any{"link": entry.Link},
			})
		}
	}
	return findings, nil
}

func (c *RSS) parse(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("user-agent", userAgent)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rss fetch %s: %w", feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Source: model.ConnectorRSS, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rss fetch %s: %w", feedURL, err)
	}
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("rss fetch %s: parse feed: %w", feedURL, err)
	}
	return feed, nil
}
