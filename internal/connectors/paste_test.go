package connectors

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/leakwatch/leakwatch/internal/model"
)

func TestPublicPasteFetch(t *testing.T) {
	t.Parallel()

	body := "dump 2024\nUSER@EXAMPLE.COM:hunter2\nother@else.net:pass\n"
	c := &PublicPaste{HTTP: fakeClient(func(req *http.Request) (*http.Response, error) {
		return textResponse(req, http.StatusOK, body), nil
	})}

	in := FetchInput{
		OrgID: "org-1",
		Targets: []model.Target{
			{OrgID: "org-1", Type: model.TargetEmail, Value: "user@example.com"},
			{OrgID: "org-1", Type: model.TargetDomain, Value: "missing.example"},
		},
		Config: map[string]any{"url": "https://paste.test/raw/abc"},
	}

	findings, err := c.Fetch(context.Background(), in)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}

	f := findings[0]
	if f.Confidence != 35 || f.Source != "public_paste" {
		t.Fatalf("unexpected finding: %#v", f)
	}
	if f.DedupeHash != Fingerprint("paste", "user@example.com", "https://paste.test/raw/abc") {
		t.Fatalf("unexpected dedupe hash %q", f.DedupeHash)
	}
	if f.Severity != model.SeverityLow {
		t.Fatalf("severity = %q, want low", f.Severity)
	}
	if strings.Contains(f.RawSnippet, "\n") {
		t.Fatalf("snippet not sanitized: %q", f.RawSnippet)
	}
	if f.Metadata["url"] != "https://paste.test/raw/abc" {
		t.Fatalf("metadata = %#v", f.Metadata)
	}
}

func TestPublicPasteSnippetBounded(t *testing.T) {
	t.Parallel()

	body := "user@example.com " + strings.Repeat("a", 1000)
	c := &PublicPaste{HTTP: fakeClient(func(req *http.Request) (*http.Response, error) {
		return textResponse(req, http.StatusOK, body), nil
	})}

	in := FetchInput{
		OrgID:   "org-1",
		Targets: []model.Target{{OrgID: "org-1", Type: model.TargetEmail, Value: "user@example.com"}},
		Config:  map[string]any{"url": "https://paste.test/raw/abc"},
	}

	findings, err := c.Fetch(context.Background(), in)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if got := len(findings[0].RawSnippet); got != 280 {
		t.Fatalf("snippet length = %d, want 280", got)
	}
}

func TestPublicPasteFetchFatalOnError(t *testing.T) {
	t.Parallel()

	c := &PublicPaste{HTTP: fakeClient(func(req *http.Request) (*http.Response, error) {
		return textResponse(req, http.StatusForbidden, ""), nil
	})}

	in := FetchInput{
		OrgID:   "org-1",
		Targets: []model.Target{{OrgID: "org-1", Type: model.TargetEmail, Value: "user@example.com"}},
		Config:  map[string]any{"url": "https://paste.test/raw/abc"},
	}

	_, err := c.Fetch(context.Background(), in)
	if !errors.Is(err, ErrAPI) {
		t.Fatalf("Fetch error = %v, want ErrAPI", err)
	}
}
