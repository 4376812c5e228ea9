package connectors

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/leakwatch/leakwatch/internal/model"
)

func TestHIBPFetch(t *testing.T) {
	t.Parallel()

	c := &HIBP{HTTP: fakeClient(func(req *http.Request) (*http.Response, error) {
		if got := req.Header.Get("hibp-api-key"); got != "key-123" {
			t.Errorf("api key header = %q", got)
		}
		switch req.URL.Path {
		case "/api/v3/breachedaccount/breached@example.com":
			return jsonResponse(req, http.StatusOK,
				`[{"Name":"Adobe","DataClasses":["Email addresses","Passwords"]},`+
					`{"Name":"LinkedIn","DataClasses":["email"]}]`), nil
		case "/api/v3/breachedaccount/clean@example.com":
			return jsonResponse(req, http.StatusNotFound, `{"statusCode":404}`), nil
		default:
			t.Errorf("unexpected path %q", req.URL.Path)
			return jsonResponse(req, http.StatusNotFound, `{}`), nil
		}
	})}

	in := FetchInput{
		OrgID: "org-1",
		Targets: []model.Target{
			{OrgID: "org-1", Type: model.TargetEmail, Value: "breached@example.com"},
			{OrgID: "org-1", Type: model.TargetEmail, Value: "clean@example.com"},
			{OrgID: "org-1", Type: model.TargetDomain, Value: "example.com"},
		},
		Config:  map[string]any{"base_url": "https://hibp.test/api/v3/breachedaccount"},
		Secrets: map[string]string{"api_key": "key-123"},
	}

	findings, err := c.Fetch(context.Background(), in)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}

	adobe := findings[0]
	if adobe.Confidence != 90 || adobe.Source != "hibp" || adobe.MatchedEntity != "breached@example.com" {
		t.Fatalf("unexpected finding: %#v", adobe)
	}
	if len(adobe.ExposureTypes) != 2 || adobe.ExposureTypes[1] != "Passwords" {
		t.Fatalf("exposure types = %v", adobe.ExposureTypes)
	}
	// "Passwords" is not in the high set; "Email addresses" is not in the
	// medium set. Exact tag membership decides, not substrings.
	if adobe.Severity != model.SeverityLow {
		t.Fatalf("severity = %q, want low", adobe.Severity)
	}
	if adobe.DedupeHash != Fingerprint("hibp", "breached@example.com", "Adobe") {
		t.Fatalf("unexpected dedupe hash %q", adobe.DedupeHash)
	}
	if findings[1].Severity != model.SeverityMedium {
		t.Fatalf("LinkedIn severity = %q, want medium", findings[1].Severity)
	}
}

func TestHIBPFetchFatalOnServerError(t *testing.T) {
	t.Parallel()

	c := &HIBP{HTTP: fakeClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(req, http.StatusTooManyRequests, `{"statusCode":429}`), nil
	})}

	in := FetchInput{
		OrgID:   "org-1",
		Targets: []model.Target{{OrgID: "org-1", Type: model.TargetEmail, Value: "a@example.com"}},
		Config:  map[string]any{"base_url": "https://hibp.test/api/v3/breachedaccount"},
	}

	_, err := c.Fetch(context.Background(), in)
	if !errors.Is(err, ErrAPI) {
		t.Fatalf("Fetch error = %v, want ErrAPI", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("unexpected api error: %v", err)
	}
}

func TestHIBPFetchSkipsNonEmailTargets(t *testing.T) {
	t.Parallel()

	c := &HIBP{HTTP: fakeClient(func(req *http.Request) (*http.Response, error) {
		t.Errorf("unexpected request for non-email target: %s", req.URL)
		return jsonResponse(req, http.StatusOK, `[]`), nil
	})}

	in := FetchInput{
		OrgID:   "org-1",
		Targets: []model.Target{{OrgID: "org-1", Type: model.TargetDomain, Value: "example.com"}},
	}

	findings, err := c.Fetch(context.Background(), in)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("expected no findings, got %d", len(findings))
	}
}
