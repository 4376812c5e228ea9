package integrations

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func fakeClient(fn roundTripperFunc) *http.Client {
	return &http.Client{Transport: fn}
}

func response(req *http.Request, status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(`{}`)),
		Request:    req,
	}
}

func TestDefaultRegistryKinds(t *testing.T) {
	t.Parallel()

	reg := Default(nil)
	for _, kind := range []string{"jira", "o365", "trellix", "webhook"} {
		s, err := reg.Lookup(kind)
		if err != nil {
			t.Fatalf("Lookup(%q) error: %v", kind, err)
		}
		if s.Kind() != kind {
			t.Fatalf("Kind() = %q, want %q", s.Kind(), kind)
		}
	}
	if _, err := reg.Lookup("slack"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("Lookup(slack) error = %v, want ErrUnknownKind", err)
	}
}

func TestJiraSend(t *testing.T) {
	t.Parallel()

	var seen *http.Request
	var body string
	j := &Jira{HTTP: fakeClient(func(req *http.Request) (*http.Response, error) {
		raw, _ := io.ReadAll(req.Body)
		body = string(raw)
		seen = req
		return response(req, http.StatusCreated), nil
	})}

	err := j.Send(context.Background(),
		map[string]any{"url": "https://jira.test/rest/api/2/issue", "username": "bot"},
		map[string]string{"api_token": "tok"},
		map[string]any{"event": "test"},
	)
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	user, pass, _ := seen.BasicAuth()
	if user != "bot" || pass != "tok" {
		t.Fatalf("basic auth = %q/%q", user, pass)
	}
	if !strings.Contains(body, `"event":"test"`) {
		t.Fatalf("body = %s", body)
	}
}

func TestJiraSendWithoutURLIsNoop(t *testing.T) {
	t.Parallel()

	j := &Jira{HTTP: fakeClient(func(req *http.Request) (*http.Response, error) {
		t.Error("unexpected request")
		return response(req, http.StatusOK), nil
	})}
	if err := j.Send(context.Background(), map[string]any{}, nil, map[string]any{}); err != nil {
		t.Fatalf("Send error: %v", err)
	}
}

func TestO365SendWrapsMessage(t *testing.T) {
	t.Parallel()

	var body string
	o := &O365{HTTP: fakeClient(func(req *http.Request) (*http.Response, error) {
		raw, _ := io.ReadAll(req.Body)
		body = string(raw)
		return response(req, http.StatusOK), nil
	})}

	err := o.Send(context.Background(),
		map[string]any{"teams_webhook": "https://teams.test/hook"},
		nil,
		map[string]any{"event": "test"},
	)
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if !strings.Contains(body, `"text":"Leakwatch Alert"`) {
		t.Fatalf("body = %s", body)
	}
}

func TestTrellixSendBearerToken(t *testing.T) {
	t.Parallel()

	var auth string
	tr := &Trellix{HTTP: fakeClient(func(req *http.Request) (*http.Response, error) {
		auth = req.Header.Get("Authorization")
		return response(req, http.StatusOK), nil
	})}

	err := tr.Send(context.Background(),
		map[string]any{"epo_url": "https://epo.test/events"},
		map[string]string{"token": "tok"},
		map[string]any{"event": "test"},
	)
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if auth != "Bearer tok" {
		t.Fatalf("authorization = %q", auth)
	}
}

func TestWebhookSendErrorStatus(t *testing.T) {
	t.Parallel()

	w := &Webhook{HTTP: fakeClient(func(req *http.Request) (*http.Response, error) {
		return response(req, http.StatusBadGateway), nil
	})}
	err := w.Send(context.Background(), map[string]any{"url": "https://hook.test"}, nil, map[string]any{})
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
}
