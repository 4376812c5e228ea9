package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/leakwatch/leakwatch/internal/model"
	"github.com/leakwatch/leakwatch/internal/redaction"
)

type fakeMailer struct {
	mu      sync.Mutex
	to      []string
	subject string
	body    string
	calls   int
	err     error
}

func (f *fakeMailer) Send(_ context.Context, to []string, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.to = to
	f.subject = subject
	f.body = body
	return f.err
}

type fakeSMS struct {
	mu    sync.Mutex
	to    []string
	body  string
	calls int
	err   error
}

func (f *fakeSMS) Send(_ context.Context, to []string, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.to = to
	f.body = body
	return f.err
}

type fakeWebhook struct {
	mu      sync.Mutex
	urls    []string
	payload map[string]any
	calls   int
	err     error
}

func (f *fakeWebhook) Send(_ context.Context, urls []string, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.urls = urls
	f.payload = payload
	return f.err
}

func sampleRule() model.AlertRule {
	return model.AlertRule{
		ID:    "rule-1",
		OrgID: "org-1",
		Name:  "breach-watch",
		Recipients: model.Recipients{
			Emails:   []string{"sec@example.com"},
			Phones:   []string{"+15550100"},
			Webhooks: []string{"https://hooks.test/a"},
		},
	}
}

func sampleFindings() []model.Finding {
	return []model.Finding{
		{MatchedEntity: "user@example.com", Severity: "high", Source: "hibp", ExposureTypes: []string{"password"}},
		{MatchedEntity: "example.com", Severity: "low", Source: "rss", ExposureTypes: []string{"mention"}},
	}
}

func TestDispatchBuildsSummaryPayload(t *testing.T) {
	t.Parallel()

	mailer := &fakeMailer{}
	sms := &fakeSMS{}
	webhook := &fakeWebhook{}
	d := NewDispatcher(mailer, sms, webhook)

	if err := d.Dispatch(context.Background(), sampleRule(), sampleFindings()); err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}

	if webhook.calls != 1 {
		t.Fatalf("webhook calls = %d, want 1", webhook.calls)
	}
	payload := webhook.payload
	if payload["event"] != "alert" || payload["rule"] != "breach-watch" || payload["count"] != 2 {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	summaries, ok := payload["findings"].([]map[string]any)
	if !ok || len(summaries) != 2 {
		t.Fatalf("findings summaries = %#v", payload["findings"])
	}
	if summaries[0]["matched_entity"] != "user@example.com" || summaries[0]["severity"] != "high" {
		t.Fatalf("summary = %#v", summaries[0])
	}

	if mailer.calls != 1 || mailer.subject != "Leakwatch Alert: breach-watch" {
		t.Fatalf("mailer calls=%d subject=%q", mailer.calls, mailer.subject)
	}
	var emailPayload map[string]any
	if err := json.Unmarshal([]byte(mailer.body), &emailPayload); err != nil {
		t.Fatalf("email body is not JSON: %v", err)
	}
	if emailPayload["rule"] != "breach-watch" {
		t.Fatalf("email payload = %#v", emailPayload)
	}
	if sms.calls != 1 || len(sms.to) != 1 || sms.to[0] != "+15550100" {
		t.Fatalf("sms calls=%d to=%v", sms.calls, sms.to)
	}
}

func TestDispatchAppliesDefaultPolicy(t *testing.T) {
	t.Parallel()

	mailer := &fakeMailer{}
	d := NewDispatcher(mailer, &fakeSMS{}, &fakeWebhook{})

	rule := sampleRule()
	rule.RedactionPolicy = redaction.Policy{RemoveFields: []string{"findings"}}

	if err := d.Dispatch(context.Background(), rule, sampleFindings()); err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(mailer.body), &payload); err != nil {
		t.Fatalf("email body is not JSON: %v", err)
	}
	if _, present := payload["findings"]; present {
		t.Fatalf("findings not removed: %#v", payload)
	}
	if payload["event"] != "alert" || payload["rule"] != "breach-watch" {
		t.Fatalf("event/rule keys lost: %#v", payload)
	}
}

func TestDispatchChannelOverridesLayerOnDefault(t *testing.T) {
	t.Parallel()

	mailer := &fakeMailer{}
	webhook := &fakeWebhook{}
	d := NewDispatcher(mailer, &fakeSMS{}, webhook)

	rule := sampleRule()
	rule.RedactionPolicy = redaction.Policy{RemoveFields: []string{"findings"}}
	rule.Recipients.Overrides = map[string]redaction.Policy{
		model.ChannelEmails: {MaskFields: map[string]string{"rule": redaction.MaskFull}},
		// An override cannot resurrect a field the default policy removed.
		model.ChannelWebhooks: {MaskFields: map[string]string{"findings": redaction.MaskFull}},
	}

	if err := d.Dispatch(context.Background(), rule, sampleFindings()); err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}

	var emailPayload map[string]any
	if err := json.Unmarshal([]byte(mailer.body), &emailPayload); err != nil {
		t.Fatalf("email body is not JSON: %v", err)
	}
	if emailPayload["rule"] != "***" {
		t.Fatalf("email override not applied: %#v", emailPayload)
	}
	if _, present := webhook.payload["findings"]; present {
		t.Fatalf("removed field reappeared in webhook payload: %#v", webhook.payload)
	}
	if webhook.payload["rule"] != "breach-watch" {
		t.Fatalf("webhook payload over-redacted: %#v", webhook.payload)
	}
}

func TestDispatchTestPayload(t *testing.T) {
	t.Parallel()

	webhook := &fakeWebhook{}
	d := NewDispatcher(&fakeMailer{}, &fakeSMS{}, webhook)

	if err := d.DispatchTest(context.Background(), sampleRule()); err != nil {
		t.Fatalf("DispatchTest error: %v", err)
	}
	want := map[string]any{"event": "test_alert", "rule": "breach-watch", "severity": "medium"}
	for k, v := range want {
		if webhook.payload[k] != v {
			t.Fatalf("payload[%q] = %#v, want %#v", k, webhook.payload[k], v)
		}
	}
}

func TestDispatchIsolatesChannelFailures(t *testing.T) {
	t.Parallel()

	mailer := &fakeMailer{err: errors.New("smtp down")}
	sms := &fakeSMS{}
	webhook := &fakeWebhook{err: errors.New("hook refused")}
	d := NewDispatcher(mailer, sms, webhook)

	err := d.Dispatch(context.Background(), sampleRule(), sampleFindings())
	if err == nil {
		t.Fatal("expected delivery errors")
	}
	if sms.calls != 1 {
		t.Fatal("sms channel skipped after sibling failures")
	}
	if !strings.Contains(err.Error(), "smtp down") || !strings.Contains(err.Error(), "hook refused") {
		t.Fatalf("joined error missing causes: %v", err)
	}
}
