// Package alerts converts alert rules and findings into channel-specific
// payloads and performs best-effort delivery to mail, SMS, and webhook
// transports.
package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/leakwatch/leakwatch/internal/model"
	"github.com/leakwatch/leakwatch/internal/redaction"
)

// Mailer delivers one message to a list of addresses. Implementations must be
// a no-op when unconfigured or when the recipient list is empty.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// SMSSender delivers one message per recipient phone number.
type SMSSender interface {
	Send(ctx context.Context, to []string, body string) error
}

// WebhookSender posts a JSON payload to each configured URL.
type WebhookSender interface {
	Send(ctx context.Context, urls []string, payload map[string]any) error
}

// Dispatcher fans an alert out to the three delivery channels. Channels are
// attempted independently: one failing transport never prevents the others,
// and every channel error is reported back to the caller.
type Dispatcher struct {
	Mail    Mailer
	SMS     SMSSender
	Webhook WebhookSender
}

// NewDispatcher wires the three channel transports.
func NewDispatcher(mail Mailer, sms SMSSender, webhook WebhookSender) *Dispatcher {
	return &Dispatcher{Mail: mail, SMS: sms, Webhook: webhook}
}

// Dispatch builds the alert summary payload for a set of findings and
// delivers it per the rule's recipients and redaction policies.
func (d *Dispatcher) Dispatch(ctx context.Context, rule model.AlertRule, findings []model.Finding) error {
	summaries := make([]map[string]any, 0, len(findings))
	for _, f := range findings {
		summaries = append(summaries, map[string]any{
			"matched_entity": f.MatchedEntity,
			"severity":       f.Severity,
			"source":         f.Source,
			"exposure_types": f.ExposureTypes,
		})
	}
	payload := map[string]any{
		"event":    "alert",
		"rule":     rule.Name,
		"count":    len(findings),
		"findings": summaries,
	}
	subject := fmt.Sprintf("Leakwatch Alert: %s", rule.Name)
	return d.deliver(ctx, rule, payload, subject)
}

// DispatchTest delivers the fixed synthetic test payload for a rule.
func (d *Dispatcher) DispatchTest(ctx context.Context, rule model.AlertRule) error {
	payload := map[string]any{
		"event":    "test_alert",
		"rule":     rule.Name,
		"severity": model.SeverityMedium,
	}
	return d.deliver(ctx, rule, payload, "Leakwatch Test Alert")
}

// deliver applies the rule's default redaction first, then each channel's
// override on top of the already-redacted payload. A field removed by the
// default policy can never be reintroduced by an override.
func (d *Dispatcher) deliver(ctx context.Context, rule model.AlertRule, payload map[string]any, subject string) error {
	base := redaction.Apply(payload, rule.RedactionPolicy)
	recipients := rule.Recipients

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	fail := func(channel string, err error) {
		mu.Lock()
		errs = append(errs, fmt.Errorf("%s delivery: %w", channel, err))
		mu.Unlock()
	}

	g.Go(func() error {
		channelPayload := redaction.Apply(base, recipients.Override(model.ChannelEmails))
		if err := d.Mail.Send(ctx, recipients.Emails, subject, renderBody(channelPayload)); err != nil {
			fail(model.ChannelEmails, err)
		}
		return nil
	})
	g.Go(func() error {
		channelPayload := redaction.Apply(base, recipients.Override(model.ChannelPhones))
		if err := d.SMS.Send(ctx, recipients.Phones, renderBody(channelPayload)); err != nil {
			fail(model.ChannelPhones, err)
		}
		return nil
	})
	g.Go(func() error {
		channelPayload := redaction.Apply(base, recipients.Override(model.ChannelWebhooks))
		if err := d.Webhook.Send(ctx, recipients.Webhooks, channelPayload); err != nil {
			fail(model.ChannelWebhooks, err)
		}
		return nil
	})

	_ = g.Wait()
	return errors.Join(errs...)
}

func renderBody(payload map[string]any) string {
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(body)
}
