package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/leakwatch/leakwatch/internal/metrics"
)

const transportTimeout = 10 * time.Second

const defaultTwilioBaseURL = "https://api.twilio.com"

// SMTPMailer sends alert mail through a configured relay. A mailer with an
// empty host is unconfigured and silently delivers nothing.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (m *SMTPMailer) Send(ctx context.Context, to []string, subject, body string) error {
	if m == nil || strings.TrimSpace(m.Host) == "" || len(to) == 0 {
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(m.From); err != nil {
		return fmt.Errorf("smtp from %q: %w", m.From, err)
	}
	if err := msg.To(to...); err != nil {
		return fmt.Errorf("smtp recipients: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(m.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(transportTimeout),
	}
	if m.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.Username),
			mail.WithPassword(m.Password),
		)
	}
	client, err := mail.NewClient(m.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		metrics.DeliveryFailuresTotal.WithLabelValues("emails").Inc()
		return fmt.Errorf("smtp send: %w", err)
	}
	metrics.DeliveriesTotal.WithLabelValues("emails").Add(float64(len(to)))
	return nil
}

// TwilioSMS sends one message per recipient through the Twilio Messages API.
// Missing credentials make it a no-op.
type TwilioSMS struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
	HTTP       *http.Client
}

func (t *TwilioSMS) Send(ctx context.Context, to []string, body string) error {
	if t == nil || t.AccountSID == "" || t.AuthToken == "" || len(to) == 0 {
		return nil
	}

	base := t.BaseURL
	if base == "" {
		base = defaultTwilioBaseURL
	}
	client := t.HTTP
	if client == nil {
		client = &http.Client{Timeout: transportTimeout}
	}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", strings.TrimRight(base, "/"), url.PathEscape(t.AccountSID))

	var errs []error
	for _, recipient := range to {
		form := url.Values{}
		form.Set("From", t.From)
		form.Set("To", recipient)
		form.Set("Body", body)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.SetBasicAuth(t.AccountSID, t.AuthToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := client.Do(req)
		if err != nil {
			metrics.DeliveryFailuresTotal.WithLabelValues("phones").Inc()
			errs = append(errs, fmt.Errorf("sms to %s: %w", recipient, err))
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			metrics.DeliveryFailuresTotal.WithLabelValues("phones").Inc()
			errs = append(errs, fmt.Errorf("sms to %s: status %s", recipient, resp.Status))
			continue
		}
		metrics.DeliveriesTotal.WithLabelValues("phones").Inc()
	}
	return errors.Join(errs...)
}

// WebhookClient posts the channel payload to every configured URL. Every URL
// is attempted even when an earlier one fails.
type WebhookClient struct {
	HTTP *http.Client
}

func (w *WebhookClient) Send(ctx context.Context, urls []string, payload map[string]any) error {
	if w == nil || len(urls) == 0 {
		return nil
	}
	client := w.HTTP
	if client == nil {
		client = &http.Client{Timeout: transportTimeout}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook payload: %w", err)
	}

	var errs []error
	for _, endpoint := range urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
		if err != nil {
			errs = append(errs, fmt.Errorf("webhook %s: %w", endpoint, err))
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			metrics.DeliveryFailuresTotal.WithLabelValues("webhooks").Inc()
			errs = append(errs, fmt.Errorf("webhook %s: %w", endpoint, err))
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			metrics.DeliveryFailuresTotal.WithLabelValues("webhooks").Inc()
			errs = append(errs, fmt.Errorf("webhook %s: status %s", endpoint, resp.Status))
			continue
		}
		metrics.DeliveriesTotal.WithLabelValues("webhooks").Inc()
	}
	return errors.Join(errs...)
}
