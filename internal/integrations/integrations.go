// Package integrations implements outbound senders for configured ticketing,
// chat, and webhook systems. Integrations are exercised by the on-demand
// test/send path only; the ingestion pipeline never touches them.
package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/leakwatch/leakwatch/internal/model"
)

const defaultTimeout = 10 * time.Second

// ErrUnknownKind is returned by Registry.Lookup for a kind outside the closed
// integration set.
var ErrUnknownKind = errors.New("unknown integration kind")

// Sender delivers a payload to one outbound system kind. Secrets arrive
// already decrypted.
type Sender interface {
	Kind() string
	Send(ctx context.Context, config map[string]any, secrets map[string]string, payload map[string]any) error
}

// Registry is the closed set of integration senders.
type Registry struct {
	senders map[string]Sender
}

// Default builds the registry holding all built-in senders. A nil client
// gives them a shared client with the default timeout.
func Default(client *http.Client) *Registry {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	r := &Registry{senders: make(map[string]Sender)}
	for _, s := range []Sender{
		&Jira{HTTP: client},
		&O365{HTTP: client},
		&Trellix{HTTP: client},
		&Webhook{HTTP: client},
	} {
		r.senders[s.Kind()] = s
	}
	return r
}

// Lookup resolves an integration kind to its sender.
func (r *Registry) Lookup(kind string) (Sender, error) {
	s, ok := r.senders[strings.ToLower(strings.TrimSpace(kind))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return s, nil
}

// Jira posts the payload to a configured issue-creation URL with basic auth
// (username from config, api_token from secrets).
type Jira struct {
	HTTP *http.Client
}

func (*Jira) Kind() string { return model.IntegrationJira }

func (j *Jira) Send(ctx context.Context, config map[string]any, secrets map[string]string, payload map[string]any) error {
	endpoint, _ := config["url"].(string)
	if endpoint == "" {
		return nil
	}
	username, _ := config["username"].(string)
	return postJSON(ctx, j.HTTP, endpoint, payload, func(req *http.Request) {
		req.SetBasicAuth(username, secrets["api_token"])
	})
}

// O365 posts a Teams-style message card to a configured webhook.
type O365 struct {
	HTTP *http.Client
}

func (*O365) Kind() string { return model.IntegrationO365 }

func (o *O365) Send(ctx context.Context, config map[string]any, _ map[string]string, payload map[string]any) error {
	endpoint, _ := config["teams_webhook"].(string)
	if endpoint == "" {
		return nil
	}
	message, _ := payload["message"].(string)
	if message == "" {
		message = "Leakwatch Alert"
	}
	return postJSON(ctx, o.HTTP, endpoint, map[string]any{"text": message}, nil)
}

// Trellix posts the payload to a configured ePO endpoint with a bearer token.
type Trellix struct {
	HTTP *http.Client
}

func (*Trellix) Kind() string { return model.IntegrationTrellix }

func (t *Trellix) Send(ctx context.Context, config map[string]any, secrets map[string]string, payload map[string]any) error {
	endpoint, _ := config["epo_url"].(string)
	if endpoint == "" {
		return nil
	}
	token := secrets["token"]
	return postJSON(ctx, t.HTTP, endpoint, payload, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	})
}

// Webhook posts the payload to a configured URL as-is.
type Webhook struct {
	HTTP *http.Client
}

func (*Webhook) Kind() string { return model.IntegrationWebhook }

func (w *Webhook) Send(ctx context.Context, config map[string]any, _ map[string]string, payload map[string]any) error {
	endpoint, _ := config["url"].(string)
	if endpoint == "" {
		return nil
	}
	return postJSON(ctx, w.HTTP, endpoint, payload, nil)
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, payload map[string]any, decorate func(*http.Request)) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if decorate != nil {
		decorate(req)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post %s: status %s", endpoint, resp.Status)
	}
	return nil
}
