// Package connectors implements the pluggable source set that produces
// candidate findings from external breach databases, feeds, paste sites, and
// generic REST endpoints.
package connectors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/leakwatch/leakwatch/internal/model"
)

// defaultTimeout bounds every outbound call so one slow source cannot stall a
// whole pipeline run.
const defaultTimeout = 10 * time.Second

const userAgent = "leakwatch"

// ErrUnknownKind is returned by Registry.Lookup for a kind outside the closed
// connector set. It is a configuration error, surfaced before any fetch runs.
var ErrUnknownKind = errors.New("unknown connector kind")

// FetchInput carries everything a source needs for one fetch: the owning
// organization, its watched targets, the connector's non-secret config, and
// its secrets already decrypted.
type FetchInput struct {
	OrgID   string
	Targets []model.Target
	Config  map[string]any
	Secrets map[string]string
}

// Source is one fetch variant. Fetch returns candidate findings; it does not
// persist anything. Per-target "not found" responses are empty results, not
// errors; unexpected upstream failures abort the fetch.
type Source interface {
	Kind() string
	Fetch(ctx context.Context, in FetchInput) ([]model.Finding, error)
}

// Registry is the closed set of fetch variants, keyed by connector kind.
type Registry struct {
	sources map[string]Source
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds a source to the registry.
func (r *Registry) Register(s Source) error {
	kind := strings.ToLower(strings.TrimSpace(s.Kind()))
	if kind == "" {
		return errors.New("connector kind cannot be empty")
	}
	if _, exists := r.sources[kind]; exists {
		return fmt.Errorf("connector kind %q already registered", kind)
	}
	r.sources[kind] = s
	r.order = append(r.order, kind)
	return nil
}

// Lookup resolves a connector kind to its source. An unrecognized kind wraps
// ErrUnknownKind.
func (r *Registry) Lookup(kind string) (Source, error) {
	s, ok := r.sources[strings.ToLower(strings.TrimSpace(kind))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return s, nil
}

// Kinds returns the registered kinds in registration order.
func (r *Registry) Kinds() []string {
	return append([]string(nil), r.order...)
}

// Default builds the registry holding all six built-in variants. A nil client
// gives each networked source its own client with the default timeout.
func Default(client *http.Client) *Registry {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	r := NewRegistry()
	for _, s := range []Source{
		&Demo{},
		&HIBP{HTTP: client},
		&Dehashed{HTTP: client},
		&GenericRest{HTTP: client},
		&RSS{HTTP: client},
		&PublicPaste{HTTP: client},
	} {
		// Built-in kinds are distinct constants; Register cannot fail here.
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

// APIError is a non-2xx upstream response that a source treats as fatal for
// the whole fetch.
type APIError struct {
	Source     string
	StatusCode int
	Status     string
}

var ErrAPI = errors.New("source api error")

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	status := strings.TrimSpace(e.Status)
	if status == "" {
		status = fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("%s api error: %s", e.Source, status)
}

func (e *APIError) Unwrap() error {
	return ErrAPI
}

func configString(cfg map[string]any, key string) string {
	v, ok := cfg[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func configStringDefault(cfg map[string]any, key, def string) string {
	if s := configString(cfg, key); s != "" {
		return s
	}
	return def
}

func configHeaders(cfg map[string]any, key string) map[string]string {
	raw, ok := cfg[key].(map[string]any)
	if !ok {
		return nil
	}
	headers := make(map[string]string, len(raw))
	for name, value := range raw {
		if s, ok := value.(string); ok {
			headers[name] = s
		}
	}
	return headers
}
