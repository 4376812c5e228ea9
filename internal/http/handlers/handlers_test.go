package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/leakwatch/leakwatch/internal/connectors"
	"github.com/leakwatch/leakwatch/internal/integrations"
	"github.com/leakwatch/leakwatch/internal/model"
	"github.com/leakwatch/leakwatch/internal/secrets"
	"github.com/leakwatch/leakwatch/internal/store"
)

type fakeStore struct {
	mu           sync.Mutex
	targets      map[string]model.Target
	connectors   map[string]model.Connector
	rules        map[string]model.AlertRule
	integrations map[string]model.Integration
	findings     []model.Finding
	audit        []model.AuditLog
	statuses     map[string]string
	nextID       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		targets:      map[string]model.Target{},
		connectors:   map[string]model.Connector{},
		rules:        map[string]model.AlertRule{},
		integrations: map[string]model.Integration{},
		statuses:     map[string]string{},
	}
}

func (f *fakeStore) id() string {
	f.nextID++
	return "id-" + strconv.Itoa(f.nextID)
}

func (f *fakeStore) CreateTarget(_ context.Context, t model.Target) (model.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = f.id()
	f.targets[t.ID] = t
	return t, nil
}

func (f *fakeStore) GetTarget(_ context.Context, orgID, id string) (model.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.targets[id]
	if !ok || t.OrgID != orgID {
		return model.Target{}, store.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) ListTargets(_ context.Context, orgID string) ([]model.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Target
	for _, t := range f.targets {
		if t.OrgID == orgID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateTarget(_ context.Context, t model.Target) (model.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.targets[t.ID]; !ok {
		return model.Target{}, store.ErrNotFound
	}
	f.targets[t.ID] = t
	return t, nil
}

func (f *fakeStore) DeleteTarget(_ context.Context, orgID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.targets[id]
	if !ok || t.OrgID != orgID {
		return store.ErrNotFound
	}
	delete(f.targets, id)
	return nil
}

func (f *fakeStore) CreateConnector(_ context.Context, c model.Connector) (model.Connector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.id()
	c.LastRunStatus = "never"
	f.connectors[c.ID] = c
	return c, nil
}

func (f *fakeStore) GetConnector(_ context.Context, orgID, id string) (model.Connector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.connectors[id]
	if !ok || c.OrgID != orgID {
		return model.Connector{}, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) ListConnectors(_ context.Context, orgID string) ([]model.Connector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Connector
	for _, c := range f.connectors {
		if c.OrgID == orgID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateConnector(_ context.Context, c model.Connector) (model.Connector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.connectors[c.ID]; !ok {
		return model.Connector{}, store.ErrNotFound
	}
	f.connectors[c.ID] = c
	return c, nil
}

func (f *fakeStore) DeleteConnector(_ context.Context, orgID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.connectors[id]
	if !ok || c.OrgID != orgID {
		return store.ErrNotFound
	}
	delete(f.connectors, id)
	return nil
}

func (f *fakeStore) CreateAlertRule(_ context.Context, r model.AlertRule) (model.AlertRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = f.id()
	f.rules[r.ID] = r
	return r, nil
}

func (f *fakeStore) GetAlertRule(_ context.Context, orgID, id string) (model.AlertRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[id]
	if !ok || r.OrgID != orgID {
		return model.AlertRule{}, store.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) ListAlertRules(_ context.Context, orgID string) ([]model.AlertRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AlertRule
	for _, r := range f.rules {
		if r.OrgID == orgID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateAlertRule(_ context.Context, r model.AlertRule) (model.AlertRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rules[r.ID]; !ok {
		return model.AlertRule{}, store.ErrNotFound
	}
	f.rules[r.ID] = r
	return r, nil
}

func (f *fakeStore) DeleteAlertRule(_ context.Context, orgID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[id]
	if !ok || r.OrgID != orgID {
		return store.ErrNotFound
	}
	delete(f.rules, id)
	return nil
}

func (f *fakeStore) CreateIntegration(_ context.Context, i model.Integration) (model.Integration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i.ID = f.id()
	i.LastTestStatus = "never"
	f.integrations[i.ID] = i
	return i, nil
}

func (f *fakeStore) GetIntegration(_ context.Context, orgID, id string) (model.Integration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.integrations[id]
	if !ok || i.OrgID != orgID {
		return model.Integration{}, store.ErrNotFound
	}
	return i, nil
}

func (f *fakeStore) ListIntegrations(_ context.Context, orgID string) ([]model.Integration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Integration
	for _, i := range f.integrations {
		if i.OrgID == orgID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateIntegration(_ context.Context, i model.Integration) (model.Integration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.integrations[i.ID]; !ok {
		return model.Integration{}, store.ErrNotFound
	}
	f.integrations[i.ID] = i
	return i, nil
}

func (f *fakeStore) DeleteIntegration(_ context.Context, orgID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.integrations[id]
	if !ok || i.OrgID != orgID {
		return store.ErrNotFound
	}
	delete(f.integrations, id)
	return nil
}

func (f *fakeStore) SetIntegrationStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	return nil
}

func (f *fakeStore) ListFindings(_ context.Context, orgID string, filter store.FindingFilter) ([]model.Finding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Finding
	for _, finding := range f.findings {
		if finding.OrgID != orgID {
			continue
		}
		if filter.Severity != "" && finding.Severity != filter.Severity {
			continue
		}
		if filter.Source != "" && finding.Source != filter.Source {
			continue
		}
		out = append(out, finding)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) GetFinding(_ context.Context, orgID, id string) (model.Finding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, finding := range f.findings {
		if finding.ID == id && finding.OrgID == orgID {
			return finding, nil
		}
	}
	return model.Finding{}, store.ErrNotFound
}

func (f *fakeStore) InsertAuditLog(_ context.Context, entry model.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audit = append(f.audit, entry)
	return nil
}

func (f *fakeStore) ListAuditLogs(_ context.Context, orgID string, limit int) ([]model.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AuditLog
	for _, e := range f.audit {
		if e.OrgID == orgID {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeTester struct {
	count int
	err   error
	conns []model.Connector
}

func (f *fakeTester) TestConnector(_ context.Context, conn model.Connector) (int, error) {
	f.conns = append(f.conns, conn)
	return f.count, f.err
}

type fakeAlertTester struct {
	rules []model.AlertRule
	err   error
}

func (f *fakeAlertTester) DispatchTest(_ context.Context, rule model.AlertRule) error {
	f.rules = append(f.rules, rule)
	return f.err
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func testHandlers(t *testing.T, fs *fakeStore, client *http.Client) *Handlers {
	t.Helper()
	cipher, err := secrets.NewCipher("handler-test-master-key")
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	return &Handlers{
		Store:        fs,
		Runner:       &fakeTester{},
		Dispatcher:   &fakeAlertTester{},
		Connectors:   connectors.Default(client),
		Integrations: integrations.Default(client),
		Cipher:       cipher,
	}
}

func doRequest(t *testing.T, h echo.HandlerFunc, method, path, body string, setup func(echo.Context)) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(contextKeyOrgID, "org-1")
	if setup != nil {
		setup(c)
	}
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestRequireOrg(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/targets", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	mw := RequireOrg(func(echo.Context) error { called = true; return nil })
	err := mw(c)

	if called {
		t.Fatal("handler ran without org header")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}

	req.Header.Set(HeaderOrgID, "org-1")
	if err := mw(c); err != nil || !called {
		t.Fatalf("with header: err = %v, called = %v", err, called)
	}
	if orgID(c) != "org-1" {
		t.Fatalf("orgID = %q", orgID(c))
	}
}

func TestHandleCreateTarget(t *testing.T) {
	fs := newFakeStore()
	h := testHandlers(t, fs, nil)

	rec := doRequest(t, h.HandleCreateTarget, http.MethodPost, "/api/targets",
		`{"target_type":"email","value":" user@example.com "}`, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(fs.targets) != 1 {
		t.Fatalf("targets stored = %d", len(fs.targets))
	}
	for _, target := range fs.targets {
		if target.Value != "user@example.com" {
			t.Errorf("value = %q, want trimmed", target.Value)
		}
		if target.OrgID != "org-1" {
			t.Errorf("org = %q", target.OrgID)
		}
	}
	if len(fs.audit) != 1 || fs.audit[0].Action != "create_target" {
		t.Fatalf("audit = %+v", fs.audit)
	}
}

func TestHandleCreateTargetRequiresValue(t *testing.T) {
	h := testHandlers(t, newFakeStore(), nil)

	rec := doRequest(t, h.HandleCreateTarget, http.MethodPost, "/api/targets",
		`{"target_type":"email"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleCreateConnectorEncryptsSecrets(t *testing.T) {
	fs := newFakeStore()
	h := testHandlers(t, fs, nil)

	rec := doRequest(t, h.HandleCreateConnector, http.MethodPost, "/api/connectors",
		`{"name":"prod hibp","connector_type":"hibp","secrets":{"api_key":"plaintext-key"}}`, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	for _, conn := range fs.connectors {
		token := conn.Secrets["api_key"]
		if !strings.HasPrefix(token, "lw1:") {
			t.Fatalf("secret not encrypted: %q", token)
		}
		if strings.Contains(token, "plaintext-key") {
			t.Fatal("plaintext leaked into stored secret")
		}
		if got := h.Cipher.Decrypt(token); got != "plaintext-key" {
			t.Fatalf("round trip = %q", got)
		}
	}
	if strings.Contains(rec.Body.String(), "plaintext-key") || strings.Contains(rec.Body.String(), "lw1:") {
		t.Fatalf("response leaked secrets: %s", rec.Body.String())
	}
}

func TestHandleCreateConnectorRejectsUnknownKind(t *testing.T) {
	h := testHandlers(t, newFakeStore(), nil)

	rec := doRequest(t, h.HandleCreateConnector, http.MethodPost, "/api/connectors",
		`{"name":"x","connector_type":"telnet"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleUpdateConnectorKeepsSecretsWhenOmitted(t *testing.T) {
	fs := newFakeStore()
	h := testHandlers(t, fs, nil)

	token, err := h.Cipher.Encrypt("original")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	conn, _ := fs.CreateConnector(context.Background(), model.Connector{
		OrgID:   "org-1",
		Name:    "hibp",
		Kind:    model.ConnectorHIBP,
		Secrets: map[string]string{"api_key": token},
	})

	rec := doRequest(t, h.HandleUpdateConnector, http.MethodPut, "/api/connectors/"+conn.ID,
		`{"name":"renamed"}`, func(c echo.Context) {
			c.SetParamNames("id")
			c.SetParamValues(conn.ID)
		})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	updated := fs.connectors[conn.ID]
	if updated.Name != "renamed" {
		t.Errorf("name = %q", updated.Name)
	}
	if updated.Secrets["api_key"] != token {
		t.Errorf("secrets changed on partial update")
	}
}

func TestHandleTestConnector(t *testing.T) {
	fs := newFakeStore()
	h := testHandlers(t, fs, nil)
	tester := &fakeTester{count: 3}
	h.Runner = tester

	conn, _ := fs.CreateConnector(context.Background(), model.Connector{OrgID: "org-1", Kind: model.ConnectorDemo})

	rec := doRequest(t, h.HandleTestConnector, http.MethodPost, "/api/connectors/"+conn.ID+"/test",
		"", func(c echo.Context) {
			c.SetParamNames("id")
			c.SetParamValues(conn.ID)
		})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(tester.conns) != 1 || tester.conns[0].ID != conn.ID {
		t.Fatalf("tester ran with %+v", tester.conns)
	}
	if !strings.Contains(rec.Body.String(), `"findings":3`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestHandleCreateAlertRuleDefaultsSchedule(t *testing.T) {
	fs := newFakeStore()
	h := testHandlers(t, fs, nil)

	rec := doRequest(t, h.HandleCreateAlertRule, http.MethodPost, "/api/alert-rules",
		`{"name":"breaches","recipients":{"emails":["sec@example.com"]}}`, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	for _, rule := range fs.rules {
		if rule.Schedule != defaultAlertSchedule {
			t.Errorf("schedule = %q, want %q", rule.Schedule, defaultAlertSchedule)
		}
		if !rule.Active {
			t.Error("new rule should be active")
		}
	}
}

func TestHandleTestIntegrationRecordsStatus(t *testing.T) {
	var posted *http.Request
	client := &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		posted = r
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Header: http.Header{}}, nil
	})}
	fs := newFakeStore()
	h := testHandlers(t, fs, client)

	integration, _ := fs.CreateIntegration(context.Background(), model.Integration{
		OrgID:  "org-1",
		Kind:   model.IntegrationWebhook,
		Config: map[string]any{"url": "https://hooks.example.com/x"},
	})

	rec := doRequest(t, h.HandleTestIntegration, http.MethodPost, "/api/integrations/"+integration.ID+"/test",
		"", func(c echo.Context) {
			c.SetParamNames("id")
			c.SetParamValues(integration.ID)
		})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if posted == nil {
		t.Fatal("no webhook request sent")
	}
	if fs.statuses[integration.ID] != "success" {
		t.Fatalf("status recorded = %q", fs.statuses[integration.ID])
	}
}

func TestHandleListFindingsRejectsBadLimit(t *testing.T) {
	h := testHandlers(t, newFakeStore(), nil)

	rec := doRequest(t, h.HandleListFindings, http.MethodGet, "/api/findings?limit=zero", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleListFindingsEmptyIsArray(t *testing.T) {
	h := testHandlers(t, newFakeStore(), nil)

	rec := doRequest(t, h.HandleListFindings, http.MethodGet, "/api/findings", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("body = %q, want []", got)
	}
}
