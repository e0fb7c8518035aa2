package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apppersist "github.com/bryanwahyu/automaton-relay/internal/application/persist"
	"github.com/bryanwahyu/automaton-relay/internal/callbacks"
	"github.com/bryanwahyu/automaton-relay/internal/domain/droplog"
	"github.com/bryanwahyu/automaton-relay/internal/domain/reporting"
	"github.com/bryanwahyu/automaton-relay/internal/domain/services"
)

type fakeFindings struct{}

func (fakeFindings) SaveFinding(ctx context.Context, f *reporting.Finding) (reporting.SaveResult, error) {
	return reporting.SaveResult{FindingID: "f-1", Inserted: true}, nil
}

func (fakeFindings) SaveEvidence(ctx context.Context, findingID string, e *reporting.Enrichment) error {
	return nil
}

type fakeServices struct{ rows []*services.ServiceInfo }

func (f *fakeServices) Upsert(ctx context.Context, s *services.ServiceInfo) error { return nil }
func (f *fakeServices) Active(ctx context.Context) ([]*services.ServiceInfo, error) {
	return f.rows, nil
}

type fakeDrops struct{ rows []*droplog.DropRecord }

func (f *fakeDrops) Save(ctx context.Context, d *droplog.DropRecord) error { return nil }
func (f *fakeDrops) Recent(ctx context.Context, tenant string, limit int) ([]*droplog.DropRecord, error) {
	return f.rows, nil
}

func testRouter(t *testing.T) (http.Handler, *callbacks.Signer) {
	t.Helper()
	signer := callbacks.NewSigner([]byte("secret"), "target-1", "sink")
	svc := &apppersist.Service{
		Findings: fakeFindings{},
		Services: &fakeServices{rows: []*services.ServiceInfo{
			{Name: "web", Namespace: "default", ServiceType: "deployment", Classification: "frontend"},
		}},
		TenantID: "t1",
	}
	drops := &fakeDrops{rows: []*droplog.DropRecord{{ID: 1, TenantID: "t1", Kind: droplog.KindFinding, RefKey: "abc"}}}
	return NewRouter(svc, signer, drops), signer
}

func TestCallbackTriggerAcceptsValidToken(t *testing.T) {
	router, signer := testRouter(t)
	token, err := signer.Issue("restart_pod", "Restart", nil)
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"callback": token})
	req := httptest.NewRequest(http.MethodPost, "/v1/t1/callbacks/trigger", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp["status"])
	assert.Equal(t, "restart_pod", resp["action"])
}

func TestCallbackTriggerRejectsForgedToken(t *testing.T) {
	router, _ := testRouter(t)
	forged, err := callbacks.NewSigner([]byte("other-key"), "t", "s").Issue("restart_pod", "x", nil)
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"callback": forged})
	req := httptest.NewRequest(http.MethodPost, "/v1/t1/callbacks/trigger", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCallbackTriggerRequiresBody(t *testing.T) {
	router, _ := testRouter(t)

	body, _ := json.Marshal(map[string]string{})
	req := httptest.NewRequest(http.MethodPost, "/v1/t1/callbacks/trigger", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActiveServicesEndpoint(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/t1/services", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out []services.ServiceInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "web", out[0].Name)
}

func TestRecentDropsEndpoint(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/t1/drops?limit=5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out []droplog.DropRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "abc", out[0].RefKey)
}

func TestHealth(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
