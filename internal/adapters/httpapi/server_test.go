package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rentcore/internal/adapters/exports"
	"rentcore/internal/core"
	"rentcore/pkg/domain"
)

func newSeededService(t *testing.T) *core.Service {
	t.Helper()
	ctx := context.Background()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())

	_, _, err := svc.CreateEntity(ctx, domain.Entity{Base: domain.Base{ID: "E1"}, Name: "Alpha SCI", Type: domain.EntityKindSCI})
	require.NoError(t, err)
	_, _, err = svc.CreateProperty(ctx, domain.Property{Base: domain.Base{ID: "P1"}, Name: "Rue Verte", EntityID: "E1"})
	require.NoError(t, err)
	_, _, err = svc.CreateLot(ctx, domain.Lot{Base: domain.Base{ID: "L1"}, Name: "Lot 1", PropertyID: "P1"})
	require.NoError(t, err)
	_, _, err = svc.CreateTenantGroup(ctx, domain.TenantGroup{Base: domain.Base{ID: "G1"}, GroupType: domain.GroupTypeCouple})
	require.NoError(t, err)
	_, _, err = svc.CreateTenant(ctx, domain.Tenant{Base: domain.Base{ID: "T1"}, TenantGroupID: "G1", FirstName: "Anne", LastName: "Dupont"})
	require.NoError(t, err)
	_, _, err = svc.CreateLease(ctx, domain.Lease{
		Base:          domain.Base{ID: "lease-1"},
		LotID:         "L1",
		TenantGroupID: "G1",
		Status:        domain.LeaseStatusActive,
		StartDate:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	docs := []domain.Document{
		{Base: domain.Base{ID: "doc-lot"}, FileName: "plan.pdf", Title: "Plan du lot", Category: "plan", FileSize: 10, LotID: domain.StringPtr("L1")},
		{Base: domain.Base{ID: "doc-group"}, FileName: "bail.pdf", Title: "Bail Dupont", Category: "bail", FileSize: 20, TenantGroupID: domain.StringPtr("G1")},
		{Base: domain.Base{ID: "doc-tenant"}, FileName: "id.pdf", Title: "Pièce d'identité", Category: "identite", FileSize: 30, TenantID: domain.StringPtr("T1")},
	}
	for _, doc := range docs {
		_, _, err := svc.CreateDocument(ctx, doc)
		require.NoError(t, err)
	}
	return svc
}

func newTestServer(t *testing.T, engine Engine, opts Options) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	opts.Registerer = reg
	opts.Gatherer = reg
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s, err := New(engine, opts)
	require.NoError(t, err)
	return s, reg
}

func do(t *testing.T, s *Server, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type stubEngine struct {
	err error
}

func (s stubEngine) BuildTree(context.Context, string) (core.Forest, error) {
	return core.Forest{}, s.err
}

func (s stubEngine) Search(context.Context, string, core.Predicate) ([]core.ScopedDocument, error) {
	return nil, s.err
}

func (s stubEngine) Stats(context.Context, string) (core.StatsSummary, error) {
	return core.StatsSummary{}, s.err
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, stubEngine{}, Options{})
	rec := do(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestTreeReturnsForestWithCounts(t *testing.T) {
	svc := newSeededService(t)
	s, _ := newTestServer(t, svc.Engine(), Options{})

	rec := do(t, s, http.MethodGet, "/api/v1/tree?entity_id=E1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var forest core.Forest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &forest))
	require.Len(t, forest.Entities, 1)
	root := forest.Entities[0]
	assert.Equal(t, "E1", root.Entity.ID)
	assert.Equal(t, 3, root.DocumentCount)
	require.Len(t, root.Properties, 1)
	require.Len(t, root.Properties[0].Lots, 1)
	lot := root.Properties[0].Lots[0]
	assert.Equal(t, 3, lot.DocumentCount)
	require.Len(t, lot.TenantGroups, 1)
	assert.Equal(t, 2, lot.TenantGroups[0].DocumentCount)

	raw := decode(t, rec)
	entity := raw["entities"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 3, entity["documentCount"])
	assert.Contains(t, raw, "diagnostics")
}

func TestTreeUnknownScopeIsNotFound(t *testing.T) {
	svc := newSeededService(t)
	s, _ := newTestServer(t, svc.Engine(), Options{})

	rec := do(t, s, http.MethodGet, "/api/v1/tree?entity_id=nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "nope")
}

func TestDocumentsSearch(t *testing.T) {
	svc := newSeededService(t)
	s, _ := newTestServer(t, svc.Engine(), Options{})

	rec := do(t, s, http.MethodGet, "/api/v1/documents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all documentsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Equal(t, 3, all.Total)
	assert.Len(t, all.Documents, 3)

	rec = do(t, s, http.MethodGet, "/api/v1/documents?entity_id=E1&search=DUPONT", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var filtered documentsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &filtered))
	require.Equal(t, 1, filtered.Total)
	assert.Equal(t, "doc-group", filtered.Documents[0].ID)
	assert.Equal(t, domain.OwnerTenantGroup, filtered.Documents[0].Owner.Kind)

	rec = do(t, s, http.MethodGet, "/api/v1/documents?category=nothing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"documents":[],"total":0}`, rec.Body.String())
}

func TestDocumentsRejectsInvalidPredicate(t *testing.T) {
	s, _ := newTestServer(t, stubEngine{err: errors.New("must not be called")}, Options{})

	for _, target := range []string{
		"/api/v1/documents?association=landlord",
		"/api/v1/documents?from=yesterday",
		"/api/v1/documents?from=2024-03-02&to=2024-03-01",
		"/api/v1/documents?page=2",
	} {
		rec := do(t, s, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, decode(t, rec), "error", target)
	}
}

func TestStats(t *testing.T) {
	svc := newSeededService(t)
	s, _ := newTestServer(t, svc.Engine(), Options{})

	rec := do(t, s, http.MethodGet, "/api/v1/stats?entity_id=E1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary core.StatsSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 3, summary.Total)
	assert.EqualValues(t, 60, summary.TotalSize)
	assert.Equal(t, 1, summary.ByCategory["bail"])
}

func TestFatalFailureIsSingleServerError(t *testing.T) {
	fatal := &domain.FetchError{Entity: domain.EntityHolding, Err: errors.New("connection reset")}
	s, _ := newTestServer(t, stubEngine{err: fatal}, Options{})

	for _, target := range []string{"/api/v1/tree", "/api/v1/documents", "/api/v1/stats"} {
		rec := do(t, s, http.MethodGet, target, "")
		require.Equal(t, http.StatusInternalServerError, rec.Code, target)
		assert.Equal(t, map[string]any{"error": fatal.Error()}, decode(t, rec))
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{core.InvalidPredicateError{Field: "from"}, http.StatusBadRequest},
		{exports.ErrUnsupportedFormat, http.StatusBadRequest},
		{domain.NotFoundError{Entity: domain.EntityDocument, ID: "d"}, http.StatusNotFound},
		{exports.ErrQueueFull, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{&domain.FetchError{Entity: domain.EntityProperty, Err: errors.New("x")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestUnknownRouteRendersJSON(t *testing.T) {
	s, _ := newTestServer(t, stubEngine{}, Options{})
	rec := do(t, s, http.MethodGet, "/api/v1/unknown", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode(t, rec), "error")
}

func TestRequestIDIsPropagated(t *testing.T) {
	s, _ := newTestServer(t, stubEngine{}, Options{})

	rec := do(t, s, http.MethodGet, "/health", "")
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(headerRequestID, "req-42")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(headerRequestID))
}

func TestMetricsEndpointExposesRequestCounters(t *testing.T) {
	s, _ := newTestServer(t, stubEngine{}, Options{MetricsPrefix: "test"})

	do(t, s, http.MethodGet, "/health", "")
	do(t, s, http.MethodGet, "/health", "")
	do(t, s, http.MethodGet, "/api/v1/documents?association=bad", "")

	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `test_http_requests_total{method="GET",path="/health",status="200"} 2`)
	assert.Contains(t, body, `test_http_requests_total{method="GET",path="/api/v1/documents",status="400"} 1`)
	assert.Contains(t, body, "test_http_request_duration_seconds_bucket")
}

func TestDebugVarsServesExpvar(t *testing.T) {
	s, _ := newTestServer(t, stubEngine{}, Options{})
	rec := do(t, s, http.MethodGet, "/debug/vars", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec), "memstats")
}

func TestNewFailsOnDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(stubEngine{}, Options{Registerer: reg, Gatherer: reg, Logger: zap.NewNop()})
	require.NoError(t, err)
	_, err = New(stubEngine{}, Options{Registerer: reg, Gatherer: reg, Logger: zap.NewNop()})
	require.Error(t, err)
}

func TestDocumentURL(t *testing.T) {
	svc := newSeededService(t)
	attached, _, err := svc.AttachDocument(context.Background(), domain.Document{
		FileName: "quittance mars.pdf",
		Title:    "Quittance",
		LotID:    domain.StringPtr("L1"),
	}, strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)

	s, _ := newTestServer(t, svc.Engine(), Options{Documents: svc})

	rec := do(t, s, http.MethodGet, "/api/v1/documents/"+attached.ID+"/url?expires=2m", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.True(t, strings.HasPrefix(body["url"].(string), "memory:///documents/lot/L1/"+attached.ID+"/"), body["url"])
	assert.EqualValues(t, 120, body["expires_in"])

	rec = do(t, s, http.MethodGet, "/api/v1/documents/missing/url", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/documents/doc-lot/url", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/documents/"+attached.ID+"/url?expires=soon", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOptionalRoutesAreNotMountedByDefault(t *testing.T) {
	s, _ := newTestServer(t, stubEngine{}, Options{})
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/documents/d/url", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/exports/x", "").Code)
}

func TestExportLifecycle(t *testing.T) {
	svc := newSeededService(t)
	worker := exports.NewWorker(svc.Engine(), svc.Blobs())
	worker.Start()
	t.Cleanup(func() { _ = worker.Stop(context.Background()) })

	s, _ := newTestServer(t, svc.Engine(), Options{Exports: worker})

	rec := do(t, s, http.MethodPost, "/api/v1/exports", `{"entity_id":"E1","filters":{"category":"bail"},"formats":["csv"],"requested_by":"ops"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var created struct {
		Export exports.Record `json:"export"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, exports.StatusQueued, created.Export.Status)

	var fetched struct {
		Export exports.Record `json:"export"`
	}
	require.Eventually(t, func() bool {
		rec := do(t, s, http.MethodGet, "/api/v1/exports/"+created.Export.ID, "")
		if rec.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &fetched); err != nil {
			return false
		}
		return fetched.Export.Status == exports.StatusSucceeded
	}, 2*time.Second, 10*time.Millisecond)
	require.Len(t, fetched.Export.Artifacts, 1)
	assert.Equal(t, 1, fetched.Export.Artifacts[0].Rows)

	rec = do(t, s, http.MethodPost, "/api/v1/exports", `{"formats":["pdf"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/exports", `{"filters":{"association":"nobody"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/exports", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/exports/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
