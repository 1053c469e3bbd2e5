package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"contracttracker/internal/handler"
	"contracttracker/internal/model"
	"contracttracker/internal/service/baseline"
	"contracttracker/internal/service/certificate"
	"contracttracker/internal/service/edit"
	"contracttracker/internal/service/interceptor"
	"contracttracker/internal/service/plancommit"
	"contracttracker/internal/service/variation"
	"contracttracker/internal/testutil"
	"contracttracker/internal/util"
	"contracttracker/pkg/outbox"
	"contracttracker/pkg/trace"
)

const testSecret = "test-secret"

var projectID = uuid.MustParse("6f1c2a9e-3b4d-4e5f-8a6b-7c8d9e0f1a2b")

var (
	supplierPM = model.Actor{ID: "u-s", Name: "Sam Supplier", Role: "supplier_pm"}
	customerPM = model.Actor{ID: "u-c", Name: "Cat Customer", Role: "customer_pm"}
	contrib    = model.Actor{ID: "u-k", Name: "Kit Contributor", Role: "contributor"}
	viewer     = model.Actor{ID: "u-v", Name: "Vi Viewer", Role: "viewer"}
	adminActor = model.Actor{ID: "u-a", Name: "Ada Admin", Role: "admin"}
)

type replayStore struct {
	failed   []*outbox.Event
	replayed []int64
}

func (s *replayStore) GetFailedEvents(context.Context, int) ([]*outbox.Event, error) {
	return s.failed, nil
}

func (s *replayStore) ReplayEvent(_ context.Context, id int64) error {
	s.replayed = append(s.replayed, id)
	return nil
}

type testServer struct {
	mem     *testutil.MemoryStore
	replays *replayStore
	router  *Router
}

func newTestServer(t *testing.T, readiness map[string]ReadinessCheck) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	mem := testutil.NewMemoryStore()
	replays := &replayStore{}
	ic := interceptor.NewService(mem, false, log)

	h := Handlers{
		Baseline:    handler.NewBaselineHandler(baseline.NewService(mem, log), log),
		Certificate: handler.NewCertificateHandler(certificate.NewService(mem, log), log),
		Edit:        handler.NewEditHandler(edit.NewService(mem, ic, log), log),
		Variation:   handler.NewVariationHandler(variation.NewService(mem, nil, log), log),
		Plan:        handler.NewPlanHandler(plancommit.NewService(mem, nil, log), log),
		Admin:       handler.NewAdminHandler(outbox.NewReplayService(replays, log), log),
	}
	return &testServer{
		mem:     mem,
		replays: replays,
		router:  NewRouter("contracttracker-test", h, testSecret, readiness, log),
	}
}

func (s *testServer) do(t *testing.T, actor *model.Actor, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		token, err := util.GenerateJWT(*actor, testSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.Engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func committedMilestone(mem *testutil.MemoryStore) model.Milestone {
	return mem.AddMilestone(model.Milestone{
		ProjectID:         projectID,
		Ref:               "M-01",
		Name:              "Design",
		BaselineStartDate: model.MustDate("2026-01-01"),
		BaselineEndDate:   model.MustDate("2026-03-31"),
		BaselineBillable:  decimal.NewNullDecimal(decimal.RequireFromString("1000")),
	})
}

func TestOpsEndpoints(t *testing.T) {
	s := newTestServer(t, map[string]ReadinessCheck{
		"db": func(context.Context) error { return nil },
	})

	assert.Equal(t, http.StatusOK, s.do(t, nil, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, nil, http.MethodGet, "/readyz", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, nil, http.MethodGet, "/metrics", nil).Code)
}

func TestReadyzReportsFailingDependency(t *testing.T) {
	s := newTestServer(t, map[string]ReadinessCheck{
		"redis": func(context.Context) error { return errors.New("dial tcp: refused") },
	})

	w := s.do(t, nil, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "redis_not_ready")
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, nil)
	m := committedMilestone(s.mem)

	w := s.do(t, nil, http.MethodGet, "/milestones/"+m.ID.String()+"/baseline", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/milestones/"+m.ID.String()+"/baseline", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	s.router.Engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTraceIDEchoed(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(trace.HeaderName, "trace-123")
	w := httptest.NewRecorder()
	s.router.Engine.ServeHTTP(w, req)
	assert.Equal(t, "trace-123", w.Header().Get(trace.HeaderName))

	w = s.do(t, nil, http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, w.Header().Get(trace.HeaderName))
}

func TestBaselineSignLockEditDraftFlow(t *testing.T) {
	s := newTestServer(t, nil)
	m := committedMilestone(s.mem)
	base := "/milestones/" + m.ID.String() + "/baseline"

	w := s.do(t, &supplierPM, http.MethodPost, base+"/sign", gin.H{"party": "supplier"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view baseline.View
	decode(t, w, &view)
	assert.Equal(t, "AwaitingCustomer", string(view.State))
	assert.Equal(t, []model.Party{model.PartyCustomer}, view.NextSigners)

	w = s.do(t, &customerPM, http.MethodPost, base+"/sign", gin.H{"party": "customer"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &view)
	assert.Equal(t, "Locked", string(view.State))
	assert.True(t, view.Milestone.BaselineLocked)

	// locked baseline refuses further signatures
	w = s.do(t, &supplierPM, http.MethodPost, base+"/sign", gin.H{"party": "supplier"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// protected edit on the locked milestone is held, not written
	w = s.do(t, &contrib, http.MethodPost, "/edits", gin.H{
		"item_kind": "milestone",
		"item_id":   m.ID,
		"field":     "billable",
		"value":     "1500",
	})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	var res edit.Result
	decode(t, w, &res)
	assert.False(t, res.Applied)
	assert.Equal(t, interceptor.DecisionBlocked, res.Decision)
	require.NotNil(t, res.Pending)
	assert.Equal(t, "1000", res.Pending.PreviousValue)
	assert.Equal(t, "1500", res.Pending.NewValue)
	assert.True(t, s.mem.Milestones[m.ID].BaselineBillable.Decimal.Equal(decimal.RequireFromString("1000")))

	w = s.do(t, &contrib, http.MethodPost, "/variations/draft", gin.H{
		"project_id": projectID,
		"change":     res.Pending,
	})
	assert.Equal(t, http.StatusForbidden, w.Code, "contributors cannot draft variations")

	w = s.do(t, &supplierPM, http.MethodPost, "/variations/draft", gin.H{
		"project_id": projectID,
		"change":     res.Pending,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var draft variation.Draft
	decode(t, w, &draft)
	assert.Equal(t, model.VariationTypeCostAdjustment, draft.Variation.VariationType)
	require.Len(t, draft.Impacts, 1)
	assert.Equal(t, m.ID, draft.Impacts[0].MilestoneID)

	w = s.do(t, &adminActor, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &view)
	assert.Equal(t, "NotCommitted", string(view.State))

	assert.Equal(t, []string{
		"baseline.signed", "baseline.signed", "baseline.locked", "variation.drafted", "baseline.reset",
	}, s.mem.RoutingKeys())
}

func TestEditAppliedOnUnlockedMilestone(t *testing.T) {
	s := newTestServer(t, nil)
	m := committedMilestone(s.mem)

	w := s.do(t, &contrib, http.MethodPost, "/edits", gin.H{
		"item_kind": "milestone",
		"item_id":   m.ID,
		"field":     "end_date",
		"value":     "2026-04-30",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "2026-04-30", s.mem.Milestones[m.ID].BaselineEndDate.String())
}

func TestDraftBatchAcrossMilestones(t *testing.T) {
	s := newTestServer(t, nil)
	a := committedMilestone(s.mem)
	b := s.mem.AddMilestone(model.Milestone{
		ProjectID:        projectID,
		Ref:              "M-02",
		BaselineEndDate:  model.MustDate("2026-06-30"),
		BaselineBillable: decimal.NewNullDecimal(decimal.RequireFromString("2000")),
	})

	w := s.do(t, &supplierPM, http.MethodPost, "/variations/draft-batch", gin.H{
		"project_id": projectID,
		"changes": []gin.H{
			{"item_id": a.ID, "item_kind": "milestone", "field": "end_date", "previous_value": "2026-03-31", "new_value": "2026-04-30", "milestone": gin.H{"id": a.ID}},
			{"item_id": b.ID, "item_kind": "milestone", "field": "billable", "previous_value": "2000", "new_value": "2500", "milestone": gin.H{"id": b.ID}},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var draft variation.Draft
	decode(t, w, &draft)
	assert.Equal(t, model.VariationTypeCombined, draft.Variation.VariationType)
	assert.Len(t, draft.Impacts, 2)

	w = s.do(t, &supplierPM, http.MethodPost, "/variations/draft-batch", gin.H{
		"project_id": projectID,
		"changes":    []gin.H{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCertificateEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	m := committedMilestone(s.mem)
	s.mem.AddDeliverable(model.Deliverable{MilestoneID: m.ID, Ref: "D-01", Status: model.DeliverableStatusInProgress})
	path := "/milestones/" + m.ID.String() + "/certificate"

	w := s.do(t, &supplierPM, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "undelivered deliverable")

	for id, d := range s.mem.Deliverables {
		d.Status = model.DeliverableStatusDelivered
		s.mem.Deliverables[id] = d
	}

	w = s.do(t, &supplierPM, http.MethodPost, path, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var cert model.Certificate
	decode(t, w, &cert)
	assert.Equal(t, "CERT-M-01", cert.CertificateNumber)

	w = s.do(t, &supplierPM, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "certificate already exists")

	w = s.do(t, &viewer, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view certificate.View
	decode(t, w, &view)
	assert.Equal(t, "Draft", string(view.State))

	signPath := "/certificates/" + cert.ID.String() + "/sign"
	w = s.do(t, &customerPM, http.MethodPost, signPath, gin.H{"party": "supplier"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, &supplierPM, http.MethodPost, signPath, gin.H{"party": "supplier"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &cert)
	assert.Equal(t, "PendingCustomerSignature", cert.Status)

	w = s.do(t, &customerPM, http.MethodPost, signPath, gin.H{"party": "customer"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &cert)
	assert.Equal(t, "Signed", cert.Status)
}

func TestErrorStatusMapping(t *testing.T) {
	s := newTestServer(t, nil)
	m := committedMilestone(s.mem)

	w := s.do(t, &viewer, http.MethodGet, "/milestones/not-a-uuid/baseline", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, &viewer, http.MethodGet, "/milestones/"+projectID.String()+"/baseline", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, &viewer, http.MethodPost, "/milestones/"+m.ID.String()+"/baseline/reset", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, &supplierPM, http.MethodPost, "/milestones/"+m.ID.String()+"/baseline/sign", gin.H{"party": "auditor"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.mem.Fail["GetMilestone"] = errors.New("connection reset by peer")
	w = s.do(t, &viewer, http.MethodGet, "/milestones/"+m.ID.String()+"/baseline", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestPlanCommitEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.mem.AddPlanItem(model.PlanItem{
		ProjectID: projectID,
		ItemType:  model.PlanItemTypeMilestone,
		Name:      "Build",
		StartDate: model.MustDate("2026-02-01"),
		EndDate:   model.MustDate("2026-05-31"),
	})
	s.mem.AddPlanItem(model.PlanItem{
		ProjectID: projectID,
		ItemType:  model.PlanItemTypeMilestone,
		Name:      "Undated",
	})
	path := "/projects/" + projectID.String() + "/plan/commit"

	w := s.do(t, &supplierPM, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res plancommit.Result
	decode(t, w, &res)
	assert.Equal(t, 1, res.Count)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "Undated", res.Skipped[0].Name)

	w = s.do(t, &customerPM, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminReplay(t *testing.T) {
	s := newTestServer(t, nil)
	s.replays.failed = []*outbox.Event{{ID: 3}, {ID: 5}}

	w := s.do(t, &supplierPM, http.MethodPost, "/admin/outbox/replay-failed", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, &adminActor, http.MethodPost, "/admin/outbox/replay-failed?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []int64{3, 5}, s.replays.replayed)

	w = s.do(t, &adminActor, http.MethodPost, "/admin/outbox/replay?id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, &adminActor, http.MethodPost, "/admin/outbox/replay?id=9", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{3, 5, 9}, s.replays.replayed)
}
