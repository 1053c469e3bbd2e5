package interceptor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"contracttracker/internal/governance"
	"contracttracker/internal/model"
	"contracttracker/internal/store"
	"contracttracker/internal/testutil"
)

var (
	editor = model.Actor{ID: "u-1", Name: "Pat Editor", Role: "supplier_pm"}
	admin  = model.Actor{ID: "u-0", Name: "Ada Admin", Role: "admin"}
)

func signed(id string) *model.Signature {
	return &model.Signature{SignerID: id, SignerName: id, SignedAt: time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)}
}

func lockedMilestone(mem *testutil.MemoryStore) model.Milestone {
	return mem.AddMilestone(model.Milestone{
		Ref:                       "M-01",
		BaselineStartDate:         model.MustDate("2026-01-01"),
		BaselineEndDate:           model.MustDate("2026-03-31"),
		BaselineLocked:            true,
		BaselineSupplierSignature: signed("s"),
		BaselineCustomerSignature: signed("c"),
	})
}

func TestCheckBlocksLockedMilestone(t *testing.T) {
	mem := testutil.NewMemoryStore()
	m := lockedMilestone(mem)
	svc := NewService(mem, false, zap.NewNop())

	for _, field := range []string{"start_date", "end_date", "duration", "cost", "billable"} {
		got := svc.Check(context.Background(), editor, governance.MilestoneTarget(m.ID), field)
		require.NotNil(t, got, field)
		assert.Equal(t, m.ID, got.ID)
	}
}

func TestCheckAllowsAdminUnconditionally(t *testing.T) {
	mem := testutil.NewMemoryStore()
	m := lockedMilestone(mem)
	svc := NewService(mem, true, zap.NewNop())

	d := svc.Decide(context.Background(), admin, governance.MilestoneTarget(m.ID), "end_date")
	assert.False(t, d.Blocked)
	assert.Equal(t, DecisionAdminOverride, d.Outcome)
}

func TestCheckAllows(t *testing.T) {
	mem := testutil.NewMemoryStore()
	locked := lockedMilestone(mem)
	open := mem.AddMilestone(model.Milestone{Ref: "M-02", BaselineSupplierSignature: signed("s")})
	svc := NewService(mem, false, zap.NewNop())

	assert.Nil(t, svc.Check(context.Background(), editor, governance.MilestoneTarget(locked.ID), "name"), "unprotected field")
	assert.Nil(t, svc.Check(context.Background(), editor, governance.MilestoneTarget(open.ID), "start_date"), "one signature only")

	draft := model.PlanItem{ID: uuid.New(), ItemType: model.PlanItemTypeMilestone}
	assert.Nil(t, svc.Check(context.Background(), editor, governance.PlanItemTarget(draft), "start_date"), "unpublished plan item")
}

func TestCheckResolvesThroughDeliverable(t *testing.T) {
	mem := testutil.NewMemoryStore()
	m := lockedMilestone(mem)
	d := mem.AddDeliverable(model.Deliverable{MilestoneID: m.ID, Ref: "D-01"})
	svc := NewService(mem, false, zap.NewNop())

	got := svc.Check(context.Background(), editor, governance.DeliverableTarget(d.ID), "end_date")
	require.NotNil(t, got)
	assert.Equal(t, m.ID, got.ID)
}

func TestLookupFailurePolicy(t *testing.T) {
	mem := testutil.NewMemoryStore()
	m := lockedMilestone(mem)
	mem.Fail["GetMilestone"] = fmt.Errorf("get milestone: %w", store.ErrTransient)

	open := NewService(mem, false, zap.NewNop())
	d := open.Decide(context.Background(), editor, governance.MilestoneTarget(m.ID), "start_date")
	assert.False(t, d.Blocked)
	assert.Equal(t, DecisionFailOpen, d.Outcome)

	missing := uuid.New()
	d = open.Decide(context.Background(), editor, governance.DeliverableTarget(missing), "start_date")
	assert.False(t, d.Blocked, "unknown deliverable fails open")

	closed := NewService(mem, true, zap.NewNop())
	d = closed.Decide(context.Background(), editor, governance.MilestoneTarget(m.ID), "start_date")
	assert.True(t, d.Blocked)
	assert.Nil(t, d.Milestone)
	assert.Equal(t, DecisionFailClosed, d.Outcome)
	assert.NotEmpty(t, d.Reason)
}

func TestInterceptCapturesPendingChange(t *testing.T) {
	mem := testutil.NewMemoryStore()
	m := lockedMilestone(mem)
	mid := m.ID
	item := mem.AddPlanItem(model.PlanItem{
		ItemType:             model.PlanItemTypeMilestone,
		StartDate:            model.MustDate("2026-01-01"),
		IsPublished:          true,
		PublishedMilestoneID: &mid,
	})
	svc := NewService(mem, false, zap.NewNop())

	pc, d := svc.Intercept(context.Background(), editor, governance.PlanItemTarget(item), "start_date", "2026-01-01", "2026-01-15")
	require.True(t, d.Blocked)
	require.NotNil(t, pc)
	assert.Equal(t, item.ID, pc.ItemID)
	assert.Equal(t, governance.ItemKindPlanItem, pc.ItemKind)
	assert.Equal(t, "start_date", pc.Field)
	assert.Equal(t, "2026-01-01", pc.PreviousValue)
	assert.Equal(t, "2026-01-15", pc.NewValue)
	assert.Equal(t, m.ID, pc.Milestone.ID)

	pc, d = svc.Intercept(context.Background(), editor, governance.PlanItemTarget(item), "name", "a", "b")
	assert.False(t, d.Blocked)
	assert.Nil(t, pc)
}
