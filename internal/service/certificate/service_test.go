package certificate

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"contracttracker/internal/governance"
	"contracttracker/internal/model"
	"contracttracker/internal/store"
	"contracttracker/internal/testutil"
)

var (
	supplierPM      = model.Actor{ID: "u-s", Name: "Sam Supplier", Role: "supplier_pm"}
	customerFinance = model.Actor{ID: "u-f", Name: "Fay Finance", Role: "customer_finance"}
	contributor     = model.Actor{ID: "u-x", Name: "Kit Contributor", Role: "contributor"}
)

func fixture(statuses ...string) (*testutil.MemoryStore, *Service, model.Milestone) {
	mem := testutil.NewMemoryStore()
	m := mem.AddMilestone(model.Milestone{
		Ref:      "M-07",
		Name:     "Go-live",
		Status:   model.MilestoneStatusCompleted,
		Billable: decimal.NewNullDecimal(decimal.RequireFromString("25000")),
	})
	for i, s := range statuses {
		mem.AddDeliverable(model.Deliverable{MilestoneID: m.ID, Ref: string(rune('A' + i)), Name: "doc", Status: s})
	}
	svc := NewService(mem, zap.NewNop())
	svc.NowFunc = func() time.Time { return time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC) }
	return mem, svc, m
}

func TestGenerate(t *testing.T) {
	mem, svc, m := fixture(model.DeliverableStatusDelivered, model.DeliverableStatusDelivered)

	c, err := svc.Generate(context.Background(), supplierPM, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "CERT-M-07", c.CertificateNumber)
	assert.Equal(t, "Go-live", c.MilestoneName)
	assert.Equal(t, string(governance.CertificateDraft), c.Status)
	assert.True(t, c.PaymentMilestoneValue.Decimal.Equal(decimal.RequireFromString("25000")))
	assert.Len(t, c.DeliverablesSnapshot, 2)
	assert.Equal(t, "u-s", c.GeneratedBy)
	assert.Equal(t, []string{"certificate.generated"}, mem.RoutingKeys())

	v, err := svc.State(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, governance.CertificateDraft, v.State)
	assert.False(t, v.Eligibility.Eligible)
}

func TestGenerateRefusedWithUndeliveredDeliverables(t *testing.T) {
	mem, svc, m := fixture(model.DeliverableStatusDelivered, model.DeliverableStatusSubmitted)

	_, err := svc.Generate(context.Background(), supplierPM, m.ID)
	assert.ErrorIs(t, err, governance.ErrIneligible)
	assert.Contains(t, err.Error(), "1 of 2 deliverables are not delivered")
	assert.Empty(t, mem.Certificates)
}

func TestSecondGenerationRefused(t *testing.T) {
	mem, svc, m := fixture(model.DeliverableStatusDelivered)

	_, err := svc.Generate(context.Background(), supplierPM, m.ID)
	require.NoError(t, err)
	_, err = svc.Generate(context.Background(), supplierPM, m.ID)
	assert.ErrorIs(t, err, governance.ErrIneligible)
	assert.Len(t, mem.Certificates, 1)
}

func TestConcurrentInsertMapsToConflict(t *testing.T) {
	mem, svc, m := fixture(model.DeliverableStatusDelivered)
	// the row appears between the eligibility read and the insert
	mem.Fail["CreateCertificate"] = store.ErrConflict

	_, err := svc.Generate(context.Background(), supplierPM, m.ID)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestGenerateRequiresCapability(t *testing.T) {
	mem, svc, m := fixture(model.DeliverableStatusDelivered)

	_, err := svc.Generate(context.Background(), contributor, m.ID)
	assert.ErrorIs(t, err, governance.ErrPermissionDenied)
	assert.Empty(t, mem.Certificates)
}

func TestSignToSigned(t *testing.T) {
	_, svc, m := fixture(model.DeliverableStatusDelivered)
	c, err := svc.Generate(context.Background(), supplierPM, m.ID)
	require.NoError(t, err)

	c, err = svc.Sign(context.Background(), supplierPM, c.ID, model.PartySupplier)
	require.NoError(t, err)
	assert.Equal(t, string(governance.CertificatePendingCustomerSignature), c.Status)

	_, err = svc.Sign(context.Background(), supplierPM, c.ID, model.PartyCustomer)
	assert.ErrorIs(t, err, governance.ErrPermissionDenied)

	c, err = svc.Sign(context.Background(), customerFinance, c.ID, model.PartyCustomer)
	require.NoError(t, err)
	assert.Equal(t, string(governance.CertificateSigned), c.Status)
	assert.Equal(t, governance.CertificateSigned, governance.CertificateStateOf(&c))

	_, err = svc.Sign(context.Background(), customerFinance, c.ID, model.PartyCustomer)
	assert.ErrorIs(t, err, governance.ErrIneligible)
}

func TestStateWithoutCertificate(t *testing.T) {
	_, svc, m := fixture()

	v, err := svc.State(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Nil(t, v.Certificate)
	assert.Equal(t, governance.CertificateNone, v.State)
	assert.True(t, v.Eligibility.Eligible, "no deliverables")
}
