package governance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"contracttracker/internal/model"
)

func TestCertificateStateOf(t *testing.T) {
	assert.Equal(t, CertificateNone, CertificateStateOf(nil))
	assert.Equal(t, CertificateDraft, CertificateStateOf(&model.Certificate{}))
	assert.Equal(t, CertificatePendingCustomerSignature, CertificateStateOf(&model.Certificate{SupplierSignature: sig("s")}))
	assert.Equal(t, CertificatePendingSupplierSignature, CertificateStateOf(&model.Certificate{CustomerSignature: sig("c")}))
	assert.Equal(t, CertificateSigned, CertificateStateOf(&model.Certificate{SupplierSignature: sig("s"), CustomerSignature: sig("c")}))
}

func deliverables(statuses ...string) []model.Deliverable {
	out := make([]model.Deliverable, len(statuses))
	for i, s := range statuses {
		out[i] = model.Deliverable{Status: s}
	}
	return out
}

func TestCertificateEligibility(t *testing.T) {
	all := deliverables(model.DeliverableStatusDelivered, model.DeliverableStatusDelivered)
	assert.True(t, CanGenerateCertificate(all, nil))

	partial := deliverables(model.DeliverableStatusDelivered, model.DeliverableStatusSubmitted, model.DeliverableStatusInProgress)
	e := CertificateEligibilityOf(partial, nil)
	assert.False(t, e.Eligible)
	assert.Equal(t, 1, e.Delivered)
	assert.Equal(t, "2 of 3 deliverables are not delivered", e.Reason)

	existing := &model.Certificate{}
	e = CertificateEligibilityOf(all, existing)
	assert.False(t, e.Eligible)
	assert.True(t, e.CertificateExists)

	assert.True(t, CanGenerateCertificate(nil, nil))
}
