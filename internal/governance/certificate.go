package governance

import (
	"fmt"

	"contracttracker/internal/model"
)

// CertificateState is derived from a certificate's signature fields.
type CertificateState string

const (
	CertificateNone                     CertificateState = "None"
	CertificateDraft                    CertificateState = "Draft"
	CertificatePendingCustomerSignature CertificateState = "PendingCustomerSignature"
	CertificatePendingSupplierSignature CertificateState = "PendingSupplierSignature"
	CertificateSigned                   CertificateState = "Signed"
)

// CertificateStateOf computes the status of c; a nil certificate is None.
func CertificateStateOf(c *model.Certificate) CertificateState {
	if c == nil {
		return CertificateNone
	}
	supplier := c.SupplierSignature != nil
	customer := c.CustomerSignature != nil
	switch {
	case supplier && customer:
		return CertificateSigned
	case supplier:
		return CertificatePendingCustomerSignature
	case customer:
		return CertificatePendingSupplierSignature
	default:
		return CertificateDraft
	}
}

// CertificateEligibility explains whether a certificate may be generated for a milestone.
type CertificateEligibility struct {
	Eligible          bool   `json:"eligible"`
	Deliverables      int    `json:"deliverables"`
	Delivered         int    `json:"delivered"`
	CertificateExists bool   `json:"certificate_exists"`
	Reason            string `json:"reason,omitempty"`
}

// CertificateEligibilityOf evaluates: every deliverable Delivered and no certificate yet.
// A milestone without deliverables satisfies the first clause vacuously.
func CertificateEligibilityOf(deliverables []model.Deliverable, existing *model.Certificate) CertificateEligibility {
	e := CertificateEligibility{Deliverables: len(deliverables)}
	for _, d := range deliverables {
		if d.Status == model.DeliverableStatusDelivered {
			e.Delivered++
		}
	}
	e.CertificateExists = CertificateStateOf(existing) != CertificateNone

	switch {
	case e.CertificateExists:
		e.Reason = "a certificate already exists for this milestone"
	case e.Delivered < e.Deliverables:
		e.Reason = fmt.Sprintf("%d of %d deliverables are not delivered", e.Deliverables-e.Delivered, e.Deliverables)
	default:
		e.Eligible = true
	}
	return e
}

// CanGenerateCertificate is the eligibility predicate without the explanation.
func CanGenerateCertificate(deliverables []model.Deliverable, existing *model.Certificate) bool {
	return CertificateEligibilityOf(deliverables, existing).Eligible
}
