package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Certificate struct {
	ID                    uuid.UUID           `json:"id"`
	CertificateNumber     string              `json:"certificate_number"`
	MilestoneID           uuid.UUID           `json:"milestone_id"`
	MilestoneRef          string              `json:"milestone_ref"`
	MilestoneName         string              `json:"milestone_name"`
	PaymentMilestoneValue decimal.NullDecimal `json:"payment_milestone_value"`
	// Status is a copy of CertificateStateOf written alongside the signatures; readers should
	// derive state from the signatures instead.
	Status               string                `json:"status"`
	SupplierSignature    *Signature            `json:"supplier_signature"`
	CustomerSignature    *Signature            `json:"customer_signature"`
	DeliverablesSnapshot []DeliverableSnapshot `json:"deliverables_snapshot"`
	GeneratedBy          string                `json:"generated_by"`
	GeneratedAt          time.Time             `json:"generated_at"`
}

// DeliverableSnapshot is the frozen view of a deliverable at certificate generation time.
type DeliverableSnapshot struct {
	ID     uuid.UUID `json:"id"`
	Ref    string    `json:"ref"`
	Name   string    `json:"name"`
	Status string    `json:"status"`
}
