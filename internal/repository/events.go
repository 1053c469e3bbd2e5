package repository

import (
	"time"

	"github.com/google/uuid"

	"contracttracker/internal/model"
)

const (
	AggregateMilestone   = "milestone"
	AggregateCertificate = "certificate"
	AggregateVariation   = "variation"
	AggregatePlanItem    = "plan_item"
)

// 领域事件 routing key（events topic exchange）
const (
	EventBaselineSigned       = "baseline.signed"
	EventBaselineLocked       = "baseline.locked"
	EventBaselineReset        = "baseline.reset"
	EventCertificateGenerated = "certificate.generated"
	EventCertificateSigned    = "certificate.signed"
	EventVariationDrafted     = "variation.drafted"
	EventPlanCommitted        = "plan.committed"
)

type BaselineSignedPayload struct {
	MilestoneID uuid.UUID   `json:"milestone_id"`
	ProjectID   uuid.UUID   `json:"project_id"`
	Party       model.Party `json:"party"`
	SignerID    string      `json:"signer_id"`
	SignedAt    time.Time   `json:"signed_at"`
	Locked      bool        `json:"locked"`
}

type BaselineResetPayload struct {
	MilestoneID uuid.UUID `json:"milestone_id"`
	ProjectID   uuid.UUID `json:"project_id"`
	ResetBy     string    `json:"reset_by"`
}

type CertificatePayload struct {
	CertificateID     uuid.UUID `json:"certificate_id"`
	CertificateNumber string    `json:"certificate_number"`
	MilestoneID       uuid.UUID `json:"milestone_id"`
	Status            string    `json:"status"`
	Party             string    `json:"party,omitempty"`
}

type VariationDraftedPayload struct {
	VariationID   uuid.UUID   `json:"variation_id"`
	ProjectID     uuid.UUID   `json:"project_id"`
	Ref           string      `json:"ref"`
	VariationType string      `json:"variation_type"`
	MilestoneIDs  []uuid.UUID `json:"milestone_ids"`
	CreatedBy     string      `json:"created_by"`
}

type PlanCommittedPayload struct {
	PlanItemID uuid.UUID  `json:"plan_item_id"`
	ProjectID  *uuid.UUID `json:"project_id,omitempty"`
	ItemType   string     `json:"item_type"`
	EntityID   uuid.UUID  `json:"entity_id"`
	Ref        string     `json:"ref"`
}
