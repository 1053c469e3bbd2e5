package store

import (
	"context"

	"github.com/google/uuid"

	"contracttracker/internal/model"
)

// MilestoneStore reads milestones and applies baseline writes. Every write is a single
// conditional statement so concurrent callers cannot interleave a read-then-write.
type MilestoneStore interface {
	GetMilestone(ctx context.Context, id uuid.UUID) (model.Milestone, error)
	// GetDeliverableMilestoneID returns the parent milestone id of a deliverable.
	GetDeliverableMilestoneID(ctx context.Context, deliverableID uuid.UUID) (uuid.UUID, error)
	ListDeliverablesByMilestone(ctx context.Context, milestoneID uuid.UUID) ([]model.Deliverable, error)
	// ApplyBaselineSignature sets the party's signature and, in the same write, sets the lock
	// flag when the other party's signature is already present.
	ApplyBaselineSignature(ctx context.Context, milestoneID uuid.UUID, party model.Party, sig model.Signature) (model.Milestone, error)
	// ResetBaseline clears both signatures and the lock flag.
	ResetBaseline(ctx context.Context, milestoneID uuid.UUID, actorID string) (model.Milestone, error)
	// UpdateBaseline writes baseline values. Unless allowLocked is set, a locked milestone is
	// left untouched and ErrConflict is returned.
	UpdateBaseline(ctx context.Context, milestoneID uuid.UUID, values model.BaselineValues, allowLocked bool) (model.Milestone, error)
}

type CertificateStore interface {
	GetCertificate(ctx context.Context, id uuid.UUID) (model.Certificate, error)
	// GetCertificateByMilestone returns ErrNotFound when the milestone has no certificate.
	GetCertificateByMilestone(ctx context.Context, milestoneID uuid.UUID) (model.Certificate, error)
	// CreateCertificate returns ErrConflict when the milestone already has one.
	CreateCertificate(ctx context.Context, c model.Certificate) (model.Certificate, error)
	// ApplyCertificateSignature returns ErrConflict when the certificate is already fully signed.
	ApplyCertificateSignature(ctx context.Context, certificateID uuid.UUID, party model.Party, sig model.Signature) (model.Certificate, error)
}

type VariationStore interface {
	// CreateVariation writes the variation and all impact rows atomically.
	CreateVariation(ctx context.Context, v model.Variation, impacts []model.VariationMilestoneImpact) (model.Variation, []model.VariationMilestoneImpact, error)
}

type PlanStore interface {
	GetPlanItem(ctx context.Context, id uuid.UUID) (model.PlanItem, error)
	ListPlanItems(ctx context.Context, projectID uuid.UUID) ([]model.PlanItem, error)
	UpdatePlanItemSchedule(ctx context.Context, id uuid.UUID, values model.BaselineValues) (model.PlanItem, error)
	// CommitPlanMilestone inserts the milestone and marks the plan item published in one
	// transaction. It returns ErrConflict if the item was published concurrently.
	CommitPlanMilestone(ctx context.Context, itemID uuid.UUID, m model.Milestone) (model.Milestone, error)
	CommitPlanDeliverable(ctx context.Context, itemID uuid.UUID, d model.Deliverable) (model.Deliverable, error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	MilestoneStore
	CertificateStore
	VariationStore
	PlanStore
	Ping(ctx context.Context) error
}
