package interceptor

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"contracttracker/internal/governance"
	"contracttracker/internal/model"
	"contracttracker/internal/store"
	"contracttracker/pkg/logger"
	"contracttracker/pkg/metrics"
	"contracttracker/pkg/otel"
	"contracttracker/pkg/rbac"
)

const (
	DecisionAllowed       = "allowed"
	DecisionBlocked       = "blocked"
	DecisionFailOpen      = "fail_open"
	DecisionFailClosed    = "fail_closed"
	DecisionAdminOverride = "admin_override"
)

var errNoLinkedMilestone = errors.New("published item has no milestone or deliverable reference")

// Decision is the outcome of a baseline protection check.
type Decision struct {
	Blocked bool
	// Milestone is the locked milestone behind a block. It is nil when a fail-closed
	// policy blocks because the milestone could not be resolved.
	Milestone *model.Milestone
	Outcome   string
	Reason    string
}

// Service decides whether an edit to a protected field may be written directly.
type Service struct {
	milestones store.MilestoneStore
	failClosed bool
	logger     *zap.Logger
}

func NewService(milestones store.MilestoneStore, failClosed bool, logger *zap.Logger) *Service {
	return &Service{
		milestones: milestones,
		failClosed: failClosed,
		logger:     logger,
	}
}

// Check returns the locked milestone that blocks the edit, or nil to allow it.
// Under a fail-closed policy an unresolvable milestone blocks with no milestone to
// return; callers that enable it should use Decide or Intercept.
func (s *Service) Check(ctx context.Context, actor model.Actor, target governance.EditTarget, field string) *model.Milestone {
	return s.Decide(ctx, actor, target, field).Milestone
}

// Decide runs the protection rules for one field edit.
func (s *Service) Decide(ctx context.Context, actor model.Actor, target governance.EditTarget, field string) Decision {
	ctx, span := otel.StartSpan(ctx, "interceptor.Decide")
	defer span.End()

	d := s.decide(ctx, actor, target, field)

	span.SetAttributes(
		attribute.String("item.id", target.ID.String()),
		attribute.String("item.kind", target.Kind),
		attribute.String("field", field),
		attribute.String("decision", d.Outcome),
	)
	metrics.IncrementEditDecision(d.Outcome)
	return d
}

func (s *Service) decide(ctx context.Context, actor model.Actor, target governance.EditTarget, field string) Decision {
	log := logger.WithTrace(ctx, s.logger)

	if !governance.IsProtectedField(field) {
		return Decision{Outcome: DecisionAllowed, Reason: "field is not protected"}
	}
	if !target.Published || (target.MilestoneID == nil && target.DeliverableID == nil) {
		return Decision{Outcome: DecisionAllowed, Reason: "item is not published to a tracked entity"}
	}
	if rbac.IsAdmin(actor.Role) {
		log.Info("Admin override of baseline protection",
			zap.String("actor_id", actor.ID),
			zap.String("item_id", target.ID.String()),
			zap.String("field", field),
		)
		return Decision{Outcome: DecisionAdminOverride, Reason: "admin may edit locked baselines"}
	}

	m, err := s.resolveMilestone(ctx, target)
	if err != nil {
		if s.failClosed {
			log.Warn("Milestone lookup failed, blocking edit",
				zap.String("item_id", target.ID.String()),
				zap.String("field", field),
				zap.Error(err),
			)
			return Decision{Blocked: true, Outcome: DecisionFailClosed, Reason: "linked milestone could not be resolved: " + err.Error()}
		}
		log.Warn("Milestone lookup failed, allowing edit",
			zap.String("item_id", target.ID.String()),
			zap.String("field", field),
			zap.Error(err),
		)
		return Decision{Outcome: DecisionFailOpen, Reason: "linked milestone could not be resolved: " + err.Error()}
	}

	if !governance.IsLocked(m) {
		return Decision{Outcome: DecisionAllowed, Reason: "baseline is not locked"}
	}

	log.Info("Edit blocked by locked baseline",
		zap.String("item_id", target.ID.String()),
		zap.String("milestone_id", m.ID.String()),
		zap.String("field", field),
	)
	return Decision{Blocked: true, Milestone: &m, Outcome: DecisionBlocked, Reason: "baseline of " + m.Ref + " is locked"}
}

// resolveMilestone follows a direct milestone reference, else deliverable → parent milestone.
func (s *Service) resolveMilestone(ctx context.Context, target governance.EditTarget) (model.Milestone, error) {
	if target.MilestoneID != nil {
		return s.milestones.GetMilestone(ctx, *target.MilestoneID)
	}
	if target.DeliverableID != nil {
		milestoneID, err := s.milestones.GetDeliverableMilestoneID(ctx, *target.DeliverableID)
		if err != nil {
			return model.Milestone{}, err
		}
		return s.milestones.GetMilestone(ctx, milestoneID)
	}
	return model.Milestone{}, errNoLinkedMilestone
}

// Intercept runs Decide and, on block, captures the edit as a pending change.
func (s *Service) Intercept(ctx context.Context, actor model.Actor, target governance.EditTarget, field, previous, next string) (*governance.PendingChange, Decision) {
	d := s.Decide(ctx, actor, target, field)
	if !d.Blocked {
		return nil, d
	}
	pc := &governance.PendingChange{
		ItemID:        target.ID,
		ItemKind:      target.Kind,
		Field:         field,
		PreviousValue: previous,
		NewValue:      next,
	}
	if d.Milestone != nil {
		pc.Milestone = *d.Milestone
	}
	return pc, d
}
