package baseline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
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

// View is a milestone's baseline with its derived state.
type View struct {
	Milestone   model.Milestone          `json:"milestone"`
	State       governance.BaselineState `json:"state"`
	NextSigners []model.Party            `json:"next_signers"`
}

func viewOf(m model.Milestone) View {
	state := governance.BaselineStateOf(m)
	return View{Milestone: m, State: state, NextSigners: governance.NextBaselineSigners(state)}
}

type Service struct {
	milestones store.MilestoneStore
	logger     *zap.Logger
	// NowFunc stamps signatures; tests replace it.
	NowFunc func() time.Time
}

func NewService(milestones store.MilestoneStore, logger *zap.Logger) *Service {
	return &Service{
		milestones: milestones,
		logger:     logger,
		NowFunc:    time.Now,
	}
}

// Get returns the milestone's baseline state.
func (s *Service) Get(ctx context.Context, milestoneID uuid.UUID) (View, error) {
	m, err := s.milestones.GetMilestone(ctx, milestoneID)
	if err != nil {
		return View{}, fmt.Errorf("get baseline: %w", err)
	}
	return viewOf(m), nil
}

// Sign records actor's signature for party. The store sets the lock flag in the same
// write when the other party has already signed.
func (s *Service) Sign(ctx context.Context, actor model.Actor, milestoneID uuid.UUID, party model.Party) (v View, err error) {
	ctx, span := otel.StartSpan(ctx, "baseline.Sign")
	span.SetAttributes(
		attribute.String("milestone.id", milestoneID.String()),
		attribute.String("party", string(party)),
	)
	defer func() { otel.EndSpan(span, err) }()

	log := logger.WithTrace(ctx, s.logger)

	if !party.Valid() {
		return View{}, fmt.Errorf("%w: unknown party %q", governance.ErrValidation, party)
	}
	if err := rbac.CheckPermission(actor.ID, actor.Role, governance.BaselineSignAction(party)); err != nil {
		log.Warn("Baseline signature refused",
			zap.String("actor_id", actor.ID),
			zap.String("role", actor.Role),
			zap.String("party", string(party)),
		)
		return View{}, fmt.Errorf("%w: %w", governance.ErrPermissionDenied, err)
	}

	current, err := s.milestones.GetMilestone(ctx, milestoneID)
	if err != nil {
		return View{}, fmt.Errorf("sign baseline: %w", err)
	}
	if governance.IsLocked(current) {
		return View{}, fmt.Errorf("%w: baseline of %s is already locked", governance.ErrIneligible, current.Ref)
	}

	log.Debug("Signing baseline",
		zap.String("milestone_id", milestoneID.String()),
		zap.String("party", string(party)),
		zap.String("actor_id", actor.ID),
	)
	m, err := s.milestones.ApplyBaselineSignature(ctx, milestoneID, party, model.SignatureBy(actor, s.NowFunc()))
	if err != nil {
		log.Error("Failed to sign baseline", zap.String("milestone_id", milestoneID.String()), zap.Error(err))
		return View{}, fmt.Errorf("sign baseline: %w", err)
	}
	metrics.IncrementSignature("baseline", string(party))

	v = viewOf(m)
	log.Info("Baseline signed",
		zap.String("milestone_id", milestoneID.String()),
		zap.String("party", string(party)),
		zap.String("state", string(v.State)),
	)
	return v, nil
}

// Reset clears both signatures and the lock flag. Admin only.
func (s *Service) Reset(ctx context.Context, actor model.Actor, milestoneID uuid.UUID) (v View, err error) {
	ctx, span := otel.StartSpan(ctx, "baseline.Reset")
	span.SetAttributes(attribute.String("milestone.id", milestoneID.String()))
	defer func() { otel.EndSpan(span, err) }()

	log := logger.WithTrace(ctx, s.logger)

	if err := rbac.CheckPermission(actor.ID, actor.Role, rbac.ActionBaselineReset); err != nil {
		return View{}, fmt.Errorf("%w: %w", governance.ErrPermissionDenied, err)
	}

	m, err := s.milestones.ResetBaseline(ctx, milestoneID, actor.ID)
	if err != nil {
		log.Error("Failed to reset baseline", zap.String("milestone_id", milestoneID.String()), zap.Error(err))
		return View{}, fmt.Errorf("reset baseline: %w", err)
	}

	log.Info("Baseline reset",
		zap.String("milestone_id", milestoneID.String()),
		zap.String("actor_id", actor.ID),
	)
	return viewOf(m), nil
}
