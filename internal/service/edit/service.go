package edit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"contracttracker/internal/governance"
	"contracttracker/internal/model"
	"contracttracker/internal/service/interceptor"
	"contracttracker/internal/store"
	"contracttracker/pkg/logger"
	"contracttracker/pkg/otel"
	"contracttracker/pkg/rbac"
)

// Request is a single schedule/cost field edit from the tracker or the planner.
type Request struct {
	ItemKind string    `json:"item_kind" binding:"required"`
	ItemID   uuid.UUID `json:"item_id" binding:"required"`
	Field    string    `json:"field" binding:"required"`
	Value    string    `json:"value"`
}

// Result is either an applied write or a blocked edit held as a pending change.
type Result struct {
	Applied   bool                      `json:"applied"`
	Decision  string                    `json:"decision"`
	Reason    string                    `json:"reason,omitempty"`
	Pending   *governance.PendingChange `json:"pending_change,omitempty"`
	Milestone *model.Milestone          `json:"milestone,omitempty"`
	PlanItem  *model.PlanItem           `json:"plan_item,omitempty"`
}

type Service struct {
	store       store.Store
	interceptor *interceptor.Service
	logger      *zap.Logger
}

func NewService(s store.Store, ic *interceptor.Service, logger *zap.Logger) *Service {
	return &Service{
		store:       s,
		interceptor: ic,
		logger:      logger,
	}
}

// ApplyEdit writes the edit unless baseline protection blocks it. A blocked edit performs
// no write and comes back as a pending change.
func (s *Service) ApplyEdit(ctx context.Context, actor model.Actor, req Request) (res Result, err error) {
	ctx, span := otel.StartSpan(ctx, "edit.ApplyEdit")
	span.SetAttributes(
		attribute.String("item.kind", req.ItemKind),
		attribute.String("item.id", req.ItemID.String()),
		attribute.String("field", req.Field),
	)
	defer func() { otel.EndSpan(span, err) }()

	log := logger.WithTrace(ctx, s.logger)

	if err := rbac.CheckPermission(actor.ID, actor.Role, rbac.ActionEdit); err != nil {
		return Result{}, fmt.Errorf("%w: %w", governance.ErrPermissionDenied, err)
	}
	if !governance.IsProtectedField(req.Field) {
		return Result{}, fmt.Errorf("%w: field %q is not a schedule or cost field", governance.ErrValidation, req.Field)
	}

	var (
		target  governance.EditTarget
		current model.BaselineValues
	)
	switch req.ItemKind {
	case governance.ItemKindMilestone:
		m, err := s.store.GetMilestone(ctx, req.ItemID)
		if err != nil {
			return Result{}, fmt.Errorf("apply edit: %w", err)
		}
		target, current = governance.MilestoneTarget(m.ID), m.Baseline()
	case governance.ItemKindPlanItem:
		p, err := s.store.GetPlanItem(ctx, req.ItemID)
		if err != nil {
			return Result{}, fmt.Errorf("apply edit: %w", err)
		}
		target, current = governance.PlanItemTarget(p), p.Schedule()
	default:
		return Result{}, fmt.Errorf("%w: items of kind %q are not edited here", governance.ErrValidation, req.ItemKind)
	}

	next, err := governance.FoldChange(current, req.Field, req.Value)
	if err != nil {
		return Result{}, err
	}

	pending, d := s.interceptor.Intercept(ctx, actor, target, req.Field, fieldValue(current, req.Field), req.Value)
	if d.Blocked {
		return Result{Decision: d.Outcome, Reason: d.Reason, Pending: pending}, nil
	}

	res = Result{Applied: true, Decision: d.Outcome, Reason: d.Reason}
	switch req.ItemKind {
	case governance.ItemKindMilestone:
		allowLocked := d.Outcome == interceptor.DecisionAdminOverride || d.Outcome == interceptor.DecisionFailOpen
		m, err := s.store.UpdateBaseline(ctx, req.ItemID, next, allowLocked)
		if err != nil {
			log.Error("Failed to update baseline", zap.String("milestone_id", req.ItemID.String()), zap.Error(err))
			return Result{}, fmt.Errorf("apply edit: %w", err)
		}
		res.Milestone = &m
	case governance.ItemKindPlanItem:
		p, err := s.store.UpdatePlanItemSchedule(ctx, req.ItemID, next)
		if err != nil {
			log.Error("Failed to update plan item", zap.String("item_id", req.ItemID.String()), zap.Error(err))
			return Result{}, fmt.Errorf("apply edit: %w", err)
		}
		res.PlanItem = &p
	}

	log.Info("Edit applied",
		zap.String("item_kind", req.ItemKind),
		zap.String("item_id", req.ItemID.String()),
		zap.String("field", req.Field),
		zap.String("decision", d.Outcome),
	)
	return res, nil
}

// fieldValue renders the current value of field in its wire form.
func fieldValue(v model.BaselineValues, field string) string {
	switch field {
	case governance.FieldStartDate:
		return model.FormatDate(v.Start)
	case governance.FieldEndDate:
		return model.FormatDate(v.End)
	case governance.FieldCost, governance.FieldBillable:
		if v.Cost.Valid {
			return v.Cost.Decimal.String()
		}
	case governance.FieldDuration:
		if v.Start != nil && v.End != nil {
			return strconv.Itoa(int(v.End.Sub(v.Start.Time).Hours() / 24))
		}
	}
	return ""
}
