package plancommit

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const guardScope = "commit"

// Guard keeps two commit runs for the same project from overlapping.
// *util.Deduper satisfies it.
type Guard interface {
	AcquireOnce(ctx context.Context, scope, key string) bool
	Release(ctx context.Context, scope, key string)
}

// Skipped is a plan item left out of a run because it is incomplete.
type Skipped struct {
	ItemID uuid.UUID `json:"item_id"`
	Name   string    `json:"name"`
	Reason string    `json:"reason"`
}

// ItemError is a plan item whose creation failed.
type ItemError struct {
	ItemID uuid.UUID `json:"item_id"`
	Name   string    `json:"name"`
	Error  string    `json:"error"`
}

// Result tallies one commit run.
type Result struct {
	Count        int                 `json:"count"`
	Milestones   []model.Milestone   `json:"milestones"`
	Deliverables []model.Deliverable `json:"deliverables"`
	Skipped      []Skipped           `json:"skipped"`
	Errors       []ItemError         `json:"errors"`
}

type Service struct {
	plans  store.PlanStore
	guard  Guard
	logger *zap.Logger
}

func NewService(plans store.PlanStore, guard Guard, logger *zap.Logger) *Service {
	return &Service{
		plans:  plans,
		guard:  guard,
		logger: logger,
	}
}

// Commit promotes every unpublished milestone and deliverable plan item of a project.
// Incomplete items are skipped, failed creates are collected, and neither stops the run.
// Published items never qualify again, so a rerun commits nothing new.
func (s *Service) Commit(ctx context.Context, actor model.Actor, projectID uuid.UUID) (res Result, err error) {
	ctx, span := otel.StartSpan(ctx, "plancommit.Commit")
	span.SetAttributes(attribute.String("project.id", projectID.String()))
	defer func() { otel.EndSpan(span, err) }()

	log := logger.WithTrace(ctx, s.logger)

	if err := rbac.CheckPermission(actor.ID, actor.Role, rbac.ActionPlanCommit); err != nil {
		return Result{}, fmt.Errorf("%w: %w", governance.ErrPermissionDenied, err)
	}

	key := projectID.String()
	if s.guard != nil {
		if !s.guard.AcquireOnce(ctx, guardScope, key) {
			return Result{}, fmt.Errorf("%w: a plan commit for this project is already running", governance.ErrIneligible)
		}
		defer s.guard.Release(context.WithoutCancel(ctx), guardScope, key)
	}

	items, err := s.plans.ListPlanItems(ctx, projectID)
	if err != nil {
		log.Error("Failed to list plan items", zap.String("project_id", key), zap.Error(err))
		return Result{}, fmt.Errorf("commit plan: %w", err)
	}

	// plan item id → milestone id, for items already published as milestones
	published := make(map[uuid.UUID]uuid.UUID)
	var milestones, deliverables []model.PlanItem
	for _, it := range items {
		if it.IsPublished {
			if it.PublishedMilestoneID != nil {
				published[it.ID] = *it.PublishedMilestoneID
			}
			continue
		}
		switch it.ItemType {
		case model.PlanItemTypeMilestone:
			milestones = append(milestones, it)
		case model.PlanItemTypeDeliverable:
			deliverables = append(deliverables, it)
		}
	}

	log.Debug("Committing plan",
		zap.String("project_id", key),
		zap.Int("milestone_items", len(milestones)),
		zap.Int("deliverable_items", len(deliverables)),
	)

	res = Result{
		Milestones:   []model.Milestone{},
		Deliverables: []model.Deliverable{},
		Skipped:      []Skipped{},
		Errors:       []ItemError{},
	}

	for _, it := range milestones {
		if reason := validate(it); reason != "" {
			res.skip(it, reason)
			continue
		}
		m, err := s.plans.CommitPlanMilestone(ctx, it.ID, milestoneFrom(it))
		if err != nil {
			s.recordFailure(log, &res, it, err)
			continue
		}
		published[it.ID] = m.ID
		res.Milestones = append(res.Milestones, m)
	}

	for _, it := range deliverables {
		if reason := validate(it); reason != "" {
			res.skip(it, reason)
			continue
		}
		if it.ParentID == nil {
			res.skip(it, "deliverable has no parent milestone")
			continue
		}
		milestoneID, ok := published[*it.ParentID]
		if !ok {
			res.skip(it, "parent milestone is not committed")
			continue
		}
		d, err := s.plans.CommitPlanDeliverable(ctx, it.ID, deliverableFrom(it, milestoneID))
		if err != nil {
			s.recordFailure(log, &res, it, err)
			continue
		}
		res.Deliverables = append(res.Deliverables, d)
	}

	res.Count = len(res.Milestones) + len(res.Deliverables)
	metrics.AddPlanCommitItems(res.Count, len(res.Skipped), len(res.Errors))

	log.Info("Plan committed",
		zap.String("project_id", key),
		zap.String("actor_id", actor.ID),
		zap.Int("committed", res.Count),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("failed", len(res.Errors)),
	)
	return res, nil
}

func (r *Result) skip(it model.PlanItem, reason string) {
	r.Skipped = append(r.Skipped, Skipped{ItemID: it.ID, Name: it.Name, Reason: reason})
}

func (s *Service) recordFailure(log *zap.Logger, res *Result, it model.PlanItem, err error) {
	if errors.Is(err, store.ErrConflict) {
		res.skip(it, "published by a concurrent commit")
		return
	}
	log.Error("Failed to commit plan item",
		zap.String("item_id", it.ID.String()),
		zap.String("item_type", it.ItemType),
		zap.Error(err),
	)
	res.Errors = append(res.Errors, ItemError{ItemID: it.ID, Name: it.Name, Error: err.Error()})
}

// validate returns why it cannot be committed, or "".
func validate(it model.PlanItem) string {
	switch {
	case strings.TrimSpace(it.Name) == "":
		return "missing name"
	case it.StartDate == nil || it.EndDate == nil:
		return "missing start or end date"
	case it.EndDate.Before(it.StartDate.Time):
		return "end date is before start date"
	}
	return ""
}

func shortRef(prefix string, id uuid.UUID) string {
	return prefix + "-" + strings.ToUpper(id.String()[:8])
}

func milestoneFrom(it model.PlanItem) model.Milestone {
	return model.Milestone{
		ID:        uuid.New(),
		ProjectID: it.ProjectID,
		Ref:       shortRef("M", it.ID),
		Name:      strings.TrimSpace(it.Name),
		Status:    model.MilestoneStatusNotStarted,
		StartDate: it.StartDate,
		EndDate:   it.EndDate,
		Billable:  it.Billable,
	}
}

func deliverableFrom(it model.PlanItem, milestoneID uuid.UUID) model.Deliverable {
	return model.Deliverable{
		ID:          uuid.New(),
		MilestoneID: milestoneID,
		Ref:         shortRef("D", it.ID),
		Name:        strings.TrimSpace(it.Name),
		Status:      model.DeliverableStatusNotStarted,
		DueDate:     it.EndDate,
	}
}
