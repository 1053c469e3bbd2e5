package variation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
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

const (
	PathSingle = "single"
	PathBatch  = "batch"
)

// Draft is a created variation with its impact rows.
type Draft struct {
	Variation model.Variation                  `json:"variation"`
	Impacts   []model.VariationMilestoneImpact `json:"impacts"`
}

// changeRecord is one source change as kept in form_data.
type changeRecord struct {
	ItemID        uuid.UUID `json:"item_id"`
	ItemKind      string    `json:"item_kind"`
	MilestoneID   uuid.UUID `json:"milestone_id"`
	Field         string    `json:"field"`
	PreviousValue string    `json:"previous_value"`
	NewValue      string    `json:"new_value"`
}

type formData struct {
	Source  string         `json:"source"`
	Changes []changeRecord `json:"changes"`
}

// Service turns blocked edits into draft variations.
type Service struct {
	store   store.Store
	refs    RefGenerator
	logger  *zap.Logger
	NowFunc func() time.Time
}

func NewService(s store.Store, refs RefGenerator, logger *zap.Logger) *Service {
	return &Service{
		store:   s,
		refs:    refs,
		logger:  logger,
		NowFunc: time.Now,
	}
}

// DraftFromChange drafts a variation from a single pending change. The returned draft
// carries exactly one impact row.
func (s *Service) DraftFromChange(ctx context.Context, actor model.Actor, projectID uuid.UUID, change governance.PendingChange) (Draft, error) {
	return s.draft(ctx, actor, projectID, []governance.PendingChange{change}, PathSingle)
}

// DraftFromBatch drafts one variation covering every change in batch, one impact per
// milestone. The batch is cleared only when the variation was written.
func (s *Service) DraftFromBatch(ctx context.Context, actor model.Actor, projectID uuid.UUID, batch *governance.Batch) (Draft, error) {
	d, err := s.draft(ctx, actor, projectID, batch.Changes(), PathBatch)
	if err != nil {
		return Draft{}, err
	}
	batch.Clear()
	return d, nil
}

func (s *Service) draft(ctx context.Context, actor model.Actor, projectID uuid.UUID, changes []governance.PendingChange, path string) (d Draft, err error) {
	ctx, span := otel.StartSpan(ctx, "variation.Draft")
	span.SetAttributes(
		attribute.String("project.id", projectID.String()),
		attribute.String("path", path),
		attribute.Int("changes", len(changes)),
	)
	defer func() { otel.EndSpan(span, err) }()

	log := logger.WithTrace(ctx, s.logger)

	if err := rbac.CheckPermission(actor.ID, actor.Role, rbac.ActionVariationDraft); err != nil {
		return Draft{}, fmt.Errorf("%w: %w", governance.ErrPermissionDenied, err)
	}
	if len(changes) == 0 {
		return Draft{}, fmt.Errorf("%w: no pending changes to draft", governance.ErrValidation)
	}

	groups := governance.GroupByMilestone(changes)
	impacts := make([]model.VariationMilestoneImpact, 0, len(groups))
	fields := make([]string, 0, len(changes))
	refs := make([]string, 0, len(groups))
	var lines []string

	for _, g := range groups {
		m, impact, err := s.impactFor(ctx, projectID, g)
		if err != nil {
			return Draft{}, err
		}
		impacts = append(impacts, impact)
		for _, c := range g.Changes {
			fields = append(fields, c.Field)
		}
		refs = append(refs, m.Ref)
		lines = append(lines, fmt.Sprintf("%s: %s", m.Ref, impact.Rationale))
	}

	form, err := json.Marshal(formData{Source: path, Changes: records(changes)})
	if err != nil {
		return Draft{}, fmt.Errorf("encode form data: %w", err)
	}

	v := model.Variation{
		ID:            uuid.New(),
		ProjectID:     projectID,
		Ref:           s.nextRef(ctx, projectID),
		Title:         title(refs, changes),
		VariationType: governance.InferVariationType(fields...),
		Status:        model.VariationStatusDraft,
		Description:   strings.Join(lines, "\n"),
		FormData:      form,
		CreatedBy:     actor.ID,
	}

	log.Debug("Creating variation",
		zap.String("project_id", projectID.String()),
		zap.String("ref", v.Ref),
		zap.String("variation_type", v.VariationType),
		zap.Int("impacts", len(impacts)),
	)
	created, saved, err := s.store.CreateVariation(ctx, v, impacts)
	if err != nil {
		log.Error("Failed to create variation", zap.String("ref", v.Ref), zap.Error(err))
		return Draft{}, fmt.Errorf("draft variation: %w", err)
	}
	metrics.IncrementVariationDrafted(path, created.VariationType)

	log.Info("Variation drafted",
		zap.String("variation_id", created.ID.String()),
		zap.String("ref", created.Ref),
		zap.String("variation_type", created.VariationType),
		zap.Int("impacts", len(saved)),
	)
	return Draft{Variation: created, Impacts: saved}, nil
}

// impactFor folds a milestone's queued changes onto its current baseline.
// The milestone is re-read so the "original" values are the stored baseline.
func (s *Service) impactFor(ctx context.Context, projectID uuid.UUID, g governance.MilestoneGroup) (model.Milestone, model.VariationMilestoneImpact, error) {
	var none model.VariationMilestoneImpact
	if g.Milestone.ID == uuid.Nil {
		return model.Milestone{}, none, fmt.Errorf("%w: pending change has no milestone", governance.ErrValidation)
	}
	m, err := s.store.GetMilestone(ctx, g.Milestone.ID)
	if err != nil {
		return model.Milestone{}, none, fmt.Errorf("draft variation: %w", err)
	}
	if m.ProjectID != uuid.Nil && projectID != uuid.Nil && m.ProjectID != projectID {
		return model.Milestone{}, none, fmt.Errorf("%w: milestone %s belongs to another project", governance.ErrValidation, m.Ref)
	}

	original := m.Baseline()
	proposed := original
	rationale := make([]string, 0, len(g.Changes))
	for _, c := range g.Changes {
		proposed, err = governance.FoldChange(proposed, c.Field, c.NewValue)
		if err != nil {
			return model.Milestone{}, none, err
		}
		rationale = append(rationale, governance.Rationale(c.Field, c.PreviousValue, c.NewValue))
	}

	return m, model.VariationMilestoneImpact{
		MilestoneID:           m.ID,
		OriginalBaselineStart: original.Start,
		OriginalBaselineEnd:   original.End,
		OriginalBaselineCost:  original.Cost,
		NewBaselineStart:      proposed.Start,
		NewBaselineEnd:        proposed.End,
		NewBaselineCost:       proposed.Cost,
		Rationale:             strings.Join(rationale, "; "),
	}, nil
}

// nextRef never fails: when the generator is unavailable a timestamp reference is used.
func (s *Service) nextRef(ctx context.Context, projectID uuid.UUID) string {
	if s.refs != nil {
		ref, err := s.refs.Next(ctx, projectID)
		if err == nil {
			return ref
		}
		logger.WithTrace(ctx, s.logger).Warn("Using fallback variation ref", zap.Error(err))
	}
	metrics.IncrementVariationRefFallback()
	return "VAR-" + strconv.FormatInt(s.NowFunc().UnixMilli(), 10)
}

func title(refs []string, changes []governance.PendingChange) string {
	if len(changes) == 1 {
		return fmt.Sprintf("Baseline change to %s: %s", refs[0], changes[0].Field)
	}
	return fmt.Sprintf("Baseline changes to %s", strings.Join(refs, ", "))
}

func records(changes []governance.PendingChange) []changeRecord {
	out := make([]changeRecord, len(changes))
	for i, c := range changes {
		out[i] = changeRecord{
			ItemID:        c.ItemID,
			ItemKind:      c.ItemKind,
			MilestoneID:   c.Milestone.ID,
			Field:         c.Field,
			PreviousValue: c.PreviousValue,
			NewValue:      c.NewValue,
		}
	}
	return out
}
