package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"contracttracker/internal/model"
	"contracttracker/internal/store"
	"contracttracker/pkg/logger"
	"contracttracker/pkg/otel"
	"contracttracker/pkg/outbox"
)

type VariationRepository struct {
	db         *pgxpool.Pool
	logger     *zap.Logger
	outboxRepo *outbox.Repository
}

func NewVariationRepository(db *pgxpool.Pool, logger *zap.Logger, outboxRepo *outbox.Repository) *VariationRepository {
	return &VariationRepository{db: db, logger: logger, outboxRepo: outboxRepo}
}

// CreateVariation 在一个事务里写入 variation、全部 impact 以及 variation.drafted 事件
func (r *VariationRepository) CreateVariation(ctx context.Context, v model.Variation, impacts []model.VariationMilestoneImpact) (model.Variation, []model.VariationMilestoneImpact, error) {
	log := logger.WithTrace(ctx, r.logger)
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	formData := v.FormData
	if len(formData) == 0 {
		formData = json.RawMessage(`{}`)
	}

	insertVariation := `
        INSERT INTO variations (id, project_id, ref, title, variation_type, status, description, form_data, created_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
        RETURNING created_at
    `
	insertImpact := `
        INSERT INTO variation_milestone_impacts (
            id, variation_id, milestone_id,
            original_baseline_start, original_baseline_end, original_baseline_cost,
            new_baseline_start, new_baseline_end, new_baseline_cost, rationale
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `

	log.Debug("Creating variation",
		zap.String("project_id", v.ProjectID.String()),
		zap.String("ref", v.Ref),
		zap.Int("impacts", len(impacts)),
	)

	saved := make([]model.VariationMilestoneImpact, len(impacts))
	err := otel.WithDBSpan(ctx, "create_variation", func(ctx context.Context) error {
		return inTx(ctx, r.db, func(tx pgx.Tx) error {
			if err := tx.QueryRow(ctx, insertVariation,
				v.ID, v.ProjectID, v.Ref, v.Title, v.VariationType, v.Status, v.Description, formData, v.CreatedBy,
			).Scan(&v.CreatedAt); err != nil {
				return err
			}

			milestoneIDs := make([]uuid.UUID, 0, len(impacts))
			for i, imp := range impacts {
				imp.ID = uuid.New()
				imp.VariationID = v.ID
				if _, err := tx.Exec(ctx, insertImpact,
					imp.ID, imp.VariationID, imp.MilestoneID,
					dateArg(imp.OriginalBaselineStart), dateArg(imp.OriginalBaselineEnd), imp.OriginalBaselineCost,
					dateArg(imp.NewBaselineStart), dateArg(imp.NewBaselineEnd), imp.NewBaselineCost,
					imp.Rationale,
				); err != nil {
					return err
				}
				saved[i] = imp
				milestoneIDs = append(milestoneIDs, imp.MilestoneID)
			}

			payload := VariationDraftedPayload{
				VariationID:   v.ID,
				ProjectID:     v.ProjectID,
				Ref:           v.Ref,
				VariationType: v.VariationType,
				MilestoneIDs:  milestoneIDs,
				CreatedBy:     v.CreatedBy,
			}
			return outbox.InsertEventInTx(ctx, tx, r.outboxRepo, AggregateVariation, v.ID, EventVariationDrafted, payload)
		})
	})
	if err != nil {
		log.Error("Failed to create variation",
			zap.String("project_id", v.ProjectID.String()),
			zap.String("ref", v.Ref),
			zap.Error(err),
		)
		return model.Variation{}, nil, store.MapError("create variation", err)
	}

	v.FormData = formData
	log.Info("Variation created",
		zap.String("variation_id", v.ID.String()),
		zap.String("ref", v.Ref),
		zap.String("variation_type", v.VariationType),
	)
	return v, saved, nil
}
