package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

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

const planItemColumns = `id, project_id, parent_id, item_type, name, start_date, end_date, billable,
	sort_order, is_published, published_milestone_id, published_deliverable_id, updated_at`

type PlanRepository struct {
	db         *pgxpool.Pool
	logger     *zap.Logger
	outboxRepo *outbox.Repository
}

func NewPlanRepository(db *pgxpool.Pool, logger *zap.Logger, outboxRepo *outbox.Repository) *PlanRepository {
	return &PlanRepository{db: db, logger: logger, outboxRepo: outboxRepo}
}

func scanPlanItem(row pgx.Row) (model.PlanItem, error) {
	var (
		p          model.PlanItem
		start, end *time.Time
	)
	err := row.Scan(
		&p.ID, &p.ProjectID, &p.ParentID, &p.ItemType, &p.Name, &start, &end, &p.Billable,
		&p.SortOrder, &p.IsPublished, &p.PublishedMilestoneID, &p.PublishedDeliverableID, &p.UpdatedAt,
	)
	if err != nil {
		return model.PlanItem{}, err
	}
	p.StartDate = toDate(start)
	p.EndDate = toDate(end)
	return p, nil
}

func (r *PlanRepository) GetPlanItem(ctx context.Context, id uuid.UUID) (model.PlanItem, error) {
	query := `SELECT ` + planItemColumns + ` FROM plan_items WHERE id = $1`

	var p model.PlanItem
	err := otel.WithDBSpan(ctx, "get_plan_item", func(ctx context.Context) error {
		var err error
		p, err = scanPlanItem(r.db.QueryRow(ctx, query, id))
		return err
	})
	if err != nil {
		return model.PlanItem{}, store.MapError("get plan item", err)
	}
	return p, nil
}

func (r *PlanRepository) ListPlanItems(ctx context.Context, projectID uuid.UUID) ([]model.PlanItem, error) {
	query := `SELECT ` + planItemColumns + `
        FROM plan_items
        WHERE project_id = $1
        ORDER BY sort_order, name`

	var items []model.PlanItem
	err := otel.WithDBSpan(ctx, "list_plan_items", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, projectID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanPlanItem(rows)
			if err != nil {
				return err
			}
			items = append(items, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, store.MapError("list plan items", err)
	}
	return items, nil
}

func (r *PlanRepository) UpdatePlanItemSchedule(ctx context.Context, id uuid.UUID, values model.BaselineValues) (model.PlanItem, error) {
	log := logger.WithTrace(ctx, r.logger)
	query := `
        UPDATE plan_items SET start_date = $2, end_date = $3, billable = $4, updated_at = NOW()
        WHERE id = $1
        RETURNING ` + planItemColumns

	var p model.PlanItem
	err := otel.WithDBSpan(ctx, "update_plan_item_schedule", func(ctx context.Context) error {
		var err error
		p, err = scanPlanItem(r.db.QueryRow(ctx, query, id, dateArg(values.Start), dateArg(values.End), values.Cost))
		return err
	})
	if err != nil {
		log.Error("Failed to update plan item", zap.String("plan_item_id", id.String()), zap.Error(err))
		return model.PlanItem{}, store.MapError("update plan item", err)
	}

	log.Info("Plan item schedule updated", zap.String("plan_item_id", id.String()))
	return p, nil
}

// markPublished 只标记尚未发布的条目；0 行表示并发提交已完成发布
func markPublished(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, column string, entityID uuid.UUID) error {
	query := fmt.Sprintf(`
        UPDATE plan_items SET is_published = TRUE, %s = $2, updated_at = NOW()
        WHERE id = $1 AND NOT is_published`, column)

	tag, err := tx.Exec(ctx, query, itemID, entityID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM plan_items WHERE id = $1)`, itemID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return store.ErrNotFound
		}
		return fmt.Errorf("plan item already published: %w", store.ErrConflict)
	}
	return nil
}

func (r *PlanRepository) CommitPlanMilestone(ctx context.Context, itemID uuid.UUID, m model.Milestone) (model.Milestone, error) {
	log := logger.WithTrace(ctx, r.logger)
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	query := `
        INSERT INTO milestones (
            id, project_id, ref, name, status,
            start_date, end_date, baseline_start_date, baseline_end_date,
            baseline_billable, billable, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
        RETURNING ` + milestoneColumns

	log.Debug("Committing plan milestone",
		zap.String("plan_item_id", itemID.String()),
		zap.String("ref", m.Ref),
	)

	var saved model.Milestone
	err := otel.WithDBSpan(ctx, "commit_plan_milestone", func(ctx context.Context) error {
		return inTx(ctx, r.db, func(tx pgx.Tx) error {
			var err error
			saved, err = scanMilestone(tx.QueryRow(ctx, query,
				m.ID, m.ProjectID, m.Ref, m.Name, m.Status,
				dateArg(m.StartDate), dateArg(m.EndDate), dateArg(m.BaselineStartDate), dateArg(m.BaselineEndDate),
				m.BaselineBillable, m.Billable,
			))
			if err != nil {
				return err
			}
			// 并发提交时这里返回 ErrConflict，事务回滚掉刚插入的 milestone
			if err := markPublished(ctx, tx, itemID, "published_milestone_id", saved.ID); err != nil {
				return err
			}
			payload := PlanCommittedPayload{
				PlanItemID: itemID,
				ProjectID:  &saved.ProjectID,
				ItemType:   model.PlanItemTypeMilestone,
				EntityID:   saved.ID,
				Ref:        saved.Ref,
			}
			return outbox.InsertEventInTx(ctx, tx, r.outboxRepo, AggregatePlanItem, itemID, EventPlanCommitted, payload)
		})
	})
	if err != nil {
		if !errors.Is(err, store.ErrConflict) {
			log.Error("Failed to commit plan milestone", zap.String("plan_item_id", itemID.String()), zap.Error(err))
		}
		return model.Milestone{}, store.MapError("commit plan milestone", err)
	}

	log.Info("Plan milestone committed",
		zap.String("plan_item_id", itemID.String()),
		zap.String("milestone_id", saved.ID.String()),
	)
	return saved, nil
}

func (r *PlanRepository) CommitPlanDeliverable(ctx context.Context, itemID uuid.UUID, d model.Deliverable) (model.Deliverable, error) {
	log := logger.WithTrace(ctx, r.logger)
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	query := `
        INSERT INTO deliverables (id, milestone_id, ref, name, status, due_date, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())
        RETURNING created_at
    `

	log.Debug("Committing plan deliverable",
		zap.String("plan_item_id", itemID.String()),
		zap.String("milestone_id", d.MilestoneID.String()),
	)

	err := otel.WithDBSpan(ctx, "commit_plan_deliverable", func(ctx context.Context) error {
		return inTx(ctx, r.db, func(tx pgx.Tx) error {
			if err := tx.QueryRow(ctx, query,
				d.ID, d.MilestoneID, d.Ref, d.Name, d.Status, dateArg(d.DueDate),
			).Scan(&d.CreatedAt); err != nil {
				return err
			}
			if err := markPublished(ctx, tx, itemID, "published_deliverable_id", d.ID); err != nil {
				return err
			}
			payload := PlanCommittedPayload{
				PlanItemID: itemID,
				ItemType:   model.PlanItemTypeDeliverable,
				EntityID:   d.ID,
				Ref:        d.Ref,
			}
			return outbox.InsertEventInTx(ctx, tx, r.outboxRepo, AggregatePlanItem, itemID, EventPlanCommitted, payload)
		})
	})
	if err != nil {
		if !errors.Is(err, store.ErrConflict) {
			log.Error("Failed to commit plan deliverable", zap.String("plan_item_id", itemID.String()), zap.Error(err))
		}
		return model.Deliverable{}, store.MapError("commit plan deliverable", err)
	}

	log.Info("Plan deliverable committed",
		zap.String("plan_item_id", itemID.String()),
		zap.String("deliverable_id", d.ID.String()),
	)
	return d, nil
}
