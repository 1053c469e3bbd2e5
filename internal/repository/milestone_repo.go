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

const milestoneColumns = `id, project_id, ref, name, status,
	start_date, actual_start_date, end_date, forecast_end_date,
	baseline_start_date, baseline_end_date,
	baseline_billable, forecast_billable, billable,
	baseline_locked, baseline_supplier_signature, baseline_customer_signature,
	created_at, updated_at`

type MilestoneRepository struct {
	db         *pgxpool.Pool
	logger     *zap.Logger
	outboxRepo *outbox.Repository
}

func NewMilestoneRepository(db *pgxpool.Pool, logger *zap.Logger, outboxRepo *outbox.Repository) *MilestoneRepository {
	return &MilestoneRepository{db: db, logger: logger, outboxRepo: outboxRepo}
}

// scanMilestone 扫描一行 milestone；extra 追加在列尾（如 RETURNING 的附加列）
func scanMilestone(row pgx.Row, extra ...any) (model.Milestone, error) {
	var (
		m                                    model.Milestone
		start, actualStart, end, forecastEnd *time.Time
		baselineStart, baselineEnd           *time.Time
	)
	dest := []any{
		&m.ID, &m.ProjectID, &m.Ref, &m.Name, &m.Status,
		&start, &actualStart, &end, &forecastEnd,
		&baselineStart, &baselineEnd,
		&m.BaselineBillable, &m.ForecastBillable, &m.Billable,
		&m.BaselineLocked, &m.BaselineSupplierSignature, &m.BaselineCustomerSignature,
		&m.CreatedAt, &m.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return model.Milestone{}, err
	}
	m.StartDate = toDate(start)
	m.ActualStartDate = toDate(actualStart)
	m.EndDate = toDate(end)
	m.ForecastEndDate = toDate(forecastEnd)
	m.BaselineStartDate = toDate(baselineStart)
	m.BaselineEndDate = toDate(baselineEnd)
	return m, nil
}

func (r *MilestoneRepository) GetMilestone(ctx context.Context, id uuid.UUID) (model.Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones WHERE id = $1`

	var m model.Milestone
	err := otel.WithDBSpan(ctx, "get_milestone", func(ctx context.Context) error {
		var err error
		m, err = scanMilestone(r.db.QueryRow(ctx, query, id))
		return err
	})
	if err != nil {
		return model.Milestone{}, store.MapError("get milestone", err)
	}
	return m, nil
}

func (r *MilestoneRepository) GetDeliverableMilestoneID(ctx context.Context, deliverableID uuid.UUID) (uuid.UUID, error) {
	query := `SELECT milestone_id FROM deliverables WHERE id = $1`

	var milestoneID uuid.UUID
	err := otel.WithDBSpan(ctx, "get_deliverable_milestone", func(ctx context.Context) error {
		return r.db.QueryRow(ctx, query, deliverableID).Scan(&milestoneID)
	})
	if err != nil {
		return uuid.Nil, store.MapError("get deliverable milestone", err)
	}
	return milestoneID, nil
}

func (r *MilestoneRepository) ListDeliverablesByMilestone(ctx context.Context, milestoneID uuid.UUID) ([]model.Deliverable, error) {
	query := `
        SELECT id, milestone_id, ref, name, status, due_date, created_at
        FROM deliverables
        WHERE milestone_id = $1
        ORDER BY ref
    `

	var list []model.Deliverable
	err := otel.WithDBSpan(ctx, "list_deliverables", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, milestoneID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				d   model.Deliverable
				due *time.Time
			)
			if err := rows.Scan(&d.ID, &d.MilestoneID, &d.Ref, &d.Name, &d.Status, &due, &d.CreatedAt); err != nil {
				return err
			}
			d.DueDate = toDate(due)
			list = append(list, d)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, store.MapError("list deliverables", err)
	}
	return list, nil
}

// ApplyBaselineSignature 单条 UPDATE 写签名并判定锁定，同一事务写 outbox 事件
func (r *MilestoneRepository) ApplyBaselineSignature(ctx context.Context, milestoneID uuid.UUID, party model.Party, sig model.Signature) (model.Milestone, error) {
	log := logger.WithTrace(ctx, r.logger)
	query := `
        UPDATE milestones m SET
            baseline_supplier_signature = CASE WHEN $2 = 'supplier' THEN $3::jsonb ELSE m.baseline_supplier_signature END,
            baseline_customer_signature = CASE WHEN $2 = 'customer' THEN $3::jsonb ELSE m.baseline_customer_signature END,
            baseline_locked = m.baseline_locked OR (
                CASE WHEN $2 = 'supplier' THEN m.baseline_customer_signature ELSE m.baseline_supplier_signature END
            ) IS NOT NULL,
            updated_at = NOW()
        FROM (SELECT id AS prev_id, baseline_locked AS was_locked FROM milestones WHERE id = $1 FOR UPDATE) prev
        WHERE m.id = prev.prev_id
        RETURNING ` + milestoneColumns + `, prev.was_locked`

	log.Debug("Applying baseline signature",
		zap.String("milestone_id", milestoneID.String()),
		zap.String("party", string(party)),
	)

	var m model.Milestone
	err := otel.WithDBSpan(ctx, "apply_baseline_signature", func(ctx context.Context) error {
		return inTx(ctx, r.db, func(tx pgx.Tx) error {
			var (
				wasLocked bool
				err       error
			)
			m, err = scanMilestone(tx.QueryRow(ctx, query, milestoneID, string(party), sig), &wasLocked)
			if err != nil {
				return err
			}

			payload := BaselineSignedPayload{
				MilestoneID: m.ID,
				ProjectID:   m.ProjectID,
				Party:       party,
				SignerID:    sig.SignerID,
				SignedAt:    sig.SignedAt,
				Locked:      m.BaselineLocked,
			}
			if err := outbox.InsertEventInTx(ctx, tx, r.outboxRepo, AggregateMilestone, m.ID, EventBaselineSigned, payload); err != nil {
				return err
			}
			if m.BaselineLocked && !wasLocked {
				if err := outbox.InsertEventInTx(ctx, tx, r.outboxRepo, AggregateMilestone, m.ID, EventBaselineLocked, payload); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		log.Error("Failed to apply baseline signature",
			zap.String("milestone_id", milestoneID.String()),
			zap.Error(err),
		)
		return model.Milestone{}, store.MapError("apply baseline signature", err)
	}

	log.Info("Baseline signature applied",
		zap.String("milestone_id", m.ID.String()),
		zap.String("party", string(party)),
		zap.Bool("locked", m.BaselineLocked),
	)
	return m, nil
}

func (r *MilestoneRepository) ResetBaseline(ctx context.Context, milestoneID uuid.UUID, actorID string) (model.Milestone, error) {
	log := logger.WithTrace(ctx, r.logger)
	query := `
        UPDATE milestones SET
            baseline_supplier_signature = NULL,
            baseline_customer_signature = NULL,
            baseline_locked = FALSE,
            updated_at = NOW()
        WHERE id = $1
        RETURNING ` + milestoneColumns

	var m model.Milestone
	err := otel.WithDBSpan(ctx, "reset_baseline", func(ctx context.Context) error {
		return inTx(ctx, r.db, func(tx pgx.Tx) error {
			var err error
			m, err = scanMilestone(tx.QueryRow(ctx, query, milestoneID))
			if err != nil {
				return err
			}
			payload := BaselineResetPayload{MilestoneID: m.ID, ProjectID: m.ProjectID, ResetBy: actorID}
			return outbox.InsertEventInTx(ctx, tx, r.outboxRepo, AggregateMilestone, m.ID, EventBaselineReset, payload)
		})
	})
	if err != nil {
		log.Error("Failed to reset baseline", zap.String("milestone_id", milestoneID.String()), zap.Error(err))
		return model.Milestone{}, store.MapError("reset baseline", err)
	}

	log.Info("Baseline reset", zap.String("milestone_id", m.ID.String()), zap.String("actor_id", actorID))
	return m, nil
}

func (r *MilestoneRepository) UpdateBaseline(ctx context.Context, milestoneID uuid.UUID, values model.BaselineValues, allowLocked bool) (model.Milestone, error) {
	log := logger.WithTrace(ctx, r.logger)
	query := `
        UPDATE milestones SET
            baseline_start_date = $2,
            baseline_end_date = $3,
            baseline_billable = $4,
            updated_at = NOW()
        WHERE id = $1
          AND ($5 OR NOT (baseline_locked
                OR (baseline_supplier_signature IS NOT NULL AND baseline_customer_signature IS NOT NULL)))
        RETURNING ` + milestoneColumns

	var m model.Milestone
	err := otel.WithDBSpan(ctx, "update_baseline", func(ctx context.Context) error {
		var err error
		m, err = scanMilestone(r.db.QueryRow(ctx, query,
			milestoneID, dateArg(values.Start), dateArg(values.End), values.Cost, allowLocked,
		))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		// 区分不存在与已锁定
		if _, getErr := r.GetMilestone(ctx, milestoneID); getErr != nil {
			return model.Milestone{}, getErr
		}
		log.Warn("Baseline update refused on locked milestone", zap.String("milestone_id", milestoneID.String()))
		return model.Milestone{}, fmt.Errorf("update baseline: milestone is locked: %w", store.ErrConflict)
	}
	if err != nil {
		log.Error("Failed to update baseline", zap.String("milestone_id", milestoneID.String()), zap.Error(err))
		return model.Milestone{}, store.MapError("update baseline", err)
	}

	log.Info("Baseline updated",
		zap.String("milestone_id", m.ID.String()),
		zap.Bool("allow_locked", allowLocked),
	)
	return m, nil
}
