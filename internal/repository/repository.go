package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"contracttracker/internal/model"
	"contracttracker/internal/store"
	"contracttracker/pkg/otel"
	"contracttracker/pkg/outbox"
)

// Store 组合所有仓储，实现 store.Store
type Store struct {
	*MilestoneRepository
	*CertificateRepository
	*VariationRepository
	*PlanRepository

	db *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

func NewStore(db *pgxpool.Pool, logger *zap.Logger) *Store {
	outboxRepo := outbox.NewRepository(db, logger)
	return &Store{
		MilestoneRepository:   NewMilestoneRepository(db, logger, outboxRepo),
		CertificateRepository: NewCertificateRepository(db, logger, outboxRepo),
		VariationRepository:   NewVariationRepository(db, logger, outboxRepo),
		PlanRepository:        NewPlanRepository(db, logger, outboxRepo),
		db:                    db,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return otel.WithDBSpan(ctx, "ping", func(ctx context.Context) error {
		return s.db.Ping(ctx)
	})
}

// inTx runs fn in a transaction and commits when it returns nil.
func inTx(ctx context.Context, db *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func dateArg(d *model.Date) any {
	if d == nil {
		return nil
	}
	return d.Time
}

func toDate(t *time.Time) *model.Date {
	if t == nil {
		return nil
	}
	d := model.NewDate(*t)
	return &d
}
