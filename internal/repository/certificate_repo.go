package repository

import (
	"context"
	"errors"
	"fmt"

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

const certificateColumns = `id, certificate_number, milestone_id, milestone_ref, milestone_name,
	payment_milestone_value, status, supplier_signature, customer_signature,
	deliverables_snapshot, generated_by, generated_at`

type CertificateRepository struct {
	db         *pgxpool.Pool
	logger     *zap.Logger
	outboxRepo *outbox.Repository
}

func NewCertificateRepository(db *pgxpool.Pool, logger *zap.Logger, outboxRepo *outbox.Repository) *CertificateRepository {
	return &CertificateRepository{db: db, logger: logger, outboxRepo: outboxRepo}
}

func scanCertificate(row pgx.Row) (model.Certificate, error) {
	var c model.Certificate
	err := row.Scan(
		&c.ID, &c.CertificateNumber, &c.MilestoneID, &c.MilestoneRef, &c.MilestoneName,
		&c.PaymentMilestoneValue, &c.Status, &c.SupplierSignature, &c.CustomerSignature,
		&c.DeliverablesSnapshot, &c.GeneratedBy, &c.GeneratedAt,
	)
	return c, err
}

func (r *CertificateRepository) GetCertificate(ctx context.Context, id uuid.UUID) (model.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE id = $1`

	var c model.Certificate
	err := otel.WithDBSpan(ctx, "get_certificate", func(ctx context.Context) error {
		var err error
		c, err = scanCertificate(r.db.QueryRow(ctx, query, id))
		return err
	})
	if err != nil {
		return model.Certificate{}, store.MapError("get certificate", err)
	}
	return c, nil
}

func (r *CertificateRepository) GetCertificateByMilestone(ctx context.Context, milestoneID uuid.UUID) (model.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE milestone_id = $1`

	var c model.Certificate
	err := otel.WithDBSpan(ctx, "get_certificate_by_milestone", func(ctx context.Context) error {
		var err error
		c, err = scanCertificate(r.db.QueryRow(ctx, query, milestoneID))
		return err
	})
	if err != nil {
		return model.Certificate{}, store.MapError("get certificate by milestone", err)
	}
	return c, nil
}

// CreateCertificate 依赖 milestone_id 唯一约束拒绝重复生成
func (r *CertificateRepository) CreateCertificate(ctx context.Context, c model.Certificate) (model.Certificate, error) {
	log := logger.WithTrace(ctx, r.logger)
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	snapshot := c.DeliverablesSnapshot
	if snapshot == nil {
		snapshot = []model.DeliverableSnapshot{}
	}
	query := `
        INSERT INTO certificates (
            id, certificate_number, milestone_id, milestone_ref, milestone_name,
            payment_milestone_value, status, supplier_signature, customer_signature,
            deliverables_snapshot, generated_by, generated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, NULL, $8, $9, $10)
        RETURNING ` + certificateColumns

	log.Debug("Creating certificate",
		zap.String("milestone_id", c.MilestoneID.String()),
		zap.String("certificate_number", c.CertificateNumber),
	)

	var saved model.Certificate
	err := otel.WithDBSpan(ctx, "create_certificate", func(ctx context.Context) error {
		return inTx(ctx, r.db, func(tx pgx.Tx) error {
			var err error
			saved, err = scanCertificate(tx.QueryRow(ctx, query,
				c.ID, c.CertificateNumber, c.MilestoneID, c.MilestoneRef, c.MilestoneName,
				c.PaymentMilestoneValue, c.Status, snapshot, c.GeneratedBy, c.GeneratedAt,
			))
			if err != nil {
				return err
			}
			payload := CertificatePayload{
				CertificateID:     saved.ID,
				CertificateNumber: saved.CertificateNumber,
				MilestoneID:       saved.MilestoneID,
				Status:            saved.Status,
			}
			return outbox.InsertEventInTx(ctx, tx, r.outboxRepo, AggregateCertificate, saved.ID, EventCertificateGenerated, payload)
		})
	})
	if err != nil {
		log.Error("Failed to create certificate",
			zap.String("milestone_id", c.MilestoneID.String()),
			zap.Error(err),
		)
		return model.Certificate{}, store.MapError("create certificate", err)
	}

	log.Info("Certificate created",
		zap.String("certificate_id", saved.ID.String()),
		zap.String("certificate_number", saved.CertificateNumber),
	)
	return saved, nil
}

// ApplyCertificateSignature 单条条件 UPDATE；已双签的证书不再改动
func (r *CertificateRepository) ApplyCertificateSignature(ctx context.Context, certificateID uuid.UUID, party model.Party, sig model.Signature) (model.Certificate, error) {
	log := logger.WithTrace(ctx, r.logger)
	query := `
        UPDATE certificates SET
            supplier_signature = CASE WHEN $2 = 'supplier' THEN $3::jsonb ELSE supplier_signature END,
            customer_signature = CASE WHEN $2 = 'customer' THEN $3::jsonb ELSE customer_signature END,
            status = CASE
                WHEN $2 = 'supplier' AND customer_signature IS NOT NULL THEN 'Signed'
                WHEN $2 = 'supplier' THEN 'PendingCustomerSignature'
                WHEN supplier_signature IS NOT NULL THEN 'Signed'
                ELSE 'PendingSupplierSignature'
            END
        WHERE id = $1
          AND NOT (supplier_signature IS NOT NULL AND customer_signature IS NOT NULL)
        RETURNING ` + certificateColumns

	log.Debug("Applying certificate signature",
		zap.String("certificate_id", certificateID.String()),
		zap.String("party", string(party)),
	)

	var c model.Certificate
	err := otel.WithDBSpan(ctx, "apply_certificate_signature", func(ctx context.Context) error {
		return inTx(ctx, r.db, func(tx pgx.Tx) error {
			var err error
			c, err = scanCertificate(tx.QueryRow(ctx, query, certificateID, string(party), sig))
			if err != nil {
				return err
			}
			payload := CertificatePayload{
				CertificateID:     c.ID,
				CertificateNumber: c.CertificateNumber,
				MilestoneID:       c.MilestoneID,
				Status:            c.Status,
				Party:             string(party),
			}
			return outbox.InsertEventInTx(ctx, tx, r.outboxRepo, AggregateCertificate, c.ID, EventCertificateSigned, payload)
		})
	})
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetCertificate(ctx, certificateID); getErr != nil {
			return model.Certificate{}, getErr
		}
		log.Warn("Certificate already signed", zap.String("certificate_id", certificateID.String()))
		return model.Certificate{}, fmt.Errorf("sign certificate: already signed: %w", store.ErrConflict)
	}
	if err != nil {
		log.Error("Failed to apply certificate signature",
			zap.String("certificate_id", certificateID.String()),
			zap.Error(err),
		)
		return model.Certificate{}, store.MapError("sign certificate", err)
	}

	log.Info("Certificate signature applied",
		zap.String("certificate_id", c.ID.String()),
		zap.String("status", c.Status),
	)
	return c, nil
}
