package certificate

import (
	"context"
	"errors"
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

// View is a milestone's certificate, if any, with its derived state and eligibility.
type View struct {
	Certificate *model.Certificate                `json:"certificate"`
	State       governance.CertificateState       `json:"state"`
	Eligibility governance.CertificateEligibility `json:"eligibility"`
}

type Service struct {
	store   store.Store
	logger  *zap.Logger
	NowFunc func() time.Time
}

func NewService(s store.Store, logger *zap.Logger) *Service {
	return &Service{
		store:   s,
		logger:  logger,
		NowFunc: time.Now,
	}
}

// existing returns the milestone's certificate or nil when it has none.
func (s *Service) existing(ctx context.Context, milestoneID uuid.UUID) (*model.Certificate, error) {
	c, err := s.store.GetCertificateByMilestone(ctx, milestoneID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// State reports the certificate state of a milestone and whether one can be generated.
func (s *Service) State(ctx context.Context, milestoneID uuid.UUID) (View, error) {
	if _, err := s.store.GetMilestone(ctx, milestoneID); err != nil {
		return View{}, fmt.Errorf("certificate state: %w", err)
	}
	deliverables, err := s.store.ListDeliverablesByMilestone(ctx, milestoneID)
	if err != nil {
		return View{}, fmt.Errorf("certificate state: %w", err)
	}
	c, err := s.existing(ctx, milestoneID)
	if err != nil {
		return View{}, fmt.Errorf("certificate state: %w", err)
	}
	return View{
		Certificate: c,
		State:       governance.CertificateStateOf(c),
		Eligibility: governance.CertificateEligibilityOf(deliverables, c),
	}, nil
}

// Generate creates the Draft certificate for a milestone whose deliverables are all delivered.
func (s *Service) Generate(ctx context.Context, actor model.Actor, milestoneID uuid.UUID) (c model.Certificate, err error) {
	ctx, span := otel.StartSpan(ctx, "certificate.Generate")
	span.SetAttributes(attribute.String("milestone.id", milestoneID.String()))
	defer func() { otel.EndSpan(span, err) }()

	log := logger.WithTrace(ctx, s.logger)

	if err := rbac.CheckPermission(actor.ID, actor.Role, rbac.ActionCertificateGenerate); err != nil {
		return model.Certificate{}, fmt.Errorf("%w: %w", governance.ErrPermissionDenied, err)
	}

	m, err := s.store.GetMilestone(ctx, milestoneID)
	if err != nil {
		return model.Certificate{}, fmt.Errorf("generate certificate: %w", err)
	}
	deliverables, err := s.store.ListDeliverablesByMilestone(ctx, milestoneID)
	if err != nil {
		return model.Certificate{}, fmt.Errorf("generate certificate: %w", err)
	}
	existing, err := s.existing(ctx, milestoneID)
	if err != nil {
		return model.Certificate{}, fmt.Errorf("generate certificate: %w", err)
	}

	eligibility := governance.CertificateEligibilityOf(deliverables, existing)
	if !eligibility.Eligible {
		log.Info("Certificate generation refused",
			zap.String("milestone_id", milestoneID.String()),
			zap.String("reason", eligibility.Reason),
		)
		return model.Certificate{}, fmt.Errorf("%w: %s", governance.ErrIneligible, eligibility.Reason)
	}

	snapshot := make([]model.DeliverableSnapshot, len(deliverables))
	for i, d := range deliverables {
		snapshot[i] = model.DeliverableSnapshot{ID: d.ID, Ref: d.Ref, Name: d.Name, Status: d.Status}
	}
	value := m.Billable
	if !value.Valid {
		value = m.BaselineBillable
	}

	draft := model.Certificate{
		ID:                    uuid.New(),
		CertificateNumber:     "CERT-" + m.Ref,
		MilestoneID:           m.ID,
		MilestoneRef:          m.Ref,
		MilestoneName:         m.Name,
		PaymentMilestoneValue: value,
		Status:                string(governance.CertificateDraft),
		DeliverablesSnapshot:  snapshot,
		GeneratedBy:           actor.ID,
		GeneratedAt:           s.NowFunc().UTC(),
	}

	log.Debug("Creating certificate",
		zap.String("milestone_id", milestoneID.String()),
		zap.String("certificate_number", draft.CertificateNumber),
		zap.Int("deliverables", len(snapshot)),
	)
	c, err = s.store.CreateCertificate(ctx, draft)
	if err != nil {
		log.Error("Failed to create certificate", zap.String("milestone_id", milestoneID.String()), zap.Error(err))
		return model.Certificate{}, fmt.Errorf("generate certificate: %w", err)
	}

	log.Info("Certificate generated",
		zap.String("certificate_id", c.ID.String()),
		zap.String("certificate_number", c.CertificateNumber),
	)
	return c, nil
}

// Sign applies one party's signature. A Signed certificate takes no further changes.
func (s *Service) Sign(ctx context.Context, actor model.Actor, certificateID uuid.UUID, party model.Party) (c model.Certificate, err error) {
	ctx, span := otel.StartSpan(ctx, "certificate.Sign")
	span.SetAttributes(
		attribute.String("certificate.id", certificateID.String()),
		attribute.String("party", string(party)),
	)
	defer func() { otel.EndSpan(span, err) }()

	log := logger.WithTrace(ctx, s.logger)

	if !party.Valid() {
		return model.Certificate{}, fmt.Errorf("%w: unknown party %q", governance.ErrValidation, party)
	}
	if err := rbac.CheckPermission(actor.ID, actor.Role, governance.CertificateSignAction(party)); err != nil {
		return model.Certificate{}, fmt.Errorf("%w: %w", governance.ErrPermissionDenied, err)
	}

	current, err := s.store.GetCertificate(ctx, certificateID)
	if err != nil {
		return model.Certificate{}, fmt.Errorf("sign certificate: %w", err)
	}
	if governance.CertificateStateOf(&current) == governance.CertificateSigned {
		return model.Certificate{}, fmt.Errorf("%w: certificate %s is already signed", governance.ErrIneligible, current.CertificateNumber)
	}

	c, err = s.store.ApplyCertificateSignature(ctx, certificateID, party, model.SignatureBy(actor, s.NowFunc()))
	if err != nil {
		log.Error("Failed to sign certificate", zap.String("certificate_id", certificateID.String()), zap.Error(err))
		return model.Certificate{}, fmt.Errorf("sign certificate: %w", err)
	}
	metrics.IncrementSignature("certificate", string(party))

	log.Info("Certificate signed",
		zap.String("certificate_id", certificateID.String()),
		zap.String("party", string(party)),
		zap.String("status", c.Status),
	)
	return c, nil
}
