package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"contracttracker/internal/governance"
	"contracttracker/internal/model"
	"contracttracker/internal/store"
)

// Event is a domain event the store would have written to the outbox.
type Event struct {
	RoutingKey  string
	AggregateID uuid.UUID
}

// MemoryStore is an in-memory store.Store used by tests. Fail lets a test inject an error
// for a named method ("GetMilestone", "CreateVariation", ...); FailFor limits it to one id.
type MemoryStore struct {
	mu sync.Mutex

	Milestones   map[uuid.UUID]model.Milestone
	Deliverables map[uuid.UUID]model.Deliverable
	Certificates map[uuid.UUID]model.Certificate
	Variations   map[uuid.UUID]model.Variation
	Impacts      []model.VariationMilestoneImpact
	PlanItems    map[uuid.UUID]model.PlanItem
	Events       []Event

	Fail    map[string]error
	FailFor map[uuid.UUID]error

	NowFunc func() time.Time
}

var _ store.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Milestones:   make(map[uuid.UUID]model.Milestone),
		Deliverables: make(map[uuid.UUID]model.Deliverable),
		Certificates: make(map[uuid.UUID]model.Certificate),
		Variations:   make(map[uuid.UUID]model.Variation),
		PlanItems:    make(map[uuid.UUID]model.PlanItem),
		Fail:         make(map[string]error),
		FailFor:      make(map[uuid.UUID]error),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (m *MemoryStore) now() time.Time {
	if m.NowFunc != nil {
		return m.NowFunc()
	}
	return time.Now().UTC()
}

func (m *MemoryStore) fail(op string, id uuid.UUID) error {
	if err, ok := m.FailFor[id]; ok {
		return err
	}
	if err, ok := m.Fail[op]; ok {
		return err
	}
	return nil
}

func (m *MemoryStore) emit(key string, id uuid.UUID) {
	m.Events = append(m.Events, Event{RoutingKey: key, AggregateID: id})
}

// --- fixtures ---

func (m *MemoryStore) AddMilestone(ms model.Milestone) model.Milestone {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ms.ID == uuid.Nil {
		ms.ID = uuid.New()
	}
	m.Milestones[ms.ID] = ms
	return ms
}

func (m *MemoryStore) AddDeliverable(d model.Deliverable) model.Deliverable {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	m.Deliverables[d.ID] = d
	return d
}

func (m *MemoryStore) AddPlanItem(p model.PlanItem) model.PlanItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.PlanItems[p.ID] = p
	return p
}

func (m *MemoryStore) AddCertificate(c model.Certificate) model.Certificate {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.Certificates[c.ID] = c
	return c
}

// RoutingKeys lists the emitted event routing keys in order.
func (m *MemoryStore) RoutingKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, len(m.Events))
	for i, e := range m.Events {
		keys[i] = e.RoutingKey
	}
	return keys
}

// --- store.MilestoneStore ---

func (m *MemoryStore) GetMilestone(ctx context.Context, id uuid.UUID) (model.Milestone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetMilestone", id); err != nil {
		return model.Milestone{}, err
	}
	ms, ok := m.Milestones[id]
	if !ok {
		return model.Milestone{}, fmt.Errorf("get milestone: %w", store.ErrNotFound)
	}
	return ms, nil
}

func (m *MemoryStore) GetDeliverableMilestoneID(ctx context.Context, deliverableID uuid.UUID) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetDeliverableMilestoneID", deliverableID); err != nil {
		return uuid.Nil, err
	}
	d, ok := m.Deliverables[deliverableID]
	if !ok {
		return uuid.Nil, fmt.Errorf("get deliverable: %w", store.ErrNotFound)
	}
	return d.MilestoneID, nil
}

func (m *MemoryStore) ListDeliverablesByMilestone(ctx context.Context, milestoneID uuid.UUID) ([]model.Deliverable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListDeliverablesByMilestone", milestoneID); err != nil {
		return nil, err
	}
	var out []model.Deliverable
	for _, d := range m.Deliverables {
		if d.MilestoneID == milestoneID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out, nil
}

func (m *MemoryStore) ApplyBaselineSignature(ctx context.Context, milestoneID uuid.UUID, party model.Party, sig model.Signature) (model.Milestone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ApplyBaselineSignature", milestoneID); err != nil {
		return model.Milestone{}, err
	}
	ms, ok := m.Milestones[milestoneID]
	if !ok {
		return model.Milestone{}, fmt.Errorf("sign baseline: %w", store.ErrNotFound)
	}
	s := sig
	if party == model.PartySupplier {
		ms.BaselineSupplierSignature = &s
		ms.BaselineLocked = ms.BaselineLocked || ms.BaselineCustomerSignature != nil
	} else {
		ms.BaselineCustomerSignature = &s
		ms.BaselineLocked = ms.BaselineLocked || ms.BaselineSupplierSignature != nil
	}
	ms.UpdatedAt = m.now()
	m.Milestones[milestoneID] = ms
	m.emit("baseline.signed", milestoneID)
	if ms.BaselineLocked {
		m.emit("baseline.locked", milestoneID)
	}
	return ms, nil
}

func (m *MemoryStore) ResetBaseline(ctx context.Context, milestoneID uuid.UUID, actorID string) (model.Milestone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ResetBaseline", milestoneID); err != nil {
		return model.Milestone{}, err
	}
	ms, ok := m.Milestones[milestoneID]
	if !ok {
		return model.Milestone{}, fmt.Errorf("reset baseline: %w", store.ErrNotFound)
	}
	ms.BaselineSupplierSignature = nil
	ms.BaselineCustomerSignature = nil
	ms.BaselineLocked = false
	ms.UpdatedAt = m.now()
	m.Milestones[milestoneID] = ms
	m.emit("baseline.reset", milestoneID)
	return ms, nil
}

func (m *MemoryStore) UpdateBaseline(ctx context.Context, milestoneID uuid.UUID, values model.BaselineValues, allowLocked bool) (model.Milestone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateBaseline", milestoneID); err != nil {
		return model.Milestone{}, err
	}
	ms, ok := m.Milestones[milestoneID]
	if !ok {
		return model.Milestone{}, fmt.Errorf("update baseline: %w", store.ErrNotFound)
	}
	if !allowLocked && (ms.BaselineLocked || (ms.BaselineSupplierSignature != nil && ms.BaselineCustomerSignature != nil)) {
		return model.Milestone{}, fmt.Errorf("update baseline: milestone is locked: %w", store.ErrConflict)
	}
	ms.BaselineStartDate = values.Start
	ms.BaselineEndDate = values.End
	ms.BaselineBillable = values.Cost
	ms.UpdatedAt = m.now()
	m.Milestones[milestoneID] = ms
	return ms, nil
}

// --- store.CertificateStore ---

func (m *MemoryStore) GetCertificate(ctx context.Context, id uuid.UUID) (model.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetCertificate", id); err != nil {
		return model.Certificate{}, err
	}
	c, ok := m.Certificates[id]
	if !ok {
		return model.Certificate{}, fmt.Errorf("get certificate: %w", store.ErrNotFound)
	}
	return c, nil
}

func (m *MemoryStore) GetCertificateByMilestone(ctx context.Context, milestoneID uuid.UUID) (model.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetCertificateByMilestone", milestoneID); err != nil {
		return model.Certificate{}, err
	}
	for _, c := range m.Certificates {
		if c.MilestoneID == milestoneID {
			return c, nil
		}
	}
	return model.Certificate{}, fmt.Errorf("get certificate by milestone: %w", store.ErrNotFound)
}

func (m *MemoryStore) CreateCertificate(ctx context.Context, c model.Certificate) (model.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateCertificate", c.MilestoneID); err != nil {
		return model.Certificate{}, err
	}
	for _, existing := range m.Certificates {
		if existing.MilestoneID == c.MilestoneID {
			return model.Certificate{}, fmt.Errorf("create certificate: %w", store.ErrConflict)
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.Certificates[c.ID] = c
	m.emit("certificate.generated", c.ID)
	return c, nil
}

func (m *MemoryStore) ApplyCertificateSignature(ctx context.Context, certificateID uuid.UUID, party model.Party, sig model.Signature) (model.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ApplyCertificateSignature", certificateID); err != nil {
		return model.Certificate{}, err
	}
	c, ok := m.Certificates[certificateID]
	if !ok {
		return model.Certificate{}, fmt.Errorf("sign certificate: %w", store.ErrNotFound)
	}
	if c.SupplierSignature != nil && c.CustomerSignature != nil {
		return model.Certificate{}, fmt.Errorf("sign certificate: already signed: %w", store.ErrConflict)
	}
	s := sig
	if party == model.PartySupplier {
		c.SupplierSignature = &s
	} else {
		c.CustomerSignature = &s
	}
	c.Status = string(governance.CertificateStateOf(&c))
	m.Certificates[certificateID] = c
	m.emit("certificate.signed", certificateID)
	return c, nil
}

// --- store.VariationStore ---

func (m *MemoryStore) CreateVariation(ctx context.Context, v model.Variation, impacts []model.VariationMilestoneImpact) (model.Variation, []model.VariationMilestoneImpact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateVariation", v.ProjectID); err != nil {
		return model.Variation{}, nil, err
	}
	for _, imp := range impacts {
		if err := m.fail("CreateVariationImpact", imp.MilestoneID); err != nil {
			// all-or-nothing, like the database transaction
			return model.Variation{}, nil, err
		}
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.CreatedAt = m.now()
	saved := make([]model.VariationMilestoneImpact, len(impacts))
	for i, imp := range impacts {
		imp.ID = uuid.New()
		imp.VariationID = v.ID
		saved[i] = imp
	}
	m.Variations[v.ID] = v
	m.Impacts = append(m.Impacts, saved...)
	m.emit("variation.drafted", v.ID)
	return v, saved, nil
}

// --- store.PlanStore ---

func (m *MemoryStore) GetPlanItem(ctx context.Context, id uuid.UUID) (model.PlanItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetPlanItem", id); err != nil {
		return model.PlanItem{}, err
	}
	p, ok := m.PlanItems[id]
	if !ok {
		return model.PlanItem{}, fmt.Errorf("get plan item: %w", store.ErrNotFound)
	}
	return p, nil
}

func (m *MemoryStore) ListPlanItems(ctx context.Context, projectID uuid.UUID) ([]model.PlanItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListPlanItems", projectID); err != nil {
		return nil, err
	}
	var out []model.PlanItem
	for _, p := range m.PlanItems {
		if p.ProjectID == projectID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MemoryStore) UpdatePlanItemSchedule(ctx context.Context, id uuid.UUID, values model.BaselineValues) (model.PlanItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdatePlanItemSchedule", id); err != nil {
		return model.PlanItem{}, err
	}
	p, ok := m.PlanItems[id]
	if !ok {
		return model.PlanItem{}, fmt.Errorf("update plan item: %w", store.ErrNotFound)
	}
	p.StartDate = values.Start
	p.EndDate = values.End
	p.Billable = values.Cost
	p.UpdatedAt = m.now()
	m.PlanItems[id] = p
	return p, nil
}

func (m *MemoryStore) CommitPlanMilestone(ctx context.Context, itemID uuid.UUID, ms model.Milestone) (model.Milestone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CommitPlanMilestone", itemID); err != nil {
		return model.Milestone{}, err
	}
	p, ok := m.PlanItems[itemID]
	if !ok {
		return model.Milestone{}, fmt.Errorf("commit plan milestone: %w", store.ErrNotFound)
	}
	if p.IsPublished {
		return model.Milestone{}, fmt.Errorf("commit plan milestone: already published: %w", store.ErrConflict)
	}
	if ms.ID == uuid.Nil {
		ms.ID = uuid.New()
	}
	ms.CreatedAt = m.now()
	ms.UpdatedAt = ms.CreatedAt
	m.Milestones[ms.ID] = ms

	id := ms.ID
	p.IsPublished = true
	p.PublishedMilestoneID = &id
	m.PlanItems[itemID] = p
	m.emit("plan.committed", itemID)
	return ms, nil
}

func (m *MemoryStore) CommitPlanDeliverable(ctx context.Context, itemID uuid.UUID, d model.Deliverable) (model.Deliverable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CommitPlanDeliverable", itemID); err != nil {
		return model.Deliverable{}, err
	}
	p, ok := m.PlanItems[itemID]
	if !ok {
		return model.Deliverable{}, fmt.Errorf("commit plan deliverable: %w", store.ErrNotFound)
	}
	if p.IsPublished {
		return model.Deliverable{}, fmt.Errorf("commit plan deliverable: already published: %w", store.ErrConflict)
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = m.now()
	m.Deliverables[d.ID] = d

	id := d.ID
	p.IsPublished = true
	p.PublishedDeliverableID = &id
	m.PlanItems[itemID] = p
	m.emit("plan.committed", itemID)
	return d, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Fail["Ping"]
}
