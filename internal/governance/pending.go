package governance

import (
	"sync"

	"github.com/google/uuid"

	"contracttracker/internal/model"
)

const (
	ItemKindMilestone   = "milestone"
	ItemKindDeliverable = "deliverable"
	ItemKindPlanItem    = "plan_item"
)

// EditTarget is the item an edit is aimed at, reduced to what baseline protection needs.
type EditTarget struct {
	ID   uuid.UUID `json:"id"`
	Kind string    `json:"kind"`
	// Published is false for plan items that have not been committed to a tracked entity.
	Published     bool       `json:"published"`
	MilestoneID   *uuid.UUID `json:"milestone_id,omitempty"`
	DeliverableID *uuid.UUID `json:"deliverable_id,omitempty"`
}

// MilestoneTarget targets a tracked milestone directly.
func MilestoneTarget(id uuid.UUID) EditTarget {
	return EditTarget{ID: id, Kind: ItemKindMilestone, Published: true, MilestoneID: &id}
}

// DeliverableTarget targets a tracked deliverable; its milestone is resolved through the store.
func DeliverableTarget(id uuid.UUID) EditTarget {
	return EditTarget{ID: id, Kind: ItemKindDeliverable, Published: true, DeliverableID: &id}
}

// PlanItemTarget targets a planning item through whatever it was published as.
func PlanItemTarget(p model.PlanItem) EditTarget {
	return EditTarget{
		ID:            p.ID,
		Kind:          ItemKindPlanItem,
		Published:     p.IsPublished,
		MilestoneID:   p.PublishedMilestoneID,
		DeliverableID: p.PublishedDeliverableID,
	}
}

// PendingChange is a blocked edit held until the user discards, batches or drafts it.
type PendingChange struct {
	ItemID        uuid.UUID       `json:"item_id"`
	ItemKind      string          `json:"item_kind"`
	Field         string          `json:"field"`
	PreviousValue string          `json:"previous_value"`
	NewValue      string          `json:"new_value"`
	Milestone     model.Milestone `json:"milestone"`
}

// Batch accumulates pending changes across milestones for a single batch variation.
// It lives only in memory and is safe for concurrent use.
type Batch struct {
	mu      sync.Mutex
	changes []PendingChange
}

// Add appends c, replacing an earlier change to the same item and field.
func (b *Batch) Add(c PendingChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.changes {
		if existing.ItemID == c.ItemID && existing.Field == c.Field {
			// keep the original "from" so the rationale spans the whole edit
			c.PreviousValue = existing.PreviousValue
			b.changes[i] = c
			return
		}
	}
	b.changes = append(b.changes, c)
}

// Remove drops the change to item/field, if queued.
func (b *Batch) Remove(itemID uuid.UUID, field string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.changes[:0]
	for _, c := range b.changes {
		if c.ItemID == itemID && c.Field == field {
			continue
		}
		kept = append(kept, c)
	}
	b.changes = kept
}

// Changes returns a copy of the queued changes in insertion order.
func (b *Batch) Changes() []PendingChange {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]PendingChange, len(b.changes))
	copy(out, b.changes)
	return out
}

func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.changes)
}

func (b *Batch) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.changes = nil
}

// MilestoneGroup is the set of pending changes that affect one milestone.
type MilestoneGroup struct {
	Milestone model.Milestone
	Changes   []PendingChange
}

// GroupByMilestone groups changes by milestone id, in first-seen order. The milestone
// snapshot of the first change in each group is used.
func GroupByMilestone(changes []PendingChange) []MilestoneGroup {
	index := make(map[uuid.UUID]int)
	var groups []MilestoneGroup
	for _, c := range changes {
		i, ok := index[c.Milestone.ID]
		if !ok {
			i = len(groups)
			index[c.Milestone.ID] = i
			groups = append(groups, MilestoneGroup{Milestone: c.Milestone})
		}
		groups[i].Changes = append(groups[i].Changes, c)
	}
	return groups
}
