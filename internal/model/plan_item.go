package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PlanItemTypeMilestone   = "milestone"
	PlanItemTypeDeliverable = "deliverable"
	PlanItemTypeTask        = "task"
	PlanItemTypePhase       = "phase"
)

// PlanItem belongs to the planning tool; only milestone and deliverable items are committed.
type PlanItem struct {
	ID                     uuid.UUID           `json:"id"`
	ProjectID              uuid.UUID           `json:"project_id"`
	ParentID               *uuid.UUID          `json:"parent_id"`
	ItemType               string              `json:"item_type"`
	Name                   string              `json:"name"`
	StartDate              *Date               `json:"start_date"`
	EndDate                *Date               `json:"end_date"`
	Billable               decimal.NullDecimal `json:"billable"`
	SortOrder              int                 `json:"sort_order"`
	IsPublished            bool                `json:"is_published"`
	PublishedMilestoneID   *uuid.UUID          `json:"published_milestone_id"`
	PublishedDeliverableID *uuid.UUID          `json:"published_deliverable_id"`
	UpdatedAt              time.Time           `json:"updated_at"`
}

// Schedule returns the plan item's start, end and cost in the same shape as a baseline.
func (p PlanItem) Schedule() BaselineValues {
	return BaselineValues{Start: p.StartDate, End: p.EndDate, Cost: p.Billable}
}
