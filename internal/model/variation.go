package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	VariationTypeTimeExtension  = "time_extension"
	VariationTypeCostAdjustment = "cost_adjustment"
	VariationTypeCombined       = "combined"

	VariationStatusDraft = "draft"
)

type Variation struct {
	ID            uuid.UUID       `json:"id"`
	ProjectID     uuid.UUID       `json:"project_id"`
	Ref           string          `json:"ref"`
	Title         string          `json:"title"`
	VariationType string          `json:"variation_type"`
	Status        string          `json:"status"`
	Description   string          `json:"description"`
	FormData      json.RawMessage `json:"form_data"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

type VariationMilestoneImpact struct {
	ID                    uuid.UUID           `json:"id"`
	VariationID           uuid.UUID           `json:"variation_id"`
	MilestoneID           uuid.UUID           `json:"milestone_id"`
	OriginalBaselineStart *Date               `json:"original_baseline_start"`
	OriginalBaselineEnd   *Date               `json:"original_baseline_end"`
	OriginalBaselineCost  decimal.NullDecimal `json:"original_baseline_cost"`
	NewBaselineStart      *Date               `json:"new_baseline_start"`
	NewBaselineEnd        *Date               `json:"new_baseline_end"`
	NewBaselineCost       decimal.NullDecimal `json:"new_baseline_cost"`
	Rationale             string              `json:"rationale"`
}
