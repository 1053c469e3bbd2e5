package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MilestoneStatusNotStarted = "not_started"
	MilestoneStatusInProgress = "in_progress"
	MilestoneStatusCompleted  = "completed"
)

type Milestone struct {
	ID                        uuid.UUID           `json:"id"`
	ProjectID                 uuid.UUID           `json:"project_id"`
	Ref                       string              `json:"ref"`
	Name                      string              `json:"name"`
	Status                    string              `json:"status"`
	StartDate                 *Date               `json:"start_date"`
	ActualStartDate           *Date               `json:"actual_start_date"`
	EndDate                   *Date               `json:"end_date"`
	ForecastEndDate           *Date               `json:"forecast_end_date"`
	BaselineStartDate         *Date               `json:"baseline_start_date"`
	BaselineEndDate           *Date               `json:"baseline_end_date"`
	BaselineBillable          decimal.NullDecimal `json:"baseline_billable"`
	ForecastBillable          decimal.NullDecimal `json:"forecast_billable"`
	Billable                  decimal.NullDecimal `json:"billable"`
	BaselineLocked            bool                `json:"baseline_locked"`
	BaselineSupplierSignature *Signature          `json:"baseline_supplier_signature"`
	BaselineCustomerSignature *Signature          `json:"baseline_customer_signature"`
	CreatedAt                 time.Time           `json:"created_at"`
	UpdatedAt                 time.Time           `json:"updated_at"`
}

// Baseline returns the committed schedule/cost values.
func (m Milestone) Baseline() BaselineValues {
	return BaselineValues{
		Start: m.BaselineStartDate,
		End:   m.BaselineEndDate,
		Cost:  m.BaselineBillable,
	}
}

// BaselineValues is a milestone's committed start, end and cost.
type BaselineValues struct {
	Start *Date               `json:"start"`
	End   *Date               `json:"end"`
	Cost  decimal.NullDecimal `json:"cost"`
}

const (
	DeliverableStatusNotStarted = "Not Started"
	DeliverableStatusInProgress = "In Progress"
	DeliverableStatusSubmitted  = "Submitted"
	DeliverableStatusDelivered  = "Delivered"
)

type Deliverable struct {
	ID          uuid.UUID `json:"id"`
	MilestoneID uuid.UUID `json:"milestone_id"`
	Ref         string    `json:"ref"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	DueDate     *Date     `json:"due_date"`
	CreatedAt   time.Time `json:"created_at"`
}
