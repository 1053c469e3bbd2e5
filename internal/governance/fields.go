package governance

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"contracttracker/internal/model"
)

const (
	FieldStartDate = "start_date"
	FieldEndDate   = "end_date"
	FieldDuration  = "duration"
	FieldCost      = "cost"
	FieldBillable  = "billable"
)

var protectedFields = map[string]struct{}{
	FieldStartDate: {},
	FieldEndDate:   {},
	FieldDuration:  {},
	FieldCost:      {},
	FieldBillable:  {},
}

// IsProtectedField reports whether edits to field are subject to baseline protection.
func IsProtectedField(field string) bool {
	_, ok := protectedFields[field]
	return ok
}

func isDateField(field string) bool {
	return field == FieldStartDate || field == FieldEndDate
}

func isCostField(field string) bool {
	return field == FieldCost || field == FieldBillable
}

// InferVariationType classifies the set of fields touched by one or more changes:
// dates only is a time extension, cost only is a cost adjustment, anything else is combined.
func InferVariationType(fields ...string) string {
	var dates, costs bool
	for _, f := range fields {
		switch {
		case isDateField(f):
			dates = true
		case isCostField(f):
			costs = true
		}
	}
	switch {
	case dates && !costs:
		return model.VariationTypeTimeExtension
	case costs && !dates:
		return model.VariationTypeCostAdjustment
	default:
		return model.VariationTypeCombined
	}
}

// FoldChange applies one field edit, given as its wire value, to a set of baseline values.
// A duration is a whole number of days counted from the (possibly already folded) start.
func FoldChange(values model.BaselineValues, field, raw string) (model.BaselineValues, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return values, fmt.Errorf("%w: %s requires a value", ErrValidation, field)
	}

	switch field {
	case FieldStartDate, FieldEndDate:
		d, err := model.ParseDate(raw)
		if err != nil {
			return values, fmt.Errorf("%w: %s: %v", ErrValidation, field, err)
		}
		if field == FieldStartDate {
			values.Start = &d
		} else {
			values.End = &d
		}
	case FieldCost, FieldBillable:
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return values, fmt.Errorf("%w: %s: invalid amount %q", ErrValidation, field, raw)
		}
		if amount.IsNegative() {
			return values, fmt.Errorf("%w: %s: amount must not be negative", ErrValidation, field)
		}
		values.Cost = decimal.NewNullDecimal(amount)
	case FieldDuration:
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 {
			return values, fmt.Errorf("%w: duration: invalid day count %q", ErrValidation, raw)
		}
		if values.Start == nil {
			return values, fmt.Errorf("%w: duration: no start date to count from", ErrValidation)
		}
		end := values.Start.AddDays(days)
		values.End = &end
	default:
		return values, fmt.Errorf("%w: field %q cannot be applied to a baseline", ErrValidation, field)
	}
	return values, nil
}

// Rationale renders one change as "{field}: {from} → {to}".
func Rationale(field, from, to string) string {
	return fmt.Sprintf("%s: %s → %s", field, from, to)
}
