package governance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contracttracker/internal/model"
)

func TestIsProtectedField(t *testing.T) {
	for _, f := range []string{"start_date", "end_date", "duration", "cost", "billable"} {
		assert.True(t, IsProtectedField(f), f)
	}
	assert.False(t, IsProtectedField("name"))
	assert.False(t, IsProtectedField("forecast_end_date"))
}

func TestInferVariationType(t *testing.T) {
	cases := []struct {
		fields []string
		want   string
	}{
		{[]string{"start_date"}, model.VariationTypeTimeExtension},
		{[]string{"end_date"}, model.VariationTypeTimeExtension},
		{[]string{"billable"}, model.VariationTypeCostAdjustment},
		{[]string{"cost"}, model.VariationTypeCostAdjustment},
		{[]string{"duration"}, model.VariationTypeCombined},
		{[]string{"start_date", "end_date"}, model.VariationTypeTimeExtension},
		{[]string{"billable", "cost"}, model.VariationTypeCostAdjustment},
		{[]string{"end_date", "billable"}, model.VariationTypeCombined},
		{[]string{"start_date", "end_date", "cost"}, model.VariationTypeCombined},
		{[]string{"start_date", "end_date", "end_date"}, model.VariationTypeTimeExtension},
		{[]string{"cost", "billable", "billable"}, model.VariationTypeCostAdjustment},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, InferVariationType(tc.fields...), "%v", tc.fields)
	}
}

func TestFoldChange(t *testing.T) {
	base := model.BaselineValues{
		Start: model.MustDate("2026-01-01"),
		End:   model.MustDate("2026-03-31"),
		Cost:  decimal.NewNullDecimal(decimal.RequireFromString("1000.00")),
	}

	got, err := FoldChange(base, FieldStartDate, "2026-01-15")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-15", got.Start.String())
	assert.Equal(t, "2026-03-31", got.End.String())
	assert.True(t, got.Cost.Decimal.Equal(decimal.RequireFromString("1000")))
	assert.Equal(t, "2026-01-01", base.Start.String(), "input must not be mutated")

	got, err = FoldChange(base, FieldBillable, "1250.50")
	require.NoError(t, err)
	assert.Equal(t, "1250.5", got.Cost.Decimal.String())

	got, err = FoldChange(base, FieldDuration, "10")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-11", got.End.String())
}

func TestFoldChangeRejectsBadInput(t *testing.T) {
	base := model.BaselineValues{}
	for _, tc := range []struct{ field, raw string }{
		{FieldStartDate, "15/01/2026"},
		{FieldCost, "lots"},
		{FieldCost, "-5"},
		{FieldDuration, "3"},
		{FieldEndDate, ""},
		{"name", "x"},
	} {
		_, err := FoldChange(base, tc.field, tc.raw)
		assert.ErrorIs(t, err, ErrValidation, "%s=%q", tc.field, tc.raw)
	}
}

func TestRationale(t *testing.T) {
	assert.Equal(t, "start_date: 2026-01-01 → 2026-01-15", Rationale("start_date", "2026-01-01", "2026-01-15"))
}
