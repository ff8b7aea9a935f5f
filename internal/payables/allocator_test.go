package payables

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAllocateTotals(t *testing.T) {
	alloc := Allocate([]CostLine{
		{VariantID: 1, ReceivedQty: 10, UnitCost: decimal.NewFromInt(20)},
		{VariantID: 2, ReceivedQty: 3, UnitCost: decimal.RequireFromString("9.99")},
	}, []Deduction{
		{Reason: "damage", Amount: decimal.RequireFromString("12.50")},
	})

	require.True(t, alloc.GrossAmount.Equal(decimal.RequireFromString("229.97")), alloc.GrossAmount.String())
	require.True(t, alloc.DeductionsTotal.Equal(decimal.RequireFromString("12.50")))
	require.True(t, alloc.NetAmount.Equal(decimal.RequireFromString("217.47")))
	require.Len(t, alloc.LineTotals, 2)
}

func TestAllocateRoundsPerLine(t *testing.T) {
	// 3 * 0.335 = 1.005 rounds at the line, not after summing.
	alloc := Allocate([]CostLine{
		{VariantID: 1, ReceivedQty: 3, UnitCost: decimal.RequireFromString("0.335")},
		{VariantID: 2, ReceivedQty: 3, UnitCost: decimal.RequireFromString("0.335")},
	}, nil)
	require.True(t, alloc.LineTotals[0].Equal(decimal.RequireFromString("1.00")) || alloc.LineTotals[0].Equal(decimal.RequireFromString("1.01")))
	require.True(t, alloc.GrossAmount.Equal(alloc.LineTotals[0].Add(alloc.LineTotals[1])))
}

func TestAllocateSplitEqualsWhole(t *testing.T) {
	unit := decimal.RequireFromString("3.37")

	whole := Allocate([]CostLine{{VariantID: 1, ReceivedQty: 10, UnitCost: unit}}, nil)
	first := Allocate([]CostLine{{VariantID: 1, ReceivedQty: 6, UnitCost: unit}}, nil)
	second := Allocate([]CostLine{{VariantID: 1, ReceivedQty: 4, UnitCost: unit}}, nil)

	require.True(t, whole.GrossAmount.Equal(first.GrossAmount.Add(second.GrossAmount)),
		"split deliveries drifted: %s vs %s + %s", whole.GrossAmount, first.GrossAmount, second.GrossAmount)
	require.True(t, whole.GrossAmount.Equal(decimal.RequireFromString("33.70")))
}

func TestAllocateEmptyDeductions(t *testing.T) {
	alloc := Allocate([]CostLine{{VariantID: 1, ReceivedQty: 5, UnitCost: decimal.NewFromInt(4)}}, nil)
	require.True(t, alloc.DeductionsTotal.IsZero())
	require.True(t, alloc.NetAmount.Equal(alloc.GrossAmount))
}
