package payables

import "github.com/shopspring/decimal"

// CostLine is one received line priced for settlement. UnitCost is the final
// cost when the delivery supplied one, otherwise the estimate.
type CostLine struct {
	VariantID   int64
	ReceivedQty int64
	UnitCost    decimal.Decimal
}

// Deduction reduces the settled amount, e.g. a damage charge-back or an
// agreed discount.
type Deduction struct {
	Reason string
	Amount decimal.Decimal
}

// Allocation holds the monetary totals for a settlement.
type Allocation struct {
	LineTotals      []decimal.Decimal
	GrossAmount     decimal.Decimal
	DeductionsTotal decimal.Decimal
	NetAmount       decimal.Decimal
}

// Allocate prices received quantities into settlement totals. Every amount is
// rounded to two decimals at the line level so repeated partial settlements
// sum to the same totals as a single full one.
func Allocate(lines []CostLine, deductions []Deduction) Allocation {
	totals := make([]decimal.Decimal, 0, len(lines))
	gross := decimal.Zero
	for _, line := range lines {
		total := line.UnitCost.Mul(decimal.NewFromInt(line.ReceivedQty)).Round(2)
		totals = append(totals, total)
		gross = gross.Add(total)
	}
	deducted := decimal.Zero
	for _, d := range deductions {
		deducted = deducted.Add(d.Amount.Round(2))
	}
	return Allocation{
		LineTotals:      totals,
		GrossAmount:     gross,
		DeductionsTotal: deducted,
		NetAmount:       gross.Sub(deducted),
	}
}
