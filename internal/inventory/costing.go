package inventory

import "github.com/shopspring/decimal"

// CostResult holds the post-movement quantity and average cost for a balance.
type CostResult struct {
	Quantity    decimal.Decimal
	AverageCost decimal.Decimal
}

// WeightedAverage blends an existing balance with an incoming lot:
// (oldQty*oldAvg + inQty*inCost) / (oldQty + inQty). When the resulting
// quantity is zero the incoming unit cost is used as-is.
func WeightedAverage(oldQty, oldAvg, inQty, inCost decimal.Decimal) decimal.Decimal {
	sum := oldQty.Add(inQty)
	if sum.IsZero() {
		return inCost
	}
	return oldQty.Mul(oldAvg).Add(inQty.Mul(inCost)).Div(sum)
}

// CostInbound applies an inbound movement to a balance.
func CostInbound(onHand, avgCost, qty, unitCost decimal.Decimal) CostResult {
	return CostResult{
		Quantity:    onHand.Add(qty),
		AverageCost: WeightedAverage(onHand, avgCost, qty, unitCost),
	}
}

// CostOutbound applies an outbound movement; the average cost is unchanged.
func CostOutbound(onHand, avgCost, qty decimal.Decimal) CostResult {
	return CostResult{
		Quantity:    onHand.Sub(qty),
		AverageCost: avgCost,
	}
}

// CostAdjust applies a signed adjustment. Positive deltas are blended into
// the average cost using the supplied unit cost; negative deltas leave the
// cost basis untouched.
func CostAdjust(onHand, avgCost, delta, unitCost decimal.Decimal) CostResult {
	if delta.IsPositive() {
		return CostInbound(onHand, avgCost, delta, unitCost)
	}
	return CostOutbound(onHand, avgCost, delta.Neg())
}
