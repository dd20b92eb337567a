package inventory

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestWeightedAverageBlendsLots(t *testing.T) {
	// 10 @ 100 then 10 @ 200 averages to 150.
	avg := WeightedAverage(d("10"), d("100"), d("10"), d("200"))
	require.True(t, avg.Equal(d("150")), "got %s", avg)
}

func TestWeightedAverageZeroSumUsesIncomingCost(t *testing.T) {
	avg := WeightedAverage(d("-5"), d("100"), d("5"), d("80"))
	require.True(t, avg.Equal(d("80")), "got %s", avg)
}

func TestWeightedAverageFractionalQuantities(t *testing.T) {
	// 2.5 @ 4.20 then 1.5 @ 6.60 -> (10.5 + 9.9) / 4 = 5.1
	avg := WeightedAverage(d("2.5"), d("4.20"), d("1.5"), d("6.60"))
	require.True(t, avg.Equal(d("5.1")), "got %s", avg)
}

func TestCostInboundFirstLot(t *testing.T) {
	res := CostInbound(decimal.Zero, decimal.Zero, d("10"), d("99.99"))
	require.True(t, res.Quantity.Equal(d("10")))
	require.True(t, res.AverageCost.Equal(d("99.99")))
}

func TestCostOutboundKeepsAverage(t *testing.T) {
	res := CostOutbound(d("20"), d("150"), d("8"))
	require.True(t, res.Quantity.Equal(d("12")))
	require.True(t, res.AverageCost.Equal(d("150")))
}

func TestCostAdjustPositiveBlendsCost(t *testing.T) {
	res := CostAdjust(d("10"), d("100"), d("10"), d("200"))
	require.True(t, res.Quantity.Equal(d("20")))
	require.True(t, res.AverageCost.Equal(d("150")))
}

func TestCostAdjustNegativeKeepsCost(t *testing.T) {
	res := CostAdjust(d("10"), d("100"), d("-4"), decimal.Zero)
	require.True(t, res.Quantity.Equal(d("6")))
	require.True(t, res.AverageCost.Equal(d("100")))
}

func TestCostOutboundDrainToZeroThenRestock(t *testing.T) {
	res := CostOutbound(d("10"), d("120"), d("10"))
	require.True(t, res.Quantity.IsZero())

	// Restocking an empty balance adopts the new lot's cost outright.
	res = CostInbound(res.Quantity, res.AverageCost, d("5"), d("90"))
	require.True(t, res.Quantity.Equal(d("5")))
	require.True(t, res.AverageCost.Equal(d("90")))
}
