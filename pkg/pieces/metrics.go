package pieces

import (
	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/precast-engine/pkg/models"
)

// Summary holds aggregate statistics over a set of pieces.
type Summary struct {
	Count       int     `json:"count"`
	TotalWeight float64 `json:"total_weight"`
	TotalVolume float64 `json:"total_volume"`
	AvgWeight   float64 `json:"avg_weight"`
	AvgLength   float64 `json:"avg_length"`
	MaxWeight   float64 `json:"max_weight"`
	MaxLength   float64 `json:"max_length"`
}

// Summarize computes quantity-weighted statistics. Sums are accumulated in
// decimal so that grouping records never changes the totals. An empty input
// yields a zero Summary.
func Summarize[T models.Piece](items []T) Summary {
	var (
		count       int64
		totalWeight = decimal.Zero
		totalVolume = decimal.Zero
		totalLength = decimal.Zero
		s           Summary
	)

	for i, item := range items {
		attrs := item.Attributes()
		qty := decimal.NewFromInt(int64(item.Count()))

		count += int64(item.Count())
		totalWeight = totalWeight.Add(decimal.NewFromFloat(attrs.Weight).Mul(qty))
		totalVolume = totalVolume.Add(decimal.NewFromFloat(attrs.UnitVolume).Mul(qty))
		totalLength = totalLength.Add(decimal.NewFromFloat(attrs.Length).Mul(qty))

		if i == 0 || attrs.Weight > s.MaxWeight {
			s.MaxWeight = attrs.Weight
		}
		if i == 0 || attrs.Length > s.MaxLength {
			s.MaxLength = attrs.Length
		}
	}

	s.Count = int(count)
	s.TotalWeight = totalWeight.InexactFloat64()
	s.TotalVolume = totalVolume.InexactFloat64()
	if count > 0 {
		n := decimal.NewFromInt(count)
		s.AvgWeight = totalWeight.DivRound(n, 6).InexactFloat64()
		s.AvgLength = totalLength.DivRound(n, 6).InexactFloat64()
	}
	return s
}

// TotalVolume returns the sum of UnitVolume*Count over items.
func TotalVolume[T models.Piece](items []T) float64 {
	return Summarize(items).TotalVolume
}
