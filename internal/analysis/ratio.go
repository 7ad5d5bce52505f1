package analysis

import "math"

// Ratio divides part by whole, returning 0 instead of NaN or ±Inf.
func Ratio(part, whole float64) float64 {
	if whole == 0 || math.IsNaN(whole) || math.IsInf(whole, 0) {
		return 0
	}
	r := part / whole
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

func Percent(part, whole float64) float64 {
	return Ratio(part, whole) * 100
}

func OrderRate(ordered, customers int) float64 {
	return Percent(float64(ordered), float64(customers))
}

func AveragePerTransaction(total float64, transactions int) float64 {
	return Ratio(total, float64(transactions))
}

func AveragePerCustomer(total float64, customers int) float64 {
	return Ratio(total, float64(customers))
}

// MatchRate is the share of transactions whose product code resolves in
// the strategy lookup.
func MatchRate(matched, total int) float64 {
	return Percent(float64(matched), float64(total))
}
