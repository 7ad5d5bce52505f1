package analysis

import (
	"cmp"
	"slices"
	"strings"

	"advisor-dashboard/internal/models"
)

// DefaultTierOrder lists membership tiers from most to least senior.
var DefaultTierOrder = []string{"私行", "黑钻", "钻石", "白金", "黄金", "普通"}

// TierRank orders business-defined tier labels. Tiers missing from the
// table sort after every ranked tier, alphabetically among themselves.
type TierRank struct {
	rank map[string]int
}

func NewTierRank(order []string) TierRank {
	rank := make(map[string]int, len(order))
	for i, tier := range order {
		tier = strings.TrimSpace(tier)
		if tier == "" {
			continue
		}
		if _, dup := rank[tier]; !dup {
			rank[tier] = i
		}
	}
	return TierRank{rank: rank}
}

func (r TierRank) Rank(tier string) (int, bool) {
	i, ok := r.rank[strings.TrimSpace(tier)]
	return i, ok
}

func (r TierRank) Compare(a, b string) int {
	ra, oka := r.Rank(a)
	rb, okb := r.Rank(b)
	switch {
	case oka && okb:
		return cmp.Compare(ra, rb)
	case oka:
		return -1
	case okb:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// SortByTier stable-sorts rows by the tier each carries.
func SortByTier[T any](rows []T, rank TierRank, tier func(T) string) {
	slices.SortStableFunc(rows, func(a, b T) int {
		return rank.Compare(tier(a), tier(b))
	})
}

func sortByAmountDesc(rows []models.GroupTotal) {
	slices.SortStableFunc(rows, func(a, b models.GroupTotal) int {
		return cmp.Compare(b.TotalAmount, a.TotalAmount)
	})
}

func sortStrategyRows(rows []models.StrategyRow) {
	slices.SortStableFunc(rows, func(a, b models.StrategyRow) int {
		return cmp.Compare(b.TotalAmount, a.TotalAmount)
	})
}

func sortMappings(rows []models.AdvisorMapping) {
	slices.SortStableFunc(rows, func(a, b models.AdvisorMapping) int {
		if c := strings.Compare(a.AdvisorName, b.AdvisorName); c != 0 {
			return c
		}
		return cmp.Compare(b.Amount, a.Amount)
	})
}

func sortCounterparts(rows []models.CounterpartGroup) {
	slices.SortStableFunc(rows, func(a, b models.CounterpartGroup) int {
		return cmp.Compare(b.Total.TotalInvestment, a.Total.TotalInvestment)
	})
}

func tierOf(row models.TierOrderRow) string { return row.Tier }
