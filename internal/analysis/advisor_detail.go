package analysis

import (
	"strings"

	"advisor-dashboard/internal/models"
)

type counterpartTally struct {
	total  CustomerTally
	byTier *Grouper[string, CustomerTally]
}

// AdvisorDetail drills into one collaborating advisor: totals by tier,
// self-developed customers by tier, and collaborative customers grouped by
// the direct advisor they came from and then by tier. Counterparts are
// sorted by their total investment, descending. Returns nil without
// customers; an advisor with no customers yields an empty report.
func AdvisorDetail(ds models.Datasets, advisorName string, opts Options) *models.AdvisorDetailReport {
	if len(ds.Customers) == 0 {
		return nil
	}
	advisorName = strings.TrimSpace(advisorName)

	idx := NewOrderIndex(ds.Transactions)
	newTally := newCustomerTally[string]
	totalByTier := NewGrouper(newTally)
	selfByTier := NewGrouper(newTally)
	counterparts := NewGrouper(func(string) *counterpartTally {
		return &counterpartTally{byTier: NewGrouper(newTally)}
	})

	var summary CustomerTally
	for _, c := range CustomersOf(ds.Customers, advisorName) {
		tier := labelOrUnknown(c.FutureTier)
		summary.Add(c, idx)
		totalByTier.At(tier).Add(c, idx)

		if Classify(c) == SelfDeveloped {
			selfByTier.At(tier).Add(c, idx)
			continue
		}
		cp := counterparts.At(labelOrUnknown(c.DirectAdvisorName))
		cp.total.Add(c, idx)
		cp.byTier.At(tier).Add(c, idx)
	}

	groups := Collect(counterparts, func(name string, cp *counterpartTally) models.CounterpartGroup {
		return models.CounterpartGroup{
			DirectAdvisorName: name,
			Total:             cp.total.Stats(),
			ByTier:            tierRows(cp.byTier, opts.TierRank),
		}
	})
	sortCounterparts(groups)

	return &models.AdvisorDetailReport{
		AdvisorName:         advisorName,
		TotalByTier:         tierRows(totalByTier, opts.TierRank),
		SelfByTier:          tierRows(selfByTier, opts.TierRank),
		CollabByCounterpart: groups,
		Summary: models.AdvisorDetailSummary{
			CustomerCount:   summary.Customers,
			OrderedCount:    summary.Ordered,
			TotalInvestment: summary.Investment,
			OrderRate:       OrderRate(summary.Ordered, summary.Customers),
		},
	}
}
