package analysis

import (
	"slices"
	"strings"

	"advisor-dashboard/internal/models"
)

type segmentTallies struct {
	total, self, collab CustomerTally
}

func (s *segmentTallies) add(c models.CustomerRecord, idx *OrderIndex) {
	s.total.Add(c, idx)
	if Classify(c) == SelfDeveloped {
		s.self.Add(c, idx)
		return
	}
	s.collab.Add(c, idx)
}

// OrderStatus computes, per collaborating advisor, whether its customers
// ordered in the current transaction set. Each advisor contributes a total,
// a self-developed and a collaborative row in that order; advisors are
// sorted by name. Only customers carrying both a collaborating advisor id
// and name take part. Returns nil without customers.
func OrderStatus(ds models.Datasets, opts Options) *models.OrderStatusReport {
	if len(ds.Customers) == 0 {
		return nil
	}

	idx := NewOrderIndex(ds.Transactions)
	advisors := Fold(ds.Customers, func(c models.CustomerRecord) (string, bool) {
		return strings.TrimSpace(c.CollabAdvisorName), hasCollabAdvisor(c)
	}, func(string) *segmentTallies { return &segmentTallies{} }, func(s *segmentTallies, c models.CustomerRecord) {
		s.add(c, idx)
	})

	names := advisors.Keys()
	slices.Sort(names)

	rows := make([]models.AdvisorOrderRow, 0, len(names)*3)
	for _, name := range names {
		if opts.excluded(name) {
			continue
		}
		s, _ := advisors.Lookup(name)
		for _, seg := range []struct {
			segment models.Segment
			tally   *CustomerTally
		}{
			{models.SegmentTotal, &s.total},
			{models.SegmentSelf, &s.self},
			{models.SegmentCollab, &s.collab},
		} {
			rows = append(rows, models.AdvisorOrderRow{
				AdvisorName: name,
				Segment:     seg.segment,
				SortOrder:   seg.segment.SortOrder(),
				OrderStats:  seg.tally.Stats(),
			})
		}
	}

	return &models.OrderStatusReport{
		Advisors: rows,
		Tiers:    tierOrderRates(ds.Customers, idx, opts),
		Summary:  orderSummary(ds, idx),
	}
}

// TierOrderRates is the per-tier order rate over customers with a
// collaborating advisor, split by attribution.
func TierOrderRates(ds models.Datasets, opts Options) *models.TierOrderRates {
	if len(ds.Customers) == 0 {
		return nil
	}
	rates := tierOrderRates(ds.Customers, NewOrderIndex(ds.Transactions), opts)
	return &rates
}

func tierOrderRates(customers []models.CustomerRecord, idx *OrderIndex, opts Options) models.TierOrderRates {
	newTally := newCustomerTally[string]
	all := NewGrouper(newTally)
	self := NewGrouper(newTally)
	collab := NewGrouper(newTally)

	for _, c := range customers {
		if !hasCollabAdvisor(c) {
			continue
		}
		tier := labelOrUnknown(c.FutureTier)
		all.At(tier).Add(c, idx)
		if Classify(c) == SelfDeveloped {
			self.At(tier).Add(c, idx)
		} else {
			collab.At(tier).Add(c, idx)
		}
	}

	return models.TierOrderRates{
		All:    tierRows(all, opts.TierRank),
		Self:   tierRows(self, opts.TierRank),
		Collab: tierRows(collab, opts.TierRank),
	}
}

func tierRows(g *Grouper[string, CustomerTally], rank TierRank) []models.TierOrderRow {
	rows := Collect(g, func(tier string, t *CustomerTally) models.TierOrderRow {
		return models.TierOrderRow{Tier: tier, OrderStats: t.Stats()}
	})
	SortByTier(rows, rank, tierOf)
	return rows
}

// orderSummary counts ordered customers by distinct group key while the
// total is a row count, so duplicated rosters can report more unordered
// customers than distinct households.
func orderSummary(ds models.Datasets, idx *OrderIndex) models.OrderSummary {
	ordered := make(map[string]struct{})
	var investment, amount float64
	for _, c := range ds.Customers {
		investment += c.InvestmentBalance
		if idx.Has(c.GroupID) {
			ordered[NormalizeKey(c.GroupID)] = struct{}{}
		}
	}
	for _, tx := range ds.Transactions {
		amount += tx.Amount
	}

	total := len(ds.Customers)
	return models.OrderSummary{
		TotalCustomers:         total,
		OrderedCustomers:       len(ordered),
		UnorderedCustomers:     total - len(ordered),
		TotalInvestment:        investment,
		TotalTransactionAmount: amount,
		OrderRate:              OrderRate(len(ordered), total),
	}
}
