package analysis

import (
	"cmp"
	"slices"
	"strings"

	"advisor-dashboard/internal/models"
)

type advisorKey struct {
	name, id string
}

type portfolioAdvisorTally struct {
	customers  int
	investment float64
	split      AttributionTally
	tiers      *Grouper[string, AttributionTally]
}

type portfolioTierTally struct {
	customers  int
	investment float64
	split      AttributionTally
}

// CustomerPortfolio summarises the customer roster by collaborating
// advisor, by tier and by attribution. Customers without a collaborating
// advisor name are left out of the advisor rows only. Returns nil for an
// empty roster.
func CustomerPortfolio(customers []models.CustomerRecord, opts Options) *models.CustomerPortfolio {
	if len(customers) == 0 {
		return nil
	}

	advisors := NewGrouper(func(advisorKey) *portfolioAdvisorTally {
		return &portfolioAdvisorTally{
			tiers: NewGrouper(func(string) *AttributionTally { return &AttributionTally{} }),
		}
	})
	tiers := NewGrouper(func(string) *portfolioTierTally { return &portfolioTierTally{} })
	var overall AttributionTally
	var totalInvestment float64

	for _, c := range customers {
		attr := Classify(c)
		tier := labelOrUnknown(c.FutureTier)
		inv := c.InvestmentBalance
		totalInvestment += inv
		overall.Add(attr, inv)

		t := tiers.At(tier)
		t.customers++
		t.investment += inv
		t.split.Add(attr, inv)

		name := strings.TrimSpace(c.CollabAdvisorName)
		if name == "" || opts.excluded(name) {
			continue
		}
		a := advisors.At(advisorKey{name: name, id: strings.TrimSpace(c.CollabAdvisorID)})
		a.customers++
		a.investment += inv
		a.split.Add(attr, inv)
		a.tiers.At(tier).Add(attr, inv)
	}

	advisorRows := Collect(advisors, func(k advisorKey, a *portfolioAdvisorTally) models.PortfolioAdvisorRow {
		tierSplits := Collect(a.tiers, func(tier string, s *AttributionTally) models.TierSplit {
			return models.TierSplit{Tier: tier, AttributionSplit: s.Split()}
		})
		SortByTier(tierSplits, opts.TierRank, func(s models.TierSplit) string { return s.Tier })
		return models.PortfolioAdvisorRow{
			AdvisorName:      k.name,
			AdvisorID:        k.id,
			CustomerCount:    a.customers,
			TotalInvestment:  a.investment,
			Tiers:            tierSplits,
			AttributionSplit: a.split.Split(),
		}
	})
	slices.SortStableFunc(advisorRows, func(a, b models.PortfolioAdvisorRow) int {
		return cmp.Compare(b.TotalInvestment, a.TotalInvestment)
	})

	tierRows := Collect(tiers, func(tier string, t *portfolioTierTally) models.PortfolioTierRow {
		return models.PortfolioTierRow{
			Tier:             tier,
			CustomerCount:    t.customers,
			TotalInvestment:  t.investment,
			AttributionSplit: t.split.Split(),
		}
	})
	SortByTier(tierRows, opts.TierRank, func(r models.PortfolioTierRow) string { return r.Tier })

	total := len(customers)
	return &models.CustomerPortfolio{
		Advisors: advisorRows,
		Tiers:    tierRows,
		Collaboration: []models.CollaborationShare{
			{
				Attribution:     SelfDeveloped.String(),
				CustomerCount:   overall.Self,
				TotalInvestment: overall.SelfInvestment,
				CustomerShare:   Percent(float64(overall.Self), float64(total)),
				InvestmentShare: Percent(overall.SelfInvestment, totalInvestment),
			},
			{
				Attribution:     Collaborative.String(),
				CustomerCount:   overall.Collab,
				TotalInvestment: overall.CollabInvestment,
				CustomerShare:   Percent(float64(overall.Collab), float64(total)),
				InvestmentShare: Percent(overall.CollabInvestment, totalInvestment),
			},
		},
		Summary: models.PortfolioSummary{
			TotalCustomers:   total,
			TotalInvestment:  totalInvestment,
			SelfCustomers:    overall.Self,
			CollabCustomers:  overall.Collab,
			SelfInvestment:   overall.SelfInvestment,
			CollabInvestment: overall.CollabInvestment,
		},
	}
}
