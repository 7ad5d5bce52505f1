package analysis

import "advisor-dashboard/internal/models"

// StrategyLookup resolves product codes to strategies. A later mapping for
// the same code replaces an earlier one.
type StrategyLookup map[string]models.StrategyMapping

func NewStrategyLookup(strategies []models.StrategyMapping) StrategyLookup {
	lookup := make(StrategyLookup, len(strategies))
	for _, s := range strategies {
		code := NormalizeKey(s.ProductCode)
		if code == "" {
			continue
		}
		s.MajorStrategy = labelOrUnknown(s.MajorStrategy)
		s.DetailStrategy = labelOrUnknown(s.DetailStrategy)
		s.IsQD = labelOrUnknown(s.IsQD)
		lookup[code] = s
	}
	return lookup
}

func (l StrategyLookup) Match(productCode string) (models.StrategyMapping, bool) {
	code := NormalizeKey(productCode)
	if code == "" {
		return models.StrategyMapping{}, false
	}
	s, ok := l[code]
	return s, ok
}

// StrategyDistribution groups the transactions signed in year by major and
// detail strategy. A year of 0 keeps every transaction. Returns nil when
// either dataset is empty or nothing was signed in year.
func StrategyDistribution(txs []models.TransactionRecord, strategies []models.StrategyMapping, year int) *models.StrategyReport {
	if len(txs) == 0 || len(strategies) == 0 {
		return nil
	}

	lookup := NewStrategyLookup(strategies)
	report := &models.StrategyReport{Year: year}
	major := NewGrouper(func(k string) *AmountTally { return newAmountTally(k) })
	detail := NewGrouper(func(k string) *AmountTally { return newAmountTally(k) })

	for _, tx := range txs {
		if year != 0 && tx.SignedYear != year {
			continue
		}
		report.TransactionCount++
		report.TotalAmount += tx.Amount

		s, ok := lookup.Match(tx.ProductCode)
		if !ok {
			report.UnmatchedCount++
			report.UnmatchedAmount += tx.Amount
			continue
		}
		report.MatchedCount++
		report.MatchedAmount += tx.Amount

		major.At(s.MajorStrategy).Add(tx)
		d := detail.At(s.DetailStrategy)
		if d.Count == 0 {
			d.Name = s.MajorStrategy
		}
		d.Add(tx)
	}

	if report.TransactionCount == 0 {
		return nil
	}
	report.MatchRate = MatchRate(report.MatchedCount, report.TransactionCount)

	toRow := func(k string, t *AmountTally) models.StrategyRow {
		return models.StrategyRow{
			Strategy:         k,
			MajorStrategy:    t.Name,
			TransactionCount: t.Count,
			CustomerCount:    t.Customers(),
			TotalAmount:      t.Total,
		}
	}
	report.Major = Collect(major, toRow)
	report.Detail = Collect(detail, toRow)
	sortStrategyRows(report.Major)
	sortStrategyRows(report.Detail)
	return report
}
