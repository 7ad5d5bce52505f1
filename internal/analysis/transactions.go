package analysis

import (
	"cmp"
	"fmt"
	"slices"

	"advisor-dashboard/internal/models"
)

type Dimension string

const (
	DimTier         Dimension = "tier"
	DimBusinessUnit Dimension = "bu"
	DimProduct      Dimension = "product"
	DimProject      Dimension = "project"
	DimAdvisor      Dimension = "advisor"
	DimMainAdvisor  Dimension = "main_advisor"
)

var Dimensions = []Dimension{DimAdvisor, DimMainAdvisor, DimTier, DimBusinessUnit, DimProduct, DimProject}

func (d Dimension) Valid() bool {
	return slices.Contains(Dimensions, d)
}

type dimensionKey struct {
	key, id, name string
}

// keyOf extracts the grouping key of tx for d. Advisor rows need an advisor
// id; main-advisor rows need an id or a name and prefer the id.
func (d Dimension) keyOf(tx models.TransactionRecord) (dimensionKey, bool) {
	switch d {
	case DimAdvisor:
		id := NormalizeKey(tx.AdvisorID)
		if id == "" {
			return dimensionKey{}, false
		}
		return dimensionKey{key: id, id: id, name: NormalizeKey(tx.AdvisorName)}, true
	case DimMainAdvisor:
		id, name := NormalizeKey(tx.MainAdvisorID), NormalizeKey(tx.MainAdvisorName)
		if id == "" && name == "" {
			return dimensionKey{}, false
		}
		key := id
		if key == "" {
			key = name
		}
		return dimensionKey{key: key, id: id, name: name}, true
	case DimTier:
		l := labelOrUnknown(tx.CustomerTier)
		return dimensionKey{key: l, name: l}, true
	case DimBusinessUnit:
		l := labelOrUnknown(tx.BusinessUnit)
		return dimensionKey{key: l, name: l}, true
	case DimProduct:
		l := labelOrUnknown(tx.ProductName)
		return dimensionKey{key: l, name: l}, true
	case DimProject:
		l := labelOrUnknown(tx.ProjectName)
		return dimensionKey{key: l, name: l}, true
	}
	return dimensionKey{}, false
}

// ByDimension groups transactions along d, sorted by total amount
// descending. Rows tied on amount keep discovery order.
func ByDimension(txs []models.TransactionRecord, d Dimension) []models.GroupTotal {
	if len(txs) == 0 {
		return []models.GroupTotal{}
	}

	var grand float64
	g := NewGrouper(func(k string) *AmountTally { return newAmountTally(k) })
	for _, tx := range txs {
		grand += tx.Amount
		dk, ok := d.keyOf(tx)
		if !ok {
			continue
		}
		acc := g.At(dk.key)
		if acc.Count == 0 {
			acc.ID, acc.Name = dk.id, dk.name
		}
		acc.Add(tx)
	}

	rows := Collect(g, func(_ string, t *AmountTally) models.GroupTotal {
		return models.GroupTotal{
			Dimension:             string(d),
			Key:                   t.Key,
			ID:                    t.ID,
			Name:                  t.Name,
			TransactionCount:      t.Count,
			CustomerCount:         t.Customers(),
			TotalAmount:           t.Total,
			AmountShare:           Percent(t.Total, grand),
			AveragePerTransaction: AveragePerTransaction(t.Total, t.Count),
			AveragePerCustomer:    AveragePerCustomer(t.Total, t.Customers()),
		}
	})
	sortByAmountDesc(rows)
	return rows
}

type timeTally struct {
	count int
	total float64
}

// ByTime buckets transactions by signing year and by year-month. Records
// without a year or a month are left out of both series.
func ByTime(txs []models.TransactionRecord) models.TimeSeries {
	type ym struct{ year, month int }

	dated := func(tx models.TransactionRecord) bool { return tx.SignedYear > 0 && tx.SignedMonth > 0 }
	newTally := func(int) *timeTally { return &timeTally{} }
	add := func(t *timeTally, tx models.TransactionRecord) {
		t.count++
		t.total += tx.Amount
	}

	years := Fold(txs, func(tx models.TransactionRecord) (int, bool) {
		return tx.SignedYear, dated(tx)
	}, newTally, add)
	months := Fold(txs, func(tx models.TransactionRecord) (ym, bool) {
		return ym{tx.SignedYear, tx.SignedMonth}, dated(tx)
	}, func(ym) *timeTally { return &timeTally{} }, add)

	out := models.TimeSeries{
		ByYear: Collect(years, func(y int, t *timeTally) models.YearBucket {
			return models.YearBucket{Year: y, TransactionCount: t.count, TotalAmount: t.total}
		}),
		ByMonth: Collect(months, func(k ym, t *timeTally) models.MonthBucket {
			return models.MonthBucket{
				Period:           fmt.Sprintf("%d-%02d", k.year, k.month),
				Year:             k.year,
				Month:            k.month,
				TransactionCount: t.count,
				TotalAmount:      t.total,
			}
		}),
	}
	slices.SortFunc(out.ByYear, func(a, b models.YearBucket) int { return cmp.Compare(a.Year, b.Year) })
	slices.SortFunc(out.ByMonth, func(a, b models.MonthBucket) int {
		if c := cmp.Compare(a.Year, b.Year); c != 0 {
			return c
		}
		return cmp.Compare(a.Month, b.Month)
	})
	return out
}

type mainAdvisorTally struct {
	id, name string
	amount   float64
}

type advisorMappingTally struct {
	id, name string
	total    float64
	mains    *Grouper[string, mainAdvisorTally]
}

// AdvisorMainAdvisorMapping pairs each advisor with the main advisors on
// its transactions. Percentages are shares of the advisor's own total, so
// they close to 100 within each advisor.
func AdvisorMainAdvisorMapping(txs []models.TransactionRecord) []models.AdvisorMapping {
	advisors := NewGrouper(func(string) *advisorMappingTally {
		return &advisorMappingTally{
			mains: NewGrouper(func(string) *mainAdvisorTally { return &mainAdvisorTally{} }),
		}
	})

	for _, tx := range txs {
		id, name := NormalizeKey(tx.AdvisorID), NormalizeKey(tx.AdvisorName)
		if id == "" && name == "" {
			continue
		}
		key := cmp.Or(id, name)
		adv := advisors.At(key)
		if adv.id == "" && adv.name == "" {
			adv.id, adv.name = id, name
		}
		adv.total += tx.Amount

		mainID, mainName := NormalizeKey(tx.MainAdvisorID), NormalizeKey(tx.MainAdvisorName)
		main := adv.mains.At(cmp.Or(mainID, mainName, UnknownLabel))
		if main.id == "" && main.name == "" {
			main.id, main.name = mainID, mainName
		}
		main.amount += tx.Amount
	}

	out := make([]models.AdvisorMapping, 0)
	advisors.Each(func(_ string, adv *advisorMappingTally) {
		advisorName := cmp.Or(adv.name, adv.id, UnknownLabel)
		adv.mains.Each(func(_ string, m *mainAdvisorTally) {
			out = append(out, models.AdvisorMapping{
				AdvisorName:     advisorName,
				MainAdvisorName: cmp.Or(m.name, m.id, UnknownLabel),
				Amount:          m.amount,
				Percentage:      Percent(m.amount, adv.total),
			})
		})
	})
	sortMappings(out)
	return out
}

// Summarize returns the headline numbers of a transaction set, or nil when
// the set is empty.
func Summarize(txs []models.TransactionRecord) *models.DataSummary {
	if len(txs) == 0 {
		return nil
	}

	customers := make(map[string]struct{})
	products := make(map[string]struct{})
	var total float64
	for _, tx := range txs {
		total += tx.Amount
		if id := NormalizeKey(tx.GroupID); id != "" {
			customers[id] = struct{}{}
		}
		if p := NormalizeKey(tx.ProductName); p != "" {
			products[p] = struct{}{}
		}
	}

	return &models.DataSummary{
		TotalAmount:      total,
		TransactionCount: len(txs),
		CustomerCount:    len(customers),
		AdvisorCount:     len(ByDimension(txs, DimAdvisor)),
		ProductCount:     len(products),
	}
}

// ByTierRank is the tier dimension in tier-table order instead of by
// amount.
func ByTierRank(txs []models.TransactionRecord, rank TierRank) []models.GroupTotal {
	rows := ByDimension(txs, DimTier)
	SortByTier(rows, rank, func(r models.GroupTotal) string { return r.Key })
	return rows
}

// BuildOverview runs every transaction view over txs. It returns nil for an
// empty set.
func BuildOverview(txs []models.TransactionRecord, rank TierRank) *models.Overview {
	summary := Summarize(txs)
	if summary == nil {
		return nil
	}
	tiers := ByDimension(txs, DimTier)
	byRank := slices.Clone(tiers)
	SortByTier(byRank, rank, func(r models.GroupTotal) string { return r.Key })

	return &models.Overview{
		Summary:        *summary,
		Advisors:       ByDimension(txs, DimAdvisor),
		MainAdvisors:   ByDimension(txs, DimMainAdvisor),
		Tiers:          tiers,
		TiersByRank:    byRank,
		BusinessUnits:  ByDimension(txs, DimBusinessUnit),
		Products:       ByDimension(txs, DimProduct),
		Projects:       ByDimension(txs, DimProject),
		Time:           ByTime(txs),
		AdvisorMapping: AdvisorMainAdvisorMapping(txs),
	}
}
