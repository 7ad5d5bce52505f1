package analysis

import "advisor-dashboard/internal/models"

// Grouper folds records into per-key accumulators. Keys remember the order
// in which they were first seen so that equal-ranked rows keep a
// deterministic order after a stable sort.
type Grouper[K comparable, A any] struct {
	init  func(K) *A
	index map[K]*A
	order []K
}

func NewGrouper[K comparable, A any](init func(K) *A) *Grouper[K, A] {
	return &Grouper[K, A]{
		init:  init,
		index: make(map[K]*A),
	}
}

// At returns the accumulator for key, creating it on first use.
func (g *Grouper[K, A]) At(key K) *A {
	if acc, ok := g.index[key]; ok {
		return acc
	}
	acc := g.init(key)
	g.index[key] = acc
	g.order = append(g.order, key)
	return acc
}

func (g *Grouper[K, A]) Lookup(key K) (*A, bool) {
	acc, ok := g.index[key]
	return acc, ok
}

func (g *Grouper[K, A]) Len() int {
	return len(g.order)
}

func (g *Grouper[K, A]) Keys() []K {
	keys := make([]K, len(g.order))
	copy(keys, g.order)
	return keys
}

// Each visits accumulators in discovery order.
func (g *Grouper[K, A]) Each(fn func(K, *A)) {
	for _, k := range g.order {
		fn(k, g.index[k])
	}
}

// Fold runs one pass over records. Records for which key reports false are
// skipped.
func Fold[R any, K comparable, A any](records []R, key func(R) (K, bool), init func(K) *A, update func(*A, R)) *Grouper[K, A] {
	g := NewGrouper(init)
	for _, r := range records {
		k, ok := key(r)
		if !ok {
			continue
		}
		update(g.At(k), r)
	}
	return g
}

// Collect materialises a grouper into rows, in discovery order.
func Collect[K comparable, A any, T any](g *Grouper[K, A], fn func(K, *A) T) []T {
	out := make([]T, 0, g.Len())
	g.Each(func(k K, acc *A) {
		out = append(out, fn(k, acc))
	})
	return out
}

// AmountTally accumulates transactions for one group.
type AmountTally struct {
	Key       string
	ID        string
	Name      string
	Count     int
	Total     float64
	customers map[string]struct{}
}

func newAmountTally(key string) *AmountTally {
	return &AmountTally{Key: key, customers: make(map[string]struct{})}
}

func (t *AmountTally) Add(tx models.TransactionRecord) {
	t.Count++
	t.Total += tx.Amount
	if id := NormalizeKey(tx.GroupID); id != "" {
		t.customers[id] = struct{}{}
	}
}

// Customers is the number of distinct group keys seen.
func (t *AmountTally) Customers() int {
	return len(t.customers)
}

// CustomerTally is the customer-keyed aggregate of the order views. Counts
// are per customer row.
type CustomerTally struct {
	Customers         int
	Ordered           int
	Unordered         int
	Investment        float64
	TransactionAmount float64
}

func newCustomerTally[K any](K) *CustomerTally {
	return &CustomerTally{}
}

func (t *CustomerTally) Add(c models.CustomerRecord, idx *OrderIndex) {
	t.Customers++
	t.Investment += c.InvestmentBalance
	if idx.Has(c.GroupID) {
		t.Ordered++
		t.TransactionAmount += idx.AmountFor(c.GroupID)
		return
	}
	t.Unordered++
}

func (t *CustomerTally) Stats() models.OrderStats {
	return models.OrderStats{
		CustomerCount:          t.Customers,
		OrderedCount:           t.Ordered,
		UnorderedCount:         t.Unordered,
		TotalInvestment:        t.Investment,
		TotalTransactionAmount: t.TransactionAmount,
		OrderRate:              OrderRate(t.Ordered, t.Customers),
	}
}

// AttributionTally splits customers and investment by attribution.
type AttributionTally struct {
	Self             int
	Collab           int
	SelfInvestment   float64
	CollabInvestment float64
}

func (t *AttributionTally) Add(a Attribution, investment float64) {
	if a == SelfDeveloped {
		t.Self++
		t.SelfInvestment += investment
		return
	}
	t.Collab++
	t.CollabInvestment += investment
}

func (t *AttributionTally) Split() models.AttributionSplit {
	return models.AttributionSplit{
		SelfCount:        t.Self,
		CollabCount:      t.Collab,
		SelfInvestment:   t.SelfInvestment,
		CollabInvestment: t.CollabInvestment,
	}
}
