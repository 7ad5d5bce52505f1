package analysis

import (
	"strings"

	"advisor-dashboard/internal/models"
)

// UnknownLabel replaces a missing dimension value in grouped output.
const UnknownLabel = "未知"

// NormalizeKey is the join-key normalization shared by every index and
// distinct-customer set.
func NormalizeKey(s string) string {
	return strings.TrimSpace(s)
}

func labelOrUnknown(s string) string {
	if v := strings.TrimSpace(s); v != "" {
		return v
	}
	return UnknownLabel
}

// OrderIndex is the has-ordered index of a transaction set. It is built in
// one pass and answers both the membership test and the attributed order
// amount for a group key.
type OrderIndex struct {
	amounts map[string]float64
}

func NewOrderIndex(txs []models.TransactionRecord) *OrderIndex {
	idx := &OrderIndex{amounts: make(map[string]float64, len(txs))}
	for _, tx := range txs {
		key := NormalizeKey(tx.GroupID)
		if key == "" {
			continue
		}
		idx.amounts[key] += tx.Amount
	}
	return idx
}

func (i *OrderIndex) Has(groupID string) bool {
	key := NormalizeKey(groupID)
	if key == "" {
		return false
	}
	_, ok := i.amounts[key]
	return ok
}

// AmountFor returns the summed transaction amount attributed to groupID, or
// 0 when the group never ordered.
func (i *OrderIndex) AmountFor(groupID string) float64 {
	key := NormalizeKey(groupID)
	if key == "" {
		return 0
	}
	return i.amounts[key]
}

func (i *OrderIndex) Len() int {
	return len(i.amounts)
}
