package analysis

import (
	"strings"

	"advisor-dashboard/internal/models"
)

type Attribution int

const (
	SelfDeveloped Attribution = iota
	Collaborative
)

func (a Attribution) String() string {
	if a == SelfDeveloped {
		return "self"
	}
	return "collab"
}

func (a Attribution) Segment() models.Segment {
	if a == SelfDeveloped {
		return models.SegmentSelf
	}
	return models.SegmentCollab
}

// Classify reports whether the customer was developed by its collaborating
// advisor. Both the id and the name must match; either alone is not enough.
func Classify(c models.CustomerRecord) Attribution {
	sameID := strings.TrimSpace(c.DirectAdvisorID) == strings.TrimSpace(c.CollabAdvisorID)
	sameName := strings.TrimSpace(c.DirectAdvisorName) == strings.TrimSpace(c.CollabAdvisorName)
	if sameID && sameName {
		return SelfDeveloped
	}
	return Collaborative
}

// CustomersOf returns the customers whose collaborating advisor is name.
func CustomersOf(customers []models.CustomerRecord, name string) []models.CustomerRecord {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	out := make([]models.CustomerRecord, 0)
	for _, c := range customers {
		if strings.TrimSpace(c.CollabAdvisorName) == name {
			out = append(out, c)
		}
	}
	return out
}

func hasCollabAdvisor(c models.CustomerRecord) bool {
	return strings.TrimSpace(c.CollabAdvisorID) != "" && strings.TrimSpace(c.CollabAdvisorName) != ""
}
