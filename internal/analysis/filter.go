package analysis

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"advisor-dashboard/internal/models"
)

// Date is a calendar day as carried by the signed year/month/day fields.
type Date struct {
	Year, Month, Day int
}

func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) ordinal() int { return d.Year*10000 + d.Month*100 + d.Day }

func (d Date) String() string { return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day) }

// TransactionFilter narrows a transaction set. Empty fields do not
// constrain; all set fields must hold.
type TransactionFilter struct {
	BusinessUnit string
	Tier         string
	Product      string
	Project      string
	Advisor      string
	MainAdvisor  string
	From         Date
	To           Date
}

func (f TransactionFilter) IsZero() bool { return f == TransactionFilter{} }

// AdvisorLabel is the display label used to select an advisor: "name(id)"
// when both are known.
func AdvisorLabel(name, id string) string {
	name, id = strings.TrimSpace(name), strings.TrimSpace(id)
	if name != "" && id != "" {
		return fmt.Sprintf("%s(%s)", name, id)
	}
	if name != "" {
		return name
	}
	return id
}

func (f TransactionFilter) Match(tx models.TransactionRecord) bool {
	if !f.From.IsZero() || !f.To.IsZero() {
		if tx.SignedYear == 0 || tx.SignedMonth == 0 || tx.SignedDay == 0 {
			return false
		}
		d := Date{tx.SignedYear, tx.SignedMonth, tx.SignedDay}.ordinal()
		if !f.From.IsZero() && d < f.From.ordinal() {
			return false
		}
		if !f.To.IsZero() && d > f.To.ordinal() {
			return false
		}
	}
	if f.BusinessUnit != "" && tx.BusinessUnit != f.BusinessUnit {
		return false
	}
	if f.Tier != "" && tx.CustomerTier != f.Tier {
		return false
	}
	if f.Product != "" && tx.ProductName != f.Product {
		return false
	}
	if f.Project != "" && tx.ProjectName != f.Project {
		return false
	}
	if f.Advisor != "" && AdvisorLabel(tx.AdvisorName, tx.AdvisorID) != f.Advisor {
		return false
	}
	if f.MainAdvisor != "" && AdvisorLabel(tx.MainAdvisorName, tx.MainAdvisorID) != f.MainAdvisor {
		return false
	}
	return true
}

// Apply returns the matching transactions in a new slice. txs is not
// modified; a zero filter returns a copy.
func (f TransactionFilter) Apply(txs []models.TransactionRecord) []models.TransactionRecord {
	out := make([]models.TransactionRecord, 0, len(txs))
	for _, tx := range txs {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	return out
}

type Period string

const (
	PeriodQ1  Period = "q1"
	PeriodQ2  Period = "q2"
	PeriodQ3  Period = "q3"
	PeriodQ4  Period = "q4"
	PeriodYTD Period = "ytd"
)

// PeriodRange resolves a reporting period of year into an inclusive date
// range. The business periods are uneven: Jan-Apr, May-Jun, Jul-Aug and
// Sep-Dec.
func PeriodRange(p Period, year int, today time.Time) (Date, Date, error) {
	switch p {
	case PeriodQ1:
		return Date{year, 1, 1}, Date{year, 4, 30}, nil
	case PeriodQ2:
		return Date{year, 5, 1}, Date{year, 6, 30}, nil
	case PeriodQ3:
		return Date{year, 7, 1}, Date{year, 8, 31}, nil
	case PeriodQ4:
		return Date{year, 9, 1}, Date{year, 12, 31}, nil
	case PeriodYTD:
		end := DateOf(today)
		end.Year = year
		return Date{year, 1, 1}, end, nil
	}
	return Date{}, Date{}, fmt.Errorf("unknown period %q", p)
}

// FilterOptionsOf lists the distinct values each filter can take, sorted.
func FilterOptionsOf(txs []models.TransactionRecord) models.FilterOptions {
	collect := func(value func(models.TransactionRecord) string) []string {
		seen := make(map[string]struct{})
		out := make([]string, 0)
		for _, tx := range txs {
			v := value(tx)
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
		slices.Sort(out)
		return out
	}

	return models.FilterOptions{
		BusinessUnits: collect(func(tx models.TransactionRecord) string { return tx.BusinessUnit }),
		Tiers:         collect(func(tx models.TransactionRecord) string { return tx.CustomerTier }),
		Products:      collect(func(tx models.TransactionRecord) string { return tx.ProductName }),
		Projects:      collect(func(tx models.TransactionRecord) string { return tx.ProjectName }),
		Advisors: collect(func(tx models.TransactionRecord) string {
			return AdvisorLabel(tx.AdvisorName, tx.AdvisorID)
		}),
		MainAdvisors: collect(func(tx models.TransactionRecord) string {
			return AdvisorLabel(tx.MainAdvisorName, tx.MainAdvisorID)
		}),
	}
}
