package handlers

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"advisor-dashboard/internal/analysis"
	"advisor-dashboard/internal/errors"
)

const dateLayout = "2006-01-02"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report failures under the query/signal name rather than the Go field.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// OverviewQuery is the transaction filter accepted by the overview views,
// either as URL query parameters or as datastar signals.
type OverviewQuery struct {
	BusinessUnit string `json:"bu" validate:"max=128"`
	Tier         string `json:"tier" validate:"max=64"`
	Product      string `json:"product" validate:"max=256"`
	Project      string `json:"project" validate:"max=256"`
	Advisor      string `json:"advisor" validate:"max=128"`
	MainAdvisor  string `json:"main_advisor" validate:"max=128"`
	Period       string `json:"period" validate:"omitempty,oneof=q1 q2 q3 q4 ytd"`
	Year         string `json:"year" validate:"omitempty,numeric,len=4"`
	From         string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To           string `json:"to" validate:"omitempty,datetime=2006-01-02"`
}

func overviewQueryFrom(values url.Values) OverviewQuery {
	return OverviewQuery{
		BusinessUnit: values.Get("bu"),
		Tier:         values.Get("tier"),
		Product:      values.Get("product"),
		Project:      values.Get("project"),
		Advisor:      values.Get("advisor"),
		MainAdvisor:  values.Get("main_advisor"),
		Period:       values.Get("period"),
		Year:         values.Get("year"),
		From:         values.Get("from"),
		To:           values.Get("to"),
	}
}

// Filter validates q and resolves it into a transaction filter. A period
// is taken within year (the current year when unset); a bare year covers
// the whole year. Explicit from/to bounds override either.
func (q OverviewQuery) Filter(now time.Time) (analysis.TransactionFilter, error) {
	if err := validateStruct(q); err != nil {
		return analysis.TransactionFilter{}, err
	}

	f := analysis.TransactionFilter{
		BusinessUnit: strings.TrimSpace(q.BusinessUnit),
		Tier:         strings.TrimSpace(q.Tier),
		Product:      strings.TrimSpace(q.Product),
		Project:      strings.TrimSpace(q.Project),
		Advisor:      strings.TrimSpace(q.Advisor),
		MainAdvisor:  strings.TrimSpace(q.MainAdvisor),
	}

	year := now.Year()
	if q.Year != "" {
		year, _ = strconv.Atoi(q.Year)
	}

	switch {
	case q.Period != "":
		from, to, err := analysis.PeriodRange(analysis.Period(q.Period), year, now)
		if err != nil {
			return analysis.TransactionFilter{}, errors.ValidationWrap(err, "invalid period")
		}
		f.From, f.To = from, to
	case q.Year != "":
		f.From = analysis.Date{Year: year, Month: 1, Day: 1}
		f.To = analysis.Date{Year: year, Month: 12, Day: 31}
	}

	if q.From != "" {
		t, _ := time.Parse(dateLayout, q.From)
		f.From = analysis.DateOf(t)
	}
	if q.To != "" {
		t, _ := time.Parse(dateLayout, q.To)
		f.To = analysis.DateOf(t)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.String() > f.To.String() {
		return analysis.TransactionFilter{}, errors.Validation("from must not be after to")
	}
	return f, nil
}

// StrategyQuery selects the signing year of the strategy view. "all"
// covers every year. The page keeps it in its own signal so it does not
// clash with the overview year.
type StrategyQuery struct {
	Year string `json:"strategyYear" validate:"omitempty,numeric|eq=all"`
}

func (q StrategyQuery) Resolve(now time.Time) (int, error) {
	if err := validateStruct(q); err != nil {
		return 0, err
	}
	switch q.Year {
	case "":
		return now.Year(), nil
	case "all":
		return 0, nil
	}
	year, err := strconv.Atoi(q.Year)
	if err != nil || year < 1900 || year > 9999 {
		return 0, errors.Validation(fmt.Sprintf("year %q out of range", q.Year))
	}
	return year, nil
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.InternalWrap(err, "query validation failed")
	}

	details := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, fmt.Sprintf("%s: failed %q", fe.Field(), fe.Tag()))
	}
	return errors.ValidationWrap(err, "invalid query parameters").WithDetails(strings.Join(details, "; "))
}

func validateAdvisorName(name string) error {
	if err := validate.Var(strings.TrimSpace(name), "required,max=128"); err != nil {
		return errors.ValidationWrap(err, "advisor name must be 1-128 characters")
	}
	return nil
}
