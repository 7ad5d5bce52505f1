// Package ingest turns uploaded spreadsheet exports into typed records.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"advisor-dashboard/internal/models"
)

var ErrEmptyFile = errors.New("file has no header row")

// Column labels of the source exports.
const (
	colGroupID = "集团号"

	colTier            = "客户等级名称"
	colBusinessUnit    = "客户当前所属BU"
	colAmount          = "认申购金额人民币"
	colMainAdvisorID   = "主理财师工号"
	colMainAdvisorName = "主理财师姓名"
	colSignedAt        = "订单签约时间"
	colProductName     = "支线产品名称"
	colProjectName     = "项目名称"
	colAdvisorName     = "理财师"
	colAdvisorID       = "理财师工号"
	colProductCode     = "产品代码"

	colInvestment        = "客户正行产品存量(人民币,不含雪球)"
	colDirectAdvisorID   = "国内理财师工号"
	colDirectAdvisorName = "国内理财师"
	colInjured           = "是否受伤客户"
	colMaskedName        = "客户姓名(遮蔽)"
	colFutureTier        = "未来会员等级"
	colCollabAdvisorName = "正行协作理财师"
	colCollabAdvisorID   = "正行协作理财师工号"
	colWealthCenter      = "所属财富中心"

	colStrategyProduct = "产品名称"
	colMajorStrategy   = "大类策略"
	colDetailStrategy  = "细分策略"
	colIsQD            = "是否QD"
)

// RequiredColumns lists the headers an upload of each kind must carry.
var RequiredColumns = map[models.DatasetKind][]string{
	models.KindTransactions: {
		colGroupID, colTier, colBusinessUnit, colAmount, colMainAdvisorID, colMainAdvisorName,
		colSignedAt, colProductName, colProjectName, colAdvisorName, colAdvisorID,
	},
	models.KindCustomers: {
		colGroupID, colInvestment, colDirectAdvisorID, colDirectAdvisorName, colInjured,
		colMaskedName, colFutureTier, colCollabAdvisorName, colCollabAdvisorID, colWealthCenter,
	},
	models.KindStrategies: {
		colProjectName, colStrategyProduct, colProductCode, colMajorStrategy, colDetailStrategy, colIsQD,
	},
}

type MissingColumnsError struct {
	Kind    models.DatasetKind
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s file is missing required columns: %s", e.Kind, strings.Join(e.Missing, ", "))
}

// Report describes what a parse kept and dropped.
type Report struct {
	Rows       int `json:"rows"`
	Skipped    int `json:"skipped"`
	DateErrors int `json:"date_errors"`
	// NegativeAmounts counts amounts below zero that were stored as 0.
	NegativeAmounts int `json:"negative_amounts"`
}

func (r *Report) clamp(amount *float64) {
	var negative bool
	if *amount, negative = NonNegative(*amount); negative {
		r.NegativeAmounts++
	}
}

// Result holds the records of one parsed file. Only the slice matching Kind
// is set.
type Result struct {
	Kind         models.DatasetKind
	Transactions []models.TransactionRecord
	Customers    []models.CustomerRecord
	Strategies   []models.StrategyMapping
	Report       Report
}

func (r *Result) Len() int {
	switch r.Kind {
	case models.KindTransactions:
		return len(r.Transactions)
	case models.KindCustomers:
		return len(r.Customers)
	case models.KindStrategies:
		return len(r.Strategies)
	}
	return 0
}

// ParseFile opens path and parses it as kind.
func ParseFile(kind models.DatasetKind, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(kind, path, f)
}

// Parse reads r as a file of the given kind. filename only selects the
// format. Blank rows are skipped; the header check fails the whole file.
func Parse(kind models.DatasetKind, filename string, r io.Reader) (*Result, error) {
	required, ok := RequiredColumns[kind]
	if !ok {
		return nil, fmt.Errorf("unknown dataset kind %q", kind)
	}
	format, err := FormatOf(filename)
	if err != nil {
		return nil, err
	}

	t, err := readTable(r, format)
	if err != nil {
		return nil, err
	}
	cols := columnsOf(t.header)
	if missing := cols.missing(required); len(missing) > 0 {
		return nil, &MissingColumnsError{Kind: kind, Missing: missing}
	}

	res := &Result{Kind: kind}
	for _, row := range t.rows {
		if blank(row) {
			res.Report.Skipped++
			continue
		}
		switch kind {
		case models.KindTransactions:
			tx, dated := transactionFrom(cols, row)
			if !dated {
				res.Report.DateErrors++
			}
			res.Report.clamp(&tx.Amount)
			res.Transactions = append(res.Transactions, tx)
		case models.KindCustomers:
			c := customerFrom(cols, row)
			res.Report.clamp(&c.InvestmentBalance)
			res.Customers = append(res.Customers, c)
		case models.KindStrategies:
			res.Strategies = append(res.Strategies, strategyFrom(cols, row))
		}
		res.Report.Rows++
	}
	return res, nil
}

func transactionFrom(cols columns, row []string) (models.TransactionRecord, bool) {
	tx := models.TransactionRecord{
		GroupID:         cols.get(row, colGroupID),
		Amount:          ParseAmount(cols.get(row, colAmount)),
		AdvisorID:       cols.get(row, colAdvisorID),
		AdvisorName:     cols.get(row, colAdvisorName),
		MainAdvisorID:   cols.get(row, colMainAdvisorID),
		MainAdvisorName: cols.get(row, colMainAdvisorName),
		CustomerTier:    cols.get(row, colTier),
		BusinessUnit:    cols.get(row, colBusinessUnit),
		ProductName:     cols.get(row, colProductName),
		ProjectName:     cols.get(row, colProjectName),
		ProductCode:     cols.get(row, colProductCode),
		SignedDate:      cols.get(row, colSignedAt),
	}

	signed, ok := ParseDate(tx.SignedDate)
	if !ok {
		return tx, false
	}
	tx.SignedDate = signed.Format("2006-01-02")
	tx.SignedYear = signed.Year()
	tx.SignedMonth = int(signed.Month())
	tx.SignedDay = signed.Day()
	return tx, true
}

func customerFrom(cols columns, row []string) models.CustomerRecord {
	return models.CustomerRecord{
		GroupID:            cols.get(row, colGroupID),
		DirectAdvisorID:    cols.get(row, colDirectAdvisorID),
		DirectAdvisorName:  cols.get(row, colDirectAdvisorName),
		CollabAdvisorID:    cols.get(row, colCollabAdvisorID),
		CollabAdvisorName:  cols.get(row, colCollabAdvisorName),
		FutureTier:         cols.get(row, colFutureTier),
		InvestmentBalance:  ParseAmount(cols.get(row, colInvestment)),
		WealthCenter:       cols.get(row, colWealthCenter),
		MaskedCustomerName: cols.get(row, colMaskedName),
		Injured:            cols.get(row, colInjured),
	}
}

func strategyFrom(cols columns, row []string) models.StrategyMapping {
	return models.StrategyMapping{
		ProjectName:    cols.get(row, colProjectName),
		ProductName:    cols.get(row, colStrategyProduct),
		ProductCode:    cols.get(row, colProductCode),
		MajorStrategy:  cols.get(row, colMajorStrategy),
		DetailStrategy: cols.get(row, colDetailStrategy),
		IsQD:           cols.get(row, colIsQD),
	}
}
