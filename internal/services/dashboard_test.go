package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"advisor-dashboard/internal/analysis"
	apperrors "advisor-dashboard/internal/errors"
	"advisor-dashboard/internal/models"
	"advisor-dashboard/internal/store"
)

const (
	transactionsCSV = `集团号,客户等级名称,客户当前所属BU,认申购金额人民币,主理财师工号,主理财师姓名,订单签约时间,支线产品名称,项目名称,理财师,理财师工号,产品代码
G1,黄金,BU1,1000,M01,Mona,2025-01-15,P1,J1,Alice,A01,C1
G2,钻石,BU2,500,M01,Mona,2025-02-01,P2,J2,Bob,B01,C2`

	customersCSV = `集团号,"客户正行产品存量(人民币,不含雪球)",国内理财师工号,国内理财师,是否受伤客户,客户姓名(遮蔽),未来会员等级,正行协作理财师,正行协作理财师工号,所属财富中心
G1,5000,A01,Alice,否,张*,黄金,Alice,A01,深圳
G3,8000,B01,Bob,否,李*,钻石,Alice,A01,深圳`

	strategiesCSV = `项目名称,产品名称,产品代码,大类策略,细分策略,是否QD
J1,P1,C1,权益,主观多头,否`
)

func newTestDashboard(t *testing.T, snap store.Snapshotter) *Dashboard {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDashboard(store.New(), snap, analysis.DefaultOptions(), logger)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testDatasets() models.Datasets {
	return models.Datasets{
		Transactions: []models.TransactionRecord{
			{GroupID: "G1", Amount: 1000, AdvisorID: "A01", AdvisorName: "Alice", BusinessUnit: "BU1", ProductCode: "C1", SignedYear: 2025, SignedMonth: 1, SignedDay: 15},
			{GroupID: "G2", Amount: 500, AdvisorID: "B01", AdvisorName: "Bob", BusinessUnit: "BU2", ProductCode: "C2", SignedYear: 2025, SignedMonth: 2, SignedDay: 1},
		},
		Customers: []models.CustomerRecord{
			{GroupID: "G1", DirectAdvisorID: "A01", DirectAdvisorName: "Alice", CollabAdvisorID: "A01", CollabAdvisorName: "Alice", FutureTier: "黄金", InvestmentBalance: 5000},
			{GroupID: "G3", DirectAdvisorID: "B01", DirectAdvisorName: "Bob", CollabAdvisorID: "A01", CollabAdvisorName: "Alice", FutureTier: "钻石", InvestmentBalance: 8000},
		},
		Strategies: []models.StrategyMapping{
			{ProductCode: "C1", MajorStrategy: "权益", DetailStrategy: "主观多头"},
		},
	}
}

func wantCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error = %v, want AppError with code %s", err, code)
	}
	if appErr.Code != code {
		t.Errorf("error code = %s, want %s", appErr.Code, code)
	}
}

func TestNewDashboard(t *testing.T) {
	d := NewDashboard(nil, nil, analysis.DefaultOptions(), nil)
	if d == nil {
		t.Fatal("NewDashboard() returned nil")
	}
	if d.precomputed == nil {
		t.Error("precomputed should be initialized")
	}
	if d.logger == nil || d.store == nil || d.snapshotter == nil {
		t.Error("defaults should be filled in")
	}
}

func TestDashboard_EmptyViews(t *testing.T) {
	d := newTestDashboard(t, nil)
	ctx := context.Background()

	_, err := d.Overview(ctx, analysis.TransactionFilter{})
	wantCode(t, err, apperrors.CodeInsufficientData)

	_, err = d.OrderStatus(ctx)
	wantCode(t, err, apperrors.CodeInsufficientData)

	_, err = d.CustomerPortfolio(ctx)
	wantCode(t, err, apperrors.CodeInsufficientData)

	_, err = d.StrategyDistribution(ctx, 2025)
	wantCode(t, err, apperrors.CodeInsufficientData)

	if opts := d.FilterOptions(); len(opts.Advisors) != 0 {
		t.Errorf("FilterOptions() on empty dashboard = %v", opts.Advisors)
	}
}

func TestDashboard_SetDataViews(t *testing.T) {
	d := newTestDashboard(t, nil)
	d.SetData(testDatasets())
	ctx := context.Background()

	overview, err := d.Overview(ctx, analysis.TransactionFilter{})
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	if overview.Summary.TotalAmount != 1500 {
		t.Errorf("TotalAmount = %v, want 1500", overview.Summary.TotalAmount)
	}
	if d.cached().Overview != overview {
		t.Error("unfiltered overview should come from the precomputed views")
	}

	filtered, err := d.Overview(ctx, analysis.TransactionFilter{BusinessUnit: "BU2"})
	if err != nil {
		t.Fatalf("Overview(filter) error = %v", err)
	}
	if filtered.Summary.TransactionCount != 1 || filtered.Summary.TotalAmount != 500 {
		t.Errorf("filtered summary = %+v", filtered.Summary)
	}

	_, err = d.Overview(ctx, analysis.TransactionFilter{BusinessUnit: "nowhere"})
	wantCode(t, err, apperrors.CodeInsufficientData)

	orders, err := d.OrderStatus(ctx)
	if err != nil {
		t.Fatalf("OrderStatus() error = %v", err)
	}
	if len(orders.Advisors) != 3 {
		t.Fatalf("OrderStatus() advisors = %d rows, want 3", len(orders.Advisors))
	}
	if total := orders.Advisors[0]; total.CustomerCount != 2 || total.OrderedCount != 1 {
		t.Errorf("Alice total row = %+v", total.OrderStats)
	}

	detail, err := d.AdvisorDetail(ctx, "Alice")
	if err != nil {
		t.Fatalf("AdvisorDetail() error = %v", err)
	}
	if len(detail.CollabByCounterpart) != 1 || detail.CollabByCounterpart[0].DirectAdvisorName != "Bob" {
		t.Errorf("counterparts = %+v", detail.CollabByCounterpart)
	}

	portfolio, err := d.CustomerPortfolio(ctx)
	if err != nil {
		t.Fatalf("CustomerPortfolio() error = %v", err)
	}
	if portfolio.Summary.TotalInvestment != 13000 {
		t.Errorf("TotalInvestment = %v, want 13000", portfolio.Summary.TotalInvestment)
	}

	strategy, err := d.StrategyDistribution(ctx, 2025)
	if err != nil {
		t.Fatalf("StrategyDistribution() error = %v", err)
	}
	if strategy.MatchedCount != 1 || strategy.UnmatchedCount != 1 {
		t.Errorf("strategy match = %d/%d", strategy.MatchedCount, strategy.UnmatchedCount)
	}

	if got := d.FilterOptions().BusinessUnits; len(got) != 2 {
		t.Errorf("BusinessUnits = %v", got)
	}
}

func TestDashboard_Upload(t *testing.T) {
	d := newTestDashboard(t, nil)
	ctx := context.Background()

	res, err := d.Upload(ctx, models.KindTransactions, "orders.csv", strings.NewReader(transactionsCSV))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.Dataset.Records != 2 || res.Report.Rows != 2 {
		t.Errorf("Upload() result = %+v", res)
	}
	if res.Dataset.Version == "" {
		t.Error("upload should stamp a version")
	}

	if _, err := d.Overview(ctx, analysis.TransactionFilter{}); err != nil {
		t.Errorf("Overview() after upload error = %v", err)
	}
	_, err = d.OrderStatus(ctx)
	wantCode(t, err, apperrors.CodeInsufficientData)

	if _, err := d.Upload(ctx, models.KindCustomers, "roster.csv", strings.NewReader(customersCSV)); err != nil {
		t.Fatalf("Upload(customers) error = %v", err)
	}
	if _, err := d.OrderStatus(ctx); err != nil {
		t.Errorf("OrderStatus() after both uploads error = %v", err)
	}
}

func TestDashboard_UploadErrors(t *testing.T) {
	tests := []struct {
		name     string
		kind     models.DatasetKind
		filename string
		body     string
		code     apperrors.ErrorCode
	}{
		{"unknown kind", "holdings", "a.csv", transactionsCSV, apperrors.CodeNotFound},
		{"unsupported format", models.KindTransactions, "a.pdf", transactionsCSV, apperrors.CodeUnsupported},
		{"missing columns", models.KindCustomers, "a.csv", transactionsCSV, apperrors.CodeValidation},
		{"header only", models.KindStrategies, "a.csv", "项目名称,产品名称,产品代码,大类策略,细分策略,是否QD\n", apperrors.CodeValidation},
		{"empty", models.KindStrategies, "a.csv", "", apperrors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDashboard(t, nil)
			_, err := d.Upload(context.Background(), tt.kind, tt.filename, strings.NewReader(tt.body))
			wantCode(t, err, tt.code)
		})
	}
}

func TestDashboard_FailedUploadKeepsPrevious(t *testing.T) {
	d := newTestDashboard(t, nil)
	d.SetData(testDatasets())

	_, err := d.Upload(context.Background(), models.KindTransactions, "bad.csv", strings.NewReader("集团号\nG9"))
	if err == nil {
		t.Fatal("Upload() with missing columns should fail")
	}
	if n := len(d.store.Snapshot().Transactions); n != 2 {
		t.Errorf("transactions after failed upload = %d, want 2", n)
	}
}

func TestDashboard_LoadFromFiles(t *testing.T) {
	snapPath := filepath.Join(t.TempDir(), "snap.gob")
	d := newTestDashboard(t, store.NewFileSnapshotter(snapPath))

	err := d.LoadFromFiles(context.Background(), SeedFiles{
		Transactions: writeFile(t, "orders.csv", transactionsCSV),
		Customers:    writeFile(t, "roster.csv", customersCSV),
		Strategies:   writeFile(t, "strategy.csv", strategiesCSV),
	})
	if err != nil {
		t.Fatalf("LoadFromFiles() error = %v", err)
	}

	ds := d.store.Snapshot()
	if len(ds.Transactions) != 2 || len(ds.Customers) != 2 || len(ds.Strategies) != 1 {
		t.Errorf("loaded %d/%d/%d records", len(ds.Transactions), len(ds.Customers), len(ds.Strategies))
	}

	restored := newTestDashboard(t, store.NewFileSnapshotter(snapPath))
	if err := restored.Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if _, err := restored.OrderStatus(context.Background()); err != nil {
		t.Errorf("OrderStatus() after restore error = %v", err)
	}
}

func TestDashboard_SeedFilesKeepRestoredDatasets(t *testing.T) {
	snapPath := filepath.Join(t.TempDir(), "snap.gob")
	snap := store.NewFileSnapshotter(snapPath)
	uploaded := models.Datasets{Customers: []models.CustomerRecord{{GroupID: "G9", CollabAdvisorID: "A09", CollabAdvisorName: "Zed"}}}
	if err := snap.Save(context.Background(), uploaded); err != nil {
		t.Fatal(err)
	}

	d := newTestDashboard(t, snap)
	if err := d.Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	err := d.LoadFromFiles(context.Background(), SeedFiles{
		Transactions: writeFile(t, "orders.csv", transactionsCSV),
		Customers:    writeFile(t, "roster.csv", customersCSV),
	})
	if err != nil {
		t.Fatalf("LoadFromFiles() error = %v", err)
	}

	ds := d.store.Snapshot()
	if len(ds.Customers) != 1 || ds.Customers[0].GroupID != "G9" {
		t.Errorf("restored customers were replaced by the seed file: %+v", ds.Customers)
	}
	if len(ds.Transactions) != 2 {
		t.Errorf("transactions = %d, want 2 from the seed file", len(ds.Transactions))
	}

	saved, err := snap.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Customers) != 1 || len(saved.Transactions) != 2 {
		t.Errorf("snapshot after seeding holds %d customers, %d transactions", len(saved.Customers), len(saved.Transactions))
	}
}

func TestDashboard_LoadFromFilesFailure(t *testing.T) {
	d := newTestDashboard(t, nil)
	err := d.LoadFromFiles(context.Background(), SeedFiles{
		Transactions: writeFile(t, "orders.csv", transactionsCSV),
		Customers:    filepath.Join(t.TempDir(), "missing.csv"),
	})
	if err == nil {
		t.Fatal("LoadFromFiles() with a missing file should fail")
	}
	if n := len(d.store.Snapshot().Transactions); n != 0 {
		t.Errorf("nothing should be installed on failure, got %d transactions", n)
	}

	if err := d.LoadFromFiles(context.Background(), SeedFiles{}); err != nil {
		t.Errorf("LoadFromFiles() with no files error = %v", err)
	}
}

func TestDashboard_ClearAndReset(t *testing.T) {
	d := newTestDashboard(t, nil)
	d.SetData(testDatasets())
	ctx := context.Background()

	if err := d.Clear(ctx, models.KindCustomers); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	_, err := d.OrderStatus(ctx)
	wantCode(t, err, apperrors.CodeInsufficientData)
	if _, err := d.Overview(ctx, analysis.TransactionFilter{}); err != nil {
		t.Errorf("Overview() should survive clearing customers, got %v", err)
	}

	wantCode(t, d.Clear(ctx, "holdings"), apperrors.CodeNotFound)

	d.Reset(ctx)
	_, err = d.Overview(ctx, analysis.TransactionFilter{})
	wantCode(t, err, apperrors.CodeInsufficientData)
}

func TestGuarded_RecoversPanic(t *testing.T) {
	d := newTestDashboard(t, nil)

	got, err := guarded(context.Background(), d, "explode", func() *models.Overview {
		var txs []models.TransactionRecord
		_ = txs[3]
		return nil
	})
	if got != nil {
		t.Error("a failed pass should not return a partial result")
	}
	wantCode(t, err, apperrors.CodeAnalysisFailed)

	stats := d.Stats()
	if stats["analysis_failed"].(int64) != 1 {
		t.Errorf("analysis_failed = %v, want 1", stats["analysis_failed"])
	}
}

func TestDashboard_ConcurrentAccess(t *testing.T) {
	d := newTestDashboard(t, nil)
	d.SetData(testDatasets())
	ctx := context.Background()

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- true }()
			_, _ = d.Overview(ctx, analysis.TransactionFilter{BusinessUnit: "BU1"})
			_, _ = d.OrderStatus(ctx)
			_, _ = d.AdvisorDetail(ctx, "Alice")
			_ = d.FilterOptions()
		}()
	}
	d.SetData(testDatasets())

	for i := 0; i < 10; i++ {
		<-done
	}
}

type recordingSnapshotter struct {
	mu   sync.Mutex
	last models.Datasets
	n    int
}

func (r *recordingSnapshotter) Save(_ context.Context, ds models.Datasets) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = ds
	r.n++
	return nil
}

func (r *recordingSnapshotter) Load(context.Context) (models.Datasets, error) {
	return models.Datasets{}, store.ErrNoSnapshot
}

func TestDashboard_ClearWaitsForUploadRebuild(t *testing.T) {
	snap := &recordingSnapshotter{}
	d := newTestDashboard(t, snap)
	ctx := context.Background()

	rebuilding := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	d.now = func() time.Time {
		if calls.Add(1) == 1 {
			close(rebuilding)
			<-release
		}
		return time.Now()
	}

	uploaded := make(chan error, 1)
	go func() {
		_, err := d.Upload(ctx, models.KindTransactions, "orders.csv", strings.NewReader(transactionsCSV))
		uploaded <- err
	}()
	<-rebuilding

	cleared := make(chan error, 1)
	go func() { cleared <- d.Clear(ctx, models.KindTransactions) }()

	select {
	case err := <-cleared:
		close(release)
		t.Fatalf("Clear() returned while the upload was still rebuilding views (err = %v)", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	if err := <-uploaded; err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if err := <-cleared; err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if n := len(d.store.Snapshot().Transactions); n != 0 {
		t.Errorf("store transactions after clear = %d, want 0", n)
	}
	_, err := d.Overview(ctx, analysis.TransactionFilter{})
	wantCode(t, err, apperrors.CodeInsufficientData)
	if opts := d.FilterOptions(); len(opts.BusinessUnits) != 0 {
		t.Errorf("filter options after clear = %v", opts.BusinessUnits)
	}

	snap.mu.Lock()
	defer snap.mu.Unlock()
	if snap.n != 2 || len(snap.last.Transactions) != 0 {
		t.Errorf("last snapshot after %d saves holds %d transactions, want 0", snap.n, len(snap.last.Transactions))
	}
}

func BenchmarkDashboard_FilteredOverview(b *testing.B) {
	d := NewDashboard(store.New(), nil, analysis.DefaultOptions(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	txs := make([]models.TransactionRecord, 1000)
	for i := range txs {
		txs[i] = models.TransactionRecord{
			GroupID:      "G" + string(rune('A'+i%26)),
			Amount:       float64(i) * 10,
			BusinessUnit: "BU" + string(rune('0'+i%3)),
			SignedYear:   2025,
			SignedMonth:  i%12 + 1,
			SignedDay:    1,
		}
	}
	d.SetData(models.Datasets{Transactions: txs})
	filter := analysis.TransactionFilter{BusinessUnit: "BU1"}

	b.ResetTimer()
	for b.Loop() {
		_, _ = d.Overview(context.Background(), filter)
	}
}
