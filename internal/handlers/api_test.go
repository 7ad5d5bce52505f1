package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"advisor-dashboard/internal/analysis"
	"advisor-dashboard/internal/models"
	"advisor-dashboard/internal/services"
	"advisor-dashboard/internal/store"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func fixedNow() time.Time {
	return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
}

func testDatasets() models.Datasets {
	return models.Datasets{
		Transactions: []models.TransactionRecord{
			{GroupID: "G1", Amount: 1000000, AdvisorID: "A01", AdvisorName: "Alice", MainAdvisorID: "M01", MainAdvisorName: "Mona",
				CustomerTier: "黄金", BusinessUnit: "BU1", ProductName: "P1", ProjectName: "J1", ProductCode: "C1",
				SignedDate: "2025-01-15", SignedYear: 2025, SignedMonth: 1, SignedDay: 15},
			{GroupID: "G2", Amount: 500000, AdvisorID: "B01", AdvisorName: "Bob", MainAdvisorID: "M01", MainAdvisorName: "Mona",
				CustomerTier: "钻石", BusinessUnit: "BU2", ProductName: "P2", ProjectName: "J2", ProductCode: "C2",
				SignedDate: "2024-07-01", SignedYear: 2024, SignedMonth: 7, SignedDay: 1},
		},
		Customers: []models.CustomerRecord{
			{GroupID: "G1", DirectAdvisorID: "A01", DirectAdvisorName: "Alice", CollabAdvisorID: "A01", CollabAdvisorName: "Alice",
				FutureTier: "黄金", InvestmentBalance: 5000000},
			{GroupID: "G3", DirectAdvisorID: "B01", DirectAdvisorName: "Bob", CollabAdvisorID: "A01", CollabAdvisorName: "Alice",
				FutureTier: "钻石", InvestmentBalance: 8000000},
		},
		Strategies: []models.StrategyMapping{
			{ProductCode: "C1", MajorStrategy: "权益", DetailStrategy: "主观多头"},
		},
	}
}

func createTestDashboard() *services.Dashboard {
	d := services.NewDashboard(store.New(), nil, analysis.DefaultOptions(), testLogger)
	d.SetData(testDatasets())
	return d
}

func newTestAPI(d *services.Dashboard) *APIHandlers {
	h := NewAPIHandlers(d, testLogger)
	h.now = fixedNow
	return h
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	return env
}

func TestNewAPIHandlers(t *testing.T) {
	d := createTestDashboard()
	handlers := NewAPIHandlers(d, testLogger)

	if handlers == nil {
		t.Fatal("NewAPIHandlers() returned nil")
	}
	if handlers.dashboard != d {
		t.Error("NewAPIHandlers() should set dashboard field")
	}
}

func TestAPIHandlers_HandleOverview(t *testing.T) {
	handlers := newTestAPI(createTestDashboard())

	req := httptest.NewRequest(http.MethodGet, "/api/overview", nil)
	w := httptest.NewRecorder()
	handlers.HandleOverview(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected content-type 'application/json', got %q", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("expected cache-control 'no-cache', got %q", cc)
	}

	env := decode(t, w)
	if !env.Success {
		t.Error("expected success=true in response")
	}
	var overview models.Overview
	if err := json.Unmarshal(env.Data, &overview); err != nil {
		t.Fatal(err)
	}
	if overview.Summary.TransactionCount != 2 {
		t.Errorf("transaction count = %d, want 2", overview.Summary.TransactionCount)
	}
	if overview.Summary.TotalAmount != 1500000 {
		t.Errorf("total amount = %v, want 1500000", overview.Summary.TotalAmount)
	}
}

func TestAPIHandlers_HandleOverviewFilters(t *testing.T) {
	handlers := newTestAPI(createTestDashboard())

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantCount int
	}{
		{"business unit", "?bu=BU1", http.StatusOK, 1},
		{"advisor label", "?advisor=Bob(B01)", http.StatusOK, 1},
		{"year", "?year=2024", http.StatusOK, 1},
		{"period defaults to current year", "?period=q1", http.StatusOK, 1},
		{"explicit range", "?from=2024-01-01&to=2025-12-31", http.StatusOK, 2},
		{"no match", "?bu=BU9", http.StatusUnprocessableEntity, 0},
		{"bad period", "?period=q5", http.StatusBadRequest, 0},
		{"bad date", "?from=2025/01/01", http.StatusBadRequest, 0},
		{"inverted range", "?from=2025-02-01&to=2025-01-01", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/overview"+tt.query, nil)
			w := httptest.NewRecorder()
			handlers.HandleOverview(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantCode, w.Body.String())
			}
			env := decode(t, w)
			if tt.wantCode != http.StatusOK {
				if env.Success || env.Error == nil {
					t.Error("expected error envelope")
				}
				return
			}
			var overview models.Overview
			if err := json.Unmarshal(env.Data, &overview); err != nil {
				t.Fatal(err)
			}
			if overview.Summary.TransactionCount != tt.wantCount {
				t.Errorf("transaction count = %d, want %d", overview.Summary.TransactionCount, tt.wantCount)
			}
		})
	}
}

func TestAPIHandlers_ValidationDetails(t *testing.T) {
	handlers := newTestAPI(createTestDashboard())

	req := httptest.NewRequest(http.MethodGet, "/api/overview?period=week", nil)
	w := httptest.NewRecorder()
	handlers.HandleOverview(w, req)

	env := decode(t, w)
	if env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("error = %+v, want VALIDATION_ERROR", env.Error)
	}
	if !strings.Contains(env.Error.Details, "period") {
		t.Errorf("details %q should name the period parameter", env.Error.Details)
	}
}

func TestAPIHandlers_EmptyDashboard(t *testing.T) {
	handlers := newTestAPI(services.NewDashboard(nil, nil, analysis.DefaultOptions(), testLogger))

	endpoints := map[string]http.HandlerFunc{
		"/api/overview":  handlers.HandleOverview,
		"/api/orders":    handlers.HandleOrders,
		"/api/customers": handlers.HandleCustomers,
		"/api/strategy":  handlers.HandleStrategy,
	}
	for path, handle := range endpoints {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			handle(w, httptest.NewRequest(http.MethodGet, path, nil))
			if w.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422", w.Code)
			}
			if env := decode(t, w); env.Error == nil || env.Error.Code != "INSUFFICIENT_DATA" {
				t.Errorf("error = %+v, want INSUFFICIENT_DATA", env.Error)
			}
		})
	}
}

func TestAPIHandlers_HandleOrders(t *testing.T) {
	handlers := newTestAPI(createTestDashboard())

	w := httptest.NewRecorder()
	handlers.HandleOrders(w, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var report models.OrderStatusReport
	if err := json.Unmarshal(decode(t, w).Data, &report); err != nil {
		t.Fatal(err)
	}
	if report.Summary.TotalCustomers != 2 || report.Summary.OrderedCustomers != 1 {
		t.Errorf("summary = %+v, want 2 customers with 1 ordered", report.Summary)
	}
	if report.Summary.OrderRate != 50 {
		t.Errorf("order rate = %v, want 50", report.Summary.OrderRate)
	}
}

func TestAPIHandlers_HandleAdvisorDetail(t *testing.T) {
	handlers := newTestAPI(createTestDashboard())

	req := httptest.NewRequest(http.MethodGet, "/api/orders/advisors/Alice", nil)
	req.SetPathValue("name", "Alice")
	w := httptest.NewRecorder()
	handlers.HandleAdvisorDetail(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var report models.AdvisorDetailReport
	if err := json.Unmarshal(decode(t, w).Data, &report); err != nil {
		t.Fatal(err)
	}
	if report.AdvisorName != "Alice" {
		t.Errorf("advisor name = %q", report.AdvisorName)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/orders/advisors/", nil)
	req.SetPathValue("name", "  ")
	w = httptest.NewRecorder()
	handlers.HandleAdvisorDetail(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank name status = %d, want 400", w.Code)
	}
}

func TestAPIHandlers_HandleCustomers(t *testing.T) {
	handlers := newTestAPI(createTestDashboard())

	w := httptest.NewRecorder()
	handlers.HandleCustomers(w, httptest.NewRequest(http.MethodGet, "/api/customers", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var portfolio models.CustomerPortfolio
	if err := json.Unmarshal(decode(t, w).Data, &portfolio); err != nil {
		t.Fatal(err)
	}
	if portfolio.Summary.TotalCustomers != 2 {
		t.Errorf("total customers = %d, want 2", portfolio.Summary.TotalCustomers)
	}
	if portfolio.Summary.SelfCustomers != 1 || portfolio.Summary.CollabCustomers != 1 {
		t.Errorf("summary = %+v, want one self and one collab", portfolio.Summary)
	}
}

func TestAPIHandlers_HandleStrategy(t *testing.T) {
	handlers := newTestAPI(createTestDashboard())

	tests := []struct {
		query     string
		wantCode  int
		wantYear  int
		wantCount int
	}{
		{"", http.StatusOK, 2025, 1},
		{"?year=2024", http.StatusOK, 2024, 1},
		{"?year=all", http.StatusOK, 0, 2},
		{"?year=twenty", http.StatusBadRequest, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := httptest.NewRecorder()
			handlers.HandleStrategy(w, httptest.NewRequest(http.MethodGet, "/api/strategy"+tt.query, nil))
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var report models.StrategyReport
			if err := json.Unmarshal(decode(t, w).Data, &report); err != nil {
				t.Fatal(err)
			}
			if report.Year != tt.wantYear || report.TransactionCount != tt.wantCount {
				t.Errorf("year=%d count=%d, want year=%d count=%d", report.Year, report.TransactionCount, tt.wantYear, tt.wantCount)
			}
		})
	}
}

func TestAPIHandlers_HandleFilters(t *testing.T) {
	handlers := newTestAPI(createTestDashboard())

	w := httptest.NewRecorder()
	handlers.HandleFilters(w, httptest.NewRequest(http.MethodGet, "/api/filters", nil))

	var options models.FilterOptions
	if err := json.Unmarshal(decode(t, w).Data, &options); err != nil {
		t.Fatal(err)
	}
	if len(options.BusinessUnits) != 2 {
		t.Errorf("business units = %v", options.BusinessUnits)
	}
	if len(options.Advisors) != 2 || options.Advisors[0] != "Alice(A01)" {
		t.Errorf("advisors = %v", options.Advisors)
	}
}

func multipartUpload(t *testing.T, kind, field, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/datasets/"+kind, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetPathValue("kind", kind)
	return req
}

const strategiesCSV = `项目名称,产品名称,产品代码,大类策略,细分策略,是否QD
J1,P1,C1,权益,主观多头,否
J2,P2,C2,固收,纯债,否`

func TestAPIHandlers_HandleUpload(t *testing.T) {
	d := createTestDashboard()
	handlers := newTestAPI(d)

	w := httptest.NewRecorder()
	handlers.HandleUpload(w, multipartUpload(t, "strategies", "file", "strategies.csv", strategiesCSV))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var result services.UploadResult
	if err := json.Unmarshal(decode(t, w).Data, &result); err != nil {
		t.Fatal(err)
	}
	if result.Dataset.Kind != models.KindStrategies || result.Dataset.Records != 2 {
		t.Errorf("dataset = %+v", result.Dataset)
	}

	report, err := d.StrategyDistribution(t.Context(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if report.MatchedCount != 2 {
		t.Errorf("matched = %d, want 2 after upload", report.MatchedCount)
	}
}

func TestAPIHandlers_HandleUploadErrors(t *testing.T) {
	handlers := newTestAPI(createTestDashboard())

	tests := []struct {
		name     string
		req      *http.Request
		wantCode int
	}{
		{"unknown kind", multipartUpload(t, "orders", "file", "a.csv", strategiesCSV), http.StatusNotFound},
		{"wrong field", multipartUpload(t, "strategies", "upload", "a.csv", strategiesCSV), http.StatusBadRequest},
		{"unsupported format", multipartUpload(t, "strategies", "file", "a.pdf", strategiesCSV), http.StatusUnsupportedMediaType},
		{"missing columns", multipartUpload(t, "strategies", "file", "a.csv", "项目名称\nJ1"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handlers.HandleUpload(w, tt.req)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

func TestAPIHandlers_ClearAndReset(t *testing.T) {
	d := createTestDashboard()
	handlers := newTestAPI(d)

	req := httptest.NewRequest(http.MethodDelete, "/api/datasets/customers", nil)
	req.SetPathValue("kind", "customers")
	w := httptest.NewRecorder()
	handlers.HandleClearDataset(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("clear status = %d", w.Code)
	}
	if _, err := d.OrderStatus(t.Context()); err == nil {
		t.Error("orders should need customers after clearing them")
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/datasets/nope", nil)
	req.SetPathValue("kind", "nope")
	w = httptest.NewRecorder()
	handlers.HandleClearDataset(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown kind status = %d, want 404", w.Code)
	}

	w = httptest.NewRecorder()
	handlers.HandleReset(w, httptest.NewRequest(http.MethodDelete, "/api/datasets", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("reset status = %d", w.Code)
	}
	var infos []models.DatasetInfo
	if err := json.Unmarshal(decode(t, w).Data, &infos); err != nil {
		t.Fatal(err)
	}
	for _, info := range infos {
		if info.Records != 0 {
			t.Errorf("%s still has %d records after reset", info.Kind, info.Records)
		}
	}
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	handlers := newTestAPI(createTestDashboard())

	w := httptest.NewRecorder()
	handlers.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var health map[string]any
	if err := json.Unmarshal(decode(t, w).Data, &health); err != nil {
		t.Fatal(err)
	}
	if health["status"] != "healthy" {
		t.Errorf("expected status 'healthy', got %v", health["status"])
	}
	if health["datasets_loaded"] != float64(3) {
		t.Errorf("datasets_loaded = %v, want 3", health["datasets_loaded"])
	}
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	handlers := newTestAPI(createTestDashboard())

	w := httptest.NewRecorder()
	handlers.HandleStats(w, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	var stats map[string]any
	if err := json.Unmarshal(decode(t, w).Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats["transactions"] != float64(2) || stats["customers"] != float64(2) {
		t.Errorf("stats = %v", stats)
	}
}

func BenchmarkAPIHandlers_HandleOverview(b *testing.B) {
	handlers := newTestAPI(createTestDashboard())
	req := httptest.NewRequest(http.MethodGet, "/api/overview?bu=BU1", nil)

	for b.Loop() {
		handlers.HandleOverview(httptest.NewRecorder(), req)
	}
}
