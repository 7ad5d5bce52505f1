package templates

import (
	"context"
	"strings"
	"testing"
	"time"

	"advisor-dashboard/internal/models"
)

func renderPage(t *testing.T, page Page) string {
	t.Helper()
	var b strings.Builder
	if err := Dashboard(page).Render(context.Background(), &b); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return b.String()
}

func TestDashboard(t *testing.T) {
	page := Page{
		Title: "理财师业绩看板",
		Datasets: []models.DatasetInfo{
			{Kind: models.KindTransactions, Records: 12, UploadedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
			{Kind: models.KindCustomers},
			{Kind: models.KindStrategies},
		},
		Filters: models.FilterOptions{
			BusinessUnits: []string{"BU1", "BU2"},
			Advisors:      []string{"Alice(A01)"},
		},
	}

	body := renderPage(t, page)
	for _, want := range []string{
		"<title>理财师业绩看板</title>",
		datastarScript,
		"@get('/sse/refresh-all')",
		`id="overview-content"`,
		`id="orders-content"`,
		`id="customers-content"`,
		`id="strategy-content"`,
		`data-kind="transactions"`,
		"12 条 · 2025-03-01 09:00:00",
		"未上传",
		`<option value="BU2">BU2</option>`,
		`<option value="Alice(A01)">Alice(A01)</option>`,
		"data-bind-main_advisor",
		"&#34;strategyYear&#34;",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard should contain %q", want)
		}
	}
}

func TestDashboard_EscapesUserValues(t *testing.T) {
	body := renderPage(t, Page{
		Title:   "<b>x</b>",
		Filters: models.FilterOptions{Products: []string{`"><script>alert(1)</script>`}},
	})

	if strings.Contains(body, "<script>alert(1)</script>") || strings.Contains(body, "<b>x</b>") {
		t.Error("titles and filter values must be escaped")
	}
}
