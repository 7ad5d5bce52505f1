// Package templates holds the server-rendered dashboard page. Sections are
// empty shells that the datastar SSE endpoints fill in after load.
package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"

	"advisor-dashboard/internal/models"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

// Page is what the dashboard needs to render before any SSE round trip.
type Page struct {
	Title    string
	Datasets []models.DatasetInfo
	Filters  models.FilterOptions
}

var datasetLabels = map[models.DatasetKind]string{
	models.KindTransactions: "业绩明细",
	models.KindCustomers:    "客户名单",
	models.KindStrategies:   "产品策略",
}

// signals are the datastar client signals the SSE handlers read back.
var signals = map[string]string{
	"bu":           "",
	"tier":         "",
	"product":      "",
	"project":      "",
	"advisor":      "",
	"main_advisor": "",
	"period":       "",
	"year":         "",
	"from":         "",
	"to":           "",
	"strategyYear": "",
}

func Dashboard(page Page) templ.Component {
	return layout(page.Title, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, c := range []templ.Component{
			header(page.Title),
			datasetPanel(page.Datasets),
			filterBar(page.Filters),
			section("overview", "业绩总览"),
			section("orders", "客户下单情况"),
			section("customers", "客户存量分布"),
			strategySection(),
		} {
			if err := c.Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	}))
}

func layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		initial, err := json.Marshal(signals)
		if err != nil {
			return fmt.Errorf("marshal signals: %w", err)
		}

		if _, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<script type="module" src="%s"></script>
<style>%s</style>
</head>
<body data-signals="%s" data-init="@get('/sse/refresh-all')">
<main class="dashboard">
`, templ.EscapeString(title), datastarScript, styles, templ.EscapeString(string(initial))); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err = io.WriteString(w, uploadScript+"\n</main>\n</body>\n</html>\n")
		return err
	})
}

func header(title string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<header class="page-header">
<h1>%s</h1>
<p class="subtitle">业绩、客户与策略数据交叉分析</p>
<button class="refresh" data-on-click="@get('/sse/refresh-all')">刷新</button>
</header>
`, templ.EscapeString(title))
		return err
	})
}

func datasetPanel(infos []models.DatasetInfo) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<section id="datasets" class="panel"><h2>数据文件</h2><div class="dataset-grid">`)
		for _, info := range infos {
			status := "未上传"
			if info.Records > 0 {
				status = fmt.Sprintf("%d 条", info.Records)
				if !info.UploadedAt.IsZero() {
					status += " · " + info.UploadedAt.Format(time.DateTime)
				}
			}
			kind := templ.EscapeString(string(info.Kind))
			fmt.Fprintf(&b, `<form class="dataset-card" data-kind="%s" enctype="multipart/form-data">
<h3>%s</h3>
<p class="dataset-status">%s</p>
<input type="file" name="file" accept=".xlsx,.csv" required>
<button type="submit">上传</button>
</form>
`, kind, templ.EscapeString(datasetLabels[info.Kind]), templ.EscapeString(status))
		}
		b.WriteString("</div></section>\n")
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func filterBar(opts models.FilterOptions) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<section id="filters" class="panel filters">`)
		selectFor(&b, "bu", "BU", opts.BusinessUnits)
		selectFor(&b, "tier", "客户等级", opts.Tiers)
		selectFor(&b, "product", "产品", opts.Products)
		selectFor(&b, "project", "项目", opts.Projects)
		selectFor(&b, "advisor", "理财师", opts.Advisors)
		selectFor(&b, "main_advisor", "主理财师", opts.MainAdvisors)
		selectFor(&b, "period", "期间", []string{"q1", "q2", "q3", "q4", "ytd"})
		b.WriteString(`<label>年份<input type="text" inputmode="numeric" maxlength="4" data-bind-year></label>
<label>起<input type="date" data-bind-from></label>
<label>止<input type="date" data-bind-to></label>
<button data-on-click="@get('/sse/overview')">应用筛选</button>
</section>
`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func selectFor(b *strings.Builder, signal, label string, values []string) {
	fmt.Fprintf(b, `<label>%s<select data-bind-%s><option value="">全部</option>`, templ.EscapeString(label), signal)
	for _, v := range values {
		v = templ.EscapeString(v)
		fmt.Fprintf(b, `<option value="%s">%s</option>`, v, v)
	}
	b.WriteString("</select></label>\n")
}

func section(name, title string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<section class="panel" id="%s">
<h2>%s</h2>
<div id="%s-content" class="loading">加载中...</div>
</section>
`, name, templ.EscapeString(title), name)
		return err
	})
}

func strategySection() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<section class="panel" id="strategy">
<h2>策略分布</h2>
<label>年份<input type="text" placeholder="all" data-bind-strategy-year></label>
<button data-on-click="@get('/sse/strategy')">查询</button>
<div id="strategy-content" class="loading">加载中...</div>
</section>
`)
		return err
	})
}

const uploadScript = `<script>
document.querySelectorAll("form.dataset-card").forEach((form) => {
  form.addEventListener("submit", async (ev) => {
    ev.preventDefault();
    const status = form.querySelector(".dataset-status");
    const res = await fetch("/api/datasets/" + form.dataset.kind, { method: "POST", body: new FormData(form) });
    const body = await res.json();
    if (!body.success) {
      status.textContent = body.error.message + (body.error.details ? ": " + body.error.details : "");
      return;
    }
    status.textContent = body.data.dataset.records + " 条";
    location.reload();
  });
});
</script>`

const styles = `
body{font-family:-apple-system,"PingFang SC","Microsoft YaHei",sans-serif;margin:0;background:#f5f6fa;color:#222}
.dashboard{max-width:1280px;margin:0 auto;padding:24px}
.page-header{display:flex;align-items:baseline;gap:16px}
.subtitle{color:#666}
.panel{background:#fff;border-radius:8px;padding:16px;margin-bottom:16px;box-shadow:0 1px 3px rgba(0,0,0,.08)}
.dataset-grid{display:grid;grid-template-columns:repeat(3,1fr);gap:12px}
.filters{display:flex;flex-wrap:wrap;gap:12px;align-items:end}
.summary-cards{display:flex;gap:12px;margin-bottom:12px}
.card{flex:1;background:#f0f3ff;border-radius:6px;padding:12px;display:flex;flex-direction:column}
.modern-table{width:100%;border-collapse:collapse;margin-bottom:12px}
.modern-table th,.modern-table td{padding:6px 10px;border-bottom:1px solid #eee;text-align:right}
.modern-table th:first-child,.modern-table td:first-child{text-align:left}
.segment-total{font-weight:600}
.tier-badge{background:#eef;border-radius:4px;padding:2px 6px}
.empty-state{color:#888;padding:24px;text-align:center}
.empty-state.error{color:#c0392b}
`
