package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/starfederation/datastar-go/datastar"

	"advisor-dashboard/internal/errors"
	"advisor-dashboard/internal/models"
	"advisor-dashboard/internal/observability"
	"advisor-dashboard/internal/services"
)

const (
	maxTableRows = 50
	maxChartRows = 20
)

var tenThousand = decimal.NewFromInt(10000)

// formatWan renders an RMB amount in 万元 with two decimals.
func formatWan(v float64) string {
	return decimal.NewFromFloat(v).Div(tenThousand).StringFixed(2)
}

func formatPercent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(1) + "%"
}

var funcs = template.FuncMap{
	"wan": formatWan,
	"pct": formatPercent,
}

var overviewTemplate = template.Must(template.New("overview").Funcs(funcs).Parse(`
<div id="overview-content">
<div class="summary-cards">
<div class="card"><span>总金额(万元)</span><strong>{{wan .Data.Summary.TotalAmount}}</strong></div>
<div class="card"><span>交易笔数</span><strong>{{.Data.Summary.TransactionCount}}</strong></div>
<div class="card"><span>客户数</span><strong>{{.Data.Summary.CustomerCount}}</strong></div>
<div class="card"><span>理财师数</span><strong>{{.Data.Summary.AdvisorCount}}</strong></div>
<div class="card"><span>产品数</span><strong>{{.Data.Summary.ProductCount}}</strong></div>
</div>
<table class="modern-table">
<thead><tr><th>理财师</th><th>交易笔数</th><th>客户数</th><th>金额(万元)</th><th>占比</th><th>笔均(万元)</th></tr></thead>
<tbody>
{{range $i, $row := .Data.Advisors}}{{if lt $i $.MaxRows}}<tr>
<td>{{$row.Name}}</td>
<td>{{$row.TransactionCount}}</td>
<td>{{$row.CustomerCount}}</td>
<td><strong>{{wan $row.TotalAmount}}</strong></td>
<td>{{pct $row.AmountShare}}</td>
<td>{{wan $row.AveragePerTransaction}}</td>
</tr>{{end}}{{end}}
</tbody>
</table>
<table class="modern-table">
<thead><tr><th>客户等级</th><th>交易笔数</th><th>客户数</th><th>金额(万元)</th><th>占比</th></tr></thead>
<tbody>
{{range .Data.TiersByRank}}<tr>
<td><span class="tier-badge">{{.Name}}</span></td>
<td>{{.TransactionCount}}</td>
<td>{{.CustomerCount}}</td>
<td><strong>{{wan .TotalAmount}}</strong></td>
<td>{{pct .AmountShare}}</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var ordersTemplate = template.Must(template.New("orders").Funcs(funcs).Parse(`
<div id="orders-content">
<div class="summary-cards">
<div class="card"><span>客户数</span><strong>{{.Data.Summary.TotalCustomers}}</strong></div>
<div class="card"><span>已下单</span><strong>{{.Data.Summary.OrderedCustomers}}</strong></div>
<div class="card"><span>未下单</span><strong>{{.Data.Summary.UnorderedCustomers}}</strong></div>
<div class="card"><span>下单率</span><strong>{{pct .Data.Summary.OrderRate}}</strong></div>
</div>
<table class="modern-table">
<thead><tr><th>理财师</th><th>归属</th><th>客户数</th><th>已下单</th><th>未下单</th><th>存量(万元)</th><th>成交(万元)</th><th>下单率</th></tr></thead>
<tbody>
{{range $i, $row := .Data.Advisors}}{{if lt $i $.MaxRows}}<tr class="segment-{{$row.Segment}}">
<td>{{$row.AdvisorName}}</td>
<td>{{$row.Segment}}</td>
<td>{{$row.CustomerCount}}</td>
<td>{{$row.OrderedCount}}</td>
<td>{{$row.UnorderedCount}}</td>
<td>{{wan $row.TotalInvestment}}</td>
<td>{{wan $row.TotalTransactionAmount}}</td>
<td><strong>{{pct $row.OrderRate}}</strong></td>
</tr>{{end}}{{end}}
</tbody>
</table>
<table class="modern-table">
<thead><tr><th>未来会员等级</th><th>客户数</th><th>已下单</th><th>下单率</th></tr></thead>
<tbody>
{{range .Data.Tiers.All}}<tr>
<td><span class="tier-badge">{{.Tier}}</span></td>
<td>{{.CustomerCount}}</td>
<td>{{.OrderedCount}}</td>
<td>{{pct .OrderRate}}</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var customersTemplate = template.Must(template.New("customers").Funcs(funcs).Parse(`
<div id="customers-content">
<div class="summary-cards">
<div class="card"><span>客户数</span><strong>{{.Data.Summary.TotalCustomers}}</strong></div>
<div class="card"><span>存量(万元)</span><strong>{{wan .Data.Summary.TotalInvestment}}</strong></div>
{{range .Data.Collaboration}}<div class="card"><span>{{.Attribution}}</span><strong>{{.CustomerCount}} / {{pct .CustomerShare}}</strong></div>
{{end}}</div>
<table class="modern-table">
<thead><tr><th>理财师</th><th>客户数</th><th>存量(万元)</th><th>自主开发</th><th>协作</th><th>自主存量(万元)</th><th>协作存量(万元)</th></tr></thead>
<tbody>
{{range $i, $row := .Data.Advisors}}{{if lt $i $.MaxRows}}<tr>
<td>{{$row.AdvisorName}}</td>
<td>{{$row.CustomerCount}}</td>
<td><strong>{{wan $row.TotalInvestment}}</strong></td>
<td>{{$row.SelfCount}}</td>
<td>{{$row.CollabCount}}</td>
<td>{{wan $row.SelfInvestment}}</td>
<td>{{wan $row.CollabInvestment}}</td>
</tr>{{end}}{{end}}
</tbody>
</table>
<table class="modern-table">
<thead><tr><th>未来会员等级</th><th>客户数</th><th>存量(万元)</th><th>自主开发</th><th>协作</th></tr></thead>
<tbody>
{{range .Data.Tiers}}<tr>
<td><span class="tier-badge">{{.Tier}}</span></td>
<td>{{.CustomerCount}}</td>
<td>{{wan .TotalInvestment}}</td>
<td>{{.SelfCount}}</td>
<td>{{.CollabCount}}</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var strategyTemplate = template.Must(template.New("strategy").Funcs(funcs).Parse(`
<div id="strategy-content">
<div class="summary-cards">
<div class="card"><span>年份</span><strong>{{if .Data.Year}}{{.Data.Year}}{{else}}全部{{end}}</strong></div>
<div class="card"><span>交易笔数</span><strong>{{.Data.TransactionCount}}</strong></div>
<div class="card"><span>金额(万元)</span><strong>{{wan .Data.TotalAmount}}</strong></div>
<div class="card"><span>匹配率</span><strong>{{pct .Data.MatchRate}}</strong></div>
</div>
<table class="modern-table">
<thead><tr><th>大类策略</th><th>交易笔数</th><th>客户数</th><th>金额(万元)</th></tr></thead>
<tbody>
{{range .Data.Major}}<tr>
<td>{{.Strategy}}</td>
<td>{{.TransactionCount}}</td>
<td>{{.CustomerCount}}</td>
<td><strong>{{wan .TotalAmount}}</strong></td>
</tr>{{end}}
</tbody>
</table>
<table class="modern-table">
<thead><tr><th>细分策略</th><th>大类策略</th><th>交易笔数</th><th>客户数</th><th>金额(万元)</th></tr></thead>
<tbody>
{{range $i, $row := .Data.Detail}}{{if lt $i $.MaxRows}}<tr>
<td>{{$row.Strategy}}</td>
<td>{{$row.MajorStrategy}}</td>
<td>{{$row.TransactionCount}}</td>
<td>{{$row.CustomerCount}}</td>
<td>{{wan $row.TotalAmount}}</td>
</tr>{{end}}{{end}}
</tbody>
</table>
</div>`))

var placeholderTemplate = template.Must(template.New("placeholder").Parse(
	`<div id="{{.ID}}" class="empty-state {{.Class}}">{{.Message}}</div>`))

type SSEHandlers struct {
	dashboard *services.Dashboard
	logger    *slog.Logger
	now       func() time.Time
}

func NewSSEHandlers(dashboard *services.Dashboard, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		dashboard: dashboard,
		logger:    logger,
		now:       time.Now,
	}
}

type templateData struct {
	Data    any
	MaxRows int
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf strings.Builder
	err := tmpl.Execute(&buf, templateData{Data: data, MaxRows: maxTableRows})
	return buf.String(), err
}

// renderPlaceholder replaces a section with a message explaining why it
// could not be computed.
func renderPlaceholder(id string, err error) string {
	message, class := "分析失败，请稍后重试", "error"
	switch errors.CodeOf(err) {
	case errors.CodeInsufficientData:
		message, class = "暂无数据，请先上传相关数据文件", "insufficient"
	case errors.CodeValidation:
		message, class = "筛选条件无效", "invalid"
	}

	var buf strings.Builder
	placeholderTemplate.Execute(&buf, map[string]string{"ID": id, "Class": class, "Message": message})
	return buf.String()
}

// section renders data into tmpl, falling back to a placeholder for id when
// the view failed.
func (h *SSEHandlers) section(r *http.Request, id string, tmpl *template.Template, data any, err error) string {
	log := observability.LoggerFrom(r.Context(), h.logger)
	if err != nil {
		log.Debug("view unavailable", "section", id, "error", err)
		return renderPlaceholder(id, err)
	}

	html, err := render(tmpl, data)
	if err != nil {
		log.Error("render section", "section", id, "error", err)
		return renderPlaceholder(id, err)
	}
	return html
}

func (h *SSEHandlers) patchSignals(sse *datastar.ServerSentEventGenerator, signals map[string]any) {
	data, err := json.Marshal(signals)
	if err != nil {
		h.logger.Error("marshal signals", "error", err)
		return
	}
	if err := sse.PatchSignals(data); err != nil {
		h.logger.Warn("patch signals", "error", err)
	}
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) overview(r *http.Request, sse *datastar.ServerSentEventGenerator) {
	var query OverviewQuery
	if err := datastar.ReadSignals(r, &query); err != nil {
		sse.PatchElements(renderPlaceholder("overview-content", errors.ValidationWrap(err, "unreadable signals")))
		return
	}

	filter, err := query.Filter(h.now())
	var data *models.Overview
	if err == nil {
		data, err = h.dashboard.Overview(r.Context(), filter)
	}
	sse.PatchElements(h.section(r, "overview-content", overviewTemplate, data, err))

	if data != nil {
		h.patchSignals(sse, map[string]any{
			"monthlyData":  data.Time.ByMonth,
			"productsData": head(data.Products, maxChartRows),
			"buData":       data.BusinessUnits,
			"mappingData":  head(data.AdvisorMapping, maxChartRows),
		})
	}
}

func (h *SSEHandlers) orders(r *http.Request, sse *datastar.ServerSentEventGenerator) {
	data, err := h.dashboard.OrderStatus(r.Context())
	sse.PatchElements(h.section(r, "orders-content", ordersTemplate, data, err))
	if data != nil {
		h.patchSignals(sse, map[string]any{"tierOrderData": data.Tiers})
	}
}

func (h *SSEHandlers) customers(r *http.Request, sse *datastar.ServerSentEventGenerator) {
	data, err := h.dashboard.CustomerPortfolio(r.Context())
	sse.PatchElements(h.section(r, "customers-content", customersTemplate, data, err))
	if data != nil {
		h.patchSignals(sse, map[string]any{"collaborationData": data.Collaboration})
	}
}

func (h *SSEHandlers) strategy(r *http.Request, sse *datastar.ServerSentEventGenerator) {
	var query StrategyQuery
	var data *models.StrategyReport
	err := datastar.ReadSignals(r, &query)
	if err != nil {
		err = errors.ValidationWrap(err, "unreadable signals")
	}

	var year int
	if err == nil {
		year, err = query.Resolve(h.now())
	}
	if err == nil {
		data, err = h.dashboard.StrategyDistribution(r.Context(), year)
	}
	sse.PatchElements(h.section(r, "strategy-content", strategyTemplate, data, err))
	if data != nil {
		h.patchSignals(sse, map[string]any{"strategyData": data.Major})
	}
}

func (h *SSEHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	h.overview(r, sse)
	flush(w)
}

func (h *SSEHandlers) HandleOrders(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	h.orders(r, sse)
	flush(w)
}

func (h *SSEHandlers) HandleCustomers(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	h.customers(r, sse)
	flush(w)
}

func (h *SSEHandlers) HandleStrategy(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	h.strategy(r, sse)
	flush(w)
}

// HandleRefreshAll re-renders every section and pushes the filter options
// and dataset status along with them.
func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	h.overview(r, sse)
	h.orders(r, sse)
	h.customers(r, sse)
	h.strategy(r, sse)

	h.patchSignals(sse, map[string]any{
		"filterOptions": h.dashboard.FilterOptions(),
		"datasets":      h.dashboard.Datasets(),
		"refreshedAt":   h.now().Format(time.DateTime),
	})

	flush(w)
}

func head[T any](rows []T, n int) []T {
	if len(rows) > n {
		return rows[:n]
	}
	return rows
}
