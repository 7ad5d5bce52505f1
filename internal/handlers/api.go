package handlers

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"advisor-dashboard/internal/errors"
	"advisor-dashboard/internal/models"
	"advisor-dashboard/internal/observability"
	"advisor-dashboard/internal/services"
)

const uploadField = "file"

var noCache = map[string]string{
	"Cache-Control": "no-cache",
}

type APIHandlers struct {
	dashboard *services.Dashboard
	logger    *slog.Logger
	now       func() time.Time
}

func NewAPIHandlers(dashboard *services.Dashboard, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		dashboard: dashboard,
		logger:    logger,
		now:       time.Now,
	}
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
}

func (h *APIHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	filter, err := overviewQueryFrom(r.URL.Query()).Filter(h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	data, err := h.dashboard.Overview(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, data, noCache)
}

func (h *APIHandlers) HandleOrders(w http.ResponseWriter, r *http.Request) {
	data, err := h.dashboard.OrderStatus(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, data, noCache)
}

func (h *APIHandlers) HandleAdvisorDetail(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := validateAdvisorName(name); err != nil {
		h.fail(w, r, err)
		return
	}

	data, err := h.dashboard.AdvisorDetail(r.Context(), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, data, noCache)
}

func (h *APIHandlers) HandleCustomers(w http.ResponseWriter, r *http.Request) {
	data, err := h.dashboard.CustomerPortfolio(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, data, noCache)
}

func (h *APIHandlers) HandleStrategy(w http.ResponseWriter, r *http.Request) {
	year, err := StrategyQuery{Year: r.URL.Query().Get("year")}.Resolve(h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	data, err := h.dashboard.StrategyDistribution(r.Context(), year)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, data, noCache)
}

func (h *APIHandlers) HandleFilters(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.dashboard.FilterOptions(), noCache)
}

func (h *APIHandlers) HandleDatasets(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.dashboard.Datasets())
}

// HandleUpload replaces one dataset with the multipart "file" part.
func (h *APIHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	kind := models.DatasetKind(r.PathValue("kind"))
	if !kind.Valid() {
		h.fail(w, r, errors.NotFound("unknown dataset "+string(kind)))
		return
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			h.fail(w, r, errors.TooLarge("upload exceeds the size limit"))
			return
		}
		h.fail(w, r, errors.BadRequestWrap(err, `multipart field "file" is required`))
		return
	}
	defer file.Close()

	result, err := h.dashboard.Upload(r.Context(), kind, header.Filename, file)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	errors.WriteSuccess(w, result)
}

func (h *APIHandlers) HandleClearDataset(w http.ResponseWriter, r *http.Request) {
	kind := models.DatasetKind(r.PathValue("kind"))
	if err := h.dashboard.Clear(r.Context(), kind); err != nil {
		h.fail(w, r, err)
		return
	}

	errors.WriteSuccess(w, h.dashboard.Datasets())
}

func (h *APIHandlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.dashboard.Reset(r.Context())
	errors.WriteSuccess(w, h.dashboard.Datasets())
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	loaded := 0
	for _, info := range h.dashboard.Datasets() {
		if info.Records > 0 {
			loaded++
		}
	}

	healthData := map[string]any{
		"status":          "healthy",
		"timestamp":       h.now().Format(time.RFC3339),
		"version":         "1.0.0",
		"datasets_loaded": loaded,
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.dashboard.Stats())
}
