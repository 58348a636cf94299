// Package http exposes the causality analyzer over a chi-routed JSON API.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "marketsignal/internal/errors"
)

const dateLayout = "2006-01-02"

// GrangerHandler handles causality analysis HTTP requests.
type GrangerHandler struct {
	service     CausalityServiceInterface
	validate    *validator.Validate
	logger      *slog.Logger
	maxLagLimit int
}

func NewGrangerHandler(service CausalityServiceInterface, logger *slog.Logger, maxLagLimit int) *GrangerHandler {
	return &GrangerHandler{
		service:     service,
		validate:    validator.New(),
		logger:      logger.With(slog.String("component", "granger_handler")),
		maxLagLimit: maxLagLimit,
	}
}

// Routes returns the causality analysis routes.
func (h *GrangerHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/series", h.AnalyzeSeries)
	r.Post("/tickers", h.AnalyzeTickers)
	r.Post("/matrix", h.AnalyzeMatrix)
	return r
}

// GrangerSeriesRequest runs the test directly on two numeric arrays.
type GrangerSeriesRequest struct {
	SeriesX []float64 `json:"series_x" validate:"required,min=1"`
	SeriesY []float64 `json:"series_y" validate:"required,min=1"`
	MaxLag  int       `json:"max_lag" validate:"omitempty,min=1"`
}

// GrangerTickersRequest fetches two tickers and tests ticker_x -> ticker_y.
type GrangerTickersRequest struct {
	TickerX string `json:"ticker_x" validate:"required,min=1,max=12"`
	TickerY string `json:"ticker_y" validate:"required,min=1,max=12"`
	Start   string `json:"start" validate:"omitempty,datetime=2006-01-02"`
	End     string `json:"end" validate:"omitempty,datetime=2006-01-02"`
	MaxLag  int    `json:"max_lag" validate:"omitempty,min=1"`
}

// GrangerMatrixRequest scans all ordered pairs among the given tickers.
type GrangerMatrixRequest struct {
	Tickers []string `json:"tickers" validate:"required,min=2,dive,min=1,max=12"`
	Start   string   `json:"start" validate:"omitempty,datetime=2006-01-02"`
	End     string   `json:"end" validate:"omitempty,datetime=2006-01-02"`
	MaxLag  int      `json:"max_lag" validate:"omitempty,min=1"`
	Alpha   float64  `json:"alpha" validate:"omitempty,gt=0,lt=1"`
}

// AnalyzeSeries handles POST /api/granger/series.
func (h *GrangerHandler) AnalyzeSeries(w http.ResponseWriter, r *http.Request) {
	var req GrangerSeriesRequest
	if !h.decode(w, r, &req) {
		return
	}

	maxLag := h.service.MaxLagOrDefault(req.MaxLag)
	if !h.checkMaxLag(w, r, maxLag) {
		return
	}

	report, err := h.service.AnalyzeSeries(r.Context(), req.SeriesX, req.SeriesY, maxLag)
	if err != nil {
		h.renderError(w, r, "series analysis failed", err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"result": report})
}

// AnalyzeTickers handles POST /api/granger/tickers.
func (h *GrangerHandler) AnalyzeTickers(w http.ResponseWriter, r *http.Request) {
	var req GrangerTickersRequest
	if !h.decode(w, r, &req) {
		return
	}

	maxLag := h.service.MaxLagOrDefault(req.MaxLag)
	if !h.checkMaxLag(w, r, maxLag) {
		return
	}

	start, end, ok := h.dateRange(w, r, req.Start, req.End)
	if !ok {
		return
	}

	h.logger.InfoContext(r.Context(), "ticker analysis requested",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("ticker_x", req.TickerX),
		slog.String("ticker_y", req.TickerY),
		slog.Int("max_lag", maxLag),
	)

	report, err := h.service.AnalyzeTickers(r.Context(), req.TickerX, req.TickerY, start, end, maxLag)
	if err != nil {
		h.renderError(w, r, "ticker analysis failed", err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"result": report})
}

// AnalyzeMatrix handles POST /api/granger/matrix.
func (h *GrangerHandler) AnalyzeMatrix(w http.ResponseWriter, r *http.Request) {
	var req GrangerMatrixRequest
	if !h.decode(w, r, &req) {
		return
	}

	maxLag := h.service.MaxLagOrDefault(req.MaxLag)
	if !h.checkMaxLag(w, r, maxLag) {
		return
	}

	start, end, ok := h.dateRange(w, r, req.Start, req.End)
	if !ok {
		return
	}

	report, err := h.service.AnalyzeMatrix(r.Context(), req.Tickers, start, end, maxLag, h.service.AlphaOrDefault(req.Alpha))
	if err != nil {
		h.renderError(w, r, "matrix analysis failed", err)
		return
	}
	render.JSON(w, r, report)
}

func (h *GrangerHandler) decode(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := render.DecodeJSON(r.Body, req); err != nil {
		h.render(w, r, apierrors.InvalidRequestWithError(err))
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		h.render(w, r, apierrors.NewWithDetails(
			http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", err.Error()))
		return false
	}
	return true
}

func (h *GrangerHandler) checkMaxLag(w http.ResponseWriter, r *http.Request, maxLag int) bool {
	if maxLag > h.maxLagLimit {
		h.render(w, r, apierrors.ErrValidation("max_lag",
			fmt.Sprintf("max_lag %d exceeds limit %d", maxLag, h.maxLagLimit)))
		return false
	}
	return true
}

func (h *GrangerHandler) dateRange(w http.ResponseWriter, r *http.Request, startStr, endStr string) (start, end time.Time, ok bool) {
	var err error
	if startStr != "" {
		if start, err = time.Parse(dateLayout, startStr); err != nil {
			h.render(w, r, apierrors.ErrValidation("start", "expected YYYY-MM-DD"))
			return start, end, false
		}
	}
	if endStr != "" {
		if end, err = time.Parse(dateLayout, endStr); err != nil {
			h.render(w, r, apierrors.ErrValidation("end", "expected YYYY-MM-DD"))
			return start, end, false
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		h.render(w, r, apierrors.ErrValidation("end", "end date is before start date"))
		return start, end, false
	}
	return start, end, true
}

func (h *GrangerHandler) renderError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.WarnContext(r.Context(), msg,
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("error", err.Error()),
	)
	h.render(w, r, apierrors.FromDomain(err))
}

func (h *GrangerHandler) render(w http.ResponseWriter, r *http.Request, apiErr *apierrors.APIError) {
	if err := render.Render(w, r, apiErr); err != nil {
		http.Error(w, apiErr.Message, apiErr.StatusCode)
	}
}
