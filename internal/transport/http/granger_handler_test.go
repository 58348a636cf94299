package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketsignal/internal/granger"
)

type stubService struct {
	report       *granger.Report
	matrixReport *granger.MatrixReport
	err          error

	gotMaxLag  int
	gotTickers []string
	gotStart   time.Time
	gotEnd     time.Time
}

func (s *stubService) AnalyzeSeries(ctx context.Context, x, y []float64, maxLag int) (*granger.Report, error) {
	s.gotMaxLag = maxLag
	return s.report, s.err
}

func (s *stubService) AnalyzeTickers(ctx context.Context, tickerX, tickerY string, start, end time.Time, maxLag int) (*granger.Report, error) {
	s.gotMaxLag = maxLag
	s.gotTickers = []string{tickerX, tickerY}
	s.gotStart, s.gotEnd = start, end
	return s.report, s.err
}

func (s *stubService) AnalyzeMatrix(ctx context.Context, tickers []string, start, end time.Time, maxLag int, alpha float64) (*granger.MatrixReport, error) {
	s.gotMaxLag = maxLag
	s.gotTickers = tickers
	return s.matrixReport, s.err
}

func (s *stubService) MaxLagOrDefault(maxLag int) int {
	if maxLag < 1 {
		return 5
	}
	return maxLag
}

func (s *stubService) AlphaOrDefault(alpha float64) float64 {
	if alpha <= 0 || alpha >= 1 {
		return 0.05
	}
	return alpha
}

func newTestHandler(svc *stubService) *GrangerHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGrangerHandler(svc, logger, 30)
}

func doRequest(t *testing.T, h *GrangerHandler, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func sampleReport() *granger.Report {
	return &granger.Report{
		PValuesByLag: map[int]float64{1: 0.003, 2: 0.4},
		BestLag:      1,
		MinP:         0.003,
	}
}

func TestAnalyzeSeriesOK(t *testing.T) {
	svc := &stubService{report: sampleReport()}
	h := newTestHandler(svc)

	rec := doRequest(t, h, "/series", `{
		"series_x": [1, 2, 3, 4, 5, 6, 7, 8],
		"series_y": [2, 3, 4, 5, 6, 7, 8, 9],
		"max_lag": 2
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, svc.gotMaxLag)

	var resp struct {
		Result struct {
			PValuesByLag map[string]float64 `json:"p_values_by_lag"`
			BestLag      int                `json:"best_lag"`
			MinP         float64            `json:"min_p"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Result.BestLag)
	assert.Equal(t, 0.003, resp.Result.MinP)
	assert.Equal(t, 0.003, resp.Result.PValuesByLag["1"])
}

func TestAnalyzeSeriesDefaultsMaxLag(t *testing.T) {
	svc := &stubService{report: sampleReport()}
	h := newTestHandler(svc)

	rec := doRequest(t, h, "/series", `{"series_x": [1, 2, 3], "series_y": [4, 5, 6]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, svc.gotMaxLag)
}

func TestAnalyzeSeriesMalformedJSON(t *testing.T) {
	h := newTestHandler(&stubService{})

	rec := doRequest(t, h, "/series", `{"series_x": [1, 2`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var apiErr struct {
		ErrorCode string `json:"error_code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "INVALID_REQUEST", apiErr.ErrorCode)
}

func TestAnalyzeSeriesValidation(t *testing.T) {
	h := newTestHandler(&stubService{})

	rec := doRequest(t, h, "/series", `{"series_x": [1, 2, 3]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var apiErr struct {
		ErrorCode string `json:"error_code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)
}

func TestAnalyzeSeriesMaxLagOverLimit(t *testing.T) {
	h := newTestHandler(&stubService{})

	rec := doRequest(t, h, "/series", `{"series_x": [1, 2], "series_y": [3, 4], "max_lag": 31}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "exceeds limit")
}

func TestAnalyzeSeriesDomainError(t *testing.T) {
	svc := &stubService{err: &granger.InsufficientDataError{Required: 22, Available: 10}}
	h := newTestHandler(svc)

	rec := doRequest(t, h, "/series", `{"series_x": [1, 2], "series_y": [3, 4], "max_lag": 10}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var apiErr struct {
		ErrorCode string         `json:"error_code"`
		Details   map[string]int `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "INSUFFICIENT_DATA", apiErr.ErrorCode)
	assert.Equal(t, 22, apiErr.Details["required"])
}

func TestAnalyzeTickersOK(t *testing.T) {
	svc := &stubService{report: sampleReport()}
	h := newTestHandler(svc)

	rec := doRequest(t, h, "/tickers", `{
		"ticker_x": "AAPL",
		"ticker_y": "MSFT",
		"start": "2024-01-01",
		"end": "2024-06-30",
		"max_lag": 3
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"AAPL", "MSFT"}, svc.gotTickers)
	assert.Equal(t, 3, svc.gotMaxLag)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), svc.gotStart)
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), svc.gotEnd)
}

func TestAnalyzeTickersBadDateOrder(t *testing.T) {
	h := newTestHandler(&stubService{report: sampleReport()})

	rec := doRequest(t, h, "/tickers", `{
		"ticker_x": "AAPL",
		"ticker_y": "MSFT",
		"start": "2024-06-30",
		"end": "2024-01-01"
	}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "before start")
}

func TestAnalyzeTickersMissingTicker(t *testing.T) {
	h := newTestHandler(&stubService{})

	rec := doRequest(t, h, "/tickers", `{"ticker_x": "AAPL"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeMatrixOK(t *testing.T) {
	svc := &stubService{matrixReport: &granger.MatrixReport{
		Tickers:     []string{"AAPL", "MSFT"},
		MaxLag:      2,
		Alpha:       0.05,
		PValues:     [][]float64{{1.0, 0.01}, {0.3, 1.0}},
		Significant: [][]bool{{false, true}, {false, false}},
	}}
	h := newTestHandler(svc)

	rec := doRequest(t, h, "/matrix", `{"tickers": ["AAPL", "MSFT"], "max_lag": 2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"AAPL", "MSFT"}, svc.gotTickers)

	var resp granger.MatrixReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"AAPL", "MSFT"}, resp.Tickers)
	assert.True(t, resp.Significant[0][1])
}

func TestAnalyzeMatrixNeedsTwoTickers(t *testing.T) {
	h := newTestHandler(&stubService{})

	rec := doRequest(t, h, "/matrix", `{"tickers": ["AAPL"]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeMatrixBadAlpha(t *testing.T) {
	h := newTestHandler(&stubService{})

	rec := doRequest(t, h, "/matrix", `{"tickers": ["AAPL", "MSFT"], "alpha": 1.5}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
