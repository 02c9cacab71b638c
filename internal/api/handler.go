package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/eugenenazirov/boxplan/internal/allocation"
	"github.com/eugenenazirov/boxplan/internal/calculator"
	"github.com/eugenenazirov/boxplan/internal/carton"
	"github.com/eugenenazirov/boxplan/internal/channel"
	"github.com/eugenenazirov/boxplan/internal/metrics"
	"github.com/eugenenazirov/boxplan/internal/report"
	"github.com/eugenenazirov/boxplan/internal/sheet"
	"github.com/eugenenazirov/boxplan/internal/sku"
	"github.com/eugenenazirov/boxplan/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const (
	defaultListLimit      = 20
	maxListLimit          = 100
	defaultMaxUploadBytes = 5 << 20
	maxJSONBodyBytes      = 1 << 20
)

const (
	contentTypeXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV      = "text/csv; charset=utf-8"
	contentTypeMarkdown = "text/markdown; charset=utf-8"
)

// Handler wires calculator, storage and metrics dependencies into HTTP handlers.
type Handler struct {
	calculator calculator.Calculator
	storage    storage.Storage
	metrics    *metrics.Metrics
	logger     *zap.Logger

	clock          func() time.Time
	maxUploadBytes int64
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithMetrics records plan outcomes on m.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithLogger sets the logger used for handler-level events.
func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMaxUploadBytes caps the size of uploaded sheets.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(calc calculator.Calculator, store storage.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		calculator: calc,
		storage:    store,
		logger:     zap.NewNop(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleChannels(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, channelsResponse{Channels: h.calculator.Channels().Rules()})
}

func (h *Handler) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request too large",
				fmt.Sprintf("JSON body must be at most %d bytes", maxJSONBodyBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}
	if err := requestValidator().Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", validationDetails(err))
		return
	}

	rows, err := req.rows()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	h.computeAndStore(r.Context(), w, storage.SourceJSON, calculator.Request{
		Channel:    req.Channel,
		Rows:       rows,
		Box:        req.Box.carton(),
		PricePerKg: *req.PricePerKg,
	})
}

func (h *Handler) handleUploadPlan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload too large",
				fmt.Sprintf("file must be at most %d bytes", h.maxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request", "expected a multipart form upload")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "file is required")
		return
	}
	defer file.Close()

	rows, err := sheet.Parse(header.Filename, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid file", err.Error())
		return
	}

	box, price, err := uploadParameters(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	h.computeAndStore(r.Context(), w, storage.SourceUpload, calculator.Request{
		Channel:    r.FormValue("channel"),
		Rows:       rows,
		Box:        box,
		PricePerKg: price,
	})
}

func (h *Handler) handleListPlans(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid request", "limit must be a positive integer")
			return
		}
		limit = min(value, maxListLimit)
	}

	plans, err := h.storage.ListPlans(r.Context(), limit)
	if err != nil {
		h.writeInternalError(w, err)
		return
	}
	if plans == nil {
		plans = []storage.StoredPlan{}
	}
	writeJSON(w, http.StatusOK, planListResponse{Plans: plans, Count: len(plans)})
}

func (h *Handler) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	stored, ok := h.lookupPlan(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (h *Handler) handlePlanReport(w http.ResponseWriter, r *http.Request) {
	stored, ok := h.lookupPlan(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", contentTypeMarkdown)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report.Markdown(stored.Plan)))
}

func (h *Handler) handleExportPlan(w http.ResponseWriter, r *http.Request) {
	stored, ok := h.lookupPlan(w, r)
	if !ok {
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "xlsx"
	}

	var (
		buf         bytes.Buffer
		contentType string
		err         error
	)
	switch format {
	case "xlsx":
		contentType = contentTypeXLSX
		err = sheet.WriteXLSX(&buf, stored.Plan)
	case "csv":
		contentType = contentTypeCSV
		err = sheet.WriteCSV(&buf, stored.Plan)
	default:
		writeError(w, http.StatusBadRequest, "Invalid request", "format must be xlsx or csv")
		return
	}
	if err != nil {
		h.writeInternalError(w, err)
		return
	}

	writeAttachment(w, contentType, fmt.Sprintf("plan-%s.%s", stored.ID, format), buf.Bytes())
}

func (h *Handler) handleTemplate(w http.ResponseWriter, r *http.Request) {
	_ = r
	var buf bytes.Buffer
	if err := sheet.WriteTemplate(&buf); err != nil {
		h.writeInternalError(w, err)
		return
	}
	writeAttachment(w, contentTypeXLSX, "boxplan-template.xlsx", buf.Bytes())
}

func (h *Handler) computeAndStore(ctx context.Context, w http.ResponseWriter, source string, req calculator.Request) {
	start := time.Now()
	plan, err := h.calculator.Compute(req)
	elapsed := time.Since(start)

	if err != nil {
		if isInputError(err) {
			h.metrics.ObserveFailure(req.Channel, metrics.OutcomeInvalid)
			h.writeComputeError(w, err)
			return
		}
		h.metrics.ObserveFailure(req.Channel, metrics.OutcomeError)
		h.writeInternalError(w, err)
		return
	}
	h.metrics.ObservePlan(plan, elapsed)

	stored := storage.NewStoredPlan(source, plan, h.clock())
	if err := h.storage.SavePlan(ctx, stored); err != nil {
		h.writeInternalError(w, err)
		return
	}

	requestID := requestIDFromContext(ctx)
	h.logger.Info("plan computed",
		zap.String("plan_id", stored.ID),
		zap.String("channel", plan.Channel.Name),
		zap.Int("skus", len(plan.Records)),
		zap.Int("accepted", plan.Accepted()),
		zap.Float64("total_cost", plan.Summary.TotalCost),
		zap.Duration("duration", elapsed),
		zap.String("request_id", requestID),
	)
	for _, rec := range plan.Records {
		if rec.Accepted() {
			continue
		}
		h.logger.Debug("sku rejected",
			zap.String("plan_id", stored.ID),
			zap.String("sku_id", rec.SKUID),
			zap.String("reason", string(rec.Rejection)),
			zap.String("request_id", requestID),
		)
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (h *Handler) lookupPlan(w http.ResponseWriter, r *http.Request) (storage.StoredPlan, bool) {
	id := chi.URLParam(r, "id")
	stored, err := h.storage.GetPlan(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Plan not found", fmt.Sprintf("no plan with id %q", id))
			return storage.StoredPlan{}, false
		}
		h.writeInternalError(w, err)
		return storage.StoredPlan{}, false
	}
	return stored, true
}

func (h *Handler) writeComputeError(w http.ResponseWriter, err error) {
	if errors.Is(err, calculator.ErrInvalidChannel) {
		suggestion := fmt.Sprintf("Use one of: %s", strings.Join(h.calculator.Channels().Names(), ", "))
		writeError(w, http.StatusBadRequest, "Invalid channel", err.Error(), suggestion)
		return
	}
	writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
}

func (h *Handler) writeInternalError(w http.ResponseWriter, err error) {
	h.logger.Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}

// isInputError reports whether err was caused by the caller's input.
func isInputError(err error) bool {
	var validation *sku.ValidationError
	switch {
	case errors.As(err, &validation):
		return true
	case errors.Is(err, calculator.ErrEmptyInput),
		errors.Is(err, channel.ErrInvalidChannel),
		errors.Is(err, carton.ErrInvalidBox),
		errors.Is(err, calculator.ErrInvalidPrice),
		errors.Is(err, allocation.ErrInvalidBand):
		return true
	default:
		return false
	}
}

func uploadParameters(r *http.Request) (carton.Box, float64, error) {
	fields := []struct {
		name     string
		required bool
	}{
		{"boxLength", true},
		{"boxWidth", true},
		{"boxHeight", true},
		{"tareWeight", false},
		{"pricePerKg", true},
	}

	values := make(map[string]float64, len(fields))
	for _, f := range fields {
		raw := strings.TrimSpace(r.FormValue(f.name))
		if raw == "" {
			if f.required {
				return carton.Box{}, 0, fmt.Errorf("%s is required", f.name)
			}
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return carton.Box{}, 0, fmt.Errorf("%s must be a number", f.name)
		}
		values[f.name] = value
	}

	box := carton.Box{
		Length:     values["boxLength"],
		Width:      values["boxWidth"],
		Height:     values["boxHeight"],
		TareWeight: values["tareWeight"],
	}
	return box, values["pricePerKg"], nil
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type channelsResponse struct {
	Channels []channel.Rule `json:"channels"`
}

type planListResponse struct {
	Plans []storage.StoredPlan `json:"plans"`
	Count int                  `json:"count"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}
