package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/boxplan/internal/calculator"
	"github.com/eugenenazirov/boxplan/internal/channel"
	"github.com/eugenenazirov/boxplan/internal/storage"
)

const validPlanPayload = `{
	"channel": "express",
	"box": {"length": 60, "width": 50, "height": 40, "tareWeight": 1.35},
	"pricePerKg": 16,
	"skus": [["SKU1", 20, 15, 10, 2], ["SKU2", "70", "60", "50", "10"]]
}`

type controllableClock struct {
	mu  sync.RWMutex
	now time.Time
}

func newControllableClock(initial time.Time) *controllableClock {
	return &controllableClock{now: initial}
}

func (c *controllableClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *controllableClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setupTestRouter(t *testing.T) (http.Handler, *controllableClock) {
	t.Helper()

	store := storage.NewMemoryStorage()
	calc := calculator.New(channel.DefaultTable())
	clock := newControllableClock(time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC))

	handler := NewHandler(calc, store, WithClock(clock.Now), WithLogger(zaptest.NewLogger(t)))
	logger := zaptest.NewLogger(t)
	router := NewRouter(handler, logger, WithLogging(false), WithRateLimit(0, 0))

	return router, clock
}

func doRequest(t *testing.T, router http.Handler, method, target, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createPlan(t *testing.T, router http.Handler, payload string) storage.StoredPlan {
	t.Helper()
	rec := doRequest(t, router, http.MethodPost, "/api/plans", "application/json", []byte(payload))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var stored storage.StoredPlan
	if err := json.Unmarshal(rec.Body.Bytes(), &stored); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return stored
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := contextWithRequestID(context.Background(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
	if got := requestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %s", got)
	}
}

func TestWriteInternalError(t *testing.T) {
	h := NewHandler(calculator.New(channel.DefaultTable()), storage.NewMemoryStorage(), WithLogger(zaptest.NewLogger(t)))
	resp := httptest.NewRecorder()
	h.writeInternalError(resp, errors.New("boom"))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if got := decodeError(t, resp); got.Details != "boom" {
		t.Fatalf("unexpected error payload %+v", got)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router, clock := setupTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" || !resp.Timestamp.Equal(clock.Now()) {
		t.Fatalf("unexpected health response %+v", resp)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestChannelsEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/channels", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp channelsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Channels) != 3 {
		t.Fatalf("expected 3 channels, got %d", len(resp.Channels))
	}
	if resp.Channels[0].Name != channel.Air {
		t.Fatalf("expected channels sorted by name, got %s first", resp.Channels[0].Name)
	}
}

func TestCreatePlan(t *testing.T) {
	router, clock := setupTestRouter(t)

	stored := createPlan(t, router, validPlanPayload)

	if stored.ID == "" {
		t.Fatalf("expected generated id")
	}
	if !stored.CreatedAt.Equal(clock.Now()) {
		t.Fatalf("expected createdAt %s, got %s", clock.Now(), stored.CreatedAt)
	}
	if stored.Source != storage.SourceJSON {
		t.Fatalf("expected json source, got %s", stored.Source)
	}
	plan := stored.Plan
	if plan.Channel.Name != channel.Express || len(plan.Records) != 2 {
		t.Fatalf("unexpected plan %+v", plan)
	}
	if !plan.Records[0].Accepted() || plan.Records[1].Accepted() {
		t.Fatalf("expected first SKU accepted and second rejected, got %+v", plan.Records)
	}
	if plan.Warnings == nil {
		t.Fatalf("expected warnings to encode as an empty list")
	}

	rec := doRequest(t, router, http.MethodGet, "/api/plans/"+stored.ID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected stored plan to be retrievable, got %d", rec.Code)
	}
}

func TestCreatePlanRejectsInvalidInput(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		name    string
		payload string
		title   string
		details string
	}{
		{
			name:    "malformed JSON",
			payload: `{"channel":`,
			title:   "Invalid request",
			details: "unable to parse JSON payload",
		},
		{
			name:    "missing fields",
			payload: `{"skus": [["SKU1", 1, 1, 1, 1]]}`,
			title:   "Invalid request",
			details: "channel is required",
		},
		{
			name:    "empty skus",
			payload: `{"channel":"sea","box":{"length":1,"width":1,"height":1},"pricePerKg":1,"skus":[]}`,
			title:   "Invalid request",
			details: "skus must contain at least 1 item(s)",
		},
		{
			name:    "non-positive box",
			payload: `{"channel":"sea","box":{"length":0,"width":1,"height":1},"pricePerKg":1,"skus":[["A",1,1,1,1]]}`,
			title:   "Invalid request",
			details: "box.length must be greater than 0",
		},
		{
			name:    "unsupported cell",
			payload: `{"channel":"sea","box":{"length":1,"width":1,"height":1},"pricePerKg":1,"skus":[["A",true,1,1,1]]}`,
			title:   "Invalid request",
			details: "skus[0][1]",
		},
		{
			name:    "bad SKU value",
			payload: `{"channel":"sea","box":{"length":60,"width":50,"height":40},"pricePerKg":1,"skus":[["A","x",1,1,1]]}`,
			title:   "Invalid request",
			details: "row 1",
		},
		{
			name:    "negative price",
			payload: `{"channel":"sea","box":{"length":60,"width":50,"height":40},"pricePerKg":-1,"skus":[["A",1,1,1,1]]}`,
			title:   "Invalid request",
			details: calculator.ErrInvalidPrice.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/api/plans", "application/json", []byte(tt.payload))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			resp := decodeError(t, rec)
			if resp.Error != tt.title || !strings.Contains(resp.Details, tt.details) {
				t.Fatalf("unexpected error payload %+v", resp)
			}
		})
	}
}

func TestCreatePlanRejectsOversizedBody(t *testing.T) {
	router, _ := setupTestRouter(t)

	payload := `{"channel":"` + strings.Repeat("x", maxJSONBodyBytes) + `"}`
	rec := doRequest(t, router, http.MethodPost, "/api/plans", "application/json", []byte(payload))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeError(t, rec); resp.Error != "Request too large" {
		t.Fatalf("unexpected error payload %+v", resp)
	}
}

func TestCreatePlanUnknownChannelSuggestsAlternatives(t *testing.T) {
	router, _ := setupTestRouter(t)

	payload := strings.Replace(validPlanPayload, `"express"`, `"rail"`, 1)
	rec := doRequest(t, router, http.MethodPost, "/api/plans", "application/json", []byte(payload))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	resp := decodeError(t, rec)
	if resp.Error != "Invalid channel" {
		t.Fatalf("unexpected error %q", resp.Error)
	}
	if resp.Suggestion != "Use one of: air, express, sea" {
		t.Fatalf("unexpected suggestion %q", resp.Suggestion)
	}
}

func TestListPlans(t *testing.T) {
	router, clock := setupTestRouter(t)

	first := createPlan(t, router, validPlanPayload)
	clock.Advance(time.Minute)
	second := createPlan(t, router, validPlanPayload)

	rec := doRequest(t, router, http.MethodGet, "/api/plans", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp planListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 || resp.Plans[0].ID != second.ID || resp.Plans[1].ID != first.ID {
		t.Fatalf("expected newest plan first, got %+v", resp.Plans)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/plans?limit=1", "", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 || resp.Plans[0].ID != second.ID {
		t.Fatalf("expected only the newest plan, got %+v", resp.Plans)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/plans?limit=zero", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid limit, got %d", rec.Code)
	}
}

func TestListPlansEmpty(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/plans", "", nil)
	if !strings.Contains(rec.Body.String(), `"plans":[]`) {
		t.Fatalf("expected empty plan list, got %s", rec.Body.String())
	}
}

func TestGetPlanNotFound(t *testing.T) {
	router, _ := setupTestRouter(t)

	for _, path := range []string{"/api/plans/missing", "/api/plans/missing/report", "/api/plans/missing/export"} {
		rec := doRequest(t, router, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestPlanReport(t *testing.T) {
	router, _ := setupTestRouter(t)
	stored := createPlan(t, router, validPlanPayload)

	rec := doRequest(t, router, http.MethodGet, "/api/plans/"+stored.ID+"/report", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != contentTypeMarkdown {
		t.Fatalf("unexpected content type %s", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "| SKU1 |") || !strings.Contains(body, "**Channel**: express") {
		t.Fatalf("unexpected report:\n%s", body)
	}
}

func TestPlanExport(t *testing.T) {
	router, _ := setupTestRouter(t)
	stored := createPlan(t, router, validPlanPayload)

	tests := []struct {
		query       string
		contentType string
		filename    string
		prefix      string
	}{
		{"", contentTypeXLSX, "plan-" + stored.ID + ".xlsx", "PK"},
		{"?format=csv", contentTypeCSV, "plan-" + stored.ID + ".csv", "SKU-ID"},
	}

	for _, tt := range tests {
		rec := doRequest(t, router, http.MethodGet, "/api/plans/"+stored.ID+"/export"+tt.query, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%q: expected 200, got %d", tt.query, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != tt.contentType {
			t.Fatalf("%q: unexpected content type %s", tt.query, ct)
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, tt.filename) {
			t.Fatalf("%q: unexpected disposition %s", tt.query, cd)
		}
		if !strings.HasPrefix(rec.Body.String(), tt.prefix) {
			t.Fatalf("%q: unexpected body prefix", tt.query)
		}
	}

	rec := doRequest(t, router, http.MethodGet, "/api/plans/"+stored.ID+"/export?format=pdf", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", rec.Code)
	}
}

func TestTemplateEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/template", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != contentTypeXLSX {
		t.Fatalf("unexpected content type %s", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "PK") {
		t.Fatalf("expected a zip-based workbook")
	}
}

func uploadForm(t *testing.T, filename, content string, fields map[string]string) (string, []byte) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return mw.FormDataContentType(), body.Bytes()
}

func uploadFields() map[string]string {
	return map[string]string{
		"channel":    "express",
		"boxLength":  "60",
		"boxWidth":   "50",
		"boxHeight":  "40",
		"tareWeight": "1.35",
		"pricePerKg": "16",
	}
}

func TestUploadPlan(t *testing.T) {
	router, _ := setupTestRouter(t)

	csv := "SKU-ID,Length,Width,Height,Unit weight\nSKU1,20,15,10,2\n,,,,\n"
	contentType, body := uploadForm(t, "skus.csv", csv, uploadFields())

	rec := doRequest(t, router, http.MethodPost, "/api/plans/upload", contentType, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var stored storage.StoredPlan
	if err := json.Unmarshal(rec.Body.Bytes(), &stored); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stored.Source != storage.SourceUpload || len(stored.Plan.Records) != 1 {
		t.Fatalf("unexpected stored plan %+v", stored)
	}
	if stored.Plan.Box.TareWeight != 1.35 {
		t.Fatalf("expected tare weight from form, got %v", stored.Plan.Box.TareWeight)
	}
}

func TestUploadPlanRejectsInvalidInput(t *testing.T) {
	router, _ := setupTestRouter(t)
	csv := "SKU1,20,15,10,2\n"

	missingLength := uploadFields()
	delete(missingLength, "boxLength")
	badPrice := uploadFields()
	badPrice["pricePerKg"] = "cheap"

	tests := []struct {
		name     string
		filename string
		fields   map[string]string
		details  string
	}{
		{"missing file", "", uploadFields(), "file is required"},
		{"unsupported format", "skus.txt", uploadFields(), "unsupported"},
		{"missing box length", "skus.csv", missingLength, "boxLength is required"},
		{"malformed price", "skus.csv", badPrice, "pricePerKg must be a number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contentType, body := uploadForm(t, tt.filename, csv, tt.fields)
			rec := doRequest(t, router, http.MethodPost, "/api/plans/upload", contentType, body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if resp := decodeError(t, rec); !strings.Contains(resp.Details, tt.details) {
				t.Fatalf("unexpected details %q", resp.Details)
			}
		})
	}

	rec := doRequest(t, router, http.MethodPost, "/api/plans/upload", "application/json", []byte(`{}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-multipart body, got %d", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/pack-sizes", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = doRequest(t, router, http.MethodDelete, "/api/channels", "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
