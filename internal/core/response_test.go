package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

// --- JSON helper tests ---

func TestJSON_WritesEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	JSON(w, r, http.StatusOK, Envelope{Status: "success", Message: "ok"})

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}

	var body Envelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Status != "success" || body.Message != "ok" {
		t.Errorf("unexpected envelope: %+v", body)
	}
}

func TestSuccess_IncludesData(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)

	Success(w, r, "created", map[string]string{"series_id": "ser_1"})

	var body Envelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	data, ok := body.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected data map, got %T", body.Data)
	}
	if data["series_id"] != "ser_1" {
		t.Errorf("expected series_id ser_1, got %v", data["series_id"])
	}
}

// --- Error mapping tests ---

func TestError_AppErrorMapsStatus(t *testing.T) {
	cases := []struct {
		code   types.ErrorCode
		status int
	}{
		{types.ErrCodeValidationInvalidCadence, http.StatusBadRequest},
		{types.ErrCodeAuthSignatureInvalid, http.StatusUnauthorized},
		{types.ErrCodePermissionSubscriptionInactive, http.StatusForbidden},
		{types.ErrCodeNotFoundSeries, http.StatusNotFound},
		{types.ErrCodeConflictPendingVideo, http.StatusConflict},
		{types.ErrCodeInternalDB, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		Error(w, r, types.NewAppError(tc.code, "boom", nil))

		if w.Code != tc.status {
			t.Errorf("code %s: expected status %d, got %d", tc.code, tc.status, w.Code)
		}
	}
}

func TestError_WrappedAppError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	inner := types.NewAppError(types.ErrCodeNotFoundVideo, "video not found", nil)
	Error(w, r, errors.Join(errors.New("outer"), inner))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 from wrapped AppError, got %d", w.Code)
	}
}

func TestError_PlainErrorBecomesOpaque500(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(w, r, errors.New("pq: relation videos does not exist"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "relation") {
		t.Error("internal error detail leaked to the client")
	}
}

// --- DecodeJSON tests ---

func TestDecodeJSON_Success(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"test"}`))

	var dst struct {
		Name string `json:"name"`
	}
	if err := DecodeJSON(w, r, &dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst.Name != "test" {
		t.Errorf("expected name test, got %q", dst.Name)
	}
}

func TestDecodeJSON_EmptyBody(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))

	var dst struct{}
	err := DecodeJSON(w, r, &dst)
	if err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestDecodeJSON_UnknownField(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"bogus":true}`))

	var dst struct {
		Name string `json:"name"`
	}
	err := DecodeJSON(w, r, &dst)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.HTTPStatus() != http.StatusBadRequest {
		t.Errorf("expected 400 mapping, got %d", appErr.HTTPStatus())
	}
}

func TestDecodeJSON_TrailingValue(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}{"name":"b"}`))

	var dst struct {
		Name string `json:"name"`
	}
	if err := DecodeJSON(w, r, &dst); err == nil {
		t.Fatal("expected error for trailing JSON value")
	}
}

func TestDecodeJSON_MalformedJSON(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"name":`)))

	var dst struct {
		Name string `json:"name"`
	}
	if err := DecodeJSON(w, r, &dst); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
