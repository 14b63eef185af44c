package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kozaktomas/facevote/internal/biometric"
	"github.com/kozaktomas/facevote/internal/constants"
)

func TestRespondJSON_SetsContentType(t *testing.T) {
	recorder := httptest.NewRecorder()
	data := map[string]string{"status": "ok"}

	respondJSON(recorder, http.StatusOK, data)

	contentType := recorder.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got '%s'", contentType)
	}
}

func TestRespondJSON_SetsStatusCode(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"OK", http.StatusOK},
		{"Created", http.StatusCreated},
		{"BadRequest", http.StatusBadRequest},
		{"NotFound", http.StatusNotFound},
		{"InternalServerError", http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondJSON(recorder, tc.statusCode, nil)

			if recorder.Code != tc.statusCode {
				t.Errorf("expected status %d, got %d", tc.statusCode, recorder.Code)
			}
		})
	}
}

func TestRespondJSON_EncodesData(t *testing.T) {
	recorder := httptest.NewRecorder()
	data := map[string]interface{}{
		"message": "hello",
		"count":   42,
		"active":  true,
	}

	respondJSON(recorder, http.StatusOK, data)

	var result map[string]interface{}
	err := json.Unmarshal(recorder.Body.Bytes(), &result)
	if err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if result["message"] != "hello" {
		t.Errorf("expected message 'hello', got '%v'", result["message"])
	}

	if result["count"] != float64(42) { // JSON numbers are float64
		t.Errorf("expected count 42, got %v", result["count"])
	}

	if result["active"] != true {
		t.Errorf("expected active true, got %v", result["active"])
	}
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusOK, nil)

	if recorder.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}

	// Body should be empty for nil data
	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got '%s'", recorder.Body.String())
	}
}

func TestRespondJSON_EmptyMap(t *testing.T) {
	recorder := httptest.NewRecorder()
	data := map[string]string{}

	respondJSON(recorder, http.StatusOK, data)

	expected := "{}\n"
	if recorder.Body.String() != expected {
		t.Errorf("expected '%s', got '%s'", expected, recorder.Body.String())
	}
}

func TestRespondJSON_Array(t *testing.T) {
	recorder := httptest.NewRecorder()
	data := []string{"one", "two", "three"}

	respondJSON(recorder, http.StatusOK, data)

	var result []string
	err := json.Unmarshal(recorder.Body.Bytes(), &result)
	if err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if len(result) != 3 {
		t.Errorf("expected 3 items, got %d", len(result))
	}
}

func TestRespondError_SetsStatusCode(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"BadRequest", http.StatusBadRequest},
		{"Unauthorized", http.StatusUnauthorized},
		{"NotFound", http.StatusNotFound},
		{"InternalServerError", http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondError(recorder, tc.statusCode, "test error")

			if recorder.Code != tc.statusCode {
				t.Errorf("expected status %d, got %d", tc.statusCode, recorder.Code)
			}
		})
	}
}

func TestRespondError_ContainsErrorKey(t *testing.T) {
	recorder := httptest.NewRecorder()
	errorMessage := "something went wrong"

	respondError(recorder, http.StatusBadRequest, errorMessage)

	var result map[string]string
	err := json.Unmarshal(recorder.Body.Bytes(), &result)
	if err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if result["error"] != errorMessage {
		t.Errorf("expected error '%s', got '%s'", errorMessage, result["error"])
	}
}

func TestRespondError_SetsContentType(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondError(recorder, http.StatusBadRequest, "error")

	contentType := recorder.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got '%s'", contentType)
	}
}

func TestHealthCheck_ReturnsOK(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	recorder := httptest.NewRecorder()

	HealthCheck(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
}

func TestHealthCheck_ReturnsJSON(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	recorder := httptest.NewRecorder()

	HealthCheck(recorder, req)

	contentType := recorder.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got '%s'", contentType)
	}
}

func TestHealthCheck_ReturnsStatusOk(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	recorder := httptest.NewRecorder()

	HealthCheck(recorder, req)

	var result map[string]any
	err := json.Unmarshal(recorder.Body.Bytes(), &result)
	if err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%v'", result["status"])
	}
	if result["database"] != false {
		t.Errorf("expected database false without a registered store, got %v", result["database"])
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("ab\r\ncd\n"); got != "abcd" {
		t.Errorf("expected 'abcd', got %q", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"Ada"}`, false},
		{"malformed", `{"name":`, true},
		{"unknown field", `{"name":"Ada","admin":true}`, true},
		{"trailing data", `{"name":"Ada"}{"name":"Bob"}`, true},
		{"empty", ``, true},
		{"oversized", `{"name":"` + strings.Repeat("a", constants.MaxRequestBodyBytes) + `"}`, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			recorder := httptest.NewRecorder()

			var p payload
			err := decodeJSON(recorder, req, &p)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if biometric.KindOf(err) != biometric.KindInvalidPayload {
					t.Errorf("expected invalid payload, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name != "Ada" {
				t.Errorf("expected name 'Ada', got %q", p.Name)
			}
		})
	}
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind   biometric.Kind
		status int
	}{
		{biometric.KindInvalidPayload, http.StatusBadRequest},
		{biometric.KindLengthMismatch, http.StatusBadRequest},
		{biometric.KindVoterNotFound, http.StatusNotFound},
		{biometric.KindSessionNotFound, http.StatusNotFound},
		{biometric.KindCandidateNotFound, http.StatusNotFound},
		{biometric.KindVoterAlreadyVoted, http.StatusConflict},
		{biometric.KindDuplicateExternalID, http.StatusConflict},
		{biometric.KindSessionBusy, http.StatusConflict},
		{biometric.KindEnrollmentIncomplete, http.StatusUnprocessableEntity},
		{biometric.KindNoSamplesCaptured, http.StatusUnprocessableEntity},
		{biometric.KindNoFaceDetected, http.StatusUnprocessableEntity},
		{biometric.KindVerificationRejected, http.StatusForbidden},
		{biometric.KindVerificationExhausted, http.StatusForbidden},
		{biometric.KindCancelled, http.StatusGone},
		{biometric.KindCameraAcquisitionFailed, http.StatusServiceUnavailable},
		{"", http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(string(tc.kind), func(t *testing.T) {
			if got := statusForKind(tc.kind); got != tc.status {
				t.Errorf("expected %d, got %d", tc.status, got)
			}
		})
	}
}

func TestRespondKindError_Classified(t *testing.T) {
	recorder := httptest.NewRecorder()
	err := fmt.Errorf("lookup: %w", biometric.ErrVoterAlreadyVoted)

	respondKindError(recorder, testLogger(), err)

	assertStatusCode(t, recorder, http.StatusConflict)
	assertErrorKind(t, recorder, biometric.KindVoterAlreadyVoted)
	assertJSONError(t, recorder, biometric.ErrVoterAlreadyVoted.Message)
}

func TestRespondKindError_LengthMismatchReportedAsInvalidPayload(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondKindError(recorder, testLogger(), biometric.ErrLengthMismatch)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertErrorKind(t, recorder, biometric.KindInvalidPayload)
}

func TestRespondKindError_UnclassifiedHidesDetails(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	recorder := httptest.NewRecorder()

	respondKindError(recorder, zap.New(core), errors.New("pq: connection refused"))

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "internal error")
	if logs.Len() != 1 {
		t.Errorf("expected the error to be logged once, got %d entries", logs.Len())
	}
}
