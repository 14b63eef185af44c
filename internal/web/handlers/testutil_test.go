package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/facevote/internal/biometric"
	"github.com/kozaktomas/facevote/internal/config"
	"github.com/kozaktomas/facevote/internal/database"
	"github.com/kozaktomas/facevote/internal/database/mock"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Biometric: config.BiometricConfig{
			Backend:        "blazeface",
			Threshold:      0.6,
			MinMatches:     3,
			TargetCount:    3,
			CaptureBudget:  2 * time.Second,
			MaxAttempts:    3,
			SessionTimeout: 30 * time.Second,
		},
	}
}

// setupStore registers a mock store as the postgres backend. Cleanup deregisters it.
func setupStore(t *testing.T) *mock.MockStore {
	t.Helper()
	store := mock.NewMockStore()
	database.RegisterPostgresBackend(func() database.Store { return store })
	t.Cleanup(database.ResetForTesting)
	return store
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonRequest creates a request with body encoded as JSON
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// assertErrorKind checks the kind of a classified error response
func assertErrorKind(t *testing.T, recorder *httptest.ResponseRecorder, expected biometric.Kind) {
	t.Helper()
	var result errorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result.Kind != expected {
		t.Errorf("expected kind '%s', got '%s' (%s)", expected, result.Kind, result.Error)
	}
}

// face returns a descriptor near the reference face identified by seed.
func face(seed, jitter float64) []float64 {
	v := make([]float64, biometric.DescriptorSize)
	for i := range v {
		v[i] = seed
	}
	v[0] += jitter
	return v
}

func enrollment(seed float64, n int) biometric.EnrollmentSet {
	set := make(biometric.EnrollmentSet, n)
	for i := range set {
		set[i] = face(seed, float64(i)*0.01)
	}
	return set
}

// addVoter stores an enrolled voter and returns its ID
func addVoter(store *mock.MockStore, externalID string, seed float64) int64 {
	return store.AddVoter(database.Voter{
		ExternalID:  externalID,
		Name:        "Voter " + externalID,
		Descriptors: enrollment(seed, 5),
	})
}
