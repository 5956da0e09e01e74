package httputils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandleAPIResponseSuccess(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()

	HandleAPIResponse(w, r, map[string]string{"status": "ok"}, nil, http.StatusCreated)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
	if body := w.Body.String(); body != `{"status":"ok"}` {
		t.Errorf("Unexpected body %s", body)
	}
}

func TestHandleAPIResponseError(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()

	HandleAPIResponse(w, r, nil, errors.New("Year and month are required"), http.StatusBadRequest)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Body is not JSON: %v", err)
	}
	if resp.Error != "Year and month are required" {
		t.Errorf("Unexpected error message %q", resp.Error)
	}
}

func TestWriteJSONEncodingFailure(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	WriteJSON(w, r, http.StatusOK, make(chan int))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}
