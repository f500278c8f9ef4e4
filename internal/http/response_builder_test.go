package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"finreport/internal/api"
	"finreport/internal/core"
	"finreport/internal/services"
	"finreport/internal/storage"
)

func TestResponseBuilderWrite(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "1").
		JSON(map[string]int{"id": 3}).
		Write(rr)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	if rr.Header().Get("X-Custom") != "1" {
		t.Fatal("custom header missing")
	}
	if rr.Body.String() != `{"id":3}` {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestResponseBuilderNoBody(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(rr)
	if rr.Code != http.StatusNoContent || rr.Body.Len() != 0 {
		t.Fatalf("got %d %q", rr.Code, rr.Body.String())
	}
}

func TestErrorFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unauthorized", fmt.Errorf("monthly report: %w", api.ErrUnauthorized), http.StatusUnauthorized},
		{"backend 401", &api.APIError{Status: 401, Method: "GET", Path: "/x"}, http.StatusUnauthorized},
		{"no user", services.ErrNoUser, http.StatusUnauthorized},
		{"validation", &api.ValidationError{Fields: map[string]string{"email": "email"}}, http.StatusUnprocessableEntity},
		{"domain validation", core.ErrInvalidMonth, http.StatusUnprocessableEntity},
		{"bad param", &paramError{name: "id", value: "x"}, http.StatusBadRequest},
		{"archive not found", storage.ErrNotFound, http.StatusNotFound},
		{"backend conflict", &api.APIError{Status: 409, Message: "duplicate"}, http.StatusConflict},
		{"timeout", fmt.Errorf("list: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			ErrorFor(tt.err).Write(rr)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			var body errorBody
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body.Error == "" {
				t.Fatalf("expected error envelope, got %s", rr.Body.String())
			}
		})
	}
}

func TestErrorForHidesInternalDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorFor(errors.New("dial tcp 10.0.0.3:5432: connection refused")).Write(rr)
	if rr.Body.String() != `{"error":"internal server error"}` {
		t.Fatalf("internal error leaked: %s", rr.Body.String())
	}
}

func TestValidationErrorCarriesFields(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorFor(&api.ValidationError{Fields: map[string]string{"month": "max=12"}}).Write(rr)

	var body errorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Fields["month"] != "max=12" {
		t.Fatalf("unexpected fields: %v", body.Fields)
	}
}
