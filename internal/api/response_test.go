package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestJsonResponseWritesStatusAndContentType(t *testing.T) {
	rr := httptest.NewRecorder()
	jsonResponse(rr, 201, map[string]string{"id": "123"})

	if rr.Code != 201 {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["id"] != "123" {
		t.Fatalf("expected id=123, got %+v", body)
	}
}

func TestJsonErrorWrapsMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	jsonError(rr, 400, "bad input")

	if rr.Code != 400 {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "bad input" {
		t.Fatalf("expected error=bad input, got %+v", body)
	}
}
