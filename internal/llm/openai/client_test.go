package openai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCompleteUsesJSONModeAndReturnsContent(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"summary\":\"s\",\"tags\":[]}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c, err := New("sk-test", "gpt-test", srv.URL+"/v1", time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := c.Complete(t.Context(), "prompt text")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"summary":"s","tags":[]}` {
		t.Fatalf("unexpected content %q", out)
	}
	if got["model"] != "gpt-test" {
		t.Fatalf("unexpected model %v", got["model"])
	}
	rf, _ := got["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", got["response_format"])
	}
}

func TestCompleteMapsAPIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	c, _ := New("sk-test", "", srv.URL+"/v1", time.Second)
	_, err := c.Complete(t.Context(), "p")
	if err == nil || !strings.Contains(err.Error(), "http status 503") {
		t.Fatalf("expected 503 error, got %v", err)
	}
}
