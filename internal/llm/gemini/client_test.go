package gemini

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCompleteParsesCandidateText(t *testing.T) {
	var gotPath, gotKey, gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		if r.URL.RawQuery != "" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		var req generateRequest
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Contents) == 1 && len(req.Contents[0].Parts) == 1 {
			gotPrompt = req.Contents[0].Parts[0].Text
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"summary\":\"ok\",\"tags\":[\"a\"]}"}]}}]}`))
	}))
	defer srv.Close()

	c, err := New("secret", "gemini-test", srv.URL, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := c.Complete(t.Context(), "summarize this")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"summary":"ok","tags":["a"]}` {
		t.Fatalf("unexpected text %q", out)
	}
	if gotPath != "/models/gemini-test:generateContent" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotKey != "secret" || gotPrompt != "summarize this" {
		t.Fatalf("unexpected key/prompt %q %q", gotKey, gotPrompt)
	}
}

func TestCompleteReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`))
	}))
	defer srv.Close()

	c, _ := New("secret", "", srv.URL, time.Second)
	_, err := c.Complete(t.Context(), "p")
	if err == nil || !strings.Contains(err.Error(), "http status 500") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestCompleteNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c, _ := New("secret", "", srv.URL, time.Second)
	if _, err := c.Complete(t.Context(), "p"); err == nil {
		t.Fatalf("expected error for empty candidates")
	}
}

func TestConnectionErrorDoesNotLeakKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c, _ := New("super-secret-key", "", srv.URL, time.Second)
	_, err := c.Complete(t.Context(), "p")
	if err == nil {
		t.Fatalf("expected connection error")
	}
	if strings.Contains(err.Error(), "super-secret-key") {
		t.Fatalf("error leaks api key: %v", err)
	}
}

func TestTimeoutDoesNotLeakKey(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, _ := New("super-secret-key", "", srv.URL, 50*time.Millisecond)
	_, err := c.Complete(t.Context(), "p")
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if strings.Contains(err.Error(), "super-secret-key") || strings.Contains(err.Error(), srv.URL) {
		t.Fatalf("error leaks request url or key: %v", err)
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(" ", "", "", 0); err == nil {
		t.Fatalf("expected error without key")
	}
}
