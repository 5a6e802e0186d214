package openai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestNew_MissingAPIKey ensures the constructor rejects an empty API key.
func TestNew_MissingAPIKey(t *testing.T) {
	_, err := New("", "gpt-4o-mini")
	if err == nil {
		t.Fatal("expected error for empty API key")
	}
}

// TestNew_MissingModel ensures the constructor rejects an empty model.
func TestNew_MissingModel(t *testing.T) {
	_, err := New("sk-test", "")
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_Options checks that optional settings are accepted without error.
func TestNew_Options(t *testing.T) {
	p, err := New("sk-test", "gpt-4o-mini",
		WithBaseURL("https://custom.example.com"),
		WithTimeout(10*time.Second),
		WithMaxTokens(500),
	)
	if err != nil {
		t.Fatalf("unexpected error with valid options: %v", err)
	}
	if p.maxTokens != 500 {
		t.Errorf("expected maxTokens 500, got %d", p.maxTokens)
	}
}

// TestName checks the provider name used in logs and metrics.
func TestName(t *testing.T) {
	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.Name(); got != "openai" {
		t.Errorf("expected name openai, got %q", got)
	}
}

// TestGenerate_RoundTrip checks request shape and response extraction
// against a stubbed chat completions endpoint.
func TestGenerate_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var body struct {
			Model               string `json:"model"`
			MaxCompletionTokens int64  `json:"max_completion_tokens"`
			Messages            []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Model != "gpt-4o-mini" {
			t.Errorf("expected model gpt-4o-mini, got %q", body.Model)
		}
		if body.MaxCompletionTokens != 200 {
			t.Errorf("expected max_completion_tokens 200, got %d", body.MaxCompletionTokens)
		}
		if len(body.Messages) != 1 || body.Messages[0].Role != "user" {
			t.Errorf("expected a single user message, got %+v", body.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "SELECT 1"}}]}`))
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := p.Generate(t.Context(), "one row please")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "SELECT 1" {
		t.Errorf("expected completion SELECT 1, got %q", got)
	}
}

// TestGenerate_EmptyChoices checks that a choiceless response is an error.
func TestGenerate_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = p.Generate(t.Context(), "anything")
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}
