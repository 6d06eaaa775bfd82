package nl2sql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerationPrompt(t *testing.T) {
	prompt := GenerationPrompt("CREATE TABLE users (id INT)", "show me all users")
	if prompt.Mode != ModeGenerate {
		t.Fatalf("Mode = %q", prompt.Mode)
	}
	if !strings.Contains(prompt.Instruction, "Use ONLY the provided schema info") {
		t.Fatalf("Instruction = %q", prompt.Instruction)
	}
	if prompt.SchemaMessage() != "Schema info:\nCREATE TABLE users (id INT)" {
		t.Fatalf("SchemaMessage() = %q", prompt.SchemaMessage())
	}
	if prompt.User != "User question: show me all users\nGenerate SQL for it." {
		t.Fatalf("User = %q", prompt.User)
	}
}

func TestRefinementPrompt(t *testing.T) {
	prompt := RefinementPrompt("", "SELECT * FROM orders", "only orders from 2023")
	if prompt.Mode != ModeRefine {
		t.Fatalf("Mode = %q", prompt.Mode)
	}
	if !strings.Contains(prompt.Instruction, "refine or update the existing SQL query") {
		t.Fatalf("Instruction = %q", prompt.Instruction)
	}
	want := "Current SQL:\nSELECT * FROM orders\n\nUser refinement: only orders from 2023\n\nNow update the SQL accordingly."
	if prompt.User != want {
		t.Fatalf("User = %q", prompt.User)
	}
}

func TestOpenAIClientSendsMessagesAndReturnsContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("Authorization = %q", got)
		}
		var payload struct {
			Model       string    `json:"model"`
			Temperature float64   `json:"temperature"`
			Messages    []message `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Model != "gpt-test" || payload.Temperature != 0 {
			t.Fatalf("payload = %+v", payload)
		}
		if len(payload.Messages) != 3 || payload.Messages[0].Role != "system" || payload.Messages[2].Role != "user" {
			t.Fatalf("messages = %+v", payload.Messages)
		}
		if payload.Messages[1].Content != "Schema info:\nCREATE TABLE users (id INT)" {
			t.Fatalf("schema message = %q", payload.Messages[1].Content)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "```sql\nSELECT * FROM users\n```"}}},
		})
	}))
	defer server.Close()

	client, err := New(Config{Provider: "openai", BaseURL: server.URL, APIKey: "sk-test", Model: "gpt-test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	got, err := client.Generate(context.Background(), GenerationPrompt("CREATE TABLE users (id INT)", "show me all users"))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "```sql\nSELECT * FROM users\n```" {
		t.Fatalf("Generate() = %q", got)
	}
}

func TestOpenAIClientReturnsErrorOnFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(Config{BaseURL: server.URL, APIKey: "bad"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	_, err = client.Generate(context.Background(), GenerationPrompt("", "q"))
	if err == nil || !strings.Contains(err.Error(), "status=401") {
		t.Fatalf("Generate() error = %v", err)
	}
}

func TestOpenAIClientRejectsEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, _ := NewOpenAIClient(Config{BaseURL: server.URL, APIKey: "k"})
	if _, err := client.Generate(context.Background(), GenerationPrompt("", "q")); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestOllamaClientSendsSystemAndPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		var payload ollamaGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Stream {
			t.Fatal("expected non-streaming request")
		}
		if !strings.Contains(payload.System, "Schema info:\nCREATE TABLE orders (id INT)") {
			t.Fatalf("System = %q", payload.System)
		}
		if !strings.HasPrefix(payload.Prompt, "Current SQL:\nSELECT * FROM orders") {
			t.Fatalf("Prompt = %q", payload.Prompt)
		}
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "SELECT * FROM orders WHERE year = 2023", Done: true})
	}))
	defer server.Close()

	client, err := New(Config{Provider: "ollama", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	got, err := client.Generate(context.Background(), RefinementPrompt("CREATE TABLE orders (id INT)", "SELECT * FROM orders", "only orders from 2023"))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "SELECT * FROM orders WHERE year = 2023" {
		t.Fatalf("Generate() = %q", got)
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	if _, err := New(Config{Provider: "gemini"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
