package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

func TestNewClient_WithAPIKey(t *testing.T) {
	client, err := NewClient(ClientConfig{
		APIKey: "test-key-123",
		Model:  anthropic.ModelClaudeSonnet4_20250514,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.Model() != anthropic.ModelClaudeSonnet4_20250514 {
		t.Errorf("Model = %q, want %q", client.Model(), anthropic.ModelClaudeSonnet4_20250514)
	}
	if client.Tracker() == nil {
		t.Error("Tracker should not be nil")
	}
}

func TestNewClient_NoAPIKey(t *testing.T) {
	original := os.Getenv("ANTHROPIC_API_KEY")
	defer os.Setenv("ANTHROPIC_API_KEY", original)
	os.Unsetenv("ANTHROPIC_API_KEY")

	_, err := NewClient(ClientConfig{})
	if err == nil {
		t.Fatal("NewClient should fail without API key")
	}
	expected := "ANTHROPIC_API_KEY environment variable is not set"
	if err.Error() != expected {
		t.Errorf("Error = %q, want %q", err.Error(), expected)
	}
}

func TestNewClient_DefaultModel(t *testing.T) {
	client, err := NewClient(ClientConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.Model() != DefaultModel {
		t.Errorf("Default model = %q, want %q", client.Model(), DefaultModel)
	}
}

func TestTranslateModelForBedrock(t *testing.T) {
	tests := []struct {
		in   anthropic.Model
		want anthropic.Model
	}{
		{anthropic.ModelClaudeSonnet4_5_20250929, "us.anthropic.claude-sonnet-4-5-20250929-v1:0"},
		{"us.anthropic.custom-v1:0", "us.anthropic.custom-v1:0"},
		{"some-unknown-model", "some-unknown-model"},
	}
	for _, tt := range tests {
		if got := translateModelForBedrock(tt.in); got != tt.want {
			t.Errorf("translateModelForBedrock(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTokenTracker_AddMultiple(t *testing.T) {
	tracker := NewTokenTracker()
	tracker.Add(100, 50)
	tracker.Add(200, 100)

	input, output := tracker.Total()
	if input != 300 || output != 150 {
		t.Errorf("Total = %d/%d, want 300/150", input, output)
	}
	if tracker.Calls() != 2 {
		t.Errorf("Calls = %d, want 2", tracker.Calls())
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Category string `json:"category"`
	}
	if err := DecodeJSON("Sure!\n```json\n{\"category\": \"layout\"}\n```", &out); err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}
	if out.Category != "layout" {
		t.Errorf("Category = %q, want layout", out.Category)
	}

	if err := DecodeJSON("no json here", &out); err == nil {
		t.Error("expected error for response without JSON")
	}
}

func TestRunner_SendsImages(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5-20250929",
			"content": [{"type": "text", "text": "{\"category\": \"color\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 4}
		}`)
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL, MaxRetries: 1})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	runner := NewRunner(client)

	var out struct {
		Category string `json:"category"`
	}
	err = runner.RunJSON(context.Background(), "system prompt", "classify", &out,
		Image{Label: "reference", Data: []byte("ref")},
		Image{Label: "capture", Data: []byte("cap")},
	)
	if err != nil {
		t.Fatalf("RunJSON failed: %v", err)
	}
	if out.Category != "color" {
		t.Errorf("Category = %q, want color", out.Category)
	}

	in, outTok := client.Tracker().Total()
	if in != 12 || outTok != 4 {
		t.Errorf("tracked tokens = %d/%d, want 12/4", in, outTok)
	}

	msgs, _ := body["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages = %v", body["messages"])
	}
	content, _ := msgs[0].(map[string]any)["content"].([]any)
	images := 0
	for _, c := range content {
		if c.(map[string]any)["type"] == "image" {
			images++
		}
	}
	if images != 2 {
		t.Errorf("image blocks = %d, want 2", images)
	}
}
