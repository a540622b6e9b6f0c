package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"
	"google.golang.org/genai"

	"github.com/satriahrh/voicechat/domain"
	"github.com/satriahrh/voicechat/domain/entities"
)

func TestValidateGeminiConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  GeminiConfig
		wantErr bool
	}{
		{"missing key", GeminiConfig{}, true},
		{"valid", GeminiConfig{APIKey: "k"}, false},
		{"temperature out of range", GeminiConfig{APIKey: "k", Temperature: genai.Ptr[float32](3)}, true},
		{"zero temperature", GeminiConfig{APIKey: "k", Temperature: genai.Ptr[float32](0)}, false},
		{"negative tokens", GeminiConfig{APIKey: "k", MaxOutputTokens: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGeminiConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGeminiConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConvertTurnsToGeminiFormat(t *testing.T) {
	contents := convertTurnsToGeminiFormat([]entities.ChatTurn{
		{Role: entities.MessageRoleUser, Content: "Hello"},
		{Role: entities.MessageRoleAssistant, Content: "Hi there"},
	})

	if len(contents) != 2 {
		t.Fatalf("Expected 2 contents, got %d", len(contents))
	}
	if contents[0].Role != string(genai.RoleUser) {
		t.Errorf("Expected user role, got %s", contents[0].Role)
	}
	if contents[1].Role != string(genai.RoleModel) {
		t.Errorf("Expected model role, got %s", contents[1].Role)
	}
	if contents[1].Parts[0].Text != "Hi there" {
		t.Errorf("Expected text 'Hi there', got %q", contents[1].Parts[0].Text)
	}
}

func TestGeminiLLM_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hi "},{"text":"there"}]}}]}`))
	}))
	defer srv.Close()

	g, err := NewGeminiLLM(context.Background(), GeminiConfig{APIKey: "k", BaseURL: srv.URL + "/"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create GeminiLLM: %v", err)
	}

	reply, err := g.Complete(context.Background(), []entities.ChatTurn{{Role: entities.MessageRoleUser, Content: "Hello"}})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply != "Hi there" {
		t.Errorf("Expected 'Hi there', got %q", reply)
	}
}

func TestGeminiLLM_CompleteEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	g, err := NewGeminiLLM(context.Background(), GeminiConfig{APIKey: "k", BaseURL: srv.URL + "/"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create GeminiLLM: %v", err)
	}

	_, err = g.Complete(context.Background(), nil)
	if kind, _ := domain.KindOf(err); kind != domain.KindRemoteAPIError {
		t.Errorf("Expected remote API error, got %v", err)
	}
}

func TestNewGeminiLLM_ExplicitZeroTemperature(t *testing.T) {
	zero := float32(0)
	g, err := NewGeminiLLM(context.Background(), GeminiConfig{APIKey: "k", Temperature: &zero}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create GeminiLLM: %v", err)
	}
	if g.temperature != 0 {
		t.Errorf("Expected temperature 0, got %f", g.temperature)
	}

	g, err = NewGeminiLLM(context.Background(), GeminiConfig{APIKey: "k"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create GeminiLLM: %v", err)
	}
	if g.temperature != defaultTemperature {
		t.Errorf("Expected default temperature, got %f", g.temperature)
	}
}
