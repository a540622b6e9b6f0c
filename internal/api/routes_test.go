package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voicechat/domain/entities"
	"github.com/satriahrh/voicechat/internal/websocket"
)

func setupEcho() *echo.Echo {
	e := echo.New()
	hub := websocket.NewHub(websocket.Pipeline{}, zap.NewNop())
	InitRoutes(e, hub, entities.DefaultVoiceSettings(), zap.NewNop())
	return e
}

func TestHealth(t *testing.T) {
	e := setupEcho()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Clients != 0 {
		t.Errorf("Unexpected health response %+v", resp)
	}
}

func TestLanguages(t *testing.T) {
	e := setupEcho()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/languages", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var resp LanguagesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Languages) != len(entities.SupportedLanguages) {
		t.Errorf("Expected %d languages, got %d", len(entities.SupportedLanguages), len(resp.Languages))
	}
}

func TestDefaultSettings(t *testing.T) {
	e := setupEcho()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/settings/default", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var got entities.VoiceSettings
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got != entities.DefaultVoiceSettings() {
		t.Errorf("Expected default settings, got %+v", got)
	}
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"pitch":1,"rate":1.5,"volume":0.3,"autoPlay":true,"language":"en-US"}`, http.StatusOK},
		{"out of range", `{"pitch":3,"rate":1,"volume":1,"language":"en-US"}`, http.StatusUnprocessableEntity},
		{"malformed", `{"pitch":`, http.StatusBadRequest},
	}

	e := setupEcho()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/settings/validate", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}
