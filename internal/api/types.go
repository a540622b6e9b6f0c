package api

import "github.com/satriahrh/voicechat/domain/entities"

// HealthResponse is returned by the health check
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Clients int    `json:"clients"`
}

// LanguagesResponse lists the languages offered to clients
type LanguagesResponse struct {
	Languages []entities.Language `json:"languages"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
