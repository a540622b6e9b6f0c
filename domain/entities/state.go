package entities

// SessionState is the observable state of a voice session
type SessionState struct {
	IsListening bool   `json:"isListening"`
	IsSpeaking  bool   `json:"isSpeaking"`
	IsLoading   bool   `json:"isLoading"`
	Transcript  string `json:"transcript"`
	Error       string `json:"error,omitempty"`
}
