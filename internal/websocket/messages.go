package websocket

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/satriahrh/voicechat/domain/entities"
	"github.com/satriahrh/voicechat/domain/repositories"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Device to server
const (
	MessageTypeHello          MessageType = "hello"
	MessageTypeStartListening MessageType = "start_listening"
	MessageTypeStopListening  MessageType = "stop_listening"
	MessageTypeSendMessage    MessageType = "send_message"
	MessageTypeSendTranscript MessageType = "send_transcript"
	MessageTypeToggleSpeaking MessageType = "toggle_speaking"
	MessageTypeSpeakMessage   MessageType = "speak_message"
	MessageTypeUpdateSettings MessageType = "update_settings"
	MessageTypeCaptureAck     MessageType = "capture_ack"
	MessageTypeSpeechStarted  MessageType = "speech_started"
	MessageTypeSpeechEnded    MessageType = "speech_ended"
	MessageTypeSpeechFailed   MessageType = "speech_failed"
	MessageTypePlaybackEnded  MessageType = "playback_ended"
	MessageTypePlaybackFailed MessageType = "playback_failed"
	MessageTypePing           MessageType = "ping"
)

// Server to device
const (
	MessageTypeState        MessageType = "state"
	MessageTypeMessage      MessageType = "message"
	MessageTypeSettings     MessageType = "settings"
	MessageTypeError        MessageType = "error"
	MessageTypeCaptureStart MessageType = "capture_start"
	MessageTypeCaptureStop  MessageType = "capture_stop"
	MessageTypeSpeak        MessageType = "speak"
	MessageTypeCancelSpeech MessageType = "cancel_speech"
	MessageTypePlayAudio    MessageType = "play_audio"
	MessageTypeStopAudio    MessageType = "stop_audio"
	MessageTypePong         MessageType = "pong"
)

// Error codes sent in ErrorMessage
const (
	ErrorCodeInvalidMessage  = "invalid_message"
	ErrorCodeBusy            = "busy"
	ErrorCodeSpeaking        = "speaking"
	ErrorCodeListening       = "listening"
	ErrorCodeInvalidSettings = "invalid_settings"
	ErrorCodeNotFound        = "message_not_found"
	ErrorCodeInternal        = "internal_error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type MessageType `json:"type"`
}

type HelloMessage struct {
	BaseMessage
	Voices        []repositories.Voice `json:"voices"`
	HasMicrophone bool                 `json:"has_microphone"`
}

// IntentMessage carries the intents without a payload
type IntentMessage struct {
	BaseMessage
}

type SendMessageMessage struct {
	BaseMessage
	Content string `json:"content"`
}

type SpeakMessageMessage struct {
	BaseMessage
	MessageID string `json:"message_id"`
}

type UpdateSettingsMessage struct {
	BaseMessage
	Settings *entities.VoiceSettings `json:"settings"`
}

type CaptureAckMessage struct {
	BaseMessage
	CaptureID string `json:"capture_id"`
	Granted   bool   `json:"granted"`
}

// SpeechEventMessage reports progress of a speak request
type SpeechEventMessage struct {
	BaseMessage
	UtteranceID string `json:"utterance_id"`
	Error       string `json:"error,omitempty"`
}

// PlaybackEventMessage reports the outcome of a play_audio request
type PlaybackEventMessage struct {
	BaseMessage
	PlaybackID string `json:"playback_id"`
	Error      string `json:"error,omitempty"`
}

type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

type StateMessage struct {
	BaseMessage
	State entities.SessionState `json:"state"`
}

type ChatMessage struct {
	BaseMessage
	Message entities.Message `json:"message"`
}

type SettingsMessage struct {
	BaseMessage
	Settings  entities.VoiceSettings `json:"settings"`
	Languages []entities.Language    `json:"languages,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

type CaptureStartMessage struct {
	BaseMessage
	CaptureID  string `json:"capture_id"`
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

type CaptureStopMessage struct {
	BaseMessage
	CaptureID string `json:"capture_id"`
}

type SpeakRequestMessage struct {
	BaseMessage
	repositories.Utterance
}

type PlayAudioMessage struct {
	BaseMessage
	PlaybackID string `json:"playback_id"`
	Encoding   string `json:"encoding"`
	AudioData  []byte `json:"audio_data"` // base64 in JSON
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses an incoming text frame into its typed message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeHello:
		var msg HelloMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid hello message: %w", err)
		}
		return &msg, nil

	case MessageTypeStartListening, MessageTypeStopListening, MessageTypeSendTranscript, MessageTypeToggleSpeaking:
		return &IntentMessage{BaseMessage: base}, nil

	case MessageTypeSendMessage:
		var msg SendMessageMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid send_message message: %w", err)
		}
		return &msg, nil

	case MessageTypeSpeakMessage:
		var msg SpeakMessageMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid speak_message message: %w", err)
		}
		if msg.MessageID == "" {
			return nil, fmt.Errorf("message_id is required")
		}
		return &msg, nil

	case MessageTypeUpdateSettings:
		var msg UpdateSettingsMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid update_settings message: %w", err)
		}
		if msg.Settings == nil {
			return nil, fmt.Errorf("settings is required")
		}
		return &msg, nil

	case MessageTypeCaptureAck:
		var msg CaptureAckMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid capture_ack message: %w", err)
		}
		if msg.CaptureID == "" {
			return nil, fmt.Errorf("capture_id is required")
		}
		return &msg, nil

	case MessageTypeSpeechStarted, MessageTypeSpeechEnded, MessageTypeSpeechFailed:
		var msg SpeechEventMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid %s message: %w", base.Type, err)
		}
		if msg.UtteranceID == "" {
			return nil, fmt.Errorf("utterance_id is required")
		}
		return &msg, nil

	case MessageTypePlaybackEnded, MessageTypePlaybackFailed:
		var msg PlaybackEventMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid %s message: %w", base.Type, err)
		}
		if msg.PlaybackID == "" {
			return nil, fmt.Errorf("playback_id is required")
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case "":
		return nil, fmt.Errorf("message type is required")

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{Type: MessageTypeError},
		Code:        code,
		Message:     message,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: BaseMessage{Type: MessageTypePong},
		Data:        data,
	}
}

// failureReason turns a device-reported failure into text, never empty
func failureReason(reason, fallback string) string {
	if r := strings.TrimSpace(reason); r != "" {
		return r
	}
	return fallback
}
