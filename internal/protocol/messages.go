package protocol

import "time"

// TranscribeRequest asks the STT service to transcribe an uploaded recording.
type TranscribeRequest struct {
	SessionID string `json:"session_id"`
	Audio     []byte `json:"audio"`
	MimeType  string `json:"mime_type"`
	Language  string `json:"language,omitempty"`
	ReadBack  bool   `json:"read_back,omitempty"`
	Voice     string `json:"voice,omitempty"`
}

// Transcript represents STT output broadcast on the bus.
type Transcript struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Language  string    `json:"language,omitempty"`
	ReadBack  bool      `json:"read_back,omitempty"`
	Voice     string    `json:"voice,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TTSRequest asks the TTS service to vocalize text.
type TTSRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Voice     string `json:"voice,omitempty"`
}

// SpeechAudio carries a complete WAV file for one TTS request.
type SpeechAudio struct {
	SessionID  string `json:"session_id"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Segments   int    `json:"segments"`
	WAV        []byte `json:"wav"`
}

// Status reports completion or failure of a request.
type Status struct {
	SessionID string    `json:"session_id"`
	Completed bool      `json:"completed"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectSTTRequest      = "stt.request"
	SubjectTranscriptFinal = "stt.text.final"
	SubjectSTTError        = "stt.error"
	SubjectTTSRequest      = "tts.request"
	SubjectTTSAudio        = "tts.audio"
	SubjectTTSDone         = "tts.done"
	SubjectTTSError        = "tts.error"
)
