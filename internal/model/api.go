package model

type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id,omitempty"`
}

type HealthResponse struct {
	OK bool `json:"ok"`
}

type ReadyResponse struct {
	OK               bool   `json:"ok"`
	ServiceName      string `json:"service_name,omitempty"`
	RemoteGeneration bool   `json:"remote_generation"`
	Transcription    bool   `json:"transcription"`
}

type QuizItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type FlashcardItem struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

type NotesPayload struct {
	Summary    string          `json:"summary"`
	Bullets    []string        `json:"bullets"`
	Quiz       []QuizItem      `json:"quiz"`
	Flashcards []FlashcardItem `json:"flashcards"`
}

type ProcessRequest struct {
	Transcript string `json:"transcript"`
}

type RecordingRequest struct {
	AudioBlob string `json:"audio_blob"`
	ModelID   string `json:"model_id,omitempty"`
}

type ProcessResponse struct {
	NotesPayload
}

type NotesTimings struct {
	Transcription int64 `json:"transcription"`
	Generation    int64 `json:"generation"`
	Total         int64 `json:"total"`
}

type NotesResponse struct {
	Transcript string `json:"transcript"`
	NotesPayload
	TimingsMS NotesTimings `json:"timings_ms"`
}

type DocumentRequest struct {
	Transcript string `json:"transcript,omitempty"`
	NotesPayload
}
