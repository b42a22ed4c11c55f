package types

// GenerateRequest is the body of POST /generate. Optional fields left out
// fall back to the model profile, then to built-in defaults.
type GenerateRequest struct {
	// Model name as known to Ollama. If empty, the server default is used.
	// example: mistral
	Model string `json:"model,omitempty" example:"mistral"`
	// Required prompt text.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Optional system prompt; overrides the profile's system_prompt.
	System string `json:"system,omitempty"`
	// Maximum number of new tokens, 1..4096.
	// example: 500
	MaxTokens *int `json:"max_tokens,omitempty" example:"500"`
	// Sampling temperature, 0..1.
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability, 0..1.
	// example: 0.9
	TopP *float64 `json:"top_p,omitempty" example:"0.9"`
	// Top-K sampling.
	// example: 40
	TopK *int `json:"top_k,omitempty" example:"40"`
	// Repeat penalty.
	// example: 1.1
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty" example:"1.1"`
}

// GenerateResponse carries the complete generated text.
type GenerateResponse struct {
	// example: The tide rolls in...
	Response string `json:"response" example:"The tide rolls in..."`
}

// ErrorResponse is the JSON error payload for every non-2xx answer.
type ErrorResponse struct {
	// Human-readable reason.
	// example: prompt is required
	Detail string `json:"detail" example:"prompt is required"`
}

// HealthResponse is returned by GET /health when the backend answers.
type HealthResponse struct {
	// example: healthy
	Status string `json:"status" example:"healthy"`
}

// ModelsResponse lists model names available on the backend.
type ModelsResponse struct {
	// example: ["mistral:latest","llama2:7b"]
	Models []string `json:"models"`
}

// EmbeddingsRequest is the body of POST /embeddings.
type EmbeddingsRequest struct {
	// example: mistral
	Model string `json:"model,omitempty" example:"mistral"`
	// example: hello world
	Prompt string `json:"prompt" example:"hello world"`
}

// EmbeddingsResponse carries one embedding vector.
type EmbeddingsResponse struct {
	Embedding []float64 `json:"embedding"`
}

// BackendStatus describes the Ollama process as seen by the supervisor.
type BackendStatus struct {
	// attached, starting, running, stopped, failed or unmanaged.
	// example: running
	State string `json:"state" example:"running"`
	// example: http://127.0.0.1:11434
	URL string `json:"url" example:"http://127.0.0.1:11434"`
	// True when this process spawned the backend.
	Managed bool `json:"managed"`
	// example: 12345
	PID int `json:"pid,omitempty" example:"12345"`
	// Last lifecycle error, if any.
	LastError string `json:"last_error,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Backend BackendStatus `json:"backend"`
	// example: mistral
	DefaultModel string `json:"default_model" example:"mistral"`
	// Backend endpoint used for generation: generate or chat.
	// example: generate
	Mode string `json:"mode" example:"generate"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Generation requests received.
	RequestsTotal uint64 `json:"requests_total"`
	// Requests answered with generated text.
	SucceededTotal uint64 `json:"succeeded_total"`
	// Requests that ended in an error answer.
	FailedTotal uint64 `json:"failed_total"`
	// Successes whose text came from the fallback extractor.
	FallbackTotal uint64 `json:"fallback_total"`
	// Successes from streams that ended without a done marker.
	IncompleteTotal uint64 `json:"incomplete_total"`
	// Backend lines that could not be decoded.
	ParseFailuresTotal uint64 `json:"parse_failures_total"`
}
