package store

import "time"

// Exchange is one prompt/response pair sent to a generation provider
type Exchange struct {
	ID        string        `json:"id"`
	RequestID string        `json:"request_id,omitempty"`
	Provider  string        `json:"provider"` // e.g. "gemini"
	Version   string        `json:"version"`
	Model     string        `json:"model"`
	Prompt    string        `json:"prompt"`
	Response  string        `json:"response"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// Request is the outcome of one analyze request
type Request struct {
	ID        string        `json:"id"`
	Handle    string        `json:"handle"`
	Outcome   string        `json:"outcome"` // live, degraded, unavailable or error
	Source    string        `json:"source,omitempty"`
	ItemCount int           `json:"item_count"`
	Degraded  bool          `json:"degraded"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}
