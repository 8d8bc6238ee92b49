package engine

// Request is one completion call. Temperature is always sent, so the zero
// value asks for deterministic output.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
}

// PullProgress reports download progress for a model pull operation.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}
