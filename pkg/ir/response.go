package ir

// Response represents an executed request as prepared for display
type Response struct {
	Status     string   `json:"status"` // e.g. "200 OK"
	StatusCode int      `json:"status_code"`
	Proto      string   `json:"proto"`
	Headers    []string `json:"headers"` // "Name: v1, v2", sorted by name
	Encodings  []string `json:"encodings,omitempty"`
	Body       string   `json:"body"`
	Truncated  bool     `json:"truncated"`
	SizeBytes  int64    `json:"size_bytes"`
	LatencyMs  float64  `json:"latency_ms"`
}
