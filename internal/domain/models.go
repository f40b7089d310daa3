package domain

import "time"

// TransferResult is the outcome of one executed job, as journaled and published.
type TransferResult struct {
	JobID        string            `json:"job_id"`
	JobName      string            `json:"job_name,omitempty"`
	Method       string            `json:"method"`
	URL          string            `json:"url"`
	StatusCode   int               `json:"status_code"`
	ErrorCode    int               `json:"error_code"`
	ErrorMessage string            `json:"error_message,omitempty"`
	BodyBytes    int               `json:"body_bytes"`
	BodySHA256   string            `json:"body_sha256,omitempty"`
	Extracted    map[string]string `json:"extracted,omitempty"`
	Metadata     map[string]any    `json:"transfer_metadata,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	ElapsedMs    int64             `json:"elapsed_ms"`
}

// Failed reports whether the transfer hit a transport-level error.
func (r TransferResult) Failed() bool {
	return r.ErrorCode != 0
}
