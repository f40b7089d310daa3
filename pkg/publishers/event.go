package publishers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/samvad-hq/samvad-fetch/internal/domain"
)

// Event is the payload published downstream for every executed job.
type Event struct {
	JobID       string                `json:"job_id"`
	JobName     string                `json:"job_name"`
	Result      domain.TransferResult `json:"result"`
	PublishedAt time.Time             `json:"published_at"`
}

// NewEvent wraps a transfer result in an Event stamped with the current time.
func NewEvent(result domain.TransferResult) Event {
	return Event{
		JobID:       result.JobID,
		JobName:     result.JobName,
		Result:      result,
		PublishedAt: time.Now().UTC(),
	}
}

// attributes are the routing attributes attached to queue messages.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"job_id":     e.JobID,
		"error_code": strconv.Itoa(e.Result.ErrorCode),
	}
}

func (e Event) encode() ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return payload, nil
}
