package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type Status string

const (
	StatusDone     Status = "done"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

type Outcome struct {
	Source  string        `json:"source"`
	Output  string        `json:"output"`
	Status  Status        `json:"status"`
	Elapsed time.Duration `json:"elapsed_ns,omitempty"`
	Error   string        `json:"error,omitempty"`
	Err     error         `json:"-"`
}

type Report struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Aborted    bool      `json:"aborted"`
	Outcomes   []Outcome `json:"outcomes"`
}

func (r Report) Count(status Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Processed counts files that ended with a transcript on disk.
func (r Report) Processed() int {
	return r.Count(StatusDone) + r.Count(StatusSkipped)
}

func (r Report) Failed() []string {
	var failed []string
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			failed = append(failed, o.Source)
		}
	}
	return failed
}

func (r Report) Summary() string {
	return fmt.Sprintf("%d/%d files: %d transcribed, %d skipped, %d failed, %d canceled",
		r.Processed(), r.Total,
		r.Count(StatusDone), r.Count(StatusSkipped), r.Count(StatusFailed), r.Count(StatusCanceled))
}

func WriteReport(path string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
