package batch

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/oukeidos/cattlelens/internal/files"
	"github.com/oukeidos/cattlelens/internal/gemini"
)

// Status is the terminal state of a run.
type Status string

const (
	StatusSuccess        Status = "Success"
	StatusPartialSuccess Status = "Partial Success"
	StatusFailure        Status = "Failure"
	StatusEmpty          Status = "Empty"
)

// ImageResult pairs an input name with its outcome.
type ImageResult struct {
	Name string `json:"name"`
	gemini.Outcome
}

// Report summarizes a run.
type Report struct {
	RunID       string        `json:"run_id"`
	Model       string        `json:"model"`
	Task        string        `json:"task"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Status      Status        `json:"status"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Cached      int           `json:"cached"`
	TotalTokens int           `json:"total_tokens"`
	Results     []ImageResult `json:"results"`
	Skipped     []string      `json:"skipped,omitempty"`
}

func (r *Report) add(res ImageResult) {
	r.Results = append(r.Results, res)
	if !res.Success {
		r.Failed++
		return
	}
	r.Succeeded++
	r.TotalTokens += res.TokensUsed
	if res.Cached {
		r.Cached++
	}
}

func (r *Report) finish() {
	r.FinishedAt = time.Now().UTC()
	switch {
	case len(r.Results) == 0:
		r.Status = StatusEmpty
	case r.Failed == 0:
		r.Status = StatusSuccess
	case r.Succeeded == 0:
		r.Status = StatusFailure
	default:
		r.Status = StatusPartialSuccess
	}
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SaveReport writes r as JSON. Unless overwrite is set, an existing file is
// left alone and a free name is chosen. The path actually written is returned.
func SaveReport(path string, r *Report, overwrite bool) (string, error) {
	target, _, err := files.OutputPath(path, overwrite)
	if err != nil {
		return "", fmt.Errorf("failed to resolve report path: %w", err)
	}
	if err := files.WriteJSON(target, r, 0600); err != nil {
		return "", err
	}
	return target, nil
}

// DefaultReportPath names the report after the run ID in dir.
func DefaultReportPath(dir string, r *Report) string {
	return filepath.Join(dir, "cattlelens-"+r.RunID+".json")
}
