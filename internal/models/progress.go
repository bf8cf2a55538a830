package models

import (
	"encoding/json"
	"math"
	"time"
)

// ProgressSnapshot describes batch progress at one point in time.
type ProgressSnapshot struct {
	RunID   string
	Current int
	Total   int
	Percent float64
	Path    string
	Message string
	ETA     *time.Duration
}

// NewProgressSnapshot fills Percent from current and total. With total zero the
// percent is 0; use Done for the terminal snapshot.
func NewProgressSnapshot(runID string, current, total int, path, message string, eta *time.Duration) ProgressSnapshot {
	percent := 0.0
	if total > 0 {
		percent = float64(current) / float64(total) * 100
	}
	return ProgressSnapshot{
		RunID:   runID,
		Current: current,
		Total:   total,
		Percent: percent,
		Path:    path,
		Message: message,
		ETA:     eta,
	}
}

// Done marks the snapshot as terminal: current equals total, percent is 100 and
// there is no ETA.
func (p ProgressSnapshot) Done() ProgressSnapshot {
	p.Current = p.Total
	p.Percent = 100
	p.ETA = nil
	return p
}

type progressJSON struct {
	RunID   string   `json:"run_id"`
	Current int      `json:"current"`
	Total   int      `json:"total"`
	Percent float64  `json:"percent"`
	Path    string   `json:"path"`
	Message string   `json:"message"`
	ETA     *float64 `json:"eta"`
}

// MarshalJSON encodes ETA as whole seconds or null.
func (p ProgressSnapshot) MarshalJSON() ([]byte, error) {
	out := progressJSON{
		RunID:   p.RunID,
		Current: p.Current,
		Total:   p.Total,
		Percent: p.Percent,
		Path:    p.Path,
		Message: p.Message,
	}
	if p.ETA != nil {
		seconds := math.Round(p.ETA.Seconds())
		out.ETA = &seconds
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (p *ProgressSnapshot) UnmarshalJSON(data []byte) error {
	var in progressJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*p = ProgressSnapshot{
		RunID:   in.RunID,
		Current: in.Current,
		Total:   in.Total,
		Percent: in.Percent,
		Path:    in.Path,
		Message: in.Message,
	}
	if in.ETA != nil {
		eta := time.Duration(*in.ETA * float64(time.Second))
		p.ETA = &eta
	}
	return nil
}
