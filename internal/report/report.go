// Package report persists the record of a drag controller run as JSON.
package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"slider-solver/internal/drag"
	"slider-solver/internal/version"
)

// CurrentVersion is the file format version written by Save.
const CurrentVersion = 1

// File is a run report (.json).
type File struct {
	Version  int          `json:"version"`
	Build    version.Info `json:"build"`
	Created  time.Time    `json:"created"`
	Finished time.Time    `json:"finished,omitempty"`

	// Settings the run used
	Strategy           string `json:"strategy"`
	CorrectionStrategy string `json:"correction_strategy"`
	MaxAttempts        int    `json:"max_attempts"`

	// Result of the last attempt
	Attempts     int     `json:"attempts"`
	Solved       bool    `json:"solved"`
	Displacement int     `json:"displacement"`
	TargetX      int     `json:"target_x"`
	PieceX       int     `json:"piece_x"`
	Score        float64 `json:"score,omitempty"`
	Correction   int     `json:"correction,omitempty"`
	Corrected    bool    `json:"corrected"`
	Error        string  `json:"error,omitempty"`

	Transitions []Transition `json:"transitions"`
}

// Transition is one state change of the controller.
type Transition struct {
	Attempt int       `json:"attempt"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	At      time.Time `json:"at"`
}

// New creates an empty report for a run with the given settings.
func New(program string, params drag.Params, policy drag.RetryPolicy) *File {
	return &File{
		Version:            CurrentVersion,
		Build:              version.Get(program),
		Created:            time.Now(),
		Strategy:           params.InitialStrategy.String(),
		CorrectionStrategy: params.CorrectionStrategy.String(),
		MaxAttempts:        policy.MaxAttempts,
		Transitions:        []Transition{},
	}
}

// Observe records a transition. It has the drag.TransitionFunc signature.
func (f *File) Observe(attempt int, from, to drag.State) {
	f.Transitions = append(f.Transitions, Transition{
		Attempt: attempt,
		From:    from.String(),
		To:      to.String(),
		At:      time.Now(),
	})
}

// Finish records the outcome of Run.
func (f *File) Finish(out drag.Outcome, err error) {
	last := out.Last
	f.Finished = time.Now()
	f.Attempts = out.Attempts
	f.Solved = last.Solved && err == nil
	f.Displacement = last.Plan.Displacement
	f.TargetX = last.Plan.TargetX
	f.PieceX = last.Plan.PieceX
	f.Score = last.Plan.Score
	f.Correction = last.Correction
	f.Corrected = last.Corrected
	f.Error = ""
	if err != nil {
		f.Error = err.Error()
	}
}

// Load reads a report file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	return &f, nil
}

// Save writes the report, creating the parent directory if needed.
func (f *File) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
