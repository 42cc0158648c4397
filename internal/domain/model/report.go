package model

import "time"

// ReconcileState is the stage of the reconciliation engine
type ReconcileState string

const (
	StateIdle       ReconcileState = "idle"
	StateDraining   ReconcileState = "draining"
	StateScanning   ReconcileState = "scanning"
	StatePopulating ReconcileState = "populating"
)

// PassReport summarizes one reconcile pass
type PassReport struct {
	// PassID identifies the pass in logs and events
	PassID     string    `json:"pass_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	// Removed is the number of definitions whose removal succeeded
	Removed int `json:"removed"`
	// Created lists the names whose create call succeeded
	Created []string `json:"created"`
	// Changed lists created names whose fingerprint differs from the drained definition or that are new
	Changed []string `json:"changed"`
	// Unchanged lists created names whose fingerprint matched the drained definition
	Unchanged []string `json:"unchanged"`
	// Duplicates lists names produced by more than one file in this pass
	Duplicates []string `json:"duplicates,omitempty"`
	// Errors holds every per-item error of the pass
	Errors []error `json:"-"`
	// Fatal is set when the pass was aborted
	Fatal error `json:"-"`
}

// Duration returns how long the pass took
func (r *PassReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed reports whether the pass was aborted
func (r *PassReport) Failed() bool {
	return r.Fatal != nil
}

// ErrorMessages returns the per-item and fatal error strings of the pass
func (r *PassReport) ErrorMessages() []string {
	out := make([]string, 0, len(r.Errors)+1)
	if r.Fatal != nil {
		out = append(out, r.Fatal.Error())
	}
	for _, err := range r.Errors {
		out = append(out, err.Error())
	}
	return out
}

// StatusEvent is a connection status change pushed by the session subsystem
type StatusEvent struct {
	Name   string           `json:"name"`
	Status ConnectionStatus `json:"status"`
}
