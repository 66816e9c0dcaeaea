// Package session orchestrates provider-side recording and transcription jobs
// for RTC channels: token issue, resource acquisition, job start/stop and
// background health polling.
package session

import (
	"errors"
	"fmt"
)

// State represents the lifecycle state of a session.
type State int

const (
	// StateIdle - Session reserved, nothing requested from the provider yet.
	StateIdle State = iota
	// StateAcquiring - Issuing bot tokens and acquiring the provider resource.
	StateAcquiring
	// StateStarting - Provider start-job call in flight.
	StateStarting
	// StateActive - Job running, health monitor attached.
	StateActive
	// StateStopping - Explicit stop in progress.
	StateStopping
	// StateStopped - Job stopped, explicitly or after a failed health check.
	StateStopped
	// StateFailed - A provider or token step failed. Terminal.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAcquiring:
		return "ACQUIRING"
	case StateStarting:
		return "STARTING"
	case StateActive:
		return "ACTIVE"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal (STOPPED or FAILED).
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

// Errors returned by the manager.
var (
	ErrSessionActive     = errors.New("session already in progress for channel")
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidTransition = errors.New("invalid session state transition")
	ErrHealthCheckFailed = errors.New("health check failed")
	ErrManagerClosed     = errors.New("session manager closed")
)

// Allowed transitions:
//
//	IDLE → ACQUIRING → STARTING → ACTIVE → STOPPING → STOPPED
//	          │            │         │         │
//	          └────────────┴─────────┴─────────┴──→ FAILED
//
//	ACTIVE → STOPPED directly when the health monitor gives up on the job.
var transitions = map[State][]State{
	StateIdle:      {StateAcquiring, StateFailed},
	StateAcquiring: {StateStarting, StateFailed},
	StateStarting:  {StateActive, StateFailed},
	StateActive:    {StateStopping, StateStopped, StateFailed},
	StateStopping:  {StateStopped, StateFailed},
}

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
