package transfer

import (
	"errors"
	"time"
)

// State is where a clip is in its download lifecycle.
type State int

const (
	// StateIdle means nothing is requested or the last request was abandoned.
	StateIdle State = iota
	// StateQueued means a download is wanted but another one is in flight.
	StateQueued
	// StateActive means chunks for this clip are being accumulated.
	StateActive
	// StateCompleted means the clip is assembled and immutable.
	StateCompleted
	// StateFailed means the last download attempt failed.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateQueued:
		return "queued"
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true once a clip is assembled. Failed clips can be requested again.
func (s State) IsTerminal() bool {
	return s == StateCompleted
}

// CanTransitionTo checks if a state transition is valid.
func (s State) CanTransitionTo(next State) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case StateIdle, StateFailed:
		return next == StateQueued || next == StateActive
	case StateQueued:
		return next == StateActive || next == StateIdle
	case StateActive:
		return next == StateCompleted || next == StateFailed || next == StateIdle
	default:
		return false
	}
}

// Status is a copy of one record's state, safe to hand to other goroutines.
type Status struct {
	Filename      string
	State         State
	BufferedBytes int64
	Chunks        int
	PlayRequested bool
	SaveRequested bool
	PlayerID      string
	ClipSize      int64
	CompletedAt   time.Time
}

var (
	// ErrNoActiveTransfer is reported when download traffic arrives with nothing in flight.
	ErrNoActiveTransfer = errors.New("no active transfer")
	// ErrEmptySearch is returned by Search when no criterion is given.
	ErrEmptySearch = errors.New("provide at least one search criterion: objects, start date or end date")
	// ErrInvalidSearchDate is returned by Search for dates not in YYYY-MM-DDTHH:MM form.
	ErrInvalidSearchDate = errors.New("search dates must look like 2006-01-02T15:04")
	// ErrEmptyFilename is returned for play or save requests without a filename.
	ErrEmptyFilename = errors.New("filename is required")
	// ErrClipTooLarge aborts a download that exceeds the configured size.
	ErrClipTooLarge = errors.New("clip exceeds the maximum size")
)
