// Package domain defines core data structures used throughout the vault.
package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Window is a single option round: the vault's assets back sold option
// exposure between Start and End.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow validates and constructs a round window.
func NewWindow(start, end time.Time) (Window, error) {
	if !start.Before(end) {
		return Window{}, errors.New("round start must be before round end")
	}
	return Window{Start: start, End: end}, nil
}

// String returns a human-readable string representation.
func (w Window) String() string {
	return fmt.Sprintf("[%d, %d]", w.Start.Unix(), w.End.Unix())
}

// PhaseKind is the lifecycle phase of a round, derived from the clock.
type PhaseKind int

const (
	// PhasePreRound is before the round starts: deposits open, withdrawals closed.
	PhasePreRound PhaseKind = iota
	// PhaseActive is inside the round: option sales open, deposits and withdrawals closed.
	PhaseActive
	// PhaseSettling is the cool-down after the round ends: withdrawals open, option sales closed.
	PhaseSettling
	// PhaseRollable is after the cool-down: withdrawals, option sales and rollover open.
	PhaseRollable
)

// String returns the phase name.
func (p PhaseKind) String() string {
	switch p {
	case PhasePreRound:
		return "pre_round"
	case PhaseActive:
		return "active"
	case PhaseSettling:
		return "settling"
	case PhaseRollable:
		return "rollable"
	default:
		return "unknown"
	}
}

// Phase derives the round phase for the given moment.
//
// Boundary conventions follow the gating rules: the round is active through
// End inclusive, and the buffer tail is over once now reaches End+buffer.
func Phase(now time.Time, w Window, buffer time.Duration) PhaseKind {
	switch {
	case now.Before(w.Start):
		return PhasePreRound
	case !now.After(w.End):
		return PhaseActive
	case now.Before(w.End.Add(buffer)):
		return PhaseSettling
	default:
		return PhaseRollable
	}
}
