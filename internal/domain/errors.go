package domain

import "github.com/pkg/errors"

// Failure taxonomy for vault operations. Every failure aborts the whole
// operation; nothing is retried internally and no partial state is committed.
var (
	// ErrUnauthorized is returned when the caller lacks the owner or exchange capability.
	ErrUnauthorized = errors.New("caller is not authorized")
	// ErrPaused is returned by every mutating entry point while the vault is paused.
	ErrPaused = errors.New("vault is paused")
	// ErrRoundAlreadyStarted rejects deposits once the round window has opened.
	ErrRoundAlreadyStarted = errors.New("round already started")
	// ErrRoundNotEnded rejects withdrawals while the round window is still open.
	ErrRoundNotEnded = errors.New("round not ended")
	// ErrBufferTimeNotEnded rejects option sales and rollover during the cool-down tail.
	ErrBufferTimeNotEnded = errors.New("buffer time not ended")
	// ErrInvalidParams rejects malformed rollover windows, zero minimum output or a missing executor.
	ErrInvalidParams = errors.New("invalid parameters")
	// ErrPriceTooLow rejects option sales below the configured premium floor.
	ErrPriceTooLow = errors.New("price below limit price")
	// ErrZeroAmount rejects deposits, mints and redemptions that would move zero value.
	ErrZeroAmount = errors.New("zero amount")
	// ErrSwapFailed reports a rollover swap that left settlement currency behind.
	ErrSwapFailed = errors.New("swap left residual settlement balance")
	// ErrMigrationAlreadyScheduled rejects scheduling over a pending migration.
	ErrMigrationAlreadyScheduled = errors.New("migration already scheduled")
	// ErrMigrationNotScheduledYet rejects executing an unscheduled or still-locked migration.
	ErrMigrationNotScheduledYet = errors.New("migration not scheduled yet")
	// ErrAllowanceExceeded rejects spending more of an owner's shares than approved.
	ErrAllowanceExceeded = errors.New("share allowance exceeded")
	// ErrInsufficientShares rejects burning more shares than the owner holds.
	ErrInsufficientShares = errors.New("insufficient shares")
)
