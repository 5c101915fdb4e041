package model

import "errors"

// Workflow engine error taxonomy. Services wrap these with detail via
// fmt.Errorf("...: %w", ...); handlers map them to HTTP statuses with
// errors.Is. None of them is ever swallowed into a silent no-op.
var (
	// ErrNotFound: unknown report, period or (rig, role) pair.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition: the action is illegal for the current status,
	// e.g. acting on a closed workflow or initiating a non-draft report.
	ErrInvalidTransition = errors.New("invalid workflow transition")

	// ErrUnauthorized: the caller does not resolve to the approver
	// currently required to act.
	ErrUnauthorized = errors.New("caller is not the required approver")

	// ErrValidation: missing required input, or no approver can be
	// resolved for a role the workflow needs.
	ErrValidation = errors.New("validation failed")

	// ErrConcurrencyConflict: lost a race against a concurrent action on
	// the same row. Safe for the caller to re-read and retry.
	ErrConcurrencyConflict = errors.New("concurrent modification conflict")
)
