package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state or step sequence is inconsistent
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrNotAuthorized is returned when the acting user is not the expected approver
	ErrNotAuthorized = errors.New("not authorized to decide this approval")

	// ErrNoPendingApproval is returned when there is no outstanding approval step
	ErrNoPendingApproval = errors.New("no pending approval")
)
