package multicontroller

import "github.com/iov-one/multident/errors"

// multicontroller reserves error codes 1000-1019.
var (
	// ErrInvalidController is returned when a token does not resolve to
	// a current member of the engine, or when the token itself was
	// revoked.
	ErrInvalidController = errors.Register(1000, "invalid controller")

	// ErrInvalidPermissions is returned when a token is missing the
	// permission bit required for the attempted operation.
	ErrInvalidPermissions = errors.Register(1001, "invalid permissions")

	// ErrAlreadyVoted is returned when a controller approves a proposal
	// it has already voted on.
	ErrAlreadyVoted = errors.Register(1002, "controller already voted")

	// ErrNotVoted is returned when a controller retracts an approval it
	// never gave.
	ErrNotVoted = errors.Register(1003, "controller has not voted yet")

	// ErrThresholdNotReached is returned when a proposal is executed
	// before collecting enough voting power.
	ErrThresholdNotReached = errors.Register(1004, "voting threshold not reached")

	// ErrExpiredProposal is returned when an expired proposal is
	// executed.
	ErrExpiredProposal = errors.Register(1005, "proposal expired")

	// ErrInvalidThreshold is returned when a threshold is zero or
	// cannot be reached with the voting power of the controller set.
	ErrInvalidThreshold = errors.Register(1006, "invalid threshold")

	// ErrCannotDelete is returned when a proposal with votes is deleted
	// before expiring, or when an engine with pending proposals is
	// destroyed.
	ErrCannotDelete = errors.Register(1007, "cannot delete")

	// ErrProposalNotFound is returned when referencing a proposal that
	// does not exist or was already terminated.
	ErrProposalNotFound = errors.Register(1008, "proposal not found")
)
