package identity

import "github.com/iov-one/multident/errors"

// identity reserves error codes 1100-1119.
var (
	// ErrDeletedIdentity is returned when an operation is attempted on
	// a deleted identity, or on one whose DID document was deleted.
	ErrDeletedIdentity = errors.Register(1100, "deleted identity")

	// ErrNotADidDocument is returned when a value does not look like a
	// DID document.
	ErrNotADidDocument = errors.Register(1101, "not a DID document")

	// ErrNoUpgrade is returned when the identity already runs the
	// current schema version.
	ErrNoUpgrade = errors.Register(1102, "no upgrade available")

	// ErrInvalidControllersList is returned when an identity is created
	// without controllers.
	ErrInvalidControllersList = errors.Register(1103, "invalid controllers list")

	// ErrInvalidTimestamp is returned when a migrated creation time is
	// in the future.
	ErrInvalidTimestamp = errors.Register(1104, "invalid timestamp")
)
