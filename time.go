package multident

import (
	"encoding/json"
	"time"

	"github.com/iov-one/multident/errors"
)

// UnixMillis represents a point in time as milliseconds since the UNIX
// epoch. Instead of using Go's time.Time that includes nanoseconds, a
// primitive int64 type with milliseconds precision is used. This matches
// the precision the surrounding ledger provides and most languages can
// represent it without loss.
type UnixMillis int64

// Time returns a time.Time structure that represents the same moment in time.
func (t UnixMillis) Time() time.Time {
	return time.Unix(0, int64(t)*int64(time.Millisecond))
}

// IsZero returns true if this time represents a zero value.
func (t UnixMillis) IsZero() bool {
	return t == 0
}

// Add modifies this time by given duration. This is compatible with
// time.Time.Add method.
func (t UnixMillis) Add(d time.Duration) UnixMillis {
	return t + UnixMillis(d/time.Millisecond)
}

// AsUnixMillis converts given Time structure into its milliseconds
// representation.
func AsUnixMillis(t time.Time) UnixMillis {
	return UnixMillis(t.UnixNano() / int64(time.Millisecond))
}

// UnmarshalJSON supports unmarshaling both as time.Time and from a
// number. Usually a number is used as a representation of this time in
// JSON but it is convenient to use a string format in configurations.
func (t *UnixMillis) UnmarshalJSON(raw []byte) error {
	var msec int64
	if err := json.Unmarshal(raw, &msec); err == nil {
		if msec < 0 {
			return errors.Wrap(errors.ErrInput, "time before epoch")
		}
		*t = UnixMillis(msec)
		return nil
	}

	var stdtime time.Time
	if err := json.Unmarshal(raw, &stdtime); err == nil {
		msec := AsUnixMillis(stdtime)
		if msec < 0 {
			return errors.Wrap(errors.ErrInput, "time before epoch")
		}
		*t = msec
		return nil
	}

	return errors.Wrap(errors.ErrInput, "invalid time format")
}

// Validate returns an error if this time value is invalid.
func (t UnixMillis) Validate() error {
	if t < 0 {
		return errors.Wrap(errors.ErrState, "negative value")
	}
	return nil
}

// String returns the usual string representation of this time as the
// time.Time structure would.
func (t UnixMillis) String() string {
	return t.Time().UTC().String()
}
