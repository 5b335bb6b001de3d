package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Field returns an error instance that wraps the original error with
// additional information. It returns nil if the provided error is nil.
// Use this function to create an error instance describing a
// field/attribute error.
//
// Use Go naming for the field name. For example, UserName or MaxAge.
// When the error is for a nested field, use dot notation to construct
// the path. For example, User.Age or User.Name.
func Field(fieldName string, err error, description string, args ...interface{}) error {
	if isNilErr(err) {
		return nil
	}

	// If this error does not carry the stacktrace information yet,
	// attach one. This should be done only once per error at the lowest
	// frame possible (most inner wrap).
	if stackTrace(err) == nil {
		err = errors.WithStack(err)
	}

	if len(args) > 0 {
		description = fmt.Sprintf(description, args...)
	}

	return &fieldError{
		parent: err,
		field:  fieldName,
		desc:   description,
	}
}

// AppendField is a shortcut function to club together error(s) with a
// given field error.
func AppendField(errorsOrNil error, fieldName string, fieldErrOrNil error) error {
	return Append(errorsOrNil, Field(fieldName, fieldErrOrNil, ""))
}

// Append clubs together two errors into a single one. Each of the
// errors can be nil, a plain error or a result of another Append call.
func Append(a, b error) error {
	if isNilErr(a) {
		return b
	}
	if isNilErr(b) {
		return a
	}
	res := &multiError{}
	for _, err := range []error{a, b} {
		if m, ok := err.(*multiError); ok {
			res.errs = append(res.errs, m.errs...)
		} else {
			res.errs = append(res.errs, err)
		}
	}
	return res
}

type multiError struct {
	errs []error
}

func (err *multiError) Error() string {
	switch len(err.errs) {
	case 0:
		return "<nil>"
	case 1:
		return err.errs[0].Error()
	}
	msgs := make([]string, len(err.errs))
	for i, e := range err.errs {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d errors occurred:\n\t* %s", len(err.errs), strings.Join(msgs, "\n\t* "))
}

// Unpack implements the unpacker interface.
func (err *multiError) Unpack() []error {
	return err.errs
}

type fieldError struct {
	parent error
	field  string
	desc   string
}

func (err *fieldError) Error() string {
	if err.desc == "" {
		return fmt.Sprintf("field %q: %s", err.field, err.parent)
	}
	return fmt.Sprintf("field %q: %s: %s", err.field, err.desc, err.parent)
}

// Cause implements the causer interface.
func (err *fieldError) Cause() error {
	return err.parent
}

// Field implements the fielder interface.
func (err *fieldError) Field() string {
	return err.field
}

// FieldErrors returns the list of all errors that are created for the
// given field name.
func FieldErrors(err error, fieldName string) []error {
	if isNilErr(err) {
		return nil
	}

	var res []error
	for {
		if err == nil {
			return res
		}

		if f, ok := err.(fielder); ok {
			if f.Field() == fieldName {
				return append(res, err)
			}
		}

		if u, ok := err.(unpacker); ok {
			for _, e := range u.Unpack() {
				res = append(res, FieldErrors(e, fieldName)...)
			}
			// Unpacker is a superset of causer. If Unpack can be
			// called then we already work on all children of this
			// error.
			return res
		}

		if c, ok := err.(causer); ok {
			err = c.Cause()
		} else {
			return res
		}
	}
}

type fielder interface {
	// Field returns the field name that this error is created for.
	Field() string
}

// unpacker is implemented by errors that bundle several others.
type unpacker interface {
	Unpack() []error
}
