/*
Package errors implements coded errors for multident.

The idea is to reuse as many errors from this package as possible and
define custom package errors when absolutely necessary. It is best to
define a new error here if you feel it is going to be somewhat
package-agnostic. Extension packages (x/multicontroller, x/identity,
migration) register their own root errors with unique codes.

If you want to register a custom error, use Register(code, description).
For reusing errors, use Errxxx.New and Errxxx.Newf. The code allows a
client to distinguish error types and act accordingly.

There is also support for stack traces. Ensure you create the error
using ErrXyz.New("...") or errors.Wrap(err, "...") at the point of
creation to attach a stack trace. If you wrap multiple times, only the
first wrap records the trace.

Once you have an error, you can use fmt.Printf/Sprintf to get more
context for the error

	%s is just the error message
	%v is the same as %s
	%+v is the full stack trace
*/
package errors
