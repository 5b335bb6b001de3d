/*
Package multident defines the common types shared by all multident
packages: addresses, time values, key-value store interfaces, context
helpers and observability events.

The heavy lifting lives in the subpackages. x/multicontroller implements
the generic weighted-quorum governance engine, x/identity applies it to a
jointly owned DID document and migration converts legacy single-owner
records into the new multi-controller form.

The surrounding ledger is expected to totally order all operations
against a single engine instance. Because of that this code performs no
locking and no I/O of its own. Every operation is a synchronous state
transition that validates first and mutates only once all checks passed.
*/
package multident
