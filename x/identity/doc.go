/*
Package identity applies the multicontroller engine to a shared,
versioned identity record.

An Identity jointly owns an optional DID document blob. Every mutation,
transfer, upgrade or deletion of the document, of the controller
committee or of owned sub-objects follows the same two-phase pattern:
propose, collect approvals until the voting threshold is reached, then
execute. When the proposer alone already meets the threshold the
proposal executes immediately and no pending proposal remains.

The package does not validate DID document content beyond a fixed magic
prefix and performs no cryptographic operations. Both are concerns of
surrounding layers.
*/
package identity
