/*
Package multicontroller implements a generic multi-party authorization
engine.

An arbitrary value is jointly owned by a weighted set of controllers.
Any mutation of the value, of the controller set or of the engine
configuration must first be proposed, collect enough approvals to reach
the configured voting threshold and then be executed. Executing a
proposal yields an Action capability that carries the typed payload to
the handler applying the effect. An Action must be consumed exactly
once.

Controllers authenticate through delegation tokens. Every controller
capability owns one full-permission access token that it can check out
and must check back in. Additional tokens with narrower permissions can
be minted by controllers allowed to delegate and each token is
independently revocable.

The engine assumes the caller serializes all operations against one
instance. There is no locking and no I/O here, every operation is a
synchronous in-memory state transition.
*/
package multicontroller
