/*
Package migration converts legacy single-owner resources into shared,
multi-controller identities.

A migration wraps the legacy document into a fresh identity, preserving
the original creation time and identifier, forwards the owned
sub-objects and records the legacy id in an append-only registry so
that each resource can be migrated exactly once and later resolved to
its successor.
*/
package migration
