/*
Package store provides an in-memory implementation of the multident
KVStore interfaces, backed by a btree.

MemStore is the canonical store for tests and for embedding the core in
a host that keeps all state in memory between commits. BTreeCacheWrap
layers a scratch-pad over any backing store so a transaction can be
built up and then written atomically or discarded, like Postgresql
SAVEPOINT / ROLLBACK TO SAVEPOINT.
*/
package store
