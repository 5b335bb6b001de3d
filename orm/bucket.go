/*
Package orm provides an easy to use db wrapper

Break state space into prefixed sections called Buckets. Each bucket
contains only one type of object, serialized with deterministic CBOR,
and has a primary key index. Sequences provide auto-increment counters
scoped to a bucket.
*/
package orm

import (
	"fmt"
	"regexp"

	"github.com/fxamacker/cbor/v2"
	"github.com/iov-one/multident"
	"github.com/iov-one/multident/errors"
)

var isBucketName = regexp.MustCompile(`^[a-z_]{3,10}$`).MatchString

// Model is implemented by any entity that can be stored in a
// ModelBucket. Serialization is handled by the bucket, a model only
// guards its own consistency.
type Model interface {
	Validate() error
}

// encMode serializes all models deterministically so that the same
// state always produces the same bytes.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// ModelBucket is a prefixed subspace of the database holding entities
// of a single type.
//
// This is a generic building block that should generally be embedded in
// a type-safe wrapper to ensure all data is the same type.
type ModelBucket struct {
	name   string
	prefix []byte
}

// NewModelBucket creates a bucket to store data under the given name
// prefix.
func NewModelBucket(name string) ModelBucket {
	if !isBucketName(name) {
		panic(fmt.Sprintf("illegal bucket: %s", name))
	}
	return ModelBucket{
		name:   name,
		prefix: append([]byte(name), ':'),
	}
}

// Name returns the name of the bucket.
func (b ModelBucket) Name() string {
	return b.name
}

// Sequence returns a named sequence scoped to this bucket.
func (b ModelBucket) Sequence(name string) Sequence {
	return NewSequence(b.name, name)
}

// DBKey is the full key we store in the db, including prefix. We copy
// into a new array rather than use append, as we don't want consecutive
// calls to overwrite the same byte array.
func (b ModelBucket) DBKey(key []byte) []byte {
	l := len(b.prefix)
	out := make([]byte, l+len(key))
	copy(out, b.prefix)
	copy(out[l:], key)
	return out
}

// One queries the database for a single model instance. Lookup is done
// by the primary key. The result is loaded into dest. This method
// returns ErrNotFound if the entity does not exist in the database.
func (b ModelBucket) One(db multident.ReadOnlyKVStore, key []byte, dest Model) error {
	raw, err := db.Get(b.DBKey(key))
	if err != nil {
		return errors.Wrap(err, "bucket lookup")
	}
	if raw == nil {
		return errors.Wrapf(errors.ErrNotFound, "%T not in the store", dest)
	}
	if err := cbor.Unmarshal(raw, dest); err != nil {
		return errors.Wrapf(errors.ErrModel, "cannot deserialize %T: %s", dest, err)
	}
	return nil
}

// Has returns true if an entity with the given key exists.
func (b ModelBucket) Has(db multident.ReadOnlyKVStore, key []byte) (bool, error) {
	return db.Has(b.DBKey(key))
}

// Put validates and saves given model in the database under the given
// key.
func (b ModelBucket) Put(db multident.KVStore, key []byte, m Model) error {
	if err := m.Validate(); err != nil {
		return errors.Wrap(err, "invalid model")
	}
	raw, err := encMode.Marshal(m)
	if err != nil {
		return errors.Wrapf(errors.ErrModel, "cannot serialize %T: %s", m, err)
	}
	if err := db.Set(b.DBKey(key), raw); err != nil {
		return errors.Wrap(err, "cannot store in the database")
	}
	return nil
}

// Delete removes an entity with given primary key from the database. It
// returns ErrNotFound if an entity with given key does not exist.
func (b ModelBucket) Delete(db multident.KVStore, key []byte) error {
	dbkey := b.DBKey(key)
	ok, err := db.Has(dbkey)
	if err != nil {
		return errors.Wrap(err, "bucket lookup")
	}
	if !ok {
		return errors.Wrap(errors.ErrNotFound, "no entity under this key")
	}
	return db.Delete(dbkey)
}

// Iterate walks all entities of the bucket in ascending key order. The
// callback receives the key (without the bucket prefix) and the raw
// serialized entity. Returning an error stops the iteration and is
// passed through.
func (b ModelBucket) Iterate(db multident.ReadOnlyKVStore, fn func(key, raw []byte) error) error {
	it, err := db.Iterator(b.prefix, prefixEnd(b.prefix))
	if err != nil {
		return errors.Wrap(err, "create iterator")
	}
	defer it.Release()

	for {
		key, raw, err := it.Next()
		if errors.ErrIteratorDone.Is(err) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "iterator")
		}
		if err := fn(key[len(b.prefix):], raw); err != nil {
			return err
		}
	}
}

// prefixEnd returns the first key that is lexicographically greater
// than all keys with the given prefix, or nil if the prefix is all
// 0xff.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
