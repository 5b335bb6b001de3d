package migration

import (
	"github.com/iov-one/multident"
	"github.com/iov-one/multident/errors"
	"github.com/iov-one/multident/orm"
)

// Entry is one registry row, recording which identity a legacy
// resource was migrated into. Entries are written once and never
// updated or removed.
type Entry struct {
	Metadata   *multident.Metadata  `cbor:"1,keyasint" json:"metadata"`
	LegacyID   []byte               `cbor:"2,keyasint" json:"legacy_id"`
	Address    multident.Address    `cbor:"3,keyasint" json:"address"`
	MigratedAt multident.UnixMillis `cbor:"4,keyasint" json:"migrated_at"`
	// Position is the registration order, assigned by the registry.
	Position int64 `cbor:"5,keyasint" json:"position"`
}

var _ orm.Model = (*Entry)(nil)

func (e *Entry) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", e.Metadata.Validate())
	if len(e.LegacyID) == 0 {
		errs = errors.AppendField(errs, "LegacyID", errors.ErrEmpty)
	}
	errs = errors.AppendField(errs, "Address", e.Address.Validate())
	errs = errors.AppendField(errs, "MigratedAt", e.MigratedAt.Validate())
	return errs
}

// Registry is the append-only mapping from legacy resource identifiers
// to the addresses of their migrated identities.
type Registry struct {
	orm.ModelBucket
	idx orm.Sequence
}

// NewRegistry returns the migration registry bucket.
func NewRegistry() Registry {
	b := orm.NewModelBucket("legacy")
	return Registry{ModelBucket: b, idx: b.Sequence("id")}
}

// Add records a finished migration, stamping the entry with the next
// registration position. A legacy id can be registered only once.
func (r Registry) Add(db multident.KVStore, e *Entry) error {
	ok, err := r.Has(db, e.LegacyID)
	if err != nil {
		return errors.Wrap(err, "registry lookup")
	}
	if ok {
		return errors.Wrapf(errors.ErrDuplicate, "legacy id %X already migrated", e.LegacyID)
	}
	pos, err := r.idx.NextInt(db)
	if err != nil {
		return errors.Wrap(err, "position sequence")
	}
	e.Position = pos
	return r.Put(db, e.LegacyID, e)
}

// Lookup resolves a legacy id to the address of the identity it was
// migrated into. Returns ErrNotFound for resources that were never
// migrated.
func (r Registry) Lookup(db multident.ReadOnlyKVStore, legacyID []byte) (multident.Address, error) {
	var e Entry
	if err := r.One(db, legacyID, &e); err != nil {
		return nil, err
	}
	return e.Address, nil
}
