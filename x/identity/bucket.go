package identity

import (
	"sort"

	"github.com/iov-one/multident"
	"github.com/iov-one/multident/errors"
	"github.com/iov-one/multident/orm"
	"github.com/iov-one/multident/x/multicontroller"
)

// Record is the serializable form of an identity in the database.
// Outstanding borrow receipts and capability checkouts are transaction
// scoped and never persisted, nested controller capabilities are live
// objects held by their owner and not part of the record either.
type Record struct {
	Metadata   *multident.Metadata           `cbor:"1,keyasint" json:"metadata"`
	Address    multident.Address             `cbor:"2,keyasint" json:"address"`
	Engine     multicontroller.State[DIDDoc] `cbor:"3,keyasint" json:"engine"`
	LegacyID   []byte                        `cbor:"4,keyasint,omitempty" json:"legacy_id,omitempty"`
	Created    multident.UnixMillis          `cbor:"5,keyasint" json:"created"`
	Updated    multident.UnixMillis          `cbor:"6,keyasint" json:"updated"`
	Deleted    bool                          `cbor:"7,keyasint,omitempty" json:"deleted,omitempty"`
	DeletedDID bool                          `cbor:"8,keyasint,omitempty" json:"deleted_did,omitempty"`
	Assets     []Asset                       `cbor:"9,keyasint,omitempty" json:"assets,omitempty"`
}

var _ orm.Model = (*Record)(nil)

// Validate ensures the record is consistent before it hits the
// database.
func (r *Record) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", r.Metadata.Validate())
	errs = errors.AppendField(errs, "Address", r.Address.Validate())
	if r.Metadata != nil && r.Metadata.Schema > CurrentVersion {
		errs = errors.Append(errs, errors.Wrapf(errors.ErrSchema, "unknown schema %d", r.Metadata.Schema))
	}
	errs = errors.AppendField(errs, "Created", r.Created.Validate())
	errs = errors.AppendField(errs, "Updated", r.Updated.Validate())
	if r.Updated < r.Created {
		errs = errors.Append(errs, errors.Wrap(ErrInvalidTimestamp, "updated before created"))
	}
	if r.DeletedDID && len(r.Engine.Value) != 0 {
		errs = errors.Append(errs, errors.Wrap(errors.ErrState, "deleted document still present"))
	}
	seen := make(map[string]struct{}, len(r.Assets))
	for _, a := range r.Assets {
		if a.ID == "" {
			errs = errors.Append(errs, errors.Wrap(errors.ErrEmpty, "asset id"))
			continue
		}
		if _, ok := seen[a.ID]; ok {
			errs = errors.Append(errs, errors.Wrapf(errors.ErrDuplicate, "asset %q", a.ID))
		}
		seen[a.ID] = struct{}{}
	}
	return errs
}

// Record captures the identity into its serializable form.
func (i *Identity) Record() *Record {
	assets := make([]Asset, 0, len(i.assets))
	for _, a := range i.assets {
		assets = append(assets, a)
	}
	sort.Slice(assets, func(x, y int) bool { return assets[x].ID < assets[y].ID })
	return &Record{
		Metadata:   &multident.Metadata{Schema: i.version},
		Address:    i.address.Clone(),
		Engine:     i.ctrl.State(),
		LegacyID:   i.legacyID,
		Created:    i.created,
		Updated:    i.updated,
		Deleted:    i.deleted,
		DeletedDID: i.deletedDID,
		Assets:     assets,
	}
}

// FromRecord rebuilds a live identity from its serializable form.
// Borrowed assets and handed out capabilities do not survive a
// transaction boundary, so the rebuilt identity starts with none
// outstanding.
func FromRecord(r *Record, opts ...Option) (*Identity, error) {
	if err := r.Validate(); err != nil {
		return nil, errors.Wrap(err, "record")
	}
	ctrl, err := multicontroller.FromState(r.Engine)
	if err != nil {
		return nil, errors.Wrap(err, "engine state")
	}
	ident := &Identity{
		address:    r.Address.Clone(),
		ctrl:       ctrl,
		legacyID:   r.LegacyID,
		created:    r.Created,
		updated:    r.Updated,
		version:    r.Metadata.Schema,
		deleted:    r.Deleted,
		deletedDID: r.DeletedDID,
		assets:     make(map[string]Asset, len(r.Assets)),
		borrowed:   make(map[string]Asset),
		caps:       make(map[string]*ownedCap),
		emitter:    multident.NopEmitter(),
		validator:  IsDIDDocument,
	}
	for _, a := range r.Assets {
		ident.assets[a.ID] = a
	}
	for _, opt := range opts {
		opt(ident)
	}
	return ident, nil
}

// Bucket stores identity records keyed by address.
type Bucket struct {
	orm.ModelBucket
}

// NewBucket returns a bucket for identity records.
func NewBucket() Bucket {
	return Bucket{ModelBucket: orm.NewModelBucket("identity")}
}

// Save persists the identity under its address.
func (b Bucket) Save(db multident.KVStore, i *Identity) error {
	return b.Put(db, i.address, i.Record())
}

// Load restores the identity stored under the given address. Returns
// ErrNotFound if no identity exists there.
func (b Bucket) Load(db multident.ReadOnlyKVStore, address multident.Address, opts ...Option) (*Identity, error) {
	var r Record
	if err := b.One(db, address, &r); err != nil {
		return nil, err
	}
	return FromRecord(&r, opts...)
}
