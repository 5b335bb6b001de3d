package identity

import (
	"github.com/google/uuid"
	"github.com/iov-one/multident"
	"github.com/iov-one/multident/errors"
	"github.com/iov-one/multident/x/multicontroller"
)

// Option configures an identity at construction or load time.
type Option func(*Identity)

// WithEmitter routes observability events into the given emitter
// instead of discarding them.
func WithEmitter(e multident.Emitter) Option {
	return func(i *Identity) { i.emitter = e }
}

// WithDocumentValidator replaces the default magic-prefix document
// check.
func WithDocumentValidator(fn DocumentValidator) Option {
	return func(i *Identity) { i.validator = fn }
}

// New creates an identity jointly controlled by the given members. The
// document may be nil. The freshly minted controller capabilities are
// returned in member input order and must be handed to the members.
func New(ctx multident.Context, doc DIDDoc, members []multicontroller.Member, threshold uint64, opts ...Option) (*Identity, []*multicontroller.Controller, error) {
	now, err := multident.MustBlockTime(ctx)
	if err != nil {
		return nil, nil, err
	}
	return build(doc, members, threshold, buildParams{
		address: newIdentityAddress(),
		created: now,
		updated: now,
		version: CurrentVersion,
	}, opts)
}

// NewMigrated creates an identity from a legacy single-owner resource,
// preserving provenance: the original identifier and the original
// creation time. The creation time must not be in the future.
func NewMigrated(
	ctx multident.Context,
	doc DIDDoc,
	members []multicontroller.Member,
	threshold uint64,
	legacyID []byte,
	created multident.UnixMillis,
	assets []Asset,
	opts ...Option,
) (*Identity, []*multicontroller.Controller, error) {
	now, err := multident.MustBlockTime(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(legacyID) == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmpty, "legacy id")
	}
	if created > now {
		return nil, nil, errors.Wrapf(ErrInvalidTimestamp, "created %d after now %d", created, now)
	}
	ident, caps, err := build(doc, members, threshold, buildParams{
		address:  newIdentityAddress(),
		legacyID: legacyID,
		created:  created,
		updated:  now,
		version:  LegacyVersion,
	}, opts)
	if err != nil {
		return nil, nil, err
	}
	for _, a := range assets {
		if err := ident.ReceiveAsset(a); err != nil {
			return nil, nil, errors.Wrapf(err, "asset %q", a.ID)
		}
	}
	return ident, caps, nil
}

type buildParams struct {
	address  multident.Address
	legacyID []byte
	created  multident.UnixMillis
	updated  multident.UnixMillis
	version  uint32
}

func build(doc DIDDoc, members []multicontroller.Member, threshold uint64, p buildParams, opts []Option) (*Identity, []*multicontroller.Controller, error) {
	ident := &Identity{
		address:   p.address,
		legacyID:  p.legacyID,
		created:   p.created,
		updated:   p.updated,
		version:   p.version,
		assets:    make(map[string]Asset),
		borrowed:  make(map[string]Asset),
		caps:      make(map[string]*ownedCap),
		emitter:   multident.NopEmitter(),
		validator: IsDIDDocument,
	}
	for _, opt := range opts {
		opt(ident)
	}

	if len(members) == 0 {
		return nil, nil, errors.Wrap(ErrInvalidControllersList, "no controllers")
	}
	if len(doc) > 0 && !ident.validator(doc) {
		return nil, nil, errors.Wrap(ErrNotADidDocument, "malformed document")
	}

	ctrl, caps, err := multicontroller.New[DIDDoc](ident.address, members, threshold, doc)
	if err != nil {
		return nil, nil, errors.Wrap(err, "controller engine")
	}
	ident.ctrl = ctrl
	return ident, caps, nil
}

// Identities have no natural key, the ledger assigns object identity.
// A random identifier hashed into the address space keeps this package
// self-contained.
func newIdentityAddress() multident.Address {
	return multident.NewAddress([]byte(uuid.NewString()))
}

// ReceiveAsset transfers an opaque sub-object into the ownership of
// this identity.
func (i *Identity) ReceiveAsset(a Asset) error {
	if i.deleted {
		return errors.Wrap(ErrDeletedIdentity, "identity deleted")
	}
	if a.ID == "" {
		return errors.Wrap(errors.ErrEmpty, "asset id")
	}
	if _, ok := i.assets[a.ID]; ok {
		return errors.Wrapf(errors.ErrDuplicate, "asset %q", a.ID)
	}
	if _, ok := i.borrowed[a.ID]; ok {
		return errors.Wrapf(errors.ErrDuplicate, "asset %q", a.ID)
	}
	i.assets[a.ID] = a
	return nil
}

// ReceiveControllerCap hands this identity a controller capability of
// another engine, so the identity can act as a controller of it. The
// capability can later be checked out through a ControllerExecution
// proposal.
func (i *Identity) ReceiveControllerCap(owner multident.Address, cap *multicontroller.Controller) error {
	if i.deleted {
		return errors.Wrap(ErrDeletedIdentity, "identity deleted")
	}
	if cap == nil {
		return errors.Wrap(errors.ErrEmpty, "no capability")
	}
	if err := owner.Validate(); err != nil {
		return errors.Wrap(err, "owner")
	}
	key := capKey(cap.Address(), owner)
	if _, ok := i.caps[key]; ok {
		return errors.Wrapf(errors.ErrDuplicate, "capability %s", key)
	}
	i.caps[key] = &ownedCap{cap: cap, owner: owner.Clone()}
	return nil
}
