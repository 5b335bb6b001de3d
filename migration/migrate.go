package migration

import (
	"github.com/iov-one/multident"
	"github.com/iov-one/multident/errors"
	"github.com/iov-one/multident/x/identity"
	"github.com/iov-one/multident/x/multicontroller"
)

// LegacyRecord is the relevant state of a legacy single-owner resource,
// extracted by the caller before handing it over for migration.
type LegacyRecord struct {
	// LegacyID is the unique identifier of the legacy resource.
	LegacyID []byte
	// Document is the optional DID document carried by the resource.
	Document identity.DIDDoc
	// Created is the original creation time of the resource.
	Created multident.UnixMillis
	// Assets are the sub-objects owned by the resource. They are
	// forwarded into the ownership of the migrated identity.
	Assets []identity.Asset
}

func (r LegacyRecord) Validate() error {
	var errs error
	if len(r.LegacyID) == 0 {
		errs = errors.AppendField(errs, "LegacyID", errors.ErrEmpty)
	}
	errs = errors.AppendField(errs, "Created", r.Created.Validate())
	for _, a := range r.Assets {
		if a.ID == "" {
			errs = errors.AppendField(errs, "Assets", errors.ErrEmpty)
		}
	}
	return errs
}

// Migrator converts legacy resources into identities and keeps both
// the identity bucket and the registry consistent.
type Migrator struct {
	identities identity.Bucket
	registry   Registry
}

// NewMigrator returns a migrator over the default buckets.
func NewMigrator() Migrator {
	return Migrator{
		identities: identity.NewBucket(),
		registry:   NewRegistry(),
	}
}

// Registry exposes the underlying registry for lookups.
func (m Migrator) Registry() Registry {
	return m.registry
}

// Identities exposes the underlying identity bucket.
func (m Migrator) Identities() identity.Bucket {
	return m.identities
}

// Migrate converts a legacy resource into a shared identity controlled
// by the given committee. The new identity preserves the original
// creation time, keeps the legacy identifier for provenance and takes
// ownership of the forwarded assets. The freshly minted controller
// capabilities are returned and must be handed to the members.
//
// Each legacy resource can be migrated exactly once. Within a ledger
// transaction the whole migration is atomic.
func (m Migrator) Migrate(
	ctx multident.Context,
	db multident.KVStore,
	rec LegacyRecord,
	members []multicontroller.Member,
	threshold uint64,
	opts ...identity.Option,
) (*identity.Identity, []*multicontroller.Controller, error) {
	if err := rec.Validate(); err != nil {
		return nil, nil, errors.Wrap(err, "legacy record")
	}
	if ok, err := m.registry.Has(db, rec.LegacyID); err != nil {
		return nil, nil, errors.Wrap(err, "registry lookup")
	} else if ok {
		return nil, nil, errors.Wrapf(errors.ErrDuplicate, "legacy id %X already migrated", rec.LegacyID)
	}

	ident, caps, err := identity.NewMigrated(
		ctx, rec.Document, members, threshold,
		rec.LegacyID, rec.Created, rec.Assets, opts...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot build identity")
	}

	now, err := multident.MustBlockTime(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := m.identities.Save(db, ident); err != nil {
		return nil, nil, errors.Wrap(err, "cannot store identity")
	}
	entry := &Entry{
		Metadata:   &multident.Metadata{Schema: 1},
		LegacyID:   rec.LegacyID,
		Address:    ident.Address(),
		MigratedAt: now,
	}
	if err := m.registry.Add(db, entry); err != nil {
		return nil, nil, errors.Wrap(err, "cannot register migration")
	}
	_ = multident.GetLogger(ctx).Log(
		"msg", "legacy resource migrated",
		"identity", ident.Address(),
		"controllers", len(members),
	)
	return ident, caps, nil
}
