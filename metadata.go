package multident

import "github.com/iov-one/multident/errors"

// Metadata carries the schema version of the entity it is attached to.
// Every persisted model embeds one so that data written by an older
// release can be recognized and migrated.
type Metadata struct {
	Schema uint32 `cbor:"1,keyasint" json:"schema"`
}

// Validate returns an error if the metadata is not valid.
func (m *Metadata) Validate() error {
	if m == nil {
		return errors.Wrap(errors.ErrMetadata, "no metadata")
	}
	if m.Schema == 0 {
		return errors.Wrap(errors.ErrMetadata, "schema version is required")
	}
	return nil
}

// Copy returns a copy of this object. This method is helpful when
// implementing orm.Model interface to make a copy of the header.
func (m *Metadata) Copy() *Metadata {
	if m == nil {
		return nil
	}
	cpy := *m
	return &cpy
}
