package identity

import (
	"bytes"

	"github.com/iov-one/multident"
	"github.com/iov-one/multident/x/multicontroller"
)

// DIDDoc is the opaque, optional DID document blob controlled by an
// identity. A nil value means no document.
type DIDDoc []byte

// didMagic is the well-formedness prefix every non-empty document must
// carry.
var didMagic = []byte("DID")

// DocumentValidator reports whether a candidate blob is recognizable as
// a DID document. The default implementation checks the fixed 3-byte
// magic prefix, nothing more. Content validation belongs to external
// layers.
type DocumentValidator func(raw []byte) bool

// IsDIDDocument is the default DocumentValidator.
func IsDIDDocument(raw []byte) bool {
	return bytes.HasPrefix(raw, didMagic)
}

// Schema versions of the identity record. Identities migrated from the
// legacy package are seeded at the legacy version and can be upgraded
// through an Upgrade proposal.
const (
	LegacyVersion  uint32 = 1
	CurrentVersion uint32 = 2
)

// Asset is an opaque sub-object owned by an identity. Assets arrive
// through migration or explicit transfer and leave through approved
// Send proposals.
type Asset struct {
	ID      string `cbor:"1,keyasint" json:"id"`
	Payload []byte `cbor:"2,keyasint,omitempty" json:"payload,omitempty"`
}

// SentAsset pairs a released asset with the address it was released to.
type SentAsset struct {
	Asset     Asset
	Recipient multident.Address
}

// BorrowReceipt is the return obligation created by executing a Borrow
// proposal. The borrowed assets must be handed back with
// ReturnBorrowed, using this receipt, before the action is considered
// closed.
type BorrowReceipt struct {
	proposal  multicontroller.ProposalID
	objectIDs []string
	returned  bool
}

// Proposal returns the id of the borrow proposal.
func (r *BorrowReceipt) Proposal() multicontroller.ProposalID {
	return r.proposal
}

// CapCheckout is the return obligation created by executing a
// ControllerExecution proposal. The nested controller capability must
// be handed back with ReturnControllerCap.
type CapCheckout struct {
	key      string
	returned bool
}

// ownedCap is a nested controller capability held by this identity, so
// the identity can act as a controller of another engine.
type ownedCap struct {
	cap   *multicontroller.Controller
	owner multident.Address
	lent  bool
}

func capKey(controller, owner multident.Address) string {
	return controller.String() + "/" + owner.String()
}

// ProposeResult reports the outcome of a two-phase operation entry
// point. When the proposer alone met the threshold the proposal was
// executed immediately and Executed is true; otherwise ID names the
// pending proposal for others to approve.
type ProposeResult struct {
	ID       multicontroller.ProposalID
	Executed bool
}

// Identity is a shared, versioned identity record: a multicontroller
// engine wrapping an optional DID document, plus bookkeeping for
// provenance, schema version and owned sub-objects.
type Identity struct {
	address    multident.Address
	ctrl       *multicontroller.Multicontroller[DIDDoc]
	legacyID   []byte
	created    multident.UnixMillis
	updated    multident.UnixMillis
	version    uint32
	deleted    bool
	deletedDID bool
	assets     map[string]Asset
	borrowed   map[string]Asset
	caps       map[string]*ownedCap
	emitter    multident.Emitter
	validator  DocumentValidator
}

// Address returns the unique identifier of this identity.
func (i *Identity) Address() multident.Address {
	return i.address
}

// Document returns the current DID document, nil when none is set.
func (i *Identity) Document() DIDDoc {
	return i.ctrl.Value()
}

// LegacyID returns the identifier of the legacy resource this identity
// was migrated from, nil for identities born in this package.
func (i *Identity) LegacyID() []byte {
	return i.legacyID
}

// Created returns the creation time. For migrated identities this is
// the original creation time of the legacy resource.
func (i *Identity) Created() multident.UnixMillis {
	return i.created
}

// Updated returns the time of the last executed mutation.
func (i *Identity) Updated() multident.UnixMillis {
	return i.updated
}

// Version returns the schema version of this identity.
func (i *Identity) Version() uint32 {
	return i.version
}

// Deleted returns true once the identity was deleted. Deletion is
// terminal.
func (i *Identity) Deleted() bool {
	return i.deleted
}

// DeletedDID returns true once the DID document was deleted, while the
// identity object itself may still exist for bookkeeping.
func (i *Identity) DeletedDID() bool {
	return i.deletedDID
}

// Threshold returns the voting threshold of the controller committee.
func (i *Identity) Threshold() uint64 {
	return i.ctrl.Threshold()
}

// Members returns the current controller committee.
func (i *Identity) Members() []multicontroller.Member {
	return i.ctrl.Members()
}

// ControllerCount returns the size of the controller committee.
func (i *Identity) ControllerCount() int {
	return i.ctrl.ControllerCount()
}

// ActiveProposals returns the pending proposal ids in creation order.
func (i *Identity) ActiveProposals() []multicontroller.ProposalID {
	return i.ctrl.ActiveProposals()
}

// Proposal returns a read-only view of a pending proposal.
func (i *Identity) Proposal(id multicontroller.ProposalID) (*multicontroller.Proposal[DIDDoc], error) {
	return i.ctrl.Proposal(id)
}

// Asset returns an owned sub-object by id.
func (i *Identity) Asset(id string) (Asset, bool) {
	a, ok := i.assets[id]
	return a, ok
}

// AssetCount returns the number of owned sub-objects, not counting
// currently borrowed ones.
func (i *Identity) AssetCount() int {
	return len(i.assets)
}

func (i *Identity) emit(ev multident.Event) {
	i.emitter.Emit(ev)
}
