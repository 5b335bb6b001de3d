package multicontroller

import "github.com/iov-one/multident/errors"

// Permissions is a bitmask enumerating the fine-grained capabilities a
// delegation token carries.
type Permissions uint32

const (
	// CanCreateProposal allows creating new proposals.
	CanCreateProposal Permissions = 1 << iota
	// CanApproveProposal allows adding an approval to a proposal.
	CanApproveProposal
	// CanExecuteProposal allows executing a proposal that reached the
	// threshold.
	CanExecuteProposal
	// CanRemoveApproval allows retracting a previously given approval.
	CanRemoveApproval
	// CanDeleteProposal allows deleting a proposal without votes or an
	// expired one.
	CanDeleteProposal
)

// PermissionsFull sets all known permission bits.
const PermissionsFull = CanCreateProposal |
	CanApproveProposal |
	CanExecuteProposal |
	CanRemoveApproval |
	CanDeleteProposal

// Has returns true if all bits of req are set.
func (p Permissions) Has(req Permissions) bool {
	return p&req == req
}

// Union returns the permissions with all bits of other added.
func (p Permissions) Union(other Permissions) Permissions {
	return p | other
}

// Intersect returns only the bits set in both permission sets.
func (p Permissions) Intersect(other Permissions) Permissions {
	return p & other
}

// Without returns the permissions with all bits of other removed.
func (p Permissions) Without(other Permissions) Permissions {
	return p &^ other
}

// Validate returns an error if unknown bits are set.
func (p Permissions) Validate() error {
	if p&^PermissionsFull != 0 {
		return errors.Wrapf(errors.ErrInput, "unknown permission bits: %b", p&^PermissionsFull)
	}
	return nil
}
