package multicontroller

import (
	"github.com/google/uuid"
	"github.com/iov-one/multident"
	"github.com/iov-one/multident/errors"
)

// TokenID uniquely identifies a delegation token.
type TokenID string

// DelegationToken is a capability derived from a controller. It carries
// a permission set that is at most as wide as the rights of the issuing
// controller and can be revoked independently of it.
//
// Tokens are value-like capabilities. They are created only by
// Controller.Delegate and by minting the controller itself, never
// directly.
type DelegationToken struct {
	id          TokenID
	controller  multident.Address
	permissions Permissions
}

// ID returns the unique identifier of this token.
func (t *DelegationToken) ID() TokenID {
	return t.id
}

// Controller returns the address of the controller this token derives
// from.
func (t *DelegationToken) Controller() multident.Address {
	return t.controller
}

// Permissions returns the permission bitmask of this token.
func (t *DelegationToken) Permissions() Permissions {
	return t.permissions
}

// TokenReceipt is the obligation created by checking out a controller's
// access token. It must be settled by returning the token. The receipt
// cannot be settled twice and a controller cannot check out its token
// again before settling.
type TokenReceipt struct {
	token   TokenID
	settled bool
}

// Controller is the capability identifying one member of a
// multicontroller engine. It owns exactly one always-valid access token
// with full permissions.
//
// Controller capabilities are minted by the engine when the controller
// set is created or modified, and destroyed only after the member was
// removed from the set.
type Controller struct {
	address     multident.Address
	canDelegate bool
	access      *DelegationToken
	lent        bool
	destroyed   bool
}

func newController(address multident.Address, canDelegate bool) *Controller {
	return &Controller{
		address:     address.Clone(),
		canDelegate: canDelegate,
		access: &DelegationToken{
			id:          TokenID(uuid.NewString()),
			controller:  address.Clone(),
			permissions: PermissionsFull,
		},
	}
}

// Address returns the identifier of this controller.
func (c *Controller) Address() multident.Address {
	return c.address
}

// CanDelegate returns true if this controller may mint new delegation
// tokens.
func (c *Controller) CanDelegate() bool {
	return c.canDelegate
}

// Destroyed returns true once this capability was destroyed.
func (c *Controller) Destroyed() bool {
	return c.destroyed
}

// AccessToken checks out the access token of this controller. The
// returned receipt must be settled with ReturnToken before the token
// can be checked out again. This prevents re-entrant use of the same
// token within one execution context.
func (c *Controller) AccessToken() (*DelegationToken, *TokenReceipt, error) {
	if c.destroyed {
		return nil, nil, errors.Wrap(errors.ErrState, "controller destroyed")
	}
	if c.lent {
		return nil, nil, errors.Wrap(errors.ErrState, "access token already checked out")
	}
	c.lent = true
	return c.access, &TokenReceipt{token: c.access.id}, nil
}

// ReturnToken settles a checkout. Both the token and the receipt must
// belong to this controller and the receipt must not be settled yet.
func (c *Controller) ReturnToken(token *DelegationToken, receipt *TokenReceipt) error {
	if token == nil || receipt == nil {
		return errors.Wrap(errors.ErrInput, "nil token or receipt")
	}
	if !c.lent {
		return errors.Wrap(errors.ErrState, "access token not checked out")
	}
	if token.id != c.access.id || receipt.token != c.access.id {
		return errors.Wrap(errors.ErrInput, "foreign token or receipt")
	}
	if receipt.settled {
		return errors.Wrap(errors.ErrState, "receipt already settled")
	}
	receipt.settled = true
	c.lent = false
	return nil
}

// Delegate mints a new delegation token with the given permission
// subset. The controller must be allowed to delegate. Minted tokens are
// independent of the access token and of each other, and each can be
// revoked on the engine separately.
func (c *Controller) Delegate(permissions Permissions) (*DelegationToken, error) {
	if c.destroyed {
		return nil, errors.Wrap(errors.ErrState, "controller destroyed")
	}
	if !c.canDelegate {
		return nil, errors.Wrap(ErrInvalidPermissions, "controller cannot delegate")
	}
	if err := permissions.Validate(); err != nil {
		return nil, err
	}
	return &DelegationToken{
		id:          TokenID(uuid.NewString()),
		controller:  c.address.Clone(),
		permissions: permissions,
	}, nil
}

// destroy invalidates the capability. Used by the engine once the
// member was removed or the owning entity torn down.
func (c *Controller) destroy() {
	c.destroyed = true
}
