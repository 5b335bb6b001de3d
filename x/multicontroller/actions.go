package multicontroller

import (
	"github.com/iov-one/multident"
	"github.com/iov-one/multident/errors"
)

// ActionKind enumerates the closed set of proposal payload types.
type ActionKind uint8

const (
	KindInvalid ActionKind = iota
	KindDelete
	KindUpgrade
	KindUpdateValue
	KindModify
	KindSend
	KindBorrow
	KindControllerExecution
)

func (k ActionKind) String() string {
	switch k {
	case KindDelete:
		return "delete"
	case KindUpgrade:
		return "upgrade"
	case KindUpdateValue:
		return "update_value"
	case KindModify:
		return "modify"
	case KindSend:
		return "send"
	case KindBorrow:
		return "borrow"
	case KindControllerExecution:
		return "controller_execution"
	default:
		return "invalid"
	}
}

// Member pairs a controller address with its voting power.
type Member struct {
	Address multident.Address `cbor:"1,keyasint" json:"address"`
	Weight  uint64            `cbor:"2,keyasint" json:"weight"`
}

// Validate returns an error if the member entry is not usable.
func (m Member) Validate() error {
	if err := m.Address.Validate(); err != nil {
		return errors.Wrap(err, "address")
	}
	if m.Weight == 0 {
		return errors.Wrap(errors.ErrInput, "weight must be greater than 0")
	}
	return nil
}

// DeleteAction requests marking the controlled value empty and the
// owning entity deleted.
type DeleteAction struct{}

// UpgradeAction requests bumping the schema version of the owning
// entity.
type UpgradeAction struct{}

// UpdateAction requests replacing the controlled value.
type UpdateAction[V any] struct {
	Value V `cbor:"1,keyasint" json:"value"`
}

// ModifyAction requests reconfiguring the controller set and/or the
// threshold. Nil Threshold keeps the current value.
type ModifyAction struct {
	Threshold *uint64             `cbor:"1,keyasint,omitempty" json:"threshold,omitempty"`
	Add       []Member            `cbor:"2,keyasint,omitempty" json:"add,omitempty"`
	Remove    []multident.Address `cbor:"3,keyasint,omitempty" json:"remove,omitempty"`
	Update    []Member            `cbor:"4,keyasint,omitempty" json:"update,omitempty"`
}

// Validate checks the internal consistency of the modification. Whether
// the change is applicable to a concrete engine state is checked by the
// engine at proposal creation.
func (a *ModifyAction) Validate() error {
	if a.Threshold == nil && len(a.Add) == 0 && len(a.Remove) == 0 && len(a.Update) == 0 {
		return errors.Wrap(errors.ErrEmpty, "no modification")
	}
	if a.Threshold != nil && *a.Threshold == 0 {
		return errors.Wrap(ErrInvalidThreshold, "threshold must be greater than 0")
	}
	for i, m := range a.Add {
		if err := m.Validate(); err != nil {
			return errors.Wrapf(err, "add %d", i)
		}
	}
	for i, m := range a.Update {
		if err := m.Validate(); err != nil {
			return errors.Wrapf(err, "update %d", i)
		}
	}
	for i, addr := range a.Remove {
		if err := addr.Validate(); err != nil {
			return errors.Wrapf(err, "remove %d", i)
		}
	}
	return nil
}

// Transfer names one owned sub-object and the address it is released
// to.
type Transfer struct {
	ObjectID  string            `cbor:"1,keyasint" json:"object_id"`
	Recipient multident.Address `cbor:"2,keyasint" json:"recipient"`
}

// SendAction requests transferring owned sub-objects out of the owning
// entity.
type SendAction struct {
	Transfers []Transfer `cbor:"1,keyasint" json:"transfers"`
}

// BorrowAction requests a temporary checkout of owned sub-objects. The
// borrowed objects must be returned before the action is considered
// closed.
type BorrowAction struct {
	ObjectIDs []string `cbor:"1,keyasint" json:"object_ids"`
}

// ControllerExecutionAction authorizes a one-time checkout of a nested
// controller capability, so the owning entity can act as a controller
// of another engine.
type ControllerExecutionAction struct {
	// Controller is the address the nested capability identifies.
	Controller multident.Address `cbor:"1,keyasint" json:"controller"`
	// Owner is the address of the entity whose engine the capability
	// controls.
	Owner multident.Address `cbor:"2,keyasint" json:"owner"`
}

// ProposalAction is the typed payload of a proposal. Exactly one field
// is set. The kind set is closed, so a tagged union is used instead of
// an open interface.
type ProposalAction[V any] struct {
	Delete              *DeleteAction              `cbor:"1,keyasint,omitempty" json:"delete,omitempty"`
	Upgrade             *UpgradeAction             `cbor:"2,keyasint,omitempty" json:"upgrade,omitempty"`
	UpdateValue         *UpdateAction[V]           `cbor:"3,keyasint,omitempty" json:"update_value,omitempty"`
	Modify              *ModifyAction              `cbor:"4,keyasint,omitempty" json:"modify,omitempty"`
	Send                *SendAction                `cbor:"5,keyasint,omitempty" json:"send,omitempty"`
	Borrow              *BorrowAction              `cbor:"6,keyasint,omitempty" json:"borrow,omitempty"`
	ControllerExecution *ControllerExecutionAction `cbor:"7,keyasint,omitempty" json:"controller_execution,omitempty"`
}

// Kind returns the payload type, or KindInvalid when not exactly one
// variant is set.
func (a ProposalAction[V]) Kind() ActionKind {
	var (
		kind ActionKind
		n    int
	)
	if a.Delete != nil {
		kind, n = KindDelete, n+1
	}
	if a.Upgrade != nil {
		kind, n = KindUpgrade, n+1
	}
	if a.UpdateValue != nil {
		kind, n = KindUpdateValue, n+1
	}
	if a.Modify != nil {
		kind, n = KindModify, n+1
	}
	if a.Send != nil {
		kind, n = KindSend, n+1
	}
	if a.Borrow != nil {
		kind, n = KindBorrow, n+1
	}
	if a.ControllerExecution != nil {
		kind, n = KindControllerExecution, n+1
	}
	if n != 1 {
		return KindInvalid
	}
	return kind
}

// Validate ensures exactly one variant is set and that the variant
// itself is consistent.
func (a ProposalAction[V]) Validate() error {
	switch a.Kind() {
	case KindInvalid:
		return errors.Wrap(errors.ErrMsg, "exactly one action variant must be set")
	case KindModify:
		return a.Modify.Validate()
	case KindSend:
		if len(a.Send.Transfers) == 0 {
			return errors.Wrap(errors.ErrEmpty, "no transfers")
		}
		for i, t := range a.Send.Transfers {
			if t.ObjectID == "" {
				return errors.Wrapf(errors.ErrEmpty, "transfer %d: object id", i)
			}
			if err := t.Recipient.Validate(); err != nil {
				return errors.Wrapf(err, "transfer %d: recipient", i)
			}
		}
	case KindBorrow:
		if len(a.Borrow.ObjectIDs) == 0 {
			return errors.Wrap(errors.ErrEmpty, "no object ids")
		}
	case KindControllerExecution:
		if err := a.ControllerExecution.Controller.Validate(); err != nil {
			return errors.Wrap(err, "controller")
		}
		if err := a.ControllerExecution.Owner.Validate(); err != nil {
			return errors.Wrap(err, "owner")
		}
	}
	return nil
}

// NewDeleteAction returns a delete payload.
func NewDeleteAction[V any]() ProposalAction[V] {
	return ProposalAction[V]{Delete: &DeleteAction{}}
}

// NewUpgradeAction returns an upgrade payload.
func NewUpgradeAction[V any]() ProposalAction[V] {
	return ProposalAction[V]{Upgrade: &UpgradeAction{}}
}

// NewUpdateAction returns a payload replacing the controlled value.
func NewUpdateAction[V any](value V) ProposalAction[V] {
	return ProposalAction[V]{UpdateValue: &UpdateAction[V]{Value: value}}
}

// NewModifyAction returns a payload reconfiguring the controller set.
func NewModifyAction[V any](mod ModifyAction) ProposalAction[V] {
	return ProposalAction[V]{Modify: &mod}
}

// NewSendAction returns a payload transferring owned sub-objects.
func NewSendAction[V any](transfers ...Transfer) ProposalAction[V] {
	return ProposalAction[V]{Send: &SendAction{Transfers: transfers}}
}

// NewBorrowAction returns a payload borrowing owned sub-objects.
func NewBorrowAction[V any](objectIDs ...string) ProposalAction[V] {
	return ProposalAction[V]{Borrow: &BorrowAction{ObjectIDs: objectIDs}}
}

// NewControllerExecutionAction returns a payload checking out a nested
// controller capability.
func NewControllerExecutionAction[V any](controller, owner multident.Address) ProposalAction[V] {
	return ProposalAction[V]{ControllerExecution: &ControllerExecutionAction{
		Controller: controller,
		Owner:      owner,
	}}
}
