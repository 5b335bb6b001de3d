package multicontroller

import (
	"github.com/iov-one/multident"
	"github.com/iov-one/multident/errors"
)

// ProposalID identifies a proposal within one engine instance. IDs are
// assigned from a per-engine sequence and never reused.
type ProposalID uint64

// Proposal is a pending, votable request to perform one typed action on
// the shared value. It is created with the proposer's own vote already
// counted.
type Proposal[V any] struct {
	id         ProposalID
	votes      uint64
	voters     map[string]multident.Address
	expiration multident.UnixMillis
	action     ProposalAction[V]
}

// ID returns the proposal identifier.
func (p *Proposal[V]) ID() ProposalID {
	return p.id
}

// Votes returns the cumulative voting power collected so far. Weights
// are accumulated as they were at approval time.
func (p *Proposal[V]) Votes() uint64 {
	return p.votes
}

// HasVoted returns true if the given controller already voted.
func (p *Proposal[V]) HasVoted(addr multident.Address) bool {
	_, ok := p.voters[addr.String()]
	return ok
}

// VoterCount returns the number of controllers that voted.
func (p *Proposal[V]) VoterCount() int {
	return len(p.voters)
}

// Expiration returns the absolute expiration of this proposal, zero if
// it never expires.
func (p *Proposal[V]) Expiration() multident.UnixMillis {
	return p.expiration
}

// Action returns the typed payload. The returned value shares memory
// with the proposal and must be treated as read only.
func (p *Proposal[V]) Action() ProposalAction[V] {
	return p.action
}

// Action is the capability yielded by successfully executing a
// proposal. It is a hot potato: it must be handed to the handler
// matching its payload kind exactly once. Every extraction method
// consumes the action, a second extraction fails. This prevents
// "approved but never applied" state from going unnoticed.
type Action[V any] struct {
	proposal ProposalID
	payload  ProposalAction[V]
	consumed bool
}

// Proposal returns the id of the proposal this action was produced
// from.
func (a *Action[V]) Proposal() ProposalID {
	return a.proposal
}

// Consumed returns true once the payload was extracted.
func (a *Action[V]) Consumed() bool {
	return a.consumed
}

// Kind returns the payload type without consuming the action.
func (a *Action[V]) Kind() ActionKind {
	return a.payload.Kind()
}

func (a *Action[V]) take(kind ActionKind) (ProposalAction[V], error) {
	if a.consumed {
		return ProposalAction[V]{}, errors.Wrapf(errors.ErrState, "action of proposal %d already consumed", a.proposal)
	}
	if got := a.payload.Kind(); got != kind {
		return ProposalAction[V]{}, errors.Wrapf(errors.ErrType, "action is %s, not %s", got, kind)
	}
	a.consumed = true
	return a.payload, nil
}

// Delete consumes the action and returns the delete payload.
func (a *Action[V]) Delete() (*DeleteAction, error) {
	p, err := a.take(KindDelete)
	if err != nil {
		return nil, err
	}
	return p.Delete, nil
}

// Upgrade consumes the action and returns the upgrade payload.
func (a *Action[V]) Upgrade() (*UpgradeAction, error) {
	p, err := a.take(KindUpgrade)
	if err != nil {
		return nil, err
	}
	return p.Upgrade, nil
}

// Update consumes the action and returns the value replacement payload.
func (a *Action[V]) Update() (*UpdateAction[V], error) {
	p, err := a.take(KindUpdateValue)
	if err != nil {
		return nil, err
	}
	return p.UpdateValue, nil
}

// Modify consumes the action and returns the reconfiguration payload.
func (a *Action[V]) Modify() (*ModifyAction, error) {
	p, err := a.take(KindModify)
	if err != nil {
		return nil, err
	}
	return p.Modify, nil
}

// Send consumes the action and returns the transfer payload.
func (a *Action[V]) Send() (*SendAction, error) {
	p, err := a.take(KindSend)
	if err != nil {
		return nil, err
	}
	return p.Send, nil
}

// Borrow consumes the action and returns the borrow payload.
func (a *Action[V]) Borrow() (*BorrowAction, error) {
	p, err := a.take(KindBorrow)
	if err != nil {
		return nil, err
	}
	return p.Borrow, nil
}

// ControllerExecution consumes the action and returns the nested
// capability checkout payload.
func (a *Action[V]) ControllerExecution() (*ControllerExecutionAction, error) {
	p, err := a.take(KindControllerExecution)
	if err != nil {
		return nil, err
	}
	return p.ControllerExecution, nil
}
