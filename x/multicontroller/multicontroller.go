package multicontroller

import (
	"sort"

	"github.com/iov-one/multident"
	"github.com/iov-one/multident/errors"
)

// Multicontroller is the generic engine. It keeps the controller
// registry with voting weights, the configured threshold, the active
// proposal index and the wrapped value.
//
// The engine is created once, atomically, with its full initial
// controller set and threshold. It is mutated only through the
// propose/approve/execute protocol and destroyed only when no proposal
// is pending.
type Multicontroller[V any] struct {
	owner       multident.Address
	threshold   uint64
	controllers map[string]Member
	value       V
	active      []ProposalID
	proposals   map[ProposalID]*Proposal[V]
	revoked     map[TokenID]struct{}
	seq         uint64
	destroyed   bool
}

// ModifyResult reports the membership changes applied by ApplyModify.
// Added carries the freshly minted controller capabilities that must be
// handed to the new members. Removed lists addresses that are no longer
// members, whose capabilities can now be destroyed.
type ModifyResult struct {
	Added   []*Controller
	Removed []multident.Address
}

// New creates an engine owned by the given address, jointly controlled
// by the given members. It returns the freshly minted controller
// capabilities, one per member in input order.
func New[V any](owner multident.Address, members []Member, threshold uint64, value V) (*Multicontroller[V], []*Controller, error) {
	if err := owner.Validate(); err != nil {
		return nil, nil, errors.Wrap(err, "owner")
	}
	if len(members) == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmpty, "no controllers")
	}

	registry := make(map[string]Member, len(members))
	var total uint64
	for i, m := range members {
		if err := m.Validate(); err != nil {
			return nil, nil, errors.Wrapf(err, "controller %d", i)
		}
		key := m.Address.String()
		if _, ok := registry[key]; ok {
			return nil, nil, errors.Wrapf(errors.ErrDuplicate, "controller %s", key)
		}
		registry[key] = Member{Address: m.Address.Clone(), Weight: m.Weight}
		if total+m.Weight < total {
			return nil, nil, errors.Wrap(errors.ErrOverflow, "cumulative weight")
		}
		total += m.Weight
	}
	if threshold == 0 || threshold > total {
		return nil, nil, errors.Wrapf(ErrInvalidThreshold, "threshold %d, max votes %d", threshold, total)
	}

	caps := make([]*Controller, 0, len(members))
	for _, m := range members {
		caps = append(caps, newController(m.Address, true))
	}

	eng := &Multicontroller[V]{
		owner:       owner.Clone(),
		threshold:   threshold,
		controllers: registry,
		value:       value,
		proposals:   make(map[ProposalID]*Proposal[V]),
		revoked:     make(map[TokenID]struct{}),
	}
	return eng, caps, nil
}

// Owner returns the address of the entity owning this engine.
func (m *Multicontroller[V]) Owner() multident.Address {
	return m.owner
}

// Threshold returns the minimum cumulative voting power required to
// execute a proposal.
func (m *Multicontroller[V]) Threshold() uint64 {
	return m.threshold
}

// MaxVotes returns the sum of all controller voting powers.
func (m *Multicontroller[V]) MaxVotes() uint64 {
	var total uint64
	for _, member := range m.controllers {
		total += member.Weight
	}
	return total
}

// VotingPower returns the weight of the given controller and whether it
// is a member at all.
func (m *Multicontroller[V]) VotingPower(addr multident.Address) (uint64, bool) {
	member, ok := m.controllers[addr.String()]
	return member.Weight, ok
}

// IsMember returns true if the address is a current controller.
func (m *Multicontroller[V]) IsMember(addr multident.Address) bool {
	_, ok := m.controllers[addr.String()]
	return ok
}

// ControllerCount returns the number of current controllers.
func (m *Multicontroller[V]) ControllerCount() int {
	return len(m.controllers)
}

// Members returns the controller set ordered by address.
func (m *Multicontroller[V]) Members() []Member {
	out := make([]Member, 0, len(m.controllers))
	for _, member := range m.controllers {
		out = append(out, member)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.String() < out[j].Address.String()
	})
	return out
}

// Value returns the controlled value. The caller must treat it as read
// only, mutation goes through the proposal protocol.
func (m *Multicontroller[V]) Value() V {
	return m.value
}

// ActiveProposals returns the ids of all proposals awaiting execution
// or deletion, in creation order.
func (m *Multicontroller[V]) ActiveProposals() []ProposalID {
	out := make([]ProposalID, len(m.active))
	copy(out, m.active)
	return out
}

// Proposal returns a read-only view of an active proposal.
func (m *Multicontroller[V]) Proposal(id ProposalID) (*Proposal[V], error) {
	p, ok := m.proposals[id]
	if !ok {
		return nil, errors.Wrapf(ErrProposalNotFound, "proposal %d", id)
	}
	return p, nil
}

// IsRevoked returns true if the given token was revoked.
func (m *Multicontroller[V]) IsRevoked(id TokenID) bool {
	_, ok := m.revoked[id]
	return ok
}

// assertMember fails unless the token's issuing controller is a current
// member and the token itself was not revoked. Every operation
// re-validates membership at its own start, so revocation takes effect
// for all subsequent calls without a stale-read window.
func (m *Multicontroller[V]) assertMember(token *DelegationToken) error {
	if m.destroyed {
		return errors.Wrap(errors.ErrState, "engine destroyed")
	}
	if token == nil {
		return errors.Wrap(ErrInvalidController, "no token")
	}
	if _, ok := m.controllers[token.controller.String()]; !ok {
		return errors.Wrapf(ErrInvalidController, "%s is not a member", token.controller)
	}
	if _, ok := m.revoked[token.id]; ok {
		return errors.Wrapf(ErrInvalidController, "token %s revoked", token.id)
	}
	return nil
}

func assertPermission(token *DelegationToken, req Permissions) error {
	if !token.permissions.Has(req) {
		return errors.Wrapf(ErrInvalidPermissions, "token is missing %b", req)
	}
	return nil
}

// CreateProposal stores a new proposal with the proposer's vote already
// counted and returns its id. A zero expiration means the proposal
// never expires. A Modify payload that would make the threshold
// unreachable is rejected here, not at execution time.
func (m *Multicontroller[V]) CreateProposal(token *DelegationToken, action ProposalAction[V], expiration multident.UnixMillis) (ProposalID, error) {
	if err := m.assertMember(token); err != nil {
		return 0, err
	}
	if err := assertPermission(token, CanCreateProposal); err != nil {
		return 0, err
	}
	if err := action.Validate(); err != nil {
		return 0, errors.Wrap(err, "action")
	}
	if err := expiration.Validate(); err != nil {
		return 0, errors.Wrap(err, "expiration")
	}
	if action.Modify != nil {
		if err := m.validateModify(action.Modify); err != nil {
			return 0, err
		}
	}

	proposer := m.controllers[token.controller.String()]
	m.seq++
	id := ProposalID(m.seq)
	m.proposals[id] = &Proposal[V]{
		id:    id,
		votes: proposer.Weight,
		voters: map[string]multident.Address{
			proposer.Address.String(): proposer.Address,
		},
		expiration: expiration,
		action:     action,
	}
	m.active = append(m.active, id)
	return id, nil
}

// ApproveProposal adds the voting power of the token's controller to
// the proposal. The weight is looked up at approval time, not frozen at
// proposal creation. Each controller is counted at most once regardless
// of how many tokens it holds. It returns the new cumulative votes.
func (m *Multicontroller[V]) ApproveProposal(token *DelegationToken, id ProposalID) (uint64, error) {
	if err := m.assertMember(token); err != nil {
		return 0, err
	}
	if err := assertPermission(token, CanApproveProposal); err != nil {
		return 0, err
	}
	p, err := m.Proposal(id)
	if err != nil {
		return 0, err
	}
	voter := m.controllers[token.controller.String()]
	if p.HasVoted(voter.Address) {
		return 0, errors.Wrapf(ErrAlreadyVoted, "controller %s", voter.Address)
	}
	votes := p.votes + voter.Weight
	if votes < p.votes {
		return 0, errors.Wrap(errors.ErrOverflow, "vote count")
	}
	p.votes = votes
	p.voters[voter.Address.String()] = voter.Address
	return p.votes, nil
}

// RemoveApproval retracts a previously given approval, subtracting the
// controller's current voting power. It returns the new cumulative
// votes.
func (m *Multicontroller[V]) RemoveApproval(token *DelegationToken, id ProposalID) (uint64, error) {
	if err := m.assertMember(token); err != nil {
		return 0, err
	}
	if err := assertPermission(token, CanRemoveApproval); err != nil {
		return 0, err
	}
	p, err := m.Proposal(id)
	if err != nil {
		return 0, err
	}
	voter := m.controllers[token.controller.String()]
	if !p.HasVoted(voter.Address) {
		return 0, errors.Wrapf(ErrNotVoted, "controller %s", voter.Address)
	}
	if voter.Weight > p.votes {
		// The weight was raised after this vote was cast. The vote
		// cannot be worth more than all collected votes.
		return 0, errors.Wrap(errors.ErrOverflow, "vote count")
	}
	p.votes -= voter.Weight
	delete(p.voters, voter.Address.String())
	return p.votes, nil
}

// ExecuteProposal terminates a proposal that collected enough voting
// power and yields its action payload. Threshold evaluation and
// proposal removal happen atomically, there is no observable state
// where the votes satisfy the threshold but the proposal still exists.
func (m *Multicontroller[V]) ExecuteProposal(ctx multident.Context, token *DelegationToken, id ProposalID) (*Action[V], error) {
	if err := m.assertMember(token); err != nil {
		return nil, err
	}
	if err := assertPermission(token, CanExecuteProposal); err != nil {
		return nil, err
	}
	p, err := m.Proposal(id)
	if err != nil {
		return nil, err
	}
	if p.votes < m.threshold {
		return nil, errors.Wrapf(ErrThresholdNotReached, "%d of %d", p.votes, m.threshold)
	}
	expired, err := multident.IsExpired(ctx, p.expiration)
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, errors.Wrapf(ErrExpiredProposal, "proposal %d", id)
	}

	m.dropProposal(id)
	return &Action[V]{proposal: id, payload: p.action}, nil
}

// DeleteProposal terminates a proposal without effect. Only proposals
// with zero votes or expired ones can be deleted.
func (m *Multicontroller[V]) DeleteProposal(ctx multident.Context, token *DelegationToken, id ProposalID) error {
	if err := m.assertMember(token); err != nil {
		return err
	}
	if err := assertPermission(token, CanDeleteProposal); err != nil {
		return err
	}
	p, err := m.Proposal(id)
	if err != nil {
		return err
	}
	expired, err := multident.IsExpired(ctx, p.expiration)
	if err != nil {
		return err
	}
	if p.votes != 0 && !expired {
		return errors.Wrapf(ErrCannotDelete, "proposal %d has votes and did not expire", id)
	}
	m.dropProposal(id)
	return nil
}

// ForceDeleteProposal terminates a proposal bypassing all permission
// and vote checks. It is reserved for teardown once the owning entity
// itself was deleted, guaranteeing stuck proposals cannot block it.
func (m *Multicontroller[V]) ForceDeleteProposal(id ProposalID) error {
	if _, ok := m.proposals[id]; !ok {
		return errors.Wrapf(ErrProposalNotFound, "proposal %d", id)
	}
	m.dropProposal(id)
	return nil
}

func (m *Multicontroller[V]) dropProposal(id ProposalID) {
	delete(m.proposals, id)
	for i, active := range m.active {
		if active == id {
			m.active = append(m.active[:i], m.active[i+1:]...)
			return
		}
	}
}

// RevokeToken denies a delegation token, even while its issuing
// controller remains a member. Only a full controller capability can
// revoke, a delegation token cannot.
func (m *Multicontroller[V]) RevokeToken(cap *Controller, id TokenID) error {
	if err := m.assertControllerCap(cap); err != nil {
		return err
	}
	m.revoked[id] = struct{}{}
	return nil
}

// UnrevokeToken lifts a revocation.
func (m *Multicontroller[V]) UnrevokeToken(cap *Controller, id TokenID) error {
	if err := m.assertControllerCap(cap); err != nil {
		return err
	}
	delete(m.revoked, id)
	return nil
}

func (m *Multicontroller[V]) assertControllerCap(cap *Controller) error {
	if m.destroyed {
		return errors.Wrap(errors.ErrState, "engine destroyed")
	}
	if cap == nil || cap.destroyed {
		return errors.Wrap(ErrInvalidController, "no controller capability")
	}
	if _, ok := m.controllers[cap.address.String()]; !ok {
		return errors.Wrapf(ErrInvalidController, "%s is not a member", cap.address)
	}
	return nil
}

// validateModify checks that the modification can be applied to the
// current state and that the resulting configuration keeps the
// threshold reachable.
func (m *Multicontroller[V]) validateModify(mod *ModifyAction) error {
	weights := make(map[string]uint64, len(m.controllers))
	for key, member := range m.controllers {
		weights[key] = member.Weight
	}
	for _, addr := range mod.Remove {
		key := addr.String()
		if _, ok := weights[key]; !ok {
			return errors.Wrapf(errors.ErrNotFound, "cannot remove %s, not a member", key)
		}
		delete(weights, key)
	}
	for _, member := range mod.Update {
		key := member.Address.String()
		if _, ok := weights[key]; !ok {
			return errors.Wrapf(errors.ErrNotFound, "cannot reweight %s, not a member", key)
		}
		weights[key] = member.Weight
	}
	for _, member := range mod.Add {
		key := member.Address.String()
		if _, ok := weights[key]; ok {
			return errors.Wrapf(errors.ErrDuplicate, "cannot add %s twice", key)
		}
		weights[key] = member.Weight
	}
	if len(weights) == 0 {
		return errors.Wrap(errors.ErrEmpty, "modification leaves no controllers")
	}

	var total uint64
	for _, w := range weights {
		if total+w < total {
			return errors.Wrap(errors.ErrOverflow, "cumulative weight")
		}
		total += w
	}
	threshold := m.threshold
	if mod.Threshold != nil {
		threshold = *mod.Threshold
	}
	if threshold == 0 || threshold > total {
		return errors.Wrapf(ErrInvalidThreshold, "threshold %d, max votes %d", threshold, total)
	}
	return nil
}

// ApplyModify consumes a Modify action and reconfigures the controller
// set and threshold. It returns the minted capabilities for added
// members and the addresses removed from the set.
func (m *Multicontroller[V]) ApplyModify(a *Action[V]) (*ModifyResult, error) {
	mod, err := a.Modify()
	if err != nil {
		return nil, err
	}
	// Revalidate against the current state. Another proposal executed
	// in between could have changed the membership.
	if err := m.validateModify(mod); err != nil {
		return nil, err
	}

	res := &ModifyResult{}
	for _, addr := range mod.Remove {
		delete(m.controllers, addr.String())
		res.Removed = append(res.Removed, addr.Clone())
	}
	for _, member := range mod.Update {
		m.controllers[member.Address.String()] = Member{
			Address: member.Address.Clone(),
			Weight:  member.Weight,
		}
	}
	for _, member := range mod.Add {
		m.controllers[member.Address.String()] = Member{
			Address: member.Address.Clone(),
			Weight:  member.Weight,
		}
		res.Added = append(res.Added, newController(member.Address, true))
	}
	if mod.Threshold != nil {
		if err := m.setThreshold(*mod.Threshold); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// setThreshold is invoked only through the Modify action handler, never
// directly by outside code.
func (m *Multicontroller[V]) setThreshold(threshold uint64) error {
	if threshold == 0 || threshold > m.MaxVotes() {
		return errors.Wrapf(ErrInvalidThreshold, "threshold %d, max votes %d", threshold, m.MaxVotes())
	}
	m.threshold = threshold
	return nil
}

// ApplyUpdate consumes an UpdateValue action and replaces the
// controlled value. It returns the new value.
func (m *Multicontroller[V]) ApplyUpdate(a *Action[V]) (V, error) {
	up, err := a.Update()
	if err != nil {
		var zero V
		return zero, err
	}
	m.value = up.Value
	return m.value, nil
}

// ApplyDelete consumes a Delete action and resets the controlled value
// to its zero value.
func (m *Multicontroller[V]) ApplyDelete(a *Action[V]) error {
	if _, err := a.Delete(); err != nil {
		return err
	}
	var zero V
	m.value = zero
	return nil
}

// DestroyController destroys a controller capability. The member must
// have been removed from the controller set first.
func (m *Multicontroller[V]) DestroyController(cap *Controller) error {
	if cap == nil || cap.destroyed {
		return errors.Wrap(ErrInvalidController, "no controller capability")
	}
	if _, ok := m.controllers[cap.address.String()]; ok {
		return errors.Wrapf(ErrCannotDelete, "%s is still a member", cap.address)
	}
	cap.destroy()
	return nil
}

// EvictController force-removes the member from the controller set and
// destroys its capability, even if stale. Reserved for teardown once
// the owning entity was deleted.
func (m *Multicontroller[V]) EvictController(cap *Controller) {
	if cap == nil {
		return
	}
	delete(m.controllers, cap.address.String())
	cap.destroy()
}

// Destroy consumes the engine and returns the wrapped value. It is only
// permitted once no proposal is pending.
func (m *Multicontroller[V]) Destroy() (V, error) {
	var zero V
	if m.destroyed {
		return zero, errors.Wrap(errors.ErrState, "already destroyed")
	}
	if len(m.active) != 0 {
		return zero, errors.Wrapf(ErrCannotDelete, "%d proposals pending", len(m.active))
	}
	m.destroyed = true
	value := m.value
	m.value = zero
	return value, nil
}
