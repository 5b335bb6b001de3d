package multicontroller

import (
	"sort"

	"github.com/iov-one/multident"
	"github.com/iov-one/multident/errors"
)

// State is a serializable snapshot of an engine. Controller and
// delegation-token capabilities are live objects held by their owners
// and are not part of the snapshot. Outstanding actions are not
// serializable either, they must be consumed within the transaction
// that produced them.
type State[V any] struct {
	Owner       multident.Address `cbor:"1,keyasint" json:"owner"`
	Threshold   uint64            `cbor:"2,keyasint" json:"threshold"`
	Controllers []Member          `cbor:"3,keyasint" json:"controllers"`
	Value       V                 `cbor:"4,keyasint" json:"value"`
	Sequence    uint64            `cbor:"5,keyasint" json:"sequence"`
	Proposals   []ProposalState[V] `cbor:"6,keyasint,omitempty" json:"proposals,omitempty"`
	Revoked     []TokenID         `cbor:"7,keyasint,omitempty" json:"revoked,omitempty"`
}

// ProposalState is the serializable form of one active proposal.
type ProposalState[V any] struct {
	ID         ProposalID           `cbor:"1,keyasint" json:"id"`
	Votes      uint64               `cbor:"2,keyasint" json:"votes"`
	Voters     []multident.Address  `cbor:"3,keyasint" json:"voters"`
	Expiration multident.UnixMillis `cbor:"4,keyasint,omitempty" json:"expiration,omitempty"`
	Action     ProposalAction[V]    `cbor:"5,keyasint" json:"action"`
}

// State captures the engine into a deterministic snapshot.
func (m *Multicontroller[V]) State() State[V] {
	s := State[V]{
		Owner:       m.owner.Clone(),
		Threshold:   m.threshold,
		Controllers: m.Members(),
		Value:       m.value,
		Sequence:    m.seq,
	}
	for _, id := range m.active {
		p := m.proposals[id]
		voters := make([]multident.Address, 0, len(p.voters))
		for _, addr := range p.voters {
			voters = append(voters, addr.Clone())
		}
		sort.Slice(voters, func(i, j int) bool {
			return voters[i].String() < voters[j].String()
		})
		s.Proposals = append(s.Proposals, ProposalState[V]{
			ID:         p.id,
			Votes:      p.votes,
			Voters:     voters,
			Expiration: p.expiration,
			Action:     p.action,
		})
	}
	for id := range m.revoked {
		s.Revoked = append(s.Revoked, id)
	}
	sort.Slice(s.Revoked, func(i, j int) bool { return s.Revoked[i] < s.Revoked[j] })
	return s
}

// FromState rebuilds an engine from a snapshot. The snapshot is
// validated with the same rules as New, except that in-flight proposals
// are restored as well.
func FromState[V any](s State[V]) (*Multicontroller[V], error) {
	if err := s.Owner.Validate(); err != nil {
		return nil, errors.Wrap(err, "owner")
	}
	if len(s.Controllers) == 0 {
		return nil, errors.Wrap(errors.ErrEmpty, "no controllers")
	}

	registry := make(map[string]Member, len(s.Controllers))
	var total uint64
	for i, m := range s.Controllers {
		if err := m.Validate(); err != nil {
			return nil, errors.Wrapf(err, "controller %d", i)
		}
		key := m.Address.String()
		if _, ok := registry[key]; ok {
			return nil, errors.Wrapf(errors.ErrDuplicate, "controller %s", key)
		}
		registry[key] = Member{Address: m.Address.Clone(), Weight: m.Weight}
		total += m.Weight
	}
	if s.Threshold == 0 || s.Threshold > total {
		return nil, errors.Wrapf(ErrInvalidThreshold, "threshold %d, max votes %d", s.Threshold, total)
	}

	eng := &Multicontroller[V]{
		owner:       s.Owner.Clone(),
		threshold:   s.Threshold,
		controllers: registry,
		value:       s.Value,
		proposals:   make(map[ProposalID]*Proposal[V], len(s.Proposals)),
		revoked:     make(map[TokenID]struct{}, len(s.Revoked)),
		seq:         s.Sequence,
	}
	for _, ps := range s.Proposals {
		if uint64(ps.ID) > s.Sequence {
			return nil, errors.Wrapf(errors.ErrState, "proposal %d beyond sequence %d", ps.ID, s.Sequence)
		}
		if _, ok := eng.proposals[ps.ID]; ok {
			return nil, errors.Wrapf(errors.ErrDuplicate, "proposal %d", ps.ID)
		}
		if err := ps.Action.Validate(); err != nil {
			return nil, errors.Wrapf(err, "proposal %d action", ps.ID)
		}
		voters := make(map[string]multident.Address, len(ps.Voters))
		for _, addr := range ps.Voters {
			voters[addr.String()] = addr.Clone()
		}
		eng.proposals[ps.ID] = &Proposal[V]{
			id:         ps.ID,
			votes:      ps.Votes,
			voters:     voters,
			expiration: ps.Expiration,
			action:     ps.Action,
		}
		eng.active = append(eng.active, ps.ID)
	}
	for _, id := range s.Revoked {
		eng.revoked[id] = struct{}{}
	}
	return eng, nil
}
