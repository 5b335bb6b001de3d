package multicontroller

import (
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/iov-one/multident/errors"
	"github.com/iov-one/multident/multitest/assert"
)

func TestStateRoundTrip(t *testing.T) {
	eng, caps, err := New[string](testAddr(100), testCommittee(1, 2, 3), 3, "genesis")
	assert.Nil(t, err)
	tokens := make([]*DelegationToken, len(caps))
	for i, c := range caps {
		tokens[i], _, err = c.AccessToken()
		assert.Nil(t, err)
	}

	pid, err := eng.CreateProposal(tokens[0], NewUpdateAction[string]("pending"), testTime.Add(time.Hour))
	assert.Nil(t, err)
	_, err = eng.ApproveProposal(tokens[1], pid)
	assert.Nil(t, err)

	token, err := caps[0].Delegate(CanApproveProposal)
	assert.Nil(t, err)
	assert.Nil(t, eng.RevokeToken(caps[0], token.ID()))

	raw, err := cbor.Marshal(eng.State())
	assert.Nil(t, err)
	var snap State[string]
	assert.Nil(t, cbor.Unmarshal(raw, &snap))

	restored, err := FromState(snap)
	assert.Nil(t, err)

	assert.Equal(t, eng.Owner(), restored.Owner())
	assert.Equal(t, eng.Threshold(), restored.Threshold())
	assert.Equal(t, eng.Members(), restored.Members())
	assert.Equal(t, eng.Value(), restored.Value())
	assert.Equal(t, eng.ActiveProposals(), restored.ActiveProposals())
	if !restored.IsRevoked(token.ID()) {
		t.Fatal("revocation lost")
	}

	p, err := restored.Proposal(pid)
	assert.Nil(t, err)
	assert.Equal(t, uint64(3), p.Votes())
	assert.Equal(t, 2, p.VoterCount())
	if !p.HasVoted(tokens[0].Controller()) || !p.HasVoted(tokens[1].Controller()) {
		t.Fatal("voter set lost")
	}
	assert.Equal(t, KindUpdateValue, p.Action().Kind())

	// New proposals on the restored engine continue the sequence.
	next, err := restored.CreateProposal(tokens[2], NewUpdateAction[string]("more"), 0)
	assert.Nil(t, err)
	assert.Equal(t, pid+1, next)
}

func TestFromStateValidation(t *testing.T) {
	base := func() State[string] {
		return State[string]{
			Owner:       testAddr(100),
			Threshold:   2,
			Controllers: testCommittee(1, 1),
			Value:       "v",
			Sequence:    3,
		}
	}

	cases := map[string]struct {
		mutate  func(*State[string])
		wantErr *errors.Error
	}{
		"valid snapshot": {
			mutate: func(*State[string]) {},
		},
		"no controllers": {
			mutate:  func(s *State[string]) { s.Controllers = nil },
			wantErr: errors.ErrEmpty,
		},
		"duplicate controller": {
			mutate: func(s *State[string]) {
				s.Controllers = append(s.Controllers, s.Controllers[0])
			},
			wantErr: errors.ErrDuplicate,
		},
		"unreachable threshold": {
			mutate:  func(s *State[string]) { s.Threshold = 10 },
			wantErr: ErrInvalidThreshold,
		},
		"proposal id beyond sequence": {
			mutate: func(s *State[string]) {
				s.Proposals = []ProposalState[string]{{
					ID:     9,
					Votes:  1,
					Action: NewUpdateAction[string]("x"),
				}}
			},
			wantErr: errors.ErrState,
		},
		"invalid proposal action": {
			mutate: func(s *State[string]) {
				s.Proposals = []ProposalState[string]{{
					ID:    1,
					Votes: 1,
				}}
			},
			wantErr: errors.ErrMsg,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			s := base()
			tc.mutate(&s)
			_, err := FromState(s)
			if !tc.wantErr.Is(err) {
				t.Fatalf("want %v, got %+v", tc.wantErr, err)
			}
		})
	}
}
