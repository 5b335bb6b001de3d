package multicontroller

import (
	"context"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/iov-one/multident"
	"github.com/iov-one/multident/errors"
	"github.com/iov-one/multident/multitest/assert"
)

func testAddr(i uint64) multident.Address {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, i)
	return multident.NewAddress(raw)
}

func testCommittee(weights ...uint64) []Member {
	members := make([]Member, len(weights))
	for i, w := range weights {
		members[i] = Member{Address: testAddr(uint64(i + 1)), Weight: w}
	}
	return members
}

var testTime = multident.AsUnixMillis(time.Date(2021, 4, 1, 12, 0, 0, 0, time.UTC))

func testCtx() multident.Context {
	return multident.WithBlockTime(context.Background(), testTime)
}

func newTestEngine(t testing.TB, threshold uint64, weights ...uint64) (*Multicontroller[string], []*DelegationToken) {
	t.Helper()
	eng, caps, err := New[string](testAddr(100), testCommittee(weights...), threshold, "genesis")
	assert.Nil(t, err)
	tokens := make([]*DelegationToken, len(caps))
	for i, c := range caps {
		token, _, err := c.AccessToken()
		assert.Nil(t, err)
		tokens[i] = token
	}
	return eng, tokens
}

func TestNewEngineValidation(t *testing.T) {
	cases := map[string]struct {
		members   []Member
		threshold uint64
		wantErr   *errors.Error
	}{
		"single controller": {
			members:   testCommittee(1),
			threshold: 1,
		},
		"weighted committee": {
			members:   testCommittee(10, 5, 5),
			threshold: 10,
		},
		"no controllers": {
			members:   nil,
			threshold: 1,
			wantErr:   errors.ErrEmpty,
		},
		"duplicate controller": {
			members: []Member{
				{Address: testAddr(1), Weight: 1},
				{Address: testAddr(1), Weight: 2},
			},
			threshold: 1,
			wantErr:   errors.ErrDuplicate,
		},
		"zero weight": {
			members: []Member{
				{Address: testAddr(1), Weight: 0},
			},
			threshold: 1,
			wantErr:   errors.ErrInput,
		},
		"zero threshold": {
			members:   testCommittee(1, 1),
			threshold: 0,
			wantErr:   ErrInvalidThreshold,
		},
		"unreachable threshold": {
			members:   testCommittee(1, 1),
			threshold: 3,
			wantErr:   ErrInvalidThreshold,
		},
		"cumulative weight overflows": {
			members:   testCommittee(math.MaxUint64, 1),
			threshold: 1,
			wantErr:   errors.ErrOverflow,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			eng, caps, err := New[string](testAddr(100), tc.members, tc.threshold, "v")
			if !tc.wantErr.Is(err) {
				t.Fatalf("want %v, got %+v", tc.wantErr, err)
			}
			if tc.wantErr == nil {
				assert.Equal(t, len(tc.members), len(caps))
				assert.Equal(t, len(tc.members), eng.ControllerCount())
				assert.Equal(t, "v", eng.Value())
			}
		})
	}
}

func TestProposalLifecycle(t *testing.T) {
	eng, tokens := newTestEngine(t, 2, 1, 1, 1)

	pid, err := eng.CreateProposal(tokens[0], NewUpdateAction[string]("updated"), 0)
	assert.Nil(t, err)
	assert.Equal(t, ProposalID(1), pid)

	// The proposer's vote is counted at creation.
	p, err := eng.Proposal(pid)
	assert.Nil(t, err)
	assert.Equal(t, uint64(1), p.Votes())
	if !p.HasVoted(tokens[0].Controller()) {
		t.Fatal("proposer vote not counted")
	}

	// Below the threshold execution must fail.
	if _, err := eng.ExecuteProposal(testCtx(), tokens[0], pid); !ErrThresholdNotReached.Is(err) {
		t.Fatalf("want threshold failure, got %+v", err)
	}

	votes, err := eng.ApproveProposal(tokens[1], pid)
	assert.Nil(t, err)
	assert.Equal(t, uint64(2), votes)

	act, err := eng.ExecuteProposal(testCtx(), tokens[2], pid)
	assert.Nil(t, err)
	assert.Equal(t, pid, act.Proposal())

	value, err := eng.ApplyUpdate(act)
	assert.Nil(t, err)
	assert.Equal(t, "updated", value)
	assert.Equal(t, "updated", eng.Value())

	// Execution terminates the proposal, a second execution must not
	// find it.
	if _, err := eng.ExecuteProposal(testCtx(), tokens[0], pid); !ErrProposalNotFound.Is(err) {
		t.Fatalf("want not found, got %+v", err)
	}
	assert.Equal(t, 0, len(eng.ActiveProposals()))
}

func TestApproveProposal(t *testing.T) {
	eng, tokens := newTestEngine(t, 3, 1, 2)

	pid, err := eng.CreateProposal(tokens[0], NewUpdateAction[string]("x"), 0)
	assert.Nil(t, err)

	if _, err := eng.ApproveProposal(tokens[0], pid); !ErrAlreadyVoted.Is(err) {
		t.Fatalf("want already voted, got %+v", err)
	}
	votes, err := eng.ApproveProposal(tokens[1], pid)
	assert.Nil(t, err)
	assert.Equal(t, uint64(3), votes)
	if _, err := eng.ApproveProposal(tokens[1], pid); !ErrAlreadyVoted.Is(err) {
		t.Fatalf("want already voted, got %+v", err)
	}
}

func TestRemoveApproval(t *testing.T) {
	eng, tokens := newTestEngine(t, 2, 1, 1)

	pid, err := eng.CreateProposal(tokens[0], NewUpdateAction[string]("x"), 0)
	assert.Nil(t, err)
	if _, err := eng.RemoveApproval(tokens[1], pid); !ErrNotVoted.Is(err) {
		t.Fatalf("want not voted, got %+v", err)
	}
	votes, err := eng.RemoveApproval(tokens[0], pid)
	assert.Nil(t, err)
	assert.Equal(t, uint64(0), votes)

	// With zero votes the proposal can be deleted without expiring.
	assert.Nil(t, eng.DeleteProposal(testCtx(), tokens[0], pid))
	if _, err := eng.Proposal(pid); !ErrProposalNotFound.Is(err) {
		t.Fatalf("want not found, got %+v", err)
	}
}

// Votes are accumulated with the weight the controller has at approval
// time. A later reweighting does not rewrite already collected votes.
func TestApprovalWeightIsReadAtApprovalTime(t *testing.T) {
	eng, tokens := newTestEngine(t, 4, 1, 2, 3)

	pid, err := eng.CreateProposal(tokens[0], NewUpdateAction[string]("x"), 0)
	assert.Nil(t, err)
	votes, err := eng.ApproveProposal(tokens[1], pid)
	assert.Nil(t, err)
	assert.Equal(t, uint64(3), votes)

	// Reweight the second controller from 2 to 4 through a modify
	// proposal executed by the third controller alone is not possible,
	// so apply it via a full round.
	four := uint64(4)
	mod := ModifyAction{Update: []Member{{Address: testAddr(2), Weight: four}}}
	mid, err := eng.CreateProposal(tokens[2], NewModifyAction[string](mod), 0)
	assert.Nil(t, err)
	_, err = eng.ApproveProposal(tokens[1], mid)
	assert.Nil(t, err)
	act, err := eng.ExecuteProposal(testCtx(), tokens[2], mid)
	assert.Nil(t, err)
	_, err = eng.ApplyModify(act)
	assert.Nil(t, err)

	// The first proposal still counts the old weight.
	p, err := eng.Proposal(pid)
	assert.Nil(t, err)
	assert.Equal(t, uint64(3), p.Votes())

	// Retracting now subtracts the current weight 4, which exceeds the
	// collected votes and must be refused instead of wrapping around.
	if _, err := eng.RemoveApproval(tokens[1], pid); !errors.ErrOverflow.Is(err) {
		t.Fatalf("want overflow, got %+v", err)
	}
}

func TestProposalExpiration(t *testing.T) {
	eng, tokens := newTestEngine(t, 1, 1, 1)

	expiration := testTime.Add(time.Hour)
	pid, err := eng.CreateProposal(tokens[0], NewUpdateAction[string]("x"), expiration)
	assert.Nil(t, err)

	// Exactly at the expiration time the proposal is still executable.
	atDeadline := multident.WithBlockTime(context.Background(), expiration)
	late := multident.WithBlockTime(context.Background(), expiration.Add(time.Millisecond))

	if _, err := eng.ExecuteProposal(late, tokens[0], pid); !ErrExpiredProposal.Is(err) {
		t.Fatalf("want expired, got %+v", err)
	}
	// An expired proposal can be deleted even with votes on it.
	assert.Nil(t, eng.DeleteProposal(late, tokens[1], pid))

	pid, err = eng.CreateProposal(tokens[0], NewUpdateAction[string]("y"), expiration)
	assert.Nil(t, err)
	act, err := eng.ExecuteProposal(atDeadline, tokens[0], pid)
	assert.Nil(t, err)
	_, err = eng.ApplyUpdate(act)
	assert.Nil(t, err)
}

func TestDeleteProposalWithVotes(t *testing.T) {
	eng, tokens := newTestEngine(t, 2, 1, 1)

	pid, err := eng.CreateProposal(tokens[0], NewUpdateAction[string]("x"), 0)
	assert.Nil(t, err)

	// The proposer's own vote blocks deletion until retracted.
	if err := eng.DeleteProposal(testCtx(), tokens[0], pid); !ErrCannotDelete.Is(err) {
		t.Fatalf("want cannot delete, got %+v", err)
	}
	_, err = eng.RemoveApproval(tokens[0], pid)
	assert.Nil(t, err)
	assert.Nil(t, eng.DeleteProposal(testCtx(), tokens[0], pid))
}

func TestWeightedAutoThreshold(t *testing.T) {
	// A single heavy controller meets the threshold with its creation
	// vote alone.
	eng, tokens := newTestEngine(t, 10, 10, 5, 5)

	pid, err := eng.CreateProposal(tokens[0], NewUpdateAction[string]("solo"), 0)
	assert.Nil(t, err)
	p, err := eng.Proposal(pid)
	assert.Nil(t, err)
	assert.Equal(t, uint64(10), p.Votes())

	act, err := eng.ExecuteProposal(testCtx(), tokens[0], pid)
	assert.Nil(t, err)
	_, err = eng.ApplyUpdate(act)
	assert.Nil(t, err)

	// A light controller needs a second vote.
	pid, err = eng.CreateProposal(tokens[1], NewUpdateAction[string]("duo"), 0)
	assert.Nil(t, err)
	if _, err := eng.ExecuteProposal(testCtx(), tokens[1], pid); !ErrThresholdNotReached.Is(err) {
		t.Fatalf("want threshold failure, got %+v", err)
	}
	_, err = eng.ApproveProposal(tokens[2], pid)
	assert.Nil(t, err)
	act, err = eng.ExecuteProposal(testCtx(), tokens[1], pid)
	assert.Nil(t, err)
	_, err = eng.ApplyUpdate(act)
	assert.Nil(t, err)
}

func TestNonMemberIsRejected(t *testing.T) {
	eng, _ := newTestEngine(t, 1, 1)

	// A capability of a foreign engine is not a member here.
	_, foreignCaps, err := New[string](testAddr(200), testCommittee(1, 1), 1, "other")
	assert.Nil(t, err)
	foreign, _, err := foreignCaps[1].AccessToken()
	assert.Nil(t, err)

	if _, err := eng.CreateProposal(foreign, NewUpdateAction[string]("x"), 0); !ErrInvalidController.Is(err) {
		t.Fatalf("want invalid controller, got %+v", err)
	}
	if _, err := eng.CreateProposal(nil, NewUpdateAction[string]("x"), 0); !ErrInvalidController.Is(err) {
		t.Fatalf("want invalid controller, got %+v", err)
	}
}

func TestDelegationPermissions(t *testing.T) {
	eng, caps, err := New[string](testAddr(100), testCommittee(1, 1), 1, "v")
	assert.Nil(t, err)

	// A token restricted to approving cannot create proposals.
	restricted, err := caps[0].Delegate(CanApproveProposal)
	assert.Nil(t, err)
	if _, err := eng.CreateProposal(restricted, NewUpdateAction[string]("x"), 0); !ErrInvalidPermissions.Is(err) {
		t.Fatalf("want invalid permissions, got %+v", err)
	}

	full, _, err := caps[1].AccessToken()
	assert.Nil(t, err)
	pid, err := eng.CreateProposal(full, NewUpdateAction[string]("x"), 0)
	assert.Nil(t, err)

	_, err = eng.ApproveProposal(restricted, pid)
	assert.Nil(t, err)
	if _, err := eng.RemoveApproval(restricted, pid); !ErrInvalidPermissions.Is(err) {
		t.Fatalf("want invalid permissions, got %+v", err)
	}
}

func TestTokenRevocation(t *testing.T) {
	eng, caps, err := New[string](testAddr(100), testCommittee(1, 1), 1, "v")
	assert.Nil(t, err)

	token, err := caps[0].Delegate(PermissionsFull)
	assert.Nil(t, err)

	assert.Nil(t, eng.RevokeToken(caps[1], token.ID()))
	if !eng.IsRevoked(token.ID()) {
		t.Fatal("token not revoked")
	}
	if _, err := eng.CreateProposal(token, NewUpdateAction[string]("x"), 0); !ErrInvalidController.Is(err) {
		t.Fatalf("want invalid controller, got %+v", err)
	}

	// Other tokens of the same controller are not affected.
	access, _, err := caps[0].AccessToken()
	assert.Nil(t, err)
	_, err = eng.CreateProposal(access, NewUpdateAction[string]("x"), 0)
	assert.Nil(t, err)

	assert.Nil(t, eng.UnrevokeToken(caps[1], token.ID()))
	_, err = eng.CreateProposal(token, NewUpdateAction[string]("y"), 0)
	assert.Nil(t, err)
}

func TestModifyValidation(t *testing.T) {
	two := uint64(2)
	five := uint64(5)

	cases := map[string]struct {
		mod     ModifyAction
		wantErr *errors.Error
	}{
		"add a member and raise the threshold": {
			mod: ModifyAction{
				Threshold: &two,
				Add:       []Member{{Address: testAddr(9), Weight: 1}},
			},
		},
		"empty modification": {
			mod:     ModifyAction{},
			wantErr: errors.ErrEmpty,
		},
		"remove unknown member": {
			mod:     ModifyAction{Remove: []multident.Address{testAddr(9)}},
			wantErr: errors.ErrNotFound,
		},
		"reweight unknown member": {
			mod:     ModifyAction{Update: []Member{{Address: testAddr(9), Weight: 2}}},
			wantErr: errors.ErrNotFound,
		},
		"add existing member": {
			mod:     ModifyAction{Add: []Member{{Address: testAddr(1), Weight: 1}}},
			wantErr: errors.ErrDuplicate,
		},
		"remove all members": {
			mod: ModifyAction{
				Remove: []multident.Address{testAddr(1), testAddr(2)},
			},
			wantErr: errors.ErrEmpty,
		},
		"threshold left unreachable": {
			mod:     ModifyAction{Threshold: &five},
			wantErr: ErrInvalidThreshold,
		},
		"removal makes current threshold unreachable": {
			mod:     ModifyAction{Remove: []multident.Address{testAddr(2)}},
			wantErr: ErrInvalidThreshold,
		},
		"added weight overflows the total": {
			mod:     ModifyAction{Add: []Member{{Address: testAddr(9), Weight: math.MaxUint64}}},
			wantErr: errors.ErrOverflow,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			eng, tokens := newTestEngine(t, 2, 1, 1)
			_, err := eng.CreateProposal(tokens[0], NewModifyAction[string](tc.mod), 0)
			if !tc.wantErr.Is(err) {
				t.Fatalf("want %v, got %+v", tc.wantErr, err)
			}
		})
	}
}

func TestApplyModify(t *testing.T) {
	eng, tokens := newTestEngine(t, 2, 1, 1)

	three := uint64(3)
	mod := ModifyAction{
		Threshold: &three,
		Add:       []Member{{Address: testAddr(3), Weight: 2}},
		Remove:    []multident.Address{testAddr(2)},
	}
	pid, err := eng.CreateProposal(tokens[0], NewModifyAction[string](mod), 0)
	assert.Nil(t, err)
	_, err = eng.ApproveProposal(tokens[1], pid)
	assert.Nil(t, err)
	act, err := eng.ExecuteProposal(testCtx(), tokens[0], pid)
	assert.Nil(t, err)

	res, err := eng.ApplyModify(act)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(res.Added))
	assert.Equal(t, 1, len(res.Removed))
	assert.Equal(t, uint64(3), eng.Threshold())
	assert.Equal(t, 2, eng.ControllerCount())
	if eng.IsMember(testAddr(2)) {
		t.Fatal("removed controller still a member")
	}
	if !eng.IsMember(testAddr(3)) {
		t.Fatal("added controller not a member")
	}

	// The removed member's token no longer works, the new capability
	// does.
	if _, err := eng.CreateProposal(tokens[1], NewUpdateAction[string]("x"), 0); !ErrInvalidController.Is(err) {
		t.Fatalf("want invalid controller, got %+v", err)
	}
	fresh, _, err := res.Added[0].AccessToken()
	assert.Nil(t, err)
	_, err = eng.CreateProposal(fresh, NewUpdateAction[string]("x"), 0)
	assert.Nil(t, err)
}

func TestActionIsConsumedOnce(t *testing.T) {
	eng, tokens := newTestEngine(t, 1, 1)

	pid, err := eng.CreateProposal(tokens[0], NewUpdateAction[string]("x"), 0)
	assert.Nil(t, err)
	act, err := eng.ExecuteProposal(testCtx(), tokens[0], pid)
	assert.Nil(t, err)

	// Extracting the wrong kind must fail without consuming.
	if _, err := act.Delete(); !errors.ErrType.Is(err) {
		t.Fatalf("want type error, got %+v", err)
	}
	_, err = eng.ApplyUpdate(act)
	assert.Nil(t, err)
	if _, err := eng.ApplyUpdate(act); !errors.ErrState.Is(err) {
		t.Fatalf("want state error, got %+v", err)
	}
}

func TestDestroyController(t *testing.T) {
	eng, caps, err := New[string](testAddr(100), testCommittee(1, 1), 1, "v")
	assert.Nil(t, err)

	// A capability of a current member cannot be destroyed.
	if err := eng.DestroyController(caps[0]); !ErrCannotDelete.Is(err) {
		t.Fatalf("want cannot delete, got %+v", err)
	}

	token, _, err := caps[0].AccessToken()
	assert.Nil(t, err)
	mod := ModifyAction{Remove: []multident.Address{caps[1].Address()}}
	pid, err := eng.CreateProposal(token, NewModifyAction[string](mod), 0)
	assert.Nil(t, err)
	act, err := eng.ExecuteProposal(testCtx(), token, pid)
	assert.Nil(t, err)
	_, err = eng.ApplyModify(act)
	assert.Nil(t, err)

	assert.Nil(t, eng.DestroyController(caps[1]))
	if !caps[1].Destroyed() {
		t.Fatal("capability not destroyed")
	}
	if _, _, err := caps[1].AccessToken(); !errors.ErrState.Is(err) {
		t.Fatalf("want state error, got %+v", err)
	}
}

func TestDestroyEngine(t *testing.T) {
	eng, tokens := newTestEngine(t, 1, 1)

	pid, err := eng.CreateProposal(tokens[0], NewUpdateAction[string]("x"), 0)
	assert.Nil(t, err)
	if _, err := eng.Destroy(); !ErrCannotDelete.Is(err) {
		t.Fatalf("want cannot delete, got %+v", err)
	}

	_, err = eng.RemoveApproval(tokens[0], pid)
	assert.Nil(t, err)
	assert.Nil(t, eng.DeleteProposal(testCtx(), tokens[0], pid))

	value, err := eng.Destroy()
	assert.Nil(t, err)
	assert.Equal(t, "genesis", value)
	if _, err := eng.Destroy(); !errors.ErrState.Is(err) {
		t.Fatalf("want state error, got %+v", err)
	}

	// A token held back from before the destruction is dead too.
	if _, err := eng.CreateProposal(tokens[0], NewUpdateAction[string]("y"), 0); !errors.ErrState.Is(err) {
		t.Fatalf("want state error, got %+v", err)
	}
	if _, err := eng.ApproveProposal(tokens[0], pid); !errors.ErrState.Is(err) {
		t.Fatalf("want state error, got %+v", err)
	}
}

func TestDestroyedEngineRejectsStaleCap(t *testing.T) {
	eng, caps, err := New[string](testAddr(100), testCommittee(1), 1, "genesis")
	assert.Nil(t, err)

	token, _, err := caps[0].AccessToken()
	assert.Nil(t, err)
	_, err = eng.Destroy()
	assert.Nil(t, err)

	if err := eng.RevokeToken(caps[0], token.ID()); !errors.ErrState.Is(err) {
		t.Fatalf("want state error, got %+v", err)
	}
}
