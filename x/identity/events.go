package identity

import (
	"fmt"

	"github.com/iov-one/multident"
	"github.com/iov-one/multident/x/multicontroller"
)

// Event types produced for external indexers.
const (
	EventTypeProposal         = "proposal"
	EventTypeThresholdReached = "proposal-threshold"
	EventTypeTokenMinted      = "token-minted"
)

// Event tag keys.
const (
	tagIdentity    = "identity"
	tagController  = "controller"
	tagProposalID  = "proposal-id"
	tagExecuted    = "executed"
	tagToken       = "token"
	tagPermissions = "permissions"
)

func proposalEvent(identity, controller multident.Address, id multicontroller.ProposalID, executed bool) multident.Event {
	return multident.Event{
		Type: EventTypeProposal,
		Tags: []multident.KVPair{
			multident.Pair(tagIdentity, identity.String()),
			multident.Pair(tagController, controller.String()),
			multident.Pair(tagProposalID, fmt.Sprint(id)),
			multident.Pair(tagExecuted, fmt.Sprint(executed)),
		},
	}
}

func thresholdReachedEvent(identity multident.Address, id multicontroller.ProposalID) multident.Event {
	return multident.Event{
		Type: EventTypeThresholdReached,
		Tags: []multident.KVPair{
			multident.Pair(tagIdentity, identity.String()),
			multident.Pair(tagProposalID, fmt.Sprint(id)),
		},
	}
}

func tokenMintedEvent(controller multident.Address, token multicontroller.TokenID, permissions multicontroller.Permissions) multident.Event {
	return multident.Event{
		Type: EventTypeTokenMinted,
		Tags: []multident.KVPair{
			multident.Pair(tagController, controller.String()),
			multident.Pair(tagToken, string(token)),
			multident.Pair(tagPermissions, fmt.Sprintf("%b", permissions)),
		},
	}
}
