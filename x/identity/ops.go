package identity

import (
	"github.com/iov-one/multident"
	"github.com/iov-one/multident/errors"
	"github.com/iov-one/multident/x/multicontroller"
)

func (i *Identity) assertLive() error {
	if i.deleted {
		return errors.Wrap(ErrDeletedIdentity, "identity deleted")
	}
	return nil
}

func (i *Identity) touch(ctx multident.Context) error {
	now, err := multident.MustBlockTime(ctx)
	if err != nil {
		return err
	}
	i.updated = now
	return nil
}

// propose creates an engine proposal and reports whether the proposer
// alone already meets the threshold and holds the execute permission,
// in which case the caller completes the two-phase pattern immediately.
func (i *Identity) propose(token *multicontroller.DelegationToken, action multicontroller.ProposalAction[DIDDoc], expiration multident.UnixMillis) (multicontroller.ProposalID, bool, error) {
	pid, err := i.ctrl.CreateProposal(token, action, expiration)
	if err != nil {
		return 0, false, err
	}
	p, err := i.ctrl.Proposal(pid)
	if err != nil {
		return 0, false, err
	}
	auto := p.Votes() >= i.ctrl.Threshold() &&
		token.Permissions().Has(multicontroller.CanExecuteProposal)
	return pid, auto, nil
}

// ProposeUpdate proposes replacing the DID document. A nil document
// deletes it, which is terminal for the document.
func (i *Identity) ProposeUpdate(ctx multident.Context, token *multicontroller.DelegationToken, doc DIDDoc, expiration multident.UnixMillis) (ProposeResult, error) {
	if err := i.assertLive(); err != nil {
		return ProposeResult{}, err
	}
	if i.deletedDID {
		return ProposeResult{}, errors.Wrap(ErrDeletedIdentity, "DID document deleted")
	}
	if len(doc) > 0 && !i.validator(doc) {
		return ProposeResult{}, errors.Wrap(ErrNotADidDocument, "malformed document")
	}
	pid, auto, err := i.propose(token, multicontroller.NewUpdateAction[DIDDoc](doc), expiration)
	if err != nil {
		return ProposeResult{}, err
	}
	if auto {
		if err := i.executeUpdate(ctx, token, pid); err != nil {
			return ProposeResult{}, err
		}
	}
	i.emit(proposalEvent(i.address, token.Controller(), pid, auto))
	return ProposeResult{ID: pid, Executed: auto}, nil
}

// ExecuteUpdate executes a pending update proposal that reached the
// threshold.
func (i *Identity) ExecuteUpdate(ctx multident.Context, token *multicontroller.DelegationToken, id multicontroller.ProposalID) error {
	if err := i.assertLive(); err != nil {
		return err
	}
	if err := i.executeUpdate(ctx, token, id); err != nil {
		return err
	}
	i.emit(proposalEvent(i.address, token.Controller(), id, true))
	return nil
}

func (i *Identity) executeUpdate(ctx multident.Context, token *multicontroller.DelegationToken, id multicontroller.ProposalID) error {
	// Deletion is terminal. A proposal created before the document was
	// deleted must not resurrect it.
	if i.deletedDID {
		return errors.Wrap(ErrDeletedIdentity, "DID document deleted")
	}
	act, err := i.ctrl.ExecuteProposal(ctx, token, id)
	if err != nil {
		return err
	}
	doc, err := i.ctrl.ApplyUpdate(act)
	if err != nil {
		return err
	}
	if len(doc) == 0 {
		i.deletedDID = true
	}
	_ = multident.GetLogger(ctx).Log(
		"msg", "document updated",
		"identity", i.address,
		"proposal", id,
	)
	return i.touch(ctx)
}

// ProposeDeletion proposes deleting the DID document and marking the
// identity deleted. Deletion is terminal.
func (i *Identity) ProposeDeletion(ctx multident.Context, token *multicontroller.DelegationToken, expiration multident.UnixMillis) (ProposeResult, error) {
	if err := i.assertLive(); err != nil {
		return ProposeResult{}, err
	}
	pid, auto, err := i.propose(token, multicontroller.NewDeleteAction[DIDDoc](), expiration)
	if err != nil {
		return ProposeResult{}, err
	}
	if auto {
		if err := i.executeDeletion(ctx, token, pid); err != nil {
			return ProposeResult{}, err
		}
	}
	i.emit(proposalEvent(i.address, token.Controller(), pid, auto))
	return ProposeResult{ID: pid, Executed: auto}, nil
}

// ExecuteDeletion executes a pending deletion proposal.
func (i *Identity) ExecuteDeletion(ctx multident.Context, token *multicontroller.DelegationToken, id multicontroller.ProposalID) error {
	if err := i.assertLive(); err != nil {
		return err
	}
	if err := i.executeDeletion(ctx, token, id); err != nil {
		return err
	}
	i.emit(proposalEvent(i.address, token.Controller(), id, true))
	return nil
}

func (i *Identity) executeDeletion(ctx multident.Context, token *multicontroller.DelegationToken, id multicontroller.ProposalID) error {
	act, err := i.ctrl.ExecuteProposal(ctx, token, id)
	if err != nil {
		return err
	}
	if err := i.ctrl.ApplyDelete(act); err != nil {
		return err
	}
	i.deleted = true
	i.deletedDID = true
	return i.touch(ctx)
}

// ProposeConfigChange proposes reconfiguring the controller committee
// and/or the threshold. A change that would make the threshold
// unreachable is rejected here, at proposal creation. When the change
// executes immediately the returned ModifyResult carries the minted
// capabilities for added members.
func (i *Identity) ProposeConfigChange(ctx multident.Context, token *multicontroller.DelegationToken, mod multicontroller.ModifyAction, expiration multident.UnixMillis) (ProposeResult, *multicontroller.ModifyResult, error) {
	if err := i.assertLive(); err != nil {
		return ProposeResult{}, nil, err
	}
	pid, auto, err := i.propose(token, multicontroller.NewModifyAction[DIDDoc](mod), expiration)
	if err != nil {
		return ProposeResult{}, nil, err
	}
	var res *multicontroller.ModifyResult
	if auto {
		if res, err = i.executeConfigChange(ctx, token, pid); err != nil {
			return ProposeResult{}, nil, err
		}
	}
	i.emit(proposalEvent(i.address, token.Controller(), pid, auto))
	return ProposeResult{ID: pid, Executed: auto}, res, nil
}

// ExecuteConfigChange executes a pending config change proposal.
func (i *Identity) ExecuteConfigChange(ctx multident.Context, token *multicontroller.DelegationToken, id multicontroller.ProposalID) (*multicontroller.ModifyResult, error) {
	if err := i.assertLive(); err != nil {
		return nil, err
	}
	res, err := i.executeConfigChange(ctx, token, id)
	if err != nil {
		return nil, err
	}
	i.emit(proposalEvent(i.address, token.Controller(), id, true))
	return res, nil
}

func (i *Identity) executeConfigChange(ctx multident.Context, token *multicontroller.DelegationToken, id multicontroller.ProposalID) (*multicontroller.ModifyResult, error) {
	act, err := i.ctrl.ExecuteProposal(ctx, token, id)
	if err != nil {
		return nil, err
	}
	res, err := i.ctrl.ApplyModify(act)
	if err != nil {
		return nil, err
	}
	if err := i.touch(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

// ProposeUpgrade proposes bumping the identity to the current schema
// version. Only valid while the identity runs an older version.
func (i *Identity) ProposeUpgrade(ctx multident.Context, token *multicontroller.DelegationToken, expiration multident.UnixMillis) (ProposeResult, error) {
	if err := i.assertLive(); err != nil {
		return ProposeResult{}, err
	}
	if i.version >= CurrentVersion {
		return ProposeResult{}, errors.Wrapf(ErrNoUpgrade, "already version %d", i.version)
	}
	pid, auto, err := i.propose(token, multicontroller.NewUpgradeAction[DIDDoc](), expiration)
	if err != nil {
		return ProposeResult{}, err
	}
	if auto {
		if err := i.executeUpgrade(ctx, token, pid); err != nil {
			return ProposeResult{}, err
		}
	}
	i.emit(proposalEvent(i.address, token.Controller(), pid, auto))
	return ProposeResult{ID: pid, Executed: auto}, nil
}

// ExecuteUpgrade executes a pending upgrade proposal.
func (i *Identity) ExecuteUpgrade(ctx multident.Context, token *multicontroller.DelegationToken, id multicontroller.ProposalID) error {
	if err := i.assertLive(); err != nil {
		return err
	}
	if err := i.executeUpgrade(ctx, token, id); err != nil {
		return err
	}
	i.emit(proposalEvent(i.address, token.Controller(), id, true))
	return nil
}

func (i *Identity) executeUpgrade(ctx multident.Context, token *multicontroller.DelegationToken, id multicontroller.ProposalID) error {
	if i.version >= CurrentVersion {
		return errors.Wrapf(ErrNoUpgrade, "already version %d", i.version)
	}
	act, err := i.ctrl.ExecuteProposal(ctx, token, id)
	if err != nil {
		return err
	}
	if _, err := act.Upgrade(); err != nil {
		return err
	}
	i.version = CurrentVersion
	return i.touch(ctx)
}

// ProposeSend proposes transferring owned sub-objects out of this
// identity. When executed immediately the released assets are returned
// to the caller for forwarding.
func (i *Identity) ProposeSend(ctx multident.Context, token *multicontroller.DelegationToken, transfers []multicontroller.Transfer, expiration multident.UnixMillis) (ProposeResult, []SentAsset, error) {
	if err := i.assertLive(); err != nil {
		return ProposeResult{}, nil, err
	}
	for _, t := range transfers {
		if _, ok := i.assets[t.ObjectID]; !ok {
			return ProposeResult{}, nil, errors.Wrapf(errors.ErrNotFound, "asset %q", t.ObjectID)
		}
	}
	pid, auto, err := i.propose(token, multicontroller.NewSendAction[DIDDoc](transfers...), expiration)
	if err != nil {
		return ProposeResult{}, nil, err
	}
	var sent []SentAsset
	if auto {
		if sent, err = i.executeSend(ctx, token, pid); err != nil {
			return ProposeResult{}, nil, err
		}
	}
	i.emit(proposalEvent(i.address, token.Controller(), pid, auto))
	return ProposeResult{ID: pid, Executed: auto}, sent, nil
}

// ExecuteSend executes a pending send proposal, releasing the assets to
// the caller for forwarding to the recipients.
func (i *Identity) ExecuteSend(ctx multident.Context, token *multicontroller.DelegationToken, id multicontroller.ProposalID) ([]SentAsset, error) {
	if err := i.assertLive(); err != nil {
		return nil, err
	}
	sent, err := i.executeSend(ctx, token, id)
	if err != nil {
		return nil, err
	}
	i.emit(proposalEvent(i.address, token.Controller(), id, true))
	return sent, nil
}

func (i *Identity) executeSend(ctx multident.Context, token *multicontroller.DelegationToken, id multicontroller.ProposalID) ([]SentAsset, error) {
	act, err := i.ctrl.ExecuteProposal(ctx, token, id)
	if err != nil {
		return nil, err
	}
	send, err := act.Send()
	if err != nil {
		return nil, err
	}
	sent := make([]SentAsset, 0, len(send.Transfers))
	for _, t := range send.Transfers {
		a, ok := i.assets[t.ObjectID]
		if !ok {
			return nil, errors.Wrapf(errors.ErrNotFound, "asset %q", t.ObjectID)
		}
		delete(i.assets, t.ObjectID)
		sent = append(sent, SentAsset{Asset: a, Recipient: t.Recipient.Clone()})
	}
	if err := i.touch(ctx); err != nil {
		return nil, err
	}
	return sent, nil
}

// ProposeBorrow proposes a temporary checkout of owned sub-objects.
// When executed immediately the borrowed assets and the return
// obligation are handed to the caller.
func (i *Identity) ProposeBorrow(ctx multident.Context, token *multicontroller.DelegationToken, objectIDs []string, expiration multident.UnixMillis) (ProposeResult, []Asset, *BorrowReceipt, error) {
	if err := i.assertLive(); err != nil {
		return ProposeResult{}, nil, nil, err
	}
	for _, id := range objectIDs {
		if _, ok := i.assets[id]; !ok {
			return ProposeResult{}, nil, nil, errors.Wrapf(errors.ErrNotFound, "asset %q", id)
		}
	}
	pid, auto, err := i.propose(token, multicontroller.NewBorrowAction[DIDDoc](objectIDs...), expiration)
	if err != nil {
		return ProposeResult{}, nil, nil, err
	}
	var (
		borrowed []Asset
		receipt  *BorrowReceipt
	)
	if auto {
		if borrowed, receipt, err = i.executeBorrow(ctx, token, pid); err != nil {
			return ProposeResult{}, nil, nil, err
		}
	}
	i.emit(proposalEvent(i.address, token.Controller(), pid, auto))
	return ProposeResult{ID: pid, Executed: auto}, borrowed, receipt, nil
}

// ExecuteBorrow executes a pending borrow proposal.
func (i *Identity) ExecuteBorrow(ctx multident.Context, token *multicontroller.DelegationToken, id multicontroller.ProposalID) ([]Asset, *BorrowReceipt, error) {
	if err := i.assertLive(); err != nil {
		return nil, nil, err
	}
	borrowed, receipt, err := i.executeBorrow(ctx, token, id)
	if err != nil {
		return nil, nil, err
	}
	i.emit(proposalEvent(i.address, token.Controller(), id, true))
	return borrowed, receipt, nil
}

func (i *Identity) executeBorrow(ctx multident.Context, token *multicontroller.DelegationToken, id multicontroller.ProposalID) ([]Asset, *BorrowReceipt, error) {
	act, err := i.ctrl.ExecuteProposal(ctx, token, id)
	if err != nil {
		return nil, nil, err
	}
	borrow, err := act.Borrow()
	if err != nil {
		return nil, nil, err
	}
	out := make([]Asset, 0, len(borrow.ObjectIDs))
	for _, objID := range borrow.ObjectIDs {
		a, ok := i.assets[objID]
		if !ok {
			return nil, nil, errors.Wrapf(errors.ErrNotFound, "asset %q", objID)
		}
		delete(i.assets, objID)
		i.borrowed[objID] = a
		out = append(out, a)
	}
	if err := i.touch(ctx); err != nil {
		return nil, nil, err
	}
	receipt := &BorrowReceipt{proposal: id, objectIDs: borrow.ObjectIDs}
	return out, receipt, nil
}

// ReturnBorrowed settles a borrow checkout. Exactly the borrowed assets
// must be handed back. A receipt cannot be settled twice.
func (i *Identity) ReturnBorrowed(receipt *BorrowReceipt, assets []Asset) error {
	if receipt == nil {
		return errors.Wrap(errors.ErrInput, "no receipt")
	}
	if receipt.returned {
		return errors.Wrap(errors.ErrState, "receipt already settled")
	}
	if len(assets) != len(receipt.objectIDs) {
		return errors.Wrapf(errors.ErrInput, "want %d assets, got %d", len(receipt.objectIDs), len(assets))
	}
	expected := make(map[string]struct{}, len(receipt.objectIDs))
	for _, id := range receipt.objectIDs {
		expected[id] = struct{}{}
	}
	for _, a := range assets {
		if _, ok := expected[a.ID]; !ok {
			return errors.Wrapf(errors.ErrInput, "asset %q was not borrowed", a.ID)
		}
		if _, ok := i.borrowed[a.ID]; !ok {
			return errors.Wrapf(errors.ErrState, "asset %q not outstanding", a.ID)
		}
		delete(expected, a.ID)
	}
	for _, a := range assets {
		delete(i.borrowed, a.ID)
		i.assets[a.ID] = a
	}
	receipt.returned = true
	return nil
}

// ProposeControllerExecution proposes checking out a nested controller
// capability owned by this identity, so it can act as a controller of
// another engine. The capability must be handed back with
// ReturnControllerCap.
func (i *Identity) ProposeControllerExecution(ctx multident.Context, token *multicontroller.DelegationToken, controller, owner multident.Address, expiration multident.UnixMillis) (ProposeResult, *multicontroller.Controller, *CapCheckout, error) {
	if err := i.assertLive(); err != nil {
		return ProposeResult{}, nil, nil, err
	}
	if _, ok := i.caps[capKey(controller, owner)]; !ok {
		return ProposeResult{}, nil, nil, errors.Wrapf(errors.ErrNotFound, "capability %s", capKey(controller, owner))
	}
	pid, auto, err := i.propose(token, multicontroller.NewControllerExecutionAction[DIDDoc](controller, owner), expiration)
	if err != nil {
		return ProposeResult{}, nil, nil, err
	}
	var (
		cap      *multicontroller.Controller
		checkout *CapCheckout
	)
	if auto {
		if cap, checkout, err = i.executeControllerExecution(ctx, token, pid); err != nil {
			return ProposeResult{}, nil, nil, err
		}
	}
	i.emit(proposalEvent(i.address, token.Controller(), pid, auto))
	return ProposeResult{ID: pid, Executed: auto}, cap, checkout, nil
}

// ExecuteControllerExecution executes a pending controller execution
// proposal, checking out the nested capability.
func (i *Identity) ExecuteControllerExecution(ctx multident.Context, token *multicontroller.DelegationToken, id multicontroller.ProposalID) (*multicontroller.Controller, *CapCheckout, error) {
	if err := i.assertLive(); err != nil {
		return nil, nil, err
	}
	cap, checkout, err := i.executeControllerExecution(ctx, token, id)
	if err != nil {
		return nil, nil, err
	}
	i.emit(proposalEvent(i.address, token.Controller(), id, true))
	return cap, checkout, nil
}

func (i *Identity) executeControllerExecution(ctx multident.Context, token *multicontroller.DelegationToken, id multicontroller.ProposalID) (*multicontroller.Controller, *CapCheckout, error) {
	act, err := i.ctrl.ExecuteProposal(ctx, token, id)
	if err != nil {
		return nil, nil, err
	}
	ce, err := act.ControllerExecution()
	if err != nil {
		return nil, nil, err
	}
	key := capKey(ce.Controller, ce.Owner)
	oc, ok := i.caps[key]
	if !ok {
		return nil, nil, errors.Wrapf(errors.ErrNotFound, "capability %s", key)
	}
	if oc.lent {
		return nil, nil, errors.Wrapf(errors.ErrState, "capability %s already checked out", key)
	}
	oc.lent = true
	if err := i.touch(ctx); err != nil {
		return nil, nil, err
	}
	return oc.cap, &CapCheckout{key: key}, nil
}

// ReturnControllerCap settles a nested capability checkout.
func (i *Identity) ReturnControllerCap(checkout *CapCheckout, cap *multicontroller.Controller) error {
	if checkout == nil || cap == nil {
		return errors.Wrap(errors.ErrInput, "no checkout or capability")
	}
	if checkout.returned {
		return errors.Wrap(errors.ErrState, "checkout already settled")
	}
	oc, ok := i.caps[checkout.key]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "capability %s", checkout.key)
	}
	if !oc.lent {
		return errors.Wrap(errors.ErrState, "capability not checked out")
	}
	if oc.cap != cap {
		return errors.Wrap(errors.ErrInput, "foreign capability")
	}
	oc.lent = false
	checkout.returned = true
	return nil
}

// ApproveProposal adds the approval of the token's controller to a
// pending proposal. Emits a threshold-reached notification once the
// collected votes satisfy the threshold.
func (i *Identity) ApproveProposal(ctx multident.Context, token *multicontroller.DelegationToken, id multicontroller.ProposalID) error {
	if err := i.assertLive(); err != nil {
		return err
	}
	votes, err := i.ctrl.ApproveProposal(token, id)
	if err != nil {
		return err
	}
	if votes >= i.ctrl.Threshold() {
		i.emit(thresholdReachedEvent(i.address, id))
	}
	_ = multident.GetLogger(ctx).Log(
		"msg", "proposal approved",
		"identity", i.address,
		"proposal", id,
		"votes", votes,
	)
	return nil
}

// RemoveApproval retracts a previously given approval.
func (i *Identity) RemoveApproval(ctx multident.Context, token *multicontroller.DelegationToken, id multicontroller.ProposalID) error {
	if err := i.assertLive(); err != nil {
		return err
	}
	_, err := i.ctrl.RemoveApproval(token, id)
	return err
}

// DeleteProposal terminates a pending proposal without effect. Once the
// identity itself was deleted the forced path is used, bypassing
// permission and vote checks, so stuck proposals cannot block teardown.
func (i *Identity) DeleteProposal(ctx multident.Context, token *multicontroller.DelegationToken, id multicontroller.ProposalID) error {
	if i.deleted {
		return i.ctrl.ForceDeleteProposal(id)
	}
	return i.ctrl.DeleteProposal(ctx, token, id)
}

// MintDelegationToken mints a new delegation token for the given
// controller capability. The controller must still be a member of the
// committee.
func (i *Identity) MintDelegationToken(cap *multicontroller.Controller, permissions multicontroller.Permissions) (*multicontroller.DelegationToken, error) {
	if err := i.assertLive(); err != nil {
		return nil, err
	}
	if cap == nil || !i.ctrl.IsMember(cap.Address()) {
		return nil, errors.Wrap(multicontroller.ErrInvalidController, "not a member")
	}
	token, err := cap.Delegate(permissions)
	if err != nil {
		return nil, err
	}
	i.emit(tokenMintedEvent(cap.Address(), token.ID(), token.Permissions()))
	return token, nil
}

// RevokeToken denies a delegation token, independently of controller
// membership. Requires a full controller capability.
func (i *Identity) RevokeToken(cap *multicontroller.Controller, id multicontroller.TokenID) error {
	if err := i.assertLive(); err != nil {
		return err
	}
	return i.ctrl.RevokeToken(cap, id)
}

// UnrevokeToken lifts a revocation.
func (i *Identity) UnrevokeToken(cap *multicontroller.Controller, id multicontroller.TokenID) error {
	if err := i.assertLive(); err != nil {
		return err
	}
	return i.ctrl.UnrevokeToken(cap, id)
}

// DestroyControllerCap destroys a controller capability. While the
// identity is alive the member must have been removed from the
// committee first. Once the identity was deleted the capability is
// force-removed and destroyed even if stale.
func (i *Identity) DestroyControllerCap(cap *multicontroller.Controller) error {
	if cap == nil {
		return errors.Wrap(errors.ErrInput, "no capability")
	}
	if i.deleted {
		i.ctrl.EvictController(cap)
		return nil
	}
	return i.ctrl.DestroyController(cap)
}

// Delete performs the final teardown and releases the wrapped document.
// It only succeeds once the identity was deleted, every controller
// capability was reclaimed and no proposal is pending.
func (i *Identity) Delete() (DIDDoc, error) {
	if !i.deleted {
		return nil, errors.Wrap(multicontroller.ErrCannotDelete, "identity not deleted")
	}
	if n := i.ctrl.ControllerCount(); n != 0 {
		return nil, errors.Wrapf(multicontroller.ErrCannotDelete, "%d controllers remain", n)
	}
	return i.ctrl.Destroy()
}
