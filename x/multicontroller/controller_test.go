package multicontroller

import (
	"testing"

	"github.com/iov-one/multident/errors"
	"github.com/iov-one/multident/multitest/assert"
)

func TestAccessTokenCheckout(t *testing.T) {
	c := newController(testAddr(1), true)

	token, receipt, err := c.AccessToken()
	assert.Nil(t, err)
	assert.Equal(t, testAddr(1), token.Controller())
	assert.Equal(t, PermissionsFull, token.Permissions())

	// The access token is exclusive until returned.
	if _, _, err := c.AccessToken(); !errors.ErrState.Is(err) {
		t.Fatalf("want state error, got %+v", err)
	}
	assert.Nil(t, c.ReturnToken(token, receipt))
	if err := c.ReturnToken(token, receipt); !errors.ErrState.Is(err) {
		t.Fatalf("want state error, got %+v", err)
	}
	_, _, err = c.AccessToken()
	assert.Nil(t, err)
}

func TestReturnForeignToken(t *testing.T) {
	a := newController(testAddr(1), true)
	b := newController(testAddr(2), true)

	tokenA, receiptA, err := a.AccessToken()
	assert.Nil(t, err)
	tokenB, _, err := b.AccessToken()
	assert.Nil(t, err)

	if err := a.ReturnToken(tokenB, receiptA); !errors.ErrInput.Is(err) {
		t.Fatalf("want input error, got %+v", err)
	}
	if err := a.ReturnToken(nil, nil); !errors.ErrInput.Is(err) {
		t.Fatalf("want input error, got %+v", err)
	}
	assert.Nil(t, a.ReturnToken(tokenA, receiptA))
}

func TestDelegate(t *testing.T) {
	c := newController(testAddr(1), true)

	token, err := c.Delegate(CanApproveProposal | CanRemoveApproval)
	assert.Nil(t, err)
	assert.Equal(t, CanApproveProposal|CanRemoveApproval, token.Permissions())
	if token.Permissions().Has(CanCreateProposal) {
		t.Fatal("unexpected create permission")
	}

	// Every minted token gets its own identity.
	other, err := c.Delegate(CanApproveProposal)
	assert.Nil(t, err)
	if token.ID() == other.ID() {
		t.Fatal("token ids must differ")
	}

	restricted := newController(testAddr(2), false)
	if _, err := restricted.Delegate(CanApproveProposal); !ErrInvalidPermissions.Is(err) {
		t.Fatalf("want invalid permissions, got %+v", err)
	}
}

func TestDestroyedControllerMintsNothing(t *testing.T) {
	c := newController(testAddr(1), true)
	c.destroy()

	if _, _, err := c.AccessToken(); !errors.ErrState.Is(err) {
		t.Fatalf("want state error, got %+v", err)
	}
	if _, err := c.Delegate(CanApproveProposal); !errors.ErrState.Is(err) {
		t.Fatalf("want state error, got %+v", err)
	}
}
