package multicontroller

import (
	"testing"

	"github.com/iov-one/multident/errors"
)

func TestPermissions(t *testing.T) {
	p := CanCreateProposal | CanApproveProposal

	if !p.Has(CanCreateProposal) {
		t.Fatal("missing create")
	}
	if !p.Has(CanCreateProposal | CanApproveProposal) {
		t.Fatal("missing combined")
	}
	if p.Has(CanExecuteProposal) {
		t.Fatal("unexpected execute")
	}
	if got := p.Union(CanExecuteProposal); !got.Has(CanExecuteProposal) {
		t.Fatal("union lost a bit")
	}
	if got := p.Intersect(CanApproveProposal); got != CanApproveProposal {
		t.Fatalf("unexpected intersection %b", got)
	}
	if got := p.Without(CanCreateProposal); got.Has(CanCreateProposal) {
		t.Fatal("without kept a bit")
	}
	if !PermissionsFull.Has(p) {
		t.Fatal("full set missing bits")
	}
}

func TestPermissionsValidate(t *testing.T) {
	if err := PermissionsFull.Validate(); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	unknown := Permissions(1 << 30)
	if err := unknown.Validate(); !errors.ErrInput.Is(err) {
		t.Fatalf("want input error, got %+v", err)
	}
}
