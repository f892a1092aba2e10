package access

import (
	"context"
	"errors"
	"testing"

	"token-vesting-go/internal/models"
	"token-vesting-go/internal/token"
)

var (
	owner    = models.AccountFromLabel("owner")
	stranger = models.AccountFromLabel("stranger")
)

func TestOwnable_Authorize(t *testing.T) {
	o := NewOwnable(owner)
	ctx := context.Background()

	if err := o.Authorize(ctx, owner, token.ActionMint); err != nil {
		t.Errorf("Expected owner to be authorized, got %v", err)
	}
	err := o.Authorize(ctx, stranger, token.ActionBurn)
	if !errors.Is(err, token.ErrUnauthorized) {
		t.Errorf("Expected Unauthorized, got %v", err)
	}
}

func TestOwnable_TransferOwnership(t *testing.T) {
	o := NewOwnable(owner)

	if err := o.TransferOwnership(stranger, stranger); !errors.Is(err, token.ErrUnauthorized) {
		t.Errorf("Expected Unauthorized for non-owner transfer, got %v", err)
	}
	if err := o.TransferOwnership(owner, models.ZeroAccount); !errors.Is(err, token.Custom("NewOwnerIsZero")) {
		t.Errorf("Expected NewOwnerIsZero, got %v", err)
	}
	if err := o.TransferOwnership(owner, stranger); err != nil {
		t.Fatalf("TransferOwnership failed: %v", err)
	}

	current, ok := o.Owner()
	if !ok || current != stranger {
		t.Errorf("Expected stranger to own the contract, got %s", current)
	}
	if err := o.Authorize(context.Background(), owner, token.ActionMint); err == nil {
		t.Error("Expected previous owner to lose access")
	}
}

func TestOwnable_Renounce(t *testing.T) {
	o := NewOwnable(owner)
	if err := o.RenounceOwnership(owner); err != nil {
		t.Fatalf("RenounceOwnership failed: %v", err)
	}
	if _, ok := o.Owner(); ok {
		t.Error("Expected no owner after renouncement")
	}
	if err := o.Authorize(context.Background(), owner, token.ActionMint); !errors.Is(err, token.ErrUnauthorized) {
		t.Errorf("Expected Unauthorized after renouncement, got %v", err)
	}
}

func TestAllowAll(t *testing.T) {
	if err := (AllowAll{}).Authorize(context.Background(), stranger, token.ActionBurn); err != nil {
		t.Errorf("Expected AllowAll to authorize, got %v", err)
	}
}
