package vesting

import (
	"context"
	"fmt"

	"token-vesting-go/internal/models"
	"token-vesting-go/internal/token"

	"github.com/holiman/uint256"
)

// AssetLedger is the part of a fungible ledger the Vester drives. The native
// token.Ledger and foreign ledgers both satisfy it.
type AssetLedger interface {
	Transfer(ctx context.Context, caller, to models.Account, amount *uint256.Int, data []byte) error
	TransferFrom(ctx context.Context, caller, from, to models.Account, amount *uint256.Int, data []byte) error
	BalanceOf(ctx context.Context, account models.Account) (*uint256.Int, error)
	Allowance(ctx context.Context, owner, spender models.Account) (*uint256.Int, error)
	IncreaseAllowance(ctx context.Context, caller, spender models.Account, delta *uint256.Int) error
}

var _ AssetLedger = (*token.Ledger)(nil)

// Ledgers dispatches by asset identity
type Ledgers map[models.AssetRef]AssetLedger

func (l Ledgers) Resolve(asset models.AssetRef) (AssetLedger, error) {
	ledger, ok := l[asset]
	if !ok || ledger == nil {
		return nil, token.ExternalCallFailed(fmt.Errorf("no ledger deployed for asset %s", asset))
	}
	return ledger, nil
}
