package formance

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"token-vesting-go/internal/models"
	"token-vesting-go/internal/token"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Numscript templates. Allowances live in the owner's account metadata so a
// delegated transfer and its allowance decrement post as one transaction.
// ---------------------------------------------------------------------------

const numscriptMint = `vars {
  asset $asset
  number $amount
  account $to
}

send [$asset $amount] (
  source = @world allowing unbounded overdraft
  destination = @tokens:$to
)

set_tx_meta("event_type", "mint")
`

const numscriptTransfer = `vars {
  asset $asset
  number $amount
  account $from
  account $to
}

send [$asset $amount] (
  source = @tokens:$from
  destination = @tokens:$to
)

set_tx_meta("event_type", "transfer")
`

// numscriptTransferFrom takes the allowance metadata key as its only format argument
const numscriptTransferFrom = `vars {
  asset $asset
  number $amount
  account $from
  account $to
  string $remaining
}

send [$asset $amount] (
  source = @tokens:$from
  destination = @tokens:$to
)

set_account_meta(@tokens:$from, "%s", $remaining)
set_tx_meta("event_type", "transfer_from")
`

// Ledger is a foreign fungible asset held on a Formance ledger. Balances are
// the asset's volumes on tokens:<account> addresses.
type Ledger struct {
	svc   *Service
	ref   models.AssetRef
	asset string
}

func (l *Ledger) Asset() models.AssetRef {
	return l.ref
}

func (l *Ledger) BalanceOf(ctx context.Context, account models.Account) (*uint256.Int, error) {
	zap.L().Debug("Getting balance from Formance",
		zap.String("account", account.String()), zap.String("asset", l.asset))

	acct, err := l.getAccount(ctx, account, true)
	if err != nil || acct == nil {
		return new(uint256.Int), err
	}
	return toAmount(volumeBalance(acct.Volumes, l.asset))
}

func (l *Ledger) Allowance(ctx context.Context, owner, spender models.Account) (*uint256.Int, error) {
	acct, err := l.getAccount(ctx, owner, false)
	if err != nil || acct == nil {
		return new(uint256.Int), err
	}
	return parseAllowance(acct.Metadata, l.asset, spender)
}

// Mint issues amount from @world. Gating is left to the deployment.
func (l *Ledger) Mint(ctx context.Context, to models.Account, amount *uint256.Int) error {
	if to.IsZero() {
		return token.ErrZeroRecipientAddress
	}
	return l.post(ctx, numscriptMint, map[string]string{
		"asset":  l.asset,
		"amount": amount.Dec(),
		"to":     to.String(),
	})
}

func (l *Ledger) Transfer(ctx context.Context, caller, to models.Account, amount *uint256.Int, data []byte) error {
	if caller.IsZero() {
		return token.ErrZeroSenderAddress
	}
	if to.IsZero() {
		return token.ErrZeroRecipientAddress
	}

	err := l.post(ctx, numscriptTransfer, map[string]string{
		"asset":  l.asset,
		"amount": amount.Dec(),
		"from":   caller.String(),
		"to":     to.String(),
	})
	if err != nil {
		return err
	}

	zap.L().Info("Transfer processed in Formance",
		zap.String("asset", l.asset),
		zap.String("from", caller.String()),
		zap.String("to", to.String()),
		zap.String("amount", amount.Dec()),
		zap.Int("data_len", len(data)))
	return nil
}

// TransferFrom spends caller's allowance over from. The allowance check reads
// committed metadata; the decrement posts with the transfer.
func (l *Ledger) TransferFrom(ctx context.Context, caller, from, to models.Account, amount *uint256.Int, data []byte) error {
	if from.IsZero() {
		return token.ErrZeroSenderAddress
	}
	if to.IsZero() {
		return token.ErrZeroRecipientAddress
	}

	allowance, err := l.Allowance(ctx, from, caller)
	if err != nil {
		return err
	}
	if allowance.Lt(amount) {
		return &token.Error{Kind: token.KindInsufficientAllowance,
			Message: fmt.Sprintf("allowance %s < %s", allowance.Dec(), amount.Dec())}
	}

	vars := map[string]string{
		"asset":  l.asset,
		"amount": amount.Dec(),
		"from":   from.String(),
		"to":     to.String(),
	}
	script := numscriptTransfer
	if !allowance.Eq(token.Unlimited) {
		script = fmt.Sprintf(numscriptTransferFrom, allowanceKey(l.asset, caller))
		vars["remaining"] = new(uint256.Int).Sub(allowance, amount).Dec()
	}
	if err := l.post(ctx, script, vars); err != nil {
		return err
	}

	zap.L().Info("Delegated transfer processed in Formance",
		zap.String("asset", l.asset),
		zap.String("spender", caller.String()),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("amount", amount.Dec()),
		zap.Int("data_len", len(data)))
	return nil
}

// Approve sets spender's allowance over caller's balance
func (l *Ledger) Approve(ctx context.Context, caller, spender models.Account, amount *uint256.Int) error {
	if caller.IsZero() {
		return token.ErrZeroSenderAddress
	}
	if spender.IsZero() {
		return token.ErrZeroRecipientAddress
	}

	_, err := l.svc.client.Ledger.V2.AddMetadataToAccount(ctx, operations.V2AddMetadataToAccountRequest{
		Ledger:      l.svc.ledger,
		Address:     tokenAccount(caller),
		RequestBody: map[string]string{allowanceKey(l.asset, spender): amount.Dec()},
	})
	if err != nil {
		return token.ExternalCallFailed(fmt.Errorf("failed to set allowance: %w", err))
	}

	zap.L().Info("Allowance updated in Formance",
		zap.String("asset", l.asset),
		zap.String("owner", caller.String()),
		zap.String("spender", spender.String()),
		zap.String("amount", amount.Dec()))
	return nil
}

// IncreaseAllowance raises spender's allowance over caller's balance by delta.
// Like TransferFrom it reads committed metadata before writing.
func (l *Ledger) IncreaseAllowance(ctx context.Context, caller, spender models.Account, delta *uint256.Int) error {
	current, err := l.Allowance(ctx, caller, spender)
	if err != nil {
		return err
	}
	next, err := token.CheckedAdd(current, delta)
	if err != nil {
		return err
	}
	return l.Approve(ctx, caller, spender, next)
}

func (l *Ledger) post(ctx context.Context, script string, vars map[string]string) error {
	_, err := l.svc.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger: l.svc.ledger,
		V2PostTransaction: shared.V2PostTransaction{
			Reference: strPtr(uuid.New().String()),
			Script: &shared.V2PostTransactionScript{
				Plain: script,
				Vars:  vars,
			},
		},
	})
	return mapPostError(err)
}

func (l *Ledger) getAccount(ctx context.Context, account models.Account, volumes bool) (*shared.V2Account, error) {
	req := operations.V2GetAccountRequest{
		Ledger:  l.svc.ledger,
		Address: tokenAccount(account),
	}
	if volumes {
		req.Expand = v3.Pointer("volumes")
	}
	resp, err := l.svc.client.Ledger.V2.GetAccount(ctx, req)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, token.ExternalCallFailed(fmt.Errorf("failed to get account %s: %w", req.Address, err))
	}
	return &resp.V2AccountResponse.Data, nil
}

// ---------- helpers ----------

func mapPostError(err error) error {
	switch {
	case err == nil:
		return nil
	case isInsufficientFundError(err):
		return &token.Error{Kind: token.KindInsufficientBalance, Cause: err}
	case isConflictError(err):
		return token.ExternalCallFailed(fmt.Errorf("duplicate transaction reference: %w", err))
	default:
		return token.ExternalCallFailed(err)
	}
}

func tokenAccount(account models.Account) string {
	return "tokens:" + account.String()
}

// allowanceKey is the owner-account metadata key holding spender's allowance
func allowanceKey(asset string, spender models.Account) string {
	return "allowance_" + strings.ToLower(strings.ReplaceAll(asset, "/", "_")) + "_" + spender.String()
}

func parseAllowance(meta map[string]string, asset string, spender models.Account) (*uint256.Int, error) {
	raw, ok := meta[allowanceKey(asset, spender)]
	if !ok || raw == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid allowance metadata %q: %w", raw, err)
	}
	return v, nil
}

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, fAsset string) *big.Int {
	vol, ok := vols[fAsset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}

func toAmount(raw *big.Int) (*uint256.Int, error) {
	if raw == nil {
		return new(uint256.Int), nil
	}
	if raw.Sign() < 0 {
		return nil, fmt.Errorf("negative balance %s", raw)
	}
	v, overflow := uint256.FromBig(raw)
	if overflow {
		return nil, &token.Error{Kind: token.KindOverflow, Message: "balance " + raw.String()}
	}
	return v, nil
}
