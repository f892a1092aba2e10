package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"token-vesting-go/internal/models"
	"token-vesting-go/internal/store"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

var _ store.Tx = (*Tx)(nil)

type balanceKey struct {
	asset   models.AssetRef
	account models.Account
}

// Tx applies optimistic versioning to balance rows: every write checks the
// version observed when the row was first read inside this transaction.
type Tx struct {
	tx       *sql.Tx
	versions map[balanceKey]int64
	done     bool
}

func newTx(tx *sql.Tx) *Tx {
	return &Tx{tx: tx, versions: make(map[balanceKey]int64)}
}

func (t *Tx) GetBalance(ctx context.Context, asset models.AssetRef, account models.Account) (*uint256.Int, error) {
	balance, version, err := getBalance(ctx, t.tx, asset, account)
	if err != nil {
		return nil, err
	}
	key := balanceKey{asset, account}
	if _, seen := t.versions[key]; !seen {
		t.versions[key] = version
	}
	return balance, nil
}

func (t *Tx) SetBalance(ctx context.Context, asset models.AssetRef, account models.Account, balance *uint256.Int) error {
	key := balanceKey{asset, account}
	version, seen := t.versions[key]
	if !seen {
		if _, err := t.GetBalance(ctx, asset, account); err != nil {
			return err
		}
		version = t.versions[key]
	}

	if version == 0 {
		if balance.IsZero() {
			return nil
		}
		_, err := t.tx.ExecContext(ctx, queryInsertAccountBalance, uuid.New().String(), asset.String(), account.String(), balance.Dec())
		if err != nil {
			return fmt.Errorf("failed to create account balance: %w (%w)", store.ErrConcurrentModification, err)
		}
		t.versions[key] = 1
		return nil
	}

	// Update account balance (with optimistic locking)
	result, err := t.tx.ExecContext(ctx, queryUpdateAccountBalance, balance.Dec(), asset.String(), account.String(), version)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}
	t.versions[key] = version + 1
	return nil
}

func (t *Tx) GetAllowance(ctx context.Context, asset models.AssetRef, owner, spender models.Account) (*uint256.Int, error) {
	return getAllowance(ctx, t.tx, asset, owner, spender)
}

func (t *Tx) SetAllowance(ctx context.Context, asset models.AssetRef, owner, spender models.Account, amount *uint256.Int) error {
	_, err := t.tx.ExecContext(ctx, queryUpsertAllowance, asset.String(), owner.String(), spender.String(), amount.Dec())
	if err != nil {
		return fmt.Errorf("failed to set allowance: %w", err)
	}
	return nil
}

func (t *Tx) GetSupply(ctx context.Context, asset models.AssetRef) (*models.Supply, error) {
	return getSupply(ctx, t.tx, asset)
}

func (t *Tx) SetSupply(ctx context.Context, supply *models.Supply) error {
	_, err := t.tx.ExecContext(ctx, queryUpsertSupply,
		supply.Asset.String(), supply.Total.Dec(), supply.Minted.Dec(), supply.Burned.Dec())
	if err != nil {
		return fmt.Errorf("failed to set supply: %w", err)
	}
	return nil
}

func (t *Tx) GetCustody(ctx context.Context, asset models.AssetRef) (*uint256.Int, error) {
	return getCustody(ctx, t.tx, asset)
}

func (t *Tx) SetCustody(ctx context.Context, asset models.AssetRef, amount *uint256.Int) error {
	_, err := t.tx.ExecContext(ctx, queryUpsertCustody, asset.String(), amount.Dec())
	if err != nil {
		return fmt.Errorf("failed to set custody: %w", err)
	}
	return nil
}

func (t *Tx) InsertVest(ctx context.Context, entry *models.VestEntry) (int64, error) {
	return insertVest(ctx, t.tx, entry)
}

func (t *Tx) GetVests(ctx context.Context, receiver models.Account, asset models.AssetRef) ([]models.VestEntry, error) {
	return queryVests(ctx, t.tx, queryGetVests, receiver.String(), asset.String())
}

func (t *Tx) UpdateReleased(ctx context.Context, id int64, expected, released *uint256.Int) error {
	result, err := t.tx.ExecContext(ctx, queryUpdateReleased, released.Dec(), id, expected.Dec())
	if err != nil {
		return fmt.Errorf("failed to update released amount: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("vest entry %d release update failed - %w", id, store.ErrConcurrentModification)
	}
	return nil
}

func (t *Tx) AppendEvent(ctx context.Context, record *models.EventRecord) error {
	return appendEvent(ctx, t.tx, record)
}

func (t *Tx) Commit() error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback is safe to defer after Commit
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		zap.L().Warn("Failed to roll back transaction", zap.Error(err))
		return err
	}
	return nil
}

func zeroAmount() *uint256.Int {
	return new(uint256.Int)
}
