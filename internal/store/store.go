package store

import (
	"context"
	"errors"

	"token-vesting-go/internal/models"

	"github.com/holiman/uint256"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrNotFound               = errors.New("not found")
)

// EventQuery filters persisted events. A zero Asset with AllAssets unset selects the native asset.
type EventQuery struct {
	Asset     models.AssetRef
	AllAssets bool
	AfterSeq  int64
	Limit     int
}

// Store is the persistent state shared by every asset ledger and the vester.
// Mutations happen only through a Tx so each operation commits or rolls back as a unit.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	// --- Read-only views, never called while a Tx is open ---
	GetBalance(ctx context.Context, asset models.AssetRef, account models.Account) (*uint256.Int, error)
	GetAllBalances(ctx context.Context, asset models.AssetRef) ([]models.AccountBalance, error)
	GetAllowance(ctx context.Context, asset models.AssetRef, owner, spender models.Account) (*uint256.Int, error)
	SumBalances(ctx context.Context, asset models.AssetRef) (*uint256.Int, error)
	GetSupply(ctx context.Context, asset models.AssetRef) (*models.Supply, error)
	GetCustody(ctx context.Context, asset models.AssetRef) (*uint256.Int, error)
	GetVests(ctx context.Context, receiver models.Account, asset models.AssetRef) ([]models.VestEntry, error)
	ListVests(ctx context.Context, asset models.AssetRef) ([]models.VestEntry, error)
	GetEvents(ctx context.Context, q EventQuery) ([]models.EventRecord, error)

	// --- Lifecycle ---
	Close()
}

// Tx is a unit of work against the Store.
type Tx interface {
	// --- Ledger state ---
	GetBalance(ctx context.Context, asset models.AssetRef, account models.Account) (*uint256.Int, error)
	SetBalance(ctx context.Context, asset models.AssetRef, account models.Account, balance *uint256.Int) error
	GetAllowance(ctx context.Context, asset models.AssetRef, owner, spender models.Account) (*uint256.Int, error)
	SetAllowance(ctx context.Context, asset models.AssetRef, owner, spender models.Account, amount *uint256.Int) error
	GetSupply(ctx context.Context, asset models.AssetRef) (*models.Supply, error)
	SetSupply(ctx context.Context, supply *models.Supply) error

	// --- Vesting state ---
	GetCustody(ctx context.Context, asset models.AssetRef) (*uint256.Int, error)
	SetCustody(ctx context.Context, asset models.AssetRef, amount *uint256.Int) error
	InsertVest(ctx context.Context, entry *models.VestEntry) (int64, error)
	GetVests(ctx context.Context, receiver models.Account, asset models.AssetRef) ([]models.VestEntry, error)
	// UpdateReleased moves an entry's released amount from expected to released,
	// returning ErrConcurrentModification if the stored value is not expected.
	UpdateReleased(ctx context.Context, id int64, expected, released *uint256.Int) error

	// --- Events ---
	AppendEvent(ctx context.Context, record *models.EventRecord) error

	Commit() error
	Rollback() error
}
