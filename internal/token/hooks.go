package token

import (
	"context"

	"token-vesting-go/internal/models"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/uint256"
)

// Action names a privileged ledger operation
type Action string

const (
	ActionMint Action = "mint"
	ActionBurn Action = "burn"
)

// Policy decides whether caller may perform a privileged action
type Policy interface {
	Authorize(ctx context.Context, caller models.Account, action Action) error
}

// UpdateHook can veto any balance movement. from is nil for a mint, to is nil for a burn.
// Hooks run inside the ledger transaction and must not call back into the store.
type UpdateHook interface {
	BeforeUpdate(ctx context.Context, from, to *models.Account, amount *uint256.Int) error
}

// Hooks runs each hook in order and stops at the first veto
type Hooks []UpdateHook

func (h Hooks) BeforeUpdate(ctx context.Context, from, to *models.Account, amount *uint256.Int) error {
	for _, hook := range h {
		if err := hook.BeforeUpdate(ctx, from, to, amount); err != nil {
			return err
		}
	}
	return nil
}

// DenyList blocks movements to or from listed accounts
type DenyList struct {
	accounts mapset.Set[models.Account]
}

func NewDenyList(accounts ...models.Account) *DenyList {
	return &DenyList{accounts: mapset.NewSet[models.Account](accounts...)}
}

func (d *DenyList) Add(account models.Account) bool {
	return d.accounts.Add(account)
}

func (d *DenyList) Remove(account models.Account) {
	d.accounts.Remove(account)
}

func (d *DenyList) Contains(account models.Account) bool {
	return d.accounts.Contains(account)
}

func (d *DenyList) Len() int {
	return d.accounts.Cardinality()
}

func (d *DenyList) BeforeUpdate(_ context.Context, from, to *models.Account, _ *uint256.Int) error {
	if to != nil && d.accounts.Contains(*to) {
		return Custom("DeniedRecipient")
	}
	if from != nil && d.accounts.Contains(*from) {
		return Custom("DeniedSender")
	}
	return nil
}
