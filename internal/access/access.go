package access

import (
	"context"
	"fmt"
	"sync"

	"token-vesting-go/internal/models"
	"token-vesting-go/internal/token"

	"go.uber.org/zap"
)

// Ownable gates privileged actions on a single owner account. A renounced
// contract has no owner and rejects every privileged action.
type Ownable struct {
	mu    sync.RWMutex
	owner *models.Account
}

var _ token.Policy = (*Ownable)(nil)

func NewOwnable(owner models.Account) *Ownable {
	o := &Ownable{}
	if !owner.IsZero() {
		o.owner = &owner
	}
	return o
}

// Owner returns the current owner, or false after renouncement
func (o *Ownable) Owner() (models.Account, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.owner == nil {
		return models.ZeroAccount, false
	}
	return *o.owner, true
}

func (o *Ownable) Authorize(_ context.Context, caller models.Account, action token.Action) error {
	if err := o.onlyOwner(caller); err != nil {
		zap.L().Warn("Unauthorized action",
			zap.String("caller", caller.String()),
			zap.String("action", string(action)))
		return err
	}
	return nil
}

// TransferOwnership hands the contract to newOwner. Only the owner may call it.
func (o *Ownable) TransferOwnership(caller, newOwner models.Account) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.checkOwnerLocked(caller); err != nil {
		return err
	}
	if newOwner.IsZero() {
		return token.Custom("NewOwnerIsZero")
	}
	previous := *o.owner
	o.owner = &newOwner
	zap.L().Info("Ownership transferred",
		zap.String("previous_owner", previous.String()),
		zap.String("new_owner", newOwner.String()))
	return nil
}

// RenounceOwnership leaves the contract without an owner
func (o *Ownable) RenounceOwnership(caller models.Account) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.checkOwnerLocked(caller); err != nil {
		return err
	}
	o.owner = nil
	zap.L().Info("Ownership renounced", zap.String("previous_owner", caller.String()))
	return nil
}

func (o *Ownable) onlyOwner(caller models.Account) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.checkOwnerLocked(caller)
}

func (o *Ownable) checkOwnerLocked(caller models.Account) error {
	if o.owner == nil || *o.owner != caller {
		return &token.Error{Kind: token.KindUnauthorized, Message: fmt.Sprintf("caller %s is not owner", caller.Short())}
	}
	return nil
}

// AllowAll authorises every caller
type AllowAll struct{}

func (AllowAll) Authorize(context.Context, models.Account, token.Action) error {
	return nil
}
