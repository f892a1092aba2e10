package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"token-vesting-go/internal/models"
	"token-vesting-go/internal/timesource"

	"go.uber.org/zap"
)

// ErrUnknownOracle is returned when no oracle is deployed at the requested account
var ErrUnknownOracle = errors.New("unknown oracle account")

var (
	_ timesource.Oracle = (*Registry)(nil)
	_ timesource.Oracle = (*StaticProvider)(nil)
)

// Registry routes window queries to the oracle deployed at each account
type Registry struct {
	mu      sync.RWMutex
	oracles map[models.Account]timesource.Oracle
}

func NewRegistry() *Registry {
	return &Registry{oracles: make(map[models.Account]timesource.Oracle)}
}

func (r *Registry) Register(account models.Account, oracle timesource.Oracle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.oracles[account] = oracle
	zap.L().Debug("Registered oracle", zap.String("account", account.String()))
}

func (r *Registry) Lookup(account models.Account) (timesource.Oracle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	oracle, ok := r.oracles[account]
	return oracle, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.oracles)
}

func (r *Registry) TimeWindow(ctx context.Context, account models.Account) (uint64, uint64, error) {
	oracle, ok := r.Lookup(account)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnknownOracle, account)
	}
	return oracle.TimeWindow(ctx, account)
}

// StaticProvider holds an owner-settable window, answering for any account it is registered under
type StaticProvider struct {
	mu     sync.RWMutex
	window models.Window
}

func NewStaticProvider(start, end uint64) *StaticProvider {
	return &StaticProvider{window: models.Window{Start: start, End: end}}
}

func (p *StaticProvider) Set(start, end uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.window = models.Window{Start: start, End: end}
}

func (p *StaticProvider) Window() models.Window {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.window
}

func (p *StaticProvider) TimeWindow(ctx context.Context, _ models.Account) (uint64, uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	w := p.Window()
	return w.Start, w.End, nil
}
