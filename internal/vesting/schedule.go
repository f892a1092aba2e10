package vesting

import (
	"token-vesting-go/internal/models"
	"token-vesting-go/internal/token"

	"github.com/holiman/uint256"
)

// Releasable is the cumulative share of total that window permits at now,
// truncated toward zero and never above total. A nil window releases
// everything immediately.
func Releasable(window *models.Window, total *uint256.Int, now uint64) (*uint256.Int, error) {
	if window == nil || now >= window.End {
		return new(uint256.Int).Set(total), nil
	}
	if now <= window.Start {
		return new(uint256.Int), nil
	}

	elapsed := uint256.NewInt(now - window.Start)
	duration := uint256.NewInt(window.End - window.Start)
	amount, overflow := new(uint256.Int).MulDivOverflow(total, elapsed, duration)
	if overflow {
		return nil, &token.Error{Kind: token.KindOverflow, Message: "linear release " + total.Dec()}
	}
	if amount.Gt(total) {
		amount.Set(total)
	}
	return amount, nil
}
