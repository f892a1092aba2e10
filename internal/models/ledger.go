package models

import (
	"time"

	"github.com/holiman/uint256"
)

// AccountBalance represents current balance state for one account of one asset
type AccountBalance struct {
	Id        string
	Asset     AssetRef
	Account   Account
	Balance   *uint256.Int
	Version   int64
	UpdatedAt time.Time
}

// Supply tracks issuance for one asset. Total == Minted - Burned.
type Supply struct {
	Asset  AssetRef
	Total  *uint256.Int
	Minted *uint256.Int
	Burned *uint256.Int
}

func NewSupply(asset AssetRef) *Supply {
	return &Supply{Asset: asset, Total: new(uint256.Int), Minted: new(uint256.Int), Burned: new(uint256.Int)}
}
