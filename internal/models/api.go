package models

import (
	"time"

	"github.com/holiman/uint256"
)

// EventView is a persisted event with its payload decoded
type EventView struct {
	Seq       int64
	Id        string
	Kind      EventKind
	Asset     AssetRef
	Event     Event
	CreatedAt time.Time
}

type VestResult struct {
	Success bool
	Entry   *VestEntry
	Error   string
}

type ReleaseResult struct {
	Success  bool
	Receiver Account
	Asset    AssetRef
	Amount   *uint256.Int
	Error    string
}
