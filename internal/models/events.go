package models

import (
	"time"

	"github.com/holiman/uint256"
)

type EventKind string

const (
	EventTransfer         EventKind = "Transfer"
	EventApproval         EventKind = "Approval"
	EventVestingScheduled EventKind = "VestingScheduled"
	EventTokenReleased    EventKind = "TokenReleased"
)

// Event is implemented by every lifecycle event
type Event interface {
	Kind() EventKind
}

// TransferEvent: From is nil for a mint, To is nil for a burn.
type TransferEvent struct {
	From   *Account
	To     *Account
	Amount *uint256.Int
}

type ApprovalEvent struct {
	Owner   Account
	Spender Account
	Amount  *uint256.Int
}

type VestingScheduledEvent struct {
	Creator  Account
	Receiver Account
	Asset    AssetRef
	Amount   *uint256.Int
	Schedule VestingSchedule
}

type TokenReleasedEvent struct {
	Caller   Account
	Asset    AssetRef
	Receiver Account
	Amount   *uint256.Int
}

func (TransferEvent) Kind() EventKind         { return EventTransfer }
func (ApprovalEvent) Kind() EventKind         { return EventApproval }
func (VestingScheduledEvent) Kind() EventKind { return EventVestingScheduled }
func (TokenReleasedEvent) Kind() EventKind    { return EventTokenReleased }

// EventRecord is a persisted event. Payload holds the encoded event body.
type EventRecord struct {
	Id        string
	Seq       int64
	Kind      EventKind
	Asset     AssetRef
	Payload   []byte
	CreatedAt time.Time
}
