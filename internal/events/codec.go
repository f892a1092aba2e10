package events

import (
	"fmt"

	"token-vesting-go/internal/models"

	"github.com/holiman/uint256"
	"github.com/vmihailenco/msgpack/v5"
)

// Wire forms keep field order fixed and render amounts as decimal strings and
// accounts as hex so payloads stay readable from any msgpack consumer.

type wireTransfer struct {
	From   string `msgpack:"from,omitempty"`
	To     string `msgpack:"to,omitempty"`
	Amount string `msgpack:"amount"`
}

type wireApproval struct {
	Owner   string `msgpack:"owner"`
	Spender string `msgpack:"spender"`
	Amount  string `msgpack:"amount"`
}

type wireVestingScheduled struct {
	Creator  string `msgpack:"creator"`
	Receiver string `msgpack:"receiver"`
	Asset    string `msgpack:"asset"`
	Amount   string `msgpack:"amount"`
	Schedule string `msgpack:"schedule"`
}

type wireTokenReleased struct {
	Caller   string `msgpack:"caller"`
	Asset    string `msgpack:"asset"`
	Receiver string `msgpack:"receiver"`
	Amount   string `msgpack:"amount"`
}

// Encode renders an event payload
func Encode(event models.Event) ([]byte, error) {
	var wire any
	switch ev := event.(type) {
	case models.TransferEvent:
		w := wireTransfer{Amount: amountString(ev.Amount)}
		if ev.From != nil {
			w.From = ev.From.String()
		}
		if ev.To != nil {
			w.To = ev.To.String()
		}
		wire = w
	case models.ApprovalEvent:
		wire = wireApproval{Owner: ev.Owner.String(), Spender: ev.Spender.String(), Amount: amountString(ev.Amount)}
	case models.VestingScheduledEvent:
		wire = wireVestingScheduled{
			Creator:  ev.Creator.String(),
			Receiver: ev.Receiver.String(),
			Asset:    ev.Asset.String(),
			Amount:   amountString(ev.Amount),
			Schedule: ev.Schedule.String(),
		}
	case models.TokenReleasedEvent:
		wire = wireTokenReleased{
			Caller:   ev.Caller.String(),
			Asset:    ev.Asset.String(),
			Receiver: ev.Receiver.String(),
			Amount:   amountString(ev.Amount),
		}
	default:
		return nil, fmt.Errorf("unsupported event type %T", event)
	}
	return msgpack.Marshal(wire)
}

// NewRecord encodes an event into a record ready to append to the store
func NewRecord(asset models.AssetRef, event models.Event) (*models.EventRecord, error) {
	payload, err := Encode(event)
	if err != nil {
		return nil, err
	}
	return &models.EventRecord{Kind: event.Kind(), Asset: asset, Payload: payload}, nil
}

// Decode parses a record payload back into its typed event
func Decode(kind models.EventKind, payload []byte) (models.Event, error) {
	switch kind {
	case models.EventTransfer:
		var w wireTransfer
		if err := msgpack.Unmarshal(payload, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		ev := models.TransferEvent{}
		var err error
		if ev.From, err = optionalAccount(w.From); err != nil {
			return nil, err
		}
		if ev.To, err = optionalAccount(w.To); err != nil {
			return nil, err
		}
		if ev.Amount, err = uint256.FromDecimal(w.Amount); err != nil {
			return nil, fmt.Errorf("decode %s amount: %w", kind, err)
		}
		return ev, nil

	case models.EventApproval:
		var w wireApproval
		if err := msgpack.Unmarshal(payload, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		ev := models.ApprovalEvent{}
		var err error
		if ev.Owner, err = models.ParseAccount(w.Owner); err != nil {
			return nil, err
		}
		if ev.Spender, err = models.ParseAccount(w.Spender); err != nil {
			return nil, err
		}
		if ev.Amount, err = uint256.FromDecimal(w.Amount); err != nil {
			return nil, fmt.Errorf("decode %s amount: %w", kind, err)
		}
		return ev, nil

	case models.EventVestingScheduled:
		var w wireVestingScheduled
		if err := msgpack.Unmarshal(payload, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		ev := models.VestingScheduledEvent{}
		var err error
		if ev.Creator, err = models.ParseAccount(w.Creator); err != nil {
			return nil, err
		}
		if ev.Receiver, err = models.ParseAccount(w.Receiver); err != nil {
			return nil, err
		}
		if ev.Asset, err = models.ParseAssetRef(w.Asset); err != nil {
			return nil, err
		}
		if ev.Amount, err = uint256.FromDecimal(w.Amount); err != nil {
			return nil, fmt.Errorf("decode %s amount: %w", kind, err)
		}
		if ev.Schedule, err = models.ParseSchedule(w.Schedule); err != nil {
			return nil, err
		}
		return ev, nil

	case models.EventTokenReleased:
		var w wireTokenReleased
		if err := msgpack.Unmarshal(payload, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		ev := models.TokenReleasedEvent{}
		var err error
		if ev.Caller, err = models.ParseAccount(w.Caller); err != nil {
			return nil, err
		}
		if ev.Asset, err = models.ParseAssetRef(w.Asset); err != nil {
			return nil, err
		}
		if ev.Receiver, err = models.ParseAccount(w.Receiver); err != nil {
			return nil, err
		}
		if ev.Amount, err = uint256.FromDecimal(w.Amount); err != nil {
			return nil, fmt.Errorf("decode %s amount: %w", kind, err)
		}
		return ev, nil
	}
	return nil, fmt.Errorf("unknown event kind %q", kind)
}

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func optionalAccount(s string) (*models.Account, error) {
	if s == "" {
		return nil, nil
	}
	a, err := models.ParseAccount(s)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
