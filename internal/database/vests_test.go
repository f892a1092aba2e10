package database

import (
	"context"
	"errors"
	"testing"

	"token-vesting-go/internal/models"
	"token-vesting-go/internal/store"

	"github.com/holiman/uint256"
)

func TestInsertAndGetVests(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()
	ctx := context.Background()

	oracle := models.AccountFromLabel("oracle")
	schedules := []models.VestingSchedule{
		models.InstantSchedule(),
		models.LinearSchedule(0, 90),
		models.ExternalSchedule(oracle, models.Window{Start: 100, End: 200}),
	}

	tx := beginTx(t, service)
	for i, schedule := range schedules {
		id, err := tx.InsertVest(ctx, &models.VestEntry{
			Creator:   alice,
			Receiver:  bob,
			Asset:     models.NativeAsset,
			Total:     uint256.NewInt(uint64(100 * (i + 1))),
			Schedule:  schedule,
			CreatedAt: 42,
		})
		if err != nil {
			t.Fatalf("InsertVest failed: %v", err)
		}
		if id != int64(i+1) {
			t.Errorf("Expected id %d, got %d", i+1, id)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	entries, err := service.GetVests(ctx, bob, models.NativeAsset)
	if err != nil {
		t.Fatalf("GetVests failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry.Schedule != schedules[i] {
			t.Errorf("Entry %d: expected schedule %s, got %s", i, schedules[i], entry.Schedule)
		}
		if !entry.Released.IsZero() {
			t.Errorf("Entry %d: expected released 0, got %s", i, entry.Released.Dec())
		}
		if entry.Creator != alice || entry.CreatedAt != 42 {
			t.Errorf("Entry %d: unexpected creator or creation time", i)
		}
	}

	none, err := service.GetVests(ctx, alice, models.NativeAsset)
	if err != nil {
		t.Fatalf("GetVests failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no entries for alice, got %d", len(none))
	}
}

func TestUpdateReleased_CompareAndSet(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()
	ctx := context.Background()

	tx := beginTx(t, service)
	id, err := tx.InsertVest(ctx, &models.VestEntry{
		Creator: alice, Receiver: bob, Asset: models.NativeAsset,
		Total: uint256.NewInt(900), Schedule: models.LinearSchedule(0, 90),
	})
	if err != nil {
		t.Fatalf("InsertVest failed: %v", err)
	}
	if err := tx.UpdateReleased(ctx, id, uint256.NewInt(0), uint256.NewInt(300)); err != nil {
		t.Fatalf("UpdateReleased failed: %v", err)
	}

	err = tx.UpdateReleased(ctx, id, uint256.NewInt(0), uint256.NewInt(600))
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Errorf("Expected ErrConcurrentModification for stale expected value, got %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	entries, err := service.ListVests(ctx, models.NativeAsset)
	if err != nil {
		t.Fatalf("ListVests failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Released.Uint64() != 300 {
		t.Errorf("Expected released 300, got %+v", entries)
	}
}

func TestEventsPaging(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()
	ctx := context.Background()

	other := models.AssetRef{Ledger: models.AccountFromLabel("other")}
	tx := beginTx(t, service)
	for i := 0; i < 5; i++ {
		asset := models.NativeAsset
		if i%2 == 1 {
			asset = other
		}
		record := &models.EventRecord{Kind: models.EventTransfer, Asset: asset, Payload: []byte{byte(i)}}
		if err := tx.AppendEvent(ctx, record); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
		if record.Seq != int64(i+1) || record.Id == "" {
			t.Errorf("Expected seq %d and an id, got %d %q", i+1, record.Seq, record.Id)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	native, err := service.GetEvents(ctx, store.EventQuery{Asset: models.NativeAsset})
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(native) != 3 {
		t.Errorf("Expected 3 native events, got %d", len(native))
	}

	page, err := service.GetEvents(ctx, store.EventQuery{AllAssets: true, AfterSeq: 2, Limit: 2})
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(page) != 2 || page[0].Seq != 3 || page[1].Seq != 4 {
		t.Errorf("Unexpected page: %+v", page)
	}
	if page[0].Kind != models.EventTransfer || page[0].Payload[0] != 2 {
		t.Errorf("Unexpected record contents: %+v", page[0])
	}
}
