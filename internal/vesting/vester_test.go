package vesting

import (
	"context"
	"errors"
	"testing"
	"time"

	"token-vesting-go/internal/database"
	"token-vesting-go/internal/events"
	"token-vesting-go/internal/models"
	"token-vesting-go/internal/oracle"
	"token-vesting-go/internal/store"
	"token-vesting-go/internal/timesource"
	"token-vesting-go/internal/token"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	minter    = models.AccountFromLabel("minter")
	depositor = models.AccountFromLabel("depositor")
	receiver  = models.AccountFromLabel("receiver")
	stranger  = models.AccountFromLabel("stranger")
	vesterAcc = models.AccountFromLabel("vester")
	oracleAcc = models.AccountFromLabel("oracle")
)

type fixture struct {
	st       *database.Service
	ledger   *token.Ledger
	vester   *Vester
	clock    *timesource.ManualClock
	oracles  *oracle.Registry
	recorder *events.Recorder
}

// newFixture funds depositor with 1000 and approves the vester for all of it
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := database.NewInMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	f := &fixture{
		st:       st,
		clock:    timesource.NewManualClock(0),
		oracles:  oracle.NewRegistry(),
		recorder: &events.Recorder{},
	}
	f.ledger = token.NewLedger(st, models.NativeAsset, token.WithSink(f.recorder))
	f.vester = NewVester(st, Ledgers{models.NativeAsset: f.ledger},
		timesource.NewAdapter(f.clock, f.oracles, time.Second), vesterAcc, f.recorder)

	require.NoError(t, f.ledger.Mint(ctx, minter, depositor, uint256.NewInt(1000)))
	require.NoError(t, f.ledger.Approve(ctx, depositor, vesterAcc, uint256.NewInt(1000)))
	f.recorder.Reset()
	return f
}

func (f *fixture) createVest(t *testing.T, amount uint64, schedule models.VestingSchedule) *models.VestEntry {
	t.Helper()
	entry, err := f.vester.CreateVest(context.Background(), depositor, receiver, models.NativeAsset,
		uint256.NewInt(amount), schedule, nil)
	require.NoError(t, err)
	return entry
}

func (f *fixture) release(t *testing.T, at uint64) uint64 {
	t.Helper()
	f.clock.Set(at)
	paid, err := f.vester.Release(context.Background(), stranger, receiver, models.NativeAsset, nil)
	require.NoError(t, err)
	return paid.Uint64()
}

func (f *fixture) balance(t *testing.T, account models.Account) uint64 {
	t.Helper()
	b, err := f.ledger.BalanceOf(context.Background(), account)
	require.NoError(t, err)
	return b.Uint64()
}

func (f *fixture) released(t *testing.T) []uint64 {
	t.Helper()
	entries, err := f.vester.Entries(context.Background(), receiver, models.NativeAsset)
	require.NoError(t, err)
	out := make([]uint64, len(entries))
	for i, e := range entries {
		out[i] = e.Released.Uint64()
	}
	return out
}

func (f *fixture) requireCustodyConsistent(t *testing.T) {
	t.Helper()
	_, err := f.vester.CheckCustody(context.Background(), models.NativeAsset)
	require.NoError(t, err)
	require.NoError(t, f.ledger.Reconcile(context.Background()))
}

func TestReleasable(t *testing.T) {
	window := &models.Window{Start: 0, End: 90}
	tests := []struct {
		name   string
		window *models.Window
		total  uint64
		now    uint64
		want   uint64
	}{
		{"instant", nil, 900, 0, 900},
		{"before start", &models.Window{Start: 10, End: 20}, 900, 5, 0},
		{"at start", &models.Window{Start: 10, End: 20}, 900, 10, 0},
		{"one third", window, 900, 30, 300},
		{"truncates", window, 100, 1, 1},
		{"at end", window, 900, 90, 900},
		{"after end", window, 900, 91, 900},
		{"empty window", &models.Window{Start: 50, End: 50}, 900, 50, 900},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Releasable(tt.window, uint256.NewInt(tt.total), tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Uint64())
		})
	}
}

func TestReleasable_MonotonicAndBounded(t *testing.T) {
	total := new(uint256.Int).SetAllOne()
	window := &models.Window{Start: 1_000, End: 1_000 + 7_919}

	prev := new(uint256.Int)
	for now := uint64(0); now <= window.End+10; now += 13 {
		got, err := Releasable(window, total, now)
		require.NoError(t, err, "no overflow for max total at %d", now)
		require.False(t, got.Lt(prev), "releasable decreased at %d", now)
		require.False(t, got.Gt(total), "releasable above total at %d", now)
		prev = got
	}

	atEnd, err := Releasable(window, total, window.End)
	require.NoError(t, err)
	assert.True(t, atEnd.Eq(total))
	assert.False(t, atEnd.Lt(prev))
}

func TestCreateVest(t *testing.T) {
	f := newFixture(t)
	entry := f.createVest(t, 900, models.LinearSchedule(0, 90))

	assert.NotZero(t, entry.Id)
	assert.Equal(t, depositor, entry.Creator)
	assert.True(t, entry.Released.IsZero())
	assert.Equal(t, uint64(100), f.balance(t, depositor))
	assert.Equal(t, uint64(900), f.balance(t, vesterAcc))
	f.requireCustodyConsistent(t)

	scheduled := f.recorder.Events(models.EventVestingScheduled)
	require.Len(t, scheduled, 1)
	event := scheduled[0].(models.VestingScheduledEvent)
	assert.Equal(t, depositor, event.Creator)
	assert.Equal(t, receiver, event.Receiver)
	assert.Equal(t, uint64(900), event.Amount.Uint64())
	assert.Equal(t, models.LinearSchedule(0, 90), event.Schedule)
}

func TestCreateVest_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	foreign := models.AssetRef{Ledger: models.AccountFromLabel("foreign")}

	tests := []struct {
		name     string
		receiver models.Account
		asset    models.AssetRef
		amount   uint64
		schedule models.VestingSchedule
		wantErr  error
	}{
		{"zero amount", receiver, models.NativeAsset, 0, models.InstantSchedule(), token.Custom("ZeroAmount")},
		{"zero receiver", models.ZeroAccount, models.NativeAsset, 10, models.InstantSchedule(), token.ErrZeroRecipientAddress},
		{"inverted window", receiver, models.NativeAsset, 10, models.LinearSchedule(20, 10), token.Custom("InvalidSchedule")},
		{"unknown asset", receiver, foreign, 10, models.InstantSchedule(), token.ErrExternalCallFailed},
		{"exceeds allowance", receiver, models.NativeAsset, 1001, models.InstantSchedule(), token.ErrInsufficientAllowance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.vester.CreateVest(ctx, depositor, tt.receiver, tt.asset, uint256.NewInt(tt.amount), tt.schedule, nil)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Empty(t, f.released(t))
	assert.Equal(t, uint64(1000), f.balance(t, depositor))
}

func TestCreateVest_InsufficientAllowance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.Approve(ctx, depositor, vesterAcc, uint256.NewInt(40)))
	f.recorder.Reset()

	_, err := f.vester.CreateVest(ctx, depositor, receiver, models.NativeAsset, uint256.NewInt(50), models.InstantSchedule(), nil)
	assert.ErrorIs(t, err, token.ErrInsufficientAllowance)
	assert.Equal(t, token.KindInsufficientAllowance, token.KindOf(err))

	assert.Empty(t, f.released(t))
	assert.Equal(t, uint64(1000), f.balance(t, depositor))
	assert.Equal(t, uint64(0), f.balance(t, vesterAcc))
	assert.Empty(t, f.recorder.Records())
	f.requireCustodyConsistent(t)
}

func TestRelease_LinearProgression(t *testing.T) {
	f := newFixture(t)
	f.createVest(t, 900, models.LinearSchedule(0, 90))

	assert.Equal(t, uint64(300), f.release(t, 30))
	assert.Equal(t, []uint64{300}, f.released(t))
	assert.Equal(t, uint64(0), f.release(t, 30), "second release at the same instant pays nothing")
	assert.Equal(t, uint64(300), f.release(t, 60))
	assert.Equal(t, uint64(300), f.release(t, 91))
	assert.Equal(t, uint64(0), f.release(t, 200))

	assert.Equal(t, []uint64{900}, f.released(t))
	assert.Equal(t, uint64(900), f.balance(t, receiver))
	assert.Equal(t, uint64(0), f.balance(t, stranger), "the caller never receives the payout")
	f.requireCustodyConsistent(t)
}

func TestRelease_EarlyIsIdempotentNoop(t *testing.T) {
	f := newFixture(t)
	f.createVest(t, 500, models.LinearSchedule(100, 200))
	f.recorder.Reset()

	assert.Equal(t, uint64(0), f.release(t, 50))
	assert.Equal(t, uint64(0), f.release(t, 100))

	assert.Equal(t, []uint64{0}, f.released(t))
	assert.Equal(t, uint64(0), f.balance(t, receiver))
	assert.Equal(t, uint64(500), f.balance(t, vesterAcc))
	assert.Empty(t, f.recorder.Events(models.EventTransfer))

	released := f.recorder.Events(models.EventTokenReleased)
	require.Len(t, released, 2)
	event := released[0].(models.TokenReleasedEvent)
	assert.Equal(t, stranger, event.Caller)
	assert.Equal(t, receiver, event.Receiver)
	assert.True(t, event.Amount.IsZero())
}

func TestRelease_FullAtMaturity(t *testing.T) {
	f := newFixture(t)
	f.createVest(t, 777, models.LinearSchedule(10, 1_000))

	partial := f.release(t, 500)
	assert.Equal(t, uint64(777*490/990), partial)

	assert.Equal(t, 777-partial, f.release(t, 1_000))
	assert.Equal(t, []uint64{777}, f.released(t))
	assert.Equal(t, uint64(777), f.balance(t, receiver))
	f.requireCustodyConsistent(t)
}

func TestRelease_Instant(t *testing.T) {
	f := newFixture(t)
	f.createVest(t, 250, models.InstantSchedule())

	assert.Equal(t, uint64(250), f.release(t, 0))
	assert.Equal(t, uint64(0), f.release(t, 1))
	f.requireCustodyConsistent(t)
}

func TestRelease_NoEntries(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, uint64(0), f.release(t, 10))
	assert.Len(t, f.recorder.Events(models.EventTokenReleased), 1)
}

func TestRelease_NoEntriesOnUndeployedAsset(t *testing.T) {
	f := newFixture(t)
	foreign := models.AssetRef{Ledger: models.AccountFromLabel("foreign")}

	paid, err := f.vester.Release(context.Background(), stranger, receiver, foreign, nil)
	require.NoError(t, err)
	assert.True(t, paid.IsZero())
	assert.Len(t, f.recorder.Events(models.EventTokenReleased), 1)
}

func TestRelease_ExternalFallbackMatchesLinear(t *testing.T) {
	fallback := models.Window{Start: 100, End: 200}

	linear := newFixture(t)
	linear.createVest(t, 1000, models.LinearSchedule(fallback.Start, fallback.End))

	// no oracle registered at oracleAcc, every query fails
	external := newFixture(t)
	external.createVest(t, 1000, models.ExternalSchedule(oracleAcc, fallback))

	for _, now := range []uint64{0, 100, 101, 133, 150, 199, 200, 250} {
		assert.Equal(t, linear.release(t, now), external.release(t, now), "at t=%d", now)
	}
	assert.Equal(t, linear.released(t), external.released(t))
	external.requireCustodyConsistent(t)
}

func TestRelease_ExternalUsesOracleWindow(t *testing.T) {
	f := newFixture(t)
	provider := oracle.NewStaticProvider(0, 100)
	f.oracles.Register(oracleAcc, provider)
	f.createVest(t, 1000, models.ExternalSchedule(oracleAcc, models.Window{Start: 500, End: 600}))

	assert.Equal(t, uint64(500), f.release(t, 50))

	// the oracle stretching the window backwards never claws back released funds
	provider.Set(0, 1000)
	assert.Equal(t, uint64(0), f.release(t, 60))
	assert.Equal(t, []uint64{500}, f.released(t))

	assert.Equal(t, uint64(100), f.release(t, 600))
	provider.Set(0, 10)
	assert.Equal(t, uint64(400), f.release(t, 601))
	f.requireCustodyConsistent(t)
}

func TestRelease_AggregatesDeposits(t *testing.T) {
	f := newFixture(t)
	f.createVest(t, 900, models.LinearSchedule(0, 90))
	f.createVest(t, 100, models.InstantSchedule())

	assert.Equal(t, uint64(400), f.release(t, 30))
	assert.Equal(t, []uint64{300, 100}, f.released(t))

	assert.Equal(t, uint64(600), f.release(t, 90))
	assert.Equal(t, []uint64{900, 100}, f.released(t))
	assert.Equal(t, uint64(1000), f.balance(t, receiver))

	released := f.recorder.Events(models.EventTokenReleased)
	require.Len(t, released, 2)
	assert.Equal(t, uint64(400), released[0].(models.TokenReleasedEvent).Amount.Uint64())
	f.requireCustodyConsistent(t)
}

// brokenStore fails every attempt to record a vest entry
type brokenStore struct {
	store.Store
}

func (s brokenStore) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return brokenTx{Tx: tx}, nil
}

type brokenTx struct {
	store.Tx
}

func (brokenTx) InsertVest(context.Context, *models.VestEntry) (int64, error) {
	return 0, errors.New("disk full")
}

func TestCreateVest_RecordFailureRefundsDepositAndAllowance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.vester.store = brokenStore{Store: f.st}

	_, err := f.vester.CreateVest(ctx, depositor, receiver, models.NativeAsset, uint256.NewInt(300),
		models.InstantSchedule(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, uint64(1000), f.balance(t, depositor))
	assert.Equal(t, uint64(0), f.balance(t, vesterAcc))
	allowance, err := f.ledger.Allowance(ctx, depositor, vesterAcc)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), allowance.Uint64())

	entries, err := f.st.GetVests(ctx, receiver, models.NativeAsset)
	require.NoError(t, err)
	assert.Empty(t, entries)
	f.requireCustodyConsistent(t)
}

func TestCreateVest_RecordFailureKeepsUnlimitedAllowance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.ledger.Approve(ctx, depositor, vesterAcc, token.Unlimited))
	f.vester.store = brokenStore{Store: f.st}

	_, err := f.vester.CreateVest(ctx, depositor, receiver, models.NativeAsset, uint256.NewInt(300),
		models.InstantSchedule(), nil)
	require.Error(t, err)

	assert.Equal(t, uint64(1000), f.balance(t, depositor))
	allowance, err := f.ledger.Allowance(ctx, depositor, vesterAcc)
	require.NoError(t, err)
	assert.True(t, allowance.Eq(token.Unlimited))
}

type flakyLedger struct {
	AssetLedger
	failTransfer bool
	onTransfer   func()
}

func (l *flakyLedger) Transfer(ctx context.Context, caller, to models.Account, amount *uint256.Int, data []byte) error {
	if l.onTransfer != nil {
		hook := l.onTransfer
		l.onTransfer = nil
		hook()
	}
	if l.failTransfer {
		return errors.New("ledger unavailable")
	}
	return l.AssetLedger.Transfer(ctx, caller, to, amount, data)
}

func TestRelease_PayoutFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	f.createVest(t, 900, models.LinearSchedule(0, 90))
	flaky := &flakyLedger{AssetLedger: f.ledger}
	f.vester.ledgers[models.NativeAsset] = flaky

	flaky.failTransfer = true
	f.clock.Set(45)
	_, err := f.vester.Release(context.Background(), stranger, receiver, models.NativeAsset, nil)
	assert.ErrorIs(t, err, token.ErrExternalCallFailed)

	assert.Equal(t, []uint64{0}, f.released(t))
	assert.Equal(t, uint64(0), f.balance(t, receiver))
	f.requireCustodyConsistent(t)

	flaky.failTransfer = false
	assert.Equal(t, uint64(450), f.release(t, 45))
	f.requireCustodyConsistent(t)
}

func TestRelease_ReentrantCallSeesUpdatedState(t *testing.T) {
	f := newFixture(t)
	f.createVest(t, 900, models.LinearSchedule(0, 90))
	flaky := &flakyLedger{AssetLedger: f.ledger}
	f.vester.ledgers[models.NativeAsset] = flaky

	var inner *uint256.Int
	var innerErr error
	flaky.onTransfer = func() {
		inner, innerErr = f.vester.Release(context.Background(), stranger, receiver, models.NativeAsset, nil)
	}

	assert.Equal(t, uint64(900), f.release(t, 90))
	require.NoError(t, innerErr)
	assert.True(t, inner.IsZero(), "reentrant release must not pay twice")
	assert.Equal(t, uint64(900), f.balance(t, receiver))
	f.requireCustodyConsistent(t)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	f.createVest(t, 900, models.LinearSchedule(0, 90))
	f.createVest(t, 100, models.LinearSchedule(0, 10))
	f.release(t, 5)

	f.clock.Set(30)
	summary, err := f.vester.Summary(context.Background(), receiver, models.NativeAsset)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Entries)
	assert.Equal(t, uint64(1000), summary.Total.Uint64())
	assert.Equal(t, uint64(50+50), summary.Released.Uint64())
	assert.Equal(t, uint64(250+50), summary.Releasable.Uint64())
	assert.Equal(t, uint64(30), summary.AsOf)
}

func TestCheckCustody_DetectsMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createVest(t, 300, models.InstantSchedule())

	tx, err := f.st.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SetCustody(ctx, models.NativeAsset, uint256.NewInt(299)))
	require.NoError(t, tx.Commit())

	report, err := f.vester.CheckCustody(ctx, models.NativeAsset)
	assert.ErrorIs(t, err, ErrInvariantViolation)
	assert.Equal(t, uint64(300), report.Owed.Uint64())
	assert.Equal(t, uint64(300), report.Held.Uint64())
}
