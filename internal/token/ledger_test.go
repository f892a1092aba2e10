package token_test

import (
	"context"
	"errors"
	"testing"

	"token-vesting-go/internal/access"
	"token-vesting-go/internal/database"
	"token-vesting-go/internal/events"
	"token-vesting-go/internal/models"
	"token-vesting-go/internal/token"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner = models.AccountFromLabel("owner")
	alice = models.AccountFromLabel("alice")
	bob   = models.AccountFromLabel("bob")
	carol = models.AccountFromLabel("carol")
)

func setupTestLedger(t *testing.T, opts ...token.Option) (*token.Ledger, *database.Service, *events.Recorder) {
	t.Helper()
	st, err := database.NewInMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(st.Close)

	recorder := &events.Recorder{}
	opts = append([]token.Option{token.WithSink(recorder)}, opts...)
	return token.NewLedger(st, models.NativeAsset, opts...), st, recorder
}

func amount(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

func requireBalance(t *testing.T, l *token.Ledger, account models.Account, want uint64) {
	t.Helper()
	got, err := l.BalanceOf(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, want, got.Uint64(), "balance of %s", account.Short())
}

func TestMintAndBurn(t *testing.T) {
	l, _, recorder := setupTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Mint(ctx, owner, alice, amount(1000)))
	require.NoError(t, l.Burn(ctx, owner, alice, amount(250)))

	requireBalance(t, l, alice, 750)
	supply, err := l.Supply(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(750), supply.Total.Uint64())
	assert.Equal(t, uint64(1000), supply.Minted.Uint64())
	assert.Equal(t, uint64(250), supply.Burned.Uint64())
	require.NoError(t, l.Reconcile(ctx))

	transfers := recorder.Events(models.EventTransfer)
	require.Len(t, transfers, 2)
	mint := transfers[0].(models.TransferEvent)
	assert.Nil(t, mint.From)
	assert.Equal(t, alice, *mint.To)
	burn := transfers[1].(models.TransferEvent)
	assert.Nil(t, burn.To)
	assert.Equal(t, alice, *burn.From)
}

func TestMintBurn_ZeroAddresses(t *testing.T) {
	l, _, _ := setupTestLedger(t)
	ctx := context.Background()

	assert.ErrorIs(t, l.Mint(ctx, owner, models.ZeroAccount, amount(1)), token.ErrZeroRecipientAddress)
	assert.ErrorIs(t, l.Burn(ctx, owner, models.ZeroAccount, amount(1)), token.ErrZeroSenderAddress)
}

func TestBurn_InsufficientBalance(t *testing.T) {
	l, _, _ := setupTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Mint(ctx, owner, alice, amount(10)))
	err := l.Burn(ctx, owner, alice, amount(11))
	assert.ErrorIs(t, err, token.ErrInsufficientBalance)
	requireBalance(t, l, alice, 10)
}

func TestMint_Overflow(t *testing.T) {
	l, _, _ := setupTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Mint(ctx, owner, alice, new(uint256.Int).Set(token.Unlimited)))
	err := l.Mint(ctx, owner, bob, amount(1))
	assert.ErrorIs(t, err, token.ErrOverflow)
	requireBalance(t, l, bob, 0)
	require.NoError(t, l.Reconcile(ctx))
}

func TestMint_PolicyGated(t *testing.T) {
	l, _, recorder := setupTestLedger(t, token.WithPolicy(access.NewOwnable(owner)))
	ctx := context.Background()

	err := l.Mint(ctx, alice, alice, amount(5))
	assert.ErrorIs(t, err, token.ErrUnauthorized)
	assert.Empty(t, recorder.Records())

	require.NoError(t, l.Mint(ctx, owner, alice, amount(5)))
	assert.ErrorIs(t, l.Burn(ctx, alice, alice, amount(5)), token.ErrUnauthorized)
}

func TestTransfer(t *testing.T) {
	l, _, recorder := setupTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Mint(ctx, owner, alice, amount(100)))

	tests := []struct {
		name    string
		from    models.Account
		to      models.Account
		amount  uint64
		wantErr error
	}{
		{"plain transfer", alice, bob, 40, nil},
		{"insufficient balance", alice, bob, 61, token.ErrInsufficientBalance},
		{"zero recipient", alice, models.ZeroAccount, 1, token.ErrZeroRecipientAddress},
		{"zero sender", models.ZeroAccount, bob, 1, token.ErrZeroSenderAddress},
		{"self transfer", bob, bob, 40, nil},
		{"zero amount", alice, carol, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Transfer(ctx, tt.from, tt.to, amount(tt.amount), nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}

	requireBalance(t, l, alice, 60)
	requireBalance(t, l, bob, 40)
	requireBalance(t, l, carol, 0)
	require.NoError(t, l.Reconcile(ctx))

	// mint + three successful transfers
	assert.Len(t, recorder.Events(models.EventTransfer), 4)
}

func TestTransferFrom(t *testing.T) {
	l, _, recorder := setupTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Mint(ctx, owner, alice, amount(100)))
	require.NoError(t, l.Approve(ctx, alice, bob, amount(50)))

	require.NoError(t, l.TransferFrom(ctx, bob, alice, carol, amount(30), []byte("memo")))
	requireBalance(t, l, alice, 70)
	requireBalance(t, l, carol, 30)

	remaining, err := l.Allowance(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), remaining.Uint64())

	approvals := recorder.Events(models.EventApproval)
	require.Len(t, approvals, 2)
	assert.Equal(t, uint64(20), approvals[1].(models.ApprovalEvent).Amount.Uint64())
}

func TestTransferFrom_InsufficientAllowanceLeavesStateUntouched(t *testing.T) {
	l, _, recorder := setupTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Mint(ctx, owner, alice, amount(100)))
	require.NoError(t, l.Approve(ctx, alice, bob, amount(40)))
	recorder.Reset()

	err := l.TransferFrom(ctx, bob, alice, carol, amount(50), nil)
	assert.ErrorIs(t, err, token.ErrInsufficientAllowance)

	requireBalance(t, l, alice, 100)
	requireBalance(t, l, carol, 0)
	allowance, err := l.Allowance(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), allowance.Uint64())
	assert.Empty(t, recorder.Records())
}

func TestTransferFrom_InsufficientBalanceRollsBackAllowance(t *testing.T) {
	l, _, _ := setupTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Mint(ctx, owner, alice, amount(10)))
	require.NoError(t, l.Approve(ctx, alice, bob, amount(50)))

	err := l.TransferFrom(ctx, bob, alice, carol, amount(20), nil)
	assert.ErrorIs(t, err, token.ErrInsufficientBalance)

	allowance, err := l.Allowance(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), allowance.Uint64(), "allowance decrement must roll back with the failed debit")
}

func TestTransferFrom_UnlimitedAllowance(t *testing.T) {
	l, _, _ := setupTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Mint(ctx, owner, alice, amount(100)))
	require.NoError(t, l.Approve(ctx, alice, bob, token.Unlimited))

	require.NoError(t, l.TransferFrom(ctx, bob, alice, carol, amount(60), nil))
	allowance, err := l.Allowance(ctx, alice, bob)
	require.NoError(t, err)
	assert.True(t, allowance.Eq(token.Unlimited))
}

func TestIncreaseDecreaseAllowance(t *testing.T) {
	l, _, _ := setupTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.IncreaseAllowance(ctx, alice, bob, amount(30)))
	require.NoError(t, l.IncreaseAllowance(ctx, alice, bob, amount(20)))
	require.NoError(t, l.DecreaseAllowance(ctx, alice, bob, amount(10)))

	allowance, err := l.Allowance(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), allowance.Uint64())

	assert.ErrorIs(t, l.DecreaseAllowance(ctx, alice, bob, amount(41)), token.ErrInsufficientAllowance)
	require.NoError(t, l.Approve(ctx, alice, bob, token.Unlimited))
	assert.ErrorIs(t, l.IncreaseAllowance(ctx, alice, bob, amount(1)), token.ErrOverflow)
	assert.ErrorIs(t, l.Approve(ctx, alice, models.ZeroAccount, amount(1)), token.ErrZeroRecipientAddress)
}

func TestDenyListHook(t *testing.T) {
	deny := token.NewDenyList(carol)
	l, _, _ := setupTestLedger(t, token.WithHook(token.Hooks{deny}))
	ctx := context.Background()
	require.NoError(t, l.Mint(ctx, owner, alice, amount(100)))

	err := l.Transfer(ctx, alice, carol, amount(10), nil)
	assert.ErrorIs(t, err, token.Custom("DeniedRecipient"))
	assert.True(t, token.IsKind(err, token.KindCustom))
	assert.ErrorIs(t, l.Mint(ctx, owner, carol, amount(1)), token.ErrCustom)
	requireBalance(t, l, alice, 100)

	deny.Remove(carol)
	require.NoError(t, l.Transfer(ctx, alice, carol, amount(10), nil))
	requireBalance(t, l, carol, 10)
}

func TestConservationAcrossMixedOperations(t *testing.T) {
	l, st, _ := setupTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Mint(ctx, owner, alice, amount(500)))
	require.NoError(t, l.Mint(ctx, owner, bob, amount(300)))
	require.NoError(t, l.Approve(ctx, alice, carol, amount(200)))

	ops := []func() error{
		func() error { return l.Transfer(ctx, alice, bob, amount(120), nil) },
		func() error { return l.TransferFrom(ctx, carol, alice, carol, amount(150), nil) },
		func() error { return l.TransferFrom(ctx, carol, alice, bob, amount(100), nil) }, // exceeds allowance
		func() error { return l.Burn(ctx, owner, bob, amount(70)) },
		func() error { return l.Transfer(ctx, carol, alice, amount(1000), nil) }, // exceeds balance
		func() error { return l.Transfer(ctx, bob, carol, amount(50), nil) },
	}
	for _, op := range ops {
		_ = op()
		require.NoError(t, l.Reconcile(ctx))
	}

	sum, err := st.SumBalances(ctx, models.NativeAsset)
	require.NoError(t, err)
	total, err := l.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(730), total.Uint64())
	assert.True(t, sum.Eq(total))
}

func TestErrorKinds(t *testing.T) {
	err := token.ExternalCallFailed(errors.New("connection refused"))
	assert.ErrorIs(t, err, token.ErrExternalCallFailed)
	assert.Equal(t, token.KindExternalCallFailed, token.KindOf(err))
	assert.Contains(t, err.Error(), "connection refused")

	// taxonomy errors pass through unchanged
	assert.Same(t, token.ErrInsufficientBalance, token.ExternalCallFailed(token.ErrInsufficientBalance))

	assert.ErrorIs(t, token.Custom("Paused"), token.ErrCustom)
	assert.NotErrorIs(t, token.Custom("Paused"), token.Custom("Frozen"))
	assert.Equal(t, token.Kind(""), token.KindOf(errors.New("plain")))
}

func TestCheckedArithmetic(t *testing.T) {
	_, err := token.CheckedSub(amount(1), amount(2))
	assert.ErrorIs(t, err, token.ErrOverflow)
	_, err = token.CheckedAdd(token.Unlimited, amount(1))
	assert.ErrorIs(t, err, token.ErrOverflow)

	v, err := token.ParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	require.NoError(t, err)
	assert.True(t, v.Eq(token.Unlimited))
	_, err = token.ParseAmount("-1")
	assert.Error(t, err)
}
