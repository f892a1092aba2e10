package formance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"token-vesting-go/internal/models"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/sdkerrors"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

const DefaultLedgerName = "token-vesting"

// errorInsufficientFund is the ledger's error code for an overdrawn source account
const errorInsufficientFund = shared.V2ErrorsEnum("INSUFFICIENT_FUND")

// Service is a connection to one ledger on a Formance Stack. Every foreign asset
// deployed on that stack gets its own Ledger view from Asset.
type Service struct {
	client *v3.Formance
	ledger string
}

// NewService connects to the stack and makes sure the configured ledger exists
func NewService(ctx context.Context, cfg models.FormanceConfig) (*Service, error) {
	if missing := missingFields(cfg); len(missing) > 0 {
		return nil, fmt.Errorf("formance config missing %s", strings.Join(missing, ", "))
	}
	ledger := cfg.LedgerName
	if ledger == "" {
		ledger = DefaultLedgerName
	}

	svc := &Service{
		client: v3.New(
			v3.WithServerURL(cfg.StackURL),
			v3.WithSecurity(shared.Security{
				ClientID:     v3.Pointer(cfg.ClientID),
				ClientSecret: v3.Pointer(cfg.ClientSecret),
			}),
		),
		ledger: ledger,
	}

	created, err := svc.ensureLedger(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure ledger %s: %w", ledger, err)
	}

	zap.L().Info("Formance ledger ready",
		zap.String("stack_url", cfg.StackURL),
		zap.String("ledger", ledger),
		zap.Bool("created", created))
	return svc, nil
}

// ensureLedger creates the ledger unless it already exists and reports whether it did
func (s *Service) ensureLedger(ctx context.Context) (bool, error) {
	_, err := s.client.Ledger.V2.CreateLedger(ctx, operations.V2CreateLedgerRequest{
		Ledger: s.ledger,
		V2CreateLedgerRequest: shared.V2CreateLedgerRequest{
			Metadata: map[string]string{
				"application": "token-vesting",
				"role":        "foreign-asset-ledger",
			},
		},
	})
	switch {
	case err == nil:
		return true, nil
	case hasErrorCode(err, shared.V2ErrorsEnumLedgerAlreadyExists):
		return false, nil
	default:
		return false, err
	}
}

func missingFields(cfg models.FormanceConfig) []string {
	var missing []string
	if cfg.StackURL == "" {
		missing = append(missing, "stack_url")
	}
	if cfg.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if cfg.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	return missing
}

// Asset returns the ledger view of one foreign asset
func (s *Service) Asset(ref models.AssetRef, symbol string, decimals int) *Ledger {
	return &Ledger{svc: s, ref: ref, asset: formanceAsset(symbol, decimals)}
}

// Close is a no-op; the SDK's HTTP client needs no teardown
func (s *Service) Close() {}

// formanceAsset returns the Formance UMN notation, e.g. "USDC/6".
func formanceAsset(symbol string, decimals int) string {
	return fmt.Sprintf("%s/%d", symbol, decimals)
}

func hasErrorCode(err error, code shared.V2ErrorsEnum) bool {
	var apiErr *sdkerrors.V2ErrorResponse
	return errors.As(err, &apiErr) && apiErr.ErrorCode == code
}

// isConflictError reports a duplicate transaction reference
func isConflictError(err error) bool {
	return hasErrorCode(err, shared.V2ErrorsEnumConflict)
}

func isNotFoundError(err error) bool {
	return hasErrorCode(err, shared.V2ErrorsEnumNotFound)
}

func isInsufficientFundError(err error) bool {
	return hasErrorCode(err, errorInsufficientFund)
}

func strPtr(s string) *string { return &s }
