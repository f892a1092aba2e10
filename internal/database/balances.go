package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"token-vesting-go/internal/models"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// GetBalance returns current balance for asset/account (O(1) lookup)
func (s *Service) GetBalance(ctx context.Context, asset models.AssetRef, account models.Account) (*uint256.Int, error) {
	zap.L().Debug("Getting balance", zap.String("asset", asset.String()), zap.String("account", account.String()))

	balance, _, err := getBalance(ctx, s.db, asset, account)
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("account", account.String()), zap.Error(err))
		return nil, err
	}
	return balance, nil
}

// GetAllBalances returns all non-zero balances of an asset
func (s *Service) GetAllBalances(ctx context.Context, asset models.AssetRef) ([]models.AccountBalance, error) {
	zap.L().Debug("Getting all balances", zap.String("asset", asset.String()))

	rows, err := s.db.QueryContext(ctx, queryGetAllBalances, asset.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get all balances: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var balances []models.AccountBalance
	for rows.Next() {
		var balance models.AccountBalance
		var assetStr, accountStr, balanceStr string
		err := rows.Scan(&balance.Id, &assetStr, &accountStr, &balanceStr, &balance.Version, &balance.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}

		balance.Asset = asset
		if balance.Account, err = models.ParseAccount(accountStr); err != nil {
			return nil, fmt.Errorf("failed to parse account: %w", err)
		}
		if balance.Balance, err = parseAmount(balanceStr); err != nil {
			return nil, err
		}
		balances = append(balances, balance)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during balance row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}

	zap.L().Debug("Retrieved all balances", zap.String("asset", asset.String()), zap.Int("count", len(balances)))
	return balances, nil
}

// SumBalances adds up every persisted balance of an asset. Overflow is reported, never wrapped.
func (s *Service) SumBalances(ctx context.Context, asset models.AssetRef) (*uint256.Int, error) {
	rows, err := s.db.QueryContext(ctx, querySumBalances, asset.String())
	if err != nil {
		return nil, fmt.Errorf("failed to sum balances: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	sum := new(uint256.Int)
	for rows.Next() {
		var balanceStr string
		if err := rows.Scan(&balanceStr); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balance, err := parseAmount(balanceStr)
		if err != nil {
			return nil, err
		}
		if _, overflow := sum.AddOverflow(sum, balance); overflow {
			return nil, fmt.Errorf("balance sum overflows for asset %s", asset)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}
	return sum, nil
}

func (s *Service) GetAllowance(ctx context.Context, asset models.AssetRef, owner, spender models.Account) (*uint256.Int, error) {
	return getAllowance(ctx, s.db, asset, owner, spender)
}

func (s *Service) GetSupply(ctx context.Context, asset models.AssetRef) (*models.Supply, error) {
	return getSupply(ctx, s.db, asset)
}

func (s *Service) GetCustody(ctx context.Context, asset models.AssetRef) (*uint256.Int, error) {
	return getCustody(ctx, s.db, asset)
}

// getBalance returns the balance and its row version; version 0 means no row yet.
func getBalance(ctx context.Context, q queryer, asset models.AssetRef, account models.Account) (*uint256.Int, int64, error) {
	var id, balanceStr string
	var version int64
	err := q.QueryRowContext(ctx, queryGetAccountBalance, asset.String(), account.String()).Scan(&id, &balanceStr, &version)
	if errors.Is(err, sql.ErrNoRows) {
		// No balance record means zero balance
		return new(uint256.Int), 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get balance: %w", err)
	}
	balance, err := parseAmount(balanceStr)
	if err != nil {
		return nil, 0, err
	}
	return balance, version, nil
}

func getAllowance(ctx context.Context, q queryer, asset models.AssetRef, owner, spender models.Account) (*uint256.Int, error) {
	var amountStr string
	err := q.QueryRowContext(ctx, queryGetAllowance, asset.String(), owner.String(), spender.String()).Scan(&amountStr)
	if errors.Is(err, sql.ErrNoRows) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get allowance: %w", err)
	}
	return parseAmount(amountStr)
}

func getSupply(ctx context.Context, q queryer, asset models.AssetRef) (*models.Supply, error) {
	var totalStr, mintedStr, burnedStr string
	err := q.QueryRowContext(ctx, queryGetSupply, asset.String()).Scan(&totalStr, &mintedStr, &burnedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewSupply(asset), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get supply: %w", err)
	}

	supply := &models.Supply{Asset: asset}
	if supply.Total, err = parseAmount(totalStr); err != nil {
		return nil, err
	}
	if supply.Minted, err = parseAmount(mintedStr); err != nil {
		return nil, err
	}
	if supply.Burned, err = parseAmount(burnedStr); err != nil {
		return nil, err
	}
	return supply, nil
}

func getCustody(ctx context.Context, q queryer, asset models.AssetRef) (*uint256.Int, error) {
	var amountStr string
	err := q.QueryRowContext(ctx, queryGetCustody, asset.String()).Scan(&amountStr)
	if errors.Is(err, sql.ErrNoRows) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get custody: %w", err)
	}
	return parseAmount(amountStr)
}

func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount '%s': %w", s, err)
	}
	return v, nil
}
