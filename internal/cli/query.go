package cli

import (
	"fmt"
	"io"
	"time"

	"token-vesting-go/internal/common"
	"token-vesting-go/internal/models"

	"github.com/spf13/cobra"
)

type balanceResult struct {
	Asset   string `json:"asset"`
	Account string `json:"account"`
	Balance string `json:"balance"`
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account>",
		Short: "Show the balance of one account",
		Args:  cobra.ExactArgs(1),
		RunE: withServices(opts, func(cmd *cobra.Command, services *common.Services, out *OutputFormatter, args []string) error {
			asset, err := opts.asset()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --asset", err)
			}
			ledger, err := services.Ledger(asset)
			if err != nil {
				return WrapExitError(ExitCommandError, "unknown asset", err)
			}
			account, err := parseAccount(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid account", err)
			}

			balance, err := ledger.BalanceOf(cmd.Context(), account)
			if err != nil {
				return out.Failure("balance lookup failed", err)
			}

			r := balanceResult{Asset: asset.String(), Account: account.String(), Balance: formatAmount(services, asset, balance)}
			return out.Success(r, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %s\n", r.Account, r.Balance)
			})
		}),
	}
}

type allowanceResult struct {
	Asset     string `json:"asset"`
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Allowance string `json:"allowance"`
}

// NewAllowanceCommand creates the allowance command.
func NewAllowanceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "allowance <owner> <spender>",
		Short: "Show how much a spender may move from an owner",
		Args:  cobra.ExactArgs(2),
		RunE: withServices(opts, func(cmd *cobra.Command, services *common.Services, out *OutputFormatter, args []string) error {
			asset, err := opts.asset()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --asset", err)
			}
			ledger, err := services.Ledger(asset)
			if err != nil {
				return WrapExitError(ExitCommandError, "unknown asset", err)
			}
			owner, err := parseAccount(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid owner", err)
			}
			spender, err := parseAccount(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid spender", err)
			}

			allowance, err := ledger.Allowance(cmd.Context(), owner, spender)
			if err != nil {
				return out.Failure("allowance lookup failed", err)
			}

			r := allowanceResult{Asset: asset.String(), Owner: owner.String(), Spender: spender.String(),
				Allowance: formatAmount(services, asset, allowance)}
			return out.Success(r, func(w io.Writer) {
				fmt.Fprintf(w, "%s -> %s: %s\n", r.Owner, r.Spender, r.Allowance)
			})
		}),
	}
}

// NewBalancesCommand creates the balances command.
func NewBalancesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balances",
		Short: "List every non-zero balance of a local asset",
		Args:  cobra.NoArgs,
		RunE: withServices(opts, func(cmd *cobra.Command, services *common.Services, out *OutputFormatter, args []string) error {
			asset, err := opts.asset()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --asset", err)
			}

			balances, err := services.Api.GetBalances(cmd.Context(), asset)
			if err != nil {
				return out.Failure("balance listing failed", err)
			}

			results := make([]balanceResult, len(balances))
			for i, b := range balances {
				results[i] = balanceResult{Asset: asset.String(), Account: b.Account.String(),
					Balance: formatAmount(services, asset, b.Balance)}
			}

			return out.Success(results, func(w io.Writer) {
				common.PrintHeader(w, fmt.Sprintf("BALANCES (asset %s)", asset), common.DefaultWidth)
				if len(results) == 0 {
					fmt.Fprintln(w, "└  No balances found")
					return
				}
				for i, r := range results {
					fmt.Fprintf(w, "%s%s  %s\n", common.BoxPrefix(i == len(results)-1), r.Account, r.Balance)
				}
			})
		}),
	}
}

type supplyResult struct {
	Asset      string `json:"asset"`
	Total      string `json:"total"`
	Minted     string `json:"minted"`
	Burned     string `json:"burned"`
	Reconciled bool   `json:"reconciled"`
}

// NewSupplyCommand creates the supply command.
func NewSupplyCommand(opts *RootOptions) *cobra.Command {
	var reconcile bool

	cmd := &cobra.Command{
		Use:   "supply",
		Short: "Show issuance of a local asset",
		Args:  cobra.NoArgs,
		RunE: withServices(opts, func(cmd *cobra.Command, services *common.Services, out *OutputFormatter, args []string) error {
			asset, err := opts.asset()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --asset", err)
			}
			ledger, err := services.LocalLedger(asset)
			if err != nil {
				return WrapExitError(ExitCommandError, "supply unavailable", err)
			}

			if reconcile {
				if err := ledger.Reconcile(cmd.Context()); err != nil {
					return out.Failure("reconciliation failed", err)
				}
			}

			supply, err := ledger.Supply(cmd.Context())
			if err != nil {
				return out.Failure("supply lookup failed", err)
			}

			r := supplyResult{
				Asset:      asset.String(),
				Total:      formatAmount(services, asset, supply.Total),
				Minted:     formatAmount(services, asset, supply.Minted),
				Burned:     formatAmount(services, asset, supply.Burned),
				Reconciled: reconcile,
			}
			return out.Success(r, func(w io.Writer) {
				fmt.Fprintf(w, "total %s (minted %s, burned %s)\n", r.Total, r.Minted, r.Burned)
				if r.Reconciled {
					fmt.Fprintln(w, "✓ balances reconcile with supply")
				}
			})
		}),
	}

	cmd.Flags().BoolVar(&reconcile, "reconcile", false, "verify balances sum to the supply")
	return cmd
}

type eventResult struct {
	Seq         int64  `json:"seq"`
	Id          string `json:"id"`
	Kind        string `json:"kind"`
	Asset       string `json:"asset"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

// NewEventsCommand creates the events command.
func NewEventsCommand(opts *RootOptions) *cobra.Command {
	var after int64
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recorded events of an asset",
		Args:  cobra.NoArgs,
		RunE: withServices(opts, func(cmd *cobra.Command, services *common.Services, out *OutputFormatter, args []string) error {
			asset, err := opts.asset()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --asset", err)
			}

			views, err := services.Api.GetEvents(cmd.Context(), asset, after, limit)
			if err != nil {
				return out.Failure("event listing failed", err)
			}

			results := make([]eventResult, len(views))
			for i, v := range views {
				results[i] = eventResult{
					Seq:         v.Seq,
					Id:          v.Id,
					Kind:        string(v.Kind),
					Asset:       v.Asset.String(),
					Description: describeEvent(services, v.Asset, v.Event),
					CreatedAt:   v.CreatedAt.Format(time.RFC3339),
				}
			}

			return out.Success(results, func(w io.Writer) {
				common.PrintHeader(w, fmt.Sprintf("EVENTS (asset %s)", asset), common.WideWidth)
				for i, r := range results {
					last := i == len(results)-1
					fmt.Fprintf(w, "%s#%d %s\n", common.BoxPrefix(last), r.Seq, r.Kind)
					fmt.Fprintf(w, "%s  %s\n", common.BoxDetailPrefix(last), r.Description)
				}
			})
		}),
	}

	cmd.Flags().Int64Var(&after, "after", 0, "only events after this sequence number")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of events (up to 100)")
	return cmd
}

func describeEvent(services *common.Services, asset models.AssetRef, event models.Event) string {
	switch e := event.(type) {
	case models.TransferEvent:
		amount := formatAmount(services, asset, e.Amount)
		switch {
		case e.From == nil:
			return fmt.Sprintf("mint %s to %s", amount, e.To.Short())
		case e.To == nil:
			return fmt.Sprintf("burn %s from %s", amount, e.From.Short())
		default:
			return fmt.Sprintf("%s from %s to %s", amount, e.From.Short(), e.To.Short())
		}
	case models.ApprovalEvent:
		return fmt.Sprintf("%s allows %s to spend %s", e.Owner.Short(), e.Spender.Short(), formatAmount(services, asset, e.Amount))
	case models.VestingScheduledEvent:
		return fmt.Sprintf("%s locked %s for %s (%s)", e.Creator.Short(), formatAmount(services, asset, e.Amount),
			e.Receiver.Short(), e.Schedule)
	case models.TokenReleasedEvent:
		return fmt.Sprintf("%s released %s to %s", e.Caller.Short(), formatAmount(services, asset, e.Amount), e.Receiver.Short())
	default:
		return fmt.Sprintf("%v", event)
	}
}
