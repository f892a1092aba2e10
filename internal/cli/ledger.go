package cli

import (
	"fmt"
	"io"

	"token-vesting-go/internal/common"
	"token-vesting-go/internal/models"

	"github.com/spf13/cobra"
)

type runFunc func(cmd *cobra.Command, services *common.Services, out *OutputFormatter, args []string) error

// withServices opens the services for the duration of one command
func withServices(opts *RootOptions, fn runFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		services, err := openServices(cmd, opts)
		if err != nil {
			return err
		}
		defer services.Close()

		out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return fn(cmd, services, out, args)
	}
}

// ledgerResult is the JSON shape of a state-changing ledger operation
type ledgerResult struct {
	Operation string `json:"operation"`
	Asset     string `json:"asset"`
	Caller    string `json:"caller"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Amount    string `json:"amount"`
}

func (r ledgerResult) text(w io.Writer) {
	switch {
	case r.From != "" && r.To != "":
		fmt.Fprintf(w, "%s %s %s -> %s (asset %s)\n", r.Operation, r.Amount, r.From, r.To, r.Asset)
	case r.To != "":
		fmt.Fprintf(w, "%s %s -> %s (asset %s)\n", r.Operation, r.Amount, r.To, r.Asset)
	default:
		fmt.Fprintf(w, "%s %s from %s (asset %s)\n", r.Operation, r.Amount, r.From, r.Asset)
	}
}

// NewMintCommand creates the mint command.
func NewMintCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mint <to> <amount>",
		Short: "Create new units for an account",
		Args:  cobra.ExactArgs(2),
		RunE: withServices(opts, func(cmd *cobra.Command, services *common.Services, out *OutputFormatter, args []string) error {
			asset, caller, err := assetAndCaller(opts)
			if err != nil {
				return err
			}
			to, err := parseAccount(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid recipient", err)
			}
			amount, err := parseAmount(services, asset, args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid amount", err)
			}

			if local, ok := services.Local[asset]; ok {
				err = local.Mint(cmd.Context(), caller, to, amount)
			} else if foreign, ok := services.Foreign[asset]; ok {
				err = foreign.Mint(cmd.Context(), to, amount)
			} else {
				return NewExitError(ExitCommandError, fmt.Sprintf("asset %s is not deployed", asset))
			}
			if err != nil {
				return out.Failure("mint failed", err)
			}

			r := ledgerResult{Operation: "minted", Asset: asset.String(), Caller: caller.String(),
				To: to.String(), Amount: formatAmount(services, asset, amount)}
			return out.Success(r, r.text)
		}),
	}
}

// NewBurnCommand creates the burn command.
func NewBurnCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "burn <from> <amount>",
		Short: "Destroy units held by an account",
		Args:  cobra.ExactArgs(2),
		RunE: withServices(opts, func(cmd *cobra.Command, services *common.Services, out *OutputFormatter, args []string) error {
			asset, caller, err := assetAndCaller(opts)
			if err != nil {
				return err
			}
			ledger, err := services.LocalLedger(asset)
			if err != nil {
				return WrapExitError(ExitCommandError, "burn unavailable", err)
			}
			from, err := parseAccount(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid account", err)
			}
			amount, err := parseAmount(services, asset, args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid amount", err)
			}

			if err := ledger.Burn(cmd.Context(), caller, from, amount); err != nil {
				return out.Failure("burn failed", err)
			}

			r := ledgerResult{Operation: "burned", Asset: asset.String(), Caller: caller.String(),
				From: from.String(), Amount: formatAmount(services, asset, amount)}
			return out.Success(r, r.text)
		}),
	}
}

// NewTransferCommand creates the transfer command.
func NewTransferCommand(opts *RootOptions) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "transfer <to> <amount>",
		Short: "Move units from the caller to another account",
		Args:  cobra.ExactArgs(2),
		RunE: withServices(opts, func(cmd *cobra.Command, services *common.Services, out *OutputFormatter, args []string) error {
			asset, caller, err := assetAndCaller(opts)
			if err != nil {
				return err
			}
			ledger, err := services.Ledger(asset)
			if err != nil {
				return WrapExitError(ExitCommandError, "unknown asset", err)
			}
			to, err := parseAccount(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid recipient", err)
			}
			amount, err := parseAmount(services, asset, args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid amount", err)
			}

			if err := ledger.Transfer(cmd.Context(), caller, to, amount, []byte(data)); err != nil {
				return out.Failure("transfer failed", err)
			}

			r := ledgerResult{Operation: "transferred", Asset: asset.String(), Caller: caller.String(),
				From: caller.String(), To: to.String(), Amount: formatAmount(services, asset, amount)}
			return out.Success(r, r.text)
		}),
	}

	cmd.Flags().StringVar(&data, "data", "", "opaque payload passed along with the transfer")
	return cmd
}

// NewTransferFromCommand creates the transfer-from command.
func NewTransferFromCommand(opts *RootOptions) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "transfer-from <from> <to> <amount>",
		Short: "Move units on behalf of an owner, spending the caller's allowance",
		Args:  cobra.ExactArgs(3),
		RunE: withServices(opts, func(cmd *cobra.Command, services *common.Services, out *OutputFormatter, args []string) error {
			asset, caller, err := assetAndCaller(opts)
			if err != nil {
				return err
			}
			ledger, err := services.Ledger(asset)
			if err != nil {
				return WrapExitError(ExitCommandError, "unknown asset", err)
			}
			from, err := parseAccount(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid owner", err)
			}
			to, err := parseAccount(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid recipient", err)
			}
			amount, err := parseAmount(services, asset, args[2])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid amount", err)
			}

			if err := ledger.TransferFrom(cmd.Context(), caller, from, to, amount, []byte(data)); err != nil {
				return out.Failure("transfer-from failed", err)
			}

			r := ledgerResult{Operation: "transferred", Asset: asset.String(), Caller: caller.String(),
				From: from.String(), To: to.String(), Amount: formatAmount(services, asset, amount)}
			return out.Success(r, r.text)
		}),
	}

	cmd.Flags().StringVar(&data, "data", "", "opaque payload passed along with the transfer")
	return cmd
}

// NewApproveCommand creates the approve command.
func NewApproveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <spender> <amount|max>",
		Short: "Set the allowance a spender may move from the caller",
		Args:  cobra.ExactArgs(2),
		RunE: withServices(opts, func(cmd *cobra.Command, services *common.Services, out *OutputFormatter, args []string) error {
			asset, caller, err := assetAndCaller(opts)
			if err != nil {
				return err
			}
			ledger, err := services.Ledger(asset)
			if err != nil {
				return WrapExitError(ExitCommandError, "unknown asset", err)
			}
			spender, err := parseAccount(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid spender", err)
			}
			amount, err := parseAmount(services, asset, args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid amount", err)
			}

			if err := ledger.Approve(cmd.Context(), caller, spender, amount); err != nil {
				return out.Failure("approve failed", err)
			}

			r := ledgerResult{Operation: "approved", Asset: asset.String(), Caller: caller.String(),
				From: caller.String(), To: spender.String(), Amount: formatAmount(services, asset, amount)}
			return out.Success(r, r.text)
		}),
	}
}

// NewAllowanceDeltaCommand creates increase-allowance or decrease-allowance.
func NewAllowanceDeltaCommand(opts *RootOptions, increase bool) *cobra.Command {
	use, short, op := "decrease-allowance", "Lower a spender's allowance", "allowance decreased"
	if increase {
		use, short, op = "increase-allowance", "Raise a spender's allowance", "allowance increased"
	}

	return &cobra.Command{
		Use:   use + " <spender> <delta>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: withServices(opts, func(cmd *cobra.Command, services *common.Services, out *OutputFormatter, args []string) error {
			asset, caller, err := assetAndCaller(opts)
			if err != nil {
				return err
			}
			ledger, err := services.LocalLedger(asset)
			if err != nil {
				return WrapExitError(ExitCommandError, use+" unavailable", err)
			}
			spender, err := parseAccount(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid spender", err)
			}
			delta, err := parseAmount(services, asset, args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid amount", err)
			}

			if increase {
				err = ledger.IncreaseAllowance(cmd.Context(), caller, spender, delta)
			} else {
				err = ledger.DecreaseAllowance(cmd.Context(), caller, spender, delta)
			}
			if err != nil {
				return out.Failure(use+" failed", err)
			}

			r := ledgerResult{Operation: op, Asset: asset.String(), Caller: caller.String(),
				From: caller.String(), To: spender.String(), Amount: formatAmount(services, asset, delta)}
			return out.Success(r, r.text)
		}),
	}
}

func assetAndCaller(opts *RootOptions) (models.AssetRef, models.Account, error) {
	asset, err := opts.asset()
	if err != nil {
		return models.AssetRef{}, models.ZeroAccount, WrapExitError(ExitCommandError, "invalid --asset", err)
	}
	caller, err := opts.caller()
	if err != nil {
		return models.AssetRef{}, models.ZeroAccount, err
	}
	return asset, caller, nil
}
