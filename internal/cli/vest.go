package cli

import (
	"errors"
	"fmt"
	"io"

	"token-vesting-go/internal/common"
	"token-vesting-go/internal/models"
	"token-vesting-go/internal/vesting"

	"github.com/spf13/cobra"
)

// NewVestCommand creates the vest command group.
func NewVestCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vest",
		Short: "Lock deposits for receivers and release them over time",
	}

	cmd.AddCommand(newVestCreateCommand(opts))
	cmd.AddCommand(newVestReleaseCommand(opts))
	cmd.AddCommand(newVestListCommand(opts))
	cmd.AddCommand(newVestSummaryCommand(opts))
	return cmd
}

type entryResult struct {
	Id        int64  `json:"id"`
	Creator   string `json:"creator"`
	Receiver  string `json:"receiver"`
	Asset     string `json:"asset"`
	Total     string `json:"total"`
	Released  string `json:"released"`
	Schedule  string `json:"schedule"`
	CreatedAt uint64 `json:"created_at"`
}

func toEntryResult(services *common.Services, e *models.VestEntry) entryResult {
	return entryResult{
		Id:        e.Id,
		Creator:   e.Creator.String(),
		Receiver:  e.Receiver.String(),
		Asset:     e.Asset.String(),
		Total:     formatAmount(services, e.Asset, e.Total),
		Released:  formatAmount(services, e.Asset, e.Released),
		Schedule:  e.Schedule.String(),
		CreatedAt: e.CreatedAt,
	}
}

func newVestCreateCommand(opts *RootOptions) *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "create <receiver> <amount>",
		Short: "Pull amount from the caller into custody for receiver",
		Long: `Pull amount from the caller into custody for receiver. The caller must first
approve the vester account for at least amount.

Schedules: instant, linear:START:END, external:ORACLE:START:END (milliseconds).`,
		Args: cobra.ExactArgs(2),
		RunE: withServices(opts, func(cmd *cobra.Command, services *common.Services, out *OutputFormatter, args []string) error {
			asset, caller, err := assetAndCaller(opts)
			if err != nil {
				return err
			}
			receiver, err := parseAccount(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid receiver", err)
			}
			amount, err := parseAmount(services, asset, args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid amount", err)
			}
			parsed, err := models.ParseSchedule(schedule)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --schedule", err)
			}

			result, err := services.Api.ProcessVest(cmd.Context(), caller, receiver, asset, amount, parsed)
			if err != nil {
				return err
			}
			if !result.Success {
				return out.Failure("vest creation failed", errors.New(result.Error))
			}

			r := toEntryResult(services, result.Entry)
			return out.Success(r, func(w io.Writer) {
				fmt.Fprintf(w, "vest #%d: %s locked for %s (%s)\n", r.Id, r.Total, r.Receiver, r.Schedule)
			})
		}),
	}

	cmd.Flags().StringVar(&schedule, "schedule", "instant", "vesting schedule")
	return cmd
}

type releaseResult struct {
	Receiver string `json:"receiver"`
	Asset    string `json:"asset"`
	Amount   string `json:"amount"`
}

func newVestReleaseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "release <receiver>",
		Short: "Pay receiver everything that has matured",
		Args:  cobra.ExactArgs(1),
		RunE: withServices(opts, func(cmd *cobra.Command, services *common.Services, out *OutputFormatter, args []string) error {
			asset, caller, err := assetAndCaller(opts)
			if err != nil {
				return err
			}
			receiver, err := parseAccount(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid receiver", err)
			}

			result, err := services.Api.ProcessRelease(cmd.Context(), caller, receiver, asset)
			if err != nil {
				return err
			}
			if !result.Success {
				return out.Failure("release failed", errors.New(result.Error))
			}

			r := releaseResult{Receiver: receiver.String(), Asset: asset.String(),
				Amount: formatAmount(services, asset, result.Amount)}
			return out.Success(r, func(w io.Writer) {
				fmt.Fprintf(w, "released %s to %s (asset %s)\n", r.Amount, r.Receiver, r.Asset)
			})
		}),
	}
}

func newVestListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list [receiver]",
		Short: "List vest entries, for one receiver or all",
		Args:  cobra.MaximumNArgs(1),
		RunE: withServices(opts, func(cmd *cobra.Command, services *common.Services, out *OutputFormatter, args []string) error {
			asset, err := opts.asset()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --asset", err)
			}
			receiver := models.ZeroAccount
			if len(args) == 1 {
				if receiver, err = parseAccount(args[0]); err != nil {
					return WrapExitError(ExitCommandError, "invalid receiver", err)
				}
			}

			entries, err := services.Api.GetVestEntries(cmd.Context(), receiver, asset)
			if err != nil {
				return out.Failure("vest listing failed", err)
			}

			results := make([]entryResult, len(entries))
			for i := range entries {
				results[i] = toEntryResult(services, &entries[i])
			}

			return out.Success(results, func(w io.Writer) {
				common.PrintHeader(w, fmt.Sprintf("VEST ENTRIES (asset %s)", asset), common.WideWidth)
				if len(results) == 0 {
					fmt.Fprintln(w, "└  No entries found")
					return
				}
				for i, r := range results {
					last := i == len(results)-1
					fmt.Fprintf(w, "%s#%d %s\n", common.BoxPrefix(last), r.Id, r.Receiver)
					fmt.Fprintf(w, "%s  released %s of %s, %s\n", common.BoxDetailPrefix(last), r.Released, r.Total, r.Schedule)
				}
			})
		}),
	}
}

type summaryResult struct {
	Receiver   string `json:"receiver"`
	Asset      string `json:"asset"`
	Entries    int    `json:"entries"`
	Total      string `json:"total"`
	Released   string `json:"released"`
	Releasable string `json:"releasable"`
	AsOf       uint64 `json:"as_of"`
}

func newVestSummaryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <receiver>",
		Short: "Show locked, released and releasable totals for a receiver",
		Args:  cobra.ExactArgs(1),
		RunE: withServices(opts, func(cmd *cobra.Command, services *common.Services, out *OutputFormatter, args []string) error {
			asset, err := opts.asset()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --asset", err)
			}
			receiver, err := parseAccount(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid receiver", err)
			}

			summary, err := services.Api.GetVestingSummary(cmd.Context(), receiver, asset)
			if err != nil {
				return out.Failure("summary failed", err)
			}

			r := summaryResult{
				Receiver:   receiver.String(),
				Asset:      asset.String(),
				Entries:    summary.Entries,
				Total:      formatAmount(services, asset, summary.Total),
				Released:   formatAmount(services, asset, summary.Released),
				Releasable: formatAmount(services, asset, summary.Releasable),
				AsOf:       summary.AsOf,
			}
			return out.Success(r, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %d entries, total %s, released %s, releasable %s\n",
					r.Receiver, r.Entries, r.Total, r.Released, r.Releasable)
			})
		}),
	}
}

type custodyResult struct {
	Asset   string `json:"asset"`
	Counter string `json:"counter"`
	Owed    string `json:"owed"`
	Held    string `json:"held"`
	Healthy bool   `json:"healthy"`
}

// NewCustodyCommand creates the custody command group.
func NewCustodyCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "custody",
		Short: "Inspect the vester's custody of deposits",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Verify custody matches unreleased entries and the vester's balance",
		Args:  cobra.NoArgs,
		RunE: withServices(opts, func(cmd *cobra.Command, services *common.Services, out *OutputFormatter, args []string) error {
			asset, err := opts.asset()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --asset", err)
			}

			report, err := services.Vester.CheckCustody(cmd.Context(), asset)
			if err != nil && !errors.Is(err, vesting.ErrInvariantViolation) {
				return out.Failure("custody check failed", err)
			}
			if report == nil {
				return out.Failure("custody check failed", err)
			}

			r := custodyResult{
				Asset:   asset.String(),
				Counter: formatAmount(services, asset, report.Counter),
				Owed:    formatAmount(services, asset, report.Owed),
				Held:    formatAmount(services, asset, report.Held),
				Healthy: err == nil,
			}
			if encErr := out.Success(r, func(w io.Writer) {
				fmt.Fprintf(w, "custody %s, owed %s, held %s\n", r.Counter, r.Owed, r.Held)
				if r.Healthy {
					fmt.Fprintln(w, "✓ custody consistent")
				}
			}); encErr != nil {
				return encErr
			}
			if err != nil {
				return WrapExitError(ExitFailure, "custody inconsistent", err)
			}
			return nil
		}),
	})
	return cmd
}
