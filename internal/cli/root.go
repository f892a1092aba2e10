package cli

import (
	"fmt"
	"strings"

	"token-vesting-go/internal/common"
	"token-vesting-go/internal/config"
	"token-vesting-go/internal/models"
	"token-vesting-go/internal/timesource"
	"token-vesting-go/internal/token"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DB         string
	Deployment string
	Caller     string
	Asset      string
	Format     string
	// Now pins the clock (milliseconds). Zero means the system clock.
	Now uint64
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the vester CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "vester",
		Short: "Token ledger and vesting engine",
		Long: `Operate fungible token ledgers and the vesting engine that locks deposits
for receivers and releases them on an instant, linear or oracle-driven schedule.

Accounts are 32-byte hex strings; "@label" is shorthand for a label padded with zeros.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "sqlite database path (overrides DATABASE_PATH)")
	cmd.PersistentFlags().StringVar(&opts.Deployment, "deployment", "", "deployment file (overrides DEPLOYMENT_FILE)")
	cmd.PersistentFlags().StringVar(&opts.Caller, "caller", "", "account issuing the operation")
	cmd.PersistentFlags().StringVar(&opts.Asset, "asset", "native", "asset: native or a ledger account")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().Uint64Var(&opts.Now, "now", 0, "pin the current time in milliseconds")

	cmd.AddCommand(NewMintCommand(opts))
	cmd.AddCommand(NewBurnCommand(opts))
	cmd.AddCommand(NewTransferCommand(opts))
	cmd.AddCommand(NewTransferFromCommand(opts))
	cmd.AddCommand(NewApproveCommand(opts))
	cmd.AddCommand(NewAllowanceDeltaCommand(opts, true))
	cmd.AddCommand(NewAllowanceDeltaCommand(opts, false))
	cmd.AddCommand(NewBalanceCommand(opts))
	cmd.AddCommand(NewAllowanceCommand(opts))
	cmd.AddCommand(NewBalancesCommand(opts))
	cmd.AddCommand(NewSupplyCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewVestCommand(opts))
	cmd.AddCommand(NewCustodyCommand(opts))
	cmd.AddCommand(NewOracleCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// openServices loads configuration and the deployment, then wires every service
func openServices(cmd *cobra.Command, opts *RootOptions) (*common.Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.DB != "" {
		cfg.Database.Path = opts.DB
	}
	deploymentFile := cfg.DeploymentFile
	if opts.Deployment != "" {
		deploymentFile = opts.Deployment
	}

	deployment, err := config.LoadDeployment(deploymentFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load deployment", err)
	}

	var clock timesource.Clock
	if opts.Now != 0 {
		clock = timesource.NewManualClock(opts.Now)
	}

	services, err := common.InitializeServices(cmd.Context(), cfg, deployment, clock)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to initialize services", err)
	}
	return services, nil
}

func (o *RootOptions) asset() (models.AssetRef, error) {
	return models.ParseAssetRef(o.Asset)
}

func (o *RootOptions) caller() (models.Account, error) {
	if o.Caller == "" {
		return models.ZeroAccount, NewExitError(ExitCommandError, "--caller is required")
	}
	caller, err := parseAccount(o.Caller)
	if err != nil {
		return models.ZeroAccount, WrapExitError(ExitCommandError, "invalid --caller", err)
	}
	return caller, nil
}

// parseAccount accepts hex or "@label"
func parseAccount(s string) (models.Account, error) {
	if label, ok := strings.CutPrefix(s, "@"); ok {
		if label == "" || len(label) > models.AccountLen {
			return models.ZeroAccount, fmt.Errorf("invalid account label %q", s)
		}
		return models.AccountFromLabel(label), nil
	}
	return models.ParseAccount(s)
}

// parseAmount reads a display amount in the asset's decimals; "max" is the unlimited allowance
func parseAmount(services *common.Services, asset models.AssetRef, s string) (*uint256.Int, error) {
	if strings.EqualFold(s, "max") {
		return new(uint256.Int).Set(token.Unlimited), nil
	}
	return common.ParseUnits(s, services.Decimals(asset))
}

func formatAmount(services *common.Services, asset models.AssetRef, v *uint256.Int) string {
	if v != nil && v.Eq(token.Unlimited) {
		return "max"
	}
	return common.FormatAmount(v, services.Decimals(asset))
}
