package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"token-vesting-go/internal/common"
	"token-vesting-go/internal/oracle"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// NewOracleCommand creates the oracle command group.
func NewOracleCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oracle",
		Short: "Query or serve time oracles",
	}

	cmd.AddCommand(newOracleWindowCommand(opts))
	cmd.AddCommand(newOracleServeCommand(opts))
	return cmd
}

type windowResult struct {
	Oracle string `json:"oracle"`
	Start  uint64 `json:"start_time"`
	End    uint64 `json:"end_time"`
}

func newOracleWindowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "window <oracle>",
		Short: "Ask a deployed oracle for its current vesting window",
		Args:  cobra.ExactArgs(1),
		RunE: withServices(opts, func(cmd *cobra.Command, services *common.Services, out *OutputFormatter, args []string) error {
			account, err := parseAccount(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid oracle account", err)
			}

			start, end, err := services.Oracles.TimeWindow(cmd.Context(), account)
			if err != nil {
				return out.Failure("oracle query failed", err)
			}

			r := windowResult{Oracle: account.String(), Start: start, End: end}
			return out.Success(r, func(w io.Writer) {
				fmt.Fprintf(w, "%s: [%d, %d]\n", r.Oracle, r.Start, r.End)
			})
		}),
	}
}

func newOracleServeCommand(opts *RootOptions) *cobra.Command {
	var grpcAddr, httpAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the deployment's oracles over gRPC and/or HTTP",
		Long: `Serve every oracle of the deployment. gRPC exposes the TimeOracle service;
HTTP exposes GET /v1/oracles/{account}/window.`,
		Args: cobra.NoArgs,
		RunE: withServices(opts, func(cmd *cobra.Command, services *common.Services, out *OutputFormatter, args []string) error {
			if grpcAddr == "" && httpAddr == "" {
				return NewExitError(ExitCommandError, "at least one of --grpc or --http is required")
			}

			parentCtx := cmd.Context()
			if parentCtx == nil {
				parentCtx = context.Background()
			}
			ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serveOracles(ctx, services.Oracles, grpcAddr, httpAddr, cmd.OutOrStdout())
		}),
	}

	cmd.Flags().StringVar(&grpcAddr, "grpc", "", "gRPC listen address, e.g. :7070")
	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP listen address, e.g. :7071")
	return cmd
}

// serveOracles blocks until ctx is done or a listener fails
func serveOracles(ctx context.Context, registry *oracle.Registry, grpcAddr, httpAddr string, w io.Writer) error {
	errCh := make(chan error, 2)

	if grpcAddr != "" {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to listen for gRPC", err)
		}
		s := grpc.NewServer()
		oracle.RegisterTimeOracleServer(s, &oracle.Server{Oracle: registry})
		defer s.GracefulStop()

		fmt.Fprintf(w, "oracle gRPC listening on %s\n", lis.Addr())
		go func() {
			if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	if httpAddr != "" {
		lis, err := net.Listen("tcp", httpAddr)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to listen for HTTP", err)
		}
		app := oracle.NewHTTPApp(registry)
		defer func() {
			if err := app.Shutdown(); err != nil {
				zap.L().Warn("Failed to shut down oracle HTTP server", zap.Error(err))
			}
		}()

		fmt.Fprintf(w, "oracle HTTP listening on %s\n", lis.Addr())
		go func() {
			if err := app.Listener(lis); err != nil {
				errCh <- fmt.Errorf("http: %w", err)
			}
		}()
	}

	zap.L().Info("Serving oracles", zap.Int("oracles", registry.Len()))

	select {
	case <-ctx.Done():
		zap.L().Info("Shutdown signal received, stopping oracle servers")
		return nil
	case err := <-errCh:
		return WrapExitError(ExitFailure, "oracle server failed", err)
	}
}
