package oracle

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"token-vesting-go/internal/models"
	"token-vesting-go/internal/timesource"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const windowLen = 16

var _ timesource.Oracle = (*GRPCClient)(nil)

// GRPCClient queries a remote TimeOracle service
type GRPCClient struct {
	cc     *grpc.ClientConn
	client TimeOracleClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration
}

func Dial(target string, opts DialOptions) (*GRPCClient, error) {
	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to dial oracle %s: %w", target, err)
	}
	return NewGRPCClient(cc), nil
}

func NewGRPCClient(cc *grpc.ClientConn) *GRPCClient {
	return &GRPCClient{cc: cc, client: NewTimeOracleClient(cc)}
}

func (c *GRPCClient) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *GRPCClient) TimeWindow(ctx context.Context, account models.Account) (uint64, uint64, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	reply, err := c.client.TimeWindow(ctx, wrapperspb.Bytes(account.Bytes()))
	if err != nil {
		return 0, 0, mapRPC(err)
	}
	w, err := decodeWindow(reply.GetValue())
	if err != nil {
		return 0, 0, err
	}
	return w.Start, w.End, nil
}

// Server exposes a timesource.Oracle over the TimeOracle gRPC service
type Server struct {
	UnimplementedTimeOracleServer
	Oracle timesource.Oracle
}

func (s *Server) TimeWindow(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Oracle == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing oracle")
	}
	account, err := models.AccountFromBytes(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	start, end, err := s.Oracle.TimeWindow(ctx, account)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bytes(encodeWindow(models.Window{Start: start, End: end})), nil
}

func encodeWindow(w models.Window) []byte {
	b := make([]byte, windowLen)
	binary.BigEndian.PutUint64(b[:8], w.Start)
	binary.BigEndian.PutUint64(b[8:], w.End)
	return b
}

func decodeWindow(b []byte) (models.Window, error) {
	if len(b) != windowLen {
		return models.Window{}, fmt.Errorf("%w: expected %d bytes, got %d", timesource.ErrMalformedWindow, windowLen, len(b))
	}
	return models.Window{
		Start: binary.BigEndian.Uint64(b[:8]),
		End:   binary.BigEndian.Uint64(b[8:]),
	}, nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrUnknownOracle):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func mapRPC(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	if st.Code() == codes.NotFound {
		return fmt.Errorf("%w: %s", ErrUnknownOracle, st.Message())
	}
	return err
}
