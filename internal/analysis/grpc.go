package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/ashureev/motion-coach/internal/domain"
)

// AnalyzeMethod is the sidecar's unary analysis RPC. The request is a
// google.protobuf.Struct {prompt, frames:[{mime_type, data}]} and the reply
// a google.protobuf.StringValue.
const AnalyzeMethod = "/motioncoach.analysis.v1.Analyzer/Analyze"

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// GrpcClientConfig holds configuration for the gRPC client.
type GrpcClientConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	DialOptions      []grpc.DialOption
}

// DefaultGrpcClientConfig returns default configuration for addr.
func DefaultGrpcClientConfig(addr string) GrpcClientConfig {
	return GrpcClientConfig{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GrpcClient sends analysis requests to a sidecar service.
type GrpcClient struct {
	conn   *grpc.ClientConn
	addr   string
	logger *slog.Logger
}

// NewGrpcClient connects to the sidecar and waits until the connection is
// ready, failing fast on a bad address.
func NewGrpcClient(cfg GrpcClientConfig, logger *slog.Logger) (*GrpcClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("create analysis client for %s: %w", cfg.Address, err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("analysis sidecar at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to analysis sidecar", "address", cfg.Address)

	return &GrpcClient{conn: conn, addr: cfg.Address, logger: logger}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Analyze implements coaching.Analyzer.
func (c *GrpcClient) Analyze(ctx context.Context, frames []domain.Frame, prompt string) (string, error) {
	req, err := EncodeRequest(frames, prompt)
	if err != nil {
		return "", err
	}

	var reply wrapperspb.StringValue
	if err := c.conn.Invoke(ctx, AnalyzeMethod, req, &reply); err != nil {
		return "", fmt.Errorf("analyze rpc: %w", err)
	}
	return reply.GetValue(), nil
}

// EncodeRequest builds the Struct payload the sidecar expects.
func EncodeRequest(frames []domain.Frame, prompt string) (*structpb.Struct, error) {
	list := make([]any, 0, len(frames))
	for _, f := range frames {
		list = append(list, map[string]any{
			"mime_type": f.MIMEType,
			"data":      f.Base64(),
		})
	}
	req, err := structpb.NewStruct(map[string]any{
		"prompt": prompt,
		"frames": list,
	})
	if err != nil {
		return nil, fmt.Errorf("encode analysis request: %w", err)
	}
	return req, nil
}

// Ready reports whether the connection is usable.
func (c *GrpcClient) Ready() bool {
	s := c.conn.GetState()
	return s == connectivity.Ready || s == connectivity.Idle
}

// Close closes the gRPC connection.
func (c *GrpcClient) Close() error {
	if err := c.conn.Close(); err != nil {
		c.logger.Warn("failed to close gRPC connection", "error", err)
		return err
	}
	return nil
}
