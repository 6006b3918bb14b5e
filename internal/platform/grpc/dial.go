// Package grpc holds the gRPC plumbing shared by the scene store server and
// its clients: health-gated dialing and server construction.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	healthCheckTimeout = time.Second
	healthMinBackoff   = 100 * time.Millisecond
	healthMaxBackoff   = time.Second
)

// DialConfig describes one health-gated client connection.
type DialConfig struct {
	Addr string
	// Service is the health service name that must report SERVING.
	Service string
	// Timeout bounds connecting and the health wait together.
	Timeout         time.Duration
	MaxMessageBytes int
	Logf            func(string, ...any)
	// Options are appended to the defaults; tests pass a bufconn dialer here.
	Options []gogrpc.DialOption
}

// DialStage names the step of Dial that failed.
type DialStage string

const (
	DialStageConnect DialStage = "connect"
	DialStageHealth  DialStage = "health"
)

// DialError wraps a Dial failure with its stage.
type DialError struct {
	Addr  string
	Stage DialStage
	Err   error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("gRPC %s %s: %v", e.Stage, e.Addr, e.Err)
}

func (e *DialError) Unwrap() error {
	return e.Err
}

// Dial opens a traced client connection to cfg.Addr and returns once the
// health service reports cfg.Service as SERVING. The connection is closed
// when the wait fails.
func Dial(ctx context.Context, cfg DialConfig) (*gogrpc.ClientConn, error) {
	if cfg.Addr == "" {
		return nil, &DialError{Stage: DialStageConnect, Err: errors.New("address is required")}
	}
	opts := []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
	if cfg.MaxMessageBytes > 0 {
		opts = append(opts, gogrpc.WithDefaultCallOptions(
			gogrpc.MaxCallRecvMsgSize(cfg.MaxMessageBytes),
			gogrpc.MaxCallSendMsgSize(cfg.MaxMessageBytes),
		))
	}
	opts = append(opts, cfg.Options...)

	conn, err := gogrpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return nil, &DialError{Addr: cfg.Addr, Stage: DialStageConnect, Err: err}
	}

	waitCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	if err := waitServing(waitCtx, conn, cfg.Service, cfg.Logf); err != nil {
		_ = conn.Close()
		return nil, &DialError{Addr: cfg.Addr, Stage: DialStageHealth, Err: err}
	}
	return conn, nil
}

func waitServing(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	client := grpc_health_v1.NewHealthClient(conn)
	backoff := healthMinBackoff
	for {
		callCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		resp, err := client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		switch {
		case err == nil && resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING:
			logf("health %q is SERVING", service)
			return nil
		case err != nil:
			logf("waiting for health %q: %v", service, err)
		default:
			logf("waiting for health %q: %s", service, resp.GetStatus())
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for health %q: %w", service, ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, healthMaxBackoff)
	}
}
