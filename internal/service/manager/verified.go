package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/shamu4life/helper-scripts/internal/domain/release"
	"github.com/shamu4life/helper-scripts/internal/logger"
)

const (
	// DefaultSettle bounds how long Start waits for the service to come up.
	DefaultSettle = 5 * time.Second

	defaultPollInterval = 250 * time.Millisecond
)

var (
	errNotRunning = errors.New("service did not reach running state")
	errExited     = errors.New("service stopped within the settle window")
	errNotServing = errors.New("service health check is not serving")
)

// Verified decorates a Manager so that Start only succeeds once the
// service is observably up.
type Verified struct {
	Manager

	settle        time.Duration
	interval      time.Duration
	healthAddress string
	healthService string
	healthTimeout time.Duration
}

// VerifyOption configures a Verified manager.
type VerifyOption func(*Verified)

// WithSettle sets the window the service must come up and stay running in.
func WithSettle(settle time.Duration) VerifyOption {
	return func(v *Verified) {
		if settle > 0 {
			v.settle = settle
		}
	}
}

// WithPollInterval sets how often the status is polled.
func WithPollInterval(interval time.Duration) VerifyOption {
	return func(v *Verified) {
		if interval > 0 {
			v.interval = interval
		}
	}
}

// WithHealthCheck enables a grpc.health.v1 check against address after the
// service reports running. Each RPC is bounded by timeout.
func WithHealthCheck(address, service string, timeout time.Duration) VerifyOption {
	return func(v *Verified) {
		v.healthAddress = address
		v.healthService = service
		v.healthTimeout = timeout
	}
}

// NewVerified wraps inner.
func NewVerified(inner Manager, opts ...VerifyOption) *Verified {
	v := &Verified{
		Manager:  inner,
		settle:   DefaultSettle,
		interval: defaultPollInterval,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Start starts the service and succeeds only if it reports running (and,
// when configured, answers SERVING) and keeps running until the settle
// window is over. A build that exits shortly after launch is a failure.
func (v *Verified) Start(ctx context.Context, service string) error {
	if err := v.Manager.Start(ctx, service); err != nil {
		return err
	}

	settleCtx, cancel := context.WithTimeout(ctx, v.settle)
	defer cancel()

	if err := v.waitRunning(settleCtx, service); err != nil {
		return err
	}

	if v.healthAddress != "" {
		if err := v.waitServing(settleCtx); err != nil {
			return err
		}
	}

	return v.watchRunning(ctx, settleCtx, service)
}

// watchRunning keeps polling the status until settleCtx expires. Any
// reading other than running fails.
func (v *Verified) watchRunning(ctx, settleCtx context.Context, service string) error {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-settleCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}

			logger.DebugKV(ctx, "Service stayed up", "service", service, "settle", v.settle)

			return nil
		case <-ticker.C:
		}

		status, err := v.Status(settleCtx, service)

		switch {
		case settleCtx.Err() != nil:
			// The deadline hit mid-call; the next loop decides.
		case err != nil:
			return fmt.Errorf("%w: %w", errExited, err)
		case status != release.StatusRunning:
			return fmt.Errorf("%w: status %s", errExited, status)
		}
	}
}

func (v *Verified) waitRunning(ctx context.Context, service string) error {
	var last error

	err := v.poll(ctx, func() bool {
		status, err := v.Status(ctx, service)
		if err != nil {
			last = err
			return false
		}

		return status == release.StatusRunning
	})
	if err != nil {
		if last != nil {
			return fmt.Errorf("%w: %w", errNotRunning, last)
		}

		return fmt.Errorf("%w within %s", errNotRunning, v.settle)
	}

	logger.DebugKV(ctx, "Service is running", "service", service)

	return nil
}

func (v *Verified) waitServing(ctx context.Context) error {
	conn, err := grpc.NewClient(v.healthAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial health endpoint: %w", err)
	}

	defer func() {
		_ = conn.Close()
	}()

	client := healthpb.NewHealthClient(conn)

	var last error

	err = v.poll(ctx, func() bool {
		callCtx, cancel := v.callContext(ctx)
		defer cancel()

		resp, callErr := client.Check(callCtx, &healthpb.HealthCheckRequest{Service: v.healthService})
		if callErr != nil {
			last = callErr
			return false
		}

		last = fmt.Errorf("status %s", resp.GetStatus())

		return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errNotServing, v.healthAddress, last)
	}

	logger.DebugKV(ctx, "Health check passed", "address", v.healthAddress)

	return nil
}

func (v *Verified) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if v.healthTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, v.healthTimeout)
}

// poll calls done until it reports true or ctx expires.
func (v *Verified) poll(ctx context.Context, done func() bool) error {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		if done() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
