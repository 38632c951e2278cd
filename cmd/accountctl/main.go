// Command accountctl operates the account service: schema migration, dev
// seeding, the account flows and the metrics endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/accounts"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/bootstrap"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/logger"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/metrics"
)

// services is what the subcommands run against.
type services struct {
	auth     *auth.Service
	accounts *accounts.Service

	migrate     func(ctx context.Context) error
	seed        func(ctx context.Context) (int, error)
	metrics     http.Handler
	metricsAddr string
	close       func()
}

// builder wires services; tests inject in-memory ones.
type builder func(ctx context.Context) (*services, error)

func buildFromBootstrap(lg zerolog.Logger) builder {
	return func(ctx context.Context) (*services, error) {
		deps := bootstrap.DefaultDeps()
		deps.Logger = lg
		app, err := bootstrap.NewWithDeps(ctx, deps)
		if err != nil {
			return nil, err
		}
		return &services{
			auth:        app.Auth,
			accounts:    app.Accounts,
			migrate:     app.Migrate,
			seed:        app.Seed,
			metrics:     metrics.Handler(app.Metrics),
			metricsAddr: app.Config.MetricsAddr,
			close:       app.Close,
		}, nil
	}
}

// httpServer defines the minimal surface area serve-metrics needs.
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
	Close() error
	Addr() string
}

// realServer adapts *http.Server to the httpServer interface.
type realServer struct{ *http.Server }

func (r realServer) Addr() string { return r.Server.Addr }

// Run executes one subcommand and returns the process exit code.
func Run(ctx context.Context, args []string, build builder, stdout, stderr io.Writer, sigCh <-chan os.Signal) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	cmd, ok := commandTable[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}

	run, err := cmd.parse(args[1:], stderr)
	if err != nil {
		return 2
	}

	svc, err := build(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "bootstrap failed: %v\n", err)
		return 1
	}
	defer svc.close()

	env := &cmdEnv{svc: svc, out: stdout, errOut: stderr, sigCh: sigCh}
	if err := run(ctx, env); err != nil {
		printError(stderr, err)
		return 1
	}
	return 0
}

func main() {
	logger.InitWithWriter(os.Stderr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	code := Run(context.Background(), os.Args[1:], buildFromBootstrap(logger.Logger), os.Stdout, os.Stderr, sigCh)
	os.Exit(code)
}

// serveMetrics blocks until a shutdown signal or a server crash.
func serveMetrics(srv httpServer, sigCh <-chan os.Signal, stderr io.Writer) error {
	errCh := make(chan error, 1)
	fmt.Fprintf(stderr, "serving metrics on %s\n", srv.Addr())
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-sigCh:
	case err := <-errCh:
		return fmt.Errorf("metrics server crashed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
