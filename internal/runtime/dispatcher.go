package runtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
)

// cleanupOrder stops the servers before the resources they read from.
var cleanupOrder = []string{"http_server", "grpc_server", "cache", "database", "tracer"}

type ServiceCtx struct {
	deps            *dependencies
	shutdownChannel chan os.Signal
	serverCtx       context.Context
	serverStopFunc  context.CancelFunc
	serverReady     chan struct{}
}

func New(opts ...ServiceOption) *ServiceCtx {
	ctx := &ServiceCtx{
		shutdownChannel: make(chan os.Signal, 1),
	}

	for _, opt := range opts {
		opt(ctx)
	}

	return ctx
}

func (c *ServiceCtx) Run() {
	if err := c.build(); err != nil {
		log.Fatalf("failed to build service: %v", err)
	}

	if err := c.startService(); err != nil {
		log.Fatalf("failed to start service: %v", err)
	}

	c.shutdownHook()

	select {
	case <-c.serverCtx.Done():
	case <-c.shutdownChannel:
		defer close(c.shutdownChannel)
	}

	signal.Stop(c.shutdownChannel)

	c.shutdown()
}

func (c *ServiceCtx) build() error {
	c.serverCtx, c.serverStopFunc = context.WithCancel(context.Background())

	var err error

	c.deps, err = initializeDependencies(c.serverCtx)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}

	return nil
}

// startService binds every listener before serving so that a taken port
// fails startup instead of a background goroutine.
func (c *ServiceCtx) startService() error {
	httpListener, err := net.Listen("tcp", c.deps.infra.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", c.deps.infra.httpServer.Addr, err)
	}

	c.deps.infra.httpServer.Addr = httpListener.Addr().String()

	var grpcListener net.Listener

	if c.deps.infra.grpcServer != nil {
		cfg := c.deps.config.GRPCServer
		addr := net.JoinHostPort(cfg.Host, strconv.FormatUint(uint64(cfg.Port), 10))

		grpcListener, err = net.Listen("tcp", addr)
		if err != nil {
			_ = httpListener.Close()

			return fmt.Errorf("listening on %s: %w", addr, err)
		}
	}

	go func() {
		c.deps.infra.logger.Info().
			Str("address", httpListener.Addr().String()).
			Str("storage", c.deps.config.Storage.Driver).
			Msg("starting the http server")

		if err := c.deps.infra.httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.deps.infra.logger.Error().Err(err).Msg("http server stopped unexpectedly")
			c.serverStopFunc()
		}
	}()

	if grpcListener != nil {
		go c.deps.infra.healthProber.Run(c.serverCtx)

		go func() {
			c.deps.infra.logger.Info().
				Str("address", grpcListener.Addr().String()).
				Msg("starting the gRPC server")

			if err := c.deps.infra.grpcServer.Serve(grpcListener); err != nil {
				c.deps.infra.logger.Error().Err(err).Msg("gRPC server stopped unexpectedly")
				c.serverStopFunc()
			}
		}()
	}

	if c.serverReady != nil {
		close(c.serverReady)
	}

	return nil
}

func (c *ServiceCtx) shutdownHook() {
	signal.Notify(c.shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
}

func (c *ServiceCtx) shutdown() {
	c.deps.infra.logger.Info().Msg("shutting down service...")

	c.serverStopFunc()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.deps.config.HTTPServer.ShutdownTimeout)
	defer cancel()

	go func() {
		<-shutdownCtx.Done()

		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			c.deps.infra.logger.Error().Msg("graceful shutdown timed out.. forcing exit.")
			os.Exit(1)
		}
	}()

	c.cleanup(shutdownCtx)

	c.deps.infra.logger.Info().Msg("service shutdown complete")
}

func (c *ServiceCtx) WaitForServer() {
	if c.serverReady != nil {
		<-c.serverReady
	}
}

func (c *ServiceCtx) cleanup(shutdownCtx context.Context) {
	c.deps.infra.logger.Info().Msg("cleaning up resources...")

	for _, resource := range cleanupOrder {
		cleanupFn, ok := c.deps.cleanupFuncs[resource]
		if !ok {
			continue
		}

		if err := cleanupFn(shutdownCtx); err != nil {
			c.deps.infra.logger.Error().
				Err(err).
				Str("resource", resource).
				Msg("failed to shutdown the resource gracefully")
		}
	}

	c.deps.infra.logger.Info().Msg("cleanup completed")
}
