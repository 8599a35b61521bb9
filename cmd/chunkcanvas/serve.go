package main

import (
	"context"
	"net"

	"github.com/spf13/cobra"

	"github.com/hupe1980/chunkcanvas/internal/observability"
	"github.com/hupe1980/chunkcanvas/internal/server"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index REST API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func runServe(ctx context.Context, flags *globalFlags, addr string) error {
	a, err := loadApp(ctx, flags, true)
	if err != nil {
		return err
	}
	cfg := a.cfg
	if addr != "" {
		cfg.Server.Addr = addr
	}
	logger := a.logger.Logger

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}

	opts := []server.Option{server.WithLogger(logger)}
	if a.metrics != nil {
		opts = append(opts, server.WithMetrics(a.metrics))
	}
	srv := server.New(a.store, server.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		RateLimit:    cfg.Server.RateLimit,
		RateBurst:    cfg.Server.RateBurst,
		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxBodyBytes: int64(cfg.Server.MaxBodyMB) << 20,
		MetricsPath:  cfg.Metrics.Path,
		Version:      version,
	}, opts...)
	if a.mirror != nil {
		srv.Health().RegisterCheck("mirror", server.MirrorHealthChecker(a.mirror))
	}

	shutdown := server.NewShutdownHandler(&server.ShutdownConfig{
		Timeout: cfg.Server.ShutdownTimeout,
		Logger:  logger,
	})
	shutdown.RegisterHook("http", server.PriorityHTTP, srv.Shutdown)
	shutdown.RegisterHook("tracing", server.PriorityTracing, tp.Shutdown)
	shutdown.Start()

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		shutdown.Shutdown()
		shutdown.Wait()
		return err
	}

	serveErr := srv.Serve(ln)
	if serveErr != nil {
		logger.Error("server stopped", "error", serveErr)
		shutdown.Shutdown()
	}
	shutdown.Wait()
	return serveErr
}
