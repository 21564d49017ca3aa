package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	"github.com/petal-labs/toolflow"
	"github.com/petal-labs/toolflow/config"
	"github.com/petal-labs/toolflow/hydrate"
	tfotel "github.com/petal-labs/toolflow/otel"
	"github.com/petal-labs/toolflow/server"
)

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve <config>",
		Short: "Start the tool-calling HTTP server",
		Args:  cobra.ExactArgs(1),
		RunE:  runServe,
	}

	cmd.Flags().IntP("port", "p", 8080, "Listen port")
	cmd.Flags().String("host", "0.0.0.0", "Listen host")
	cmd.Flags().String("cors-origin", "*", "Allowed CORS origin")
	cmd.Flags().Int64("max-body", 1<<20, "Max request body size in bytes")
	cmd.Flags().Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", 60*time.Second, "HTTP write timeout")
	cmd.Flags().String("otel-endpoint", "", "OTLP/HTTP collector endpoint (empty disables export)")
	cmd.Flags().Bool("otel-insecure", false, "Disable TLS to the OTLP collector")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}
	if diags := config.Validate(cfg); len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", d)
		}
		return exitError(exitValidation, "config validation failed with %d error(s)", len(diags))
	}

	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	corsOrigin, _ := cmd.Flags().GetString("cors-origin")
	maxBody, _ := cmd.Flags().GetInt64("max-body")
	readTimeout, _ := cmd.Flags().GetDuration("read-timeout")
	writeTimeout, _ := cmd.Flags().GetDuration("write-timeout")
	otelEndpoint, _ := cmd.Flags().GetString("otel-endpoint")
	otelInsecure, _ := cmd.Flags().GetBool("otel-insecure")

	logger := slog.Default()

	// --- Observability ---
	provider, err := tfotel.Setup(cmd.Context(), tfotel.ProviderConfig{
		ServiceName: cfg.Server.Name,
		Endpoint:    otelEndpoint,
		Insecure:    otelInsecure,
	})
	if err != nil {
		return exitError(exitRuntime, "initializing telemetry: %v", err)
	}
	defer func() {
		_ = provider.Shutdown(context.Background())
	}()

	tracing := tfotel.NewTracingHandler(otelapi.GetTracerProvider().Tracer("toolflow"))
	metrics, err := tfotel.NewMetricsHandler(otelapi.GetMeterProvider().Meter("toolflow"))
	if err != nil {
		return exitError(exitRuntime, "initializing metrics: %v", err)
	}

	// --- Runtime ---
	rt, err := hydrate.Build(cfg, hydrate.Options{
		Logger: logger,
		Events: toolflow.MultiEventHandler{tracing, metrics},
	})
	if err != nil {
		return exitError(exitRuntime, "building runtime: %v", err)
	}
	defer func() {
		_ = rt.Close()
	}()

	// --- Scheduler ---
	scheduler, err := server.NewScheduler(rt.Dispatcher, cfg.Schedules, logger)
	if err != nil {
		return exitError(exitValidation, "building scheduler: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// --- HTTP server ---
	apiServer := server.NewServer(server.Config{
		Dispatcher: rt.Dispatcher,
		CORSOrigin: corsOrigin,
		MaxBody:    maxBody,
		Logger:     logger,
	})

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      apiServer.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s listening on %s\n", cfg.Server.Name, addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return exitError(exitRuntime, "shutdown error: %v", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(exitRuntime, "server error: %v", err)
		}
		return nil
	}
}

func contextWithTimeout(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), timeout)
}
