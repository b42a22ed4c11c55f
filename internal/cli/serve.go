package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lowkeyllama/internal/config"
	"lowkeyllama/internal/events"
	"lowkeyllama/internal/generate"
	"lowkeyllama/internal/httpapi"
)

type serveFlags struct {
	host       string
	port       int
	allowedIPs string
	requestLog string
}

func newServeCmd(opts *Options) *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the HTTP API (default command)",
		Example: "  lowkeyllama serve --port 8000\n  lowkeyllama serve --allowed-ips 127.0.0.1,10.0.0.0/8",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts, f)
		},
	}
	cmd.Flags().StringVar(&f.host, "host", "", "Listen host (overrides api.host)")
	cmd.Flags().IntVar(&f.port, "port", 0, "Listen port (overrides api.port)")
	cmd.Flags().StringVar(&f.allowedIPs, "allowed-ips", "", "Comma-separated addresses or CIDR ranges allowed to call the API")
	cmd.Flags().StringVar(&f.requestLog, "request-log", "info", "Default per-request log level: off|error|info|debug")
	return cmd
}

func runServe(cmd *cobra.Command, opts *Options, f serveFlags) error {
	cfg, log, err := setup(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if f.host != "" {
		cfg.API.Host = f.host
	}
	if f.port != 0 {
		cfg.API.Port = f.port
	}
	if ips := splitCSV(f.allowedIPs); len(ips) > 0 {
		cfg.Privacy.AllowedIPs = ips
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pub := events.Log{Logger: log}
	be, err := connectBackend(ctx, cfg, log, pub)
	if err != nil {
		return err
	}
	defer be.close(log)

	svcCfg := generate.ConfigFrom(cfg)
	svcCfg.BackendStatus = be.status
	svc := generate.NewService(be.client, svcCfg, log.With().Str("component", "generate").Logger(), pub)

	if err := configureHTTP(ctx, cfg, f); err != nil {
		return err
	}
	httpapi.SetLogger(log.With().Str("component", "http").Logger())

	srv := &http.Server{
		Addr:              cfg.APIAddr(),
		Handler:           httpapi.NewMux(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("model", cfg.DefaultModel).Str("mode", cfg.Backend.Mode).Msg("lowkeyllama listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

// configureHTTP pushes the config into the httpapi package-level settings.
func configureHTTP(ctx context.Context, cfg config.Config, f serveFlags) error {
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(cfg.API.MaxBodyBytes)
	c := cfg.API.CORS
	httpapi.SetCORSOptions(c.Enabled, c.AllowedOrigins, c.AllowedMethods, c.AllowedHeaders)
	if f.requestLog != "" {
		httpapi.SetRequestLogLevel(f.requestLog)
	}
	return httpapi.SetAllowedIPs(cfg.Privacy.AllowedIPs)
}

// splitCSV splits a comma-separated list, trimming blanks and dropping empties.
func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
