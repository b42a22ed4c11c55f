package cli

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"lowkeyllama/internal/config"
	"lowkeyllama/internal/events"
	"lowkeyllama/internal/ollama"
	"lowkeyllama/internal/supervisor"
	"lowkeyllama/pkg/types"
)

// backend bundles the Ollama client with the supervisor that may own it.
type backend struct {
	client *ollama.Client
	sup    *supervisor.Supervisor
}

// connectBackend resolves the backend URL, spawning ollama when the config
// asks us to manage it, and waits for it to answer. A backend that never
// comes up is logged, not fatal: the API still starts and reports 503.
func connectBackend(ctx context.Context, cfg config.Config, log zerolog.Logger, pub events.Publisher) (*backend, error) {
	url := cfg.BackendURL()
	b := &backend{}
	if cfg.Backend.Manage {
		b.sup = supervisor.New(supervisor.Config{
			Binary:       cfg.Backend.Binary,
			Host:         cfg.Backend.Host,
			Port:         cfg.Backend.Port,
			PortRangeEnd: cfg.Backend.PortRangeEnd,
			Env:          cfg.Backend.Env,
			StartTimeout: time.Duration(cfg.Backend.StartTimeoutSeconds) * time.Second,
		}, log.With().Str("component", "supervisor").Logger(), pub)
		u, err := b.sup.Ensure(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Error().Err(err).Msg("could not start ollama; continuing with configured address")
		} else {
			url = u
		}
	}

	b.client = ollama.NewClient(url, time.Duration(cfg.Backend.ConnectTimeoutSeconds)*time.Second)
	b.client.SetLogger(log.With().Str("component", "ollama").Logger())

	delay := time.Duration(cfg.Backend.RetryDelaySeconds) * time.Second
	if err := b.client.WaitHealthy(ctx, cfg.Backend.ConnectRetries, delay); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(err).Str("url", url).Msg("ollama not reachable")
	} else {
		log.Info().Str("url", url).Msg("connected to ollama")
	}
	return b, nil
}

// status feeds the backend section of /status.
func (b *backend) status() types.BackendStatus {
	if b.sup == nil {
		return types.BackendStatus{State: "external", URL: b.client.BaseURL()}
	}
	st := b.sup.Status()
	url := st.URL
	if url == "" {
		url = b.client.BaseURL()
	}
	return types.BackendStatus{
		State:     string(st.State),
		URL:       url,
		Managed:   st.Managed,
		PID:       st.PID,
		LastError: st.LastError,
	}
}

// close stops a child process we started; attached backends are left alone.
func (b *backend) close(log zerolog.Logger) {
	if b == nil || b.sup == nil {
		return
	}
	if err := b.sup.Stop(); err != nil {
		log.Warn().Err(err).Msg("stopping ollama")
	}
}
