// Package generate is the request facade: it validates a prompt, checks the
// backend, drives one streamed generation through the stream accumulator and
// maps every failure to a typed error carrying an HTTP status.
package generate

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"lowkeyllama/internal/config"
	"lowkeyllama/internal/events"
	"lowkeyllama/internal/ollama"
	"lowkeyllama/internal/stream"
	"lowkeyllama/pkg/types"
)

// Backend is the subset of the Ollama client the facade needs.
type Backend interface {
	Health(ctx context.Context) error
	ListModels(ctx context.Context) ([]ollama.Model, error)
	Generate(ctx context.Context, req ollama.GenerateRequest) (io.ReadCloser, error)
	Chat(ctx context.Context, req ollama.ChatRequest) (io.ReadCloser, error)
	Embeddings(ctx context.Context, model, prompt string) ([]float64, error)
}

// Mode values select the backend endpoint.
const (
	ModeGenerate = "generate"
	ModeChat     = "chat"
)

// Config carries everything the facade needs; nothing is read from globals.
type Config struct {
	DefaultModel   string
	Profiles       config.Profiles
	Mode           string
	RequestTimeout time.Duration
	SkipModelCheck bool
	StrictFallback bool
	// BackendStatus, if set, feeds the backend section of Status.
	BackendStatus func() types.BackendStatus
}

// ConfigFrom builds a facade Config from the service configuration.
func ConfigFrom(c config.Config) Config {
	return Config{
		DefaultModel:   c.DefaultModel,
		Profiles:       c.Models,
		Mode:           c.Backend.Mode,
		RequestTimeout: c.RequestTimeout(),
		SkipModelCheck: c.API.SkipModelCheck,
		StrictFallback: c.Stream.StrictFallback,
	}
}

type counters struct {
	requests      atomic.Uint64
	succeeded     atomic.Uint64
	failed        atomic.Uint64
	fallback      atomic.Uint64
	incomplete    atomic.Uint64
	parseFailures atomic.Uint64
}

// Service answers generation requests. It is safe for concurrent use; each
// request owns its own accumulator.
type Service struct {
	backend Backend
	cfg     Config
	log     zerolog.Logger
	pub     events.Publisher
	started time.Time
	stats   counters
}

// NewService wires a facade around backend.
func NewService(backend Backend, cfg Config, log zerolog.Logger, pub events.Publisher) *Service {
	if cfg.Mode == "" {
		cfg.Mode = ModeGenerate
	}
	return &Service{backend: backend, cfg: cfg, log: log, pub: events.OrNoop(pub), started: time.Now()}
}

// DefaultModel returns the model used when a request names none.
func (s *Service) DefaultModel() string { return s.cfg.DefaultModel }

func (s *Service) modelOrDefault(m string) string {
	if m = strings.TrimSpace(m); m != "" {
		return m
	}
	return s.cfg.DefaultModel
}

// Health reports whether the backend answers.
func (s *Service) Health(ctx context.Context) error {
	if err := s.backend.Health(ctx); err != nil {
		return BackendUnavailableError{Err: err}
	}
	return nil
}

// ListModels returns the names of models available on the backend.
func (s *Service) ListModels(ctx context.Context) ([]string, error) {
	models, err := s.backend.ListModels(ctx)
	if err != nil {
		return nil, BackendUnavailableError{Err: err}
	}
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Embeddings returns the embedding of req.Prompt.
func (s *Service) Embeddings(ctx context.Context, req types.EmbeddingsRequest) (types.EmbeddingsResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return types.EmbeddingsResponse{}, badRequest("prompt is required")
	}
	model := s.modelOrDefault(req.Model)
	vec, err := s.backend.Embeddings(ctx, model, req.Prompt)
	if err != nil {
		return types.EmbeddingsResponse{}, s.mapBackendErr(err, model)
	}
	return types.EmbeddingsResponse{Embedding: vec}, nil
}

// Status reports uptime, counters and backend state.
func (s *Service) Status() types.StatusResponse {
	resp := types.StatusResponse{
		DefaultModel:       s.cfg.DefaultModel,
		Mode:               s.cfg.Mode,
		UptimeSeconds:      int64(time.Since(s.started).Seconds()),
		ServerTimeUnix:     time.Now().Unix(),
		RequestsTotal:      s.stats.requests.Load(),
		SucceededTotal:     s.stats.succeeded.Load(),
		FailedTotal:        s.stats.failed.Load(),
		FallbackTotal:      s.stats.fallback.Load(),
		IncompleteTotal:    s.stats.incomplete.Load(),
		ParseFailuresTotal: s.stats.parseFailures.Load(),
	}
	if s.cfg.BackendStatus != nil {
		resp.Backend = s.cfg.BackendStatus()
	} else {
		resp.Backend = types.BackendStatus{State: "unmanaged"}
	}
	return resp
}

// Generate runs one prompt to completion and returns the full text.
func (s *Service) Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error) {
	start := time.Now()
	s.stats.requests.Add(1)
	resp, outcome, err := s.generate(ctx, req)
	observe(outcome, start)
	if err != nil {
		s.stats.failed.Add(1)
		return types.GenerateResponse{}, err
	}
	s.stats.succeeded.Add(1)
	return resp, nil
}

func (s *Service) generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, string, error) {
	if err := validate(req); err != nil {
		return types.GenerateResponse{}, outcomeBadRequest, err
	}
	model := s.modelOrDefault(req.Model)
	lg := s.log.With().Str("model", model).Logger()

	parent := ctx
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}
	fail := func(err error) (types.GenerateResponse, string, error) {
		err = s.classify(parent, ctx, err, model)
		outcome := outcomeOf(err)
		if outcome == outcomeCanceled {
			lg.Debug().Err(err).Msg("generation canceled by caller")
		} else {
			lg.Error().Err(err).Str("outcome", outcome).Msg("generation failed")
		}
		s.pub.Publish(events.Event{Name: "generate_failed", Subject: model, Fields: map[string]any{"outcome": outcome}})
		return types.GenerateResponse{}, outcome, err
	}

	if err := s.backend.Health(ctx); err != nil {
		return fail(BackendUnavailableError{Err: err})
	}
	if !s.cfg.SkipModelCheck {
		models, err := s.backend.ListModels(ctx)
		if err != nil {
			return fail(BackendUnavailableError{Err: err})
		}
		if !ollama.HasModel(models, model) {
			return fail(ModelNotFoundError{Model: model})
		}
	}

	body, err := s.open(ctx, model, req)
	if err != nil {
		return fail(err)
	}
	defer body.Close()

	res, err := stream.Accumulate(ctx, body, stream.Options{
		StrictFallback: s.cfg.StrictFallback,
		OnParseFailure: func(pf *stream.ParseFailure) {
			lg.Debug().Str("line", pf.Raw).Err(pf.Err).Msg("skipping undecodable stream line")
		},
	})
	streamLines.WithLabelValues("parsed").Add(float64(res.Lines - res.ParseFailures))
	streamLines.WithLabelValues("parse_failure").Add(float64(res.ParseFailures))
	s.stats.parseFailures.Add(uint64(res.ParseFailures))
	if err != nil {
		return fail(err)
	}

	outcome := outcomeOK
	switch {
	case res.RecoveredViaFallback:
		outcome = outcomeFallback
		s.stats.fallback.Add(1)
		streamRecoveries.WithLabelValues(res.Strategy.String()).Inc()
		lg.Warn().Str("strategy", res.Strategy.String()).Int("lines", res.Lines).Int("parse_failures", res.ParseFailures).
			Msg("response recovered via fallback")
		s.pub.Publish(events.Event{Name: "stream_recovered", Subject: model, Fields: map[string]any{"strategy": res.Strategy.String()}})
	case res.Interrupted != nil:
		outcome = outcomeIncomplete
		s.stats.incomplete.Add(1)
		lg.Warn().Err(res.Interrupted).Int("lines", res.Lines).Int("chars", len(res.Text)).
			Msg("backend error mid-stream; returning partial text")
		s.pub.Publish(events.Event{Name: "stream_interrupted", Subject: model, Fields: map[string]any{"error": res.Interrupted.Error()}})
	case !res.Complete:
		outcome = outcomeIncomplete
		s.stats.incomplete.Add(1)
		lg.Warn().Int("lines", res.Lines).Int("chars", len(res.Text)).Msg("stream ended without done marker")
	default:
		lg.Debug().Int("lines", res.Lines).Int("parse_failures", res.ParseFailures).Msg("generation complete")
	}
	return types.GenerateResponse{Response: res.Text}, outcome, nil
}

// open starts the backend stream for model using the configured endpoint.
func (s *Service) open(ctx context.Context, model string, req types.GenerateRequest) (io.ReadCloser, error) {
	profile, _ := s.cfg.Profiles.Lookup(model)
	opts := resolveOptions(req, profile)
	prompt := applyTemplate(profile.PromptTemplate, req.Prompt)
	system := req.System
	if system == "" {
		system = profile.SystemPrompt
	}
	if s.cfg.Mode == ModeChat {
		msgs := make([]ollama.Message, 0, 2)
		if system != "" {
			msgs = append(msgs, ollama.Message{Role: "system", Content: system})
		}
		msgs = append(msgs, ollama.Message{Role: "user", Content: prompt})
		return s.backend.Chat(ctx, ollama.ChatRequest{Model: model, Messages: msgs, Options: opts})
	}
	return s.backend.Generate(ctx, ollama.GenerateRequest{Model: model, Prompt: prompt, System: system, Options: opts})
}

// classify turns a raw failure into one of the typed errors. parent is the
// caller's context and ctx the one carrying the request deadline.
func (s *Service) classify(parent, ctx context.Context, err error, model string) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return TimeoutError{After: s.cfg.RequestTimeout}
	}
	return s.mapBackendErr(err, model)
}

func (s *Service) mapBackendErr(err error, model string) error {
	var (
		bad   BadRequestError
		nf    ModelNotFoundError
		unav  BackendUnavailableError
		up    UpstreamError
		tmout TimeoutError
	)
	switch {
	case errors.As(err, &bad), errors.As(err, &nf), errors.As(err, &unav), errors.As(err, &up), errors.As(err, &tmout):
		return err
	case ollama.IsNotFound(err):
		return ModelNotFoundError{Model: model}
	case ollama.IsUnavailable(err):
		return BackendUnavailableError{Err: err}
	}
	return UpstreamError{Err: err}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return outcomeCanceled
	case IsBadRequest(err):
		return outcomeBadRequest
	case IsModelNotFound(err):
		return outcomeNotFound
	case IsBackendUnavailable(err):
		return outcomeUnavailable
	case IsTimeout(err):
		return outcomeTimeout
	}
	return outcomeFailed
}
