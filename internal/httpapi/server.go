package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lowkeyllama/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error)
	Health(ctx context.Context) error
	ListModels(ctx context.Context) ([]string, error)
	Embeddings(ctx context.Context, req types.EmbeddingsRequest) (types.EmbeddingsResponse, error)
	Status() types.StatusResponse
}

// healthTimeout bounds probes issued by /health and /readyz.
const healthTimeout = 5 * time.Second

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(allowIPs)
	r.Use(recoverJSON)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}

	r.Post("/generate", generateHandler(svc))
	r.Post("/api/generate", generateHandler(svc))
	r.Post("/embeddings", embeddingsHandler(svc))
	r.Get("/health", healthHandler(svc))
	r.Get("/models", modelsHandler(svc))
	r.Get("/status", statusHandler(svc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := svc.Health(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("backend unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	return r
}

// decodeJSON enforces the JSON content type and body limit. It writes the
// error response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		incrementRejected("content_type")
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// oversized bodies are reported as plain bad JSON
		incrementRejected("bad_json")
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// generateHandler godoc
//
//	@Summary		Generate a completion
//	@Description	Sends the prompt to the backend model, reassembles the streamed answer and returns it in one piece.
//	@Tags			generation
//	@Accept			json
//	@Produce		json
//	@Param			request	body		types.GenerateRequest	true	"Prompt and optional parameters"
//	@Success		200		{object}	types.GenerateResponse
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		404		{object}	types.ErrorResponse
//	@Failure		415		{object}	types.ErrorResponse
//	@Failure		502		{object}	types.ErrorResponse
//	@Failure		503		{object}	types.ErrorResponse
//	@Failure		504		{object}	types.ErrorResponse
//	@Router			/generate [post]
func generateHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.GenerateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		lvl := requestLogLevel(r)
		start := time.Now()
		if lvl >= LevelDebug {
			zlog.Debug().Str("path", r.URL.Path).Str("model", req.Model).Int("prompt_chars", len(req.Prompt)).Msg("generate start")
		}

		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		resp, err := svc.Generate(ctx, req)
		if err != nil {
			// client went away or server is shutting down
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := statusFor(err)
			writeJSONError(w, status, err.Error())
			if ev := requestEvent(r, lvl, status); ev != nil {
				ev.Str("model", req.Model).Dur("dur", time.Since(start)).Err(err).Msg("generate end")
			}
			return
		}
		writeJSON(w, http.StatusOK, resp)
		if ev := requestEvent(r, lvl, http.StatusOK); ev != nil {
			ev.Str("model", req.Model).Dur("dur", time.Since(start)).Int("chars", len(resp.Response)).Msg("generate end")
		}
	}
}

// embeddingsHandler godoc
//
//	@Summary	Embed text
//	@Tags		generation
//	@Accept		json
//	@Produce	json
//	@Param		request	body		types.EmbeddingsRequest	true	"Model and text"
//	@Success	200		{object}	types.EmbeddingsResponse
//	@Failure	400		{object}	types.ErrorResponse
//	@Failure	503		{object}	types.ErrorResponse
//	@Router		/embeddings [post]
func embeddingsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.EmbeddingsRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		resp, err := svc.Embeddings(ctx, req)
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// healthHandler godoc
//
//	@Summary	Backend health
//	@Tags		ops
//	@Produce	json
//	@Success	200	{object}	types.HealthResponse
//	@Failure	503	{object}	types.ErrorResponse
//	@Router		/health [get]
func healthHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := svc.Health(ctx); err != nil {
			writeJSONError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, types.HealthResponse{Status: "healthy"})
	}
}

// modelsHandler godoc
//
//	@Summary	List backend models
//	@Tags		models
//	@Produce	json
//	@Success	200	{object}	types.ModelsResponse
//	@Failure	503	{object}	types.ErrorResponse
//	@Router		/models [get]
func modelsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := svc.ListModels(r.Context())
		if err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: names})
	}
}

// statusHandler godoc
//
//	@Summary	Service status
//	@Tags		ops
//	@Produce	json
//	@Success	200	{object}	types.StatusResponse
//	@Router		/status [get]
func statusHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	}
}
