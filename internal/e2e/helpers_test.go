package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"lowkeyllama/internal/config"
	"lowkeyllama/internal/events"
	"lowkeyllama/internal/generate"
	"lowkeyllama/internal/httpapi"
	"lowkeyllama/internal/ollama"
)

// fakeOllama is a scripted backend: every generate or chat call answers with
// the configured NDJSON body.
type fakeOllama struct {
	mu     sync.Mutex
	models []string
	body   string
	down   bool
	bodies []map[string]any
}

func (f *fakeOllama) setBody(s string) {
	f.mu.Lock()
	f.body = s
	f.mu.Unlock()
}

func (f *fakeOllama) lastRequest() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bodies) == 0 {
		return nil
	}
	return f.bodies[len(f.bodies)-1]
}

func (f *fakeOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		http.Error(w, "down", http.StatusServiceUnavailable)
		return
	}
	switch r.URL.Path {
	case "/api/version":
		_, _ = io.WriteString(w, `{"version":"0.5.7"}`)
	case "/api/tags":
		items := make([]map[string]string, 0, len(f.models))
		for _, m := range f.models {
			items = append(items, map[string]string{"name": m})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"models": items})
	case "/api/generate", "/api/chat":
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.bodies = append(f.bodies, req)
		if m, _ := req["model"].(string); !ollama.HasModel(modelList(f.models), m) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"model '`+m+`' not found"}`)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = io.WriteString(w, f.body)
	case "/api/embeddings":
		_, _ = io.WriteString(w, `{"embedding":[0.1,0.2,0.3]}`)
	default:
		http.NotFound(w, r)
	}
}

func modelList(names []string) []ollama.Model {
	out := make([]ollama.Model, len(names))
	for i, n := range names {
		out[i] = ollama.Model{Name: n}
	}
	return out
}

// stack is the full in-process pipeline behind an httptest server.
type stack struct {
	backend *fakeOllama
	api     *httptest.Server
	events  *events.Memory
}

func newStack(t *testing.T, mode string, mut func(*generate.Config)) *stack {
	t.Helper()
	fake := &fakeOllama{models: []string{"mistral:latest", "llama2:7b"}}
	be := httptest.NewServer(fake)
	t.Cleanup(be.Close)

	cfg := config.Default()
	cfg.Backend.Mode = mode
	cfg.API.RequestTimeoutSeconds = 5
	gcfg := generate.ConfigFrom(cfg)
	if mut != nil {
		mut(&gcfg)
	}
	client := ollama.NewClient(be.URL, time.Second)
	mem := events.NewMemory()
	svc := generate.NewService(client, gcfg, zerolog.Nop(), mem)

	api := httptest.NewServer(httpapi.NewMux(svc))
	t.Cleanup(api.Close)
	return &stack{backend: fake, api: api, events: mem}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewBufferString(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func ndjson(lines ...string) string { return strings.Join(lines, "\n") + "\n" }
