package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// fakeOllama serves the handful of endpoints the commands touch.
type fakeOllama struct {
	mu      sync.Mutex
	prompts []string
	models  []string
}

func (f *fakeOllama) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"version":"0.5.7"}`)
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		var items []string
		for _, m := range f.models {
			items = append(items, fmt.Sprintf(`{"name":%q}`, m))
		}
		_, _ = io.WriteString(w, `{"models":[`+strings.Join(items, ",")+`]}`)
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.prompts = append(f.prompts, body.Prompt)
		f.mu.Unlock()
		_, _ = io.WriteString(w, "{\"response\":\"Hello\",\"done\":false}\n{\"response\":\" world\",\"done\":true}\n")
	})
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "{\"status\":\"pulling manifest\"}\n{\"status\":\"downloading\",\"total\":200,\"completed\":100}\n{\"status\":\"success\"}\n")
	})
	return mux
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OLLAMA_HOST", "LOWKEYLLAMA_LOG_LEVEL", "LOWKEYLLAMA_API_HOST", "LOWKEYLLAMA_API_PORT", "LOWKEYLLAMA_DEFAULT_MODEL"} {
		t.Setenv(k, "")
	}
}

// setupBackend starts a fake backend and writes a config pointing at it.
func setupBackend(t *testing.T, models ...string) (*fakeOllama, string) {
	t.Helper()
	clearEnv(t)
	f := &fakeOllama{models: models}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	cfg := fmt.Sprintf("log_level: error\nlog_format: json\nbackend:\n  host: %s\n  port: %s\n  manage: false\n  connect_retries: 1\n", u.Hostname(), u.Port())
	return f, writeConfig(t, cfg)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := buildRootCmdWith(&Options{})
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}

func TestConfigShow_LayersEnvAndFlags(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "default_model: codellama\napi:\n  port: 9000\n")
	t.Setenv("LOWKEYLLAMA_API_PORT", "9100")

	out, err := run(t, "--config", path, "--log-level", "debug", "config", "show", "--format", "json")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not json: %v\n%s", err, out)
	}
	if got["default_model"] != "codellama" {
		t.Fatalf("file value lost: %v", got["default_model"])
	}
	if got["log_level"] != "debug" {
		t.Fatalf("flag override lost: %v", got["log_level"])
	}
	api := got["api"].(map[string]any)
	if api["port"].(float64) != 9100 {
		t.Fatalf("env override lost: %v", api["port"])
	}
}

func TestConfigShow_Formats(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "default_model: llama2\n")
	out, err := run(t, "-c", path, "config", "show")
	if err != nil || !strings.Contains(out, "default_model: llama2") {
		t.Fatalf("yaml: err=%v out=%s", err, out)
	}
	out, err = run(t, "-c", path, "config", "show", "-f", "toml")
	if err != nil || !strings.Contains(out, "default_model = ") || !strings.Contains(out, "llama2") {
		t.Fatalf("toml: err=%v out=%s", err, out)
	}
	if _, err := run(t, "-c", path, "config", "show", "-f", "ini"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestConfig_Errors(t *testing.T) {
	clearEnv(t)
	if _, err := run(t, "-c", filepath.Join(t.TempDir(), "nope.yaml"), "config", "show"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected missing file error, got %v", err)
	}
	bad := writeConfig(t, "api:\n  port: 70000\n")
	if _, err := run(t, "-c", bad, "config", "show"); err == nil || !strings.Contains(err.Error(), "api.port") {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := run(t, "config"); err == nil {
		t.Fatalf("expected error for bare config command")
	}
}

func TestModelsCommand(t *testing.T) {
	_, path := setupBackend(t, "mistral:latest", "llama2:7b")
	out, err := run(t, "-c", path, "models")
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	if out != "mistral:latest\nllama2:7b\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestGenerateCommand(t *testing.T) {
	f, path := setupBackend(t, "mistral:latest")
	out, err := run(t, "-c", path, "generate", "hi", "there", "--max-tokens", "20")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if strings.TrimSpace(out) != "Hello world" {
		t.Fatalf("unexpected output %q", out)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) != 1 || f.prompts[0] != "[INST] hi there [/INST]" {
		t.Fatalf("prompt template not applied: %q", f.prompts)
	}
}

func TestGenerateCommand_Errors(t *testing.T) {
	_, path := setupBackend(t, "mistral:latest")
	_, err := run(t, "-c", path, "generate", "hi", "--max-tokens", "0")
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("expected 400 validation error, got %v", err)
	}
	_, err = run(t, "-c", path, "generate", "hi", "--model", "phi3")
	if err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("expected 404 for missing model, got %v", err)
	}
}

func TestPullCommand(t *testing.T) {
	_, path := setupBackend(t)
	out, err := run(t, "-c", path, "pull", "mistral")
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	for _, want := range []string{"pulling manifest", "downloading 50%", "success"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if _, err := run(t, "-c", path, "pull"); err == nil {
		t.Fatalf("expected arg count error")
	}
}

func TestCheckCommand(t *testing.T) {
	_, path := setupBackend(t, "mistral:latest")
	out, err := run(t, "-c", path, "check")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	if !strings.Contains(out, "ollama 0.5.7") || !strings.Contains(out, "default  mistral ok") {
		t.Fatalf("unexpected report:\n%s", out)
	}

	_, path = setupBackend(t, "llama2:7b")
	out, err = run(t, "-c", path, "check")
	if err == nil || !strings.Contains(out, "not installed") {
		t.Fatalf("expected missing default model, err=%v out=%s", err, out)
	}
}

func TestCheckCommand_Unreachable(t *testing.T) {
	clearEnv(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	u, _ := url.Parse(srv.URL)
	srv.Close()
	path := writeConfig(t, fmt.Sprintf("backend:\n  host: %s\n  port: %s\n  connect_timeout_seconds: 1\n", u.Hostname(), u.Port()))
	out, err := run(t, "-c", path, "check")
	if err == nil || !strings.Contains(out, "unreachable") {
		t.Fatalf("expected unreachable backend, err=%v out=%s", err, out)
	}
}

func TestCompletion(t *testing.T) {
	out, err := run(t, "completion", "bash")
	if err != nil || !strings.Contains(out, "lowkeyllama") {
		t.Fatalf("completion: err=%v len=%d", err, len(out))
	}
}
