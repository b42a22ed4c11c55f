//go:build integration
// +build integration

package supervisor

import (
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"lowkeyllama/internal/events"
)

// buildFakeOllama compiles testdata/fake_ollama.go and returns its path.
func buildFakeOllama(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "ollama")
	cmd := exec.Command("go", "build", "-o", bin, "./testdata/fake_ollama.go")
	cmd.Dir = "."
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build fake ollama: %v: %s", err, string(out))
	}
	return bin
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestSpawnReadyAndStop(t *testing.T) {
	bin := buildFakeOllama(t)
	port := freePort(t)
	pub := events.NewMemory()
	s := New(Config{Binary: bin, Host: "127.0.0.1", Port: port, PortRangeEnd: port + 10, StartTimeout: 10 * time.Second}, zerolog.Nop(), pub)
	url, err := s.Ensure(testCtx(t))
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	st := s.Status()
	if st.State != StateRunning || !st.Managed || st.PID <= 0 || st.URL != url {
		t.Fatalf("status=%+v", st)
	}
	// second call reuses the healthy child
	if again, err := s.Ensure(testCtx(t)); err != nil || again != url {
		t.Fatalf("reuse: %s %v", again, err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.Status().State != StateStopped {
		t.Fatalf("expected stopped, got %+v", s.Status())
	}
	names := strings.Join(pub.Names(), ",")
	if names != "spawn_start,spawn_ready,spawn_stop" {
		t.Fatalf("events=%s", names)
	}
}

func TestSpawnEarlyExitReportsStderr(t *testing.T) {
	bin := buildFakeOllama(t)
	pub := events.NewMemory()
	s := New(Config{Binary: bin, Host: "127.0.0.1", Port: freePort(t), Env: map[string]string{"FAKE_OLLAMA_EXIT": "1"}}, zerolog.Nop(), pub)
	_, err := s.Ensure(testCtx(t))
	if err == nil {
		t.Fatalf("expected early exit error")
	}
	if !strings.Contains(err.Error(), "address already in use") {
		t.Fatalf("stderr tail missing: %v", err)
	}
	if s.Status().State != StateFailed {
		t.Fatalf("status=%+v", s.Status())
	}
	names := strings.Join(pub.Names(), ",")
	if names != "spawn_start,spawn_exit" {
		t.Fatalf("events=%s", names)
	}
}
