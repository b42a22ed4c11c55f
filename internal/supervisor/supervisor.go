// Package supervisor makes sure an Ollama server is reachable: it attaches to
// one that is already running, or spawns `ollama serve` and stops it again on
// shutdown.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"lowkeyllama/internal/events"
	"lowkeyllama/internal/ollama"
)

// stderrTail is how much child stderr is kept for error reports.
const stderrTail = 4096

// State is the supervisor lifecycle state.
type State string

const (
	StateStopped  State = "stopped"
	StateAttached State = "attached"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateFailed   State = "failed"
)

// Config controls how the backend is found and started.
type Config struct {
	Binary       string
	Host         string
	Port         int
	PortRangeEnd int
	Env          map[string]string
	StartTimeout time.Duration
	StopGrace    time.Duration
}

// Status is a snapshot for /status and the CLI.
type Status struct {
	State     State     `json:"state"`
	URL       string    `json:"url,omitempty"`
	Managed   bool      `json:"managed"`
	PID       int       `json:"pid,omitempty"`
	Binary    string    `json:"binary,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

type proc struct {
	cmd    *exec.Cmd
	done   chan struct{}
	err    error
	stderr *tailBuffer
}

// Supervisor owns at most one child process.
type Supervisor struct {
	cfg     Config
	log     zerolog.Logger
	pub     events.Publisher
	healthy func(ctx context.Context, baseURL string) bool

	mu       sync.Mutex
	proc     *proc
	status   Status
	stopping bool
}

// New returns a stopped supervisor.
func New(cfg Config, log zerolog.Logger, pub events.Publisher) *Supervisor {
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 11434
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 30 * time.Second
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = 2 * time.Second
	}
	return &Supervisor{
		cfg:     cfg,
		log:     log,
		pub:     events.OrNoop(pub),
		healthy: checkHealth,
		status:  Status{State: StateStopped},
	}
}

func checkHealth(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return ollama.NewClient(baseURL, 500*time.Millisecond).Health(ctx) == nil
}

func baseURL(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// Status returns the current state.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Ensure returns the URL of a healthy backend, attaching to a running one
// or spawning a new one.
func (s *Supervisor) Ensure(ctx context.Context) (string, error) {
	s.mu.Lock()
	if p := s.proc; p != nil && s.status.State == StateRunning {
		url := s.status.URL
		s.mu.Unlock()
		if s.healthy(ctx, url) {
			return url, nil
		}
		s.log.Warn().Str("url", url).Msg("managed backend unhealthy, restarting")
		_ = s.Stop()
	} else {
		s.mu.Unlock()
	}

	url := baseURL(s.cfg.Host, s.cfg.Port)
	if s.healthy(ctx, url) {
		s.setStatus(Status{State: StateAttached, URL: url})
		s.log.Info().Str("url", url).Msg("attached to running ollama")
		s.pub.Publish(events.Event{Name: "backend_attach", Subject: url})
		return url, nil
	}
	return s.spawn(ctx)
}

func (s *Supervisor) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

func (s *Supervisor) fail(err error) error {
	s.mu.Lock()
	s.status = Status{State: StateFailed, LastError: err.Error(), Binary: s.status.Binary}
	s.proc = nil
	s.mu.Unlock()
	return err
}

func (s *Supervisor) spawn(ctx context.Context) (string, error) {
	bin, err := FindBinary(s.cfg.Binary)
	if err != nil {
		return "", s.fail(err)
	}
	port, err := pickPortInRange(s.cfg.Host, s.cfg.Port, s.cfg.PortRangeEnd)
	if err != nil {
		return "", s.fail(err)
	}
	if port != s.cfg.Port {
		s.log.Warn().Int("configured", s.cfg.Port).Int("port", port).Msg("configured backend port busy, using fallback")
	}
	url := baseURL(s.cfg.Host, port)

	cmd := exec.Command(bin, "serve")
	cmd.Env = append(os.Environ(), "OLLAMA_HOST="+net.JoinHostPort(s.cfg.Host, strconv.Itoa(port)))
	for k, v := range s.cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	tail := newTailBuffer(stderrTail)
	cmd.Stdout = io.Discard
	cmd.Stderr = tail
	if err := cmd.Start(); err != nil {
		return "", s.fail(fmt.Errorf("start ollama: %w", err))
	}
	p := &proc{cmd: cmd, done: make(chan struct{}), stderr: tail}
	pid := cmd.Process.Pid
	s.mu.Lock()
	s.proc = p
	s.stopping = false
	s.status = Status{State: StateStarting, URL: url, Managed: true, PID: pid, Binary: bin, StartedAt: time.Now()}
	s.mu.Unlock()
	s.log.Info().Str("binary", bin).Int("pid", pid).Str("url", url).Msg("spawned ollama")
	s.pub.Publish(events.Event{Name: "spawn_start", Subject: url, Fields: map[string]any{"pid": pid, "binary": bin}})

	go func() {
		p.err = cmd.Wait()
		close(p.done)
		s.onExit(p)
	}()

	deadline := time.NewTimer(s.cfg.StartTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		if s.healthy(ctx, url) {
			s.mu.Lock()
			if s.proc == p {
				s.status.State = StateRunning
			}
			s.mu.Unlock()
			s.log.Info().Int("pid", pid).Str("url", url).Msg("ollama ready")
			s.pub.Publish(events.Event{Name: "spawn_ready", Subject: url, Fields: map[string]any{"pid": pid}})
			return url, nil
		}
		select {
		case <-p.done:
			msg := "exited before ready"
			if p.err != nil {
				msg = "exited early: " + p.err.Error()
			}
			s.pub.Publish(events.Event{Name: "spawn_exit", Subject: url, Fields: map[string]any{"pid": pid, "before_ready": true}})
			return "", s.fail(fmt.Errorf("ollama %s; stderr tail: %s", msg, strings.TrimSpace(tail.String())))
		case <-deadline.C:
			_ = s.Stop()
			s.pub.Publish(events.Event{Name: "spawn_timeout", Subject: url, Fields: map[string]any{"pid": pid}})
			return "", s.fail(fmt.Errorf("ollama not ready within %s at %s", s.cfg.StartTimeout, url))
		case <-ctx.Done():
			_ = s.Stop()
			return "", s.fail(ctx.Err())
		case <-tick.C:
		}
	}
}

// onExit records an exit that Stop did not ask for.
func (s *Supervisor) onExit(p *proc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc != p || s.stopping {
		return
	}
	if s.status.State == StateRunning {
		s.status.State = StateFailed
		if p.err != nil {
			s.status.LastError = p.err.Error()
		} else {
			s.status.LastError = "ollama exited"
		}
		s.log.Error().Int("pid", s.status.PID).Str("error", s.status.LastError).Msg("managed ollama exited")
		s.pub.Publish(events.Event{Name: "spawn_exit", Subject: s.status.URL, Fields: map[string]any{"pid": s.status.PID}})
	}
}

// Stop terminates a spawned process: SIGTERM first, kill after the grace
// period. Attached backends are left alone.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	p := s.proc
	if p == nil {
		if s.status.State == StateAttached {
			s.status = Status{State: StateStopped}
		}
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	url := s.status.URL
	s.mu.Unlock()

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		_ = p.cmd.Process.Kill()
	}
	select {
	case <-p.done:
	case <-time.After(s.cfg.StopGrace):
		_ = p.cmd.Process.Kill()
		<-p.done
	}

	s.mu.Lock()
	if s.proc == p {
		s.proc = nil
		s.status = Status{State: StateStopped, Binary: s.status.Binary}
	}
	s.mu.Unlock()
	s.log.Info().Int("pid", p.cmd.Process.Pid).Msg("stopped ollama")
	s.pub.Publish(events.Event{Name: "spawn_stop", Subject: url, Fields: map[string]any{"pid": p.cmd.Process.Pid}})
	return nil
}
