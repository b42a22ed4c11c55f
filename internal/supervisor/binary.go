package supervisor

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"lowkeyllama/internal/common/fsutil"
)

// ErrBinaryNotFound is returned when no ollama executable can be located.
var ErrBinaryNotFound = errors.New("ollama executable not found: install it from https://ollama.com/download or set backend.binary")

// candidatePaths lists the usual install locations for the current OS.
func candidatePaths() []string {
	if runtime.GOOS == "windows" {
		return []string{
			filepath.Join(os.Getenv("LOCALAPPDATA"), "Programs", "Ollama", "ollama.exe"),
			`C:\Program Files\Ollama\ollama.exe`,
			`C:\Program Files (x86)\Ollama\ollama.exe`,
		}
	}
	return []string{
		"/usr/local/bin/ollama",
		"/usr/bin/ollama",
		"/opt/homebrew/bin/ollama",
	}
}

// FindBinary resolves the ollama executable. A configured path must exist;
// otherwise common install paths are tried, then PATH.
func FindBinary(configured string) (string, error) {
	if p := strings.TrimSpace(configured); p != "" {
		p, err := fsutil.ExpandHome(p)
		if err != nil {
			return "", err
		}
		if fsutil.IsExecutableFile(p) {
			return p, nil
		}
		if lp, err := exec.LookPath(p); err == nil {
			return lp, nil
		}
		return "", ErrBinaryNotFound
	}
	if p := fsutil.FirstExecutable(candidatePaths()...); p != "" {
		return p, nil
	}
	if lp, err := exec.LookPath("ollama"); err == nil {
		return lp, nil
	}
	return "", ErrBinaryNotFound
}
