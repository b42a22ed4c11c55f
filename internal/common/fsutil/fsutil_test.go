package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}

	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"/etc/ollama", "/etc/ollama"},
		{"relative/~x", "relative/~x"},
		{"~", home},
		{"~/.lowkeyllama/config.yaml", filepath.Join(home, ".lowkeyllama", "config.yaml")},
	}
	for _, c := range cases {
		got, err := ExpandHome(c.in)
		if err != nil {
			t.Fatalf("ExpandHome(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ExpandHome(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFirstExecutable(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain")
	exe := filepath.Join(dir, "ollama")
	if err := os.WriteFile(plain, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
	if runtime.GOOS != "windows" {
		if IsExecutableFile(plain) {
			t.Fatalf("non-executable file reported executable")
		}
		if got := FirstExecutable("", filepath.Join(dir, "missing"), plain, exe); got != exe {
			t.Fatalf("got %q, want %q", got, exe)
		}
	}
	if IsExecutableFile(dir) {
		t.Fatalf("directory reported executable")
	}
	if got := FirstExecutable(filepath.Join(dir, "missing")); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if !PathExists(exe) || PathExists(filepath.Join(dir, "missing")) {
		t.Fatalf("PathExists mismatch")
	}
}
