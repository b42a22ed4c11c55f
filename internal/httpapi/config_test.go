package httpapi

import "testing"

func TestSetMaxBodyBytes(t *testing.T) {
	defer SetMaxBodyBytes(0)
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB, got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(1234)
	if maxBodyBytes != 1234 {
		t.Fatalf("expected 1234, got %d", maxBodyBytes)
	}
}

func TestIPAllowed(t *testing.T) {
	defer SetAllowedIPs(nil)
	if err := SetAllowedIPs([]string{"::1", "127.0.0.0/8"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	for in, want := range map[string]bool{
		"127.0.0.1:9000": true,
		"[::1]:9000":     true,
		"::1":            true,
		"10.0.0.1":       false,
		"garbage":        false,
	} {
		if got := ipAllowed(in); got != want {
			t.Fatalf("ipAllowed(%q)=%v want %v", in, got, want)
		}
	}
}
