package main

import (
	"bytes"
	"strings"
	"testing"
)

func runWithArgs(args []string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunUsage(t *testing.T) {
	code, out, _ := runWithArgs([]string{"devbridge"})
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if !strings.Contains(out, "Usage:") {
		t.Fatalf("expected usage output, got %q", out)
	}
	for _, sub := range []string{"serve", "doctor", "version"} {
		if !strings.Contains(out, sub) {
			t.Errorf("usage does not list %s", sub)
		}
	}
}

func TestRunUnknownCommand(t *testing.T) {
	code, _, errOut := runWithArgs([]string{"devbridge", "nope"})
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(errOut, "unknown command") {
		t.Fatalf("expected unknown command error, got %q", errOut)
	}
}

func TestRunVersion(t *testing.T) {
	code, out, _ := runWithArgs([]string{"devbridge", "version"})
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if out != "devbridge "+Version+"\n" {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestServeHelp(t *testing.T) {
	code, out, _ := runWithArgs([]string{"devbridge", "serve", "--help"})
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	for _, flag := range []string{"--config", "--addr", "--repo", "--prefix"} {
		if !strings.Contains(out, flag) {
			t.Errorf("serve help missing %s", flag)
		}
	}
}

func TestServeInvalidFlag(t *testing.T) {
	code, _, errOut := runWithArgs([]string{"devbridge", "serve", "--bogus"})
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if errOut == "" {
		t.Fatal("expected error output for invalid flag")
	}
}
