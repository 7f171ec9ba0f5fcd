package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestSubcommands(t *testing.T) {
	binaryPath, err := filepath.Abs("../../pgi")
	if err != nil {
		t.Fatalf("failed to get binary path: %v", err)
	}

	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		t.Skip("pgi binary not found - run 'go build -o pgi ./cmd/pgi' first")
	}

	t.Run("help shows usage", func(t *testing.T) {
		cmd := exec.Command(binaryPath, "help")
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("help command failed: %v", err)
		}
		if !strings.Contains(string(out), "fit") || !strings.Contains(string(out), "sensitivity") {
			t.Errorf("help output missing subcommands: %s", out)
		}
	})

	t.Run("version prints version info", func(t *testing.T) {
		cmd := exec.Command(binaryPath, "version")
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("version command failed: %v", err)
		}
		if !strings.Contains(string(out), "pgi version") {
			t.Errorf("version output incorrect: %s", out)
		}
	})

	t.Run("no args shows usage and exits 1", func(t *testing.T) {
		cmd := exec.Command(binaryPath)
		out, err := cmd.CombinedOutput()
		if err == nil {
			t.Error("expected non-zero exit with no arguments")
		}
		if !strings.Contains(string(out), "Usage") {
			t.Errorf("expected usage output, got: %s", out)
		}
	})

	t.Run("unknown command exits 1", func(t *testing.T) {
		cmd := exec.Command(binaryPath, "bogus")
		out, err := cmd.CombinedOutput()
		if err == nil {
			t.Error("expected non-zero exit for unknown command")
		}
		if !strings.Contains(string(out), "Unknown command") {
			t.Errorf("expected unknown command message, got: %s", out)
		}
	})
}
