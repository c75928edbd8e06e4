package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"error", ERROR},
		{"WARN", WARN},
		{"warning", WARN},
		{"Info", INFO},
		{"debug", DEBUG},
		{"", INFO},
		{"nonsense", INFO},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func newFileLogger(t *testing.T, level LogLevel) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fwupd.log")
	log := New(level)
	log.SetConsoleOutput(false)
	if err := log.OpenLogFile(path); err != nil {
		t.Fatalf("OpenLogFile() error = %v", err)
	}
	return log, path
}

func TestLevelFiltering(t *testing.T) {
	log, path := newFileLogger(t, WARN)

	log.Debug("dropped debug")
	log.Info("dropped info")
	log.Warn("kept warn", "device", "192.0.2.7")
	log.Error("kept error")
	if err := log.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "dropped") {
		t.Errorf("messages below WARN were logged:\n%s", out)
	}
	if !strings.Contains(out, "kept warn") || !strings.Contains(out, "device=192.0.2.7") {
		t.Errorf("warn line missing context:\n%s", out)
	}
	if !strings.Contains(out, "kept error") {
		t.Errorf("error line missing:\n%s", out)
	}
}

func TestContextFormatting(t *testing.T) {
	log, path := newFileLogger(t, DEBUG)

	log.Info("uploading", "model", "MFC-9332CDW", "bytes", 4096)
	if err := log.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "model=MFC-9332CDW") || !strings.Contains(out, "bytes=4096") {
		t.Errorf("context pairs not formatted as key=value:\n%s", out)
	}
	if !strings.Contains(out, "[INFO]") {
		t.Errorf("level tag missing:\n%s", out)
	}
}
