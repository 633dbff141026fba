package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestLoggerLifecycle tests the no-op fallback, file output and Sync.
// Init is guarded by sync.Once, so the whole lifecycle lives in one test.
func TestLoggerLifecycle(t *testing.T) {
	if L() == nil {
		t.Fatal("expected no-op logger before Init")
	}
	L().Info("dropped before init")

	logFile := filepath.Join(t.TempDir(), "logs", "testkit.log")
	if err := Init(Config{Level: "debug", Format: "json", OutputFile: logFile}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	L().Debug("scratch cleaned")
	Sync()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "scratch cleaned") {
		t.Errorf("expected log message in file, got: %s", string(data))
	}
	if strings.Contains(string(data), "dropped before init") {
		t.Error("message logged before Init should have been dropped")
	}
}
