package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadLogSettingsDefaults(t *testing.T) {
	t.Setenv("LOG_DIR", "")
	t.Setenv("LOG_FILE", "")
	t.Setenv("LOG_STDOUT", "")
	t.Setenv("LOG_UTC", "")

	s := LoadLogSettings()
	if s.Path() != filepath.Join("logs", "editorial-api.log") {
		t.Fatalf("unexpected default path %s", s.Path())
	}
	if !s.Stdout || s.UTC {
		t.Fatalf("expected stdout mirroring without UTC, got %+v", s)
	}
}

func TestOpenLogWritesToFileOnly(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	t.Setenv("LOG_DIR", dir)
	t.Setenv("LOG_FILE", "worker.log")
	t.Setenv("LOG_STDOUT", "false")

	s := LoadLogSettings()
	f, w, err := OpenLog(s)
	if err != nil {
		t.Fatalf("OpenLog: %v", err)
	}
	defer f.Close()
	if w != f {
		t.Fatalf("with stdout disabled the writer should be the file")
	}
	if _, err := w.Write([]byte("assignment created\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "worker.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "assignment created") {
		t.Fatalf("log line missing, got %q", data)
	}
	if LogFilePath() != filepath.Join(dir, "worker.log") {
		t.Fatalf("LogFilePath should follow the env, got %s", LogFilePath())
	}
}

func TestOpenLogFallsBackToStdout(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, w, err := OpenLog(LogSettings{Dir: filepath.Join(blocker, "sub"), File: "x.log", Stdout: true})
	if err == nil || f != nil || w != os.Stdout {
		t.Fatalf("expected stdout fallback, got file=%v writer=%v err=%v", f, w, err)
	}
}
