package config

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// LogWriter is the writer used for application, HTTP and SQL logs.
var LogWriter io.Writer = os.Stdout

// LogSettings controls where the editorial service writes its log.
type LogSettings struct {
	Dir  string
	File string
	// Stdout mirrors every line to standard output.
	Stdout bool
	UTC    bool
}

// LoadLogSettings reads LOG_DIR, LOG_FILE, LOG_STDOUT and LOG_UTC.
func LoadLogSettings() LogSettings {
	return LogSettings{
		Dir:    envOr("LOG_DIR", "logs"),
		File:   envOr("LOG_FILE", "editorial-api.log"),
		Stdout: !strings.EqualFold(os.Getenv("LOG_STDOUT"), "false"),
		UTC:    strings.EqualFold(os.Getenv("LOG_UTC"), "true"),
	}
}

func (s LogSettings) Path() string {
	return filepath.Join(s.Dir, s.File)
}

// LogFilePath returns the path to the backend log file.
func LogFilePath() string {
	return LoadLogSettings().Path()
}

// OpenLog opens the log file for appending and builds the combined writer.
// On failure the writer falls back to stdout and the file is nil.
func OpenLog(s LogSettings) (*os.File, io.Writer, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, os.Stdout, err
	}
	f, err := os.OpenFile(s.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, os.Stdout, err
	}
	if !s.Stdout {
		return f, f, nil
	}
	return f, io.MultiWriter(os.Stdout, f), nil
}

// InitLogging points the standard logger and LogWriter at the configured log.
// The returned file is nil when logging falls back to stdout only.
func InitLogging() (*os.File, io.Writer) {
	settings := LoadLogSettings()
	flags := log.LstdFlags
	if settings.UTC {
		flags |= log.LUTC
	}
	log.SetFlags(flags)

	logFile, w, err := OpenLog(settings)
	if err != nil {
		log.Printf("Warning: failed to open log file %s: %v", settings.Path(), err)
	}
	LogWriter = w
	log.SetOutput(LogWriter)
	return logFile, LogWriter
}
