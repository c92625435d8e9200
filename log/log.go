// Package log is a small file-backed logger for the interview client.
// The terminal is owned by the TUI, so everything goes to a session log
// file under the configured directory.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

var (
	sessionLog  zerolog.Logger
	sessionFile *os.File
	logMu       sync.Mutex
	logReady    bool
	dir         string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absPath(flagPath)
	}

	// Priority 2: MINDSTAGE_LOG_PATH environment variable
	if envPath := os.Getenv("MINDSTAGE_LOG_PATH"); envPath != "" {
		return absPath(envPath)
	}

	// Priority 3: alongside the recordings
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, "logs"), nil
}

func absPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, "interview_log.txt")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	sessionFile = f

	consoleWriter := zerolog.ConsoleWriter{
		Out:        sessionFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	sessionLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", os.Getpid()).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if sessionFile != nil {
		sessionFile.Close()
		sessionFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		sessionLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		sessionLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		sessionLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		sessionLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		sessionLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		sessionLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

// Upload records the outcome of one answer upload.
func Upload(questionID int, key string, bytes int, ok bool) {
	if !logReady {
		return
	}
	sessionLog.Info().
		Int("question_id", questionID).
		Str("s3_key", key).
		Int("bytes", bytes).
		Bool("ok", ok).
		Msg("upload")
}
