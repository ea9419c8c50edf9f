// Package logging builds the leveled loggers used throughout the client.
// Messages carry a bracketed level prefix ("[INFO] ...") and are filtered
// by hashicorp/logutils before they reach the writer.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/logutils"
)

// Levels lists the recognised log levels, lowest first.
var Levels = []logutils.LogLevel{"DEBUG", "INFO", "WARN", "ERROR"}

// DefaultLevel is used when an unknown level is requested.
const DefaultLevel = "INFO"

// normalizeLevel upper-cases lvl and falls back to DefaultLevel.
func normalizeLevel(lvl string) logutils.LogLevel {
	lvl = strings.ToUpper(strings.TrimSpace(lvl))
	for _, l := range Levels {
		if string(l) == lvl {
			return l
		}
	}
	return DefaultLevel
}

// New returns a logger for the given domain that writes to w, dropping
// messages below minLevel. Lines without a level prefix always pass.
func New(w io.Writer, domain, minLevel string) *log.Logger {
	filter := &logutils.LevelFilter{
		Levels:   Levels,
		MinLevel: normalizeLevel(minLevel),
		Writer:   w,
	}
	return log.New(filter, domain+" ", log.LstdFlags|log.Lmsgprefix)
}

// OpenFile opens (or creates) the log file at path for appending,
// creating parent directories if needed.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	return f, nil
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}
