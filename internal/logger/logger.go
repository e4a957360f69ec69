/*
 * Copyright (c) 2026 SecareLupus
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 */

// Package logger is the process-wide structured logger. PAM and NSS modules
// run inside foreign processes, so the default sink is journald when it is
// reachable and stderr otherwise.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/coreos/go-systemd/v22/journal"
)

// Config holds logger configuration
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // auto, stdout, stderr, journal, or file path
	// Identifier is the SYSLOG_IDENTIFIER sent to journald. Defaults to the
	// executable name.
	Identifier string
}

var (
	mu      sync.RWMutex
	level   = new(slog.LevelVar)
	slogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	closer  io.Closer
)

// ParseLevel maps DEBUG, INFO, WARN and ERROR (any case) to slog levels.
// Anything else is INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init replaces the process logger according to cfg.
func Init(cfg Config) error {
	level.Set(ParseLevel(cfg.Level))
	opts := &slog.HandlerOptions{Level: level}

	ident := cfg.Identifier
	if ident == "" {
		ident = filepath.Base(os.Args[0])
	}

	var (
		h slog.Handler
		c io.Closer
	)
	switch out := strings.ToLower(cfg.Output); out {
	case "journal":
		if !journal.Enabled() {
			return fmt.Errorf("journald is not available")
		}
		h = NewJournalHandler(ident, opts)
	case "auto", "":
		if journal.Enabled() {
			h = NewJournalHandler(ident, opts)
		} else {
			h = newStreamHandler(os.Stderr, cfg.Format, opts)
		}
	case "stdout":
		h = newStreamHandler(os.Stdout, cfg.Format, opts)
	case "stderr":
		h = newStreamHandler(os.Stderr, cfg.Format, opts)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
		}
		h = newStreamHandler(f, cfg.Format, opts)
		c = f
	}

	swap(slog.New(h), c)
	return nil
}

// InitWithWriter directs logs to w. Used by tests.
func InitWithWriter(w io.Writer, lvl, format string) {
	level.Set(ParseLevel(lvl))
	swap(slog.New(newStreamHandler(w, format, &slog.HandlerOptions{Level: level})), nil)
}

// SetLevel changes the minimum level of the current logger.
func SetLevel(lvl string) {
	level.Set(ParseLevel(lvl))
}

// SetHandler installs h as the process logger.
func SetHandler(h slog.Handler) {
	swap(slog.New(h), nil)
}

// Close releases a log file opened by Init.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	return err
}

func swap(l *slog.Logger, c io.Closer) {
	mu.Lock()
	old := closer
	slogger, closer = l, c
	mu.Unlock()
	if old != nil {
		old.Close()
	}
}

func newStreamHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func get() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

// With returns a logger that adds args to every record, e.g. an attempt id.
func With(args ...any) *slog.Logger {
	return get().With(args...)
}

// Debug logs at debug level with structured fields
// Usage: Debug("message", "key1", value1, "key2", value2)
func Debug(msg string, args ...any) { get().Debug(msg, args...) }

// Info logs at info level with structured fields
func Info(msg string, args ...any) { get().Info(msg, args...) }

// Warn logs at warn level with structured fields
func Warn(msg string, args ...any) { get().Warn(msg, args...) }

// Error logs at error level with structured fields
func Error(msg string, args ...any) { get().Error(msg, args...) }

// Err returns an slog attribute for an error, or an empty attribute for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}
