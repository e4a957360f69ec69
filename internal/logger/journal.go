/*
 * Copyright (c) 2026 SecareLupus
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 */

package logger

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// SendFunc delivers one journal entry. journal.Send in production.
type SendFunc func(message string, priority journal.Priority, vars map[string]string) error

// JournalHandler is an slog.Handler writing native journald entries. Each
// attribute becomes an upper-case journal field, so entries can be filtered
// with e.g. `journalctl ATTEMPT=<id>`.
type JournalHandler struct {
	ident  string
	level  slog.Leveler
	prefix string
	fields map[string]string
	send   SendFunc
}

// NewJournalHandler returns a handler tagging entries with SYSLOG_IDENTIFIER=ident.
func NewJournalHandler(ident string, opts *slog.HandlerOptions) *JournalHandler {
	return NewJournalHandlerWithSender(ident, opts, journal.Send)
}

// NewJournalHandlerWithSender is NewJournalHandler with a custom sender.
func NewJournalHandlerWithSender(ident string, opts *slog.HandlerOptions, send SendFunc) *JournalHandler {
	var lvl slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		lvl = opts.Level
	}
	return &JournalHandler{ident: ident, level: lvl, fields: map[string]string{}, send: send}
}

func (h *JournalHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	vars := make(map[string]string, len(h.fields)+r.NumAttrs()+1)
	for k, v := range h.fields {
		vars[k] = v
	}
	vars["SYSLOG_IDENTIFIER"] = h.ident
	r.Attrs(func(a slog.Attr) bool {
		addField(vars, h.prefix, a)
		return true
	})
	return h.send(r.Message, priority(r.Level), vars)
}

func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		addField(c.fields, c.prefix, a)
	}
	return c
}

func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.prefix = h.prefix + fieldName(name) + "_"
	return c
}

func (h *JournalHandler) clone() *JournalHandler {
	c := *h
	c.fields = make(map[string]string, len(h.fields))
	for k, v := range h.fields {
		c.fields[k] = v
	}
	return &c
}

func addField(vars map[string]string, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += fieldName(a.Key) + "_"
		}
		for _, g := range a.Value.Group() {
			addField(vars, p, g)
		}
		return
	}
	name := prefix + fieldName(a.Key)
	if name == "" || reserved(name) {
		return
	}
	switch a.Value.Kind() {
	case slog.KindTime:
		vars[name] = a.Value.Time().Format(time.RFC3339Nano)
	default:
		vars[name] = a.Value.String()
	}
}

// fieldName maps an attribute key to a valid journal field name.
func fieldName(key string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(key) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.TrimLeft(b.String(), "_0123456789")
}

// reserved reports fields the handler sets itself.
func reserved(name string) bool {
	switch name {
	case "MESSAGE", "PRIORITY", "SYSLOG_IDENTIFIER":
		return true
	}
	return false
}

func priority(l slog.Level) journal.Priority {
	switch {
	case l >= slog.LevelError:
		return journal.PriErr
	case l >= slog.LevelWarn:
		return journal.PriWarning
	case l >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

