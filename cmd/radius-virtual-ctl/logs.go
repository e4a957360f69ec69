/*
 * Copyright (c) 2026 SecareLupus
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 */

package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/sdjournal"
	"github.com/spf13/cobra"
)

// identifiers are the SYSLOG_IDENTIFIER values of the installed components.
var identifiers = []string{"pam_radius_virtual", "nss_radius_virtual", "radius_shell"}

func newLogsCmd(a *app) *cobra.Command {
	var (
		follow bool
		since  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show journal entries written by the PAM, NSS and shell components",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(a.now().Add(-since))
			if err != nil {
				return err
			}
			defer j.Close()

			for {
				if err := drain(j, a.out); err != nil {
					return err
				}
				if !follow || cmd.Context().Err() != nil {
					return nil
				}
				for j.Wait(2*time.Second) == sdjournal.SD_JOURNAL_NOP {
					if cmd.Context().Err() != nil {
						return nil
					}
				}
			}
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new entries")
	cmd.Flags().DurationVar(&since, "since", time.Hour, "Show entries newer than this")
	return cmd
}

func openJournal(from time.Time) (*sdjournal.Journal, error) {
	j, err := sdjournal.NewJournal()
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	for i, id := range identifiers {
		if i > 0 {
			if err := j.AddDisjunction(); err != nil {
				j.Close()
				return nil, fmt.Errorf("add journal match: %w", err)
			}
		}
		m := sdjournal.Match{Field: sdjournal.SD_JOURNAL_FIELD_SYSLOG_IDENTIFIER, Value: id}
		if err := j.AddMatch(m.String()); err != nil {
			j.Close()
			return nil, fmt.Errorf("add journal match: %w", err)
		}
	}
	if err := j.SeekRealtimeUsec(uint64(from.UnixMicro())); err != nil {
		j.Close()
		return nil, fmt.Errorf("seek journal: %w", err)
	}
	return j, nil
}

func drain(j *sdjournal.Journal, w io.Writer) error {
	for {
		n, err := j.Next()
		if err != nil {
			return fmt.Errorf("read journal: %w", err)
		}
		if n == 0 {
			return nil
		}
		entry, err := j.GetEntry()
		if err != nil {
			continue
		}
		fmt.Fprintln(w, formatEntry(entry))
	}
}

// formatEntry renders an entry like syslog: time, identifier[pid], message
// and any structured fields the loggers attached.
func formatEntry(e *sdjournal.JournalEntry) string {
	ts := time.UnixMicro(int64(e.RealtimeTimestamp)).Local().Format(time.DateTime)
	line := fmt.Sprintf("%s %s", ts, e.Fields[sdjournal.SD_JOURNAL_FIELD_SYSLOG_IDENTIFIER])
	if pid := e.Fields[sdjournal.SD_JOURNAL_FIELD_PID]; pid != "" {
		line += "[" + pid + "]"
	}
	line += ": " + e.Fields[sdjournal.SD_JOURNAL_FIELD_MESSAGE]
	for _, k := range extraFields(e.Fields) {
		line += fmt.Sprintf(" %s=%s", k, e.Fields[k])
	}
	return line
}

// standardFields are written by journald or the journal client library
// rather than by our loggers.
var standardFields = map[string]bool{
	sdjournal.SD_JOURNAL_FIELD_MESSAGE:           true,
	"PRIORITY":                                   true,
	sdjournal.SD_JOURNAL_FIELD_SYSLOG_IDENTIFIER: true,
	"SYSLOG_FACILITY":                            true,
	"SYSLOG_PID":                                 true,
	"SYSLOG_TIMESTAMP":                           true,
	"CODE_FILE":                                  true,
	"CODE_LINE":                                  true,
	"CODE_FUNC":                                  true,
}

// extraFields returns the attribute fields of an entry in sorted order.
func extraFields(fields map[string]string) []string {
	var keys []string
	for k := range fields {
		if strings.HasPrefix(k, "_") || standardFields[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
