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
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/SecareLupus/radius-virtual/internal/cli/output"
	"github.com/SecareLupus/radius-virtual/internal/db"
	"github.com/SecareLupus/radius-virtual/internal/service"
	"github.com/spf13/cobra"
)

// sessionView is a stored session without its token.
type sessionView struct {
	Username       string          `json:"username" yaml:"username"`
	RemoteUsername string          `json:"remote_username" yaml:"remote_username"`
	LastLogin      time.Time       `json:"last_login" yaml:"last_login"`
	Local          ruleView        `json:"local" yaml:"local"`
	Attributes     []attributeView `json:"attributes" yaml:"attributes"`
}

func newSessionView(r db.Record) sessionView {
	return sessionView{
		Username:       r.Username,
		RemoteUsername: r.RemoteUsername,
		LastLogin:      r.LastLogin.UTC(),
		Local:          newRuleView(r.Session.Local),
		Attributes:     newRemoteView(r.Session.Remote).Attributes,
	}
}

var sessionHeaders = []string{"USERNAME", "REMOTE", "UID", "GID", "HOME", "LAST LOGIN"}

func (v sessionView) row() []string {
	return []string{
		v.Username,
		v.RemoteUsername,
		strconv.FormatUint(uint64(v.Local.UID), 10),
		strconv.FormatUint(uint64(v.Local.GID), 10),
		v.Local.Home,
		v.LastLogin.Format(time.RFC3339),
	}
}

// Headers implements TableRenderer.
func (v sessionView) Headers() []string { return sessionHeaders }

// Rows implements TableRenderer.
func (v sessionView) Rows() [][]string { return [][]string{v.row()} }

// SessionList is a list of sessions for table rendering.
type SessionList []sessionView

// Headers implements TableRenderer.
func (l SessionList) Headers() []string { return sessionHeaders }

// Rows implements TableRenderer.
func (l SessionList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, v := range l {
		rows = append(rows, v.row())
	}
	return rows
}

func (a *app) withStore(fn func(*db.DB) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	store, err := service.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		Short:   "Inspect and maintain the session store",
	}
	cmd.AddCommand(newSessionShowCmd(a), newSessionListCmd(a), newSessionPruneCmd(a))
	return cmd
}

func newSessionShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show the session stored for a local or RADIUS username",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store *db.DB) error {
				rec, err := store.GetByUsername(args[0])
				if errors.Is(err, db.ErrNotFound) {
					rec, err = store.GetByRemoteUsername(args[0])
				}
				if errors.Is(err, db.ErrNotFound) {
					return fmt.Errorf("no session for %q", args[0])
				}
				if err != nil {
					return err
				}
				return a.print(newSessionView(*rec))
			})
		},
	}
}

func newSessionListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		Long: `List every stored session. Tokens are never shown.

Examples:
  # List sessions as a table
  radius-virtual-ctl session list

  # List as YAML
  radius-virtual-ctl session list -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store *db.DB) error {
				records, err := store.List()
				if err != nil {
					return err
				}
				list := make(SessionList, 0, len(records))
				for _, r := range records {
					list = append(list, newSessionView(r))
				}
				if f, _ := output.ParseFormat(a.format); len(list) == 0 && f == output.FormatTable {
					fmt.Fprintln(a.out, "No sessions found.")
					return nil
				}
				return a.print(list)
			})
		},
	}
}

func newSessionPruneCmd(a *app) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete sessions whose last login is older than a duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be a positive duration")
			}
			return a.withStore(func(store *db.DB) error {
				n, err := store.Prune(a.now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Pruned %d session(s).\n", n)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Age threshold, e.g. 720h")
	return cmd
}
