/*
 * Copyright (c) 2026 SecareLupus
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 */

package handoff

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/SecareLupus/radius-virtual/internal/identity"
	"github.com/SecareLupus/radius-virtual/internal/logger"
)

// System is the process state the helper touches, in the order it does.
type System interface {
	Getenv(key string) string
	Setenv(key, value string) error
	Unsetenv(key string) error
	Setuid(uid int) error
	Setgid(gid int) error
	Setgroups(gids []int) error
	Chdir(dir string) error
	// Exec runs path with argv and the current environment and waits for it.
	Exec(path string, argv []string) (exitCode int, err error)
}

// StoreCloser is a store handle opened by the helper after escalation.
type StoreCloser interface {
	Store
	io.Closer
}

// Opener loads configuration and opens the store. It runs as root, after
// escalation, because both files are readable by root only.
type Opener func() (StoreCloser, time.Duration, error)

// Helper is the login shell installed setuid root for mapped accounts.
type Helper struct {
	Sys  System
	Open Opener
	Now  func() time.Time

	state State
}

// State reports how far the last Run got.
func (h *Helper) State() State { return h.state }

// Run redeems the session token, becomes the mapped user and runs the
// user's shell, returning its exit status. Any failure before the shell
// starts aborts the sequence; the shell is never started with partial
// privileges.
func (h *Helper) Run(argv0 string, args []string) (int, error) {
	h.state = Unauthenticated
	user := h.Sys.Getenv(EnvUser)
	token := h.Sys.Getenv(EnvToken)
	if user == "" || token == "" {
		return 1, ErrNoHandoff
	}
	h.state = PendingHandoff
	log := logger.With("user", user)

	if err := h.Sys.Setuid(0); err != nil {
		return 1, fmt.Errorf("escalate privileges: %w", err)
	}

	session, err := h.redeem(user, token)
	if err != nil {
		return 1, err
	}
	if err := h.Sys.Unsetenv(EnvToken); err != nil {
		return 1, fmt.Errorf("unset %s: %w", EnvToken, err)
	}
	h.state = Redeemed

	local := session.Local
	log = log.With("local", local.Username, "uid", local.UID, "gid", local.GID)

	if err := h.become(local); err != nil {
		log.Error("privilege drop failed", logger.Err(err))
		return 1, err
	}
	if err := h.Sys.Chdir(local.Home); err != nil {
		return 1, fmt.Errorf("chdir %s: %w", local.Home, err)
	}
	if err := h.setEnv(local); err != nil {
		return 1, err
	}

	log.Info("starting shell", "shell", local.Shell)
	code, err := h.Sys.Exec(local.Shell, shellArgv(argv0, local.Shell, args))
	if err != nil {
		return 1, fmt.Errorf("run shell %s: %w", local.Shell, err)
	}
	return code, nil
}

func (h *Helper) redeem(user, token string) (*identity.ResolvedSession, error) {
	store, maxAge, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer store.Close()

	r := Redeemer{Store: store, MaxAge: maxAge, Now: h.Now}
	rec, err := r.Redeem(user, token)
	if err != nil {
		return nil, fmt.Errorf("redeem session: %w", err)
	}
	return &rec.Session, nil
}

// become drops root for good: supplementary groups, then the group, then
// the user. The group must change while still root.
func (h *Helper) become(local identity.MappingRule) error {
	gid, uid := int(local.GID), int(local.UID)
	if err := h.Sys.Setgroups([]int{gid}); err != nil {
		return fmt.Errorf("setgroups: %w", err)
	}
	if err := h.Sys.Setgid(gid); err != nil {
		return fmt.Errorf("setgid %d: %w", gid, err)
	}
	if err := h.Sys.Setuid(uid); err != nil {
		return fmt.Errorf("setuid %d: %w", uid, err)
	}
	return nil
}

func (h *Helper) setEnv(local identity.MappingRule) error {
	vars := [][2]string{
		{"HOME", local.Home},
		{"USER", local.Username},
		{"LOGNAME", local.Username},
	}
	if mail := h.Sys.Getenv("MAIL"); mail != "" {
		vars = append(vars, [2]string{"MAIL", filepath.Join(filepath.Dir(mail), local.Username)})
	}
	for _, kv := range vars {
		if err := h.Sys.Setenv(kv[0], kv[1]); err != nil {
			return fmt.Errorf("set %s: %w", kv[0], err)
		}
	}
	return nil
}

// shellArgv keeps login(1)'s convention: a leading "-" in our own argv[0]
// asks for a login shell, so it is passed on to the real shell.
func shellArgv(argv0, shell string, args []string) []string {
	name := filepath.Base(shell)
	if strings.HasPrefix(filepath.Base(argv0), "-") {
		name = "-" + name
	}
	return append([]string{name}, args...)
}
