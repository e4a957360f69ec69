/*
 * Copyright (c) 2026 SecareLupus
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 */

//go:build linux

package handoff

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// OS is the real process. Credential changes go through the syscall
// package so they apply to every runtime thread.
type OS struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewOS returns an OS wired to the standard streams.
func NewOS() *OS {
	return &OS{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

func (*OS) Getenv(key string) string       { return os.Getenv(key) }
func (*OS) Setenv(key, value string) error { return os.Setenv(key, value) }
func (*OS) Unsetenv(key string) error      { return os.Unsetenv(key) }
func (*OS) Chdir(dir string) error         { return unix.Chdir(dir) }
func (*OS) Setgroups(gids []int) error     { return syscall.Setgroups(gids) }

// Setuid sets the real, effective and saved uid.
func (*OS) Setuid(uid int) error { return syscall.Setresuid(uid, uid, uid) }

// Setgid sets the real, effective and saved gid.
func (*OS) Setgid(gid int) error { return syscall.Setresgid(gid, gid, gid) }

func (o *OS) Exec(path string, argv []string) (int, error) {
	cmd := &exec.Cmd{
		Path:   path,
		Args:   argv,
		Env:    os.Environ(),
		Stdin:  o.Stdin,
		Stdout: o.Stdout,
		Stderr: o.Stderr,
	}
	err := cmd.Run()
	var exit *exec.ExitError
	if errors.As(err, &exit) {
		if ws, ok := exit.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal()), nil
		}
		return exit.ExitCode(), nil
	}
	if err != nil {
		return 1, err
	}
	return 0, nil
}
