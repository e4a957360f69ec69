/*
 * Copyright (c) 2026 SecareLupus
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 */

// Command radius-shell is the login shell of every mapped account. It is
// installed setuid root as /usr/bin/radius_shell, redeems the session token
// left by the PAM module, becomes the mapped user and execs their shell.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/SecareLupus/radius-virtual/internal/config"
	"github.com/SecareLupus/radius-virtual/internal/handoff"
	"github.com/SecareLupus/radius-virtual/internal/logger"
	"github.com/SecareLupus/radius-virtual/internal/service"
)

const ident = "radius_shell"

func main() {
	os.Exit(run())
}

func run() int {
	logger.Init(logger.Config{Level: "INFO", Output: "auto", Identifier: ident})

	path := config.DefaultPath
	if p := os.Getenv("RADIUS_VIRTUAL_CONFIG"); p != "" && os.Geteuid() == os.Getuid() {
		path = p
	}

	h := &handoff.Helper{
		Sys: handoff.NewOS(),
		// Configuration is read after escalation.
		Open: func() (handoff.StoreCloser, time.Duration, error) {
			svc, err := service.Bootstrap(path, ident)
			if err != nil {
				return nil, 0, err
			}
			return svc.Opener()()
		},
	}

	code, err := h.Run(os.Args[0], os.Args[1:])
	if err != nil {
		logger.Error("login handoff failed", "state", h.State().String(), logger.Err(err))
		fmt.Fprintln(os.Stderr, "radius_shell: login failed")
		return 1
	}
	return code
}
