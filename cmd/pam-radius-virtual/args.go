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
	"strings"

	"github.com/SecareLupus/radius-virtual/internal/config"
)

type options struct {
	config string
	debug  bool
}

// parseArgs reads module arguments from the PAM stack line.
// Unknown arguments are ignored, as PAM modules customarily do.
func parseArgs(args []string) options {
	opts := options{config: config.DefaultPath}
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "config="):
			if p := strings.TrimPrefix(arg, "config="); p != "" {
				opts.config = p
			}
		case arg == "debug":
			opts.debug = true
		}
	}
	return opts
}
