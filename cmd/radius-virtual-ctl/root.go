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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/SecareLupus/radius-virtual/internal/cli/output"
	"github.com/SecareLupus/radius-virtual/internal/config"
	"github.com/SecareLupus/radius-virtual/internal/logger"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const ident = "radius_virtual_ctl"

// app carries the streams and global flags shared by every command.
type app struct {
	in  io.Reader
	out io.Writer
	now func() time.Time

	// readPassword prompts on the controlling terminal.
	readPassword func(prompt string) (string, error)

	configPath string
	format     string
	verbose    bool
}

func newApp() *app {
	a := &app{in: os.Stdin, out: os.Stdout, now: time.Now}
	a.readPassword = a.promptPassword
	return a
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "radius-virtual-ctl",
		Short: "Manage RADIUS-backed virtual users",
		Long: `radius-virtual-ctl tests RADIUS authentication and account mapping,
inspects and prunes the session store, and validates the configuration
shared by pam_radius_virtual, nss_radius_virtual and radius_shell.

Use "radius-virtual-ctl [command] --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "WARN"
			if a.verbose {
				level = "DEBUG"
			}
			return logger.Init(logger.Config{Level: level, Output: "stderr", Identifier: ident})
		},
	}
	root.SetOut(a.out)
	root.SetIn(a.in)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultPath, "Configuration file")
	root.PersistentFlags().StringVarP(&a.format, "output", "o", "table", "Output format (table|json|yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log debug detail to stderr")

	root.AddCommand(
		newAuthCmd(a),
		newResolveCmd(a),
		newSessionCmd(a),
		newConfigCmd(a),
		newLogsCmd(a),
		newVersionCmd(a),
	)
	root.CompletionOptions.DisableDefaultCmd = true
	return root
}

func (a *app) loadConfig() (*config.Config, error) {
	return config.Load(a.configPath)
}

func (a *app) print(data any) error {
	f, err := output.ParseFormat(a.format)
	if err != nil {
		return err
	}
	return output.Print(a.out, f, data)
}

// promptPassword reads without echo from a terminal, or a single line from
// piped input.
func (a *app) promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(password), nil
	}

	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.out, "radius-virtual-ctl %s\n", config.Version)
		},
	}
}
