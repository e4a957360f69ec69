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

	"github.com/SecareLupus/radius-virtual/internal/cli/output"
	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}
	cmd.AddCommand(newConfigCheckCmd(a))
	return cmd
}

func newConfigCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load and validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			servers := make([]string, 0, len(cfg.Radius.Servers))
			for _, s := range cfg.Radius.Servers {
				servers = append(servers, fmt.Sprintf("%s (%s)", s.Address, cfg.Radius.ServerTimeout(s)))
			}
			return output.SimpleTable(a.out, [][2]string{
				{"Config", a.configPath},
				{"Store", cfg.DB.Path},
				{"Sealed", fmt.Sprint(cfg.DB.EncryptionKey != "")},
				{"Servers", fmt.Sprint(servers)},
				{"Mapping rules", fmt.Sprint(len(cfg.Users))},
				{"NSS shell", cfg.NSS.Shell},
				{"Status", "OK"},
			})
		},
	}
}
