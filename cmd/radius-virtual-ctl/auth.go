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

	"github.com/SecareLupus/radius-virtual/internal/config"
	"github.com/SecareLupus/radius-virtual/internal/identity"
	"github.com/SecareLupus/radius-virtual/internal/radius"
	"github.com/SecareLupus/radius-virtual/internal/service"
	"github.com/spf13/cobra"
)

type attributeView struct {
	Attribute string `json:"attribute" yaml:"attribute"`
	Value     string `json:"value" yaml:"value"`
}

type remoteView struct {
	Username   string          `json:"username" yaml:"username"`
	Attributes []attributeView `json:"attributes" yaml:"attributes"`
}

func newRemoteView(r identity.RemoteIdentity) remoteView {
	v := remoteView{Username: r.Username, Attributes: make([]attributeView, 0, len(r.Attributes))}
	for _, a := range r.Attributes {
		v.Attributes = append(v.Attributes, attributeView{
			Attribute: a.Key().String(),
			Value:     config.HexBytes(a.Value).String(),
		})
	}
	return v
}

// Headers implements TableRenderer.
func (v remoteView) Headers() []string { return []string{"USERNAME", "ATTRIBUTE", "VALUE"} }

// Rows implements TableRenderer.
func (v remoteView) Rows() [][]string {
	if len(v.Attributes) == 0 {
		return [][]string{{v.Username, "-", "-"}}
	}
	rows := make([][]string, 0, len(v.Attributes))
	for _, a := range v.Attributes {
		rows = append(rows, []string{v.Username, a.Attribute, a.Value})
	}
	return rows
}

type ruleView struct {
	Username  string `json:"username" yaml:"username"`
	UID       uint32 `json:"uid" yaml:"uid"`
	Group     string `json:"group" yaml:"group"`
	GID       uint32 `json:"gid" yaml:"gid"`
	Home      string `json:"home" yaml:"home"`
	Shell     string `json:"shell" yaml:"shell"`
	Attribute string `json:"attribute" yaml:"attribute"`
	Value     string `json:"attribute_value" yaml:"attribute_value"`
}

func newRuleView(r identity.MappingRule) ruleView {
	return ruleView{
		Username:  r.Username,
		UID:       r.UID,
		Group:     r.Group,
		GID:       r.GID,
		Home:      r.Home,
		Shell:     r.Shell,
		Attribute: r.Attribute.String(),
		Value:     config.HexBytes(r.Value).String(),
	}
}

type resolveView struct {
	Remote remoteView `json:"remote" yaml:"remote"`
	Local  ruleView   `json:"local" yaml:"local"`
}

// Headers implements TableRenderer.
func (v resolveView) Headers() []string {
	return []string{"REMOTE", "LOCAL", "UID", "GROUP", "GID", "HOME", "SHELL", "MATCHED"}
}

// Rows implements TableRenderer.
func (v resolveView) Rows() [][]string {
	l := v.Local
	return [][]string{{
		v.Remote.Username, l.Username,
		strconv.FormatUint(uint64(l.UID), 10), l.Group,
		strconv.FormatUint(uint64(l.GID), 10), l.Home, l.Shell,
		l.Attribute + "=" + l.Value,
	}}
}

// newService builds a service with a live RADIUS client.
func (a *app) newService() (*service.Service, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	client, err := radius.New(cfg.Radius)
	if err != nil {
		return nil, err
	}
	return service.New(cfg, client), nil
}

func (a *app) credentials(username string) (string, error) {
	if username == "" {
		return "", errors.New("--username is required")
	}
	return a.readPassword(fmt.Sprintf("Password for %s: ", username))
}

func newAuthCmd(a *app) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate against RADIUS and print the returned identity",
		Long: `Send a PAP Access-Request for a user and print the identity returned by
the server. Nothing is stored.

Examples:
  # Print the attributes granted to alice
  radius-virtual-ctl auth --username alice -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.newService()
			if err != nil {
				return err
			}
			password, err := a.credentials(username)
			if err != nil {
				return err
			}
			remote, err := svc.Authenticate(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("authenticate %s: %w", username, err)
			}
			return a.print(newRemoteView(*remote))
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "RADIUS username")
	return cmd
}

func newResolveCmd(a *app) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Authenticate and show which local account the user maps to",
		Long: `Authenticate a user against RADIUS and show the first mapping rule
matching the returned attributes. Nothing is stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.newService()
			if err != nil {
				return err
			}
			password, err := a.credentials(username)
			if err != nil {
				return err
			}
			session, err := svc.Resolve(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", username, err)
			}
			return a.print(resolveView{Remote: newRemoteView(session.Remote), Local: newRuleView(session.Local)})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "RADIUS username")
	return cmd
}
