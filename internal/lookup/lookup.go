/*
 * Copyright (c) 2026 SecareLupus
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 */

// Package lookup answers directory and credential queries from stored
// sessions. Every store failure reads as "not found"; NSS and PAM callers
// have no way to report anything richer.
package lookup

import (
	"errors"
	"fmt"

	"github.com/SecareLupus/radius-virtual/internal/config"
	"github.com/SecareLupus/radius-virtual/internal/db"
	"github.com/SecareLupus/radius-virtual/internal/identity"
	"github.com/SecareLupus/radius-virtual/internal/logger"
)

// Store is the read side of the session store.
type Store interface {
	GetByUsername(username string) (*db.Record, error)
	GetByRemoteUsername(remote string) (*db.Record, error)
}

// PasswdEntry is one passwd(5) record.
type PasswdEntry struct {
	Name   string
	Passwd string
	UID    uint32
	GID    uint32
	Gecos  string
	Home   string
	Shell  string
}

// ShadowEntry is one shadow(5) record. Aging fields of -1 mean unset.
type ShadowEntry struct {
	Name       string
	Hash       string
	LastChange int64
	Min        int64
	Max        int64
	Warn       int64
	Inactive   int64
	Expire     int64
}

// Adapter serves lookups for one store handle.
type Adapter struct {
	store Store
	nss   config.NSSConfig
}

// New returns an adapter over store shaping entries with nss.
func New(store Store, nss config.NSSConfig) *Adapter {
	return &Adapter{store: store, nss: nss}
}

// ForDirectory returns the mapped identity stored for a local username.
func (a *Adapter) ForDirectory(username string) (*identity.MappingRule, bool) {
	rec, err := a.store.GetByUsername(username)
	if err != nil {
		logMiss("directory", username, err)
		return nil, false
	}
	rule := rec.Session.Local.Clone()
	return &rule, true
}

// ForCredentialCheck reports whether a session exists for username, given
// either as the local account or as the name typed at login.
func (a *Adapter) ForCredentialCheck(username string) bool {
	_, ok := a.find(username)
	return ok
}

// find looks name up as a local username, then as the name typed at login.
func (a *Adapter) find(name string) (*db.Record, bool) {
	rec, err := a.store.GetByUsername(name)
	if err == nil {
		return rec, true
	}
	if !errors.Is(err, db.ErrNotFound) {
		logMiss("session", name, err)
		return nil, false
	}
	rec, err = a.store.GetByRemoteUsername(name)
	if err != nil {
		logMiss("session", name, err)
		return nil, false
	}
	return rec, true
}

// Passwd returns the passwd entry for name. Unknown names get the
// placeholder entry when it is enabled.
func (a *Adapter) Passwd(name string) (*PasswdEntry, bool) {
	rec, ok := a.find(name)
	if !ok {
		if !a.nss.Placeholder {
			return nil, false
		}
		u := a.nss.DefaultUser
		return &PasswdEntry{
			Name:   u.Name,
			Passwd: "x",
			UID:    u.UID,
			GID:    u.GID,
			Gecos:  u.Gecos,
			Home:   u.Home,
			Shell:  a.nss.Shell,
		}, true
	}

	local := rec.Session.Local
	return &PasswdEntry{
		Name:   local.Username,
		Passwd: "x",
		UID:    local.UID,
		GID:    local.GID,
		Gecos:  fmt.Sprintf("Mapped RADIUS account %s->%s", name, local.Username),
		Home:   local.Home,
		Shell:  a.nss.Shell,
	}, true
}

// Shadow returns a locked shadow entry for a mapped account. Passwords are
// checked by RADIUS, never against shadow.
func (a *Adapter) Shadow(name string) (*ShadowEntry, bool) {
	rec, ok := a.find(name)
	if !ok {
		return nil, false
	}
	return &ShadowEntry{
		Name:       rec.Session.Local.Username,
		Hash:       "!",
		LastChange: -1,
		Min:        -1,
		Max:        -1,
		Warn:       -1,
		Inactive:   -1,
		Expire:     -1,
	}, true
}

func logMiss(kind, name string, err error) {
	if errors.Is(err, db.ErrNotFound) {
		logger.Debug("lookup miss", "kind", kind, "user", name)
		return
	}
	logger.Warn("lookup failed", "kind", kind, "user", name, logger.Err(err))
}
