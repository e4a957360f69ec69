/*
 * Copyright (c) 2026 SecareLupus
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 */

// Package service ties RADIUS authentication, identity mapping and the
// session store together for the PAM and NSS modules.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SecareLupus/radius-virtual/internal/config"
	"github.com/SecareLupus/radius-virtual/internal/db"
	"github.com/SecareLupus/radius-virtual/internal/handoff"
	"github.com/SecareLupus/radius-virtual/internal/identity"
	"github.com/SecareLupus/radius-virtual/internal/logger"
	"github.com/SecareLupus/radius-virtual/internal/lookup"
	"github.com/SecareLupus/radius-virtual/internal/radius"
	"github.com/google/uuid"
)

// Authenticator performs the RADIUS exchange.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*identity.RemoteIdentity, error)
}

// Hooks is what the PAM and NSS glue calls into.
type Hooks interface {
	AuthenticateAndStore(ctx context.Context, username, password string) (local, token string, err error)
	LookupByUsername(username string) (*identity.MappingRule, bool)
}

var _ Hooks = (*Service)(nil)

// Service holds one process's configuration. It keeps no store handle
// open between calls.
type Service struct {
	cfg   *config.Config
	auth  Authenticator
	rules []identity.MappingRule
}

// New returns a service using auth for RADIUS.
func New(cfg *config.Config, auth Authenticator) *Service {
	return &Service{cfg: cfg, auth: auth, rules: cfg.Rules()}
}

// Bootstrap loads the configuration at path, ignoring the environment, sets
// up logging under ident and builds the RADIUS client. It serves the
// privileged components.
func Bootstrap(path, ident string) (*Service, error) {
	cfg, err := config.LoadSystem(path)
	if err != nil {
		return nil, err
	}
	lc := cfg.Logging
	if err := logger.Init(logger.Config{Level: lc.Level, Format: lc.Format, Output: lc.Output, Identifier: ident}); err != nil {
		// Logging is best effort inside foreign processes.
		logger.Init(logger.Config{Level: "WARN", Output: "stderr", Identifier: ident})
	}
	client, err := radius.New(cfg.Radius)
	if err != nil {
		return nil, err
	}
	return New(cfg, client), nil
}

// Config returns the loaded configuration.
func (s *Service) Config() *config.Config { return s.cfg }

// OpenStore opens the session store named by cfg.
func OpenStore(cfg *config.Config) (*db.DB, error) {
	return db.Open(cfg.DB.Path,
		db.WithEncryptionKey(cfg.DB.EncryptionKey),
		db.WithBusyTimeout(cfg.DB.BusyTimeout),
	)
}

// ResolveAndStore authenticates username, maps the result to a local
// account and stores the session, returning it with a fresh token.
// The store is opened first so a broken store fails before any network
// round trip.
func (s *Service) ResolveAndStore(ctx context.Context, username, password string) (*identity.ResolvedSession, string, error) {
	log := logger.With("attempt", uuid.NewString(), "user", username)

	store, err := OpenStore(s.cfg)
	if err != nil {
		log.Error("cannot open session store", logger.Err(err))
		return nil, "", err
	}
	defer store.Close()

	remote, err := s.auth.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, radius.ErrRejected) {
			log.Info("radius rejected user")
		} else {
			log.Error("radius authentication failed", logger.Err(err))
		}
		return nil, "", err
	}
	log.Debug("radius accepted user", "attributes", len(remote.Attributes))

	session, ok := identity.Resolve(*remote, s.rules)
	if !ok {
		log.Warn("no mapping rule matches user")
		return nil, "", fmt.Errorf("%w: %s", identity.ErrNoMatch, username)
	}

	token, err := store.Upsert(*session)
	if err != nil {
		log.Error("cannot store session", logger.Err(err))
		return nil, "", err
	}
	log.Info("session stored", "local", session.Local.Username, "uid", session.Local.UID)
	return session, token, nil
}

// AuthenticateAndStore is ResolveAndStore for the PAM glue.
func (s *Service) AuthenticateAndStore(ctx context.Context, username, password string) (string, string, error) {
	session, token, err := s.ResolveAndStore(ctx, username, password)
	if err != nil {
		return "", "", err
	}
	return session.Local.Username, token, nil
}

// Authenticate runs the RADIUS exchange alone.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*identity.RemoteIdentity, error) {
	return s.auth.Authenticate(ctx, username, password)
}

// Resolve authenticates username and maps it without touching the store.
func (s *Service) Resolve(ctx context.Context, username, password string) (*identity.ResolvedSession, error) {
	remote, err := s.auth.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	session, ok := identity.Resolve(*remote, s.rules)
	if !ok {
		return nil, fmt.Errorf("%w: %s", identity.ErrNoMatch, username)
	}
	return session, nil
}

// LookupByUsername returns the stored identity for a local username.
func (s *Service) LookupByUsername(username string) (*identity.MappingRule, bool) {
	a, closer := s.adapter()
	defer closer()
	return a.ForDirectory(username)
}

// HasSession reports whether a session is stored for username.
func (s *Service) HasSession(username string) bool {
	a, closer := s.adapter()
	defer closer()
	return a.ForCredentialCheck(username)
}

// Passwd returns the passwd entry served for name.
func (s *Service) Passwd(name string) (*lookup.PasswdEntry, bool) {
	a, closer := s.adapter()
	defer closer()
	return a.Passwd(name)
}

// Shadow returns the shadow entry served for name.
func (s *Service) Shadow(name string) (*lookup.ShadowEntry, bool) {
	a, closer := s.adapter()
	defer closer()
	return a.Shadow(name)
}

// Opener returns the helper's store opener for this configuration.
func (s *Service) Opener() handoff.Opener {
	return func() (handoff.StoreCloser, time.Duration, error) {
		store, err := OpenStore(s.cfg)
		if err != nil {
			return nil, 0, err
		}
		return store, s.cfg.Handoff.MaxTokenAge, nil
	}
}

func (s *Service) adapter() (*lookup.Adapter, func()) {
	store, err := OpenStore(s.cfg)
	if err != nil {
		logger.Warn("cannot open session store", logger.Err(err))
		return lookup.New(unavailable{err}, s.cfg.NSS), func() {}
	}
	return lookup.New(store, s.cfg.NSS), func() { store.Close() }
}

// unavailable stands in for a store that could not be opened.
type unavailable struct{ err error }

func (u unavailable) GetByUsername(string) (*db.Record, error)       { return nil, u.err }
func (u unavailable) GetByRemoteUsername(string) (*db.Record, error) { return nil, u.err }
