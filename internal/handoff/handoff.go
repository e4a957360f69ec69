/*
 * Copyright (c) 2026 SecareLupus
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 */

// Package handoff carries an authenticated session from the PAM module to
// the login shell helper and performs the helper's privilege drop.
package handoff

import (
	"errors"
	"fmt"
	"time"

	"github.com/SecareLupus/radius-virtual/internal/db"
)

// Environment variables set by the PAM module via pam_putenv.
const (
	EnvUser  = "RADIUS_USER"        // name typed at login, before mapping
	EnvToken = "RADIUS_USER_COOKIE" // single session token
)

// State is the handoff lifecycle of one login.
type State int

const (
	Unauthenticated State = iota
	PendingHandoff
	Redeemed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case PendingHandoff:
		return "pending-handoff"
	case Redeemed:
		return "redeemed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrNoHandoff means the environment carries no session to redeem.
	ErrNoHandoff = errors.New("no radius session in environment")
	// ErrTokenExpired means the token is older than the configured maximum.
	// It wraps db.ErrNotFound so callers treat it as any other bad token.
	ErrTokenExpired = fmt.Errorf("%w: token expired", db.ErrNotFound)
)

// Export publishes the handoff variables through setenv, which is
// pam_putenv in production. The previous state is left unchanged on failure.
func Export(setenv func(key, value string) error, user, token string) (State, error) {
	if user == "" || token == "" {
		return Unauthenticated, ErrNoHandoff
	}
	if err := setenv(EnvUser, user); err != nil {
		return Unauthenticated, fmt.Errorf("export %s: %w", EnvUser, err)
	}
	if err := setenv(EnvToken, token); err != nil {
		return Unauthenticated, fmt.Errorf("export %s: %w", EnvToken, err)
	}
	return PendingHandoff, nil
}

// Store is the read side of the session store used for redemption.
type Store interface {
	GetByRemoteUsername(remote string) (*db.Record, error)
	GetByUsernameAndToken(username, token string) (*db.Record, error)
}

// Redeemer validates a handoff token against the store.
type Redeemer struct {
	Store Store
	// MaxAge rejects tokens issued longer ago than this. Zero means tokens
	// never expire; they are also never consumed by redemption.
	MaxAge time.Duration
	Now    func() time.Time
}

// Redeem returns the session for the pre-mapping username user if token is
// the one most recently issued for it. A name that is already the local
// username is accepted too. Every failure to match is db.ErrNotFound.
func (r *Redeemer) Redeem(user, token string) (*db.Record, error) {
	if user == "" || token == "" {
		return nil, ErrNoHandoff
	}

	local := user
	rec, err := r.Store.GetByRemoteUsername(user)
	switch {
	case err == nil:
		local = rec.Username
	case !errors.Is(err, db.ErrNotFound):
		return nil, err
	}

	rec, err = r.Store.GetByUsernameAndToken(local, token)
	if err != nil && local != user && errors.Is(err, db.ErrNotFound) {
		rec, err = r.Store.GetByUsernameAndToken(user, token)
	}
	if err != nil {
		return nil, err
	}

	if r.MaxAge > 0 {
		now := time.Now
		if r.Now != nil {
			now = r.Now
		}
		if now().Sub(rec.LastLogin) > r.MaxAge {
			return nil, ErrTokenExpired
		}
	}
	return rec, nil
}
