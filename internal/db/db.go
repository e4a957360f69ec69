/*
 * Copyright (c) 2026 SecareLupus
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 */

package db

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/SecareLupus/radius-virtual/internal/auth"
	"github.com/SecareLupus/radius-virtual/internal/identity"

	// Driver registration
	_ "modernc.org/sqlite"
)

// SchemaVersion is the store layout this code reads and writes.
const SchemaVersion = 1

// FileMode restricts the store to its owner; it holds tokens.
const FileMode os.FileMode = 0o600

var (
	// ErrNotFound covers an absent row and a token mismatch alike.
	ErrNotFound = errors.New("session not found")
	// ErrIncompatibleSchema means the file was written by another layout.
	ErrIncompatibleSchema = errors.New("incompatible session store schema")
	// ErrStoreIO wraps every failure of the underlying storage.
	ErrStoreIO = errors.New("session store failure")
)

// Record is one stored session row.
type Record struct {
	Username       string
	RemoteUsername string
	LastLogin      time.Time
	Session        identity.ResolvedSession
	Token          string
}

// DB is the session store. Each handle serves a single short-lived caller.
type DB struct {
	*sql.DB
	codec *codec
	now   func() time.Time
}

// Option customises Open.
type Option func(*options)

type options struct {
	encryptionKey []byte
	now           func() time.Time
	busyTimeout   time.Duration
}

// WithEncryptionKey seals serialized sessions with a key derived from secret.
func WithEncryptionKey(secret string) Option {
	return func(o *options) {
		if secret != "" {
			o.encryptionKey = []byte(secret)
		}
	}
}

// WithClock overrides the time source used for last_login.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithBusyTimeout sets how long a writer waits on another process's lock.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

// Open opens or creates the store at path and checks its schema version.
// A fresh file is initialised; a file with any other version is rejected
// without being written to.
func Open(path string, opts ...Option) (*DB, error) {
	o := options{now: time.Now, busyTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	if strings.ContainsAny(path, "?#") {
		return nil, fmt.Errorf("%w: path %q must not contain '?' or '#'", ErrStoreIO, path)
	}

	if err := prepareFile(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn(path, o.busyTimeout))
	if err != nil {
		return nil, storeErr("open db", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, storeErr("ping db", err)
	}

	c, err := newCodec(o.encryptionKey)
	if err != nil {
		db.Close()
		return nil, err
	}

	d := &DB{DB: db, codec: c, now: o.now}
	if err := d.migrate(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func dsn(path string, busy time.Duration) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	q.Add("_pragma", "synchronous(FULL)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// prepareFile creates the store owner-only and tightens an existing file.
func prepareFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, FileMode)
	if err != nil {
		return storeErr("create db file", err)
	}
	defer f.Close()
	if err := f.Chmod(FileMode); err != nil {
		return storeErr("chmod db file", err)
	}
	return nil
}

func userVersion(q interface {
	QueryRow(string, ...any) *sql.Row
}) (int, error) {
	var v int
	if err := q.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, storeErr("read schema version", err)
	}
	return v, nil
}

func (d *DB) migrate() error {
	v, err := userVersion(d.DB)
	if err != nil {
		return err
	}
	switch v {
	case SchemaVersion:
		return nil
	case 0:
	default:
		return fmt.Errorf("%w: found version %d, expected %d", ErrIncompatibleSchema, v, SchemaVersion)
	}

	tx, err := d.Begin()
	if err != nil {
		return storeErr("begin init", err)
	}
	defer tx.Rollback()

	// Another process may have initialised the file since the first read.
	v, err = userVersion(tx)
	if err != nil {
		return err
	}
	switch v {
	case SchemaVersion:
		return nil
	case 0:
	default:
		return fmt.Errorf("%w: found version %d, expected %d", ErrIncompatibleSchema, v, SchemaVersion)
	}

	schemas := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		remote_username TEXT NOT NULL,
		last_login INTEGER NOT NULL, -- Unix timestamp
		serialized_session BLOB NOT NULL,
		token TEXT NOT NULL
	);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS sessions_username ON sessions(username);`,
		`CREATE INDEX IF NOT EXISTS sessions_remote_username ON sessions(remote_username, last_login);`,
		fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion),
	}
	for _, s := range schemas {
		if _, err := tx.Exec(s); err != nil {
			return storeErr("init schema", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit init", err)
	}
	return nil
}

// Upsert stores session under its local username, replacing any earlier
// row and its token, and returns the newly issued token.
func (d *DB) Upsert(session identity.ResolvedSession) (string, error) {
	if session.Local.Username == "" {
		return "", errors.New("session has no local username")
	}

	token, err := auth.NewToken()
	if err != nil {
		return "", err
	}
	blob, err := d.codec.encode(session)
	if err != nil {
		return "", err
	}

	_, err = d.Exec(`
		INSERT INTO sessions (username, remote_username, last_login, serialized_session, token)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET
		remote_username = excluded.remote_username,
		last_login = excluded.last_login,
		serialized_session = excluded.serialized_session,
		token = excluded.token
	`, session.Local.Username, session.Remote.Username, d.now().Unix(), blob, token)
	if err != nil {
		return "", storeErr("upsert session", err)
	}
	return token, nil
}

const selectRecord = `SELECT username, remote_username, last_login, serialized_session, token FROM sessions`

// GetByUsername returns the session stored for a local username.
func (d *DB) GetByUsername(username string) (*Record, error) {
	return d.scanOne(d.QueryRow(selectRecord+" WHERE username = ?", username))
}

// GetByUsernameAndToken returns the session only if token is the one most
// recently issued for username.
func (d *DB) GetByUsernameAndToken(username, token string) (*Record, error) {
	rec, err := d.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if !auth.TokenEqual(rec.Token, token) {
		return nil, ErrNotFound
	}
	return rec, nil
}

// GetByRemoteUsername returns the most recent session created by a RADIUS
// login for the given pre-mapping username.
func (d *DB) GetByRemoteUsername(remote string) (*Record, error) {
	return d.scanOne(d.QueryRow(selectRecord+" WHERE remote_username = ? ORDER BY last_login DESC, id DESC LIMIT 1", remote))
}

// List returns every stored session ordered by local username.
func (d *DB) List() ([]Record, error) {
	rows, err := d.Query(selectRecord + " ORDER BY username ASC")
	if err != nil {
		return nil, storeErr("list sessions", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := d.scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list sessions", err)
	}
	return records, nil
}

// Prune deletes sessions whose last login is before cutoff.
func (d *DB) Prune(cutoff time.Time) (int64, error) {
	res, err := d.Exec("DELETE FROM sessions WHERE last_login < ?", cutoff.Unix())
	if err != nil {
		return 0, storeErr("prune sessions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("prune sessions", err)
	}
	return n, nil
}

// Close releases the handle and wipes key material.
func (d *DB) Close() error {
	d.codec.close()
	return d.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func (d *DB) scanOne(row *sql.Row) (*Record, error) {
	rec, err := d.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (d *DB) scan(s scanner) (*Record, error) {
	var (
		rec       Record
		lastLogin int64
		blob      []byte
	)
	if err := s.Scan(&rec.Username, &rec.RemoteUsername, &lastLogin, &blob, &rec.Token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, storeErr("read session", err)
	}
	session, err := d.codec.decode(blob)
	if err != nil {
		return nil, storeErr("read session", err)
	}
	rec.LastLogin = time.Unix(lastLogin, 0)
	rec.Session = session
	return &rec, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreIO, err)
}
