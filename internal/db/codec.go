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
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/SecareLupus/radius-virtual/internal/auth"
	"github.com/SecareLupus/radius-virtual/internal/identity"
	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Every serialized session starts with a format byte.
const (
	blobPlain  byte = 1
	blobSealed byte = 2
)

var hkdfInfo = []byte("radius-virtual session blob v1")

// sealedAD binds the format byte to the ciphertext.
var sealedAD = []byte{blobSealed}

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

var errSealedNoKey = errors.New("session blob is sealed but no encryption key is configured")

// codec turns sessions into the stored blob and back.
type codec struct {
	key []byte // derived XChaCha20-Poly1305 key, nil when sealing is off
}

func newCodec(secret []byte) (*codec, error) {
	if len(secret) == 0 {
		return &codec{}, nil
	}
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, secret, nil, hkdfInfo)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return &codec{key: key}, nil
}

func (c *codec) encode(s identity.ResolvedSession) ([]byte, error) {
	raw, err := encMode.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	if c.key == nil {
		return append([]byte{blobPlain}, raw...), nil
	}
	defer auth.Zero(raw)

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 1+aead.NonceSize(), 1+aead.NonceSize()+len(raw)+aead.Overhead())
	out[0] = blobSealed
	nonce := out[1:]
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return aead.Seal(out, nonce, raw, sealedAD), nil
}

func (c *codec) decode(blob []byte) (identity.ResolvedSession, error) {
	var s identity.ResolvedSession
	if len(blob) == 0 {
		return s, errors.New("empty session blob")
	}

	raw := blob[1:]
	switch blob[0] {
	case blobPlain:
	case blobSealed:
		if c.key == nil {
			return s, errSealedNoKey
		}
		aead, err := chacha20poly1305.NewX(c.key)
		if err != nil {
			return s, err
		}
		if len(raw) < aead.NonceSize() {
			return s, errors.New("sealed session blob too short")
		}
		nonce, ct := raw[:aead.NonceSize()], raw[aead.NonceSize():]
		raw, err = aead.Open(nil, nonce, ct, sealedAD)
		if err != nil {
			return s, fmt.Errorf("open sealed session: %w", err)
		}
		defer auth.Zero(raw)
	default:
		return s, fmt.Errorf("unknown session blob format %d", blob[0])
	}

	if err := cbor.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

func (c *codec) close() {
	auth.Zero(c.key)
}
