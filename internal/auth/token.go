/*
 * Copyright (c) 2026 SecareLupus
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 */

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
)

// TokenLength is the number of characters in a handoff token.
const TokenLength = 32

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewToken returns a random alphanumeric string of TokenLength characters.
func NewToken() (string, error) {
	return NewTokenN(TokenLength)
}

// NewTokenN returns a random alphanumeric string of n characters drawn
// uniformly from crypto/rand.
func NewTokenN(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid token length %d", n)
	}
	out := make([]byte, 0, n)
	buf := make([]byte, n+n/2)
	// 248 is the largest multiple of 62 below 256; rejecting bytes above it
	// keeps every character equally likely.
	const limit = 256 - 256%len(alphanumeric)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphanumeric[int(b)%len(alphanumeric)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// TokenEqual compares two tokens in time independent of where they differ.
func TokenEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
