/*
 * Copyright (c) 2026 SecareLupus
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 */

// Package identity resolves an authenticated RADIUS identity to the local
// account configured for it.
package identity

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoMatch is returned by callers that treat an unmapped identity as a
// denial. Resolve itself never returns it.
var ErrNoMatch = errors.New("no mapping rule matches remote identity")

// Attribute is a single vendor attribute from an Access-Accept.
// Standard (non vendor-specific) attributes use vendor 0.
type Attribute struct {
	Vendor  uint32 `cbor:"1,keyasint" json:"vendor"`
	Subtype uint8  `cbor:"2,keyasint" json:"subtype"`
	Value   []byte `cbor:"3,keyasint" json:"value"`
}

// Key returns the (vendor, subtype) address of the attribute.
func (a Attribute) Key() AttributeKey {
	return AttributeKey{Vendor: a.Vendor, Subtype: a.Subtype}
}

// RemoteIdentity is what the RADIUS server told us about a user.
type RemoteIdentity struct {
	Username   string      `cbor:"1,keyasint" json:"username"`
	Attributes []Attribute `cbor:"2,keyasint" json:"attributes"`
}

// AttributeKey addresses one attribute type.
type AttributeKey struct {
	Vendor  uint32 `cbor:"1,keyasint" json:"vendor"`
	Subtype uint8  `cbor:"2,keyasint" json:"subtype"`
}

// String formats the key as "vendor.subtype".
func (k AttributeKey) String() string {
	return fmt.Sprintf("%d.%d", k.Vendor, k.Subtype)
}

// ParseAttributeKey parses the "vendor.subtype" notation used in configuration.
func ParseAttributeKey(s string) (AttributeKey, error) {
	vendor, subtype, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || strings.Contains(subtype, ".") {
		return AttributeKey{}, fmt.Errorf("invalid attribute format %q, want vendor.subtype", s)
	}
	v, err := strconv.ParseUint(vendor, 10, 32)
	if err != nil {
		return AttributeKey{}, fmt.Errorf("invalid attribute vendor %q: %w", vendor, err)
	}
	st, err := strconv.ParseUint(subtype, 10, 8)
	if err != nil {
		return AttributeKey{}, fmt.Errorf("invalid attribute subtype %q: %w", subtype, err)
	}
	return AttributeKey{Vendor: uint32(v), Subtype: uint8(st)}, nil
}

// MappingRule maps one attribute value to a local identity.
type MappingRule struct {
	Username  string       `cbor:"1,keyasint" json:"username"`
	UID       uint32       `cbor:"2,keyasint" json:"uid"`
	Group     string       `cbor:"3,keyasint" json:"group"`
	GID       uint32       `cbor:"4,keyasint" json:"gid"`
	Home      string       `cbor:"5,keyasint" json:"home"`
	Shell     string       `cbor:"6,keyasint" json:"shell"`
	Attribute AttributeKey `cbor:"7,keyasint" json:"attribute"`
	Value     []byte       `cbor:"8,keyasint" json:"attribute_value"`
}

// Matches reports whether attr satisfies the rule.
func (r MappingRule) Matches(attr Attribute) bool {
	return attr.Key() == r.Attribute && bytes.Equal(attr.Value, r.Value)
}

// Clone returns a deep copy of the rule.
func (r MappingRule) Clone() MappingRule {
	c := r
	c.Value = bytes.Clone(r.Value)
	return c
}

// ResolvedSession pairs a remote identity with the local rule it matched.
type ResolvedSession struct {
	Remote RemoteIdentity `cbor:"1,keyasint" json:"remote"`
	Local  MappingRule    `cbor:"2,keyasint" json:"local"`
}

// Resolve returns the session for the first rule, in configured order, that
// any attribute of remote satisfies. Attribute order does not matter.
func Resolve(remote RemoteIdentity, rules []MappingRule) (*ResolvedSession, bool) {
	for _, rule := range rules {
		for _, attr := range remote.Attributes {
			if rule.Matches(attr) {
				return &ResolvedSession{
					Remote: cloneRemote(remote),
					Local:  rule.Clone(),
				}, true
			}
		}
	}
	return nil, false
}

func cloneRemote(r RemoteIdentity) RemoteIdentity {
	c := RemoteIdentity{Username: r.Username}
	if r.Attributes != nil {
		c.Attributes = make([]Attribute, len(r.Attributes))
		for i, a := range r.Attributes {
			c.Attributes[i] = Attribute{Vendor: a.Vendor, Subtype: a.Subtype, Value: bytes.Clone(a.Value)}
		}
	}
	return c
}
