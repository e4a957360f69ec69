/*
 * Copyright (c) 2026 SecareLupus
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 */

// Package radius authenticates users against RADIUS servers with PAP and
// returns the vendor attributes of the Access-Accept.
package radius

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/SecareLupus/radius-virtual/internal/config"
	"github.com/SecareLupus/radius-virtual/internal/identity"
	"github.com/SecareLupus/radius-virtual/internal/logger"
	layeh "layeh.com/radius"
	"layeh.com/radius/rfc2865"
)

// DefaultPort is used for server addresses without one.
const DefaultPort = "1812"

var (
	// ErrRejected means a server answered Access-Reject.
	ErrRejected = errors.New("radius: access rejected")
	// ErrTimeout means no server answered in time.
	ErrTimeout = errors.New("radius: all servers timed out")
	// ErrClient covers every other exchange failure.
	ErrClient = errors.New("radius: client error")
)

type server struct {
	addr    string
	secret  []byte
	timeout time.Duration
}

// Client sends Access-Requests to the configured servers in order.
type Client struct {
	servers []server
	nasIP   net.IP
	filter  map[identity.AttributeKey]bool
	debug   bool

	exchange func(ctx context.Context, p *layeh.Packet, addr string) (*layeh.Packet, error)
}

// New builds a client from cfg. Secret and server problems are reported as
// config.ErrInvalid.
func New(cfg config.RadiusConfig) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("%w: no radius servers configured", config.ErrInvalid)
	}

	c := &Client{debug: cfg.Debug}
	for _, s := range cfg.Servers {
		secret := cfg.Secret(s)
		switch {
		case secret == "":
			return nil, fmt.Errorf("%w: no shared secret for %s", config.ErrInvalid, s.Address)
		case len(secret) > config.MaxSecretLength:
			return nil, fmt.Errorf("%w: shared secret for %s is longer than %d bytes", config.ErrInvalid, s.Address, config.MaxSecretLength)
		}
		c.servers = append(c.servers, server{
			addr:    withDefaultPort(s.Address),
			secret:  []byte(secret),
			timeout: cfg.ServerTimeout(s),
		})
	}

	if cfg.NASIP != "" {
		c.nasIP = net.ParseIP(cfg.NASIP)
		if c.nasIP == nil {
			return nil, fmt.Errorf("%w: invalid nas_ip %q", config.ErrInvalid, cfg.NASIP)
		}
	}

	if len(cfg.Attributes) > 0 {
		c.filter = make(map[identity.AttributeKey]bool, len(cfg.Attributes))
		for _, k := range cfg.Attributes {
			c.filter[k] = true
		}
	}

	rc := &layeh.Client{Retry: time.Second}
	c.exchange = rc.Exchange
	return c, nil
}

func withDefaultPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, DefaultPort)
}

// Authenticate runs a PAP exchange for username. Servers are tried in
// order until one answers; a rejection is final.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*identity.RemoteIdentity, error) {
	var timeouts int
	var lastErr error

	for _, s := range c.servers {
		resp, err := c.try(ctx, s, username, password)
		if err == nil {
			return c.accept(username, resp)
		}
		if errors.Is(err, ErrRejected) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrClient, ctx.Err())
		}
		if errors.Is(err, ErrTimeout) {
			timeouts++
		}
		logger.Warn("radius server failed", "server", s.addr, logger.Err(err))
		lastErr = err
	}

	if timeouts == len(c.servers) {
		return nil, ErrTimeout
	}
	return nil, lastErr
}

func (c *Client) try(ctx context.Context, s server, username, password string) (*layeh.Packet, error) {
	p := layeh.New(layeh.CodeAccessRequest, s.secret)
	if err := rfc2865.UserName_SetString(p, username); err != nil {
		return nil, fmt.Errorf("%w: user name: %w", ErrClient, err)
	}
	if err := rfc2865.UserPassword_SetString(p, password); err != nil {
		return nil, fmt.Errorf("%w: user password: %w", ErrClient, err)
	}
	if ip := c.nasAddress(s.addr); ip != nil {
		if err := rfc2865.NASIPAddress_Set(p, ip); err != nil {
			return nil, fmt.Errorf("%w: nas ip: %w", ErrClient, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if c.debug {
		logger.Debug("radius access-request", "server", s.addr, "user", username, "timeout", s.timeout)
	}
	resp, err := c.exchange(ctx, p, s.addr)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, s.addr)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrClient, s.addr, err)
	}
	if c.debug {
		logger.Debug("radius response", "server", s.addr, "code", resp.Code.String(), "attributes", len(resp.Attributes))
	}

	switch resp.Code {
	case layeh.CodeAccessAccept:
		return resp, nil
	case layeh.CodeAccessReject:
		return nil, ErrRejected
	default:
		return nil, fmt.Errorf("%w: unexpected response %s from %s", ErrClient, resp.Code, s.addr)
	}
}

// nasAddress is the configured NAS-IP-Address, else the local address the
// kernel would use to reach addr. IPv6 routes yield no address.
func (c *Client) nasAddress(addr string) net.IP {
	if c.nasIP != nil {
		return c.nasIP.To4()
	}
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil
	}
	defer conn.Close()
	if la, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return la.IP.To4()
	}
	return nil
}

func (c *Client) accept(username string, resp *layeh.Packet) (*identity.RemoteIdentity, error) {
	remote := &identity.RemoteIdentity{Username: username}
	for _, avp := range resp.Attributes {
		if avp.Type != rfc2865.VendorSpecific_Type {
			if avp.Type != rfc2865.UserPassword_Type && c.filter[identity.AttributeKey{Subtype: uint8(avp.Type)}] {
				remote.Attributes = append(remote.Attributes, identity.Attribute{
					Subtype: uint8(avp.Type),
					Value:   append([]byte(nil), avp.Attribute...),
				})
			}
			continue
		}

		vendor, payload, err := layeh.VendorSpecific(avp.Attribute)
		if err != nil {
			logger.Warn("skipping malformed vendor-specific attribute", logger.Err(err))
			continue
		}
		subs, err := splitVendorAttributes(vendor, payload)
		if err != nil {
			logger.Warn("skipping malformed vendor-specific attribute", "vendor", vendor, logger.Err(err))
			continue
		}
		for _, a := range subs {
			if c.filter == nil || c.filter[a.Key()] {
				remote.Attributes = append(remote.Attributes, a)
			}
		}
	}
	return remote, nil
}

// splitVendorAttributes parses the RFC 2865 section 5.26 sub-attribute
// layout: vendor-type (1 octet), vendor-length (1 octet, includes both
// header octets), value.
func splitVendorAttributes(vendor uint32, b []byte) ([]identity.Attribute, error) {
	var out []identity.Attribute
	for len(b) > 0 {
		if len(b) < 2 {
			return nil, fmt.Errorf("truncated sub-attribute header")
		}
		n := int(b[1])
		if n < 2 || n > len(b) {
			return nil, fmt.Errorf("invalid sub-attribute length %d", n)
		}
		out = append(out, identity.Attribute{
			Vendor:  vendor,
			Subtype: b[0],
			Value:   append([]byte(nil), b[2:n]...),
		})
		b = b[n:]
	}
	return out, nil
}
