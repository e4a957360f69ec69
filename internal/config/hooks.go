/*
 * Copyright (c) 2026 SecareLupus
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 */

package config

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/SecareLupus/radius-virtual/internal/identity"
	"github.com/go-viper/mapstructure/v2"
)

// HexBytes is a byte string written in configuration either as base16
// ("0A1B") or as a TOML array of integers ([10, 27]).
type HexBytes []byte

// String formats the value as upper-case base16.
func (h HexBytes) String() string {
	return strings.ToUpper(hex.EncodeToString(h))
}

// MarshalYAML keeps dumped configuration in the notation it was read from.
func (h HexBytes) MarshalYAML() (any, error) {
	return h.String(), nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		attributeKeyDecodeHook(),
		hexBytesDecodeHook(),
		durationDecodeHook(),
	)
}

// attributeKeyDecodeHook parses "vendor.subtype" strings.
func attributeKeyDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(identity.AttributeKey{}) {
			return data, nil
		}
		s, ok := data.(string)
		if !ok {
			return data, nil
		}
		return identity.ParseAttributeKey(s)
	}
}

func hexBytesDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(HexBytes(nil)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			s := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(v), "0x"), "0X")
			b, err := hex.DecodeString(s)
			if err != nil {
				return nil, fmt.Errorf("invalid base16 value %q: %w", v, err)
			}
			return HexBytes(b), nil
		case []any:
			b := make(HexBytes, 0, len(v))
			for _, e := range v {
				n, err := toByte(e)
				if err != nil {
					return nil, err
				}
				b = append(b, n)
			}
			return b, nil
		default:
			return data, nil
		}
	}
}

func toByte(e any) (byte, error) {
	var n int64
	switch x := e.(type) {
	case int:
		n = int64(x)
	case int64:
		n = x
	case float64:
		n = int64(x)
		if float64(n) != x {
			return 0, fmt.Errorf("byte value %v is not an integer", x)
		}
	default:
		return 0, fmt.Errorf("unsupported byte value %v (%T)", e, e)
	}
	if n < 0 || n > 255 {
		return 0, fmt.Errorf("byte value %d out of range", n)
	}
	return byte(n), nil
}

// durationDecodeHook accepts "30s"-style strings and plain numbers, which
// are read as seconds.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return time.Duration(n) * time.Second, nil
			}
			return time.ParseDuration(v)
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		default:
			return data, nil
		}
	}
}
