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
	"errors"
	"fmt"
	"strings"

	"github.com/SecareLupus/radius-virtual/internal/identity"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg and reports every problem found, wrapped in ErrInvalid.
func Validate(cfg *Config) error {
	var problems []string

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	for i, s := range cfg.Radius.Servers {
		switch secret := cfg.Radius.Secret(s); {
		case secret == "":
			problems = append(problems, fmt.Sprintf("radius.servers[%d] (%s): no shared secret", i, s.Address))
		case len(secret) > MaxSecretLength:
			problems = append(problems, fmt.Sprintf("radius.servers[%d] (%s): shared secret longer than %d bytes", i, s.Address, MaxSecretLength))
		}
	}

	for i, u := range cfg.Users {
		if u.Attribute == (identity.AttributeKey{}) {
			problems = append(problems, fmt.Sprintf("users[%d] (%s): attribute is required", i, u.Username))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	case "ip":
		return field + " must be an IP address"
	case "excludesall":
		return fmt.Sprintf("%s must not contain any of %q", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s check", field, fe.Tag())
	}
}
