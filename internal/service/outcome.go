/*
 * Copyright (c) 2026 SecareLupus
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 */

package service

import (
	"errors"

	"github.com/SecareLupus/radius-virtual/internal/db"
	"github.com/SecareLupus/radius-virtual/internal/identity"
	"github.com/SecareLupus/radius-virtual/internal/radius"
)

// Outcome is the coarse result reported to PAM.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeDenied
	OutcomeServiceError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeDenied:
		return "denied"
	default:
		return "service-error"
	}
}

// OutcomeOf classifies an error from the service. Rejections, unmapped
// identities and missing sessions deny; everything else is a service error.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, radius.ErrRejected),
		errors.Is(err, identity.ErrNoMatch),
		errors.Is(err, db.ErrNotFound):
		return OutcomeDenied
	default:
		return OutcomeServiceError
	}
}
