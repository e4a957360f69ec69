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
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultRadiusTimeout = 10 * time.Second
	DefaultBusyTimeout   = 5 * time.Second
	DefaultNSSShell      = "/usr/bin/radius_shell"
	DefaultPlaceholderID = 1011
)

// setDefaults registers every scalar key so that environment overrides
// apply even when the file omits the key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("db.path", "")
	v.SetDefault("db.encryption_key", "")
	v.SetDefault("db.busy_timeout", DefaultBusyTimeout)

	v.SetDefault("radius.shared_secret", "")
	v.SetDefault("radius.timeout", DefaultRadiusTimeout)
	v.SetDefault("radius.debug", false)
	v.SetDefault("radius.nas_ip", "")

	v.SetDefault("nss.shell", DefaultNSSShell)
	v.SetDefault("nss.placeholder", true)
	v.SetDefault("nss.default_user.name", "normaluser")
	v.SetDefault("nss.default_user.uid", DefaultPlaceholderID)
	v.SetDefault("nss.default_user.gid", DefaultPlaceholderID)
	v.SetDefault("nss.default_user.home", "/tmp")
	v.SetDefault("nss.default_user.gecos", "NON EXISTENT")

	v.SetDefault("handoff.max_token_age", time.Duration(0))

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "auto")
}
