/*
 * Copyright (c) 2026 SecareLupus
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 */

// Command nss-radius-virtual is a glibc NSS module, built with
// -buildmode=c-shared as libnss_radius_virtual.so.2, serving passwd and
// shadow entries for accounts mapped from RADIUS logins.
//
//	passwd: files radius_virtual
//	shadow: files radius_virtual
package main

/*
#include <errno.h>
#include <nss.h>
#include <pwd.h>
#include <shadow.h>
#include <stdlib.h>

int nss_fill_passwd(struct passwd *pw, char *buf, size_t buflen,
	const char *name, const char *passwd, uid_t uid, gid_t gid,
	const char *gecos, const char *dir, const char *shell);

int nss_fill_shadow(struct spwd *sp, char *buf, size_t buflen,
	const char *name, const char *passwd, long lstchg, long min, long max,
	long warn, long inact, long expire);
*/
import "C"

import (
	"unsafe"

	"github.com/SecareLupus/radius-virtual/internal/config"
	"github.com/SecareLupus/radius-virtual/internal/logger"
	"github.com/SecareLupus/radius-virtual/internal/lookup"
	"github.com/SecareLupus/radius-virtual/internal/service"
)

const ident = "nss_radius_virtual"

var configPath = config.DefaultPath

func load() (*service.Service, bool) {
	svc, err := service.Bootstrap(configPath, ident)
	if err != nil {
		logger.Debug("nss lookup without configuration", logger.Err(err))
		return nil, false
	}
	return svc, true
}

// cstrings allocates C copies of ss; free releases them.
type cstrings []*C.char

func newCStrings(ss ...string) cstrings {
	cs := make(cstrings, len(ss))
	for i, s := range ss {
		cs[i] = C.CString(s)
	}
	return cs
}

func (cs cstrings) free() {
	for _, c := range cs {
		C.free(unsafe.Pointer(c))
	}
}

func status(rc C.int, errnop *C.int) C.int {
	if rc != 0 {
		*errnop = rc
		return C.NSS_STATUS_TRYAGAIN
	}
	return C.NSS_STATUS_SUCCESS
}

func fillPasswd(e *lookup.PasswdEntry, pw *C.struct_passwd, buf *C.char, buflen C.size_t, errnop *C.int) C.int {
	cs := newCStrings(e.Name, e.Passwd, e.Gecos, e.Home, e.Shell)
	defer cs.free()
	rc := C.nss_fill_passwd(pw, buf, buflen, cs[0], cs[1], C.uid_t(e.UID), C.gid_t(e.GID), cs[2], cs[3], cs[4])
	return status(rc, errnop)
}

func fillShadow(e *lookup.ShadowEntry, sp *C.struct_spwd, buf *C.char, buflen C.size_t, errnop *C.int) C.int {
	cs := newCStrings(e.Name, e.Hash)
	defer cs.free()
	rc := C.nss_fill_shadow(sp, buf, buflen, cs[0], cs[1],
		C.long(e.LastChange), C.long(e.Min), C.long(e.Max),
		C.long(e.Warn), C.long(e.Inactive), C.long(e.Expire))
	return status(rc, errnop)
}

//export go_nss_getpwnam
func go_nss_getpwnam(name *C.char, pw *C.struct_passwd, buf *C.char, buflen C.size_t, errnop *C.int) C.int {
	svc, ok := load()
	if !ok {
		*errnop = C.ENOENT
		return C.NSS_STATUS_UNAVAIL
	}
	e, ok := svc.Passwd(C.GoString(name))
	if !ok {
		*errnop = C.ENOENT
		return C.NSS_STATUS_NOTFOUND
	}
	return fillPasswd(e, pw, buf, buflen, errnop)
}

//export go_nss_getspnam
func go_nss_getspnam(name *C.char, sp *C.struct_spwd, buf *C.char, buflen C.size_t, errnop *C.int) C.int {
	svc, ok := load()
	if !ok {
		*errnop = C.ENOENT
		return C.NSS_STATUS_UNAVAIL
	}
	e, ok := svc.Shadow(C.GoString(name))
	if !ok {
		*errnop = C.ENOENT
		return C.NSS_STATUS_NOTFOUND
	}
	return fillShadow(e, sp, buf, buflen, errnop)
}

func main() {}
