/*
 * Copyright (c) 2026 SecareLupus
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 */

// Command pam-radius-virtual is a PAM service module, built with
// -buildmode=c-shared, that authenticates against RADIUS and hands the
// session to radius_shell through the PAM environment.
//
//	auth    required pam_radius_virtual.so config=/etc/radius_auth_virtual.toml
package main

/*
#cgo LDFLAGS: -lpam
#include <stdlib.h>
#include <security/pam_modules.h>
#include <security/pam_appl.h>
#include <security/pam_ext.h>
*/
import "C"

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/SecareLupus/radius-virtual/internal/handoff"
	"github.com/SecareLupus/radius-virtual/internal/logger"
	"github.com/SecareLupus/radius-virtual/internal/service"
)

const ident = "pam_radius_virtual"

func goArgs(argc C.int, argv **C.char) []string {
	if argc <= 0 || argv == nil {
		return nil
	}
	args := make([]string, 0, int(argc))
	for _, a := range unsafe.Slice(argv, int(argc)) {
		args = append(args, C.GoString(a))
	}
	return args
}

func pamUser(pamh *C.pam_handle_t) (string, bool) {
	var cUser *C.char
	if C.pam_get_user(pamh, (**C.char)(unsafe.Pointer(&cUser)), nil) != C.PAM_SUCCESS || cUser == nil {
		return "", false
	}
	return C.GoString(cUser), true
}

func putenv(pamh *C.pam_handle_t, key, value string) error {
	kv := C.CString(key + "=" + value)
	defer C.free(unsafe.Pointer(kv))
	if rc := C.pam_putenv(pamh, kv); rc != C.PAM_SUCCESS {
		return pamError(rc)
	}
	return nil
}

func bootstrap(args []string) (*service.Service, bool) {
	opts := parseArgs(args)
	svc, err := service.Bootstrap(opts.config, ident)
	if err != nil {
		logger.Error("cannot load configuration", "path", opts.config, logger.Err(err))
		return nil, false
	}
	if opts.debug {
		logger.SetLevel("DEBUG")
	}
	return svc, true
}

//export go_pam_sm_authenticate
func go_pam_sm_authenticate(pamh *C.pam_handle_t, flags C.int, argc C.int, argv **C.char) C.int {
	user, ok := pamUser(pamh)
	if !ok {
		return C.PAM_USER_UNKNOWN
	}

	var cPass *C.char
	if C.pam_get_authtok(pamh, C.PAM_AUTHTOK, (**C.char)(unsafe.Pointer(&cPass)), nil) != C.PAM_SUCCESS || cPass == nil {
		return C.PAM_AUTH_ERR
	}
	pass := C.GoString(cPass)

	svc, ok := bootstrap(goArgs(argc, argv))
	if !ok {
		return C.PAM_SERVICE_ERR
	}

	_, token, err := svc.AuthenticateAndStore(context.Background(), user, pass)
	switch service.OutcomeOf(err) {
	case service.OutcomeDenied:
		return C.PAM_AUTH_ERR
	case service.OutcomeServiceError:
		return C.PAM_SERVICE_ERR
	}

	if _, err := handoff.Export(func(k, v string) error { return putenv(pamh, k, v) }, user, token); err != nil {
		logger.Error("cannot export session to pam environment", "user", user, logger.Err(err))
		return C.PAM_SERVICE_ERR
	}
	return C.PAM_SUCCESS
}

//export go_pam_sm_setcred
func go_pam_sm_setcred(pamh *C.pam_handle_t, flags C.int, argc C.int, argv **C.char) C.int {
	user, ok := pamUser(pamh)
	if !ok {
		return C.PAM_USER_UNKNOWN
	}
	svc, ok := bootstrap(goArgs(argc, argv))
	if !ok {
		return C.PAM_SERVICE_ERR
	}
	if !svc.HasSession(user) {
		return C.PAM_AUTH_ERR
	}
	return C.PAM_SUCCESS
}

type pamError C.int

func (e pamError) Error() string {
	return fmt.Sprintf("pam error %d", int(e))
}

func main() {}
