/*
 * credscope.go
 *
 * Copyright 2014 Johannes Zarl
 */
/*
 * This file is part of unsharedfs.
 *
 * This program can be distributed under the terms of the GNU GPLv3.
 * See the file COPYING.
 */

// Package credscope implements the per-call credential switch of
// spec.md §4.4: for the duration of a single dispatcher callback, the
// process's filesystem uid/gid are swapped to the caller's, so that
// every host call the callback makes is subject to the same
// permission checks the caller would see outside the mount.
//
// The original C implementation does this once per pthread, which FUSE
// dedicates one-per-concurrent-request; Go's runtime instead multiplexes
// goroutines onto a small pool of OS threads, so a goroutine that calls
// setfsuid/setfsgid must pin itself to its OS thread for the same
// duration or it could resume on a thread still carrying another
// request's credentials. Scope.Enter/Leave pair LockOSThread with
// UnlockOSThread to provide that guarantee.
package credscope

import (
	"github.com/jzarl/unsharedfs/internal/logger"
)

// Scope performs the credential switch for a single dispatcher call.
type Scope struct {
	BaseUID uint32
	BaseGID uint32
	Log     *logger.Logger
}

// Context is the identity a FUSE callback should run as.
type Context struct {
	UID uint32
	GID uint32
	PID uint32
}

// Token is returned by Enter and must be passed to Leave exactly once,
// regardless of which error path Enter's caller takes. It records only
// whether a thread was actually locked and switched, since restoration
// always targets the scope's own base identity (fs.c's
// unsharedfs_drop_context_id restores state->base_uid/base_gid, not a
// queried "previous" value).
type Token struct {
	switched bool
}

// isInternalCall mirrors fs.c's unsharedfs_take_context_id: FUSE itself
// issues some callbacks (notably during init/destroy) with a zero pid,
// outside of any real request; those calls run with the process's own
// credentials rather than switching to uid/gid 0.
func isInternalCall(ctx Context) bool {
	return ctx.PID == 0
}
