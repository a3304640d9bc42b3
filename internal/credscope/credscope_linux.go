//go:build linux

/*
 * credscope_linux.go
 *
 * Copyright 2014 Johannes Zarl
 */
/*
 * This file is part of unsharedfs.
 *
 * This program can be distributed under the terms of the GNU GPLv3.
 * See the file COPYING.
 */

package credscope

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// setfsuid/setfsgid are indirected through package vars, the same way
// logger.go indirects its syslog sink, so tests can substitute fakes
// and observe call order without requiring the test process to hold
// CAP_SETUID.
var (
	setfsuid = unix.Setfsuid
	setfsgid = unix.Setfsgid
)

// Enter switches the calling goroutine's OS thread to ctx's uid/gid,
// group first then user — fs.c's unsharedfs_take_context_id does the
// same ordering, since dropping uid privilege before gid would leave
// the process unable to change its gid at all. Internal FUSE calls
// (ctx.PID == 0) are left running as the scope's own base identity.
//
// Enter always returns a Token; Leave must be called with it exactly
// once, even if the caller takes an error path afterwards.
func (s *Scope) Enter(ctx Context) Token {
	if isInternalCall(ctx) {
		return Token{}
	}

	runtime.LockOSThread()

	if err := setfsgid(int(ctx.GID)); err != nil {
		s.Log.Warningf("setfsgid(%d) failed: %v", ctx.GID, err)
	}
	if err := setfsuid(int(ctx.UID)); err != nil {
		s.Log.Warningf("setfsuid(%d) failed: %v", ctx.UID, err)
	}

	return Token{switched: true}
}

// Leave restores the scope's base identity and, if Enter locked the
// thread, releases it. User is restored before group, the reverse of
// Enter's order, for the same "never drop the ability to restore the
// other id" reason.
func (s *Scope) Leave(t Token) {
	if !t.switched {
		return
	}

	if err := setfsuid(int(s.BaseUID)); err != nil {
		s.Log.Warningf("restoring setfsuid(%d) failed: %v", s.BaseUID, err)
	}
	if err := setfsgid(int(s.BaseGID)); err != nil {
		s.Log.Warningf("restoring setfsgid(%d) failed: %v", s.BaseGID, err)
	}

	runtime.UnlockOSThread()
}
