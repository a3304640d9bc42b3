//go:build linux

/*
 * credscope_linux_test.go
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

import "testing"

// withFakeIDSetters substitutes setfsuid/setfsgid for the duration of
// fn and restores the real syscalls afterwards.
func withFakeIDSetters(t *testing.T, fakeUID, fakeGID func(int) error) {
	t.Helper()
	origUID, origGID := setfsuid, setfsgid
	setfsuid, setfsgid = fakeUID, fakeGID
	t.Cleanup(func() {
		setfsuid, setfsgid = origUID, origGID
	})
}

// Enter must drop gid before uid — dropping uid first would strip the
// privilege needed to still change gid, per fs.c's
// unsharedfs_take_context_id.
func TestEnterOrdersGroupBeforeUser(t *testing.T) {
	var order []string
	withFakeIDSetters(t,
		func(uid int) error { order = append(order, "uid"); return nil },
		func(gid int) error { order = append(order, "gid"); return nil },
	)

	s := testScope()
	tok := s.Enter(Context{UID: 1, GID: 1, PID: 99})
	defer s.Leave(tok)

	if len(order) != 2 || order[0] != "gid" || order[1] != "uid" {
		t.Fatalf("Enter call order = %v, want [gid uid]", order)
	}
	if !tok.switched {
		t.Fatalf("Enter returned switched=false for a real request, want true")
	}
}

// Leave must restore uid before gid — the reverse of Enter's order,
// for the same reason in reverse: giving up gid first would strip the
// privilege needed to still restore uid.
func TestLeaveOrdersUserBeforeGroup(t *testing.T) {
	var order []string
	withFakeIDSetters(t,
		func(uid int) error { order = append(order, "uid"); return nil },
		func(gid int) error { order = append(order, "gid"); return nil },
	)

	s := testScope()
	tok := s.Enter(Context{UID: 1, GID: 1, PID: 99})
	order = nil // only interested in Leave's ordering here
	s.Leave(tok)

	if len(order) != 2 || order[0] != "uid" || order[1] != "gid" {
		t.Fatalf("Leave call order = %v, want [uid gid]", order)
	}
}

// A failing setfsuid/setfsgid must not stop Enter/Leave from
// completing — the original only warns, since the subsequent host
// call failing with EPERM is itself the enforcement.
func TestEnterLeaveToleratesSyscallFailure(t *testing.T) {
	failErrno := func(int) error { return errFake }
	withFakeIDSetters(t, failErrno, failErrno)

	s := testScope()
	tok := s.Enter(Context{UID: 1, GID: 1, PID: 99})
	if !tok.switched {
		t.Fatalf("Enter returned switched=false despite syscall failure, want true")
	}
	s.Leave(tok)
}

type fakeErrno string

func (e fakeErrno) Error() string { return string(e) }

const errFake = fakeErrno("fake failure")
