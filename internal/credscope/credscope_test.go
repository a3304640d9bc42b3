/*
 * credscope_test.go
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
	"testing"

	"github.com/jzarl/unsharedfs/internal/logger"
)

func testScope() *Scope {
	return &Scope{BaseUID: 1000, BaseGID: 1000, Log: logger.New("credscope-test")}
}

// A pid of 0 marks an internal FUSE callback (init/destroy), not a
// real request; Enter must bypass the switch entirely and hand back a
// Token that Leave recognizes as never having locked a thread.
func TestEnterBypassesInternalCalls(t *testing.T) {
	s := testScope()

	tok := s.Enter(Context{UID: 42, GID: 42, PID: 0})

	if tok.switched {
		t.Fatalf("Enter with pid=0 returned switched=true, want false")
	}

	// Leave must be a no-op for an unswitched token: it must not panic
	// or attempt to unlock a thread that was never locked.
	s.Leave(tok)
}

func TestIsInternalCall(t *testing.T) {
	cases := []struct {
		pid  uint32
		want bool
	}{
		{0, true},
		{1, false},
		{12345, false},
	}
	for _, c := range cases {
		if got := isInternalCall(Context{PID: c.pid}); got != c.want {
			t.Errorf("isInternalCall(PID=%d) = %v, want %v", c.pid, got, c.want)
		}
	}
}
