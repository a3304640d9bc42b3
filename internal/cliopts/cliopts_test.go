/*
 * cliopts_test.go
 *
 * Copyright 2014 Johannes Zarl
 */
/*
 * This file is part of unsharedfs.
 *
 * This program can be distributed under the terms of the GNU GPLv3.
 * See the file COPYING.
 */

package cliopts

import (
	"testing"

	"github.com/jzarl/unsharedfs/internal/config"
)

func TestParseBasicMount(t *testing.T) {
	r, err := Parse([]string{"-o", "allow_other", "/basedir", "/mnt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Config.BackingRoot != "/basedir" {
		t.Errorf("got backing root %q, want /basedir", r.Config.BackingRoot)
	}
	if !r.Config.AllowOtherSet {
		t.Error("expected AllowOtherSet to be true")
	}
	if r.MountPoint != "/mnt" {
		t.Errorf("got mount point %q, want /mnt", r.MountPoint)
	}
	if !r.Config.CheckOwnership {
		t.Error("expected CheckOwnership to default to true")
	}
}

func TestParseFallback(t *testing.T) {
	r, err := Parse([]string{"--fallback=shared", "/basedir", "/mnt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Config.FallbackSubdir != "shared" {
		t.Errorf("got fallback %q, want shared", r.Config.FallbackSubdir)
	}
}

func TestParseFallbackRejectsSeparator(t *testing.T) {
	_, err := Parse([]string{"--fallback=a/b", "/basedir", "/mnt"})
	if err == nil {
		t.Error("expected an error for a fallback value containing a separator")
	}
}

func TestParseNoCheckOwnership(t *testing.T) {
	r, err := Parse([]string{"--no-check-ownership", "/basedir", "/mnt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Config.CheckOwnership {
		t.Error("expected CheckOwnership to be false")
	}
}

func TestParseUseGid(t *testing.T) {
	r, err := Parse([]string{"--use-gid", "/basedir", "/mnt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Config.Mode != config.GID {
		t.Error("expected Mode to be GID")
	}
	if r.Config.CheckOwnership {
		t.Error("expected CheckOwnership to be forced false by --use-gid")
	}
}

func TestParseVersionExits(t *testing.T) {
	_, err := Parse([]string{"--version"})
	req, ok := err.(*ExitRequest)
	if !ok {
		t.Fatalf("expected an *ExitRequest, got %T", err)
	}
	if req.Code != 0 {
		t.Errorf("got exit code %d, want 0", req.Code)
	}
}

func TestParseHelpExits(t *testing.T) {
	_, err := Parse([]string{"-h"})
	if _, ok := err.(*ExitRequest); !ok {
		t.Fatalf("expected an *ExitRequest, got %T", err)
	}
}

func TestParseForwardsUnknownTokens(t *testing.T) {
	r, err := Parse([]string{"-d", "-r", "/basedir", "-o", "ro,allow_other", "/mnt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"-d", "-r", "-o", "ro,allow_other", "/mnt"}
	if len(r.FuseArgs) != len(want) {
		t.Fatalf("got %v, want %v", r.FuseArgs, want)
	}
	for i := range want {
		if r.FuseArgs[i] != want[i] {
			t.Errorf("FuseArgs[%d] = %q, want %q", i, r.FuseArgs[i], want[i])
		}
	}
}
