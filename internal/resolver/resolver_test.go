/*
 * resolver_test.go
 *
 * Copyright 2014 Johannes Zarl
 */
/*
 * This file is part of unsharedfs.
 *
 * This program can be distributed under the terms of the GNU GPLv3.
 * See the file COPYING.
 */

package resolver

import (
	"strconv"
	"strings"
	"testing"

	"github.com/jzarl/unsharedfs/internal/config"
	"github.com/jzarl/unsharedfs/internal/logger"
)

type fakeNotExist struct{}

func (fakeNotExist) Error() string   { return "no such file or directory" }
func (fakeNotExist) Errno() int      { return 2 }
func (fakeNotExist) IsNotExist() bool { return true }

type fakeStat struct {
	dirs map[string]StatInfo
}

func (f fakeStat) Stat(path string) (StatInfo, error) {
	if info, ok := f.dirs[path]; ok {
		return info, nil
	}
	return StatInfo{}, fakeNotExist{}
}

func newResolver(cfg *config.Config, dirs map[string]StatInfo) *Resolver {
	return &Resolver{Config: cfg, Stat: fakeStat{dirs: dirs}, Log: logger.New("test")}
}

func TestResolveOwnerMatch(t *testing.T) {
	cfg := &config.Config{BackingRoot: "/b", CheckOwnership: true}
	r := newResolver(cfg, map[string]StatInfo{
		"/b/1000": {IsDir: true, OwnerUID: 1000},
	})

	full, err := r.Resolve(Context{UID: 1000}, "/f")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if full != "/b/1000/f" {
		t.Errorf("got %q, want /b/1000/f", full)
	}
}

func TestResolveFallback(t *testing.T) {
	cfg := &config.Config{BackingRoot: "/b", FallbackSubdir: "default", CheckOwnership: true}
	r := newResolver(cfg, map[string]StatInfo{})

	full, err := r.Resolve(Context{UID: 1001}, "/f")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if full != "/b/default/f" {
		t.Errorf("got %q, want /b/default/f", full)
	}
}

func TestResolveNoFallbackIsBusy(t *testing.T) {
	cfg := &config.Config{BackingRoot: "/b", CheckOwnership: true}
	r := newResolver(cfg, map[string]StatInfo{})

	_, err := r.Resolve(Context{UID: 1002}, "/f")
	if err != EBUSY {
		t.Errorf("got %v, want EBUSY", err)
	}
}

func TestResolveOwnerMismatch(t *testing.T) {
	cfg := &config.Config{BackingRoot: "/b", CheckOwnership: true}
	r := newResolver(cfg, map[string]StatInfo{
		"/b/1000": {IsDir: true, OwnerUID: 1001},
	})

	_, err := r.Resolve(Context{UID: 1000}, "/f")
	if err != EACCES {
		t.Errorf("got %v, want EACCES", err)
	}
}

func TestResolveOwnerMismatchIgnoredWhenCheckOff(t *testing.T) {
	cfg := &config.Config{BackingRoot: "/b", CheckOwnership: false}
	r := newResolver(cfg, map[string]StatInfo{
		"/b/1000": {IsDir: true, OwnerUID: 1001},
	})

	full, err := r.Resolve(Context{UID: 1000}, "/f")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if full != "/b/1000/f" {
		t.Errorf("got %q, want /b/1000/f", full)
	}
}

func TestResolveNotADirectory(t *testing.T) {
	cfg := &config.Config{BackingRoot: "/b", CheckOwnership: true}
	r := newResolver(cfg, map[string]StatInfo{
		"/b/1000": {IsDir: false, OwnerUID: 1000},
	})

	_, err := r.Resolve(Context{UID: 1000}, "/f")
	if err != ENOTDIR {
		t.Errorf("got %v, want ENOTDIR", err)
	}
}

func TestResolveUsesGidInGidMode(t *testing.T) {
	cfg := &config.Config{BackingRoot: "/b", Mode: config.GID}
	r := newResolver(cfg, map[string]StatInfo{
		"/b/2000": {IsDir: true, OwnerUID: 2000},
	})

	full, err := r.Resolve(Context{UID: 1000, GID: 2000}, "/f")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if full != "/b/2000/f" {
		t.Errorf("got %q, want /b/2000/f", full)
	}
}

func TestResolvePathTooLong(t *testing.T) {
	cfg := &config.Config{BackingRoot: "/b", CheckOwnership: true}
	r := newResolver(cfg, map[string]StatInfo{
		"/b/1000": {IsDir: true, OwnerUID: 1000},
	})

	long := "/" + strings.Repeat("a", PathMax)
	_, err := r.Resolve(Context{UID: 1000}, long)
	if err != ENAMETOOLONG {
		t.Errorf("got %v, want ENAMETOOLONG", err)
	}
}

func TestResolveIdentityDirPathTooLong(t *testing.T) {
	cfg := &config.Config{BackingRoot: "/" + strings.Repeat("b", PathMax)}
	r := newResolver(cfg, map[string]StatInfo{})

	_, err := r.Resolve(Context{UID: 1000}, "/f")
	if err != ENAMETOOLONG {
		t.Errorf("got %v, want ENAMETOOLONG", err)
	}
}

func TestResolveStatErrorPropagates(t *testing.T) {
	cfg := &config.Config{BackingRoot: "/b"}
	r := &Resolver{Config: cfg, Stat: erroringStat{}, Log: logger.New("test")}

	_, err := r.Resolve(Context{UID: 1000}, "/f")
	n, ok := err.(Numberer)
	if !ok {
		t.Fatalf("expected a Numberer error, got %T", err)
	}
	if n.Errno() != 13 {
		t.Errorf("got errno %d, want 13", n.Errno())
	}
}

type erroringStat struct{}

func (erroringStat) Stat(path string) (StatInfo, error) {
	return StatInfo{}, permErr{}
}

type permErr struct{}

func (permErr) Error() string { return "permission denied" }
func (permErr) Errno() int    { return 13 }

func TestResolveConcurrentIdentitiesDoNotInterfere(t *testing.T) {
	cfg := &config.Config{BackingRoot: "/b", CheckOwnership: true}
	dirs := map[string]StatInfo{}
	for _, id := range []uint32{1000, 1001} {
		dirs["/b/"+strconv.FormatUint(uint64(id), 10)] = StatInfo{IsDir: true, OwnerUID: id}
	}
	r := newResolver(cfg, dirs)

	done := make(chan string, 2)
	for _, id := range []uint32{1000, 1001} {
		go func(id uint32) {
			full, err := r.Resolve(Context{UID: id}, "/f")
			if err != nil {
				done <- "error"
				return
			}
			done <- full
		}(id)
	}
	results := map[string]bool{<-done: true, <-done: true}
	if !results["/b/1000/f"] || !results["/b/1001/f"] {
		t.Errorf("got %v, want both /b/1000/f and /b/1001/f", results)
	}
}
