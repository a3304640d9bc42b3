/*
 * resolver.go
 *
 * Copyright 2014 Johannes Zarl
 */
/*
 * This file is part of unsharedfs.
 *
 * This program can be distributed under the terms of the GNU GPLv3.
 * See the file COPYING.
 */

// Package resolver implements the pure path-translation function of
// spec.md §4.1: given a mount Config, a per-request identity, and a
// logical path, it produces the backing path that the dispatcher
// should operate against, or an error.
package resolver

import (
	"fmt"
	"strconv"

	"github.com/jzarl/unsharedfs/internal/config"
	"github.com/jzarl/unsharedfs/internal/logger"
)

// PathMax bounds the length of a composed backing path. The original C
// implementation stack-allocates a char[PATH_MAX] buffer and treats
// overflow as a hard error (spec.md §9: "preserve the bound; do not
// silently promote to a growable buffer"); this constant plays the
// same role here even though Go strings don't need a fixed buffer.
const PathMax = 4096

// Errno is the small, closed set of resolution failures spec.md §4.1
// and §7 name. It carries the POSIX errno value the dispatcher should
// report.
type Errno int

const (
	ENAMETOOLONG Errno = 36
	ENOTDIR      Errno = 20
	EACCES       Errno = 13
	EBUSY        Errno = 16
)

func (e Errno) Error() string {
	switch e {
	case ENAMETOOLONG:
		return "file name too long"
	case ENOTDIR:
		return "not a directory"
	case EACCES:
		return "permission denied"
	case EBUSY:
		return "device or resource busy"
	default:
		return fmt.Sprintf("errno %d", int(e))
	}
}

// Errno returns the underlying numeric errno, for error values produced
// by this package; other error values (propagated stat failures) carry
// their own Errno() method via StatError.
func (e Errno) Errno() int { return int(e) }

// Numberer is implemented by every error this package can return, so
// callers can normalize to a negative host error code without a type
// switch on every concrete type (spec.md §4.3's "Resolver failures are
// returned as the negation of the errno the resolver set").
type Numberer interface {
	Errno() int
}

// StatError wraps an errno returned by the probe stat(2) call on the
// identity directory, for any failure other than "no such entry"
// (spec.md §4.1 step 3's "If stat fails for any other reason:
// propagate as the corresponding error").
type StatError struct {
	Op  string
	Err error
}

func (e *StatError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *StatError) Unwrap() error { return e.Err }

func (e *StatError) Errno() int {
	if n, ok := e.Err.(Numberer); ok {
		return n.Errno()
	}
	return int(EBUSY)
}

// Stater is the probe the resolver uses to test an identity directory.
// It is satisfied by internal/port's Lstat wrapper. IsNotExist and
// IsDir let the resolver interpret the result without depending on any
// particular errno representation.
type StatInfo struct {
	IsDir    bool
	OwnerUID uint32
}

type Stater interface {
	// Stat returns information about path, or an error satisfying
	// Numberer (or os.IsNotExist) on failure.
	Stat(path string) (StatInfo, error)
}

// NotExister is implemented by stat errors that represent ENOENT.
type NotExister interface {
	IsNotExist() bool
}

// Context is the per-request principal the FUSE runtime supplies
// (spec.md §3's RequestContext), reduced to what the resolver needs.
type Context struct {
	UID uint32
	GID uint32
}

// Resolver resolves logical paths against a fixed Config and Stater.
type Resolver struct {
	Config *config.Config
	Stat   Stater
	Log    *logger.Logger
}

// Resolve implements the algorithm of spec.md §4.1.
func (r *Resolver) Resolve(ctx Context, logicalPath string) (string, error) {
	id := ctx.UID
	if r.Config.Mode == config.GID {
		id = ctx.GID
	}

	idDir := r.Config.BackingRoot + "/" + strconv.FormatUint(uint64(id), 10)
	if len(idDir) >= PathMax {
		r.Log.Errorf("identity directory path too long for uid/gid %d", id)
		return "", ENAMETOOLONG
	}

	info, err := r.Stat.Stat(idDir)
	if err != nil {
		if ne, ok := err.(NotExister); ok && ne.IsNotExist() {
			if r.Config.FallbackSubdir != "" {
				full := r.Config.BackingRoot + "/" + r.Config.FallbackSubdir + logicalPath
				if len(full) >= PathMax {
					r.Log.Errorf("long path truncated: %s", logicalPath)
					return "", ENAMETOOLONG
				}
				r.Log.Debugf("diverting to fallback directory %s/%s", r.Config.BackingRoot, r.Config.FallbackSubdir)
				return full, nil
			}
			r.Log.Warningf("missing directory: %s", idDir)
			return "", EBUSY
		}
		return "", &StatError{Op: "stat " + idDir, Err: err}
	}

	if !info.IsDir {
		r.Log.Errorf("not a directory: %s", idDir)
		return "", ENOTDIR
	}

	if r.Config.CheckOwnership && info.OwnerUID != id {
		r.Log.Errorf("directory name does not match owner: %s (owner: %d)", idDir, info.OwnerUID)
		return "", EACCES
	}

	full := idDir + logicalPath
	if len(full) >= PathMax {
		r.Log.Errorf("path too long: %s%s", idDir, logicalPath)
		return "", ENAMETOOLONG
	}
	return full, nil
}
