/*
 * config.go
 *
 * Copyright 2014 Johannes Zarl
 */
/*
 * This file is part of unsharedfs.
 *
 * This program can be distributed under the terms of the GNU GPLv3.
 * See the file COPYING.
 */

// Package config holds the immutable per-mount state of unsharedfs.
package config

import "fmt"

// Mode selects which part of the request context names the identity
// directory: the caller's uid, or the caller's gid.
type Mode int

const (
	UID Mode = iota
	GID
)

func (m Mode) String() string {
	if m == GID {
		return "gid"
	}
	return "uid"
}

// Config is built once at mount time by the cliopts package and never
// modified afterwards. It is shared read-only with every dispatcher
// invocation.
type Config struct {
	// BackingRoot is the absolute, canonicalized directory beneath
	// which per-identity subdirectories live.
	BackingRoot string

	// FallbackSubdir, if non-empty, names a directory (relative to
	// BackingRoot, no path separators) used when the caller has no
	// matching identity directory. Ownership is never checked on the
	// fallback branch.
	FallbackSubdir string

	// Mode selects whether identity directories are named by uid or gid.
	Mode Mode

	// CheckOwnership requires an identity directory's owning uid to
	// match the directory name. Always false when Mode == GID.
	CheckOwnership bool

	// BaseUID and BaseGID are the mount process's real user and group
	// ids, captured once at startup before any credential switching.
	BaseUID uint32
	BaseGID uint32

	// AllowOtherSet records whether the FUSE "allow_other" option was
	// observed on the command line. The mount is refused if false.
	AllowOtherSet bool
}

// Validate checks the invariants of §3: BackingRoot is non-empty,
// FallbackSubdir (if set) contains no path separators, and GID mode
// forces ownership checking off.
func (c *Config) Validate() error {
	if c.BackingRoot == "" {
		return fmt.Errorf("unsharedfs: backing root directory is required")
	}
	if c.FallbackSubdir != "" && containsSeparator(c.FallbackSubdir) {
		return fmt.Errorf("unsharedfs: --fallback value %q must be a single path component", c.FallbackSubdir)
	}
	if c.Mode == GID {
		c.CheckOwnership = false
	}
	return nil
}

func containsSeparator(name string) bool {
	for i := 0; i < len(name); i++ {
		if name[i] == '/' {
			return true
		}
	}
	return false
}
