/*
 * cliopts.go
 *
 * Copyright 2014 Johannes Zarl
 */
/*
 * This file is part of unsharedfs.
 *
 * This program can be distributed under the terms of the GNU GPLv3.
 * See the file COPYING.
 */

// Package cliopts parses unsharedfs's command line the way the
// original fuse_opt-based parser does (unsharedfs.c's
// unsharedfs_parse_options): a small, closed set of unsharedfs-specific
// long options is consumed, the backing root is taken as the first
// bare positional argument, and every other token — including any "-o
// opt,opt" mount options, "-d", "-f", "-r" and the mountpoint itself —
// is left untouched for the FUSE runtime to parse itself. A library
// that expects to own all of argv (including the stdlib flag package)
// can't express "recognize these, forward everything else verbatim",
// so this walk is done by hand, the way the C original's fuse_opt
// callback does it one token at a time.
package cliopts

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jzarl/unsharedfs/internal/config"
)

const versionString = "unsharedfs 1.0"

const usageText = `Redirect file system access to another directory depending on the user id.

Usage: unsharedfs -o allow_other [OPTIONS] BASEDIR MOUNTPOINT

Options:
  BASEDIR                   Base directory.
                            All access for a user with a given uid is diverted
                            from MOUNTPOINT/path to BASEDIR/uid/path.

  -h, --help                Print this and exit.
  -V, --version             Print version number and exit.

File system behavior:
      --fallback=dir        When the UID directory for a user does not exist,
                            divert access to this path (relative to basedir).
      --no-check-ownership  Allow access to the uid directory even if the owner
                            does not match the directory name.
      --use-gid             Use group id (gid) instead of the user id to determine
                            the diverted path. Currently this implies "--no-check-ownership"

FUSE options:
  -o opt[,opt,...]          Mount options.
  -o allow_other            Required for regular operation of unsharedfs.
  -r, -o ro                 Mount strictly read-only.
  -d, -o debug              Enable debug output (implies -f).
  -f                        Foreground operation.
`

// Result is everything parsing the command line produces: the Config
// the resolver and dispatcher run against, plus the arguments that
// must be handed to the FUSE runtime unmodified (spec.md §4.2's "fused
// option stream").
type Result struct {
	Config     config.Config
	FuseArgs   []string
	MountPoint string
}

// ExitRequest is returned by Parse when the command line asked for the
// version banner or usage text; the caller should print Message and
// exit with Code without proceeding to mount anything.
type ExitRequest struct {
	Message string
	Code    int
}

func (e *ExitRequest) Error() string { return e.Message }

// Parse walks args (conventionally os.Args[1:]) exactly once,
// consuming the unsharedfs-specific options it recognizes and
// collecting every other token into Result.FuseArgs, in the order
// seen. The first bare (non-option) token becomes the backing root;
// every bare token after that, and every option this package doesn't
// recognize, is forwarded.
func Parse(args []string) (*Result, error) {
	cfg := config.Config{
		Mode:           config.UID,
		CheckOwnership: true,
	}

	var fuseArgs []string
	haveRoot := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "--version" || arg == "-V":
			return nil, &ExitRequest{Message: versionBanner(), Code: 0}

		case arg == "--help" || arg == "-h":
			return nil, &ExitRequest{Message: usageText, Code: 0}

		case strings.HasPrefix(arg, "--fallback="):
			name := strings.TrimPrefix(arg, "--fallback=")
			if strings.ContainsRune(name, '/') {
				return nil, fmt.Errorf("cliopts: --fallback value %q must be a single path component, not a path", name)
			}
			cfg.FallbackSubdir = name

		case arg == "--no-check-ownership":
			cfg.CheckOwnership = false

		case arg == "--use-gid":
			cfg.Mode = config.GID
			cfg.CheckOwnership = false

		case arg == "-o" && i+1 < len(args):
			i++
			recordMountOpts(&cfg, args[i])
			fuseArgs = append(fuseArgs, arg, args[i])

		case strings.HasPrefix(arg, "-o") && len(arg) > 2:
			recordMountOpts(&cfg, arg[2:])
			fuseArgs = append(fuseArgs, arg)

		case !haveRoot && !strings.HasPrefix(arg, "-"):
			root, err := canonicalizeRoot(arg)
			if err != nil {
				return nil, fmt.Errorf("cliopts: cannot resolve backing root %q: %w", arg, err)
			}
			cfg.BackingRoot = root
			haveRoot = true

		default:
			fuseArgs = append(fuseArgs, arg)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var mountPoint string
	if n := len(fuseArgs); n > 0 && !strings.HasPrefix(fuseArgs[n-1], "-") {
		mountPoint = fuseArgs[n-1]
	}

	return &Result{Config: cfg, FuseArgs: fuseArgs, MountPoint: mountPoint}, nil
}

// canonicalizeRoot resolves path the way the C original's
// realpath(arg, NULL) does, matching spec.md's requirement that
// backing_root be absolute and canonicalized: relative components are
// made absolute against the process's cwd, so a later cwd change
// (e.g. the FUSE runtime chdir'ing to "/") can't silently change what
// backing_root refers to. Symlinks are resolved on a best-effort
// basis: if basedir doesn't exist yet (unusual, but not Parse's job to
// reject), the absolute path is kept as-is rather than failing the
// whole command line.
func canonicalizeRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// recordMountOpts inspects a comma-separated -o value only for the
// allow_other flag the mount driver must validate at startup (spec.md
// §4.2's "mount is rejected if false"); it never consumes or rewrites
// the option string, which is always forwarded to FUSE verbatim.
func recordMountOpts(cfg *config.Config, opts string) {
	for _, opt := range strings.Split(opts, ",") {
		if opt == "allow_other" {
			cfg.AllowOtherSet = true
		}
	}
}

func versionBanner() string {
	return versionString + "\n\n" +
		"Copyright (C) 2014 Johannes Zarl\n" +
		"This is free software; see the source for copying conditions.  There is NO\n" +
		"warranty; not even for MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.\n"
}
