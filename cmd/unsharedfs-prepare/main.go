/*
 * main.go
 *
 * Copyright 2014 Johannes Zarl
 */
/*
 * This file is part of unsharedfs.
 *
 * This program can be distributed under the terms of the GNU GPLv3.
 * See the file COPYING.
 */

// unsharedfs-prepare builds the backing directory tree unsharedfs
// expects: one subdirectory per identity, named with its decimal uid
// or gid and owned accordingly, plus an optional shared fallback
// directory. It is a standalone collaborator — the mount driver has no
// dependency on it, it only needs to see the tree this tool produces.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/user"
	"strconv"
)

var progname = "unsharedfs-prepare"

func warn(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, progname+": "+format+"\n", a...)
}

func run() int {
	var (
		auto       bool
		useGID     bool
		defaultDir bool
		force      bool
	)

	flag.BoolVar(&auto, "a", false, "create one directory per uid/gid in [min,max] instead of an explicit list")
	flag.BoolVar(&useGID, "g", false, "create directories owned by group, for --use-gid mounts")
	flag.BoolVar(&defaultDir, "default", false, "also create ROOTDIR/default for fallback use")
	flag.BoolVar(&force, "force", false, "allow preparing a non-empty ROOTDIR")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [options] ROOTDIR [id...]\n"+
			"       %s -a [options] ROOTDIR [uid_min [uid_max]]\n\n", progname, progname)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return 2
	}
	root := args[0]
	rest := args[1:]

	entries, err := os.ReadDir(root)
	if err != nil && !os.IsNotExist(err) {
		warn("cannot inspect %s: %v", root, err)
		return 1
	}
	if len(entries) > 0 && !force {
		warn("%s is not empty; pass -force to prepare it anyway", root)
		return 1
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		warn("cannot create %s: %v", root, err)
		return 1
	}

	ids, err := resolveIDs(auto, rest)
	if err != nil {
		warn("%v", err)
		return 1
	}

	for _, id := range ids {
		if err := makeIdentityDir(root, id, useGID); err != nil {
			warn("%v", err)
			return 1
		}
	}

	if defaultDir {
		if err := os.MkdirAll(root+"/default", 0755); err != nil {
			warn("cannot create %s/default: %v", root, err)
			return 1
		}
	}

	return 0
}

// resolveIDs turns the command line's id list into a concrete slice of
// uids/gids. With -a, args is an optional [min [max]] pair (defaulting
// to 1000-60000, the conventional non-system id range); without it,
// every argument is either a numeric id or a username/group name that
// os/user resolves.
func resolveIDs(auto bool, args []string) ([]uint32, error) {
	if auto {
		min, max := uint64(1000), uint64(60000)
		var err error
		if len(args) >= 1 {
			min, err = strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid uid_min %q: %w", args[0], err)
			}
		}
		if len(args) >= 2 {
			max, err = strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid uid_max %q: %w", args[1], err)
			}
		}
		if max < min {
			return nil, fmt.Errorf("uid_max %d is below uid_min %d", max, min)
		}
		ids := make([]uint32, 0, max-min+1)
		for id := min; id <= max; id++ {
			ids = append(ids, uint32(id))
		}
		return ids, nil
	}

	ids := make([]uint32, 0, len(args))
	for _, a := range args {
		if n, err := strconv.ParseUint(a, 10, 32); err == nil {
			ids = append(ids, uint32(n))
			continue
		}
		id, err := lookupID(a)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve identity %q: %w", a, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func lookupID(name string) (uint32, error) {
	if u, err := user.Lookup(name); err == nil {
		n, err := strconv.ParseUint(u.Uid, 10, 32)
		return uint32(n), err
	}
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(g.Gid, 10, 32)
	return uint32(n), err
}

func makeIdentityDir(root string, id uint32, useGID bool) error {
	dir := root + "/" + strconv.FormatUint(uint64(id), 10)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	uid, gid := int(id), -1
	if useGID {
		uid, gid = -1, int(id)
	}
	if err := os.Chown(dir, uid, gid); err != nil {
		return fmt.Errorf("cannot chown %s: %w", dir, err)
	}
	return nil
}

func main() {
	os.Exit(run())
}
