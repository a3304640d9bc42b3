//go:build linux

/*
 * dirent_linux.go
 *
 * Copyright 2014 Johannes Zarl
 */
/*
 * This file is part of unsharedfs.
 *
 * This program can be distributed under the terms of the GNU GPLv3.
 * See the file COPYING.
 */

package port

import "golang.org/x/sys/unix"

// parseDirentNames extracts the entry names from a raw Getdents buffer.
// It deliberately ignores d_type and inode number: the dispatcher's
// single-shot readdir only ever needs names (spec.md §4.3's readdir
// policy hands the host stat of each entry to the FUSE layer lazily).
func parseDirentNames(buf []byte) ([]string, error) {
	names := make([]string, 0, 32)
	_, _, names = unix.ParseDirent(buf, -1, names)
	return names, nil
}
