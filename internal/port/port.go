/*
 * port.go
 *
 * Copyright 2014 Johannes Zarl
 */
/*
 * This file is part of unsharedfs.
 *
 * This program can be distributed under the terms of the GNU GPLv3.
 * See the file COPYING.
 */

// Package port isolates every raw host-filesystem call the dispatcher
// issues (spec.md §4.3's callback table) behind small, directly-named
// functions, the way the teacher's fs/port package isolates ptfs.go
// from syscall.* directly. Unlike the teacher's port layer — which
// never changes credentials — this one also carries the
// Setfsuid/Setfsgid primitives the credential scope needs, since
// hubfs's passthrough filesystem never impersonates its callers.
package port

import "fmt"

// Errno is a thin wrapper around a POSIX errno value, returned by
// every function in this package on failure. It satisfies
// resolver.Numberer so the dispatcher and resolver can normalize
// errors uniformly.
type Errno int

func (e Errno) Error() string  { return fmt.Sprintf("errno %d", int(e)) }
func (e Errno) Errno() int     { return int(e) }
func (e Errno) IsNotExist() bool {
	return int(e) == enoent
}

const enoent = 2 // ENOENT, stable across the POSIX platforms this package supports.

// Stat is the information the path resolver needs about a candidate
// identity directory (spec.md §4.1 steps 3-5).
type Stat struct {
	IsDir    bool
	OwnerUID uint32
}
