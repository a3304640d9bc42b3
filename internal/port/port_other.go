//go:build !linux

/*
 * port_other.go
 *
 * Copyright 2014 Johannes Zarl
 */
/*
 * This file is part of unsharedfs.
 *
 * This program can be distributed under the terms of the GNU GPLv3.
 * See the file COPYING.
 */

// unsharedfs's credential-switching model (spec.md §4.4) depends on
// setfsuid/setfsgid, which only exist on Linux. On every other
// platform the dispatcher refuses to start (see internal/credscope's
// non-Linux stub); this file exists only so the package still compiles
// enough for cross-platform tooling (go vet ./..., IDE analysis) to
// work against a consistent symbol set.
package port

import (
	"errors"

	"golang.org/x/sys/unix"
)

var errUnsupported = errors.New("port: unsharedfs requires Linux (setfsuid/setfsgid)")

func StatDir(path string) (Stat, error)                        { return Stat{}, errUnsupported }
func Lstat(path string, out *unix.Stat_t) error                 { return errUnsupported }
func Fstat(fd int, out *unix.Stat_t) error                      { return errUnsupported }
func Statvfs(path string) (unix.Statfs_t, error)                { return unix.Statfs_t{}, errUnsupported }
func Utimens(path string, atime, mtime unix.Timespec) error     { return errUnsupported }
func Access(path string, mask uint32) error                    { return errUnsupported }
func Readlink(path string, size int) (string, error)           { return "", errUnsupported }
func Mknod(path string, mode uint32, dev uint64) error          { return errUnsupported }
func Mkdir(path string, mode uint32) error                      { return errUnsupported }
func Unlink(path string) error                                  { return errUnsupported }
func Rmdir(path string) error                                   { return errUnsupported }
func Link(oldpath, newpath string) error                        { return errUnsupported }
func Symlink(target, newpath string) error                      { return errUnsupported }
func Rename(oldpath, newpath string) error                      { return errUnsupported }
func Chmod(path string, mode uint32) error                      { return errUnsupported }
func Chown(path string, uid, gid int) error                     { return errUnsupported }
func Truncate(path string, size int64) error                    { return errUnsupported }
func Ftruncate(fd int, size int64) error                        { return errUnsupported }
func Open(path string, flags int, mode uint32) (int, error)     { return -1, errUnsupported }
func Pread(fd int, buf []byte, offset int64) (int, error)       { return 0, errUnsupported }
func Pwrite(fd int, buf []byte, offset int64) (int, error)      { return 0, errUnsupported }
func Close(fd int) error                                        { return errUnsupported }
func Fsync(fd int, datasync bool) error                         { return errUnsupported }
func Opendir(path string) (int, error)                          { return -1, errUnsupported }
func Closedir(fd int) error                                      { return errUnsupported }
func Readdir(fd int, fill func(name string) bool) error         { return errUnsupported }
func Setxattr(path, name string, data []byte, flags int) error  { return errUnsupported }
func Getxattr(path, name string, dest []byte) (int, error)      { return 0, errUnsupported }
func Listxattr(path string, dest []byte) (int, error)           { return 0, errUnsupported }
func Removexattr(path, name string) error                        { return errUnsupported }
func Umask(mask int) int                                         { return 0 }
