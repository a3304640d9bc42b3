//go:build linux

/*
 * port_linux.go
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

import (
	"golang.org/x/sys/unix"
)

func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errno, ok := err.(unix.Errno); ok {
		return Errno(errno)
	}
	return err
}

// StatDir probes a candidate identity directory: spec.md §4.1 step 3.
// It follows symlinks, matching the original C implementation's plain
// stat(2) call (as opposed to the lstat(2) used by Getattr).
func StatDir(path string) (Stat, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return Stat{}, wrap(err)
	}
	return Stat{IsDir: st.Mode&unix.S_IFMT == unix.S_IFDIR, OwnerUID: st.Uid}, nil
}

// Lstat implements the getattr callback's host call.
func Lstat(path string, out *unix.Stat_t) error {
	return wrap(unix.Lstat(path, out))
}

// Fstat implements the fgetattr callback's host call.
func Fstat(fd int, out *unix.Stat_t) error {
	return wrap(unix.Fstat(fd, out))
}

// Access implements the access callback.
func Access(path string, mask uint32) error {
	return wrap(unix.Access(path, mask))
}

// Readlink implements the readlink callback. size is the caller's
// buffer size; the host readlink(2) call is bounded to size-1 bytes so
// the result can always be null-terminated by the caller.
func Readlink(path string, size int) (string, error) {
	if size <= 1 {
		return "", Errno(36) // ENAMETOOLONG
	}
	buf := make([]byte, size-1)
	n, err := unix.Readlink(path, buf)
	if err != nil {
		return "", wrap(err)
	}
	return string(buf[:n]), nil
}

// Mknod implements the mknod callback: regular files are created with
// open(O_CREAT|O_EXCL|O_WRONLY) then closed, FIFOs with mkfifo, and
// everything else falls through to mknod(2) — exactly fs.c's
// unsharedfs_mknod.
func Mknod(path string, mode uint32, dev uint64) error {
	switch mode & unix.S_IFMT {
	case unix.S_IFREG:
		fd, err := unix.Open(path, unix.O_CREAT|unix.O_EXCL|unix.O_WRONLY, mode)
		if err != nil {
			return wrap(err)
		}
		return wrap(unix.Close(fd))
	case unix.S_IFIFO:
		return wrap(unix.Mkfifo(path, mode))
	default:
		return wrap(unix.Mknod(path, mode, int(dev)))
	}
}

func Mkdir(path string, mode uint32) error { return wrap(unix.Mkdir(path, mode)) }
func Unlink(path string) error             { return wrap(unix.Unlink(path)) }
func Rmdir(path string) error              { return wrap(unix.Rmdir(path)) }
func Link(oldpath, newpath string) error   { return wrap(unix.Link(oldpath, newpath)) }

// Symlink creates newpath pointing at target, verbatim — spec.md §4.3:
// "target is passed verbatim, never rewritten".
func Symlink(target, newpath string) error { return wrap(unix.Symlink(target, newpath)) }

func Rename(oldpath, newpath string) error { return wrap(unix.Rename(oldpath, newpath)) }
func Chmod(path string, mode uint32) error { return wrap(unix.Chmod(path, mode)) }
func Chown(path string, uid, gid int) error {
	return wrap(unix.Chown(path, uid, gid))
}
func Truncate(path string, size int64) error { return wrap(unix.Truncate(path, size)) }
func Ftruncate(fd int, size int64) error     { return wrap(unix.Ftruncate(fd, size)) }

// Utimens implements utimensat(AT_FDCWD, fpath, tv, 0) — fpath is
// always absolute, so the dirfd parameter is inert.
func Utimens(path string, atime, mtime unix.Timespec) error {
	ts := []unix.Timespec{atime, mtime}
	return wrap(unix.UtimesNanoAt(unix.AT_FDCWD, path, ts, 0))
}

func Open(path string, flags int, mode uint32) (int, error) {
	fd, err := unix.Open(path, flags, mode)
	if err != nil {
		return -1, wrap(err)
	}
	return fd, nil
}

func Pread(fd int, buf []byte, offset int64) (int, error) {
	n, err := unix.Pread(fd, buf, offset)
	if err != nil {
		return 0, wrap(err)
	}
	return n, nil
}

func Pwrite(fd int, buf []byte, offset int64) (int, error) {
	n, err := unix.Pwrite(fd, buf, offset)
	if err != nil {
		return 0, wrap(err)
	}
	return n, nil
}

func Close(fd int) error { return wrap(unix.Close(fd)) }

func Fsync(fd int, datasync bool) error {
	if datasync {
		return wrap(unix.Fdatasync(fd))
	}
	return wrap(unix.Fsync(fd))
}

// Statvfs implements the statfs callback's host call.
func Statvfs(path string) (unix.Statfs_t, error) {
	var st unix.Statfs_t
	err := unix.Statfs(path, &st)
	return st, wrap(err)
}

func Opendir(path string) (int, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		return -1, wrap(err)
	}
	return fd, nil
}

func Closedir(fd int) error { return wrap(unix.Close(fd)) }

// Readdir copies the entire backing directory's entries in a single
// pass into fill, matching spec.md §4.3's readdir policy (mode 1: zero
// offsets, no offset tracking).
func Readdir(fd int, fill func(name string) bool) error {
	buf := make([]byte, 8*1024)
	for {
		n, err := unix.Getdents(fd, buf)
		if err != nil {
			return wrap(err)
		}
		if n <= 0 {
			return nil
		}

		names, err := parseDirentNames(buf[:n])
		if err != nil {
			return wrap(err)
		}
		for _, name := range names {
			if name == "." || name == ".." {
				continue
			}
			if !fill(name) {
				return nil
			}
		}
	}
}

func Setxattr(path, name string, data []byte, flags int) error {
	return wrap(unix.Lsetxattr(path, name, data, flags))
}

func Getxattr(path, name string, dest []byte) (int, error) {
	n, err := unix.Lgetxattr(path, name, dest)
	if err != nil {
		return 0, wrap(err)
	}
	return n, nil
}

func Listxattr(path string, dest []byte) (int, error) {
	n, err := unix.Llistxattr(path, dest)
	if err != nil {
		return 0, wrap(err)
	}
	return n, nil
}

func Removexattr(path, name string) error {
	return wrap(unix.Lremovexattr(path, name))
}

// Umask matches the teacher's port.Umask, used once at startup so file
// creation modes aren't silently narrowed by an inherited umask.
func Umask(mask int) int { return unix.Umask(mask) }
