/*
 * dispatcher.go
 *
 * Copyright 2014 Johannes Zarl
 */
/*
 * This file is part of unsharedfs.
 *
 * This program can be distributed under the terms of the GNU GPLv3.
 * See the file COPYING.
 */

// Package unsharedfs implements the FUSE operation dispatcher of
// spec.md §4.3: every callback resolves the logical path to a backing
// path, enters the caller's credential scope, issues exactly one host
// call, and normalizes the result to a negative errno. It plays the
// role the teacher's fs/ptfs.Ptfs plays for a plain passthrough
// filesystem, generalized to unsharedfs's per-identity redirection and
// credential switching.
package unsharedfs

import (
	"golang.org/x/sys/unix"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/jzarl/unsharedfs/internal/credscope"
	"github.com/jzarl/unsharedfs/internal/logger"
	"github.com/jzarl/unsharedfs/internal/metrics"
	"github.com/jzarl/unsharedfs/internal/port"
	"github.com/jzarl/unsharedfs/internal/resolver"
)

// Dispatcher implements fuse.FileSystemInterface (via FileSystemBase
// for methods unsharedfs never needs, such as Flush and Fsyncdir).
type Dispatcher struct {
	fuse.FileSystemBase

	Resolver *resolver.Resolver
	Scope    *credscope.Scope
	Log      *logger.Logger
	Metrics  *metrics.Metrics

	// Host issues the actual host filesystem calls. A nil Host (the
	// zero value, and what every real mount gets) falls back to
	// internal/port; tests substitute a fake the same way
	// internal/resolver is decoupled from the filesystem via Stater.
	Host hostOps

	// GetContext reads the uid/gid/pid FUSE attaches to the request
	// currently being serviced. A nil GetContext falls back to
	// fuse.Getcontext(), which is unsafe to call outside an active
	// mount; tests substitute a fake so dispatcher methods can be
	// exercised without one.
	GetContext func() (uid, gid uint32, pid int)
}

func (d *Dispatcher) host() hostOps {
	if d.Host != nil {
		return d.Host
	}
	return realHost{}
}

// callerContext reads the uid/gid/pid FUSE attaches to the request
// currently being serviced (fuse_get_context() in the original C).
func (d *Dispatcher) callerContext() (resolver.Context, credscope.Context) {
	getContext := d.GetContext
	if getContext == nil {
		getContext = fuse.Getcontext
	}
	uid, gid, pid := getContext()
	return resolver.Context{UID: uid, GID: gid},
		credscope.Context{UID: uid, GID: gid, PID: uint32(pid)}
}

// errc normalizes any error this package's collaborators can return
// into the negative host error code FUSE expects. A nil error (path
// resolution and host calls both use this convention) becomes 0.
func errc(err error) int {
	if err == nil {
		return 0
	}
	if n, ok := err.(interface{ Errno() int }); ok {
		return -n.Errno()
	}
	return -int(unix.EIO)
}

// resolve performs path resolution under instrumentation; on failure
// it also returns the already-negated error code the callback should
// return immediately.
func (d *Dispatcher) resolve(op, path string) (string, int) {
	rctx, _ := d.callerContext()
	full, err := d.Resolver.Resolve(rctx, path)
	if err != nil {
		d.Metrics.ObserveError(op)
		return "", errc(err)
	}
	return full, 0
}

func (d *Dispatcher) enter() (credscope.Token, func()) {
	_, cctx := d.callerContext()
	tok := d.Scope.Enter(cctx)
	return tok, func() { d.Scope.Leave(tok) }
}

func (d *Dispatcher) Init() {
	d.Log.Noticef("initialising unsharedfs with base uid/gid %d/%d at %s",
		d.Resolver.Config.BaseUID, d.Resolver.Config.BaseGID, d.Resolver.Config.BackingRoot)
}

func (d *Dispatcher) Destroy() {
	d.Log.Noticef("releasing unsharedfs at %s", d.Resolver.Config.BackingRoot)
}

func (d *Dispatcher) Getattr(path string, stat *fuse.Stat_t, fh uint64) (errno int) {
	defer d.Metrics.Observe("getattr")()

	if fh != ^uint64(0) {
		_, leave := d.enter()
		defer leave()
		var st unix.Stat_t
		if err := d.host().Fstat(int(fh), &st); err != nil {
			return errc(err)
		}
		fillStat(stat, &st)
		return 0
	}

	full, rc := d.resolve("getattr", path)
	if rc != 0 {
		return rc
	}
	_, leave := d.enter()
	defer leave()

	var st unix.Stat_t
	if err := d.host().Lstat(full, &st); err != nil {
		return errc(err)
	}
	fillStat(stat, &st)
	return 0
}

func (d *Dispatcher) Access(path string, mask uint32) (errno int) {
	defer d.Metrics.Observe("access")()
	full, rc := d.resolve("access", path)
	if rc != 0 {
		return rc
	}
	_, leave := d.enter()
	defer leave()
	return errc(d.host().Access(full, mask))
}

func (d *Dispatcher) Readlink(path string) (errno int, target string) {
	defer d.Metrics.Observe("readlink")()
	full, rc := d.resolve("readlink", path)
	if rc != 0 {
		return rc, ""
	}
	_, leave := d.enter()
	defer leave()
	link, err := d.host().Readlink(full, resolver.PathMax)
	if err != nil {
		return errc(err), ""
	}
	return 0, link
}

func (d *Dispatcher) Mknod(path string, mode uint32, dev uint64) (errno int) {
	defer d.Metrics.Observe("mknod")()
	full, rc := d.resolve("mknod", path)
	if rc != 0 {
		return rc
	}
	_, leave := d.enter()
	defer leave()
	return errc(d.host().Mknod(full, mode, dev))
}

func (d *Dispatcher) Mkdir(path string, mode uint32) (errno int) {
	defer d.Metrics.Observe("mkdir")()
	full, rc := d.resolve("mkdir", path)
	if rc != 0 {
		return rc
	}
	_, leave := d.enter()
	defer leave()
	return errc(d.host().Mkdir(full, mode))
}

func (d *Dispatcher) Unlink(path string) (errno int) {
	defer d.Metrics.Observe("unlink")()
	full, rc := d.resolve("unlink", path)
	if rc != 0 {
		return rc
	}
	_, leave := d.enter()
	defer leave()
	return errc(d.host().Unlink(full))
}

func (d *Dispatcher) Rmdir(path string) (errno int) {
	defer d.Metrics.Observe("rmdir")()
	full, rc := d.resolve("rmdir", path)
	if rc != 0 {
		return rc
	}
	_, leave := d.enter()
	defer leave()
	return errc(d.host().Rmdir(full))
}

// Symlink leaves target untouched (spec.md §4.3's invariant 5); only
// newpath is resolved against the backing tree.
func (d *Dispatcher) Symlink(target string, newpath string) (errno int) {
	defer d.Metrics.Observe("symlink")()
	fullNew, rc := d.resolve("symlink", newpath)
	if rc != 0 {
		return rc
	}
	_, leave := d.enter()
	defer leave()
	return errc(d.host().Symlink(target, fullNew))
}

// Rename resolves both paths independently before entering the
// credential scope, fixing the original implementation's bug of only
// ever resolving the source path.
func (d *Dispatcher) Rename(oldpath string, newpath string) (errno int) {
	defer d.Metrics.Observe("rename")()
	fullOld, rc := d.resolve("rename", oldpath)
	if rc != 0 {
		return rc
	}
	fullNew, rc := d.resolve("rename", newpath)
	if rc != 0 {
		return rc
	}
	_, leave := d.enter()
	defer leave()
	return errc(d.host().Rename(fullOld, fullNew))
}

// Link resolves both paths independently, the same fix as Rename.
func (d *Dispatcher) Link(oldpath string, newpath string) (errno int) {
	defer d.Metrics.Observe("link")()
	fullOld, rc := d.resolve("link", oldpath)
	if rc != 0 {
		return rc
	}
	fullNew, rc := d.resolve("link", newpath)
	if rc != 0 {
		return rc
	}
	_, leave := d.enter()
	defer leave()
	return errc(d.host().Link(fullOld, fullNew))
}

func (d *Dispatcher) Chmod(path string, mode uint32) (errno int) {
	defer d.Metrics.Observe("chmod")()
	full, rc := d.resolve("chmod", path)
	if rc != 0 {
		return rc
	}
	_, leave := d.enter()
	defer leave()
	return errc(d.host().Chmod(full, mode))
}

func (d *Dispatcher) Chown(path string, uid uint32, gid uint32) (errno int) {
	defer d.Metrics.Observe("chown")()
	full, rc := d.resolve("chown", path)
	if rc != 0 {
		return rc
	}
	_, leave := d.enter()
	defer leave()
	return errc(d.host().Chown(full, int(uid), int(gid)))
}

func (d *Dispatcher) Truncate(path string, size int64, fh uint64) (errno int) {
	defer d.Metrics.Observe("truncate")()
	if fh != ^uint64(0) {
		_, leave := d.enter()
		defer leave()
		return errc(d.host().Ftruncate(int(fh), size))
	}
	full, rc := d.resolve("truncate", path)
	if rc != 0 {
		return rc
	}
	_, leave := d.enter()
	defer leave()
	return errc(d.host().Truncate(full, size))
}

func (d *Dispatcher) Utimens(path string, tmsp []fuse.Timespec) (errno int) {
	defer d.Metrics.Observe("utimens")()
	full, rc := d.resolve("utimens", path)
	if rc != 0 {
		return rc
	}
	_, leave := d.enter()
	defer leave()
	at := unix.Timespec{Sec: tmsp[0].Sec, Nsec: tmsp[0].Nsec}
	mt := unix.Timespec{Sec: tmsp[1].Sec, Nsec: tmsp[1].Nsec}
	return errc(d.host().Utimens(full, at, mt))
}

func (d *Dispatcher) Create(path string, flags int, mode uint32) (errno int, fh uint64) {
	defer d.Metrics.Observe("create")()
	full, rc := d.resolve("create", path)
	if rc != 0 {
		return rc, ^uint64(0)
	}
	_, leave := d.enter()
	defer leave()
	fd, err := d.host().Open(full, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR, mode)
	if err != nil {
		return errc(err), ^uint64(0)
	}
	return 0, uint64(fd)
}

func (d *Dispatcher) Open(path string, flags int) (errno int, fh uint64) {
	defer d.Metrics.Observe("open")()
	full, rc := d.resolve("open", path)
	if rc != 0 {
		return rc, ^uint64(0)
	}
	_, leave := d.enter()
	defer leave()
	fd, err := d.host().Open(full, flags, 0)
	if err != nil {
		return errc(err), ^uint64(0)
	}
	return 0, uint64(fd)
}

func (d *Dispatcher) Read(path string, buff []byte, ofst int64, fh uint64) (n int) {
	defer d.Metrics.Observe("read")()
	_, leave := d.enter()
	defer leave()
	got, err := d.host().Pread(int(fh), buff, ofst)
	if err != nil {
		return errc(err)
	}
	return got
}

func (d *Dispatcher) Write(path string, buff []byte, ofst int64, fh uint64) (n int) {
	defer d.Metrics.Observe("write")()
	_, leave := d.enter()
	defer leave()
	put, err := d.host().Pwrite(int(fh), buff, ofst)
	if err != nil {
		return errc(err)
	}
	return put
}

func (d *Dispatcher) Release(path string, fh uint64) (errno int) {
	defer d.Metrics.Observe("release")()
	_, leave := d.enter()
	defer leave()
	return errc(d.host().Close(int(fh)))
}

func (d *Dispatcher) Fsync(path string, datasync bool, fh uint64) (errno int) {
	defer d.Metrics.Observe("fsync")()
	_, leave := d.enter()
	defer leave()
	return errc(d.host().Fsync(int(fh), datasync))
}

func (d *Dispatcher) Statfs(path string, stat *fuse.Statfs_t) (errno int) {
	defer d.Metrics.Observe("statfs")()
	full, rc := d.resolve("statfs", path)
	if rc != 0 {
		return rc
	}
	_, leave := d.enter()
	defer leave()
	st, err := d.host().Statvfs(full)
	if err != nil {
		return errc(err)
	}
	stat.Bsize = uint64(st.Bsize)
	stat.Frsize = uint64(st.Frsize)
	stat.Blocks = st.Blocks
	stat.Bfree = st.Bfree
	stat.Bavail = st.Bavail
	stat.Files = st.Files
	stat.Ffree = st.Ffree
	stat.Namemax = uint64(st.Namelen)
	return 0
}

func (d *Dispatcher) Setxattr(path string, name string, value []byte, flags int) (errno int) {
	defer d.Metrics.Observe("setxattr")()
	full, rc := d.resolve("setxattr", path)
	if rc != 0 {
		return rc
	}
	_, leave := d.enter()
	defer leave()
	return errc(d.host().Setxattr(full, name, value, flags))
}

func (d *Dispatcher) Getxattr(path string, name string) (errno int, value []byte) {
	defer d.Metrics.Observe("getxattr")()
	full, rc := d.resolve("getxattr", path)
	if rc != 0 {
		return rc, nil
	}
	_, leave := d.enter()
	defer leave()

	size, err := d.host().Getxattr(full, name, nil)
	if err != nil {
		return errc(err), nil
	}
	if size == 0 {
		return 0, []byte{}
	}
	buf := make([]byte, size)
	n, err := d.host().Getxattr(full, name, buf)
	if err != nil {
		return errc(err), nil
	}
	return 0, buf[:n]
}

func (d *Dispatcher) Listxattr(path string, fill func(name string) bool) (errno int) {
	defer d.Metrics.Observe("listxattr")()
	full, rc := d.resolve("listxattr", path)
	if rc != 0 {
		return rc
	}
	_, leave := d.enter()
	defer leave()

	size, err := d.host().Listxattr(full, nil)
	if err != nil {
		return errc(err)
	}
	if size == 0 {
		return 0
	}
	buf := make([]byte, size)
	n, err := d.host().Listxattr(full, buf)
	if err != nil {
		return errc(err)
	}
	for _, name := range splitNulTerminated(buf[:n]) {
		if !fill(name) {
			break
		}
	}
	return 0
}

func (d *Dispatcher) Removexattr(path string, name string) (errno int) {
	defer d.Metrics.Observe("removexattr")()
	full, rc := d.resolve("removexattr", path)
	if rc != 0 {
		return rc
	}
	_, leave := d.enter()
	defer leave()
	return errc(d.host().Removexattr(full, name))
}

func (d *Dispatcher) Opendir(path string) (errno int, fh uint64) {
	defer d.Metrics.Observe("opendir")()
	full, rc := d.resolve("opendir", path)
	if rc != 0 {
		return rc, ^uint64(0)
	}
	_, leave := d.enter()
	defer leave()
	fd, err := d.host().Opendir(full)
	if err != nil {
		return errc(err), ^uint64(0)
	}
	return 0, uint64(fd)
}

// Readdir copies the whole backing directory in one pass (mode 1 of
// the host readdir(3) contract): offsets are always zero and the
// filler is never expected to signal "buffer full".
func (d *Dispatcher) Readdir(path string,
	fill func(name string, stat *fuse.Stat_t, ofst int64) bool,
	ofst int64,
	fh uint64) (errno int) {
	defer d.Metrics.Observe("readdir")()
	_, leave := d.enter()
	defer leave()

	full := true
	err := d.host().Readdir(int(fh), func(name string) bool {
		ok := fill(name, nil, 0)
		if !ok {
			full = false
		}
		return ok
	})
	if err != nil {
		return errc(err)
	}
	if !full {
		// The filler refused an entry: fs.c's unsharedfs_readdir
		// treats that as a full buffer and reports -ENOMEM.
		return -int(unix.ENOMEM)
	}
	return 0
}

func (d *Dispatcher) Releasedir(path string, fh uint64) (errno int) {
	defer d.Metrics.Observe("releasedir")()
	_, leave := d.enter()
	defer leave()
	return errc(d.host().Closedir(int(fh)))
}

func fillStat(stat *fuse.Stat_t, st *unix.Stat_t) {
	stat.Dev = uint64(st.Dev)
	stat.Ino = st.Ino
	stat.Mode = st.Mode
	stat.Nlink = uint32(st.Nlink)
	stat.Uid = st.Uid
	stat.Gid = st.Gid
	stat.Rdev = uint64(st.Rdev)
	stat.Size = st.Size
	stat.Atim = fuse.Timespec{Sec: st.Atim.Sec, Nsec: st.Atim.Nsec}
	stat.Mtim = fuse.Timespec{Sec: st.Mtim.Sec, Nsec: st.Mtim.Nsec}
	stat.Ctim = fuse.Timespec{Sec: st.Ctim.Sec, Nsec: st.Ctim.Nsec}
	stat.Blksize = int64(st.Blksize)
	stat.Blocks = st.Blocks
}

func splitNulTerminated(buf []byte) []string {
	var names []string
	start := 0
	for i, b := range buf {
		if b == 0 {
			if i > start {
				names = append(names, string(buf[start:i]))
			}
			start = i + 1
		}
	}
	return names
}

// hostOps is the set of host filesystem calls a dispatcher callback
// can issue, one method per internal/port function the dispatcher
// uses. It exists so the callback logic above — path handling,
// credential switching, error normalization — can be exercised
// against a fake, the same way internal/resolver is decoupled from
// the filesystem via Stater.
type hostOps interface {
	Lstat(path string, out *unix.Stat_t) error
	Fstat(fd int, out *unix.Stat_t) error
	Access(path string, mask uint32) error
	Readlink(path string, size int) (string, error)
	Mknod(path string, mode uint32, dev uint64) error
	Mkdir(path string, mode uint32) error
	Unlink(path string) error
	Rmdir(path string) error
	Link(oldpath, newpath string) error
	Symlink(target, newpath string) error
	Rename(oldpath, newpath string) error
	Chmod(path string, mode uint32) error
	Chown(path string, uid, gid int) error
	Truncate(path string, size int64) error
	Ftruncate(fd int, size int64) error
	Utimens(path string, atime, mtime unix.Timespec) error
	Open(path string, flags int, mode uint32) (int, error)
	Pread(fd int, buf []byte, offset int64) (int, error)
	Pwrite(fd int, buf []byte, offset int64) (int, error)
	Close(fd int) error
	Fsync(fd int, datasync bool) error
	Statvfs(path string) (unix.Statfs_t, error)
	Opendir(path string) (int, error)
	Closedir(fd int) error
	Readdir(fd int, fill func(name string) bool) error
	Setxattr(path, name string, data []byte, flags int) error
	Getxattr(path, name string, dest []byte) (int, error)
	Listxattr(path string, dest []byte) (int, error)
	Removexattr(path, name string) error
}

// realHost is the zero-value hostOps: every real mount dispatches
// straight through to internal/port.
type realHost struct{}

func (realHost) Lstat(path string, out *unix.Stat_t) error { return port.Lstat(path, out) }
func (realHost) Fstat(fd int, out *unix.Stat_t) error       { return port.Fstat(fd, out) }
func (realHost) Access(path string, mask uint32) error      { return port.Access(path, mask) }
func (realHost) Readlink(path string, size int) (string, error) {
	return port.Readlink(path, size)
}
func (realHost) Mknod(path string, mode uint32, dev uint64) error {
	return port.Mknod(path, mode, dev)
}
func (realHost) Mkdir(path string, mode uint32) error    { return port.Mkdir(path, mode) }
func (realHost) Unlink(path string) error                { return port.Unlink(path) }
func (realHost) Rmdir(path string) error                 { return port.Rmdir(path) }
func (realHost) Link(oldpath, newpath string) error      { return port.Link(oldpath, newpath) }
func (realHost) Symlink(target, newpath string) error    { return port.Symlink(target, newpath) }
func (realHost) Rename(oldpath, newpath string) error     { return port.Rename(oldpath, newpath) }
func (realHost) Chmod(path string, mode uint32) error     { return port.Chmod(path, mode) }
func (realHost) Chown(path string, uid, gid int) error    { return port.Chown(path, uid, gid) }
func (realHost) Truncate(path string, size int64) error   { return port.Truncate(path, size) }
func (realHost) Ftruncate(fd int, size int64) error       { return port.Ftruncate(fd, size) }
func (realHost) Utimens(path string, atime, mtime unix.Timespec) error {
	return port.Utimens(path, atime, mtime)
}
func (realHost) Open(path string, flags int, mode uint32) (int, error) {
	return port.Open(path, flags, mode)
}
func (realHost) Pread(fd int, buf []byte, offset int64) (int, error) {
	return port.Pread(fd, buf, offset)
}
func (realHost) Pwrite(fd int, buf []byte, offset int64) (int, error) {
	return port.Pwrite(fd, buf, offset)
}
func (realHost) Close(fd int) error                  { return port.Close(fd) }
func (realHost) Fsync(fd int, datasync bool) error   { return port.Fsync(fd, datasync) }
func (realHost) Statvfs(path string) (unix.Statfs_t, error) { return port.Statvfs(path) }
func (realHost) Opendir(path string) (int, error)    { return port.Opendir(path) }
func (realHost) Closedir(fd int) error               { return port.Closedir(fd) }
func (realHost) Readdir(fd int, fill func(name string) bool) error {
	return port.Readdir(fd, fill)
}
func (realHost) Setxattr(path, name string, data []byte, flags int) error {
	return port.Setxattr(path, name, data, flags)
}
func (realHost) Getxattr(path, name string, dest []byte) (int, error) {
	return port.Getxattr(path, name, dest)
}
func (realHost) Listxattr(path string, dest []byte) (int, error) {
	return port.Listxattr(path, dest)
}
func (realHost) Removexattr(path, name string) error { return port.Removexattr(path, name) }
