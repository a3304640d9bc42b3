//go:build linux || darwin || freebsd || openbsd || netbsd

/*
 * syslog_unix.go
 *
 * Copyright 2014 Johannes Zarl
 */
/*
 * This file is part of unsharedfs.
 *
 * This program can be distributed under the terms of the GNU GPLv3.
 * See the file COPYING.
 */

package logger

import "log/syslog"

// EnableSyslog opens a connection to the system log under the given
// tag. Mirrors fs.c's openlog("unsharedfs", LOG_PID, LOG_USER) call
// from unsharedfs_init(). Safe to call more than once; the most recent
// writer wins.
func EnableSyslog(tag string) error {
	w, err := syslog.New(syslog.LOG_USER, tag)
	if err != nil {
		return err
	}
	sink = func(sev Severity, msg string) {
		switch sev {
		case ERROR:
			w.Err(msg)
		case WARNING:
			w.Warning(msg)
		case NOTICE:
			w.Notice(msg)
		case INFO:
			w.Info(msg)
		// DEBUG is never forwarded to syslog, matching fs.c's
		// `prio < LOG_DEBUG` guard in logmsg().
		default:
		}
	}
	return nil
}
