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

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/jzarl/unsharedfs/internal/cliopts"
	"github.com/jzarl/unsharedfs/internal/credscope"
	"github.com/jzarl/unsharedfs/internal/logger"
	"github.com/jzarl/unsharedfs/internal/metrics"
	"github.com/jzarl/unsharedfs/internal/port"
	"github.com/jzarl/unsharedfs/internal/resolver"
	"github.com/jzarl/unsharedfs/internal/unsharedfs"
)

var progname = strings.TrimSuffix(filepath.Base(os.Args[0]), ".exe")

// metricsAddr, when non-empty, is pulled out of the fused option
// stream before it reaches FUSE: it is an unsharedfs-specific
// ambient-observability knob ("-o metrics=ADDR"), not a mount option
// any FUSE implementation understands.
func extractMetricsAddr(fuseArgs []string) (addr string, rest []string) {
	const prefix = "metrics="
	for i := 0; i < len(fuseArgs); i++ {
		arg := fuseArgs[i]
		if arg == "-o" && i+1 < len(fuseArgs) && strings.HasPrefix(fuseArgs[i+1], prefix) {
			addr = strings.TrimPrefix(fuseArgs[i+1], prefix)
			i++
			continue
		}
		rest = append(rest, arg)
	}
	return addr, rest
}

func warn(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, progname+": "+format+"\n", a...)
}

func run() int {
	result, err := cliopts.Parse(os.Args[1:])
	if exitReq, ok := err.(*cliopts.ExitRequest); ok {
		fmt.Print(exitReq.Message)
		return exitReq.Code
	}
	if err != nil {
		warn("%v", err)
		return 1
	}

	cfg := result.Config
	cfg.BaseUID = uint32(os.Getuid())
	cfg.BaseGID = uint32(os.Getgid())

	log := logger.New(progname)
	if err := logger.EnableSyslog(progname); err != nil {
		log.Debugf("system log unavailable: %v", err)
	}

	if os.Getuid() != 0 && os.Geteuid() != 0 {
		warn("file system needs root privileges for proper function.")
		warn("all accesses will be redirected to %s/%d and be executed under the uid of the current user.",
			cfg.BackingRoot, os.Getuid())
	}
	if !cfg.AllowOtherSet {
		warn(`allow_other is not set. Specify "-o allow_other" to allow other users to access the mount point.`)
		return 1
	}

	res := &resolver.Resolver{Config: &cfg, Stat: port.ResolverStat{}, Log: log}
	scope := &credscope.Scope{BaseUID: cfg.BaseUID, BaseGID: cfg.BaseGID, Log: log}

	metricsAddr, fuseArgs := extractMetricsAddr(result.FuseArgs)
	if result.MountPoint != "" && len(fuseArgs) > 0 && fuseArgs[len(fuseArgs)-1] == result.MountPoint {
		fuseArgs = fuseArgs[:len(fuseArgs)-1]
	}

	var mtr *metrics.Metrics
	if metricsAddr != "" {
		mtr = metrics.New()
		go metrics.Serve(metricsAddr, log)
	}

	disp := &unsharedfs.Dispatcher{Resolver: res, Scope: scope, Log: log, Metrics: mtr}
	host := fuse.NewFileSystemHost(disp)
	host.SetCapReaddirPlus(false)

	if !host.Mount(result.MountPoint, fuseArgs) {
		warn("fuse_main returned an error")
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
