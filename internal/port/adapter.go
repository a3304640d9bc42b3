/*
 * adapter.go
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

import "github.com/jzarl/unsharedfs/internal/resolver"

// ResolverStat adapts StatDir to resolver.Stater, so internal/resolver
// never needs to know this package exists.
type ResolverStat struct{}

func (ResolverStat) Stat(path string) (resolver.StatInfo, error) {
	st, err := StatDir(path)
	if err != nil {
		return resolver.StatInfo{}, err
	}
	return resolver.StatInfo{IsDir: st.IsDir, OwnerUID: st.OwnerUID}, nil
}
