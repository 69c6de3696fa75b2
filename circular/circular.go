// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package circular

import "math/bits"

// NextExp2 returns the next power of 2 strictly greater than x.  (Useful when
// setting circular buffer size.)
func NextExp2(x int) int {
	log2 := 63 - bits.LeadingZeros64(uint64(x))
	return 2 << uint32(log2)
}

// IsExp2 returns true iff x is a positive power of 2.
func IsExp2(x int) bool {
	return x > 0 && (x&(x-1)) == 0
}

// RoundUpExp2 returns the smallest power of 2 >= x.  Nonpositive x yields 1.
func RoundUpExp2(x int) int {
	if x <= 1 {
		return 1
	}
	if IsExp2(x) {
		return x
	}
	return NextExp2(x)
}
