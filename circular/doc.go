// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package circular provides sliding-window data structures which are
// frequently useful when iterating through coordinate-sorted reads.
//
// Window is a position-indexed ring buffer.  Callers touch positions in
// roughly increasing order; once a position falls far enough behind the most
// recent touch, its accumulated depth and payload are handed to an eviction
// callback and the slot is recycled.
package circular
