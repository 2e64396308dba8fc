// Package mono provides a monotonic nanosecond clock, used by the keyspace
// for per-key expiry checks.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

// epoch anchors the monotonic reading embedded in time.Time by time.Since;
// unlike a raw wall-clock read, this value never jumps on NTP adjustment.
var epoch = time.Now()

// NanoTime returns nanoseconds elapsed since process start.
func NanoTime() int64 { return int64(time.Since(epoch)) }

// Since converts a NanoTime reading into a Duration from now.
func Since(ts int64) time.Duration { return time.Duration(NanoTime() - ts) }
