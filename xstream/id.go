// Package xstream implements the Stream data type (C3): an ordered log of
// entries keyed by a composite Stream Identifier, with range queries and
// blocking tail reads (§3, §4.3).
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package xstream

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ID is the (ms, seq) Stream Identifier. Total order is lexicographic:
// ms first, then seq (§3).
type ID struct {
	MS  uint64
	Seq uint64
}

var (
	// MinID is the zero identifier — never a valid inserted key (§3).
	MinID = ID{}
	// MaxID is used to denote "+" in XRANGE (§4.3).
	MaxID = ID{MS: math.MaxUint64, Seq: math.MaxUint64}
)

func (id ID) IsZero() bool { return id == MinID }

// Less implements the total order from §3.
func (id ID) Less(other ID) bool {
	if id.MS != other.MS {
		return id.MS < other.MS
	}
	return id.Seq < other.Seq
}

func (id ID) String() string {
	return strconv.FormatUint(id.MS, 10) + "-" + strconv.FormatUint(id.Seq, 10)
}

// ParseID parses a full "ms-seq" identifier. It does not accept "*" or
// "ms-*" — those are resolved by Stream.XAdd, which needs the stream's
// current state to do so.
func ParseID(s string) (ID, error) {
	ms, seq, ok := strings.Cut(s, "-")
	if !ok {
		return ID{}, fmt.Errorf("invalid stream ID %q", s)
	}
	msv, err := strconv.ParseUint(ms, 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("invalid stream ID %q: %w", s, err)
	}
	seqv, err := strconv.ParseUint(seq, 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("invalid stream ID %q: %w", s, err)
	}
	return ID{MS: msv, Seq: seqv}, nil
}

// ParseRangeBound parses an XRANGE endpoint, honoring the "-" / "+"
// sentinels for MinID / MaxID (§4.3).
func ParseRangeBound(s string) (ID, error) {
	switch s {
	case "-":
		return MinID, nil
	case "+":
		return MaxID, nil
	default:
		return ParseID(s)
	}
}

// encodeKey renders id as a fixed-width, zero-padded string so that the
// underlying ordered index's lexicographic ordering coincides with the
// numeric total order of §3 (see SPEC_FULL.md "Storage decision").
func encodeKey(id ID) string {
	return fmt.Sprintf("%020d-%020d", id.MS, id.Seq)
}
