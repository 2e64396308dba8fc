// Package store implements the Keyspace (C2): a mapping from string key to
// a typed Value Record with per-key lazy expiry (§3, §4.2).
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package store

import (
	"github.com/ais-project/keyd/cmn/mono"
	"github.com/ais-project/keyd/xstream"
)

// Kind tags the union a Value Record holds (§3 "Entity: Value Record").
// INCR operates on a String value whose bytes happen to parse as an
// integer, same as the wire protocol's own GET/SET — there is no separate
// stored "integer" kind, matching TYPE's two-value result set.
type Kind int

const (
	KindString Kind = iota
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindStream:
		return "stream"
	default:
		return "none"
	}
}

// Value is one entry in the Keyspace. hasExpiry/expireAtNano implement the
// optional absolute deadline from §3; PX 0 is represented by setting
// expireAtNano to a reading already in the past.
type Value struct {
	Kind   Kind
	Str    string
	Stream *xstream.Stream

	hasExpiry    bool
	expireAtNano int64
}

func newString(s string) *Value { return &Value{Kind: KindString, Str: s} }

// withExpiry sets an absolute deadline now+pxMs milliseconds from now.
// pxMs == 0 marks the value as already expired (§4.2 SET ... PX semantics).
func (v *Value) withExpiry(pxMs int64) *Value {
	v.hasExpiry = true
	v.expireAtNano = mono.NanoTime() + pxMs*int64(1e6)
	return v
}

// expired reports whether v's deadline, if any, has passed. A tie counts
// as expired so that "PX 0" is observably expired on the very next read.
func (v *Value) expired() bool {
	return v.hasExpiry && mono.NanoTime() >= v.expireAtNano
}
