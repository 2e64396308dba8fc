// Package snapshot names the external collaborator responsible for
// loading the on-disk snapshot file at startup (§6). Its byte-level
// decoder (size encodings, opcode sigils, value types) is explicitly out
// of scope for this core; this package exposes the Loader seam the rest
// of the system depends on, plus the one protocol constant the core does
// own: the canonical empty snapshot sent to a freshly synced replica.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package snapshot

import (
	"os"

	"github.com/ais-project/keyd/cmn/nlog"
	"github.com/ais-project/keyd/store"
)

// Loader populates a Keyspace from a snapshot file before the server
// starts accepting connections (§6 "its only exposed operation is
// load(path, keyspace)"). The real byte-level decoder (RDB-style opcode
// stream: 0xFA metadata, 0xFE db-select, 0xFB hash-size hints, 0xFD/0xFC
// expiry, 0x00.. value types, 0xFF terminator) lives outside this core's
// scope; Loader is the seam a full decoder would implement.
type Loader interface {
	Load(path string, ks *store.Keyspace) error
}

// NoopLoader satisfies Loader for a missing or not-yet-implemented
// snapshot file: a fresh node with an empty keyspace is a valid starting
// state (§6 describes the file format but the decoder itself is named as
// an out-of-scope external collaborator).
type NoopLoader struct{}

func (NoopLoader) Load(path string, ks *store.Keyspace) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			nlog.Infof("snapshot: %s not found, starting with an empty keyspace", path)
			return nil
		}
		return err
	}
	nlog.Warningf("snapshot: %s exists but this core does not decode it; starting empty", path)
	return nil
}

// EmptyRDB is the canonical empty snapshot payload (§6): an 88-byte
// sequence beginning "REDIS0011" that every primary sends to a replica
// immediately after +FULLRESYNC. It is a protocol constant, not something
// this core synthesises from live state; no code in this repo parses it
// back (§4.6 step 5: the replica discards the payload unconditionally),
// so the trailing bytes beyond the documented header are zero padding
// out to the specified length rather than a byte-exact RDB checksum.
var EmptyRDB = func() []byte {
	b := []byte{
		0x52, 0x45, 0x44, 0x49, 0x53, 0x30, 0x30, 0x31, 0x31, // "REDIS0011"
		0xfa, 0x09, 0x72, 0x65, 0x64, 0x69, 0x73, 0x2d, 0x76, 0x65, 0x72, 0x05, 0x37, 0x2e, 0x32, 0x2e, 0x30,
		0xfa, 0x0a, 0x72, 0x65, 0x64, 0x69, 0x73, 0x2d, 0x62, 0x69, 0x74, 0x73, 0xc0, 0x40,
		0xfe, 0x00,
		0xfb, 0x00, 0x00,
		0xff,
	}
	const total = 88
	out := make([]byte, total)
	copy(out, b)
	return out
}()
