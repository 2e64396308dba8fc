// Package repl implements the replication manager (C6), replica client
// (C7), and WAIT barrier (C8) (§4.6, §4.7).
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package repl

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
)

type Role string

const (
	RoleMaster Role = "master"
	RoleSlave  Role = "slave"
)

// State is the Replication State entity of §3: role, run id, and the two
// byte-offset counters. Offsets are atomics so handlers can bump them
// without taking the coordinator's lock, and INFO REPLICATION can read
// them consistently from any goroutine.
type State struct {
	Role          Role
	MasterReplID  string
	masterOffset  atomic.Uint64
	slaveOffset   atomic.Uint64
}

// NewMaster creates Replication State for a primary, minting a fresh
// 40-hex-char run id (§3 "master_replid (40 hex chars on primary)").
func NewMaster() *State {
	return &State{Role: RoleMaster, MasterReplID: genReplID()}
}

// NewSlave creates Replication State for a replica; MasterReplID is filled
// in once the handshake's +FULLRESYNC reply is parsed (§4.6 step 5).
func NewSlave() *State {
	return &State{Role: RoleSlave}
}

func genReplID() string {
	b := make([]byte, 20) // 20 bytes -> 40 hex chars
	if _, err := rand.Read(b); err != nil {
		panic("repl: failed to generate replid: " + err.Error())
	}
	return hex.EncodeToString(b)
}

func (s *State) MasterOffset() uint64     { return s.masterOffset.Load() }
func (s *State) AddMasterOffset(n int)    { s.masterOffset.Add(uint64(n)) }
func (s *State) SlaveOffset() uint64      { return s.slaveOffset.Load() }
func (s *State) AddSlaveOffset(n int)     { s.slaveOffset.Add(uint64(n)) }
func (s *State) SetMasterReplID(id string) { s.MasterReplID = id }

// InfoReplication renders the `INFO REPLICATION` bulk body (§4.4, §6):
// newline-separated k:v lines, role plus the required/applicable offsets.
func (s *State) InfoReplication() string {
	out := fmt.Sprintf("role:%s\r\nmaster_replid:%s\r\nmaster_repl_offset:%d\r\n",
		s.Role, s.MasterReplID, s.masterOffset.Load())
	if s.Role == RoleSlave {
		out += fmt.Sprintf("slave_repl_offset:%d\r\n", s.slaveOffset.Load())
	}
	return out
}
