// Package cmn provides configuration and small read-mostly runtime state
// shared across packages.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import "time"

// readMostly mirrors the teacher's cmn.Rom idiom: a handful of frequently
// read, rarely written fields assigned once at startup and read without
// locking from request-handling hot paths, instead of dereferencing the
// full Config on every command.
type readMostly struct {
	idleTimeout time.Duration
	waitPoll    time.Duration
}

var Rom readMostly

func (rom *readMostly) Set(cfg *Config) {
	rom.idleTimeout = cfg.IdleTimeout
	rom.waitPoll = cfg.WaitPollInterval
}

func (rom *readMostly) IdleTimeout() time.Duration     { return rom.idleTimeout }
func (rom *readMostly) WaitPollInterval() time.Duration { return rom.waitPoll }

func init() {
	Rom.idleTimeout = 30 * time.Second
	Rom.waitPoll = 20 * time.Millisecond
}
