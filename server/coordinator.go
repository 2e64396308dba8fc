// Package server implements the command handlers (C4) and client session
// (C5): TCP accept loop, per-connection dispatch, and the single owning
// coordinator that holds the Keyspace, Replication State, and Replica
// Registry and serializes access to the Keyspace (§5).
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package server

import (
	"sync"

	"github.com/ais-project/keyd/cmn"
	"github.com/ais-project/keyd/repl"
	"github.com/ais-project/keyd/resp"
	"github.com/ais-project/keyd/store"
)

// Coordinator is the single owning handle of §9's "global mutable state"
// re-architecture note: every session holds a reference to one
// Coordinator instead of reaching for package-level globals. Every
// Keyspace operation runs under its one exclusive lock (§5). The
// Replication State and Replica Registry do not take this lock: the
// offsets are atomic counters, and the registry is a copy-on-write list
// with its own mutex for Add/Remove.
type Coordinator struct {
	mu  sync.Mutex
	ks  *store.Keyspace
	cfg *cmn.Config

	Repl     *repl.State
	Registry *repl.Registry
	Barrier  *repl.Barrier

	Metrics *Metrics
}

func NewCoordinator(cfg *cmn.Config, replState *repl.State) *Coordinator {
	reg := repl.NewRegistry()
	return &Coordinator{
		ks:       store.New(),
		cfg:      cfg,
		Repl:     replState,
		Registry: reg,
		Barrier:  repl.NewBarrier(reg, replState),
		Metrics:  NewMetrics(),
	}
}

// Keyspace exposes the underlying store for startup-time snapshot loading
// only; every other access runs through the locked withLock helper below.
func (c *Coordinator) Keyspace() *store.Keyspace { return c.ks }

// withLock runs fn with the coordinator lock held, per §5's single
// exclusive lock policy.
func (c *Coordinator) withLock(fn func(ks *store.Keyspace)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.ks)
}

// IsPrimary reports whether this node accepts writes directly (as opposed
// to only applying propagated ones).
func (c *Coordinator) IsPrimary() bool { return c.Repl.Role == repl.RoleMaster }

// Apply implements repl.Applier: it runs a propagated write verb against
// the keyspace without producing a reply (§4.6 step 6, §7 "a replica
// never replies to propagated writes").
func (c *Coordinator) Apply(cmd *resp.Command) {
	c.withLock(func(ks *store.Keyspace) {
		execWrite(ks, cmd)
	})
}

// PropagateIfWrite hands a just-applied command's raw frame to the
// Replica Registry when this node is primary and the verb is a write
// (§4.5 step 4), bumping master_repl_offset by the frame length exactly
// once regardless of replica count.
func (c *Coordinator) PropagateIfWrite(cmd *resp.Command) {
	if !c.IsPrimary() || !writeVerbs[cmd.Verb] {
		return
	}
	c.Registry.Propagate(cmd.Raw)
	c.Repl.AddMasterOffset(len(cmd.Raw))
	c.Metrics.PropagatedBytes.Add(float64(len(cmd.Raw)))
}
