package repl

import (
	"sync/atomic"
	"time"

	"github.com/ais-project/keyd/cmn"
	"github.com/ais-project/keyd/resp"
)

// waitIndefiniteCap bounds a WAIT call whose timeout_ms argument is 0.
// The spec leaves "0" meaning "wait up to any practical upper bound" up
// to the implementation; rather than block a session goroutine forever
// on a primary that may never see an ack, it is treated as a generous
// but finite cap (see DESIGN.md, Open Questions).
const waitIndefiniteCap = 24 * time.Hour

// Barrier implements the WAIT acknowledgement protocol of §4.7 and §8.
// A WAIT call broadcasts REPLCONF GETACK * to every connected replica,
// then polls each handle's last-satisfied generation until numReplicas of
// them have acked at or after this call's generation, or the deadline
// passes.
type Barrier struct {
	reg   *Registry
	state *State
	gen   atomic.Uint64
}

// NewBarrier constructs the WAIT coordinator for a primary's Replication
// State and Replica Registry.
func NewBarrier(reg *Registry, state *State) *Barrier {
	return &Barrier{reg: reg, state: state}
}

// RecordAck is invoked by the session goroutine serving a replica
// connection whenever it parses `REPLCONF ACK <offset>` from that
// replica (§4.6 step 6). It is never read from the session handling the
// primary's own client commands, only from the replica-serving session,
// per §4.7's explicit routing requirement.
func (b *Barrier) RecordAck(h *ReplicaHandle, offset uint64) {
	h.ackOffset.Store(offset)
	h.ackedGen.Store(b.gen.Load())
}

// Wait blocks until numReplicas replicas have acknowledged this call's
// GETACK broadcast, or timeout elapses (timeout==0 uses waitIndefiniteCap),
// returning the number that had acked when it returned.
func (b *Barrier) Wait(numReplicas int, timeout time.Duration) int {
	handles := b.reg.Snapshot()

	gen := b.gen.Add(1)
	getack := resp.EncArrayOfBulk("REPLCONF", "GETACK", "*")
	for _, h := range handles {
		h.Enqueue(getack)
	}
	b.state.AddMasterOffset(len(getack))

	if timeout <= 0 {
		timeout = waitIndefiniteCap
	}
	deadline := time.Now().Add(timeout)
	poll := cmn.Rom.WaitPollInterval()

	for {
		count := 0
		for _, h := range handles {
			if h.ackedGen.Load() >= gen {
				count++
			}
		}
		if count >= numReplicas || !time.Now().Before(deadline) {
			return count
		}
		time.Sleep(poll)
	}
}
