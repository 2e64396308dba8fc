package repl

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ais-project/keyd/cmn/cos"
	"github.com/ais-project/keyd/cmn/nlog"
)

// Propagate fans frame out to every currently connected replica (§4.6 step
// 4). Each handle's Enqueue is non-blocking against its own outbox only,
// and the fan-out itself runs concurrently via errgroup, so one replica
// with a full queue cannot delay delivery to the others. Handles that
// turn out to be gone are collected into a single bounded Errs report
// instead of one log line per dead peer.
func (r *Registry) Propagate(frame []byte) {
	handles := r.Snapshot()
	if len(handles) == 0 {
		return
	}
	var (
		g    errgroup.Group
		dead cos.Errs
	)
	for _, h := range handles {
		h := h
		g.Go(func() error {
			if !h.Enqueue(frame) {
				dead.Add(fmt.Errorf("replica %s: outbox closed", h.ID))
			}
			return nil
		})
	}
	_ = g.Wait()
	if dead.Cnt() > 0 {
		nlog.Warningf("propagate: %d replica(s) unreachable: %v", dead.Cnt(), dead.Err())
	}
}
