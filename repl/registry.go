package repl

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/ais-project/keyd/cmn/nlog"
)

// ReplicaHandle is the primary's view of one connected replica: an outbound
// queue drained by a dedicated writer goroutine, so a slow or stalled
// replica's socket never blocks the coordinator lock or any other client
// (§5). Modeled on the teacher's one-goroutine-per-peer stream bundle.
type ReplicaHandle struct {
	ID   string // short id, for log correlation only
	Addr string

	conn   net.Conn
	outbox chan []byte
	done   chan struct{}
	once   sync.Once

	ackOffset atomic.Uint64 // last offset reported via REPLCONF ACK
	ackedGen  atomic.Uint64 // highest WAIT generation satisfied (see barrier.go)
}

// NewReplicaHandle starts the handle's writer goroutine and returns
// immediately; the caller registers it with a Registry.
func NewReplicaHandle(id string, conn net.Conn) *ReplicaHandle {
	h := &ReplicaHandle{
		ID:     id,
		Addr:   conn.RemoteAddr().String(),
		conn:   conn,
		outbox: make(chan []byte, 256),
		done:   make(chan struct{}),
	}
	go h.writeLoop()
	return h
}

func (h *ReplicaHandle) writeLoop() {
	for {
		select {
		case b, ok := <-h.outbox:
			if !ok {
				return
			}
			if _, err := h.conn.Write(b); err != nil {
				nlog.Warningf("replica %s: write failed: %v", h.ID, err)
				h.Close()
				return
			}
		case <-h.done:
			return
		}
	}
}

// Enqueue queues a frame for this replica; the caller does not wait on the
// replica's socket write itself, but does block while the outbox's 256
// slots are all full. It reports whether the handle was still alive
// at enqueue time; a false return means the caller should expect the
// registry to drop this handle shortly (the session loop notices the
// closed connection and calls Registry.Remove).
func (h *ReplicaHandle) Enqueue(frame []byte) bool {
	select {
	case h.outbox <- frame:
		return true
	case <-h.done:
		return false
	}
}

// Close stops the writer goroutine and closes the underlying socket. Safe
// to call more than once.
func (h *ReplicaHandle) Close() {
	h.once.Do(func() {
		close(h.done)
		h.conn.Close()
	})
}

// Registry is the Replica Registry of §5: the set of currently connected
// replicas, held as a copy-on-write slice behind an atomic pointer so
// readers (WAIT, propagation fan-out) can snapshot it without contending
// with Add/Remove, and without ever holding a lock while writing to a
// replica socket. Grounded on the teacher's transport/bundle atomic-pointer
// swap idiom for lock-free multi-target fan-out.
type Registry struct {
	mu      sync.Mutex // serializes Add/Remove; readers never take it
	handles atomic.Pointer[[]*ReplicaHandle]
}

func NewRegistry() *Registry {
	r := &Registry{}
	empty := []*ReplicaHandle{}
	r.handles.Store(&empty)
	return r
}

func (r *Registry) Add(h *ReplicaHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := *r.handles.Load()
	next := make([]*ReplicaHandle, 0, len(old)+1)
	next = append(next, old...)
	next = append(next, h)
	r.handles.Store(&next)
}

func (r *Registry) Remove(h *ReplicaHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := *r.handles.Load()
	next := make([]*ReplicaHandle, 0, len(old))
	for _, e := range old {
		if e != h {
			next = append(next, e)
		}
	}
	r.handles.Store(&next)
	h.Close()
}

// Snapshot returns the current slice of replica handles. Callers must not
// mutate the returned slice; Add/Remove never mutate an already-published
// one either.
func (r *Registry) Snapshot() []*ReplicaHandle {
	return *r.handles.Load()
}

func (r *Registry) Len() int { return len(r.Snapshot()) }
