package store

import (
	"sort"
	"strconv"

	"github.com/ais-project/keyd/cmn/cos"
	"github.com/ais-project/keyd/xstream"
)

// Keyspace is the C2 mapping from key to Value Record. It holds no lock of
// its own: per §5, the Keyspace is protected by the single exclusive lock
// owned by the coordinator (server.Coordinator) — every method here
// assumes the caller already holds it.
type Keyspace struct {
	m map[string]*Value

	// streamCreated is closed and replaced every time Stream mints a brand
	// new Stream. XREAD BLOCK on a key that does not exist yet has no
	// per-stream notifier to wait on, so it waits on this instead; once an
	// XADD elsewhere creates the stream, the waiter wakes and re-resolves
	// the key to its now-real notifier.
	streamCreated chan struct{}
}

func New() *Keyspace {
	return &Keyspace{m: make(map[string]*Value), streamCreated: make(chan struct{})}
}

// StreamCreatedChan returns the channel closed whenever a new Stream is
// created in this Keyspace (§4.3/§8 "wakes when any new entry arrives",
// extended to cover streams that do not exist yet at the time XREAD BLOCK
// is issued).
func (ks *Keyspace) StreamCreatedChan() <-chan struct{} {
	return ks.streamCreated
}

// lookup returns the live (non-expired) value at key, removing it first if
// it was found but has expired (§3 invariant, §4.2 "Expiry semantics").
func (ks *Keyspace) lookup(key string) (*Value, bool) {
	v, ok := ks.m[key]
	if !ok {
		return nil, false
	}
	if v.expired() {
		delete(ks.m, key)
		return nil, false
	}
	return v, true
}

// Set implements `SET key value [PX ms]` (§4.2).
func (ks *Keyspace) Set(key, value string, pxMs int64, hasPX bool) {
	v := newString(value)
	if hasPX {
		v.withExpiry(pxMs)
	}
	ks.m[key] = v
}

// Get implements `GET key` (§4.2): returns (value, true) or ("", false) if
// absent or expired.
func (ks *Keyspace) Get(key string) (string, bool) {
	v, ok := ks.lookup(key)
	if !ok || v.Kind != KindString {
		return "", false
	}
	return v.Str, true
}

// Incr implements `INCR key` (§4.2).
func (ks *Keyspace) Incr(key string) (int64, error) {
	v, ok := ks.lookup(key)
	if !ok {
		ks.m[key] = newString("1")
		return 1, nil
	}
	if v.Kind != KindString {
		return 0, errWrongType
	}
	n, err := strconv.ParseInt(v.Str, 10, 64)
	if err != nil {
		return 0, errNotAnInteger
	}
	n++
	v.Str = strconv.FormatInt(n, 10)
	return n, nil
}

// Keys implements `KEYS pattern` (§4.2). The core does not evaluate glob
// patterns against keys (Open Question in §9 — source ignores the
// argument too); it returns every live key.
func (ks *Keyspace) Keys() []string {
	out := make([]string, 0, len(ks.m))
	for k, v := range ks.m {
		if v.expired() {
			continue
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Type implements `TYPE key` (§4.2): "string", "stream", or "none".
func (ks *Keyspace) Type(key string) string {
	v, ok := ks.lookup(key)
	if !ok {
		return "none"
	}
	return v.Kind.String()
}

// Del implements `DEL key` (§4.2): returns 1 if key was present, else 0.
func (ks *Keyspace) Del(key string) int {
	if _, ok := ks.lookup(key); !ok {
		return 0
	}
	delete(ks.m, key)
	return 1
}

// Stream returns the Stream stored at key, creating an empty one when
// create is true and the key is absent. Used by XADD/XRANGE/XREAD (C3).
// Absence is reported as a *cos.ErrNotFound rather than a bare (nil, nil)
// so callers can tell "no such key" apart from a future error class
// without a sentinel-comparison footgun.
func (ks *Keyspace) Stream(key string, create bool) (*xstream.Stream, error) {
	v, ok := ks.lookup(key)
	if !ok {
		if !create {
			return nil, cos.NewErrNotFound("stream %q", key)
		}
		s := xstream.New()
		ks.m[key] = &Value{Kind: KindStream, Stream: s}
		close(ks.streamCreated)
		ks.streamCreated = make(chan struct{})
		return s, nil
	}
	if v.Kind != KindStream {
		return nil, errWrongType
	}
	return v.Stream, nil
}

type cmdError string

func (e cmdError) Error() string { return string(e) }

// Exported so server's dispatch layer can map these to the right RESP
// error reply without parsing error text.
const (
	ErrWrongType    = cmdError("WRONGTYPE Operation against a key holding the wrong kind of value")
	ErrNotAnInteger = cmdError("value is not an integer or out of range")
)

// errWrongType/errNotAnInteger are retained as unexported aliases so the
// method bodies above read naturally; both are the same constant values.
const (
	errWrongType    = ErrWrongType
	errNotAnInteger = ErrNotAnInteger
)
