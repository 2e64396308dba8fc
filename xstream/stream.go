package xstream

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/buntdb"

	"github.com/ais-project/keyd/cmn/debug"
)

// Entry is one stored record: an identifier plus its field/value pairs in
// original insertion order, flattened as [f1, v1, f2, v2, ...] (§3).
type Entry struct {
	ID     ID
	Fields []string
}

// Stream is the C3 ordered container. Entries are held in an in-memory
// buntdb index keyed by the fixed-width encoding of their ID, giving
// O(log N) insert and ordered range iteration (see SPEC_FULL.md "Storage
// decision") without a hand-rolled balanced tree. A Stream is safe for
// concurrent use.
type Stream struct {
	mu  sync.Mutex
	db  *buntdb.DB
	max ID

	// notifyCh is closed (and replaced) every time XAdd succeeds, waking
	// any XREAD BLOCK waiting on NotifyChan (§4.3, §9 notifier design).
	notifyCh chan struct{}
}

func New() *Stream {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		// buntdb can only fail to open ":memory:" on catastrophic
		// resource exhaustion; nothing downstream can recover from it.
		panic("xstream: failed to open in-memory index: " + err.Error())
	}
	return &Stream{db: db, notifyCh: make(chan struct{})}
}

// Max returns the stream's current maximum identifier (MinID if empty).
func (s *Stream) Max() ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.max
}

// NotifyChan returns a channel that is closed the next time an entry is
// successfully appended. Callers needing to block across multiple streams
// (XREAD with several STREAMS keys) collect one such channel per stream
// and select across all of them plus a deadline timer.
func (s *Stream) NotifyChan() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifyCh
}

// Sentinel errors distinguished by text per §4.3's validation contract.
var (
	ErrIDNotGreaterThanZero = fmt.Errorf("The ID specified in XADD must be greater than 0-0")
	ErrIDNotGreaterThanTop  = fmt.Errorf("The ID specified in XADD is equal or smaller than the target stream top item")
)

// resolveID implements the three id-selection forms of §4.3 ("XADD key id
// ..."). Must be called with s.mu held.
func (s *Stream) resolveID(requested string) (ID, error) {
	switch {
	case requested == "*":
		return s.nextAt(uint64(time.Now().UnixMilli())), nil
	case strings.HasSuffix(requested, "-*"):
		msPart := strings.TrimSuffix(requested, "-*")
		ms, err := parseMS(msPart)
		if err != nil {
			return ID{}, err
		}
		return s.nextAt(ms), nil
	default:
		return ParseID(requested)
	}
}

// nextAt picks the next seq at millisecond ms. Because identifiers within
// a stream only ever increase, any prior entry at this ms is necessarily
// the current maximum — there is no need to scan the index.
func (s *Stream) nextAt(ms uint64) ID {
	if s.max.IsZero() { // empty stream
		if ms == 0 {
			return ID{MS: 0, Seq: 1} // (0,0) is forbidden, so the first seq at ms==0 is 1
		}
		return ID{MS: ms, Seq: 0}
	}
	if s.max.MS == ms {
		return ID{MS: ms, Seq: s.max.Seq + 1}
	}
	return ID{MS: ms, Seq: 0}
}

func parseMS(s string) (uint64, error) {
	ms, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid stream ID millisecond part %q", s)
	}
	return ms, nil
}

// XAdd resolves the requested id (full, partial "ms-*", or "*"), validates
// it against §4.3's invariants, stores the entry, and returns the final
// identifier.
func (s *Stream) XAdd(requested string, fields []string) (ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.resolveID(requested)
	if err != nil {
		return ID{}, err
	}
	if id.IsZero() {
		return ID{}, ErrIDNotGreaterThanZero
	}
	if !s.max.Less(id) {
		return ID{}, ErrIDNotGreaterThanTop
	}

	enc, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(fields)
	if err != nil {
		return ID{}, err
	}
	if err := s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(encodeKey(id), string(enc), nil)
		return err
	}); err != nil {
		return ID{}, err
	}

	debug.Assert(s.max.Less(id), "stream identifiers must be strictly increasing")
	s.max = id
	close(s.notifyCh)
	s.notifyCh = make(chan struct{})
	return id, nil
}

// Range returns entries with identifiers in the closed interval
// [start, end] (§4.3 XRANGE).
func (s *Stream) Range(start, end ID) ([]Entry, error) {
	if end.Less(start) {
		return nil, nil
	}
	lo, hi := encodeKey(start), encodeKey(end)
	var out []Entry
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendGreaterOrEqual("", lo, func(key, value string) bool {
			if key > hi {
				return false
			}
			out = append(out, decodeEntry(key, value))
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// After returns entries with identifiers strictly greater than after
// (§4.3 XREAD).
func (s *Stream) After(after ID) ([]Entry, error) {
	lo := encodeKey(after)
	var out []Entry
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendGreaterOrEqual("", lo, func(key, value string) bool {
			if key == lo {
				return true // skip the exact match, keep scanning
			}
			out = append(out, decodeEntry(key, value))
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeEntry(key, value string) Entry {
	id, _ := decodeKey(key)
	var fields []string
	_ = jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(value, &fields)
	return Entry{ID: id, Fields: fields}
}

func decodeKey(key string) (ID, error) {
	msStr, seqStr, ok := strings.Cut(key, "-")
	if !ok {
		return ID{}, fmt.Errorf("corrupt stream index key %q", key)
	}
	ms, err := strconv.ParseUint(msStr, 10, 64)
	if err != nil {
		return ID{}, err
	}
	seq, err := strconv.ParseUint(seqStr, 10, 64)
	if err != nil {
		return ID{}, err
	}
	return ID{MS: ms, Seq: seq}, nil
}
