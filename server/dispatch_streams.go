package server

import (
	"strconv"
	"time"

	"github.com/ais-project/keyd/cmn/cos"
	"github.com/ais-project/keyd/resp"
	"github.com/ais-project/keyd/store"
	"github.com/ais-project/keyd/xstream"
)

// handleXAdd implements `XADD key id field value [field value...]` (§4.3).
func handleXAdd(ks *store.Keyspace, cmd *resp.Command) []byte {
	if len(cmd.Args) < 4 || len(cmd.Args)%2 != 0 {
		return resp.EncError("ERR wrong number of arguments for 'xadd' command")
	}
	key, id := string(cmd.Args[0]), string(cmd.Args[1])
	fields := make([]string, 0, len(cmd.Args)-2)
	for _, a := range cmd.Args[2:] {
		fields = append(fields, string(a))
	}
	s, err := ks.Stream(key, true)
	if err != nil {
		return resp.EncError(errReply(err))
	}
	gotID, err := s.XAdd(id, fields)
	if err != nil {
		return resp.EncError("ERR " + err.Error())
	}
	return resp.EncBulkString([]byte(gotID.String()))
}

// handleXRange implements `XRANGE key start end` (§4.3).
func handleXRange(ks *store.Keyspace, cmd *resp.Command) []byte {
	if len(cmd.Args) != 3 {
		return resp.EncError("ERR wrong number of arguments for 'xrange' command")
	}
	key := string(cmd.Args[0])
	start, err := xstream.ParseRangeBound(string(cmd.Args[1]))
	if err != nil {
		return resp.EncError("ERR Invalid stream ID specified as stream command argument")
	}
	end, err := xstream.ParseRangeBound(string(cmd.Args[2]))
	if err != nil {
		return resp.EncError("ERR Invalid stream ID specified as stream command argument")
	}
	s, err := ks.Stream(key, false)
	if err != nil {
		if cos.IsErrNotFound(err) {
			return resp.EncArray(nil)
		}
		return resp.EncError(errReply(err))
	}
	entries, err := s.Range(start, end)
	if err != nil {
		return resp.EncError("ERR " + err.Error())
	}
	return encodeEntries(entries)
}

func encodeEntries(entries []xstream.Entry) []byte {
	items := make([][]byte, len(entries))
	for i, e := range entries {
		fieldParts := make([][]byte, len(e.Fields))
		for j, f := range e.Fields {
			fieldParts[j] = resp.EncBulkString([]byte(f))
		}
		pair := [][]byte{
			resp.EncBulkString([]byte(e.ID.String())),
			resp.EncArray(fieldParts),
		}
		items[i] = resp.EncArray(pair)
	}
	return resp.EncArray(items)
}

// xreadRequest is one parsed "key id" pair from an XREAD call.
type xreadRequest struct {
	key   string
	after xstream.ID
}

// handleXRead implements `XREAD [BLOCK ms] STREAMS key1 ... keyN id1 ... idN`
// (§4.3). Blocking waits on a fan-in of every named stream's notifier plus
// a deadline timer, per §9's notifier re-architecture note, rather than
// busy-polling.
func (c *Coordinator) handleXRead(cmd *resp.Command) []byte {
	args := cmd.Args
	blockMs := -1 // no BLOCK clause
	if len(args) >= 2 && string(args[0]) == "BLOCK" {
		n, err := strconv.Atoi(string(args[1]))
		if err != nil || n < 0 {
			return resp.EncError("ERR timeout is not an integer or out of range")
		}
		blockMs = n
		args = args[2:]
	}
	if len(args) < 3 || string(args[0]) != "STREAMS" || (len(args)-1)%2 != 0 {
		return resp.EncError("ERR wrong number of arguments for 'xread' command")
	}
	args = args[1:]
	n := len(args) / 2
	keys := args[:n]
	ids := args[n:]

	// Keys that do not exist yet are still tracked (with after left at its
	// zero value, which sorts before every real identifier): an XADD that
	// creates the stream later must still be able to wake this read.
	var reqs []xreadRequest
	c.withLock(func(ks *store.Keyspace) {
		for i := 0; i < n; i++ {
			key := string(keys[i])
			idStr := string(ids[i])
			s, err := ks.Stream(key, false)
			if err != nil && !cos.IsErrNotFound(err) {
				continue
			}
			var after xstream.ID
			if idStr == "$" {
				if s != nil {
					after = s.Max()
				}
			} else {
				after, err = xstream.ParseID(idStr)
				if err != nil {
					continue
				}
			}
			reqs = append(reqs, xreadRequest{key: key, after: after})
		}
	})

	if blockMs < 0 {
		return encodeXReadReply(c.collectXRead(reqs))
	}

	var timeout <-chan time.Time
	if blockMs > 0 {
		timer := time.NewTimer(time.Duration(blockMs) * time.Millisecond)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		// Notifiers are captured and the data check is made under the same
		// lock acquisition: an XAdd landing between "is there data" and
		// "what do we wait on" would otherwise swap in a fresh notifyCh
		// that the just-added entry never signals, stalling the reader
		// until an unrelated later XAdd (or forever, for BLOCK 0).
		notifiers, reply := c.notifiersAndData(reqs)
		if reply != nil {
			return encodeXReadReply(reply)
		}
		if !waitAny(notifiers, timeout) {
			return resp.EncNullBulk()
		}
	}
}

// notifiersAndData captures every request's wake channel and checks for
// already-available data in one lock acquisition (see handleXRead). A key
// whose stream does not exist yet contributes the keyspace-wide
// stream-created channel instead of a per-stream one, so an XAdd that
// creates it still wakes the wait.
func (c *Coordinator) notifiersAndData(reqs []xreadRequest) ([]<-chan struct{}, []xreadResult) {
	var notifiers []<-chan struct{}
	var out []xreadResult
	absent := false
	c.withLock(func(ks *store.Keyspace) {
		for _, r := range reqs {
			s, err := ks.Stream(r.key, false)
			if err != nil {
				absent = true
				continue
			}
			notifiers = append(notifiers, s.NotifyChan())
			entries, err := s.After(r.after)
			if err == nil && len(entries) > 0 {
				out = append(out, xreadResult{key: r.key, entries: entries})
			}
		}
		if absent {
			notifiers = append(notifiers, ks.StreamCreatedChan())
		}
	})
	return notifiers, out
}

// waitAny blocks until any channel in chans is closed or timeout fires,
// reporting which happened. A nil timeout channel blocks forever on that
// arm (BLOCK 0, "wait indefinitely").
func waitAny(chans []<-chan struct{}, timeout <-chan time.Time) bool {
	done := make(chan struct{})
	stop := make(chan struct{})
	defer close(stop)
	for _, ch := range chans {
		ch := ch
		go func() {
			select {
			case <-ch:
				select {
				case done <- struct{}{}:
				case <-stop:
				}
			case <-stop:
			}
		}()
	}
	select {
	case <-done:
		return true
	case <-timeout:
		return false
	}
}

type xreadResult struct {
	key     string
	entries []xstream.Entry
}

func (c *Coordinator) collectXRead(reqs []xreadRequest) []xreadResult {
	var out []xreadResult
	c.withLock(func(ks *store.Keyspace) {
		for _, r := range reqs {
			s, err := ks.Stream(r.key, false)
			if err != nil {
				continue
			}
			entries, err := s.After(r.after)
			if err != nil || len(entries) == 0 {
				continue
			}
			out = append(out, xreadResult{key: r.key, entries: entries})
		}
	})
	return out
}

func encodeXReadReply(results []xreadResult) []byte {
	if len(results) == 0 {
		return resp.EncNullBulk()
	}
	items := make([][]byte, len(results))
	for i, r := range results {
		pair := [][]byte{
			resp.EncBulkString([]byte(r.key)),
			encodeEntries(r.entries),
		}
		items[i] = resp.EncArray(pair)
	}
	return resp.EncArray(items)
}
