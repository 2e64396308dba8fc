package server

import (
	"time"

	"github.com/ais-project/keyd/resp"
	"github.com/ais-project/keyd/store"
)

// writeVerbs is the dispatch table's "Write?" column from §4.4, used to
// decide propagation (§4.5 step 4). The replica side filters propagated
// frames with its own copy of this set in package repl (§4.6 step 6).
var writeVerbs = map[string]bool{
	"SET": true, "DEL": true, "INCR": true, "XADD": true,
}

func msToDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

// execWrite runs one of the four write verbs against ks and returns its
// reply. Used both by the normal read-keyspace dispatch path and, via
// Coordinator.Apply, to replay a propagated frame on a replica (the
// return value is discarded there — §7 "a replica never replies to
// propagated writes").
func execWrite(ks *store.Keyspace, cmd *resp.Command) []byte {
	switch cmd.Verb {
	case "SET":
		return handleSet(ks, cmd)
	case "DEL":
		return handleDel(ks, cmd)
	case "INCR":
		return handleIncr(ks, cmd)
	case "XADD":
		return handleXAdd(ks, cmd)
	default:
		return resp.EncError("ERR unknown write verb " + cmd.Verb)
	}
}

// dispatch routes one decoded command to its handler (§4.4's table) and
// returns the bytes to write back to the client, or nil when no reply is
// due (PSYNC's multi-part reply and a replica's REPLCONF ACK are handled
// without going through this return path).
func (sess *Session) dispatch(cmd *resp.Command) []byte {
	c := sess.coord
	switch cmd.Verb {
	case "PING":
		return handlePing(cmd)
	case "ECHO":
		return handleEcho(cmd)
	case "CONFIG":
		return c.handleConfigGet(cmd)
	case "INFO":
		return c.handleInfo(cmd)

	case "SET", "DEL", "INCR", "XADD":
		var reply []byte
		c.withLock(func(ks *store.Keyspace) { reply = execWrite(ks, cmd) })
		c.PropagateIfWrite(cmd)
		return reply

	case "GET":
		var reply []byte
		c.withLock(func(ks *store.Keyspace) { reply = handleGet(ks, cmd) })
		return reply
	case "KEYS":
		var reply []byte
		c.withLock(func(ks *store.Keyspace) { reply = handleKeys(ks, cmd) })
		return reply
	case "TYPE":
		var reply []byte
		c.withLock(func(ks *store.Keyspace) { reply = handleType(ks, cmd) })
		return reply

	case "XRANGE":
		var reply []byte
		c.withLock(func(ks *store.Keyspace) { reply = handleXRange(ks, cmd) })
		return reply
	case "XREAD":
		return c.handleXRead(cmd)

	case "REPLCONF":
		return sess.handleReplConf(cmd)
	case "WAIT":
		return c.handleWait(cmd)

	case "MULTI":
		return sess.handleMulti()
	case "EXEC":
		return sess.handleExec()
	case "DISCARD":
		return sess.handleDiscard()

	default:
		return resp.EncError("ERR unknown command '" + cmd.Verb + "'")
	}
}
