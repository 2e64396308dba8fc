package server

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/teris-io/shortid"

	"github.com/ais-project/keyd/cmn"
	"github.com/ais-project/keyd/cmn/cos"
	"github.com/ais-project/keyd/cmn/nlog"
	"github.com/ais-project/keyd/repl"
	"github.com/ais-project/keyd/resp"
	"github.com/ais-project/keyd/snapshot"
)

// Session is the C5 client session: one goroutine per accepted TCP
// connection, an accumulating read buffer, optional transaction queue,
// and — once a PSYNC handshake completes — a promotion into replica-
// serving role (§4.5 step 5).
type Session struct {
	id   string
	conn net.Conn
	coord *Coordinator

	inTx    bool
	txQueue []*resp.Command

	// Set once REPLCONF listening-port is seen (handshake step 2); used
	// only for log correlation, the registry keys replicas by handle, not
	// by advertised port.
	listeningPort int

	// replicaHandle is non-nil only on the replica-serving session a
	// primary spawned after replying +FULLRESYNC to this connection's
	// PSYNC (§4.5 step 5). REPLCONF ACK frames on this session route into
	// coord.Barrier through it.
	replicaHandle *repl.ReplicaHandle
}

// Serve runs the session's read/dispatch loop until the connection closes
// or an unrecoverable protocol error occurs. It always cleans up any
// Replica Registry entry this session owns before returning (§4.5 step
// 5, §5 cancellation policy).
func Serve(conn net.Conn, coord *Coordinator) {
	id, _ := shortid.Generate()
	sess := &Session{id: id, conn: conn, coord: coord}
	defer sess.close()

	nlog.Infof("session %s: accepted from %s", sess.id, conn.RemoteAddr())

	var buf []byte
	chunk := make([]byte, 64*1024)
	for {
		conn.SetReadDeadline(time.Now().Add(cmn.Rom.IdleTimeout()))
		n, err := conn.Read(chunk)
		if err != nil {
			if !cos.IsRetriableConnErr(err) {
				nlog.Infof("session %s: closing: %v", sess.id, err)
			}
			return
		}
		buf = append(buf, chunk[:n]...)

		msgs, consumed, err := resp.Decode(buf)
		if err != nil {
			sess.conn.Write(resp.EncError("ERR Protocol error: " + err.Error()))
			return
		}
		buf = buf[consumed:]

		for _, msg := range msgs {
			cmd, err := msg.AsCommand()
			if err != nil {
				sess.conn.Write(resp.EncError("ERR Protocol error: " + err.Error()))
				continue
			}
			sess.handleCommand(cmd)

			// Promotion happens after the PSYNC reply has been written in
			// full; from here on this goroutine only services REPLCONF ACK
			// frames on behalf of the replica-serving role.
			if sess.replicaHandle != nil {
				sess.serveReplica(buf)
				return
			}
		}
	}
}

// handleCommand dispatches one decoded command, queuing it instead of
// executing it when a transaction is open (§4.4 "Transactions").
func (sess *Session) handleCommand(cmd *resp.Command) {
	sess.coord.Metrics.CommandsTotal.WithLabelValues(cmd.Verb).Inc()

	if cmd.Verb == "PSYNC" {
		sess.handlePSync(cmd)
		return
	}

	if sess.inTx && cmd.Verb != "EXEC" && cmd.Verb != "DISCARD" && cmd.Verb != "MULTI" {
		sess.txQueue = append(sess.txQueue, cmd)
		sess.conn.Write(resp.EncSimpleString("QUEUED"))
		return
	}

	reply := sess.dispatch(cmd)
	if reply != nil {
		sess.conn.Write(reply)
	}
}

func (sess *Session) handleMulti() []byte {
	if sess.inTx {
		return resp.EncError("ERR MULTI calls can not be nested")
	}
	sess.inTx = true
	sess.txQueue = nil
	return resp.EncSimpleString("OK")
}

func (sess *Session) handleDiscard() []byte {
	if !sess.inTx {
		return resp.EncError("ERR DISCARD without MULTI")
	}
	sess.inTx = false
	sess.txQueue = nil
	return resp.EncSimpleString("OK")
}

func (sess *Session) handleExec() []byte {
	if !sess.inTx {
		return resp.EncError("ERR EXEC without MULTI")
	}
	queued := sess.txQueue
	sess.inTx = false
	sess.txQueue = nil

	replies := make([][]byte, len(queued))
	for i, cmd := range queued {
		reply := sess.dispatch(cmd)
		if reply == nil {
			// A queued verb whose handler has no reply of its own (e.g.
			// REPLCONF ACK) still needs one element in the EXEC array, or
			// the declared count in the array header would outrun the
			// bytes actually written.
			reply = resp.EncNullBulk()
		}
		replies[i] = reply
	}
	return resp.EncArray(replies)
}

// handlePSync implements §4.5 step 5: reply +FULLRESYNC, send the
// snapshot with its no-trailing-CRLF framing, then register this
// connection's write-half as a replica and leave the read-half polling
// for REPLCONF ACK only.
func (sess *Session) handlePSync(cmd *resp.Command) {
	reply := "FULLRESYNC " + sess.coord.Repl.MasterReplID + " " + strconv.FormatUint(sess.coord.Repl.MasterOffset(), 10)
	sess.conn.Write(resp.EncSimpleString(reply))
	sess.conn.Write(resp.EncRawBulkNoCRLF(snapshot.EmptyRDB))

	sess.replicaHandle = repl.NewReplicaHandle(sess.id, sess.conn)
	sess.coord.Registry.Add(sess.replicaHandle)
	sess.coord.Metrics.ConnectedReplicas.Set(float64(sess.coord.Registry.Len()))
	nlog.Infof("session %s: promoted to replica-serving (listening-port=%d)", sess.id, sess.listeningPort)
}

// serveReplica keeps reading from the same connection but only looks for
// REPLCONF ACK frames; all writes to the replica now happen through its
// registry handle's own writer goroutine, never from this loop.
func (sess *Session) serveReplica(carry []byte) {
	buf := carry
	chunk := make([]byte, 4096)
	for {
		sess.conn.SetReadDeadline(time.Now().Add(cmn.Rom.IdleTimeout()))
		n, err := sess.conn.Read(chunk)
		if err != nil {
			return
		}
		buf = append(buf, chunk[:n]...)
		msgs, consumed, err := resp.Decode(buf)
		if err != nil {
			return
		}
		buf = buf[consumed:]
		for _, msg := range msgs {
			cmd, err := msg.AsCommand()
			if err != nil || !strings.EqualFold(cmd.Verb, "REPLCONF") {
				continue
			}
			sess.handleReplConf(cmd)
		}
	}
}

func (sess *Session) close() {
	if sess.replicaHandle != nil {
		sess.coord.Registry.Remove(sess.replicaHandle)
		sess.coord.Metrics.ConnectedReplicas.Set(float64(sess.coord.Registry.Len()))
	}
	sess.conn.Close()
}

