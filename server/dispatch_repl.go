package server

import (
	"strconv"
	"strings"

	"github.com/ais-project/keyd/resp"
)

// handleReplConf implements the REPLCONF subcommand semantics of §4.6.
// PSYNC is handled separately in session.go because its reply is
// multi-part and mutates the session's role.
func (sess *Session) handleReplConf(cmd *resp.Command) []byte {
	if len(cmd.Args) < 1 {
		return resp.EncError("ERR wrong number of arguments for 'replconf' command")
	}
	sub := strings.ToUpper(string(cmd.Args[0]))
	switch sub {
	case "LISTENING-PORT":
		if len(cmd.Args) != 2 {
			return resp.EncError("ERR wrong number of arguments")
		}
		p, err := strconv.Atoi(string(cmd.Args[1]))
		if err != nil {
			return resp.EncError("ERR invalid listening-port")
		}
		sess.listeningPort = p
		return resp.EncSimpleString("OK")

	case "CAPA":
		return resp.EncSimpleString("OK")

	case "ACK":
		// Only meaningful on the replica-serving session of a primary
		// (§4.7): the ack is routed into the shared barrier counter, never
		// read back out of the primary's own client session (§9).
		if len(cmd.Args) != 2 || sess.replicaHandle == nil {
			return nil
		}
		offset, err := strconv.ParseUint(string(cmd.Args[1]), 10, 64)
		if err != nil {
			return nil
		}
		sess.coord.Barrier.RecordAck(sess.replicaHandle, offset)
		return nil // a replica's ACK never gets a reply

	case "GETACK":
		// Only sent primary -> replica; a primary does not expect to
		// receive it from a client. Ignored defensively.
		return nil

	default:
		return resp.EncError("ERR unknown REPLCONF subcommand")
	}
}

// handleWait implements `WAIT numreplicas timeout_ms` (§4.7).
func (c *Coordinator) handleWait(cmd *resp.Command) []byte {
	if len(cmd.Args) != 2 {
		return resp.EncError("ERR wrong number of arguments for 'wait' command")
	}
	numReplicas, err := strconv.Atoi(string(cmd.Args[0]))
	if err != nil {
		return resp.EncError("ERR value is not an integer or out of range")
	}
	timeoutMs, err := strconv.Atoi(string(cmd.Args[1]))
	if err != nil {
		return resp.EncError("ERR value is not an integer or out of range")
	}
	c.Metrics.WaitCalls.Inc()
	got := c.Barrier.Wait(numReplicas, msToDuration(timeoutMs))
	if got >= numReplicas {
		c.Metrics.WaitSatisfied.Inc()
	}
	return resp.EncInteger(int64(got))
}
