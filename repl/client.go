package repl

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ais-project/keyd/cmn/nlog"
	"github.com/ais-project/keyd/resp"
)

// writeVerbs is the set of verbs the primary ever propagates (§4.5 step 4).
// A replica only ever needs to recognize them to decide whether an
// incoming frame is forwarded to the Applier or handled inline (REPLCONF).
var writeVerbs = map[string]bool{
	"SET": true, "DEL": true, "INCR": true, "XADD": true,
}

// Applier executes a propagated write command against local state without
// producing a client reply (§4.6 step 6, §7: "a replica never replies to
// propagated writes"). server.Coordinator implements this; repl cannot
// import server, so the dependency runs through this interface instead.
type Applier interface {
	Apply(cmd *resp.Command)
}

// ReplicaClient is the C7 replica side of the handshake and steady-state
// propagation stream.
type ReplicaClient struct {
	primaryAddr string
	listenPort  int
	state       *State
}

func NewReplicaClient(primaryHost string, primaryPort, listenPort int, state *State) *ReplicaClient {
	return &ReplicaClient{
		primaryAddr: net.JoinHostPort(primaryHost, strconv.Itoa(primaryPort)),
		listenPort:  listenPort,
		state:       state,
	}
}

// Run performs the handshake (§4.6 steps 1-5), discards the snapshot
// payload, then applies the propagation stream forever, reconnecting on
// any I/O error. It does not return under normal operation; callers
// typically start it in its own goroutine.
func (c *ReplicaClient) Run(applier Applier) {
	for {
		if err := c.runOnce(applier); err != nil {
			nlog.Warningf("replica: lost connection to primary %s: %v", c.primaryAddr, err)
		}
		time.Sleep(time.Second)
	}
}

func (c *ReplicaClient) runOnce(applier Applier) error {
	conn, err := net.Dial("tcp", c.primaryAddr)
	if err != nil {
		return errors.Wrap(err, "dial primary")
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	replid, err := c.handshake(conn, r)
	if err != nil {
		return errors.Wrap(err, "handshake")
	}
	c.state.SetMasterReplID(replid)

	return c.applyLoop(conn, r, applier)
}

func (c *ReplicaClient) handshake(conn net.Conn, r *bufio.Reader) (replid string, err error) {
	send := func(parts ...string) error {
		_, err := conn.Write(resp.EncArrayOfBulk(parts...))
		return err
	}

	if err = send("PING"); err != nil {
		return "", errors.Wrap(err, "send PING")
	}
	if _, err = readLine(r); err != nil {
		return "", errors.Wrap(err, "read PING reply")
	}

	if err = send("REPLCONF", "listening-port", strconv.Itoa(c.listenPort)); err != nil {
		return "", errors.Wrap(err, "send REPLCONF listening-port")
	}
	if _, err = readLine(r); err != nil {
		return "", errors.Wrap(err, "read REPLCONF listening-port reply")
	}

	if err = send("REPLCONF", "capa", "psync2"); err != nil {
		return "", errors.Wrap(err, "send REPLCONF capa")
	}
	if _, err = readLine(r); err != nil {
		return "", errors.Wrap(err, "read REPLCONF capa reply")
	}

	if err = send("PSYNC", "?", "-1"); err != nil {
		return "", errors.Wrap(err, "send PSYNC")
	}
	line, err := readLine(r)
	if err != nil {
		return "", errors.Wrap(err, "read PSYNC reply")
	}
	// +FULLRESYNC <replid> <offset>
	fields := strings.Fields(strings.TrimPrefix(line, "+"))
	if len(fields) != 3 || fields[0] != "FULLRESYNC" {
		return "", errors.Errorf("unexpected PSYNC reply %q", line)
	}
	replid = fields[1]

	// Snapshot payload: framed as a raw bulk string with no trailing CRLF
	// (§4.6 step 5). Loading it is the snapshot loader's job, out of scope
	// here; the replica core only needs to consume the bytes off the wire.
	if _, err = discardRawBulk(r); err != nil {
		return "", errors.Wrap(err, "read snapshot payload")
	}
	return replid, nil
}

// applyLoop reads propagated frames off the single handshake connection
// forever, replying to REPLCONF GETACK inline on the same connection and
// handing write verbs to applier (§4.6 step 6, §8).
func (c *ReplicaClient) applyLoop(conn net.Conn, r *bufio.Reader, applier Applier) error {
	var buf []byte
	chunk := make([]byte, 64*1024)
	for {
		msgs, leftover, err := decodeAvailable(r, buf, chunk)
		if err != nil {
			return errors.Wrap(err, "read propagation stream")
		}
		buf = leftover

		for _, msg := range msgs {
			cmd, err := msg.AsCommand()
			if err != nil {
				nlog.Warningf("replica: malformed propagated frame: %v", err)
				continue
			}
			c.state.AddSlaveOffset(len(msg.Raw))

			if cmd.Verb == "REPLCONF" && len(cmd.Args) >= 1 && strings.EqualFold(string(cmd.Args[0]), "GETACK") {
				ack := resp.EncArrayOfBulk("REPLCONF", "ACK", strconv.FormatUint(c.state.SlaveOffset(), 10))
				if _, err := conn.Write(ack); err != nil {
					return errors.Wrap(err, "write REPLCONF ACK")
				}
				continue
			}
			if writeVerbs[cmd.Verb] {
				applier.Apply(cmd)
			}
		}
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// discardRawBulk reads a `$<len>\r\n<payload>` frame (no trailing CRLF)
// directly off r, without needing the whole payload buffered up front.
func discardRawBulk(r *bufio.Reader) (int, error) {
	header, err := readLine(r)
	if err != nil {
		return 0, err
	}
	if len(header) == 0 || header[0] != '$' {
		return 0, errors.Errorf("expected bulk header, got %q", header)
	}
	l, err := strconv.Atoi(header[1:])
	if err != nil {
		return 0, errors.Wrapf(err, "invalid bulk length %q", header)
	}
	buf := make([]byte, l)
	if _, err := readFull(r, buf); err != nil {
		return 0, err
	}
	return l, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// decodeAvailable blocks for at least one read of new bytes, then decodes
// as many complete frames as are currently buffered, returning the
// leftover unconsumed bytes so the caller can carry them into the next
// read (a frame may straddle two TCP reads).
func decodeAvailable(r *bufio.Reader, carry, scratch []byte) (msgs []*resp.Message, leftover []byte, err error) {
	n, err := r.Read(scratch)
	if n == 0 && err != nil {
		return nil, carry, err
	}
	buf := append(carry, scratch[:n]...)
	msgs, consumed, decErr := resp.Decode(buf)
	if decErr != nil {
		return nil, nil, decErr
	}
	return msgs, buf[consumed:], nil
}
