package server

import (
	"net"
	"testing"
	"time"

	"github.com/ais-project/keyd/cmn"
	"github.com/ais-project/keyd/repl"
	"github.com/ais-project/keyd/resp"
)

func newTestCoordinator() *Coordinator {
	cfg := &cmn.Config{Dir: ".", DBFilename: "dump.rdb"}
	return NewCoordinator(cfg, repl.NewMaster())
}

func mustCommand(t *testing.T, parts ...string) *resp.Command {
	t.Helper()
	raw := resp.EncArrayOfBulk(parts...)
	msgs, _, err := resp.Decode(raw)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("failed to build test command: %v", err)
	}
	cmd, err := msgs[0].AsCommand()
	if err != nil {
		t.Fatalf("AsCommand: %v", err)
	}
	return cmd
}

func newTestSession(c *Coordinator) *Session {
	client, srv := net.Pipe()
	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := client.Read(buf); err != nil {
				return
			}
		}
	}()
	return &Session{id: "test", coord: c, conn: srv}
}

func TestPingEcho(t *testing.T) {
	sess := newTestSession(newTestCoordinator())
	if got := string(sess.dispatch(mustCommand(t, "PING"))); got != "+PONG\r\n" {
		t.Fatalf("PING = %q", got)
	}
	if got := string(sess.dispatch(mustCommand(t, "ECHO", "hello"))); got != "$5\r\nhello\r\n" {
		t.Fatalf("ECHO = %q", got)
	}
}

func TestSetGetDel(t *testing.T) {
	sess := newTestSession(newTestCoordinator())
	sess.dispatch(mustCommand(t, "SET", "k", "v"))
	if got := string(sess.dispatch(mustCommand(t, "GET", "k"))); got != "$1\r\nv\r\n" {
		t.Fatalf("GET = %q", got)
	}
	if got := string(sess.dispatch(mustCommand(t, "TYPE", "k"))); got != "+string\r\n" {
		t.Fatalf("TYPE = %q", got)
	}
	if got := string(sess.dispatch(mustCommand(t, "DEL", "k"))); got != ":1\r\n" {
		t.Fatalf("DEL = %q", got)
	}
	if got := string(sess.dispatch(mustCommand(t, "GET", "k"))); got != "$-1\r\n" {
		t.Fatalf("GET after DEL = %q", got)
	}
}

func TestSetPXExpires(t *testing.T) {
	sess := newTestSession(newTestCoordinator())
	sess.dispatch(mustCommand(t, "SET", "k", "v", "PX", "50"))
	time.Sleep(80 * time.Millisecond)
	if got := string(sess.dispatch(mustCommand(t, "GET", "k"))); got != "$-1\r\n" {
		t.Fatalf("GET after expiry = %q", got)
	}
}

func TestIncr(t *testing.T) {
	sess := newTestSession(newTestCoordinator())
	if got := string(sess.dispatch(mustCommand(t, "INCR", "c"))); got != ":1\r\n" {
		t.Fatalf("INCR = %q", got)
	}
	if got := string(sess.dispatch(mustCommand(t, "INCR", "c"))); got != ":2\r\n" {
		t.Fatalf("INCR = %q", got)
	}
}

func TestXAddRejectsZero(t *testing.T) {
	sess := newTestSession(newTestCoordinator())
	got := string(sess.dispatch(mustCommand(t, "XADD", "s", "0-0", "a", "1")))
	want := "-ERR The ID specified in XADD must be greater than 0-0\r\n"
	if got != want {
		t.Fatalf("XADD 0-0 = %q, want %q", got, want)
	}
}

func TestXAddXRangeRoundTrip(t *testing.T) {
	sess := newTestSession(newTestCoordinator())
	if got := string(sess.dispatch(mustCommand(t, "XADD", "s", "1-1", "a", "1"))); got != "$3\r\n1-1\r\n" {
		t.Fatalf("XADD = %q", got)
	}
	got := string(sess.dispatch(mustCommand(t, "XRANGE", "s", "-", "+")))
	want := "*1\r\n*2\r\n$3\r\n1-1\r\n*2\r\n$1\r\na\r\n$1\r\n1\r\n"
	if got != want {
		t.Fatalf("XRANGE = %q, want %q", got, want)
	}
}

func TestMultiExec(t *testing.T) {
	sess := newTestSession(newTestCoordinator())

	if got := string(sess.dispatch(mustCommand(t, "MULTI"))); got != "+OK\r\n" {
		t.Fatalf("MULTI = %q", got)
	}
	sess.handleCommand(mustCommand(t, "SET", "k", "v"))
	sess.handleCommand(mustCommand(t, "INCR", "missing"))
	if !sess.inTx || len(sess.txQueue) != 2 {
		t.Fatalf("expected 2 queued commands, got inTx=%v len=%d", sess.inTx, len(sess.txQueue))
	}

	got := string(sess.handleExec())
	want := "*2\r\n+OK\r\n:1\r\n"
	if got != want {
		t.Fatalf("EXEC = %q, want %q", got, want)
	}
}

func TestXReadBlockWakesOnXAddToExistingStream(t *testing.T) {
	sess := newTestSession(newTestCoordinator())
	sess.dispatch(mustCommand(t, "XADD", "s", "1-1", "a", "1"))

	done := make(chan string, 1)
	go func() {
		done <- string(sess.dispatch(mustCommand(t, "XREAD", "BLOCK", "0", "STREAMS", "s", "$")))
	}()

	time.Sleep(20 * time.Millisecond) // give the reader time to start waiting
	sess.dispatch(mustCommand(t, "XADD", "s", "2-2", "b", "2"))

	select {
	case got := <-done:
		want := "*1\r\n*2\r\n$1\r\ns\r\n*1\r\n*2\r\n$3\r\n2-2\r\n*2\r\n$1\r\nb\r\n$1\r\n2\r\n"
		if got != want {
			t.Fatalf("XREAD BLOCK = %q, want %q", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("XREAD BLOCK did not wake up after XADD; lost wakeup")
	}
}

func TestXReadBlockWakesOnStreamCreation(t *testing.T) {
	sess := newTestSession(newTestCoordinator())

	done := make(chan string, 1)
	go func() {
		done <- string(sess.dispatch(mustCommand(t, "XREAD", "BLOCK", "0", "STREAMS", "brandnew", "0-0")))
	}()

	time.Sleep(20 * time.Millisecond) // give the reader time to start waiting
	sess.dispatch(mustCommand(t, "XADD", "brandnew", "1-1", "a", "1"))

	select {
	case got := <-done:
		want := "*1\r\n*2\r\n$8\r\nbrandnew\r\n*1\r\n*2\r\n$3\r\n1-1\r\n*2\r\n$1\r\na\r\n$1\r\n1\r\n"
		if got != want {
			t.Fatalf("XREAD BLOCK on not-yet-existing stream = %q, want %q", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("XREAD BLOCK on a not-yet-existing stream never woke up after it was created")
	}
}

func TestExecWithNoReplyCommandEncodesNullBulk(t *testing.T) {
	sess := newTestSession(newTestCoordinator())
	sess.dispatch(mustCommand(t, "MULTI"))
	sess.handleCommand(mustCommand(t, "SET", "k", "v"))
	sess.handleCommand(mustCommand(t, "REPLCONF", "ACK", "0"))

	got := string(sess.handleExec())
	want := "*2\r\n+OK\r\n$-1\r\n"
	if got != want {
		t.Fatalf("EXEC with a no-reply command = %q, want %q", got, want)
	}
}

func TestWaitWithNoReplicasTimesOut(t *testing.T) {
	c := newTestCoordinator()
	sess := newTestSession(c)
	start := time.Now()
	got := string(sess.dispatch(mustCommand(t, "WAIT", "1", "100")))
	if got != ":0\r\n" {
		t.Fatalf("WAIT = %q", got)
	}
	if time.Since(start) < 90*time.Millisecond {
		t.Fatalf("WAIT returned too early: %v", time.Since(start))
	}
}
