package repl_test

import (
	"net"
	"time"

	"github.com/ais-project/keyd/repl"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Barrier", func() {
	It("returns 0 after the deadline when no replica acks", func() {
		reg := repl.NewRegistry()
		state := repl.NewMaster()
		b := repl.NewBarrier(reg, state)

		start := time.Now()
		got := b.Wait(1, 100*time.Millisecond)
		Expect(got).To(Equal(0))
		Expect(time.Since(start)).To(BeNumerically(">=", 90*time.Millisecond))
	})

	It("counts an ack recorded against the current generation", func() {
		reg := repl.NewRegistry()
		state := repl.NewMaster()
		b := repl.NewBarrier(reg, state)

		clientConn, serverConn := net.Pipe()
		defer clientConn.Close()
		handle := repl.NewReplicaHandle("r1", serverConn)
		reg.Add(handle)

		// Drain the GETACK frame the writer goroutine sends, then record
		// the ack as the replica-serving session would on REPLCONF ACK.
		go func() {
			buf := make([]byte, 256)
			clientConn.SetReadDeadline(time.Now().Add(time.Second))
			if _, err := clientConn.Read(buf); err != nil {
				return
			}
			b.RecordAck(handle, state.MasterOffset())
		}()

		got := b.Wait(1, time.Second)
		Expect(got).To(Equal(1))
	})
})
