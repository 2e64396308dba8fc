package repl_test

import (
	"net"
	"time"

	"github.com/ais-project/keyd/repl"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Registry", func() {
	var (
		reg        *repl.Registry
		clientConn net.Conn
		handle     *repl.ReplicaHandle
	)

	BeforeEach(func() {
		reg = repl.NewRegistry()
		var serverConn net.Conn
		clientConn, serverConn = net.Pipe()
		handle = repl.NewReplicaHandle("r1", serverConn)
	})

	AfterEach(func() {
		clientConn.Close()
	})

	It("delivers enqueued frames to the replica socket", func() {
		reg.Add(handle)
		Expect(reg.Len()).To(Equal(1))

		Expect(handle.Enqueue([]byte("*1\r\n$4\r\nPING\r\n"))).To(BeTrue())

		buf := make([]byte, 64)
		clientConn.SetReadDeadline(time.Now().Add(time.Second))
		n, err := clientConn.Read(buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(buf[:n])).To(Equal("*1\r\n$4\r\nPING\r\n"))
	})

	It("removes a handle without affecting others", func() {
		clientConn2, serverConn2 := net.Pipe()
		defer clientConn2.Close()
		handle2 := repl.NewReplicaHandle("r2", serverConn2)

		reg.Add(handle)
		reg.Add(handle2)
		Expect(reg.Len()).To(Equal(2))

		reg.Remove(handle)
		snap := reg.Snapshot()
		Expect(snap).To(HaveLen(1))
		Expect(snap[0].ID).To(Equal("r2"))
	})
})
