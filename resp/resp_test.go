package resp_test

import (
	"github.com/ais-project/keyd/resp"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("encoders", func() {
	It("encodes a simple string", func() {
		Expect(resp.EncSimpleString("OK")).To(Equal([]byte("+OK\r\n")))
	})

	It("encodes an error", func() {
		Expect(resp.EncError("ERR boom")).To(Equal([]byte("-ERR boom\r\n")))
	})

	It("encodes an integer", func() {
		Expect(resp.EncInteger(42)).To(Equal([]byte(":42\r\n")))
	})

	It("encodes a bulk string", func() {
		Expect(resp.EncBulkString([]byte("hello"))).To(Equal([]byte("$5\r\nhello\r\n")))
	})

	It("encodes the null bulk", func() {
		Expect(resp.EncNullBulk()).To(Equal([]byte("$-1\r\n")))
	})

	It("round-trips an array of bulk strings through the decoder", func() {
		wire := resp.EncArrayOfBulk("REPLCONF", "ACK", "128")
		msgs, n, err := resp.Decode(wire)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(len(wire)))
		cmd, err := msgs[0].AsCommand()
		Expect(err).NotTo(HaveOccurred())
		Expect(cmd.Verb).To(Equal("REPLCONF"))
		Expect(cmd.Args).To(HaveLen(2))
		Expect(string(cmd.Args[0])).To(Equal("ACK"))
		Expect(string(cmd.Args[1])).To(Equal("128"))
	})
})
