package resp_test

import (
	"github.com/ais-project/keyd/resp"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Decode", func() {
	It("decodes a single PING array", func() {
		msgs, n, err := resp.Decode([]byte("*1\r\n$4\r\nPING\r\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(14))
		Expect(msgs).To(HaveLen(1))

		cmd, err := msgs[0].AsCommand()
		Expect(err).NotTo(HaveOccurred())
		Expect(cmd.Verb).To(Equal("PING"))
		Expect(cmd.Args).To(BeEmpty())
	})

	It("leaves a partial message unconsumed", func() {
		partial := []byte("*2\r\n$3\r\nSET\r\n$1\r\nk")
		msgs, n, err := resp.Decode(partial)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(0))
		Expect(msgs).To(BeEmpty())
	})

	It("decodes two back-to-back frames from one buffer", func() {
		first := []byte("*1\r\n$4\r\nPING\r\n")
		second := []byte("*2\r\n$4\r\nECHO\r\n$2\r\nhi\r\n")
		msgs, n, err := resp.Decode(append(append([]byte{}, first...), second...))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(len(first) + len(second)))
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[1].Raw).To(Equal(second))
	})

	It("does not search bulk payloads for CRLF", func() {
		payload := "a\r\nb"
		frame := []byte("*1\r\n$4\r\n" + payload + "\r\n")
		msgs, n, err := resp.Decode(frame)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(len(frame)))
		Expect(string(msgs[0].Items[0].Bulk)).To(Equal(payload))
	})

	It("rejects an invalid type sigil", func() {
		_, _, err := resp.Decode([]byte("!oops\r\n"))
		Expect(err).To(HaveOccurred())
	})

	It("decodes the null bulk", func() {
		msgs, n, err := resp.Decode([]byte("$-1\r\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(5))
		Expect(msgs[0].Null).To(BeTrue())
	})

	It("decodes the snapshot bulk framing without a trailing CRLF", func() {
		data := []byte("hello world")
		frame := append([]byte("$11\r\n"), data...)
		payload, n, incomplete, err := resp.DecodeRawBulk(frame)
		Expect(err).NotTo(HaveOccurred())
		Expect(incomplete).To(BeFalse())
		Expect(n).To(Equal(len(frame)))
		Expect(payload).To(Equal(data))
	})

	It("reports the snapshot bulk as incomplete until all bytes arrive", func() {
		frame := []byte("$11\r\nhello")
		_, _, incomplete, err := resp.DecodeRawBulk(frame)
		Expect(err).NotTo(HaveOccurred())
		Expect(incomplete).To(BeTrue())
	})
})
