package xstream_test

import (
	"time"

	"github.com/ais-project/keyd/xstream"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Stream", func() {
	var s *xstream.Stream

	BeforeEach(func() {
		s = xstream.New()
	})

	It("rejects 0-0", func() {
		_, err := s.XAdd("0-0", []string{"a", "1"})
		Expect(err).To(MatchError(xstream.ErrIDNotGreaterThanZero))
	})

	It("accepts a full id and orders subsequent XADDs", func() {
		id1, err := s.XAdd("1-1", []string{"a", "1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(id1.String()).To(Equal("1-1"))

		_, err = s.XAdd("1-1", []string{"a", "2"})
		Expect(err).To(MatchError(xstream.ErrIDNotGreaterThanTop))

		id2, err := s.XAdd("1-2", []string{"a", "2"})
		Expect(err).NotTo(HaveOccurred())
		Expect(id1.Less(id2)).To(BeTrue())
	})

	It("resolves a partial ms-* id, with 0-* starting at seq 1", func() {
		id, err := s.XAdd("0-*", []string{"a", "1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(id.String()).To(Equal("0-1"))

		id2, err := s.XAdd("0-*", []string{"a", "2"})
		Expect(err).NotTo(HaveOccurred())
		Expect(id2.String()).To(Equal("0-2"))
	})

	It("resolves fully-auto ids as strictly increasing", func() {
		id1, err := s.XAdd("*", []string{"a", "1"})
		Expect(err).NotTo(HaveOccurred())
		id2, err := s.XAdd("*", []string{"a", "2"})
		Expect(err).NotTo(HaveOccurred())
		Expect(id1.Less(id2)).To(BeTrue())
	})

	It("answers XRANGE with an inclusive range in id order", func() {
		id1, _ := s.XAdd("1-1", []string{"a", "1"})
		id2, _ := s.XAdd("1-2", []string{"b", "2"})
		_, _ = s.XAdd("2-1", []string{"c", "3"})

		entries, err := s.Range(xstream.MinID, id2)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(2))
		Expect(entries[0].ID).To(Equal(id1))
		Expect(entries[0].Fields).To(Equal([]string{"a", "1"}))
		Expect(entries[1].ID).To(Equal(id2))
	})

	It("returns an empty array for XRANGE on an empty stream", func() {
		entries, err := s.Range(xstream.MinID, xstream.MaxID)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})

	It("returns only entries strictly after the given id for XREAD", func() {
		id1, _ := s.XAdd("1-1", []string{"a", "1"})
		id2, _ := s.XAdd("1-2", []string{"b", "2"})

		entries, err := s.After(id1)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].ID).To(Equal(id2))
	})

	It("wakes a NotifyChan waiter when a new entry arrives", func() {
		ch := s.NotifyChan()
		done := make(chan struct{})
		go func() {
			_, _ = s.XAdd("*", []string{"a", "1"})
			close(done)
		}()

		select {
		case <-ch:
		case <-time.After(time.Second):
			Fail("NotifyChan did not close after XAdd")
		}
		<-done
	})
})
