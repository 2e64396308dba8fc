package xstream_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestXStream(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, t.Name())
}
