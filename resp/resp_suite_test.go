package resp_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestResp(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, t.Name())
}
