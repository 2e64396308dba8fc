package server

import (
	"net"
	"strconv"

	"github.com/ais-project/keyd/cmn/nlog"
)

// ListenAndServe accepts TCP connections on cfg's port forever, spawning
// one Session goroutine per connection (§4.5, §5 "single-threaded
// cooperative... multiplexed by an event-driven runtime" — this core uses
// goroutines as that runtime, which the teacher's own transport layer
// does for its stream handlers too).
func ListenAndServe(port int, coord *Coordinator) error {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return err
	}
	defer ln.Close()
	nlog.Infof("server: listening on :%d", port)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go Serve(conn, coord)
	}
}
