// Package nlog provides a small buffered, timestamping logger used by every
// package in this module instead of the standard library's "log".
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	flushInterval = 2 * time.Second
	maxLineSize   = 2 * 1024
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevChar = [...]byte{'I', 'W', 'E'}

type nlog struct {
	mw      sync.Mutex
	buf     bytes.Buffer
	out     *os.File
	last    atomic.Int64
	written atomic.Int64
}

var (
	nlogs   [3]*nlog
	title   string
	onceRun sync.Once
)

func initLogs() {
	for i := range nlogs {
		nlogs[i] = &nlog{out: os.Stderr}
	}
}

// SetOutput redirects the info/warn/err streams to w (e.g. to capture
// output; the default is os.Stderr).
func SetOutput(w *os.File) {
	onceRun.Do(initLogs)
	for _, n := range nlogs {
		n.mw.Lock()
		n.out = w
		n.mw.Unlock()
	}
}

func SetTitle(s string) { title = s }

func log(sev severity, depth int, format string, args ...any) {
	onceRun.Do(initLogs)
	n := nlogs[sev]

	n.mw.Lock()
	formatHdr(sev, depth+1, &n.buf)
	if format == "" {
		fmt.Fprintln(&n.buf, args...)
	} else {
		fmt.Fprintf(&n.buf, format, args...)
		if n.buf.Len() == 0 || n.buf.Bytes()[n.buf.Len()-1] != '\n' {
			n.buf.WriteByte('\n')
		}
	}
	due := n.buf.Len() >= maxLineSize || time.Since(lastFlush(n)) >= flushInterval
	n.mw.Unlock()

	if due || sev >= sevWarn {
		n.flush()
	}
}

func lastFlush(n *nlog) time.Time { return time.Unix(0, n.last.Load()) }

func (n *nlog) flush() {
	n.mw.Lock()
	if n.buf.Len() == 0 {
		n.mw.Unlock()
		return
	}
	b := n.buf.Bytes()
	wr, _ := n.out.Write(b)
	n.written.Add(int64(wr))
	n.buf.Reset()
	n.last.Store(time.Now().UnixNano())
	n.mw.Unlock()
}

// Flush forces all buffered severities to their output.
func Flush(_ ...bool) {
	onceRun.Do(initLogs)
	for _, n := range nlogs {
		n.flush()
	}
}

func formatHdr(sev severity, depth int, buf *bytes.Buffer) {
	buf.WriteByte(sevChar[sev])
	buf.WriteByte(' ')
	buf.WriteString(time.Now().Format("15:04:05.000000"))
	buf.WriteByte(' ')
	_, fn, ln, ok := runtime.Caller(2 + depth)
	if ok {
		if idx := strings.LastIndexByte(fn, filepath.Separator); idx >= 0 {
			fn = fn[idx+1:]
		}
		buf.WriteString(fn)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(ln))
		buf.WriteByte(' ')
	}
}
