package logger

import (
	"bytes"
	"fmt"
	"strings"
)

// Buffer holds per-load diagnostics until the load finishes.
//
// Every detail is written into the buffer WHILE the load runs.
//   - If the load fails, the buffer is replayed, then the final error.
//   - If it succeeds, the buffer is dropped and one summary line is written.
//
// A dedicated goroutine owns the buffers and receives commands over a
// channel; there are no mutexes.
type Buffer struct {
	ch     chan cmd
	done   chan struct{}
	out    func(string)
	errOut func(string)
	// Verbose replays buffered lines on success too (debug level).
	verbose bool
}

type action int

const (
	actBegin action = iota
	actAppend
	actSuccess
	actFlushErr
)

type cmd struct {
	act     action
	loadID  string
	message string // Append and Success
	err     error  // FlushError
}

// NewBuffer starts the owner goroutine. out receives finished lines;
// errOut receives the final line of a failed load (out when nil).
func NewBuffer(out, errOut func(string), verbose bool) *Buffer {
	if errOut == nil {
		errOut = out
	}
	b := &Buffer{
		ch:      make(chan cmd, 128), // headroom for a burst of skipped rows
		done:    make(chan struct{}),
		out:     out,
		errOut:  errOut,
		verbose: verbose,
	}
	go b.runloop()
	return b
}

// Begin enables buffering for loadID.
func (b *Buffer) Begin(loadID string) { b.ch <- cmd{act: actBegin, loadID: loadID} }

// Append adds one detailed line.
func (b *Buffer) Append(loadID, msg string) {
	b.ch <- cmd{act: actAppend, loadID: loadID, message: msg}
}

// Appendf is Append with formatting, handy as a Logf.
func (b *Buffer) Appendf(loadID, format string, args ...any) {
	b.Append(loadID, fmt.Sprintf(format, args...))
}

// Success drops the buffer and writes the summary line.
func (b *Buffer) Success(loadID, summary string) {
	b.ch <- cmd{act: actSuccess, loadID: loadID, message: summary}
}

// FlushError writes the buffered lines and then the final error.
func (b *Buffer) FlushError(loadID string, err error) {
	b.ch <- cmd{act: actFlushErr, loadID: loadID, err: err}
}

// Close stops accepting commands and waits until everything queued so far
// has been written.
func (b *Buffer) Close() {
	close(b.ch)
	<-b.done
}

func (b *Buffer) runloop() {
	defer close(b.done)
	buffers := make(map[string]*bytes.Buffer)

	for c := range b.ch {
		switch c.act {
		case actBegin:
			buffers[c.loadID] = &bytes.Buffer{}

		case actAppend:
			if buf := buffers[c.loadID]; buf != nil {
				_, _ = buf.WriteString(c.message + "\n")
			} else {
				b.out(c.message) // no buffer, write through
			}

		case actSuccess:
			if b.verbose {
				b.replay(buffers[c.loadID])
			}
			delete(buffers, c.loadID)
			b.out(fmt.Sprintf("[%s] %s", c.loadID, c.message))

		case actFlushErr:
			b.replay(buffers[c.loadID])
			delete(buffers, c.loadID)
			b.errOut(fmt.Sprintf("[%s] %v", c.loadID, c.err))
		}
	}
}

func (b *Buffer) replay(buf *bytes.Buffer) {
	if buf == nil || buf.Len() == 0 {
		return
	}
	for _, ln := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		b.out(ln)
	}
}
