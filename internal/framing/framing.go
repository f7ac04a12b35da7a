// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

// Package framing implements the line oriented protocol used to exchange
// payloads with a parent process over a pipe.
//
// Payload lines are buffered until a line containing the end sentinel
// arrives. The buffered payload is then passed to a handler, whose output
// is written followed by a line holding the stop marker.
package framing

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
)

// State of a Loop
type State int

const (
	// Accumulating means payload lines are being collected
	Accumulating State = iota
	// Ready means a complete payload is being handled
	Ready
)

func (s State) String() string {
	switch s {
	case Accumulating:
		return "accumulating"
	case Ready:
		return "ready"
	}
	return "unknown"
}

// Sentinels are the marker strings of the protocol. A line is a sentinel
// line when it contains the marker anywhere.
type Sentinels struct {
	Start string
	End   string
	Stop  string
}

// DefaultSentinels are the markers used by the parent process
var DefaultSentinels = Sentinels{
	Start: "start processing",
	End:   "end processing",
	Stop:  "stop",
}

// Handler turns one complete payload into one response
type Handler func(payload []byte) ([]byte, error)

var (
	// ErrNoHandler is returned by New for a nil handler
	ErrNoHandler = errors.New("framing: no handler")
	// ErrSentinel is returned by New when a marker is empty
	ErrSentinel = errors.New("framing: empty sentinel")
)

// Loop is the framing state machine. It is not safe for concurrent use.
type Loop struct {
	sent      Sentinels
	handle    Handler
	logger    *log.Logger
	state     State
	buf       strings.Builder
	processed int
}

// New returns a Loop in the Accumulating state. A nil logger discards log
// output.
func New(sent Sentinels, h Handler, logger *log.Logger) (*Loop, error) {
	if h == nil {
		return nil, ErrNoHandler
	}
	if sent.Start == "" || sent.End == "" || sent.Stop == "" {
		return nil, ErrSentinel
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Loop{sent: sent, handle: h, logger: logger}, nil
}

// State returns the current state
func (l *Loop) State() State {
	return l.state
}

// Processed returns the number of payloads handled so far
func (l *Loop) Processed() int {
	return l.processed
}

// Buffered returns the number of payload bytes collected so far
func (l *Loop) Buffered() int {
	return l.buf.Len()
}

// Feed processes one input line. The line may or may not carry its
// trailing newline. Only errors writing to w are returned; handler errors
// are reported to the peer.
func (l *Loop) Feed(line string, w io.Writer) error {
	switch {
	case strings.Contains(line, l.sent.Start):
		return nil
	case strings.Contains(line, l.sent.End):
		l.state = Ready
		return l.dispatch(w)
	}
	l.buf.WriteString(line)
	if !strings.HasSuffix(line, "\n") {
		l.buf.WriteByte('\n')
	}
	return nil
}

// dispatch hands the buffered payload to the handler exactly once and
// returns to Accumulating, also when writing fails
func (l *Loop) dispatch(w io.Writer) error {
	defer func() {
		l.buf.Reset()
		l.state = Accumulating
	}()

	l.processed++
	out, err := l.handle([]byte(l.buf.String()))
	if err != nil {
		l.logger.Printf("payload %d: %v", l.processed, err)
		out = errorResponse(err)
	}
	if len(out) == 0 || out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	if _, err := w.Write(out); err != nil {
		return err
	}
	if _, err := io.WriteString(w, l.sent.Stop+"\n"); err != nil {
		return err
	}
	if f, ok := w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func errorResponse(err error) []byte {
	b, merr := json.Marshal(struct {
		Error string `json:"error"`
	}{err.Error()})
	if merr != nil {
		return []byte(`{"error":"internal error"}`)
	}
	return b
}

// Run feeds all lines of r to the loop, writing responses to w, until r
// is exhausted or ctx is cancelled. Cancellation also interrupts a Run
// that is waiting for input. An incomplete payload at the end of r is
// discarded.
func (l *Loop) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	// The reader may stay blocked after Run returns, until r yields or is
	// closed
	lines := make(chan readResult)
	go readLines(ctx, bufio.NewReader(r), lines)

	for {
		if err := ctx.Err(); err != nil {
			l.logIncomplete()
			return err
		}
		var rr readResult
		select {
		case <-ctx.Done():
			l.logIncomplete()
			return ctx.Err()
		case rr = <-lines:
		}
		if len(rr.line) > 0 {
			if err := l.Feed(rr.line, bw); err != nil {
				return err
			}
		}
		if rr.err == io.EOF {
			break
		}
		if rr.err != nil {
			return rr.err
		}
	}
	l.logIncomplete()
	return nil
}

func (l *Loop) logIncomplete() {
	if l.buf.Len() > 0 {
		l.logger.Printf("input ended with %d bytes of incomplete payload", l.buf.Len())
	}
}

type readResult struct {
	line string
	err  error
}

// readLines sends every line of br to out, up to and including the read
// error that ends the input
func readLines(ctx context.Context, br *bufio.Reader, out chan<- readResult) {
	for {
		line, err := br.ReadString('\n')
		select {
		case out <- readResult{line: line, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}
