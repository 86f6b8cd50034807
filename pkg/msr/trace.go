package msr

import (
	"bytes"
	"fmt"
	"strings"
)

// Transaction is one command written to the reader and what came back for it.
// Response is nil for commands that expect no answer (reset) and for exchanges
// that failed.
type Transaction struct {
	Command  CommandCode
	Response []byte
	Err      error
}

// Status returns the marker of the response, if it carries one.
func (t *Transaction) Status() (Status, bool) {
	return ParseStatus(t.Response)
}

func (t Transaction) String() string {
	switch {
	case t.Err != nil:
		return fmt.Sprintf("%s: %v", t.Command, t.Err)
	case t.Response == nil:
		return t.Command.String()
	}
	if st, ok := t.Status(); ok {
		return fmt.Sprintf("%s -> %s (%d bytes)", t.Command, st, len(t.Response))
	}
	return fmt.Sprintf("%s -> %d bytes", t.Command, len(t.Response))
}

// Trace is the chronological list of transactions performed by the last operation
// on a reader, including the resets and retries it issued.
type Trace []Transaction

// Last returns the final transaction of the trace, or nil if it is empty.
func (t Trace) Last() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// Clone returns a copy of the trace that shares no response bytes with t.
func (t Trace) Clone() Trace {
	if t == nil {
		return nil
	}
	out := make(Trace, len(t))
	for i, tx := range t {
		tx.Response = bytes.Clone(tx.Response)
		out[i] = tx
	}
	return out
}

// Commands returns the command of every transaction, in order.
func (t Trace) Commands() []CommandCode {
	out := make([]CommandCode, len(t))
	for i, tx := range t {
		out[i] = tx.Command
	}
	return out
}

func (t Trace) String() string {
	lines := make([]string, len(t))
	for i, tx := range t {
		lines[i] = tx.String()
	}
	return strings.Join(lines, "\n")
}
