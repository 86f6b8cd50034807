package msr

import (
	"context"
	"errors"
	"fmt"

	"github.com/gregLibert/magworks/pkg/track"
)

// Reader is a claimed reader that passed its startup sequence. It is not safe for
// concurrent use.
type Reader struct {
	s       *session
	startup []DiagnosticResult
}

// State returns the session state: StateReady until a fatal error or Close.
func (r *Reader) State() State {
	return r.s.state
}

// StartupDiagnostics returns the self test results collected by Claim.
func (r *Reader) StartupDiagnostics() []DiagnosticResult {
	return append([]DiagnosticResult(nil), r.startup...)
}

// LastTrace returns the transactions performed by the last operation.
func (r *Reader) LastTrace() Trace {
	return r.s.trace.Clone()
}

// Close releases the device. The reader cannot be used afterwards.
func (r *Reader) Close() error {
	if r.s.state == StateTerminated {
		return nil
	}
	r.s.state = StateTerminated
	h := r.s.handle
	r.s.handle = nil
	if h == nil {
		return nil
	}
	r.s.log.Info("releasing reader")
	return h.Close()
}

// Reset returns the reader to its idle state. A failed reset is fatal.
func (r *Reader) Reset() error {
	if err := r.s.begin(); err != nil {
		return err
	}
	return r.s.reset()
}

// TestComms runs the communication test. Any answer but ok is fatal.
func (r *Reader) TestComms(ctx context.Context) error {
	if err := r.s.begin(); err != nil {
		return err
	}
	return r.s.testComms(ctx)
}

// TestRAM runs the RAM self test.
func (r *Reader) TestRAM(ctx context.Context) (DiagnosticResult, error) {
	if err := r.s.begin(); err != nil {
		return DiagnosticResult{Command: CmdTestRAM}, err
	}
	return r.s.diagnose(ctx, CmdTestRAM)
}

// TestSensor runs the card sensor self test.
func (r *Reader) TestSensor(ctx context.Context) (DiagnosticResult, error) {
	if err := r.s.begin(); err != nil {
		return DiagnosticResult{Command: CmdTestSensor}, err
	}
	return r.s.diagnose(ctx, CmdTestSensor)
}

// ReadISO waits for a card swipe and decodes its track 1.
//
// Each attempt resets the reader, issues the read and waits for the read timeout.
// A timed-out attempt is issued again, forever unless WithReadRetries set a bound;
// past the bound the last ErrTransportTimeout is returned and the reader stays
// usable. Cancelling ctx stops waiting and returns ctx.Err().
//
// A response without track-1 data returns ErrNoTrackData, a garbled track returns
// track.ErrTruncatedData; neither is retried nor fatal. Any other read failure
// terminates the session with ErrReadFailed.
func (r *Reader) ReadISO(ctx context.Context) (*track.Record, error) {
	s := r.s
	if err := s.begin(); err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		if err := s.reset(); err != nil {
			return nil, err
		}

		s.log.Info("waiting to process swipe", "attempt", attempt)
		resp, err := s.exchange(ctx, CmdReadISO, s.cfg.readTimeout)
		if err == nil {
			return DecodeResponse(resp)
		}

		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case s.state == StateTerminated:
			return nil, err
		case errors.Is(err, ErrTransportTimeout):
			if limit := s.cfg.readRetries; limit > 0 && attempt > limit {
				return nil, fmt.Errorf("no swipe after %d attempts: %w", attempt, err)
			}
			s.log.Info("reader timed out, please swipe again")
		default:
			if rerr := s.send(CmdReset); rerr != nil {
				s.log.Warn("reset after failed read", "error", rerr)
			}
			return nil, s.terminate(fmt.Errorf("%w: %w", ErrReadFailed, err))
		}
	}
}

// DecodeResponse checks that a read response carries track-1 data and decodes it.
func DecodeResponse(resp []byte) (*track.Record, error) {
	status, ok := ParseStatus(resp)
	if !ok || status != StatusReadData {
		return nil, fmt.Errorf("%w: read answered %s", ErrNoTrackData, describeResponse(resp))
	}
	if len(resp) <= track.StartSentinelOffset || resp[track.StartSentinelOffset] != track.StartSentinel {
		return nil, fmt.Errorf("%w: no start sentinel at offset %d", ErrNoTrackData, track.StartSentinelOffset)
	}

	rec, err := track.Decode(resp)
	if err != nil {
		return nil, fmt.Errorf("decode track 1: %w", err)
	}
	return rec, nil
}
