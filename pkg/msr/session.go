package msr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// session owns the device handle and drives the protocol. It is not safe for
// concurrent use.
type session struct {
	handle Handle
	cfg    settings
	log    *slog.Logger
	state  State
	trace  Trace
}

// Claim opens the reader, configures it and runs the startup sequence. The
// returned Reader is ready to read cards. On failure the device is released and
// the error reports which step failed.
func Claim(ctx context.Context, bus Bus, opts ...Option) (*Reader, error) {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &session{
		cfg:   cfg,
		log:   cfg.logger.With("component", "msr"),
		state: StateUnclaimed,
	}
	s.log.Info("initializing reader", "device", cfg.device)

	h, err := bus.Open(cfg.device)
	if err != nil {
		return nil, s.terminate(fmt.Errorf("%w: %s: %w", ErrDeviceNotFound, cfg.device, err))
	}
	if h == nil {
		return nil, s.terminate(fmt.Errorf("%w: %s", ErrDeviceNotFound, cfg.device))
	}
	s.handle = h
	s.state = StateClaimed

	if err := h.DetachKernelDriver(); err != nil {
		return nil, s.terminate(fmt.Errorf("%w: %w", ErrDriverDetach, err))
	}
	if err := h.SetConfiguration(); err != nil {
		if !errors.Is(err, ErrDriverDetach) {
			err = fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		return nil, s.terminate(err)
	}
	if err := h.ResetDevice(); err != nil {
		return nil, s.terminate(fmt.Errorf("%w: device reset: %w", ErrConfiguration, err))
	}
	s.state = StateConfigured
	s.log.Debug("device configured")

	startup, err := s.startup(ctx)
	if err != nil {
		return nil, s.terminate(err)
	}
	s.state = StateReady
	s.log.Info("reader ready")

	return &Reader{s: s, startup: startup}, nil
}

// startup runs reset, the communication test and the self tests.
func (s *session) startup(ctx context.Context) ([]DiagnosticResult, error) {
	s.trace = nil
	if err := s.reset(); err != nil {
		return nil, err
	}
	if err := s.testComms(ctx); err != nil {
		return nil, err
	}
	s.state = StateCommsVerified

	tests := []CommandCode{CmdTestRAM}
	if s.cfg.sensorTest {
		tests = append(tests, CmdTestSensor)
	}

	var results []DiagnosticResult
	for _, code := range tests {
		res, err := s.diagnose(ctx, code)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// usable fails once the session is terminated.
func (s *session) usable() error {
	if s.state == StateTerminated || s.handle == nil {
		return ErrSessionTerminated
	}
	return nil
}

// begin clears the trace at the start of a public operation.
func (s *session) begin() error {
	if err := s.usable(); err != nil {
		return err
	}
	s.trace = nil
	return nil
}

// terminate releases the handle and marks the session unusable. It returns cause
// so callers can write `return s.terminate(err)`.
func (s *session) terminate(cause error) error {
	if s.state != StateTerminated {
		s.log.Error("terminating session", "error", cause)
	}
	s.state = StateTerminated
	if s.handle != nil {
		if err := s.handle.Close(); err != nil {
			s.log.Warn("failed to release device", "error", err)
		}
		s.handle = nil
	}
	return cause
}

// send writes one command frame. Any failure to write the whole frame is an
// ErrCommunication.
func (s *session) send(code CommandCode) error {
	frame, err := code.Frame()
	if err != nil {
		return err
	}
	n, err := s.handle.Control(CommandSetup, frame)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCommunication, code, err)
	}
	if n != len(frame) {
		return fmt.Errorf("%w: %s: wrote %d of %d bytes", ErrCommunication, code, n, len(frame))
	}
	s.log.Debug("command sent", "command", code, "frame", fmt.Sprintf("% X", frame))
	return nil
}

// reset returns the reader to its idle state. A failed reset is fatal.
func (s *session) reset() error {
	err := s.send(CmdReset)
	s.trace = append(s.trace, Transaction{Command: CmdReset, Err: err})
	if err != nil {
		return s.terminate(err)
	}
	return nil
}

// exchange writes a command and reads its response. A failed write terminates the
// session; read errors are returned for the caller to classify. A read that runs
// out of time wraps ErrTransportTimeout, a cancelled ctx returns ctx.Err().
func (s *session) exchange(ctx context.Context, code CommandCode, timeout time.Duration) ([]byte, error) {
	if err := s.send(code); err != nil {
		s.trace = append(s.trace, Transaction{Command: code, Err: err})
		return nil, s.terminate(err)
	}

	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	buf := make([]byte, ResponseBufferSize)
	n, err := s.handle.Read(rctx, buf)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			err = ctx.Err()
		case errors.Is(err, ErrTransportTimeout):
			err = fmt.Errorf("%s: no answer within %s: %w", code, timeout, err)
		case errors.Is(rctx.Err(), context.DeadlineExceeded):
			err = fmt.Errorf("%w: %s: no answer within %s: %w", ErrTransportTimeout, code, timeout, err)
		default:
			err = fmt.Errorf("%s: %w", code, err)
		}
		s.trace = append(s.trace, Transaction{Command: code, Err: err})
		return nil, err
	}

	resp := buf[:n]
	s.trace = append(s.trace, Transaction{Command: code, Response: bytes.Clone(resp)})
	s.log.Debug("response received", "command", code, "length", n, "response", fmt.Sprintf("% X", resp))
	return resp, nil
}

// testComms checks that the reader answers. Anything but an ok marker means the
// connection is lost, which is fatal.
func (s *session) testComms(ctx context.Context) error {
	resp, err := s.exchange(ctx, CmdTestComm, s.cfg.diagnosticTimeout)
	if err != nil {
		if ctx.Err() != nil || s.state == StateTerminated {
			return err
		}
		// Leave the reader idle before giving up on it.
		if rerr := s.reset(); rerr != nil {
			return rerr
		}
		return s.terminate(fmt.Errorf("%w: %w", ErrConnectionLost, err))
	}

	status, ok := ParseStatus(resp)
	if !ok || status != StatusOK {
		return s.terminate(fmt.Errorf("%w: communication test answered %s", ErrConnectionLost, describeResponse(resp)))
	}

	s.log.Info("connection is up and running")
	return nil
}

// diagnose runs a RAM or sensor self test. Failures and missing answers are
// reported in the result; only an unknown marker is fatal.
func (s *session) diagnose(ctx context.Context, code CommandCode) (DiagnosticResult, error) {
	res := DiagnosticResult{Command: code}

	resp, err := s.exchange(ctx, code, s.cfg.diagnosticTimeout)
	if err != nil {
		if ctx.Err() != nil || s.state == StateTerminated {
			return res, err
		}
		if rerr := s.reset(); rerr != nil {
			return res, rerr
		}
		res.Verdict = VerdictNoResponse
		res.Err = err
		s.log.Warn("self test did not answer, reader may still work", "test", code, "error", err)
		return res, nil
	}

	res.Status, _ = ParseStatus(resp)
	switch res.Status {
	case StatusPass:
		res.Verdict = VerdictPass
		s.log.Info("self test passed", "test", code)
	case StatusFail:
		res.Verdict = VerdictFail
		s.log.Warn("self test failed, reader may still work", "test", code)
	default:
		return res, s.terminate(fmt.Errorf("%w: %s answered %s", ErrUnrecognizedResponse, code, describeResponse(resp)))
	}
	return res, nil
}

// describeResponse renders the status marker of a response for error messages.
func describeResponse(resp []byte) string {
	if st, ok := ParseStatus(resp); ok {
		return st.String()
	}
	return fmt.Sprintf("%d bytes", len(resp))
}
