package msr

import (
	"io"
	"log/slog"
	"time"
)

// Default timeouts.
const (
	DefaultDiagnosticTimeout = 5 * time.Second
	DefaultReadTimeout       = 3 * time.Second
)

// ResponseBufferSize is the size of the buffer each response is read into.
const ResponseBufferSize = 1024

type settings struct {
	device            DeviceID
	diagnosticTimeout time.Duration
	readTimeout       time.Duration
	readRetries       int
	sensorTest        bool
	logger            *slog.Logger
}

func defaultSettings() settings {
	return settings{
		device:            DefaultDeviceID,
		diagnosticTimeout: DefaultDiagnosticTimeout,
		readTimeout:       DefaultReadTimeout,
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option configures Claim.
type Option func(*settings)

// WithDevice selects the reader to claim. Defaults to DefaultDeviceID.
func WithDevice(id DeviceID) Option {
	return func(s *settings) {
		s.device = id
	}
}

// WithLogger sets the logger for protocol events. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTimeouts sets how long diagnostics and reads wait for an answer. A zero
// duration keeps the current value.
func WithTimeouts(diagnostic, read time.Duration) Option {
	return func(s *settings) {
		if diagnostic > 0 {
			s.diagnosticTimeout = diagnostic
		}
		if read > 0 {
			s.readTimeout = read
		}
	}
}

// WithReadRetries bounds how many times ReadISO re-issues a read that timed out.
// Zero, the default, retries until a card is swiped or ctx is cancelled.
func WithReadRetries(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.readRetries = n
		}
	}
}

// WithSensorTest adds the sensor self test to the startup sequence.
func WithSensorTest(enabled bool) Option {
	return func(s *settings) {
		s.sensorTest = enabled
	}
}
