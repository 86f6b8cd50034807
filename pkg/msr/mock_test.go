package msr

import (
	"context"
	"fmt"
)

var errMockTimeout = fmt.Errorf("mock: %w", ErrTransportTimeout)

type readResult struct {
	data []byte
	err  error
}

// mockHandle replays canned read results and records every frame written.
type mockHandle struct {
	reads  []readResult
	frames [][]byte

	detachErr, configErr, resetErr error
	// shortWrite, when set, makes Control report one byte less for that frame.
	shortWrite func(frame []byte) bool
	controlErr error

	closed int
}

func (m *mockHandle) DetachKernelDriver() error { return m.detachErr }
func (m *mockHandle) SetConfiguration() error   { return m.configErr }
func (m *mockHandle) ResetDevice() error        { return m.resetErr }

func (m *mockHandle) Control(setup ControlSetup, data []byte) (int, error) {
	m.frames = append(m.frames, append([]byte(nil), data...))
	if m.controlErr != nil {
		return 0, m.controlErr
	}
	if m.shortWrite != nil && m.shortWrite(data) {
		return len(data) - 1, nil
	}
	return len(data), nil
}

func (m *mockHandle) Read(ctx context.Context, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(m.reads) == 0 {
		return 0, errMockTimeout
	}
	r := m.reads[0]
	m.reads = m.reads[1:]
	if r.err != nil {
		return 0, r.err
	}
	return copy(buf, r.data), nil
}

func (m *mockHandle) Close() error {
	m.closed++
	return nil
}

// queue appends read results in order.
func (m *mockHandle) queue(results ...readResult) *mockHandle {
	m.reads = append(m.reads, results...)
	return m
}

type mockBus struct {
	handle  *mockHandle
	err     error
	opened  []DeviceID
	missing bool
}

func (b *mockBus) Open(id DeviceID) (Handle, error) {
	b.opened = append(b.opened, id)
	if b.err != nil {
		return nil, b.err
	}
	if b.missing || b.handle == nil {
		return nil, nil
	}
	return b.handle, nil
}

// answer builds a response carrying the given status marker.
func answer(st Status, payload ...byte) readResult {
	return readResult{data: append([]byte{FramingMarker, st.B1(), st.B2()}, payload...)}
}

func timeout() readResult { return readResult{err: errMockTimeout} }

// swipe builds a read-data response for a track-1 text.
func swipe(track1 string) readResult {
	return answer(StatusReadData, append([]byte{Escape, 0x01}, track1...)...)
}

// healthy is the startup exchange of a reader whose self tests pass.
func healthy() *mockHandle {
	return (&mockHandle{}).queue(answer(StatusOK), answer(StatusPass))
}

func frameOf(code CommandCode) []byte {
	f, err := code.Frame()
	if err != nil {
		panic(err)
	}
	return f
}
