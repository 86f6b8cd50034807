package msr

import (
	"context"
	"errors"
	"testing"

	"github.com/gregLibert/magworks/pkg/track"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const visa = "%B4111111111111111^DOE/JOHN^2512101?"

func TestReadISO(t *testing.T) {
	r := claim(t, healthy())
	r.s.handle.(*mockHandle).queue(swipe(visa))

	rec, err := r.ReadISO(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4111111111111111", rec.PAN)
	assert.Equal(t, "DOE, JOHN", rec.Name)
	assert.Equal(t, "12/25", rec.Expiration)
	assert.Equal(t, []CommandCode{CmdReset, CmdReadISO}, r.LastTrace().Commands())
}

func TestLastTrace_OwnsResponses(t *testing.T) {
	r := claim(t, healthy())
	r.s.handle.(*mockHandle).queue(swipe(visa))

	_, err := r.ReadISO(context.Background())
	require.NoError(t, err)

	first := r.LastTrace().Last()
	require.NotNil(t, first)
	require.NotEmpty(t, first.Response)
	// The trace holds only the response, not the whole read buffer.
	assert.Less(t, cap(first.Response), ResponseBufferSize)

	want := append([]byte(nil), first.Response...)
	for i := range first.Response {
		first.Response[i] = 0
	}
	assert.Equal(t, want, r.LastTrace().Last().Response)
}

func TestReadISO_RetriesUntilSwipe(t *testing.T) {
	r := claim(t, healthy())
	h := r.s.handle.(*mockHandle)
	h.queue(timeout(), timeout(), timeout(), timeout(), swipe(visa))

	rec, err := r.ReadISO(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4111111111111111", rec.PAN)

	// A reset precedes every read attempt.
	cmds := r.LastTrace().Commands()
	require.Len(t, cmds, 10)
	for i := 0; i < len(cmds); i += 2 {
		assert.Equal(t, CmdReset, cmds[i])
		assert.Equal(t, CmdReadISO, cmds[i+1])
	}
}

func TestReadISO_BoundedRetries(t *testing.T) {
	r := claim(t, healthy(), WithReadRetries(2))

	_, err := r.ReadISO(context.Background())
	assert.ErrorIs(t, err, ErrTransportTimeout)
	assert.Equal(t, StateReady, r.State())

	attempts := 0
	for _, c := range r.LastTrace().Commands() {
		if c == CmdReadISO {
			attempts++
		}
	}
	assert.Equal(t, 3, attempts)
}

func TestReadISO_Cancelled(t *testing.T) {
	r := claim(t, healthy())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.ReadISO(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateReady, r.State())
}

func TestReadISO_TransportFailureIsFatal(t *testing.T) {
	r := claim(t, healthy())
	h := r.s.handle.(*mockHandle)
	h.queue(readResult{err: errors.New("usb: no device")})

	_, err := r.ReadISO(context.Background())
	assert.ErrorIs(t, err, ErrReadFailed)
	assert.Equal(t, StateTerminated, r.State())
	assert.Equal(t, 1, h.closed)
	assert.Equal(t, frameOf(CmdReset), h.frames[len(h.frames)-1])

	_, err = r.ReadISO(context.Background())
	assert.ErrorIs(t, err, ErrSessionTerminated)
}

func TestReadISO_ShortWriteIsFatal(t *testing.T) {
	r := claim(t, healthy())
	h := r.s.handle.(*mockHandle)
	h.shortWrite = func(frame []byte) bool { return frame[2] == 'r' }

	_, err := r.ReadISO(context.Background())
	assert.ErrorIs(t, err, ErrCommunication)
	assert.Equal(t, StateTerminated, r.State())
}

func TestReadISO_BadSwipe(t *testing.T) {
	tests := []struct {
		name    string
		resp    readResult
		wantErr error
	}{
		{"Empty track 1", answer(StatusReadData, Escape, 0x01, Escape, 0x02), ErrNoTrackData},
		{"Wrong marker", answer(StatusFail), ErrNoTrackData},
		{"Too short for a marker", readResult{data: []byte{FramingMarker}}, ErrNoTrackData},
		{"Garbled track", swipe("%B4111111111111111"), track.ErrTruncatedData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := claim(t, healthy())
			r.s.handle.(*mockHandle).queue(tt.resp)

			rec, err := r.ReadISO(context.Background())
			assert.Nil(t, rec)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, StateReady, r.State(), "a bad swipe must not end the session")
		})
	}
}

func TestDecodeResponse(t *testing.T) {
	rec, err := DecodeResponse(swipe("%B5901234567890123^250DOE/JANE^2702201?").data)
	require.NoError(t, err)
	assert.Equal(t, "250", rec.CountryCode)
	assert.Equal(t, "02/27", rec.Expiration)
}
