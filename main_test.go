package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/gregLibert/magworks/pkg/config"
	"github.com/gregLibert/magworks/pkg/emv"
	"github.com/gregLibert/magworks/pkg/msr"
	"github.com/gregLibert/magworks/pkg/usbhost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader replays canned responses; once they run out every read times out.
type fakeReader struct {
	responses [][]byte
	closed    bool
}

func (f *fakeReader) Open(msr.DeviceID) (msr.Handle, error) { return f, nil }
func (f *fakeReader) DetachKernelDriver() error             { return nil }
func (f *fakeReader) SetConfiguration() error               { return nil }
func (f *fakeReader) ResetDevice() error                    { return nil }
func (f *fakeReader) Close() error                          { f.closed = true; return nil }

func (f *fakeReader) Control(_ msr.ControlSetup, data []byte) (int, error) {
	return len(data), nil
}

func (f *fakeReader) Read(ctx context.Context, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(f.responses) == 0 {
		return 0, fmt.Errorf("fake: %w", msr.ErrTransportTimeout)
	}
	n := copy(buf, f.responses[0])
	f.responses = f.responses[1:]
	return n, nil
}

func status(st msr.Status, payload ...byte) []byte {
	return append([]byte{msr.FramingMarker, st.B1(), st.B2()}, payload...)
}

func swipe(track1 string) []byte {
	return status(msr.StatusReadData, append([]byte{msr.Escape, 0x01}, track1...)...)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunRead(t *testing.T) {
	fake := &fakeReader{responses: [][]byte{
		status(msr.StatusOK),
		status(msr.StatusPass),
		status(msr.StatusReadData, msr.Escape, 0x01, msr.Escape, 0x02), // no track 1
		swipe("%B4111111111111111^DOE/JOHN^2512101?"),
	}}

	var out bytes.Buffer
	err := runRead(context.Background(), fake, config.Default(), discard(), readFlags{count: 1, tlv: true}, &out)
	require.NoError(t, err)
	assert.True(t, fake.closed)

	report := out.String()
	assert.Contains(t, report, " Card #1")
	assert.Contains(t, report, "Primary Account #:\t4111111111111111")
	assert.Contains(t, report, "Card Holder:\t\tDOE, JOHN")
	assert.Contains(t, report, "TLV: 70")
	assert.Contains(t, report, "=== EMV RECORD TEMPLATE ===")
}

func TestRunRead_RetriesExhausted(t *testing.T) {
	cfg := config.Default()
	cfg.Read.MaxRetries = 1

	fake := &fakeReader{responses: [][]byte{status(msr.StatusOK), status(msr.StatusPass)}}
	err := runRead(context.Background(), fake, cfg, discard(), readFlags{count: 1}, io.Discard)
	assert.ErrorIs(t, err, msr.ErrTransportTimeout)
}

func TestRunRead_ClaimFails(t *testing.T) {
	fake := &fakeReader{responses: [][]byte{status(msr.StatusFail)}}
	err := runRead(context.Background(), fake, config.Default(), discard(), readFlags{count: 1}, io.Discard)
	assert.ErrorIs(t, err, msr.ErrConnectionLost)
	assert.Contains(t, err.Error(), "claim reader 0801:0003")
}

func TestRunRead_Interrupted(t *testing.T) {
	fake := &fakeReader{responses: [][]byte{status(msr.StatusOK), status(msr.StatusPass)}}
	ctx, cancel := context.WithCancel(context.Background())

	// Cancel once the startup sequence consumed its answers.
	bus := busFunc(func(id msr.DeviceID) (msr.Handle, error) {
		return &cancelOnDrain{fakeReader: fake, cancel: cancel}, nil
	})

	err := runRead(ctx, bus, config.Default(), discard(), readFlags{count: 0}, io.Discard)
	assert.NoError(t, err)
}

type busFunc func(msr.DeviceID) (msr.Handle, error)

func (f busFunc) Open(id msr.DeviceID) (msr.Handle, error) { return f(id) }

type cancelOnDrain struct {
	*fakeReader
	cancel context.CancelFunc
}

func (c *cancelOnDrain) Read(ctx context.Context, buf []byte) (int, error) {
	if len(c.responses) == 0 {
		c.cancel()
	}
	return c.fakeReader.Read(ctx, buf)
}

func TestRunTest(t *testing.T) {
	fake := &fakeReader{responses: [][]byte{
		status(msr.StatusOK),
		status(msr.StatusPass),
		status(msr.StatusOK),
		status(msr.StatusPass),
		status(msr.StatusFail),
	}}

	var out bytes.Buffer
	require.NoError(t, runTest(context.Background(), fake, config.Default(), discard(), &out))

	table := out.String()
	assert.Contains(t, table, "TEST_COMM")
	assert.Contains(t, table, "TEST_RAM")
	assert.Regexp(t, `TEST_SENSOR\s+fail\s+\[1B 41\] fail`, table)
}

func TestDecodeCommand(t *testing.T) {
	var out bytes.Buffer
	saved, savedIn := stdout, stdin
	stdout = &out
	defer func() { stdout, stdin = saved, savedIn }()

	hex := fmt.Sprintf("% X", swipe("%B5901234567890123^250DOE/JANE^2702201?"))
	require.NoError(t, decodeCommand([]string{hex}))
	assert.Contains(t, out.String(), "Country Code:\t\t250")
	assert.Contains(t, out.String(), "Expiration Date:\t02/27")

	out.Reset()
	stdin = strings.NewReader(fmt.Sprintf("%x\n", swipe("%B4111111111111111^DOE/JOHN^2512?")))
	require.NoError(t, decodeCommand([]string{"-tlv"}))
	assert.Contains(t, out.String(), "=== EMV RECORD TEMPLATE ===")

	assert.Error(t, decodeCommand([]string{"ZZ"}))
	assert.ErrorIs(t, decodeCommand([]string{"C2 1B 41"}), msr.ErrNoTrackData)
}

func TestDecodeCommand_RecordTemplate(t *testing.T) {
	var out bytes.Buffer
	saved := stdout
	stdout = &out
	defer func() { stdout = saved }()

	raw, err := (&emv.CardholderData{PAN: "4111111111111111", CardholderName: "DOE, JOHN"}).Encode()
	require.NoError(t, err)

	require.NoError(t, decodeCommand([]string{fmt.Sprintf("%X", raw)}))
	assert.Contains(t, out.String(), "=== EMV RECORD TEMPLATE ===")
	assert.Contains(t, out.String(), "Record.PAN (5A): 4111111111111111")
	assert.Contains(t, out.String(), "Record.CardholderName (5F20): DOE, JOHN")

	assert.Error(t, decodeCommand([]string{"70 05 5A"}))
}

func TestPrintDevices(t *testing.T) {
	var out bytes.Buffer
	printDevices(&out, nil)
	assert.Equal(t, ">> No reader found.\n", out.String())

	out.Reset()
	printDevices(&out, []usbhost.Device{{Source: "hid", VendorID: 0x0801, ProductID: 0x0003, Product: "MSR605", Path: "/dev/hidraw1"}})
	assert.Contains(t, out.String(), "SOURCE  ID         PRODUCT  SERIAL  PATH\n")
	assert.Contains(t, out.String(), "hid     0801:0003  MSR605           /dev/hidraw1\n")
}

func TestCommandRegistry(t *testing.T) {
	r := NewCommandRegistry(VersionInfo{Version: "1.2.3", Commit: "abc", Date: "today"})
	registerCommands(r)

	var out bytes.Buffer
	saved := stdout
	stdout = &out
	defer func() { stdout = saved }()

	require.NoError(t, r.Execute([]string{"version"}))
	assert.Equal(t, "magworks 1.2.3 (commit abc, built today)\n", out.String())

	assert.EqualError(t, r.Execute([]string{"erase"}), "unknown command: erase")
	assert.Equal(t, []string{"read", "test", "list", "decode", "version"}, r.order)
}

func TestTableWriter(t *testing.T) {
	table := NewTableWriter("A", "BB")
	table.AddRow("xyz", "1")
	table.AddRow("q")
	table.AddRow("r", "2", "dropped")

	var out bytes.Buffer
	table.Print(&out)
	want := strings.Join([]string{
		"A    BB",
		"-    --",
		"xyz  1",
		"q",
		"r    2",
		"",
	}, "\n")
	assert.Equal(t, want, out.String())
}
