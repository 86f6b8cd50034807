/*
Package msr drives an MSR605-class magnetic-stripe reader over USB.

The reader speaks a small escape-code protocol. Every command is a HID feature
report written with a control transfer:

	C2 1B <op>

where C2 is the report header (first and last report, two payload bytes) and
1B <op> the escape command. Answers come back on the bulk-in endpoint; bytes 1-2
of an answer hold a status marker:

	1B 79  communication test ok
	1B 30  self test passed
	1B 41  self test failed
	1B 73  read data follows

# Session lifecycle

A reader must be claimed before use. Claim opens the device through a Bus,
detaches any kernel driver, configures and resets it, then runs the startup
sequence: reset, communication test, RAM test (and, optionally, the sensor test).
Only when that sequence passes does Claim return a *Reader, so a Reader is always
ready to read:

	Unclaimed -> Claimed -> Configured -> CommsVerified -> Ready

Failures split three ways:

  - fatal: claim, configuration and communication failures, short writes and
    unrecognized self-test answers. The session moves to Terminated, the handle is
    released and every later call returns ErrSessionTerminated.
  - warning: a RAM or sensor test that fails or does not answer. The result is
    reported in a DiagnosticResult and the reader stays usable.
  - retry: a read that times out waiting for a swipe is issued again.

# Reading cards

ReadISO blocks until a card is swiped. By default it waits forever; bound it with
WithReadRetries or cancel ctx to give up:

	bus := usbhost.NewBus(usbhost.Options{})
	defer bus.Close()

	reader, err := msr.Claim(ctx, bus, msr.WithLogger(logger))
	if err != nil {
	    log.Fatal(err)
	}
	defer reader.Close()

	rec, err := reader.ReadISO(ctx)
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(rec.Describe())
*/
package msr
