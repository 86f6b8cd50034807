// Package usbhost connects the reader protocol to real hardware through libusb
// (github.com/google/gousb) and lists attached readers through hidapi
// (github.com/karalabe/hid). Both need cgo and the native libraries at build time.
package usbhost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/gousb"
	"github.com/gregLibert/magworks/pkg/msr"
)

// Defaults for the reader's USB layout.
const (
	DefaultConfiguration  = 1
	DefaultInterface      = 0
	DefaultControlTimeout = time.Second
)

// Options selects the USB configuration the reader is driven through. Zero values
// take the defaults.
type Options struct {
	Configuration  int
	Interface      int
	Endpoint       msr.EndpointAddress
	ControlTimeout time.Duration
	Logger         *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Configuration == 0 {
		o.Configuration = DefaultConfiguration
	}
	if o.Endpoint == 0 {
		o.Endpoint = msr.DefaultReadEndpoint
	}
	if o.ControlTimeout == 0 {
		o.ControlTimeout = DefaultControlTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// Bus opens readers through a libusb context. It implements msr.Bus.
type Bus struct {
	ctx  *gousb.Context
	opts Options
	log  *slog.Logger
}

// NewBus creates a libusb context. Close it once every handle is closed.
func NewBus(opts Options) *Bus {
	opts = opts.withDefaults()
	return &Bus{
		ctx:  gousb.NewContext(),
		opts: opts,
		log:  opts.Logger.With("component", "usbhost"),
	}
}

// Open opens the first device matching id, or returns nil, nil when none is attached.
func (b *Bus) Open(id msr.DeviceID) (msr.Handle, error) {
	dev, err := b.ctx.OpenDeviceWithVIDPID(gousb.ID(id.Vendor), gousb.ID(id.Product))
	if err != nil {
		if dev != nil {
			dev.Close()
		}
		return nil, fmt.Errorf("open %s: %w", id, err)
	}
	if dev == nil {
		return nil, nil
	}

	dev.ControlTimeout = b.opts.ControlTimeout
	b.log.Debug("device opened", "device", id, "desc", dev.String())

	return &handle{dev: dev, opts: b.opts, log: b.log}, nil
}

// Close releases the libusb context.
func (b *Bus) Close() error {
	return b.ctx.Close()
}

// handle is an opened reader. It implements msr.Handle.
type handle struct {
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	in   *gousb.InEndpoint
	opts Options
	log  *slog.Logger
}

func (h *handle) DetachKernelDriver() error {
	err := h.dev.SetAutoDetach(true)
	if err != nil && detachError(err) == nil {
		h.log.Debug("kernel driver detach not supported, claiming as is", "error", err)
	}
	return detachError(err)
}

func (h *handle) SetConfiguration() error {
	cfg, err := h.dev.Config(h.opts.Configuration)
	if err != nil {
		return fmt.Errorf("set configuration %d: %w", h.opts.Configuration, err)
	}

	intf, err := cfg.Interface(h.opts.Interface, 0)
	if err != nil {
		cfg.Close()
		return claimError(h.opts.Interface, err)
	}

	in, err := intf.InEndpoint(h.opts.Endpoint.Number())
	if err != nil {
		intf.Close()
		cfg.Close()
		return fmt.Errorf("open endpoint %s: %w", h.opts.Endpoint, err)
	}

	h.cfg, h.intf, h.in = cfg, intf, in
	return nil
}

func (h *handle) ResetDevice() error {
	return h.dev.Reset()
}

func (h *handle) Control(setup msr.ControlSetup, data []byte) (int, error) {
	return h.dev.Control(setup.RequestType.Raw, setup.Request, setup.Value, setup.Index, data)
}

func (h *handle) Read(ctx context.Context, buf []byte) (int, error) {
	if h.in == nil {
		return 0, errors.New("read before configuration")
	}
	n, err := h.in.ReadContext(ctx, buf)
	if err != nil {
		return n, readError(ctx, err)
	}
	return n, nil
}

func (h *handle) Close() error {
	if h.intf != nil {
		h.intf.Close()
		h.intf = nil
	}
	var errs []error
	if h.cfg != nil {
		if err := h.cfg.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close configuration: %w", err))
		}
		h.cfg = nil
	}
	if err := h.dev.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close device: %w", err))
	}
	return errors.Join(errs...)
}

// detachError ignores a backend that cannot detach kernel drivers. If a driver
// does hold the interface, claiming it fails later and claimError reports it.
func detachError(err error) error {
	if errors.Is(err, gousb.ErrorNotSupported) {
		return nil
	}
	return err
}

// claimError reports an interface a kernel driver still holds as msr.ErrDriverDetach.
func claimError(iface int, err error) error {
	if errors.Is(err, gousb.ErrorBusy) || errors.Is(err, gousb.ErrorAccess) {
		return fmt.Errorf("%w: claim interface %d: %w", msr.ErrDriverDetach, iface, err)
	}
	return fmt.Errorf("claim interface %d: %w", iface, err)
}

// readError reports timed out and deadline-cancelled transfers as
// msr.ErrTransportTimeout. A transfer cancelled by the caller keeps ctx's error.
func readError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, gousb.TransferTimedOut), errors.Is(err, gousb.ErrorTimeout):
		return fmt.Errorf("%w: %w", msr.ErrTransportTimeout, err)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", msr.ErrTransportTimeout, err)
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return err
}
