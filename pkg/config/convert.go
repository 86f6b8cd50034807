package config

import (
	"io"
	"log/slog"
	"strings"

	"github.com/gregLibert/magworks/pkg/msr"
	"github.com/gregLibert/magworks/pkg/usbhost"
)

// ReaderOptions converts the configuration into options for msr.Claim.
func (c FileConfig) ReaderOptions(logger *slog.Logger) ([]msr.Option, error) {
	_, diagnostic, read, err := c.durations()
	if err != nil {
		return nil, err
	}
	return []msr.Option{
		msr.WithDevice(c.DeviceID()),
		msr.WithTimeouts(diagnostic, read),
		msr.WithReadRetries(c.Read.MaxRetries),
		msr.WithSensorTest(c.Startup.SensorTest),
		msr.WithLogger(logger),
	}, nil
}

// BusOptions converts the configuration into options for usbhost.NewBus.
func (c FileConfig) BusOptions(logger *slog.Logger) (usbhost.Options, error) {
	control, _, _, err := c.durations()
	if err != nil {
		return usbhost.Options{}, err
	}
	return usbhost.Options{
		Configuration:  c.Device.Configuration,
		Interface:      c.Device.Interface,
		Endpoint:       msr.EndpointAddress(c.Device.Endpoint),
		ControlTimeout: control,
		Logger:         logger,
	}, nil
}

// Logger builds the process logger writing to w.
func (c FileConfig) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
