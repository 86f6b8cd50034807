// Package config loads the reader configuration file.
//
// Every field is optional; a missing file section keeps its default:
//
//	version: 1
//	device:
//	  vendor_id: 0x0801
//	  product_id: 0x0003
//	  configuration: 1
//	  interface: 0
//	  endpoint: 0x81
//	timeouts:
//	  control: 1s
//	  diagnostic: 5s
//	  read: 3s
//	read:
//	  max_retries: 0   # 0 waits for a swipe forever
//	startup:
//	  sensor_test: false
//	log:
//	  level: info      # debug, info, warn, error
//	  format: text     # text or json
package config

import (
	"time"

	"github.com/gregLibert/magworks/pkg/msr"
	"github.com/gregLibert/magworks/pkg/usbhost"
)

// DeviceSection selects the reader and its USB layout.
type DeviceSection struct {
	VendorID      uint16 `yaml:"vendor_id"`
	ProductID     uint16 `yaml:"product_id"`
	Configuration int    `yaml:"configuration"`
	Interface     int    `yaml:"interface"`
	Endpoint      uint8  `yaml:"endpoint"`
}

// TimeoutSection holds Go duration strings ("500ms", "5s").
type TimeoutSection struct {
	// Control bounds each command write.
	Control string `yaml:"control"`
	// Diagnostic bounds the answer to a communication or self test.
	Diagnostic string `yaml:"diagnostic"`
	// Read bounds one wait for a swipe before the read is issued again.
	Read string `yaml:"read"`
}

// ReadSection tunes card reads.
type ReadSection struct {
	MaxRetries int `yaml:"max_retries"`
}

// StartupSection tunes the startup sequence.
type StartupSection struct {
	SensorTest bool `yaml:"sensor_test"`
}

// LogSection configures the process logger.
type LogSection struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FileConfig represents a reader configuration file.
type FileConfig struct {
	// Version is the config file format version (optional, currently always 1).
	Version int `yaml:"version,omitempty"`

	Device   DeviceSection  `yaml:"device"`
	Timeouts TimeoutSection `yaml:"timeouts"`
	Read     ReadSection    `yaml:"read"`
	Startup  StartupSection `yaml:"startup"`
	Log      LogSection     `yaml:"log"`
}

// Default returns the configuration of a stock MSR605.
func Default() FileConfig {
	return FileConfig{
		Version: 1,
		Device: DeviceSection{
			VendorID:      msr.DefaultDeviceID.Vendor,
			ProductID:     msr.DefaultDeviceID.Product,
			Configuration: usbhost.DefaultConfiguration,
			Interface:     usbhost.DefaultInterface,
			Endpoint:      uint8(msr.DefaultReadEndpoint),
		},
		Timeouts: TimeoutSection{
			Control:    usbhost.DefaultControlTimeout.String(),
			Diagnostic: msr.DefaultDiagnosticTimeout.String(),
			Read:       msr.DefaultReadTimeout.String(),
		},
		Log: LogSection{
			Level:  "info",
			Format: "text",
		},
	}
}

// DeviceID returns the configured vendor and product IDs.
func (c FileConfig) DeviceID() msr.DeviceID {
	return msr.DeviceID{Vendor: c.Device.VendorID, Product: c.Device.ProductID}
}

// durations parses the timeout section. An empty value yields zero, which the
// consumers treat as their default.
func (c FileConfig) durations() (control, diagnostic, read time.Duration, err error) {
	parse := func(key, v string) (time.Duration, error) {
		if v == "" {
			return 0, nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, &FieldError{Field: "timeouts." + key, Value: v, Err: err}
		}
		if d <= 0 {
			return 0, &FieldError{Field: "timeouts." + key, Value: v, Err: errNotPositive}
		}
		return d, nil
	}

	if control, err = parse("control", c.Timeouts.Control); err != nil {
		return
	}
	if diagnostic, err = parse("diagnostic", c.Timeouts.Diagnostic); err != nil {
		return
	}
	read, err = parse("read", c.Timeouts.Read)
	return
}
