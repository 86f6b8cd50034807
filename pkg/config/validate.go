package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gregLibert/magworks/pkg/msr"
)

var (
	errNotPositive = errors.New("must be positive")
	errNotIn       = errors.New("endpoint must be an IN endpoint")
)

// FieldError reports an invalid configuration value.
type FieldError struct {
	Field string
	Value any
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s %v: %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Validate validates a configuration.
//
// Ensures:
//   - vendor and product IDs are set
//   - configuration, interface and retry count are not negative
//   - the endpoint is an IN endpoint
//   - timeouts are positive Go durations
//   - the log level and format are known
func Validate(cfg FileConfig) error {
	if cfg.Device.VendorID == 0 || cfg.Device.ProductID == 0 {
		return errors.New("device.vendor_id and device.product_id must be set")
	}
	if cfg.Device.Configuration < 0 {
		return &FieldError{Field: "device.configuration", Value: cfg.Device.Configuration, Err: errors.New("must not be negative")}
	}
	if cfg.Device.Interface < 0 {
		return &FieldError{Field: "device.interface", Value: cfg.Device.Interface, Err: errors.New("must not be negative")}
	}
	if ep := msr.EndpointAddress(cfg.Device.Endpoint); !ep.IsIn() {
		return &FieldError{Field: "device.endpoint", Value: ep, Err: errNotIn}
	}
	if cfg.Read.MaxRetries < 0 {
		return &FieldError{Field: "read.max_retries", Value: cfg.Read.MaxRetries, Err: errors.New("must not be negative")}
	}

	if _, _, _, err := cfg.durations(); err != nil {
		return err
	}

	if _, err := parseLevel(cfg.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "text", "json":
	default:
		return &FieldError{Field: "log.format", Value: cfg.Log.Format, Err: errors.New("must be text or json")}
	}

	return nil
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, &FieldError{Field: "log.level", Value: s, Err: err}
	}
	return level, nil
}
