package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gregLibert/magworks/pkg/config"
	"github.com/gregLibert/magworks/pkg/msr"
	"github.com/gregLibert/magworks/pkg/track"
)

type readFlags struct {
	configPath string
	count      int
	tlv        bool
}

func readCommand(args []string) error {
	var f readFlags
	cmd := &Command{Name: "read", Description: "Wait for card swipes and print track 1", Usage: "magworks read [flags]"}
	fs := cmd.NewFlagSet()
	fs.StringVar(&f.configPath, "config", "", "path to a YAML configuration file")
	fs.IntVar(&f.count, "count", 1, "number of cards to read, 0 reads until interrupted")
	fs.BoolVar(&f.tlv, "tlv", false, "also print each card as an EMV record template")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if f.count < 0 {
		return fmt.Errorf("-count must not be negative")
	}

	cfg, logger, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, err := openBus(cfg, logger)
	if err != nil {
		return err
	}
	defer bus.Close()

	return runRead(ctx, bus, cfg, logger, f, stdout)
}

// runRead reads f.count cards. Bad swipes are reported and read again; an
// interrupt ends the loop without error.
func runRead(ctx context.Context, bus msr.Bus, cfg config.FileConfig, logger *slog.Logger, f readFlags, w io.Writer) error {
	reader, err := claim(ctx, bus, cfg, logger)
	if err != nil {
		return err
	}
	defer closeReader(reader, logger)

	log := logger.With("component", "cli")
	fmt.Fprintln(w, ">> Swipe a card...")

	for n := 0; f.count == 0 || n < f.count; {
		rec, err := reader.ReadISO(ctx)
		switch {
		case err == nil:
			n++
			printRecord(w, n, rec, f.tlv)
		case errors.Is(err, context.Canceled):
			log.Info("interrupted")
			return nil
		case reader.State() == msr.StateTerminated, errors.Is(err, msr.ErrTransportTimeout):
			return err
		default:
			log.Warn("bad swipe, please try again", "error", err)
		}
	}
	return nil
}

func claim(ctx context.Context, bus msr.Bus, cfg config.FileConfig, logger *slog.Logger) (*msr.Reader, error) {
	opts, err := cfg.ReaderOptions(logger)
	if err != nil {
		return nil, err
	}

	reader, err := msr.Claim(ctx, bus, opts...)
	if err != nil {
		return nil, fmt.Errorf("claim reader %s: %w", cfg.DeviceID(), err)
	}

	for _, d := range reader.StartupDiagnostics() {
		if d.IsWarning() {
			logger.Warn("startup self test did not pass", "component", "cli", "result", d.String())
		}
	}
	return reader, nil
}

func closeReader(r *msr.Reader, logger *slog.Logger) {
	if err := r.Close(); err != nil {
		logger.Warn("failed to release reader", "component", "cli", "error", err)
	}
}

// printRecord writes the report for the n-th card and, with withTLV, its EMV
// record template.
func printRecord(w io.Writer, n int, rec *track.Record, withTLV bool) {
	fmt.Fprintln(w, "\n=============================================")
	fmt.Fprintf(w, " Card #%d\n", n)
	fmt.Fprintln(w, "=============================================")
	fmt.Fprintln(w, rec.Describe())

	if !withTLV {
		return
	}

	cd := rec.EMV()
	raw, err := cd.Encode()
	if err != nil {
		fmt.Fprintf(w, "\n(!) EMV export failed: %v\n", err)
		return
	}
	fmt.Fprintf(w, "\nTLV: %X\n", raw)
	fmt.Fprintln(w, cd.Describe())
}
