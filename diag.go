package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gregLibert/magworks/pkg/config"
	"github.com/gregLibert/magworks/pkg/msr"
	"github.com/gregLibert/magworks/pkg/usbhost"
)

func testCommand(args []string) error {
	cmd := &Command{Name: "test", Description: "Run the reader's self tests", Usage: "magworks test [flags]"}
	fs := cmd.NewFlagSet()
	configPath := fs.String("config", "", "path to a YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bus, err := openBus(cfg, logger)
	if err != nil {
		return err
	}
	defer bus.Close()

	return runTest(ctx, bus, cfg, logger, stdout)
}

// runTest runs every diagnostic once and prints a verdict table. A failed
// communication test aborts; self test failures are only reported.
func runTest(ctx context.Context, bus msr.Bus, cfg config.FileConfig, logger *slog.Logger, w io.Writer) error {
	reader, err := claim(ctx, bus, cfg, logger)
	if err != nil {
		return err
	}
	defer closeReader(reader, logger)

	table := NewTableWriter("TEST", "VERDICT", "ANSWER")

	if err := reader.TestComms(ctx); err != nil {
		return err
	}
	table.AddRow(msr.CmdTestComm.String(), "ok", msr.StatusOK.String())

	for _, run := range []func(context.Context) (msr.DiagnosticResult, error){reader.TestRAM, reader.TestSensor} {
		res, err := run(ctx)
		if err != nil {
			return err
		}
		answer := "-"
		if res.Status != 0 {
			answer = res.Status.String()
		}
		table.AddRow(res.Command.String(), res.Verdict.String(), answer)
	}

	table.Print(w)
	return nil
}

func listCommand(args []string) error {
	cmd := &Command{Name: "list", Description: "List attached readers", Usage: "magworks list [flags]"}
	fs := cmd.NewFlagSet()
	configPath := fs.String("config", "", "path to a YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	devices, err := usbhost.List(cfg.DeviceID(), logger)
	if err != nil {
		return err
	}
	printDevices(stdout, devices)
	return nil
}

func printDevices(w io.Writer, devices []usbhost.Device) {
	if len(devices) == 0 {
		io.WriteString(w, ">> No reader found.\n")
		return
	}

	table := NewTableWriter("SOURCE", "ID", "PRODUCT", "SERIAL", "PATH")
	for _, d := range devices {
		table.AddRow(d.Source, msr.DeviceID{Vendor: d.VendorID, Product: d.ProductID}.String(), d.Product, d.Serial, d.Path)
	}
	table.Print(w)
}
