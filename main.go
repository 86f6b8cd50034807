package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gregLibert/magworks/pkg/config"
	"github.com/gregLibert/magworks/pkg/usbhost"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// stdout receives reports; logs go to stderr.
var stdout io.Writer = os.Stdout

func main() {
	registry := NewCommandRegistry(VersionInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})

	registerCommands(registry)

	if err := registry.Execute(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func registerCommands(r *CommandRegistry) {
	r.Register(&Command{
		Name:        "read",
		Description: "Wait for card swipes and print track 1",
		Usage:       "magworks read [-config file] [-count n] [-tlv]",
		Examples: []string{
			"magworks read",
			"magworks read -count 0",
			"magworks read -config magworks.yaml -tlv",
		},
		Run: readCommand,
	})

	r.Register(&Command{
		Name:        "test",
		Description: "Run the reader's communication, RAM and sensor tests",
		Usage:       "magworks test [-config file]",
		Examples:    []string{"magworks test"},
		Run:         testCommand,
	})

	r.Register(&Command{
		Name:        "list",
		Description: "List attached readers",
		Usage:       "magworks list [-config file]",
		Examples:    []string{"magworks list"},
		Run:         listCommand,
	})

	r.Register(&Command{
		Name:        "decode",
		Description: "Decode a captured read response or EMV record template given in hex",
		Usage:       "magworks decode [-tlv] [hex...]",
		Examples: []string{
			"magworks decode C2 1B 73 1B 01 25 42 34 31 31 31 ...",
			"xxd -p capture.bin | magworks decode",
			"magworks decode 70 1C 5A 08 41 11 11 11 11 11 11 11 ...",
		},
		Run: decodeCommand,
	})

	r.Register(&Command{
		Name:        "version",
		Description: "Print version information",
		Usage:       "magworks version",
		Run: func([]string) error {
			fmt.Fprintf(stdout, "magworks %s (commit %s, built %s)\n", r.version.Version, r.version.Commit, r.version.Date)
			return nil
		},
	})
}

// loadConfig returns the defaults when path is empty.
func loadConfig(path string) (config.FileConfig, *slog.Logger, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, nil, err
		}
	}

	logger, err := cfg.Logger(os.Stderr)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func openBus(cfg config.FileConfig, logger *slog.Logger) (*usbhost.Bus, error) {
	opts, err := cfg.BusOptions(logger)
	if err != nil {
		return nil, err
	}
	return usbhost.NewBus(opts), nil
}
