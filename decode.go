package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gregLibert/magworks/pkg/emv"
	"github.com/gregLibert/magworks/pkg/msr"
	"github.com/gregLibert/magworks/pkg/tlv"
)

// stdin feeds decode when no hex is given on the command line.
var stdin io.Reader = os.Stdin

func decodeCommand(args []string) error {
	cmd := &Command{Name: "decode", Description: "Decode a captured read response or EMV record template", Usage: "magworks decode [flags] [hex...]"}
	fs := cmd.NewFlagSet()
	withTLV := fs.Bool("tlv", false, "also print the EMV record template")
	if err := fs.Parse(args); err != nil {
		return err
	}

	input := strings.Join(fs.Args(), " ")
	if input == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		input = string(data)
	}

	raw, err := tlv.ParseHex(input)
	if err != nil {
		return fmt.Errorf("invalid hex input: %w", err)
	}

	if emv.IsRecordTemplate(raw) {
		cd, err := emv.ParseCardholderData(raw)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, cd.Describe())
		return nil
	}

	rec, err := msr.DecodeResponse(raw)
	if err != nil {
		return err
	}
	printRecord(stdout, 1, rec, *withTLV)
	return nil
}
