// Command pta runs the pointer analysis engine over a program described by
// a JSON file and either dumps its points-to sets or checks them against a
// captured expected dump. Grounded on gorace/tests/runc_simple.go's
// cli.App/cli.Command/cli.Flag pattern (ported here to urfave/cli/v2's
// pointer-flag types, matching config.Flags) and on race_checker/main.go's
// logrus setup.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/o2lab/gopta2/compare"
	pconfig "github.com/o2lab/gopta2/config"
	"github.com/o2lab/gopta2/engine"
	"github.com/o2lab/gopta2/errs"
	"github.com/o2lab/gopta2/result"
)

func main() {
	log := logrus.New()

	app := &cli.App{
		Name:  "pta",
		Usage: "whole-program context-sensitive pointer analysis",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "verbose logging"},
		}, pconfig.Flags...),
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "analyze a program and dump or compare its points-to sets",
				ArgsUsage: "<program.json>",
				Flags:     pconfig.Flags,
				Action: func(c *cli.Context) error {
					return runCommand(log, c)
				},
			},
			{
				Name:      "compare",
				Usage:     "analyze a program and check it against an expected dump (shorthand for run --expected-file)",
				ArgsUsage: "<program.json> <expected.txt>",
				Flags:     pconfig.Flags,
				Action: func(c *cli.Context) error {
					return compareCommand(log, c)
				},
			},
		},
		Action: func(c *cli.Context) error {
			return runCommand(log, c)
		},
	}

	if err := app.Run(os.Args); err != nil {
		reportAndExit(log, err)
	}
}

func runCommand(log *logrus.Logger, c *cli.Context) error {
	if c.Bool("debug") {
		log.SetLevel(logrus.DebugLevel)
	}
	if c.NArg() < 1 {
		return errs.Configf("usage: pta run [options] <program.json>")
	}

	opts := pconfig.FromCLI(c)
	r, err := analyze(log, c.Args().Get(0), opts)
	if err != nil {
		return err
	}

	if opts.ExpectedFile != "" {
		return checkAgainstExpected(r, opts.ExpectedFile)
	}
	return renderDump(r, opts)
}

func compareCommand(log *logrus.Logger, c *cli.Context) error {
	if c.Bool("debug") {
		log.SetLevel(logrus.DebugLevel)
	}
	if c.NArg() < 2 {
		return errs.Configf("usage: pta compare [options] <program.json> <expected.txt>")
	}

	opts := pconfig.FromCLI(c)
	opts.ExpectedFile = c.Args().Get(1)

	r, err := analyze(log, c.Args().Get(0), opts)
	if err != nil {
		return err
	}
	return checkAgainstExpected(r, opts.ExpectedFile)
}

func analyze(log *logrus.Logger, programPath string, opts pconfig.Options) (*result.Result, error) {
	program, hier, err := loadProgram(programPath)
	if err != nil {
		return nil, err
	}

	cfg := engine.Config{
		Program:   program,
		Hierarchy: hier,
		Options:   opts,
		Log:       log,
	}
	if t, ok := hier.ClassByName("java.lang.StringBuilder"); ok {
		cfg.StringBuilderType = t
	}
	if t, ok := hier.ClassByName("java.lang.Throwable"); ok {
		cfg.ExceptionBase = t
	}

	return engine.Analyze(context.Background(), cfg)
}

func checkAgainstExpected(r *result.Result, expectedPath string) error {
	f, err := os.Open(expectedPath)
	if err != nil {
		return errs.Configf("opening expected file %q: %v", expectedPath, err)
	}
	defer f.Close()

	cmpErr := compare.Run(f, r)
	if cmpErr == nil {
		fmt.Println("OK: analysis matches expected result")
		return nil
	}
	compare.Report(os.Stdout, cmpErr)
	return cmpErr
}

func renderDump(r *result.Result, opts pconfig.Options) error {
	switch {
	case opts.Color:
		result.DumpColor(os.Stdout, r)
	case opts.DumpCI:
		result.DumpCI(os.Stdout, r)
	case opts.Dump:
		result.Dump(os.Stdout, r)
	}
	return nil
}

func reportAndExit(log *logrus.Logger, err error) {
	var ce *errs.ComparisonError
	switch {
	case errors.As(err, &ce):
		os.Exit(1)
	case errs.AsKind(err, errs.KindConfig):
		log.Error(err)
		os.Exit(2)
	case errs.AsKind(err, errs.KindInternal):
		log.Error(err)
		os.Exit(3)
	default:
		log.Error(err)
		os.Exit(2)
	}
}
