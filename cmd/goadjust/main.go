// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.16
//

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	m "github.com/mkhts/goadjust"
)

func main() {

	// Parse command line arguments
	args, err := parseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "err=%s\n", err.Error())
		flag.Usage()
		os.Exit(1)
	}

	// Run the main application
	if err := runApplication(args); err != nil {
		fmt.Fprintf(os.Stderr, "err=%s\n", err.Error())
		os.Exit(1)
	}
}

// Main application processing
func runApplication(args cmdOpt) error {

	// Process defaults and logger
	cfg, err := loadConfig(args.envFn)
	if err != nil {
		return err
	}
	if args.logLevel != "" {
		cfg.LogLevel = args.logLevel
	}
	logCfg := m.DefaultLogConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Format = cfg.LogFormat
	logger, err := m.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	m.SetLogger(logger)
	m.DebugMatrices = args.dumpMat

	// Load job
	job, err := m.LoadJob(args.jobFn)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	if args.kind != nil && job.Transform2D != nil {
		job.Transform2D.Kind = *args.kind
	}
	logger.Info("job loaded", zap.String("file", filepath.Base(args.jobFn)), zap.String("type", job.Type))

	// Adjust
	rslt, err := job.Run(cfg.traverseOpt())
	if err != nil {
		return err
	}
	if rslt.Traverse != nil && !rslt.Traverse.Converged() {
		logger.Warn("result flagged", zap.Error(rslt.Traverse.Err()))
	}

	// Prepare output file
	out, err := prepareOutput(args.outFn)
	if err != nil {
		return fmt.Errorf("failed to prepare output: %w", err)
	}
	defer closeOutput(out)

	m.PrintReport(out, rslt)

	if len(args.geojsonFn) > 0 {
		if err := m.SaveGeoJSON(args.geojsonFn, rslt); err != nil {
			return err
		}
		logger.Info("geojson written", zap.String("file", args.geojsonFn))
	}

	return nil
}

// Prepare output file
func prepareOutput(fn string) (io.WriteCloser, error) {

	// Use stdout if no output file is specified
	if len(fn) == 0 {
		return &nopCloser{os.Stdout}, nil
	}

	f, err := os.Create(fn)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// Close output file
func closeOutput(out io.WriteCloser) {
	if out != nil {
		out.Close()
	}
}

// nopCloser - WriteCloser that ignores close operations
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// Structure to hold command line argument information
type cmdOpt struct {
	jobFn     string
	outFn     string
	geojsonFn string
	envFn     string
	logLevel  string
	dumpMat   bool
	kind      *m.TransformKind
}

// Parse command line arguments
func parseArgs() (a cmdOpt, err error) {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `
[Usage]
	%s [Options] job.yaml

[Options]
`, filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	var kind m.TransformKind
	kindSet := false
	flag.StringVar(&a.outFn, "o", "", "Output report file path. If not specified, output to stdout.")
	flag.StringVar(&a.geojsonFn, "g", "", "Write adjusted points as GeoJSON to this file.")
	flag.StringVar(&a.envFn, "env", ".env", "Optional dotenv file with GOADJUST_* defaults.")
	flag.StringVar(&a.logLevel, "x", "", "Log level. debug, info, warn, error. Overrides GOADJUST_LOG_LEVEL.")
	flag.BoolVar(&a.dumpMat, "mat", false, "Log design matrices and solutions (with -x debug).")
	flag.Func("t", "Override the 2D transformation of a transform2d job. translation, conformal, affine", func(s string) error {
		kindSet = true
		return kind.Set(s)
	})
	flag.Parse()
	if flag.NArg() != 1 {
		return a, fmt.Errorf("exactly one job file is required")
	}
	a.jobFn = flag.Arg(0)
	if kindSet {
		a.kind = &kind
	}
	return
}
