// Command conform runs property-based conformance testing against an
// OpenAPI, GraphQL, or Postman-collection API description (spec section
// 1), generating and executing Cases through the Execution Engine and
// reporting failures as they're found.
//
// Grounded on cmd/falcon/main.go's cobra/viper/godotenv root command
// shape: a package-level rootCmd with flags bound in init(), godotenv.Load
// before anything reads configuration, and a Run func that does the
// actual work rather than cobra subcommands per concern.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackcoderx/conform/pkg/config"
	"github.com/blackcoderx/conform/pkg/engine"
	"github.com/blackcoderx/conform/pkg/errs"
	conformlog "github.com/blackcoderx/conform/pkg/log"
	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/stateful"
	"github.com/blackcoderx/conform/pkg/transport"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	rootCmd = &cobra.Command{
		Use:   "conform SCHEMA [BASE_URL]",
		Short: "Property-based conformance testing for HTTP APIs",
		Long: `conform reads an API description (OpenAPI, GraphQL SDL, or a Postman
collection), generates request Cases covering documented examples,
boundary coverage, and randomized fuzzing, executes them against a live
base URL, and reports every response that violates the description.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args)
		},
	}
)

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	registerVersionCommand(rootCmd)
}

func main() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	var ec exitCodeError
	if errors.As(err, &ec) {
		os.Exit(ec.code)
	}

	fmt.Fprintln(os.Stderr, err)
	var fatal *errs.Fatal
	if errors.As(err, &fatal) {
		os.Exit(2)
	}
	os.Exit(1)
}

// run resolves configuration, loads the schema, builds the engine, drains
// its event stream to the console and to any requested report writers,
// and exits with spec section 6's exit code: 0 clean, 1 failures found,
// 2 a fatal (pre-run) error.
func run(cmd *cobra.Command, args []string) error {
	source := args[0]
	if len(args) == 2 {
		flags.baseURL = args[1]
	}
	if v := os.Getenv("SCHEMATHESIS_BASE_URL"); v != "" && flags.baseURL == "" {
		flags.baseURL = v
	}
	if v := os.Getenv("SCHEMATHESIS_HOOKS"); v != "" && flags.hooksPath == "" {
		flags.hooksPath = v
	}

	workDir, err := os.Getwd()
	if err != nil {
		return errs.NewFatal("resolve working directory", err)
	}
	if err := config.LoadDotEnv(workDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if err := config.Bootstrap(workDir); err != nil {
		return errs.NewFatal("bootstrap project folder", err)
	}

	settings, err := resolveLayeredSettings(cmd, workDir)
	if err != nil {
		return errs.NewFatal("resolve configuration", err)
	}
	applyLayeredSettings(settings)

	logger := conformlog.NewDefault()

	fetcher := newHTTPFetcher(30 * time.Second)
	raw, err := fetchSchemaSource(source, fetcher, time.Duration(flags.waitForSchema)*time.Second)
	if err != nil {
		return err
	}

	s, err := loadSchema(raw, fetcher)
	if err != nil {
		return err
	}

	if warning, err := config.CheckVersionCompatibility(workDir, s.Version); err == nil && warning != "" {
		logger.Warn(warning)
	}

	filter, err := buildFilter(flags)
	if err != nil {
		return errs.NewFatal("parse filters", err)
	}
	operations, err := config.Select(s.Operations(), filter)
	if err != nil {
		return errs.NewFatal("apply filters", err)
	}
	if len(operations) == 0 {
		return errs.NewFatal("select operations", fmt.Errorf("no operations matched the configured filters"))
	}

	opts, err := buildEngineOptions(s, flags, logger)
	if err != nil {
		return errs.NewFatal("build engine options", err)
	}
	opts.Operations = operations

	var graph *stateful.Graph
	if containsPhase(opts.Phases, "stateful") {
		graph = stateful.NewGraph(s)
	}

	t := transport.NewNetworkTransport(flags.tlsInsecure, flags.proxy)

	eng := engine.New(s, s.Resolver, t, graph, opts)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	startedAt := time.Now()
	events := eng.Run(ctx)

	collector := newReportCollector(flags.reportPreserveBytes)
	reporter := newConsoleReporter(cmd.OutOrStdout(), flags)

	tee := make(chan *model.Event, 64)
	go func() {
		defer close(tee)
		for ev := range events {
			collector.observe(ev)
			tee <- ev
		}
	}()
	summary := reporter.consume(tee)

	if flags.reportJUnit != "" {
		if err := collector.writeJUnit(flags.reportJUnit); err != nil {
			logger.Warnf("writing junit report: %v", err)
		}
	}
	if flags.reportHAR != "" {
		if err := collector.writeHAR(flags.reportHAR, startedAt); err != nil {
			logger.Warnf("writing har report: %v", err)
		}
	}

	if summary != nil && summary.TotalFailures > 0 {
		return exitCodeError{code: 1}
	}
	return nil
}

func containsPhase(phases []string, name string) bool {
	for _, p := range phases {
		if p == name {
			return true
		}
	}
	return false
}

// exitCodeError lets run's caller distinguish "ran fine, found failures"
// (exit 1) from a fatal pre-run error (exit 2) without RunE's default
// generic-failure handling collapsing both into exit 1.
type exitCodeError struct{ code int }

func (e exitCodeError) Error() string { return "" }
