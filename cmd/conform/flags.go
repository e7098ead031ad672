package main

import (
	"github.com/spf13/cobra"
)

// cliFlags holds every value spec section 6's flag groups bind to,
// following the teacher's package-level-var-plus-init()-StringVar shape
// (cmd/falcon/main.go) generalized from half a dozen flags to the full
// Target/Phases/Checks/Filters/Auth/Generation/Output surface.
type cliFlags struct {
	// Target
	baseURL      string
	waitForSchema int
	header       []string

	// Phases
	phases []string

	// Checks
	checks           []string
	excludeChecks    []string
	expectedStatuses []string // "check=status,status" pairs
	maxResponseTime  int

	// Filters
	include           []string
	includeRegex      []string
	exclude           []string
	excludeRegex      []string
	includeBy         []string
	excludeBy         []string
	excludeDeprecated bool

	// Auth & network
	authAPIKey       []string // "scheme=value"
	authBasic        string   // "user:pass"
	authBearer       string
	authClientID     string
	authClientSecret string
	authScopes       []string
	proxy            string
	tlsInsecure      bool

	// Generation
	seed          int64
	maxExamples   int
	fuzzModes     []string
	deterministic bool
	noShrink      bool
	maximize      string
	scenarios     int
	maxSteps      int

	// Concurrency & run control
	workers           int
	rateLimit         float64
	maxFailures       int
	continueOnFailure bool

	// Output
	reportJUnit           string
	reportHAR             string
	reportPreserveBytes   bool
	noColor               bool
	forceColor            bool
	hooksPath             string

	configFile string
}

var flags cliFlags

func init() {
	// Target
	rootCmd.Flags().StringVar(&flags.baseURL, "base-url", "", "base URL to send requests against, overriding the schema's own servers list")
	rootCmd.Flags().IntVar(&flags.waitForSchema, "wait-for-schema", 10, "seconds to retry fetching SCHEMA before giving up")
	rootCmd.Flags().StringArrayVarP(&flags.header, "header", "H", nil, "extra request header \"Name: value\", repeatable")

	// Phases
	rootCmd.Flags().StringSliceVar(&flags.phases, "phases", []string{"examples", "coverage", "fuzzing"}, "enabled phases: examples, coverage, fuzzing, stateful")

	// Checks
	rootCmd.Flags().StringSliceVar(&flags.checks, "checks", nil, "checks to run (default: all built-ins)")
	rootCmd.Flags().StringSliceVar(&flags.excludeChecks, "exclude-checks", nil, "checks to disable")
	rootCmd.Flags().StringArrayVar(&flags.expectedStatuses, "expected-statuses", nil, "\"check=2XX,404\" per-check expected status override, repeatable")
	rootCmd.Flags().IntVar(&flags.maxResponseTime, "max-response-time", 0, "milliseconds; 0 disables the max_response_time check")

	// Filters
	rootCmd.Flags().StringArrayVar(&flags.include, "include", nil, "\"kind=value\" inclusion selector, repeatable (kinds: path, method, tag, operation-id, name)")
	rootCmd.Flags().StringArrayVar(&flags.includeRegex, "include-regex", nil, "\"kind=pattern\" regex inclusion selector, repeatable")
	rootCmd.Flags().StringArrayVar(&flags.exclude, "exclude", nil, "\"kind=value\" exclusion selector, repeatable")
	rootCmd.Flags().StringArrayVar(&flags.excludeRegex, "exclude-regex", nil, "\"kind=pattern\" regex exclusion selector, repeatable")
	rootCmd.Flags().StringArrayVar(&flags.includeBy, "include-by", nil, "\"POINTER OP VALUE\" inclusion expression, repeatable")
	rootCmd.Flags().StringArrayVar(&flags.excludeBy, "exclude-by", nil, "\"POINTER OP VALUE\" exclusion expression, repeatable")
	rootCmd.Flags().BoolVar(&flags.excludeDeprecated, "exclude-deprecated", false, "skip operations marked deprecated")

	// Auth & network
	rootCmd.Flags().StringArrayVar(&flags.authAPIKey, "auth-api-key", nil, "\"scheme=value\" apiKey credential, repeatable")
	rootCmd.Flags().StringVar(&flags.authBasic, "auth-basic", "", "\"user:pass\" for http-basic schemes")
	rootCmd.Flags().StringVar(&flags.authBearer, "auth-bearer", "", "bearer token for http-bearer schemes")
	rootCmd.Flags().StringVar(&flags.authClientID, "auth-client-id", "", "OAuth2 client_credentials client ID")
	rootCmd.Flags().StringVar(&flags.authClientSecret, "auth-client-secret", "", "OAuth2 client_credentials client secret")
	rootCmd.Flags().StringSliceVar(&flags.authScopes, "auth-scopes", nil, "OAuth2 scopes to request")
	rootCmd.Flags().StringVar(&flags.proxy, "proxy", "", "HTTP proxy URL")
	rootCmd.Flags().BoolVar(&flags.tlsInsecure, "tls-insecure-skip-verify", false, "skip TLS certificate verification")

	// Generation
	rootCmd.Flags().Int64Var(&flags.seed, "seed", 0, "PRNG seed; 0 derives one from the current time")
	rootCmd.Flags().IntVar(&flags.maxExamples, "max-examples", 100, "fuzzing example budget per operation")
	rootCmd.Flags().StringSliceVar(&flags.fuzzModes, "fuzz-modes", []string{"positive", "negative"}, "fuzzing modes: positive, negative")
	rootCmd.Flags().BoolVar(&flags.deterministic, "deterministic", false, "disable randomized exploration order")
	rootCmd.Flags().BoolVar(&flags.noShrink, "no-shrink", false, "skip minimizing failing fuzz examples")
	rootCmd.Flags().StringVar(&flags.maximize, "maximize", "", "target metric to maximize while fuzzing, e.g. response_time")
	rootCmd.Flags().IntVar(&flags.scenarios, "stateful-scenarios", 10, "number of stateful scenario draws")
	rootCmd.Flags().IntVar(&flags.maxSteps, "stateful-max-steps", 10, "max steps per stateful scenario")

	// Concurrency & run control
	rootCmd.Flags().IntVar(&flags.workers, "workers", 0, "concurrent workers; 0 means runtime.NumCPU()")
	rootCmd.Flags().Float64Var(&flags.rateLimit, "rate-limit", 0, "requests/sec shared token bucket; 0 disables")
	rootCmd.Flags().IntVar(&flags.maxFailures, "max-failures", 0, "stop after this many failures; 0 means unlimited")
	rootCmd.Flags().BoolVar(&flags.continueOnFailure, "continue-on-failure", true, "keep running an operation's remaining cases after a failure")

	// Output
	rootCmd.Flags().StringVar(&flags.reportJUnit, "report-junit", "", "write a JUnit XML report to this path")
	rootCmd.Flags().StringVar(&flags.reportHAR, "report-har", "", "write a HAR report to this path")
	rootCmd.Flags().BoolVar(&flags.reportPreserveBytes, "report-preserve-bytes", false, "base64-encode request/response bodies in the HAR report")
	rootCmd.Flags().BoolVar(&flags.noColor, "no-color", false, "disable colored console output")
	rootCmd.Flags().BoolVar(&flags.forceColor, "force-color", false, "force colored console output even when stdout isn't a terminal")
	rootCmd.Flags().StringVar(&flags.hooksPath, "hooks", "", "path to a hooks plugin (SCHEMATHESIS_HOOKS is used when this flag is empty)")

	rootCmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file (default is .conform/config.yaml)")
}

// registerVersionCommand mirrors the teacher's separate "version"
// subcommand (cmd/falcon/main.go), parameterized over this project's own
// version variables instead.
func registerVersionCommand(cmd *cobra.Command) {
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("conform %s\n", version)
			cmd.Printf("  commit: %s\n", commit)
			cmd.Printf("  built:  %s\n", date)
		},
	})
}
