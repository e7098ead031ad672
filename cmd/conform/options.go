package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/blackcoderx/conform/pkg/checks"
	"github.com/blackcoderx/conform/pkg/config"
	"github.com/blackcoderx/conform/pkg/engine"
	"github.com/blackcoderx/conform/pkg/hooks"
	"github.com/blackcoderx/conform/pkg/phases"
	"github.com/blackcoderx/conform/pkg/schema"
	"github.com/blackcoderx/conform/pkg/transport"
)

// parseHeaders turns repeated "-H Name: value" flags into an http.Header,
// the same "Name: value" split the teacher's httpTool request builder
// uses for its own header lines (shared/http_tool.go), generalized from a
// single request's headers to every Case's ExtraHeaders.
func parseHeaders(raw []string) http.Header {
	h := http.Header{}
	for _, line := range raw {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		h.Add(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
	}
	return h
}

// parseExpectedStatuses turns repeated "check=2XX,404" flags into
// Options.ExpectedStatuses.
func parseExpectedStatuses(raw []string) map[string][]string {
	out := map[string][]string{}
	for _, entry := range raw {
		name, values, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		out[name] = strings.Split(values, ",")
	}
	return out
}

// buildFilter assembles a config.Filter from the --include/--exclude flag
// groups, parsing each "kind=value" selector and "POINTER OP VALUE"
// expression.
func buildFilter(f cliFlags) (config.Filter, error) {
	parseSelector := func(raw string, isRegex bool) (config.Selector, error) {
		kind, value, ok := strings.Cut(raw, "=")
		if !ok {
			return config.Selector{}, fmt.Errorf("malformed selector %q, want kind=value", raw)
		}
		return config.Selector{Kind: config.SelectorKind(kind), Regex: isRegex, Value: value}, nil
	}

	var filter config.Filter
	filter.ExcludeDeprecated = f.excludeDeprecated

	for _, raw := range f.include {
		s, err := parseSelector(raw, false)
		if err != nil {
			return config.Filter{}, err
		}
		filter.Include = append(filter.Include, s)
	}
	for _, raw := range f.includeRegex {
		s, err := parseSelector(raw, true)
		if err != nil {
			return config.Filter{}, err
		}
		filter.Include = append(filter.Include, s)
	}
	for _, raw := range f.exclude {
		s, err := parseSelector(raw, false)
		if err != nil {
			return config.Filter{}, err
		}
		filter.Exclude = append(filter.Exclude, s)
	}
	for _, raw := range f.excludeRegex {
		s, err := parseSelector(raw, true)
		if err != nil {
			return config.Filter{}, err
		}
		filter.Exclude = append(filter.Exclude, s)
	}
	for _, raw := range f.includeBy {
		e, err := config.ParseExpr(raw)
		if err != nil {
			return config.Filter{}, err
		}
		filter.IncludeBy = append(filter.IncludeBy, e)
	}
	for _, raw := range f.excludeBy {
		e, err := config.ParseExpr(raw)
		if err != nil {
			return config.Filter{}, err
		}
		filter.ExcludeBy = append(filter.ExcludeBy, e)
	}
	return filter, nil
}

// buildCredentials folds every --auth-* flag into the scheme-name-keyed
// credentials map AuthInjector needs. Flags that address a specific named
// scheme ("--auth-api-key scheme=value") are split per scheme; the
// remaining bare flags (--auth-basic, --auth-bearer, --auth-client-id/
// secret) apply to every declared scheme of the matching type, since a
// schema commonly declares exactly one scheme per type and a CLI run
// targets one API at a time.
func buildCredentials(f cliFlags, declared map[string]schema.SecurityScheme) (map[string]transport.Credentials, []string) {
	out := map[string]transport.Credentials{}
	var configured []string

	get := func(name string) transport.Credentials {
		c := out[name]
		return c
	}
	set := func(name string, c transport.Credentials) {
		out[name] = c
		configured = append(configured, name)
	}

	for _, raw := range f.authAPIKey {
		name, value, ok := strings.Cut(raw, "=")
		if !ok {
			continue
		}
		c := get(name)
		c.APIKey = value
		set(name, c)
	}

	for name, scheme := range declared {
		switch {
		case scheme.Type == "http" && scheme.Scheme == "basic" && f.authBasic != "":
			user, pass, _ := strings.Cut(f.authBasic, ":")
			c := get(name)
			c.Username, c.Password = user, pass
			set(name, c)
		case scheme.Type == "http" && scheme.Scheme == "bearer" && f.authBearer != "":
			c := get(name)
			c.BearerToken = f.authBearer
			set(name, c)
		case scheme.Type == "oauth2" && f.authClientID != "" && f.authClientSecret != "":
			c := get(name)
			c.ClientID = f.authClientID
			c.ClientSecret = f.authClientSecret
			c.Scopes = f.authScopes
			set(name, c)
		}
	}
	return out, configured
}

// buildEngineOptions resolves CLI flags (already merged through
// pkg/config's layer precedence by the caller) into a ready engine.Options,
// the single place cmd/conform translates user-facing configuration into
// the engine's internal shape.
func buildEngineOptions(s *schema.APISchema, f cliFlags, logger logrus.FieldLogger) (engine.Options, error) {
	selectedChecks := map[string]checks.Check{}
	exclude := map[string]bool{}
	for _, name := range f.excludeChecks {
		exclude[name] = true
	}
	names := f.checks
	if len(names) == 0 {
		for name := range checks.All {
			names = append(names, name)
		}
	}
	for _, name := range names {
		if exclude[name] {
			continue
		}
		if check, ok := checks.All[name]; ok {
			selectedChecks[name] = check
		}
	}

	statefulChecks := map[string]checks.ScenarioCheck{}
	for name, check := range checks.StatefulChecks {
		if !exclude[name] {
			statefulChecks[name] = check
		}
	}

	seed := f.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	credentials, configuredSchemes := buildCredentials(f, s.SecuritySchemes)
	var authInjector *transport.AuthInjector
	if len(credentials) > 0 {
		authInjector = transport.NewAuthInjector(s.SecuritySchemes, credentials)
	}

	registry := hooks.NewRegistry()
	if f.hooksPath != "" {
		logger.Warnf("hooks plugin %q requested but this build has no plugin loader; running without custom hooks", f.hooksPath)
	}

	return engine.Options{
		Phases:            f.phases,
		Workers:           f.workers,
		MaxFailures:       f.maxFailures,
		ContinueOnFailure: f.continueOnFailure,

		RateLimit: rate.Limit(f.rateLimit),
		RateBurst: int(f.rateLimit) + 1,

		Seed: seed,

		Checks:           selectedChecks,
		StatefulChecks:   statefulChecks,
		ExpectedStatuses: parseExpectedStatuses(f.expectedStatuses),
		MaxResponseTime:  time.Duration(f.maxResponseTime) * time.Millisecond,

		ExamplesOptions: phases.ExamplesOptions{FillMissing: true},
		CoverageOptions: phases.CoverageOptions{UnexpectedMethods: true, DuplicateQueryParam: true},
		FuzzOptions: phases.FuzzOptions{
			Deterministic: f.deterministic,
			NoShrink:      f.noShrink,
			MaxExamples:   f.maxExamples,
			Modes:         f.fuzzModes,
			Maximize:      f.maximize,
			DB:            &phases.ExampleDB{Dir: exampleDBDir(f)},
		},

		StatefulScenarios: f.scenarios,
		StatefulMaxSteps:  f.maxSteps,

		ConfiguredAuthSchemes: configuredSchemes,

		CallOptions: transport.CallOptions{
			BaseURL:         f.baseURL,
			RequestTimeout:  30 * time.Second,
			MaxRedirects:    10,
			TLSInsecureSkip: f.tlsInsecure,
			ProxyURL:        f.proxy,
			UserAgent:       "conform/" + version,
			ExtraHeaders:    parseHeaders(f.header),
			Seed:            seed,
		},

		AuthInjector: authInjector,
		Hooks:        registry,
		Logger:       logger,
	}, nil
}

// exampleDBDir is the directory ExampleDB stores one file per operation
// under. Distinct from Bootstrap's "examples.db" marker file (a
// zero-length sentinel written at project-init time) since ExampleDB
// itself needs a directory, not a single file, to hold one JSON document
// per operation.
func exampleDBDir(f cliFlags) string {
	return config.ProjectFolderName + "/examples"
}

