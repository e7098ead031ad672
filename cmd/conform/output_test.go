package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/blackcoderx/conform/pkg/model"
)

func TestColorEnabledDefaultsToTrue(t *testing.T) {
	if !colorEnabled(cliFlags{}) {
		t.Fatal("expected color enabled by default")
	}
}

func TestColorEnabledHonorsNoColorFlag(t *testing.T) {
	if colorEnabled(cliFlags{noColor: true}) {
		t.Fatal("expected --no-color to disable color")
	}
}

func TestColorEnabledForceColorOverridesNoColor(t *testing.T) {
	if !colorEnabled(cliFlags{noColor: true, forceColor: true}) {
		t.Fatal("expected --force-color to win over --no-color")
	}
}

func TestConsoleReporterRendersScenarioAndSummary(t *testing.T) {
	var buf bytes.Buffer
	r := newConsoleReporter(&buf, cliFlags{noColor: true})

	events := make(chan *model.Event, 4)
	events <- &model.Event{Kind: model.EventEngineStarted}
	events <- &model.Event{Kind: model.EventScenarioFinished, Operation: "GET /pets", Status: model.ScenarioFailure}
	events <- &model.Event{Kind: model.EventEngineFinished, FinalSummary: &model.Summary{
		OperationsTested: 1, OperationsTotal: 1, TotalCases: 1234, TotalFailures: 1, Duration: 2 * time.Second,
	}}
	close(events)

	summary := r.consume(events)
	if summary == nil || summary.TotalFailures != 1 {
		t.Fatalf("expected a summary with one failure, got %+v", summary)
	}

	out := buf.String()
	if !strings.Contains(out, "FAIL  GET /pets") {
		t.Fatalf("expected a FAIL line, got %q", out)
	}
	if !strings.Contains(out, "1,234 cases") {
		t.Fatalf("expected humanized case count, got %q", out)
	}
}
