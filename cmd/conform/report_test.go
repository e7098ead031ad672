package main

import (
	"encoding/json"
	"encoding/xml"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/blackcoderx/conform/pkg/model"
)

func TestReportCollectorGroupsStepsByOperation(t *testing.T) {
	c := newReportCollector(false)
	c.observe(&model.Event{
		Kind:      model.EventStepFinished,
		Operation: "GET /pets",
		Case:      model.NewCase("GET /pets"),
		Response:  &model.Response{StatusCode: 200, Headers: http.Header{}},
	})
	c.observe(&model.Event{Kind: model.EventScenarioFinished, Operation: "GET /pets", Status: model.ScenarioSuccess})

	if len(c.operations) != 1 || c.operations[0] != "GET /pets" {
		t.Fatalf("expected one tracked operation, got %v", c.operations)
	}
	recs := c.steps["GET /pets"]
	if len(recs) != 1 || recs[0].Status != model.ScenarioSuccess {
		t.Fatalf("expected one successful step, got %+v", recs)
	}
}

func TestWriteJUnitMarksFailingScenarios(t *testing.T) {
	c := newReportCollector(false)
	c.observe(&model.Event{
		Kind:      model.EventStepFinished,
		Operation: "GET /pets",
		Case:      model.NewCase("GET /pets"),
		Response:  &model.Response{StatusCode: 500, Headers: http.Header{}},
		Checks:    []*model.CheckFailure{{Kind: model.KindServerError, Title: "server error", Message: "500"}},
	})

	path := t.TempDir() + "/junit.xml"
	if err := c.writeJUnit(path); err != nil {
		t.Fatalf("writeJUnit: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc junitTestsuites
	if err := xml.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal junit output: %v", err)
	}
	if len(doc.Suites) != 1 || doc.Suites[0].Failures != 1 {
		t.Fatalf("expected one failing suite, got %+v", doc.Suites)
	}
}

func TestWriteHAREncodesEntriesWithComments(t *testing.T) {
	c := newReportCollector(false)
	c.observe(&model.Event{
		Kind:      model.EventStepFinished,
		Operation: "GET /pets",
		Case:      model.NewCase("GET /pets"),
		Response:  &model.Response{StatusCode: 200, Headers: http.Header{"Content-Type": {"application/json"}}, Body: []byte(`{}`)},
	})
	c.observe(&model.Event{Kind: model.EventScenarioFinished, Operation: "GET /pets", Status: model.ScenarioSuccess})

	path := t.TempDir() + "/report.har"
	if err := c.writeHAR(path, time.Now()); err != nil {
		t.Fatalf("writeHAR: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc harDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal har output: %v", err)
	}
	if len(doc.Log.Entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(doc.Log.Entries))
	}
	if doc.Log.Entries[0].Request.Method != "GET" || doc.Log.Entries[0].Request.URL != "/pets" {
		t.Fatalf("unexpected request: %+v", doc.Log.Entries[0].Request)
	}
}

func TestWriteHARBase64EncodesWhenPreserveBytesSet(t *testing.T) {
	c := newReportCollector(true)
	c.observe(&model.Event{
		Kind:      model.EventStepFinished,
		Operation: "GET /pets",
		Case:      model.NewCase("GET /pets"),
		Response:  &model.Response{StatusCode: 200, Headers: http.Header{}, Body: []byte("raw-bytes")},
	})

	path := t.TempDir() + "/report.har"
	if err := c.writeHAR(path, time.Now()); err != nil {
		t.Fatalf("writeHAR: %v", err)
	}

	raw, _ := os.ReadFile(path)
	var doc harDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Log.Entries[0].Response.Content.Encoding != "base64" {
		t.Fatalf("expected base64 encoding, got %+v", doc.Log.Entries[0].Response.Content)
	}
}
