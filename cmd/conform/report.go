package main

import (
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/blackcoderx/conform/pkg/model"
)

// reportCollector buffers every StepFinished event (plus the
// ScenarioFinished status that closed it) so both report writers can run
// once the full event stream has been drained, rather than streaming
// straight to disk — spec section 6's report formats both need a
// complete picture of one operation's scenarios before they can write a
// <testsuite> or an "entries" array.
//
// No teacher or pack file builds either report format (neither JUnit XML
// nor HAR has a precedent in the retrieval pack), so both writers below
// are hand-rolled against stdlib encoding/xml and encoding/json rather
// than adapted from an existing file.
type reportCollector struct {
	preserveBytes bool

	operations []string
	steps      map[string][]stepRecord
}

type stepRecord struct {
	Case     *model.Case
	Response *model.Response
	Checks   []*model.CheckFailure
	Status   model.ScenarioStatus
}

func newReportCollector(preserveBytes bool) *reportCollector {
	return &reportCollector{preserveBytes: preserveBytes, steps: map[string][]stepRecord{}}
}

func (r *reportCollector) observe(ev *model.Event) {
	switch ev.Kind {
	case model.EventStepFinished:
		if _, seen := r.steps[ev.Operation]; !seen {
			r.operations = append(r.operations, ev.Operation)
		}
		r.steps[ev.Operation] = append(r.steps[ev.Operation], stepRecord{Case: ev.Case, Response: ev.Response, Checks: ev.Checks})
	case model.EventScenarioFinished:
		recs := r.steps[ev.Operation]
		if len(recs) > 0 {
			recs[len(recs)-1].Status = ev.Status
		}
	}
}

// --- JUnit XML ---

type junitTestsuites struct {
	XMLName xml.Name       `xml:"testsuites"`
	Suites  []junitSuite   `xml:"testsuite"`
}

type junitSuite struct {
	Name     string         `xml:"name,attr"`
	Tests    int            `xml:"tests,attr"`
	Failures int            `xml:"failures,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name    string        `xml:"name,attr"`
	Failure *junitFailure `xml:"failure,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Body    string `xml:",chardata"`
}

// writeJUnit emits one <testsuite> per operation and one <testcase> per
// recorded step (named "<operation>#<index>"); steps are not grouped by
// scenario. Full reproduction data (the failing Case's parameters and the
// Response it triggered) is embedded in the <failure> body for any step
// with one or more CheckFailures (spec section 6, "JUnit: includes
// reproduction data for failures").
func (r *reportCollector) writeJUnit(path string) error {
	doc := junitTestsuites{}
	for _, op := range r.operations {
		recs := r.steps[op]
		suite := junitSuite{Name: op, Tests: len(recs)}
		for i, rec := range recs {
			tc := junitTestCase{Name: fmt.Sprintf("%s#%d", op, i)}
			if len(rec.Checks) > 0 {
				suite.Failures++
				tc.Failure = &junitFailure{
					Message: rec.Checks[0].Title,
					Body:    reproductionText(rec),
				}
			}
			suite.Cases = append(suite.Cases, tc)
		}
		doc.Suites = append(doc.Suites, suite)
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal junit: %w", err)
	}
	return os.WriteFile(path, append([]byte(xml.Header), out...), 0o644)
}

func reproductionText(rec stepRecord) string {
	var b []byte
	for _, f := range rec.Checks {
		b = append(b, []byte(fmt.Sprintf("%s: %s\n", f.Kind, f.Message))...)
	}
	if rec.Case != nil {
		b = append(b, []byte(fmt.Sprintf("operation: %s\npath params: %v\nquery: %v\n", rec.Case.Operation, rec.Case.PathParams, rec.Case.Query))...)
	}
	if rec.Response != nil {
		b = append(b, []byte(fmt.Sprintf("status: %d\n", rec.Response.StatusCode))...)
	}
	return string(b)
}

// --- HAR (HTTP Archive) ---

type harDocument struct {
	Log harLog `json:"log"`
}

type harLog struct {
	Version string     `json:"version"`
	Creator harCreator `json:"creator"`
	Entries []harEntry `json:"entries"`
}

type harCreator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type harEntry struct {
	StartedDateTime string        `json:"startedDateTime"`
	Time            float64       `json:"time"`
	Request         harRequest    `json:"request"`
	Response        harResponse   `json:"response"`
	Comment         string        `json:"comment,omitempty"`
}

type harRequest struct {
	Method  string     `json:"method"`
	URL     string     `json:"url"`
	Headers []harHeader `json:"headers"`
}

type harResponse struct {
	Status  int         `json:"status"`
	Headers []harHeader `json:"headers"`
	Content harContent  `json:"content"`
}

type harHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type harContent struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
	Encoding string `json:"encoding,omitempty"`
}

// writeHAR emits one entry per request/response pair, tagged with its
// phase and check results via Comment (spec section 6, "VCR/HAR: every
// request/response pair tagged with phase and check results"). Bodies are
// base64-encoded only when preserveBytes is set, since most API payloads
// are already valid UTF-8 JSON and forcing base64 on every entry would
// make the report far harder to read by hand.
func (r *reportCollector) writeHAR(path string, startedAt time.Time) error {
	doc := harDocument{Log: harLog{
		Version: "1.2",
		Creator: harCreator{Name: "conform", Version: version},
	}}

	for _, op := range r.operations {
		for _, rec := range r.steps[op] {
			if rec.Case == nil || rec.Response == nil {
				continue
			}
			method, path, _ := strings.Cut(op, " ")
			entry := harEntry{
				StartedDateTime: startedAt.Format(time.RFC3339),
				Time:            float64(rec.Response.Duration.Milliseconds()),
				Request: harRequest{
					Method:  method,
					URL:     path,
					Headers: toHARHeaders(rec.Case.Headers),
				},
				Response: harResponse{
					Status:  rec.Response.StatusCode,
					Headers: toHARHeaders(rec.Response.Headers),
					Content: r.harContent(rec.Response),
				},
				Comment: fmt.Sprintf("phase=%s status=%s checks=%d", rec.Case.Meta.Phase, rec.Status, len(rec.Checks)),
			}
			doc.Log.Entries = append(doc.Log.Entries, entry)
		}
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal har: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

func (r *reportCollector) harContent(resp *model.Response) harContent {
	c := harContent{Size: len(resp.Body), MimeType: resp.Headers.Get("Content-Type")}
	if r.preserveBytes {
		c.Encoding = "base64"
		c.Text = base64.StdEncoding.EncodeToString(resp.Body)
	} else {
		c.Text = string(resp.Body)
	}
	return c
}

func toHARHeaders(h map[string][]string) []harHeader {
	var out []harHeader
	for name, values := range h {
		for _, v := range values {
			out = append(out, harHeader{Name: name, Value: v})
		}
	}
	return out
}
