package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/blackcoderx/conform/pkg/errs"
	"github.com/blackcoderx/conform/pkg/schema"
)

// httpFetcher retrieves $ref targets over HTTP/HTTPS or the local
// filesystem, the one external collaborator spec.md section 1 leaves to
// the caller. No teacher file fetches remote schema documents (every
// retrieval site in the pack reads from an already-loaded in-memory
// document), so this is hand-rolled against the stdlib's net/http client
// directly rather than adapted from a teacher file.
type httpFetcher struct {
	client *http.Client
}

func newHTTPFetcher(timeout time.Duration) *httpFetcher {
	return &httpFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *httpFetcher) Fetch(uri string) ([]byte, error) {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		resp, err := f.client.Get(uri)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", uri, err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", uri, err)
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("fetch %s: status %d", uri, resp.StatusCode)
		}
		return body, nil
	}
	data, err := os.ReadFile(uri)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	return data, nil
}

// fetchSchemaSource loads the raw SCHEMA positional argument (a URL or a
// filesystem path), retrying every second until waitFor elapses — spec
// section 7 bucket 1: "cannot reach schema URL after wait-for-schema" is
// the fatal condition, not the first failed attempt.
func fetchSchemaSource(source string, fetcher *httpFetcher, waitFor time.Duration) ([]byte, error) {
	deadline := time.Now().Add(waitFor)
	var lastErr error
	for {
		data, err := fetcher.Fetch(source)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			return nil, errs.NewFatal("fetch schema", lastErr)
		}
		time.Sleep(time.Second)
	}
}

// detectFormat sniffs which schema.LoadX function should parse content,
// the same lightweight string-containment heuristic
// spec_ingester/openapi_parser.go's OpenAPIParser.DetectFormat uses rather
// than a strict content-type negotiation, generalized to also recognize
// Postman collections and GraphQL SDL.
func detectFormat(content []byte) string {
	s := string(content)
	switch {
	case strings.Contains(s, "\"_postman_id\"") || strings.Contains(s, "postman_collection"):
		return "postman"
	case strings.Contains(s, "\"openapi\"") || strings.Contains(s, "openapi:") ||
		strings.Contains(s, "\"swagger\"") || strings.Contains(s, "swagger:"):
		return "openapi"
	case strings.Contains(s, "type Query") || strings.Contains(s, "type Mutation") || strings.Contains(s, "schema {"):
		return "graphql"
	default:
		return "openapi" // the common case; libopenapi's own parser reports a clear error otherwise
	}
}

// loadSchema dispatches content to the right schema.LoadX function per
// detectFormat, wrapping parse failures as errs.Fatal (spec section 7
// bucket 1: "cannot parse schema" -> exit 2).
func loadSchema(content []byte, fetcher schema.Fetcher) (*schema.APISchema, error) {
	switch detectFormat(content) {
	case "postman":
		s, err := schema.LoadPostmanCollection(content)
		if err != nil {
			return nil, errs.NewFatal("parse postman collection", err)
		}
		return s, nil
	case "graphql":
		s, err := schema.LoadGraphQLSchema(content)
		if err != nil {
			return nil, errs.NewFatal("parse graphql schema", err)
		}
		return s, nil
	default:
		s, err := schema.LoadOpenAPI(content, fetcher)
		if err != nil {
			return nil, errs.NewFatal("parse openapi schema", err)
		}
		return s, nil
	}
}
