package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func TestDetectFormatOpenAPI(t *testing.T) {
	if got := detectFormat([]byte(`{"openapi": "3.0.0"}`)); got != "openapi" {
		t.Fatalf("expected openapi, got %s", got)
	}
}

func TestDetectFormatSwagger(t *testing.T) {
	if got := detectFormat([]byte("swagger: \"2.0\"\npaths: {}")); got != "openapi" {
		t.Fatalf("expected openapi, got %s", got)
	}
}

func TestDetectFormatPostman(t *testing.T) {
	if got := detectFormat([]byte(`{"info": {"_postman_id": "abc"}}`)); got != "postman" {
		t.Fatalf("expected postman, got %s", got)
	}
}

func TestDetectFormatGraphQL(t *testing.T) {
	if got := detectFormat([]byte("type Query { pets: [Pet] }")); got != "graphql" {
		t.Fatalf("expected graphql, got %s", got)
	}
}

func TestDetectFormatDefaultsToOpenAPI(t *testing.T) {
	if got := detectFormat([]byte("not a recognizable document")); got != "openapi" {
		t.Fatalf("expected default openapi, got %s", got)
	}
}

func TestHTTPFetcherFetchesOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	f := newHTTPFetcher(time.Second)
	data, err := f.Fetch(srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", data)
	}
}

func TestHTTPFetcherFailsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newHTTPFetcher(time.Second)
	if _, err := f.Fetch(srv.URL); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestHTTPFetcherReadsLocalFile(t *testing.T) {
	path := t.TempDir() + "/schema.json"
	if err := os.WriteFile(path, []byte(`{"openapi": "3.0.0"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	f := newHTTPFetcher(time.Second)
	data, err := f.Fetch(path)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != `{"openapi": "3.0.0"}` {
		t.Fatalf("unexpected content: %s", data)
	}
}

func TestFetchSchemaSourceRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newHTTPFetcher(time.Second)
	data, err := fetchSchemaSource(srv.URL, f, 5*time.Second)
	if err != nil {
		t.Fatalf("fetchSchemaSource: %v", err)
	}
	if string(data) != "ok" {
		t.Fatalf("unexpected content: %s", data)
	}
}

func TestFetchSchemaSourceReturnsFatalAfterDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newHTTPFetcher(time.Second)
	_, err := fetchSchemaSource(srv.URL, f, 0)
	if err == nil {
		t.Fatal("expected an error once the wait-for-schema deadline passes")
	}
}
