// Package transport implements the Transport layer (spec section 4.H):
// converting a generated Case into a wire request and executing it against
// one of two interchangeable backends (real network, and in-process over an
// http.Handler, which serves both the synchronous and the async roles),
// reporting back a transport-agnostic model.Response.
package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blackcoderx/conform/pkg/genvalue"
	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
)

// Transport is the one interface both backends (NetworkTransport,
// InProcessTransport) satisfy. Call converts c
// into a wire request for op and executes it, returning a Response even on
// HTTP-level failure; only transport-level faults (timeout, connection
// refused, TLS failure) populate Response.TransportError instead of an
// error return, per spec section 7's error taxonomy.
type Transport interface {
	Call(op *schema.APIOperation, c *model.Case, opts CallOptions) (*model.Response, error)
}

// CallOptions configures one Call, threading through the subset of
// global config (spec section 6) the transport layer needs: base URL,
// timeouts, redirect policy, and the extra headers auth.go
// (security-requirement injection) or the engine's user-agent policy
// contribute. TLSInsecureSkip and ProxyURL are connection-level settings a
// NetworkTransport is constructed with once (fasthttp.Client pools
// connections across calls) rather than re-read per Call; they're carried
// here too so the engine's config layer has one options struct to build
// regardless of which transport it ends up driving.
type CallOptions struct {
	BaseURL         string
	RequestTimeout  time.Duration
	MaxRedirects    int
	TLSInsecureSkip bool
	ProxyURL        string
	UserAgent       string
	ExtraHeaders    http.Header
	Seed            int64
}

// RequestSpec is the product of as_transport_kwargs (spec section 4.H):
// the fully-resolved method/url/headers/params/cookies/body a Transport
// sends on the wire, built once and shared by every backend so the
// method/path/header/body assembly logic is written exactly once.
type RequestSpec struct {
	Method  string
	URL     string
	Headers http.Header
	Cookies map[string]string
	Body    []byte
}

// BuildRequestSpec resolves op's path template against c's already-
// serialized parameters, appends the query string, merges headers
// (user headers take precedence over auto-set ones per spec section 4.H),
// and serializes the body via pkg/genvalue.SerializeBody. This is
// as_transport_kwargs(case): every Transport implementation calls this
// first and only differs in how it executes the result.
func BuildRequestSpec(op *schema.APIOperation, c *model.Case, opts CallOptions) (*RequestSpec, error) {
	path := resolvePathTemplate(op.PathTemplate, c.PathParams)

	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/") + path)
	if err != nil {
		return nil, fmt.Errorf("transport: build url: %w", err)
	}
	if len(c.Query) > 0 {
		q := u.Query()
		for name, values := range c.Query {
			for _, v := range values {
				q.Add(name, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	headers := http.Header{}
	headers.Set("User-Agent", defaultString(opts.UserAgent, "conform/1.0"))
	headers.Set("X-Schemathesis-TestCaseId", TestCaseID(opts.Seed, c))
	if c.HasBody && c.MediaType != "" {
		headers.Set("Content-Type", c.MediaType)
	}
	for name, values := range c.Headers {
		headers.Del(name)
		for _, v := range values {
			headers.Add(name, v)
		}
	}
	// Engine-level extras (auth injection, config-driven overrides) layer on
	// top, but a header the Case already set explicitly still wins (spec
	// section 4.H: "User headers take precedence").
	for name, values := range opts.ExtraHeaders {
		if _, already := c.Headers[http.CanonicalHeaderKey(name)]; already {
			continue
		}
		headers.Del(name)
		for _, v := range values {
			headers.Add(name, v)
		}
	}

	var body []byte
	if c.HasBody {
		body, err = genvalue.SerializeBody(c.Body, c.MediaType)
		if err != nil {
			return nil, fmt.Errorf("transport: serialize body: %w", err)
		}
	}

	return &RequestSpec{
		Method:  op.Method,
		URL:     u.String(),
		Headers: headers,
		Cookies: c.Cookies,
		Body:    body,
	}, nil
}

func resolvePathTemplate(template string, params map[string]string) string {
	var b strings.Builder
	i := 0
	for i < len(template) {
		if template[i] == '{' {
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				b.WriteString(template[i:])
				break
			}
			name := template[i+1 : i+end]
			if v, ok := params[name]; ok {
				b.WriteString(escapePathSegment(v))
			}
			i += end + 1
			continue
		}
		b.WriteByte(template[i])
		i++
	}
	return b.String()
}

// escapePathSegment percent-encodes a substituted path value, except for a
// leading label (".") or matrix (";name=...") style prefix that
// pkg/genvalue.SerializePathParam already attached, which must survive
// verbatim in the URL.
func escapePathSegment(v string) string {
	if strings.HasPrefix(v, ".") || strings.HasPrefix(v, ";") {
		return v
	}
	return url.PathEscape(v)
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// TestCaseID derives the opaque, compact per-request correlation id spec
// section 4.H and section 5 require on every outbound request: "derivable
// only from the seed + case fingerprint; not a cryptographic token." A
// truncated SHA-256 satisfies "opaque, compact" without claiming any
// cryptographic guarantee the spec doesn't ask for.
func TestCaseID(seed int64, c *model.Case) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s:%s", seed, c.Operation, c.Fingerprint())))
	return hex.EncodeToString(sum[:])[:16]
}
