package transport

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpproxy"

	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
)

// NetworkTransport sends Cases over real sockets. No teacher file directly
// implements this — every call site in the pack references a shared HTTP
// tool whose body was filtered from the retrieval set — so this is built
// fresh in the fasthttp-client idiom the teacher's go.mod already commits
// to (valyala/fasthttp + bytebufferpool), matching the timeout/redirect/
// TLS/proxy contract spec section 4.H spells out.
type NetworkTransport struct {
	client *fasthttp.Client
}

// NewNetworkTransport builds a pooled fasthttp.Client. insecureSkipVerify
// and proxyURL are per-CallOptions in practice but a single shared client
// amortizes connection pooling across calls within one run.
func NewNetworkTransport(insecureSkipVerify bool, proxyURL string) *NetworkTransport {
	client := &fasthttp.Client{
		TLSConfig: &tls.Config{InsecureSkipVerify: insecureSkipVerify},
	}
	if proxyURL != "" {
		client.Dial = fasthttpproxy.FasthttpHTTPDialer(proxyURL)
	}
	return &NetworkTransport{client: client}
}

func (t *NetworkTransport) Call(op *schema.APIOperation, c *model.Case, opts CallOptions) (*model.Response, error) {
	spec, err := BuildRequestSpec(op, c, opts)
	if err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(spec.URL)
	req.Header.SetMethod(spec.Method)
	for name, values := range spec.Headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	for name, v := range spec.Cookies {
		req.Header.SetCookie(name, v)
	}
	if len(spec.Body) > 0 {
		req.SetBody(spec.Body)
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	start := time.Now()
	err = t.doWithRedirects(req, resp, timeout, maxRedirectsOrDefault(opts.MaxRedirects))
	duration := time.Since(start)

	if err != nil {
		// Timeout, connection refused, TLS failure: spec section 7 bucket 3
		// ("materialize as a CheckFailure of kind TransportError... continue")
		// — the engine decides what to do with this, transport just reports it.
		return &model.Response{Duration: duration, TransportError: err}, nil
	}

	body, err := decompressBody(resp)
	if err != nil {
		return &model.Response{Duration: duration, TransportError: err}, nil
	}

	headers := http.Header{}
	resp.Header.VisitAll(func(key, value []byte) {
		headers.Add(string(key), string(value))
	})

	return &model.Response{
		StatusCode: resp.StatusCode(),
		Headers:    headers,
		Body:       body,
		Duration:   duration,
	}, nil
}

// doWithRedirects follows 3xx Location responses up to maxRedirects,
// matching net/http's default redirect-following behavior (fasthttp's
// client does not follow redirects on its own for non-GET methods, and
// spec section 4.H requires "Redirects followed up to max-redirects"
// regardless of method).
func (t *NetworkTransport) doWithRedirects(req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration, maxRedirects int) error {
	for redirects := 0; ; redirects++ {
		if err := t.client.DoTimeout(req, resp, timeout); err != nil {
			return err
		}
		status := resp.StatusCode()
		if status < 300 || status >= 400 || redirects >= maxRedirects {
			return nil
		}
		location := resp.Header.Peek("Location")
		if len(location) == 0 {
			return nil
		}
		req.SetRequestURI(string(location))
		resp.Reset()
	}
}

func maxRedirectsOrDefault(n int) int {
	if n <= 0 {
		return 10
	}
	return n
}

// decompressBody transparently undoes gzip/br/zstd Content-Encoding (any
// other encoding, deflate included, passes through undecoded)
// before checks ever see the body (spec section 4.H's implicit "the
// checks operate on the decoded body"), grounded on go.mod's declared
// klauspost/compress + andybalholm/brotli dependencies.
func decompressBody(resp *fasthttp.Response) ([]byte, error) {
	encoding := string(resp.Header.Peek("Content-Encoding"))
	raw := resp.Body()

	switch encoding {
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("transport: gzip decode: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case "br":
		return io.ReadAll(brotli.NewReader(bytes.NewReader(raw)))
	case "zstd":
		r, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("transport: zstd decode: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	default:
		buf := bytebufferpool.Get()
		defer bytebufferpool.Put(buf)
		buf.Write(raw)
		out := make([]byte, buf.Len())
		copy(out, buf.Bytes())
		return out, nil
	}
}
