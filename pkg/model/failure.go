package model

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mitchellh/hashstructure/v2"
)

// Kind enumerates the built-in check failure kinds from spec section 4.I.
type Kind string

const (
	KindServerError             Kind = "ServerError"
	KindUndocumentedStatus      Kind = "UndocumentedStatus"
	KindUndocumentedContentType Kind = "UndocumentedContentType"
	KindMalformedMediaType      Kind = "MalformedMediaType"
	KindMissingHeader           Kind = "MissingHeader"
	KindHeaderSchemaViolation   Kind = "HeaderSchemaViolation"
	KindSchemaViolation         Kind = "SchemaViolation"
	KindNegativeAccepted        Kind = "NegativeAccepted"
	KindPositiveRejected        Kind = "PositiveRejected"
	KindMissingHeaderNotRejected Kind = "MissingHeaderNotRejected"
	KindMethodNotRejected       Kind = "MethodNotRejected"
	KindUseAfterFree            Kind = "UseAfterFree"
	KindResourceMissing         Kind = "ResourceMissing"
	KindAuthIgnored             Kind = "AuthIgnored"
	KindTooSlow                 Kind = "TooSlow"
	KindTransportError          Kind = "TransportError"
	KindInvalidSchema           Kind = "InvalidSchema"
)

// CheckFailure is a structured validation failure produced by a Check,
// attached to the Case and Response that triggered it (spec section 3).
type CheckFailure struct {
	Kind    Kind
	Title   string
	Message string
	// Context carries expected-vs-actual details, schema pointers, etc.
	Context map[string]any

	Case     *Case
	Response *Response
}

var volatileContextKeys = regexp.MustCompile(`(?i)^(timestamp|request_id|trace_id|date|x-request-id)$`)

// DedupKey canonicalizes a failure per spec section 7 ("Deduplication
// policy"): drop volatile fields, stringify schema pointers, normalize
// whitespace, then hash. Two failures with the same key are the same
// failure for counting purposes.
func (f *CheckFailure) DedupKey(operation string) string {
	keys := make([]string, 0, len(f.Context))
	for k := range f.Context {
		if volatileContextKeys.MatchString(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	canon := struct {
		Operation string
		Kind      Kind
		Context   []string
	}{
		Operation: operation,
		Kind:      f.Kind,
		Context:   make([]string, len(keys)),
	}
	for i, k := range keys {
		canon.Context[i] = fmt.Sprintf("%s=%s", k, normalizeWhitespace(fmt.Sprintf("%v", f.Context[k])))
	}

	h, err := hashstructure.Hash(canon, hashstructure.FormatV2, nil)
	if err != nil {
		return operation + "|" + string(f.Kind)
	}
	return fmt.Sprintf("%s|%s|%016x", operation, f.Kind, h)
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
