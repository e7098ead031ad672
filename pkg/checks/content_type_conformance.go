package checks

import (
	"fmt"
	"mime"
	"strings"

	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
)

// ContentTypeConformance fires when the response's Content-Type is either
// malformed or not one of the media types documented for the matched
// response status (spec section 4.I).
func ContentTypeConformance(ctx *Context, op *schema.APIOperation, c *model.Case, resp *model.Response) *model.CheckFailure {
	if resp.TransportError != nil {
		return nil
	}
	def, ok := op.ResponseFor(resp.StatusCode)
	if !ok || len(def.MediaTypes) == 0 {
		return nil // status itself is undocumented; status_code_conformance owns that failure
	}

	raw := resp.Headers.Get("Content-Type")
	if raw == "" {
		return nil // absence of a Content-Type is not this check's concern
	}

	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return &model.CheckFailure{
			Kind:     model.KindMalformedMediaType,
			Title:    "malformed content type",
			Message:  fmt.Sprintf("%s response Content-Type %q could not be parsed: %v", op.Canonical, raw, err),
			Context:  map[string]any{"content_type": raw},
			Case:     c,
			Response: resp,
		}
	}

	if _, ok := def.MediaTypes[mediaType]; ok {
		return nil
	}
	if matchesWildcardMediaType(def.MediaTypes, mediaType) {
		return nil
	}

	documented := make([]string, 0, len(def.MediaTypes))
	for mt := range def.MediaTypes {
		documented = append(documented, mt)
	}

	return &model.CheckFailure{
		Kind:    model.KindUndocumentedContentType,
		Title:   "undocumented content type",
		Message: fmt.Sprintf("%s response Content-Type %q is not documented for status %d", op.Canonical, mediaType, resp.StatusCode),
		Context: map[string]any{
			"content_type":      mediaType,
			"documented_types":  documented,
			"status_code":       resp.StatusCode,
		},
		Case:     c,
		Response: resp,
	}
}

// matchesWildcardMediaType checks for a "type/*" documented entry that
// covers the observed subtype, e.g. "image/*" accepting "image/png".
func matchesWildcardMediaType(documented map[string]map[string]any, mediaType string) bool {
	typ, _, found := strings.Cut(mediaType, "/")
	if !found {
		return false
	}
	_, ok := documented[typ+"/*"]
	return ok
}
