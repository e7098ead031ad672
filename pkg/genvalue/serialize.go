package genvalue

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"mime/multipart"
	"net/url"
	"sort"
	"strings"

	"github.com/blackcoderx/conform/pkg/jsonvalue"
	"github.com/blackcoderx/conform/pkg/schema"
	"gopkg.in/yaml.v3"
)

// SerializeBody renders a generated value to wire bytes for the given media
// type (spec section 4.C "Serialization"). Grounded on shared/extraction.go
// run in reverse (that file pulls typed values *out* of a response by
// content type; this walks the same content-type switch to *write* one).
// No ecosystem library in the pack serializes OpenAPI request bodies
// end-to-end, so the per-media-type branches are stdlib
// (`encoding/json`, `encoding/xml`, `net/url`, `mime/multipart`) aside from
// YAML, where `gopkg.in/yaml.v3` (already a direct teacher dependency) is
// reused instead of hand-rolling a YAML encoder.
func SerializeBody(v jsonvalue.Value, mediaType string) ([]byte, error) {
	base, _, _ := strings.Cut(mediaType, ";")
	base = strings.TrimSpace(base)

	switch {
	case base == "application/json" || strings.HasSuffix(base, "+json"):
		return json.Marshal(jsonvalue.ToNative(v))
	case base == "application/yaml" || base == "application/x-yaml" || strings.HasSuffix(base, "+yaml"):
		return yaml.Marshal(jsonvalue.ToNative(v))
	case base == "application/xml" || strings.HasSuffix(base, "+xml"):
		return serializeXML(v)
	case base == "application/x-www-form-urlencoded":
		return []byte(serializeFormURLEncoded(v)), nil
	case base == "multipart/form-data":
		return serializeMultipart(v)
	case base == "text/plain":
		if v.Kind() == jsonvalue.KindString {
			return []byte(v.AsString()), nil
		}
		return []byte(fmt.Sprintf("%v", jsonvalue.ToNative(v))), nil
	case v.Kind() == jsonvalue.KindBinary:
		return v.AsBinary(), nil
	default:
		// Wildcard/custom media types without a registered serializer fall
		// back to JSON, which every generated jsonvalue.Value can express.
		return json.Marshal(jsonvalue.ToNative(v))
	}
}

type xmlNode struct {
	XMLName xml.Name
	Attr    []xml.Attr   `xml:",any,attr"`
	Content string       `xml:",chardata"`
	Nodes   []xmlNode    `xml:",any"`
}

func serializeXML(v jsonvalue.Value) ([]byte, error) {
	node := valueToXMLNode("root", v)
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("genvalue: serialize xml: %w", err)
	}
	return buf.Bytes(), nil
}

func valueToXMLNode(name string, v jsonvalue.Value) xmlNode {
	node := xmlNode{XMLName: xml.Name{Local: name}}
	switch v.Kind() {
	case jsonvalue.KindObject:
		obj := v.AsObject()
		for _, k := range obj.Keys() {
			child, _ := obj.Get(k)
			node.Nodes = append(node.Nodes, valueToXMLNode(k, child))
		}
	case jsonvalue.KindArray:
		for _, e := range v.AsArray() {
			node.Nodes = append(node.Nodes, valueToXMLNode("item", e))
		}
	default:
		node.Content = fmt.Sprintf("%v", jsonvalue.ToNative(v))
	}
	return node
}

func serializeFormURLEncoded(v jsonvalue.Value) string {
	values := url.Values{}
	if v.Kind() == jsonvalue.KindObject {
		obj := v.AsObject()
		for _, k := range obj.Keys() {
			child, _ := obj.Get(k)
			values.Set(k, fmt.Sprintf("%v", jsonvalue.ToNative(child)))
		}
	}
	return values.Encode()
}

func serializeMultipart(v jsonvalue.Value) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if v.Kind() == jsonvalue.KindObject {
		obj := v.AsObject()
		for _, k := range obj.Keys() {
			child, _ := obj.Get(k)
			field, err := w.CreateFormField(k)
			if err != nil {
				return nil, err
			}
			if child.Kind() == jsonvalue.KindBinary {
				field.Write(child.AsBinary())
			} else {
				field.Write([]byte(fmt.Sprintf("%v", jsonvalue.ToNative(child))))
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// QueryPair is one "key=value" member of a serialized query string;
// exploded array/object parameters expand to several pairs sharing (or, for
// deepObject, deriving from) the parameter name.
type QueryPair struct {
	Key   string
	Value string
}

// SerializeQueryParam renders a parameter value per RFC 6570 / the OpenAPI
// style table (form, spaceDelimited, pipeDelimited, deepObject), the part
// of spec section 4.C ("Path/query/header styles follow RFC 6570 ...")
// with no ecosystem library in the pack implementing it, hence stdlib.
func SerializeQueryParam(name string, v jsonvalue.Value, style schema.Style, explode bool) []QueryPair {
	switch v.Kind() {
	case jsonvalue.KindArray:
		items := v.AsArray()
		if explode && style == schema.StyleForm {
			pairs := make([]QueryPair, len(items))
			for i, e := range items {
				pairs[i] = QueryPair{Key: name, Value: scalarString(e)}
			}
			return pairs
		}
		sep := ","
		switch style {
		case schema.StyleSpaceDelimited:
			sep = " "
		case schema.StylePipeDelimited:
			sep = "|"
		}
		parts := make([]string, len(items))
		for i, e := range items {
			parts[i] = scalarString(e)
		}
		return []QueryPair{{Key: name, Value: strings.Join(parts, sep)}}
	case jsonvalue.KindObject:
		obj := v.AsObject()
		if style == schema.StyleDeepObject {
			pairs := make([]QueryPair, 0, obj.Len())
			for _, k := range obj.Keys() {
				child, _ := obj.Get(k)
				pairs = append(pairs, QueryPair{Key: fmt.Sprintf("%s[%s]", name, k), Value: scalarString(child)})
			}
			return pairs
		}
		if explode {
			pairs := make([]QueryPair, 0, obj.Len())
			for _, k := range obj.Keys() {
				child, _ := obj.Get(k)
				pairs = append(pairs, QueryPair{Key: k, Value: scalarString(child)})
			}
			return pairs
		}
		parts := make([]string, 0, obj.Len()*2)
		for _, k := range obj.Keys() {
			child, _ := obj.Get(k)
			parts = append(parts, k, scalarString(child))
		}
		return []QueryPair{{Key: name, Value: strings.Join(parts, ",")}}
	default:
		return []QueryPair{{Key: name, Value: scalarString(v)}}
	}
}

// SerializePathParam renders a path-parameter value per its style (simple,
// label, matrix).
func SerializePathParam(name string, v jsonvalue.Value, style schema.Style, explode bool) string {
	rendered := joinSimple(v, explode, ",")
	switch style {
	case schema.StyleLabel:
		return "." + rendered
	case schema.StyleMatrix:
		if explode && v.Kind() == jsonvalue.KindObject {
			obj := v.AsObject()
			parts := make([]string, 0, obj.Len())
			for _, k := range obj.Keys() {
				child, _ := obj.Get(k)
				parts = append(parts, fmt.Sprintf(";%s=%s", k, scalarString(child)))
			}
			return strings.Join(parts, "")
		}
		return ";" + name + "=" + rendered
	default: // simple
		return rendered
	}
}

// SerializeHeaderParam renders a header-parameter value — headers always
// use simple style per the OpenAPI style table.
func SerializeHeaderParam(v jsonvalue.Value, explode bool) string {
	return joinSimple(v, explode, ",")
}

func joinSimple(v jsonvalue.Value, explode bool, sep string) string {
	switch v.Kind() {
	case jsonvalue.KindArray:
		items := v.AsArray()
		parts := make([]string, len(items))
		for i, e := range items {
			parts[i] = scalarString(e)
		}
		return strings.Join(parts, sep)
	case jsonvalue.KindObject:
		obj := v.AsObject()
		keys := append([]string{}, obj.Keys()...)
		sort.Strings(keys)
		parts := make([]string, 0, len(keys)*2)
		for _, k := range keys {
			child, _ := obj.Get(k)
			if explode {
				parts = append(parts, k+"="+scalarString(child))
			} else {
				parts = append(parts, k, scalarString(child))
			}
		}
		return strings.Join(parts, sep)
	default:
		return scalarString(v)
	}
}

func scalarString(v jsonvalue.Value) string {
	if v.Kind() == jsonvalue.KindString {
		return v.AsString()
	}
	return fmt.Sprintf("%v", jsonvalue.ToNative(v))
}
