package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ResolveLinks wires every operation's OutgoingLinks/IncomingLinks: first
// from explicit OpenAPI Links objects (already attached to each ResponseDef
// by LoadOpenAPI), then supplementing with the two inference strategies spec
// section 4.B names — Location-header links and dependency-analysis links —
// for operations that declare none explicitly.
//
// Grounded on pkg/core/tools/spec_ingester/graph_builder.go's two-pass
// "collect declared edges, then infer missing ones from response shape"
// structure, generalized from the teacher's fixed producer/consumer tool
// graph to OpenAPI Link objects.
func ResolveLinks(s *APISchema) {
	for _, op := range s.Operations() {
		for status, resp := range op.Responses {
			for _, link := range resp.Links {
				link.SourceStatus = status
				attachOutgoing(s, op, link)
			}
		}
	}

	for _, op := range s.Operations() {
		if len(op.OutgoingLinks) > 0 {
			continue // explicit links take precedence over inference
		}
		inferLocationHeaderLinks(s, op)
		inferDependencyLinks(s, op)
	}

	sortLinks(s)
}

func attachOutgoing(s *APISchema, op *APIOperation, link LinkDef) {
	op.OutgoingLinks = append(op.OutgoingLinks, link)
	if target, ok := resolveTarget(s, link.TargetOperationID); ok {
		target.IncomingLinks = append(target.IncomingLinks, link)
	}
}

func resolveTarget(s *APISchema, targetID string) (*APIOperation, bool) {
	if targetID == "" {
		return nil, false
	}
	if op, ok := s.OperationByID(targetID); ok {
		return op, true
	}
	return s.Operation(targetID)
}

// pathParamPattern finds "{name}" placeholders in a path template.
var pathParamPattern = regexp.MustCompile(`\{([^}]+)\}`)

// inferLocationHeaderLinks: a 201/202 response declaring a "Location"
// header implies a link to whatever GET operation's path template the
// header's runtime expression would satisfy — spec section 4.B's
// "Location-header" inference rule.
func inferLocationHeaderLinks(s *APISchema, op *APIOperation) {
	for status, resp := range op.Responses {
		if status != "201" && status != "202" {
			continue
		}
		if _, ok := findHeaderCI(resp.Headers, "Location"); !ok {
			continue
		}
		for _, candidate := range s.Operations() {
			if candidate.Method != "GET" || candidate == op {
				continue
			}
			if !sharesResourceFamily(op.PathTemplate, candidate.PathTemplate) {
				continue
			}
			link := LinkDef{
				Name:              fmt.Sprintf("location-%s", candidate.ID),
				SourceStatus:      status,
				TargetOperationID: candidate.ID,
				Parameters:        map[string]string{},
				Inferred:          true,
			}
			op.OutgoingLinks = append(op.OutgoingLinks, link)
			candidate.IncomingLinks = append(candidate.IncomingLinks, link)
		}
	}
}

// inferDependencyLinks: a successful response's body schema exposing a
// property whose name matches a path parameter of another operation implies
// that operation consumes this one's output — spec section 4.B's
// "dependency-analysis" inference rule.
func inferDependencyLinks(s *APISchema, op *APIOperation) {
	resp, ok := op.ResponseFor(200)
	if !ok {
		resp, ok = op.ResponseFor(201)
	}
	if !ok {
		return
	}
	props := responseBodyProperties(resp)
	if len(props) == 0 {
		return
	}

	for _, candidate := range s.Operations() {
		if candidate == op {
			continue
		}
		for _, match := range pathParamPattern.FindAllStringSubmatch(candidate.PathTemplate, -1) {
			name := match[1]
			if !props[name] {
				continue
			}
			link := LinkDef{
				Name:              fmt.Sprintf("dependency-%s-%s", candidate.ID, name),
				SourceStatus:      resp.StatusPattern,
				TargetOperationID: candidate.ID,
				Parameters:        map[string]string{name: fmt.Sprintf("$response.body#/%s", name)},
				Inferred:          true,
			}
			op.OutgoingLinks = append(op.OutgoingLinks, link)
			candidate.IncomingLinks = append(candidate.IncomingLinks, link)
		}
	}
}

func responseBodyProperties(resp ResponseDef) map[string]bool {
	out := map[string]bool{}
	for _, schema := range resp.MediaTypes {
		props, ok := schema["properties"].(map[string]any)
		if !ok {
			continue
		}
		for name := range props {
			out[name] = true
		}
	}
	return out
}

func findHeaderCI(headers map[string]HeaderDef, name string) (HeaderDef, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return HeaderDef{}, false
}

// sharesResourceFamily reports whether the creating operation's path is a
// prefix of the candidate GET's path once its trailing parameter segment is
// stripped (e.g. "/pets" creator implies "/pets/{id}" getter).
func sharesResourceFamily(creatorPath, getterPath string) bool {
	trimmed := pathParamPattern.ReplaceAllString(getterPath, "")
	trimmed = strings.TrimRight(trimmed, "/")
	return strings.TrimRight(creatorPath, "/") == trimmed
}

func sortLinks(s *APISchema) {
	for _, op := range s.Operations() {
		sort.Slice(op.OutgoingLinks, func(i, j int) bool {
			return op.OutgoingLinks[i].Name < op.OutgoingLinks[j].Name
		})
		sort.Slice(op.IncomingLinks, func(i, j int) bool {
			return op.IncomingLinks[i].Name < op.IncomingLinks[j].Name
		})
	}
}
