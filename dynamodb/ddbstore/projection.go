package ddbstore

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// projection selects top-level attributes. Nested paths (a.b, a[0]) are not supported.
type projection []string

// parseProjection resolves "#name" placeholders. A nil expression yields a
// nil projection that keeps every attribute.
func parseProjection(expr *string, names map[string]string) (projection, error) {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		return nil, nil
	}
	var p projection
	for _, part := range strings.Split(*expr, ",") {
		name := strings.TrimSpace(part)
		if strings.HasPrefix(name, "#") {
			resolved, ok := names[name]
			if !ok {
				return nil, validationError(fmt.Sprintf("projection expression: undefined attribute name %s", name))
			}
			name = resolved
		}
		if name == "" || strings.ContainsAny(name, ".[]") {
			return nil, validationError(fmt.Sprintf("projection expression: unsupported path %q", part))
		}
		p = append(p, name)
	}
	return p, nil
}

func (p projection) apply(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if p == nil {
		return item
	}
	out := make(map[string]types.AttributeValue, len(p))
	for _, name := range p {
		if v, ok := item[name]; ok {
			out[name] = v
		}
	}
	return out
}
