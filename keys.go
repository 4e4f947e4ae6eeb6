package gf

import (
	"fmt"
	"strings"
)

// keyf builds a stable base key string from a tag and an ordered list of
// fields. Sources and targets use base keys to detect when they can share
// one discretization or one stacked base seismogram (spec.md §4.5).
func keyf(tag string, fields ...any) string {
	parts := make([]string, 0, len(fields)+1)
	parts = append(parts, tag)
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%v", f))
	}
	return strings.Join(parts, "/")
}
