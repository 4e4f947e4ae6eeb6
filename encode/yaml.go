package encode

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// MarshalYAML renders a Response as YAML, the alternate RPC bridging
// format spec.md §6 names alongside JSON.
func MarshalYAML(r *Response) ([]byte, error) {
	return yaml.Marshal(r)
}

// UnmarshalYAML parses a Response from YAML.
func UnmarshalYAML(data []byte) (*Response, error) {
	var r Response
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("gf/encode: decoding response YAML: %w", err)
	}
	return &r, nil
}
