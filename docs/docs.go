// Package docs embeds the OpenAPI description of the products API.
package docs

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPIYAML []byte

// YAML returns the OpenAPI document as written.
func YAML() []byte {
	return openAPIYAML
}

// JSON returns the OpenAPI document converted to JSON.
func JSON() ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(openAPIYAML, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse openapi.yaml: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode openapi document: %w", err)
	}
	return out, nil
}
