// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goyaml "gopkg.in/yaml.v3"
	"sigs.k8s.io/yaml"

	"github.com/schemaplan/core/pkg/schema"
)

// readSchemaState loads a schema state file. The file's top-level keys
// are category names (table, view, function, index) mapping object
// name -> definition, the same shape SchemaState.CanonicalSerialize
// produces. Decoding goes through gopkg.in/yaml.v3 directly (rather than
// the JSON-backed sigs.k8s.io/yaml) so multi-line SQL blocks and YAML
// anchors in a hand-written schema file decode the way an author wrote
// them; .json files parse the same way, since JSON is valid YAML.
func readSchemaState(path string) (*schema.State, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file %q: %w", path, err)
	}

	var m map[string]map[string]schema.Definition
	if err := goyaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse schema file %q: %w", path, err)
	}

	return schema.FromCategoryMap(m)
}

// encodeForPath marshals v as JSON or YAML depending on path's
// extension, defaulting to YAML.
func encodeForPath(path string, v any) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return marshalJSON(v)
	}
	return yaml.Marshal(v)
}

func marshalJSON(v any) ([]byte, error) {
	return yamlThroughJSON(v)
}

// yamlThroughJSON uses sigs.k8s.io/yaml's JSONToYAML-compatible marshaler
// to also emit plain JSON, keeping one encoder implementation for both
// output formats.
func yamlThroughJSON(v any) ([]byte, error) {
	y, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}
	return yaml.YAMLToJSON(y)
}

func writeOutput(path string, v any) error {
	data, err := encodeForPath(path, v)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
