// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

func LoadCatalog(path string) (*ActionCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cat ActionCatalog
	err = json.Unmarshal(data, &cat)
	return &cat, err
}

// SaveCatalog writes cat as indented JSON, creating the directory if needed.
func SaveCatalog(cat *ActionCatalog, path string) error {
	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	return nil
}

// Validate checks names are present and unique and that every action carries
// an object extraction schema.
func Validate(cat *ActionCatalog) error {
	if len(cat.Actions) == 0 {
		return fmt.Errorf("catalog contains no actions")
	}

	names := make(map[string]bool, len(cat.Actions))
	for _, a := range cat.Actions {
		if a.Name == "" {
			return fmt.Errorf("action missing required field: name")
		}
		if names[a.Name] {
			return fmt.Errorf("duplicate action name: %s", a.Name)
		}
		names[a.Name] = true

		if a.Description == "" {
			return fmt.Errorf("action %s missing required field: description", a.Name)
		}
		if a.ExtractionSchema["type"] != "object" {
			return fmt.Errorf("action %s extraction schema must be an object", a.Name)
		}
	}
	return nil
}

// SchemaFields lists the leaf paths of an object schema. Array items are
// addressed as "<name>.<i>.<field>".
func SchemaFields(schema map[string]interface{}) []string {
	var out []string
	collectFields("", schema, &out)
	sort.Strings(out)
	return out
}

func collectFields(prefix string, schema map[string]interface{}, out *[]string) {
	props, _ := schema["properties"].(map[string]interface{})
	for name, raw := range props {
		sub, _ := raw.(map[string]interface{})
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		switch sub["type"] {
		case "object":
			collectFields(path, sub, out)
		case "array":
			items, _ := sub["items"].(map[string]interface{})
			if items["type"] == "object" {
				collectFields(path+".<i>", items, out)
			} else {
				*out = append(*out, path)
			}
		default:
			*out = append(*out, path)
		}
	}
}
