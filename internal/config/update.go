package config

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// SetValues updates dotted keys (e.g. "indicator.style") in the config file
// at configPath. Comments and the order of untouched keys are preserved.
// Missing sections are created.
func SetValues(configPath string, values map[string]string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if root.Kind == 0 {
		// Empty file.
		root = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return fmt.Errorf("invalid YAML document structure")
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping at document root")
	}

	for _, key := range slices.Sorted(maps.Keys(values)) {
		if err := setPath(doc, strings.Split(key, "."), values[key]); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&root); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()

	if err := atomic.WriteFile(configPath, &buf); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setPath walks or creates mappings along path and sets the final scalar.
func setPath(node *yaml.Node, path []string, value string) error {
	for i, part := range path {
		last := i == len(path)-1
		child := findMapValue(node, part)

		if last {
			if child == nil {
				node.Content = append(node.Content, strNode(part), scalarNode(value))
				return nil
			}
			if child.Kind != yaml.ScalarNode {
				return fmt.Errorf("'%s' is a section, not a value", part)
			}
			child.Value = value
			child.Tag = scalarNode(value).Tag
			child.Style = 0
			return nil
		}

		if child == nil {
			child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			node.Content = append(node.Content, strNode(part), child)
		}
		if child.Kind != yaml.MappingNode {
			return fmt.Errorf("'%s' is a value, not a section", part)
		}
		node = child
	}
	return nil
}

// findMapValue finds a value in a mapping node by key name.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i < len(node.Content)-1; i += 2 {
		if k := node.Content[i]; k.Kind == yaml.ScalarNode && k.Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// scalarNode lets YAML resolve the tag so numbers and booleans stay typed.
func scalarNode(s string) *yaml.Node {
	var n yaml.Node
	if err := yaml.Unmarshal([]byte(s), &n); err == nil && len(n.Content) == 1 && n.Content[0].Kind == yaml.ScalarNode {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: n.Content[0].Tag, Value: s}
	}
	return strNode(s)
}
