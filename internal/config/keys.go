package config

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrUnknownKey = errors.New("unknown configuration key")

// Get returns the YAML rendering of a dotted key such as "retrieval.top_k".
func (c *AppConfig) Get(key string) (string, error) {
	tree, err := c.tree()
	if err != nil {
		return "", err
	}
	parent, leaf, err := lookup(tree, key)
	if err != nil {
		return "", err
	}
	out, err := yaml.Marshal(parent[leaf])
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Set assigns a dotted key from its YAML scalar or flow form and re-validates
// the result. The receiver is unchanged on error.
func (c *AppConfig) Set(key, value string) error {
	tree, err := c.tree()
	if err != nil {
		return err
	}
	parent, leaf, err := lookup(tree, key)
	if err != nil {
		return err
	}

	var parsed any
	if err := yaml.Unmarshal([]byte(value), &parsed); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	if parsed == nil {
		parsed = ""
	}
	parent[leaf] = parsed

	data, err := yaml.Marshal(tree)
	if err != nil {
		return err
	}
	var next AppConfig
	if err := yaml.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	applyDefaults(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func (c *AppConfig) tree() (map[string]any, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func lookup(tree map[string]any, key string) (map[string]any, string, error) {
	parts := strings.Split(key, ".")
	node := tree
	for i, part := range parts {
		v, ok := node[part]
		if !ok {
			return nil, "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
		}
		if i == len(parts)-1 {
			if _, isMap := v.(map[string]any); isMap {
				return nil, "", fmt.Errorf("%w: %s is a section", ErrUnknownKey, key)
			}
			return node, part, nil
		}
		next, ok := v.(map[string]any)
		if !ok {
			return nil, "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
		}
		node = next
	}
	return nil, "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
}
