package feature

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/restorelab/flagkit/pkg/environment"
)

// advancedYAML is the on-disk form of Advanced.
type advancedYAML struct {
	Enabled           bool     `yaml:"enabled"`
	RolloutPercentage *int     `yaml:"rollout_percentage"`
	UserWhitelist     []string `yaml:"user_whitelist"`
	UserBlacklist     []string `yaml:"user_blacklist"`
	Environments      []string `yaml:"environments"`
	Description       string   `yaml:"description"`
	ReleaseDate       string   `yaml:"release_date"`
}

var advancedKeys = []string{
	"enabled", "rollout_percentage", "user_whitelist", "user_blacklist",
	"environments", "description", "release_date",
}

// ParseRegistry builds a registry from a YAML document whose top level maps
// feature names to definitions:
//
//	deep-research: true             # Bool
//	chat-model: "gpt-4o-2024-08-06" # Version
//	restoration-timeline:           # Advanced
//	  enabled: true
//	  rollout_percentage: 25
//	  environments: [dev, staging]
//
// Declaration order is preserved.
func ParseRegistry(data []byte, opts ...RegistryOption) (*Registry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(ErrInvalidRegistry, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return NewRegistry(nil, opts...)
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.Join(ErrInvalidRegistry,
			fmt.Errorf("line %d: top level must be a mapping of feature names", root.Line))
	}

	flags := make([]Flag, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		def, err := decodeDefinition(key.Value, value)
		if err != nil {
			return nil, errors.Join(ErrInvalidRegistry, err)
		}
		flags = append(flags, Flag{Name: key.Value, Definition: def})
	}

	return NewRegistry(flags, opts...)
}

// LoadRegistryFile reads and parses a YAML registry file.
func LoadRegistryFile(path string, opts ...RegistryOption) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidRegistry, err)
	}
	return ParseRegistry(data, opts...)
}

func decodeDefinition(name string, node *yaml.Node) (Definition, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return nil, fmt.Errorf("feature %q: %w", name, err)
			}
			return Bool(b), nil
		case "!!str":
			return Version(node.Value), nil
		}
		return nil, fmt.Errorf("line %d: feature %q must be a boolean, a version string or a mapping", node.Line, name)

	case yaml.MappingNode:
		for i := 0; i < len(node.Content); i += 2 {
			if k := node.Content[i].Value; !slices.Contains(advancedKeys, k) {
				return nil, fmt.Errorf("line %d: feature %q: unknown field %q", node.Content[i].Line, name, k)
			}
		}

		var raw advancedYAML
		if err := node.Decode(&raw); err != nil {
			return nil, fmt.Errorf("feature %q: %w", name, err)
		}

		adv := Advanced{
			Enabled:           raw.Enabled,
			RolloutPercentage: raw.RolloutPercentage,
			UserWhitelist:     raw.UserWhitelist,
			UserBlacklist:     raw.UserBlacklist,
			Description:       raw.Description,
			ReleaseDate:       raw.ReleaseDate,
		}
		for _, s := range raw.Environments {
			env, ok := environment.Parse(s)
			if !ok {
				return nil, fmt.Errorf("line %d: feature %q: unknown environment %q", node.Line, name, s)
			}
			adv.Environments = append(adv.Environments, env)
		}
		return adv, nil
	}

	return nil, fmt.Errorf("line %d: feature %q must be a boolean, a version string or a mapping", node.Line, name)
}
