package profiles

import (
	"cmp"
	"os"
	"slices"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/spoolsync/pkg/errors"
)

// TagRule assigns a property value to every profile carrying a tag. Higher
// precedence wins; equal precedence is broken by tag name ascending.
type TagRule struct {
	Tag        string `json:"tag" yaml:"tag"`
	Property   string `json:"property" yaml:"property"`
	Value      string `json:"value" yaml:"value"`
	Precedence int    `json:"precedence" yaml:"precedence"`
}

// SortRules orders rules by precedence descending, then tag name ascending,
// then property name ascending. The winner for a property is always the first
// applicable rule after this sort.
func SortRules(rules []TagRule) {
	slices.SortFunc(rules, func(a, b TagRule) int {
		if c := cmp.Compare(b.Precedence, a.Precedence); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Tag, b.Tag); c != 0 {
			return c
		}
		return cmp.Compare(a.Property, b.Property)
	})
}

// rulesFile is the on-disk shape of a tag rules document.
type rulesFile struct {
	Rules []TagRule `yaml:"rules"`
}

// LoadRules reads tag rules from a YAML file.
func LoadRules(path string) ([]TagRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &errors.IOError{Operation: "read", Path: path, Err: err}
	}
	return ParseRules(data, path)
}

// ParseRules parses tag rules from YAML bytes. The path is only used for
// error reporting.
func ParseRules(data []byte, path string) ([]TagRule, error) {
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &errors.ParseError{Format: "yaml", File: path, Message: "invalid tag rules document", Err: err}
	}
	for i, rule := range file.Rules {
		if rule.Tag == "" || rule.Property == "" {
			return nil, &errors.ValidationError{
				Field:   "rules",
				Value:   i,
				Message: "tag rule requires both tag and property",
			}
		}
	}
	return file.Rules, nil
}
