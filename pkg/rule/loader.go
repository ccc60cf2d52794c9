package rule

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/praetorian-inc/vuescan/pkg/types"
	"gopkg.in/yaml.v3"
)

// Loader handles loading rules from YAML or JSON files.
type Loader struct {
	fs fs.FS // embedded filesystem for built-in rules
}

// NewLoader creates a loader with built-in rules from embedded filesystem.
func NewLoader() *Loader {
	return &Loader{
		fs: builtinRulesFS,
	}
}

// NewLoaderWithFS creates a loader with a custom filesystem.
func NewLoaderWithFS(fsys fs.FS) *Loader {
	return &Loader{
		fs: fsys,
	}
}

// LoadRules parses every rule in data.
// data may be a YAML/JSON document with a top-level "rules" array or a bare array.
// Every rule is schema-validated; the first invalid rule fails the whole load.
func (l *Loader) LoadRules(data []byte) ([]*types.Rule, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("no rules found")
	}

	var raw []yamlRule
	switch root.Content[0].Kind {
	case yaml.SequenceNode:
		if err := root.Content[0].Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode rules: %w", err)
		}
	case yaml.MappingNode:
		var file yamlRulesFile
		if err := root.Content[0].Decode(&file); err != nil {
			return nil, fmt.Errorf("failed to decode rules: %w", err)
		}
		raw = file.Rules
	default:
		return nil, fmt.Errorf("rules document must be a list or a mapping with a rules key")
	}

	if len(raw) == 0 {
		return nil, fmt.Errorf("no rules found")
	}

	rules := make([]*types.Rule, 0, len(raw))
	for i, yr := range raw {
		r, err := convertYAMLRule(yr)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, yr.ID, err)
		}
		if err := ValidateRule(r); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// LoadRule loads a single rule from YAML bytes.
// Returns error if the document is invalid or holds more than one rule.
func (l *Loader) LoadRule(data []byte) (*types.Rule, error) {
	rules, err := l.LoadRules(data)
	if err != nil {
		return nil, err
	}
	if len(rules) > 1 {
		return nil, fmt.Errorf("expected single rule, found %d", len(rules))
	}
	return rules[0], nil
}

// LoadRuleFile loads all rules from a YAML or JSON file path.
func (l *Loader) LoadRuleFile(path string) ([]*types.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	rules, err := l.LoadRules(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// LoadPath loads rules from a file, or from every rule file under a directory.
// The combined set is checked for duplicate ids.
func (l *Loader) LoadPath(path string) ([]*types.Rule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return l.LoadRuleFile(path)
	}

	var rules []*types.Rule
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isRuleFile(p) {
			return nil
		}
		loaded, err := l.LoadRuleFile(p)
		if err != nil {
			return err
		}
		rules = append(rules, loaded...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := ValidateRuleSet(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// LoadBuiltinRules loads all built-in rules from the embedded filesystem.
func (l *Loader) LoadBuiltinRules() ([]*types.Rule, error) {
	var rules []*types.Rule

	err := fs.WalkDir(l.fs, "rules", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isRuleFile(path) {
			return nil
		}

		data, err := fs.ReadFile(l.fs, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		loaded, err := l.LoadRules(data)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		rules = append(rules, loaded...)
		return nil
	})

	if err != nil {
		return nil, err
	}
	if err := ValidateRuleSet(rules); err != nil {
		return nil, err
	}

	return rules, nil
}

func isRuleFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml", ".json":
		return true
	}
	return false
}

// convertYAMLRule converts yamlRule to types.Rule and computes StructuralID.
func convertYAMLRule(yr yamlRule) (*types.Rule, error) {
	sev, err := types.ParseSeverity(yr.Severity)
	if err != nil {
		return nil, err
	}
	r := &types.Rule{
		ID:             yr.ID,
		Name:           yr.Name,
		Severity:       sev,
		Description:    yr.Description,
		Recommendation: yr.Recommendation,
		Category:       strings.ToLower(strings.TrimSpace(yr.Category)),
		Patterns:       make([]types.PatternSpec, 0, len(yr.Patterns)),
	}
	for _, yp := range yr.Patterns {
		r.Patterns = append(r.Patterns, types.PatternSpec{
			Key:     yp.Key,
			Pattern: yp.Pattern,
			Flags:   yp.Flags,
		})
	}
	r.StructuralID = r.ComputeStructuralID()
	return r, nil
}
