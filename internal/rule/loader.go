//file: internal/rule/loader.go
package rule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"mqtt-span-bridge/internal/logger"
)

// Loader reads bridge rules from the filesystem.
type Loader struct {
	logger *logger.Logger
}

// NewLoader creates a rules loader.
func NewLoader(log *logger.Logger) *Loader {
	return &Loader{
		logger: log,
	}
}

// ruleDocument accepts either a bare rule list or a document with a
// top-level "rules" key, so the bridge config file itself can be pointed
// at directly.
type ruleDocument struct {
	Rules []Rule `json:"rules" yaml:"rules"`
}

// Load reads, parses and validates a rules file, returning an unversioned
// RuleSet. JSON and YAML are selected by extension; any other extension
// tries JSON first, then YAML. An invalid file never yields a partial
// RuleSet.
func (l *Loader) Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	rules, err := decodeRules(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	rs, err := NewRuleSet(0, rules)
	if err != nil {
		return nil, fmt.Errorf("invalid rules in %s: %w", path, err)
	}

	l.logger.Info("rules loaded",
		"path", path,
		"count", len(rs.Rules))

	return rs, nil
}

func decodeRules(data []byte, ext string) ([]Rule, error) {
	switch ext {
	case ".json":
		return decodeJSON(data)
	case ".yaml", ".yml":
		return decodeYAML(data)
	default:
		rules, err := decodeJSON(data)
		if err == nil {
			return rules, nil
		}
		return decodeYAML(data)
	}
}

func decodeJSON(data []byte) ([]Rule, error) {
	var list []Rule
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var doc ruleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Rules, nil
}

func decodeYAML(data []byte) ([]Rule, error) {
	var list []Rule
	if err := yaml.Unmarshal(data, &list); err == nil && list != nil {
		return list, nil
	}
	var doc ruleDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Rules, nil
}
