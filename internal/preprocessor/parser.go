// Package preprocessor loads rule definitions from JSON or YAML files,
// validates them and turns them into runtime rules.
package preprocessor

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"rgehrsitz/nest/internal/rules"
)

// Format is the encoding of a rule file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// RuleDef is the file representation of a rule. Props in files are always
// literal values.
type RuleDef struct {
	Name     string           `json:"name" yaml:"name"`
	Screen   rules.Screen     `json:"screen" yaml:"screen"`
	Slot     rules.Slot       `json:"slot" yaml:"slot"`
	Priority int              `json:"priority" yaml:"priority"`
	When     *rules.Condition `json:"when" yaml:"when"`
	Content  ContentDef       `json:"content" yaml:"content"`
}

// ContentDef is the file representation of rule content.
type ContentDef struct {
	Template string         `json:"template" yaml:"template"`
	Props    map[string]any `json:"props,omitempty" yaml:"props,omitempty"`
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported rule file extension %q", filepath.Ext(path))
	}
}

// ParseRules decodes a list of rule definitions.
func ParseRules(data []byte, format Format) ([]RuleDef, error) {
	log.Debug().Str("format", string(format)).Msg("parsing rules")

	var defs []RuleDef
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &defs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rules JSON: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &defs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rules YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported rule format %q", format)
	}
	return defs, nil
}

// ParseRule decodes a single JSON rule definition and validates it.
func ParseRule(ruleJSON []byte) (*RuleDef, error) {
	var def RuleDef
	if err := json.Unmarshal(ruleJSON, &def); err != nil {
		return nil, fmt.Errorf("failed to parse rule JSON: %w", err)
	}
	if err := validateRule(def); err != nil {
		return nil, err
	}
	return &def, nil
}

// ValidateRules checks every definition and rejects duplicate names.
func ValidateRules(defs []RuleDef) error {
	log.Debug().Int("count", len(defs)).Msg("validating rules")

	seen := make(map[string]bool, len(defs))
	for _, def := range defs {
		if err := validateRule(def); err != nil {
			return err
		}
		if seen[def.Name] {
			return fmt.Errorf("duplicate rule name '%s'", def.Name)
		}
		seen[def.Name] = true
	}
	return nil
}

func validateRule(def RuleDef) error {
	if def.Name == "" {
		return fmt.Errorf("rule is missing 'name'")
	}
	if def.Screen == "" || def.Slot == "" {
		return fmt.Errorf("rule '%s' must target a screen and slot", def.Name)
	}
	if def.When == nil {
		return fmt.Errorf("rule '%s' must have a condition", def.Name)
	}
	if def.Content.Template == "" {
		return fmt.Errorf("rule '%s' is missing 'content.template'", def.Name)
	}
	return validateCondition(*def.When, def.Name, "when")
}

func validateCondition(cond rules.Condition, ruleName, path string) error {
	switch cond.Kind {
	case rules.KindCompare:
		return validateComparison(cond, ruleName, path)
	case rules.KindScope:
		switch cond.Scope {
		case rules.ScopeTTC, rules.ScopePregnancy, rules.ScopePostpartum:
			return nil
		}
		return fmt.Errorf("invalid scope '%s' in condition %s of rule '%s'", cond.Scope, path, ruleName)
	case rules.KindDone:
		if cond.Key == "" {
			return fmt.Errorf("missing 'key' in condition %s of rule '%s'", path, ruleName)
		}
		return nil
	case rules.KindStale:
		if cond.Key == "" {
			return fmt.Errorf("missing 'key' in condition %s of rule '%s'", path, ruleName)
		}
		if cond.Minutes <= 0 {
			return fmt.Errorf("'minutes' must be positive in condition %s of rule '%s'", path, ruleName)
		}
		return nil
	case rules.KindAll, rules.KindAny:
		children := cond.All
		if cond.Kind == rules.KindAny {
			children = cond.Any
		}
		if len(children) == 0 {
			return fmt.Errorf("'%s' condition %s of rule '%s' has no children", cond.Kind, path, ruleName)
		}
		for i, child := range children {
			if err := validateCondition(child, ruleName, fmt.Sprintf("%s.%s[%d]", path, cond.Kind, i)); err != nil {
				return err
			}
		}
		return nil
	case rules.KindNot:
		if cond.Not == nil {
			return fmt.Errorf("'not' condition %s of rule '%s' has no operand", path, ruleName)
		}
		return validateCondition(*cond.Not, ruleName, path+".not")
	default:
		return fmt.Errorf("unknown condition kind '%s' in condition %s of rule '%s'", cond.Kind, path, ruleName)
	}
}

func validateComparison(cond rules.Condition, ruleName, path string) error {
	switch cond.Field {
	case rules.FieldWeek, rules.FieldPPDay, rules.FieldPPWeek:
	case rules.FieldProgress:
		if cond.Key == "" {
			return fmt.Errorf("missing 'key' for progress in condition %s of rule '%s'", path, ruleName)
		}
	case "":
		return fmt.Errorf("missing 'field' in condition %s of rule '%s'", path, ruleName)
	default:
		return fmt.Errorf("unknown field '%s' in condition %s of rule '%s'", cond.Field, path, ruleName)
	}

	if !rules.IsValidOperator(cond.Operator) {
		return fmt.Errorf("invalid operator '%s' in condition %s of rule '%s'", cond.Operator, path, ruleName)
	}
	if cond.Operator == rules.OperatorBetween && cond.Upper < cond.Value {
		return fmt.Errorf("invalid value in condition %s of rule '%s': upper %v is below %v", path, ruleName, cond.Upper, cond.Value)
	}
	return nil
}
