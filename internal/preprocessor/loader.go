package preprocessor

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"rgehrsitz/nest/internal/rules"
)

// Compile validates definitions and builds them into optimized rules.
func Compile(defs []RuleDef) ([]rules.Rule, error) {
	if err := ValidateRules(defs); err != nil {
		return nil, err
	}

	b := rules.NewProgram("")
	compiled := make([]rules.Rule, 0, len(defs))
	for _, def := range defs {
		r, err := b.Rule().
			Name(def.Name).
			Slot(def.Screen, def.Slot).
			When(*def.When).
			Show(rules.Content{Template: def.Content.Template, Props: rules.Static(def.Content.Props)}).
			Priority(def.Priority).
			Build()
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, r)
	}
	return OptimizeRules(compiled), nil
}

// LoadFile reads, parses and compiles one rule file.
func LoadFile(path string) ([]rules.Rule, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	defs, err := ParseRules(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rs, err := Compile(defs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// LoadFiles loads every file into a single program, in argument order.
func LoadFiles(name string, paths ...string) (*rules.Program, error) {
	p := rules.NewProgram(name)
	for _, path := range paths {
		rs, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		log.Info().Str("file", path).Int("rules", len(rs)).Msg("loaded rule file")
		p.Add(rs...)
	}
	return p, nil
}
