package preprocessor

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/rs/zerolog/log"

	"rgehrsitz/nest/internal/rules"
)

// OptimizeRules simplifies conditions and orders rules by descending
// priority. Rules of equal priority keep their file order.
func OptimizeRules(rs []rules.Rule) []rules.Rule {
	optimized := simplifyConditions(rs)
	warnShadowedRules(optimized)
	return prioritizeRules(optimized)
}

func prioritizeRules(rulesToPrioritize []rules.Rule) []rules.Rule {
	prioritized := make([]rules.Rule, len(rulesToPrioritize))
	copy(prioritized, rulesToPrioritize)

	sort.SliceStable(prioritized, func(i, j int) bool {
		return prioritized[i].Priority > prioritized[j].Priority
	})
	return prioritized
}

func simplifyConditions(rulesToSimplify []rules.Rule) []rules.Rule {
	simplified := make([]rules.Rule, 0, len(rulesToSimplify))
	for _, r := range rulesToSimplify {
		r.When = simplifyCondition(r.When)
		simplified = append(simplified, r)
	}
	return simplified
}

// simplifyCondition flattens nested groups of the same kind, unwraps
// single-child groups and double negation, and drops duplicate children.
func simplifyCondition(cond rules.Condition) rules.Condition {
	switch cond.Kind {
	case rules.KindAll:
		children := flatten(rules.KindAll, cond.All)
		if len(children) == 1 {
			return children[0]
		}
		return rules.Condition{Kind: rules.KindAll, All: children}
	case rules.KindAny:
		children := flatten(rules.KindAny, cond.Any)
		if len(children) == 1 {
			return children[0]
		}
		return rules.Condition{Kind: rules.KindAny, Any: children}
	case rules.KindNot:
		if cond.Not == nil {
			return cond
		}
		inner := simplifyCondition(*cond.Not)
		if inner.Kind == rules.KindNot && inner.Not != nil {
			return *inner.Not
		}
		return rules.Condition{Kind: rules.KindNot, Not: &inner}
	default:
		return cond
	}
}

func flatten(kind rules.Kind, conditions []rules.Condition) []rules.Condition {
	out := make([]rules.Condition, 0, len(conditions))
	for _, c := range conditions {
		c = simplifyCondition(c)
		var nested []rules.Condition
		switch {
		case kind == rules.KindAll && c.Kind == rules.KindAll:
			nested = c.All
		case kind == rules.KindAny && c.Kind == rules.KindAny:
			nested = c.Any
		default:
			nested = []rules.Condition{c}
		}
		for _, n := range nested {
			if !containsCondition(out, n) {
				out = append(out, n)
			}
		}
	}
	return out
}

func containsCondition(conditions []rules.Condition, condition rules.Condition) bool {
	for _, c := range conditions {
		if reflect.DeepEqual(c, condition) {
			return true
		}
	}
	return false
}

// warnShadowedRules logs rules that share a slot and condition with a rule of
// equal or higher priority. Such rules can never be picked.
func warnShadowedRules(rs []rules.Rule) {
	winners := make(map[string]rules.Rule)
	for _, r := range rs {
		key, err := conditionsKey(r)
		if err != nil {
			log.Warn().Err(err).Str("rule", r.Name).Msg("could not fingerprint rule")
			continue
		}
		existing, found := winners[key]
		switch {
		case !found:
			winners[key] = r
		case r.Priority > existing.Priority:
			log.Warn().Str("rule", existing.Name).Str("shadowedBy", r.Name).Msg("rule can never be selected")
			winners[key] = r
		default:
			log.Warn().Str("rule", r.Name).Str("shadowedBy", existing.Name).Msg("rule can never be selected")
		}
	}
}

// conditionsKey fingerprints a rule's target and normalized condition.
func conditionsKey(r rules.Rule) (string, error) {
	serialized, err := json.Marshal(struct {
		Screen rules.Screen
		Slot   rules.Slot
		When   rules.Condition
	}{r.Screen, r.Slot, normalizeCondition(r.When)})
	if err != nil {
		return "", fmt.Errorf("error marshaling conditions: %w", err)
	}
	hash := sha256.Sum256(serialized)
	return fmt.Sprintf("%x", hash), nil
}

// normalizeCondition sorts the children of all/any groups so that equivalent
// conditions serialize identically.
func normalizeCondition(cond rules.Condition) rules.Condition {
	switch cond.Kind {
	case rules.KindAll:
		cond.All = sortConditions(cond.All)
	case rules.KindAny:
		cond.Any = sortConditions(cond.Any)
	case rules.KindNot:
		if cond.Not != nil {
			inner := normalizeCondition(*cond.Not)
			cond.Not = &inner
		}
	}
	return cond
}

func sortConditions(conditions []rules.Condition) []rules.Condition {
	type keyed struct {
		key  string
		cond rules.Condition
	}
	items := make([]keyed, len(conditions))
	for i, c := range conditions {
		c = normalizeCondition(c)
		b, _ := json.Marshal(c)
		items[i] = keyed{key: string(b), cond: c}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].key < items[j].key })

	sorted := make([]rules.Condition, len(items))
	for i, it := range items {
		sorted[i] = it.cond
	}
	return sorted
}
