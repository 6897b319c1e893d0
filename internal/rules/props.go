// internal/rules/props.go

package rules

import (
	"context"
	"sort"
)

// PropKind discriminates the variants of a PropValue.
type PropKind int

const (
	PropLiteral PropKind = iota
	PropCompute
	PropAIText
	PropAIPromptList
)

func (k PropKind) String() string {
	switch k {
	case PropLiteral:
		return "literal"
	case PropCompute:
		return "compute"
	case PropAIText:
		return "aiText"
	case PropAIPromptList:
		return "aiPromptList"
	default:
		return "unknown"
	}
}

// AICall is one invocation of an external generator. Fn produces raw output
// and Pick extracts the part the card needs.
type AICall struct {
	Fn   func(ctx context.Context) (any, error)
	Pick func(output any) any
}

// NewAICall adapts a typed generator and projection into an AICall.
func NewAICall[T any](fn func(ctx context.Context) (T, error), pick func(T) any) AICall {
	return AICall{
		Fn: func(ctx context.Context) (any, error) {
			return fn(ctx)
		},
		Pick: func(output any) any {
			typed, _ := output.(T)
			return pick(typed)
		},
	}
}

// AITextConfig describes a cached, generated prop.
type AITextConfig struct {
	// Key derives the cache key from the context.
	Key func(ctx *RuleContext) string
	// TTL is "<n>[smhd]".
	TTL  string
	Call func(ctx *RuleContext) AICall
}

// PropValue is a literal, a computed value, or generated text.
type PropValue struct {
	kind    PropKind
	literal any
	compute func(*RuleContext) any
	ai      *AITextConfig
}

// Props maps prop names to values.
type Props map[string]PropValue

func Literal(v any) PropValue {
	return PropValue{kind: PropLiteral, literal: v}
}

// Compute wraps a pure function of the context.
func Compute(fn func(ctx *RuleContext) any) PropValue {
	return PropValue{kind: PropCompute, compute: fn}
}

// AIText resolves through the cache, generating on a miss.
func AIText(cfg AITextConfig) PropValue {
	return PropValue{kind: PropAIText, ai: &cfg}
}

// AIPromptList is AIText whose string result is split on "||" into a list.
func AIPromptList(cfg AITextConfig) PropValue {
	return PropValue{kind: PropAIPromptList, ai: &cfg}
}

func (p PropValue) Kind() PropKind { return p.kind }
func (p PropValue) LiteralValue() any { return p.literal }
func (p PropValue) ComputeFunc() func(*RuleContext) any { return p.compute }

// AIConfig returns the generator settings of an AI prop, or nil.
func (p PropValue) AIConfig() *AITextConfig { return p.ai }

// Static converts a plain map into literal props.
func Static(values map[string]any) Props {
	props := make(Props, len(values))
	for name, v := range values {
		props[name] = Literal(v)
	}
	return props
}

// Names returns the prop names in resolution order.
func (p Props) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p Props) clone() Props {
	if p == nil {
		return nil
	}
	out := make(Props, len(p))
	for name, v := range p {
		out[name] = v
	}
	return out
}
