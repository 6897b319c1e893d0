// internal/rules/program.go

package rules

import (
	"errors"
	"fmt"

	"rgehrsitz/nest/internal/cache"
)

var (
	ErrMissingSlot     = errors.New("rule has no slot")
	ErrMissingWhen     = errors.New("rule has no condition")
	ErrMissingContent  = errors.New("rule has no content")
	ErrMissingTemplate = errors.New("rule content has no template")
	ErrInvalidProp     = errors.New("invalid prop")
)

// BuildError reports a rule that could not be built.
type BuildError struct {
	Rule string
	Err  error
}

func (e *BuildError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("build rule: %v", e.Err)
	}
	return fmt.Sprintf("build rule %q: %v", e.Rule, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Program is an ordered collection of rules for one content domain.
type Program struct {
	name  string
	rules []Rule
}

// NewProgram creates an empty program.
func NewProgram(name string) *Program {
	return &Program{name: name}
}

func (p *Program) Name() string { return p.name }

// Rule starts a new rule. The rule is not added until passed to Add.
func (p *Program) Rule() *RuleBuilder {
	return &RuleBuilder{}
}

// Add appends rules in registration order.
func (p *Program) Add(rs ...Rule) *Program {
	p.rules = append(p.rules, rs...)
	return p
}

// Len returns the number of rules added so far.
func (p *Program) Len() int { return len(p.rules) }

// Build returns a copy of the accumulated rules.
func (p *Program) Build() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

// Series generates rules over day and week ranges.
func (p *Program) Series() Series {
	return Series{program: p}
}

// Series adds one rule per integer in an inclusive range.
type Series struct {
	program *Program
}

// PPDays adds factory(day) for each day in [start, end].
func (s Series) PPDays(start, end int, factory func(day int) Rule) *Program {
	for day := start; day <= end; day++ {
		s.program.Add(factory(day))
	}
	return s.program
}

// PPWeeks adds factory(week) for each week in [start, end].
func (s Series) PPWeeks(start, end int, factory func(week int) Rule) *Program {
	for week := start; week <= end; week++ {
		s.program.Add(factory(week))
	}
	return s.program
}

// PregnancyWeeks adds factory(week) for each pregnancy week in [start, end].
func (s Series) PregnancyWeeks(start, end int, factory func(week int) Rule) *Program {
	for week := start; week <= end; week++ {
		s.program.Add(factory(week))
	}
	return s.program
}

// RuleBuilder assembles a Rule. Each Build returns an independent value, so
// a builder can be reused without affecting rules it already produced.
type RuleBuilder struct {
	name     string
	screen   Screen
	slot     Slot
	hasSlot  bool
	when     []Condition
	content  Content
	hasShow  bool
	priority int
}

func (b *RuleBuilder) Name(name string) *RuleBuilder {
	b.name = name
	return b
}

func (b *RuleBuilder) Slot(screen Screen, slot Slot) *RuleBuilder {
	b.screen, b.slot, b.hasSlot = screen, slot, true
	return b
}

// When adds conditions; all of them must hold.
func (b *RuleBuilder) When(conds ...Condition) *RuleBuilder {
	b.when = append(b.when, conds...)
	return b
}

func (b *RuleBuilder) Show(content Content) *RuleBuilder {
	b.content, b.hasShow = content, true
	return b
}

func (b *RuleBuilder) Priority(n int) *RuleBuilder {
	b.priority = n
	return b
}

// Build validates the rule and returns it.
func (b *RuleBuilder) Build() (Rule, error) {
	if !b.hasSlot {
		return Rule{}, &BuildError{Rule: b.name, Err: ErrMissingSlot}
	}
	if len(b.when) == 0 {
		return Rule{}, &BuildError{Rule: b.name, Err: ErrMissingWhen}
	}
	if !b.hasShow {
		return Rule{}, &BuildError{Rule: b.name, Err: ErrMissingContent}
	}
	if b.content.Template == "" {
		return Rule{}, &BuildError{Rule: b.name, Err: ErrMissingTemplate}
	}
	for _, name := range b.content.Props.Names() {
		if err := validateProp(b.content.Props[name]); err != nil {
			return Rule{}, &BuildError{Rule: b.name, Err: fmt.Errorf("prop %q: %w", name, err)}
		}
	}

	when := b.when[0]
	if len(b.when) > 1 {
		when = And(b.when...)
	}

	return Rule{
		Name:   b.name,
		Screen: b.screen,
		Slot:   b.slot,
		When:   when,
		Content: Content{
			Template: b.content.Template,
			Props:    b.content.Props.clone(),
		},
		Priority: b.priority,
	}, nil
}

// MustBuild is like Build but panics on an incomplete rule. Programs are
// assembled at startup, so a malformed rule fails before serving.
func (b *RuleBuilder) MustBuild() Rule {
	r, err := b.Build()
	if err != nil {
		panic(err)
	}
	return r
}

func validateProp(p PropValue) error {
	switch p.kind {
	case PropLiteral:
		return nil
	case PropCompute:
		if p.compute == nil {
			return fmt.Errorf("%w: compute prop has no function", ErrInvalidProp)
		}
		return nil
	case PropAIText, PropAIPromptList:
		if p.ai == nil || p.ai.Key == nil || p.ai.Call == nil {
			return fmt.Errorf("%w: key and call are required", ErrInvalidProp)
		}
		if _, err := cache.ParseTTL(p.ai.TTL); err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidProp, p.kind)
	}
}
