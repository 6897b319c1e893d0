package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rgehrsitz/nest/internal/cache"
)

func tipRule(p *Program, day int) Rule {
	return p.Rule().
		Slot(ScreenLearning, SlotCallout).
		When(InScope(ScopePostpartum), Postpartum.Day().Eq(float64(day))).
		Show(Content{Template: TemplateTip, Props: Static(map[string]any{"day": day})}).
		Priority(45).
		MustBuild()
}

func TestRuleBuilder_Build(t *testing.T) {
	p := NewProgram("test")
	r, err := p.Rule().
		Name("first-week").
		Slot(ScreenLearning, SlotHeader).
		When(Postpartum.Day().Eq(7)).
		Show(Content{Template: TemplateMilestone, Props: Static(map[string]any{"title": "First Week Complete"})}).
		Priority(80).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "first-week", r.Name)
	assert.Equal(t, ScreenLearning, r.Screen)
	assert.Equal(t, SlotHeader, r.Slot)
	assert.Equal(t, 80, r.Priority)
	assert.Equal(t, TemplateMilestone, r.Content.Template)
	assert.Equal(t, Postpartum.Day().Eq(7), r.When)
	assert.True(t, r.Targets(ScreenLearning, SlotHeader))
	assert.False(t, r.Targets(ScreenLearning, SlotCallout))
}

func TestRuleBuilder_MultipleWhenAreAnded(t *testing.T) {
	r := NewProgram("test").Rule().
		Slot(ScreenHome, SlotHeader).
		When(InScope(ScopePregnancy)).
		When(Week().Gte(20), Week().Lt(30)).
		Show(Content{Template: TemplateTip}).
		MustBuild()

	assert.Equal(t, KindAll, r.When.Kind)
	assert.Len(t, r.When.All, 3)
	assert.True(t, Eval(r.When, &RuleContext{Scope: ScopePregnancy, Week: Int(25)}))
	assert.False(t, Eval(r.When, &RuleContext{Scope: ScopePregnancy, Week: Int(30)}))
}

func TestRuleBuilder_MissingPartsFail(t *testing.T) {
	cases := map[string]struct {
		build func(b *RuleBuilder) *RuleBuilder
		want  error
	}{
		"no slot": {
			build: func(b *RuleBuilder) *RuleBuilder {
				return b.When(And()).Show(Content{Template: "T"})
			},
			want: ErrMissingSlot,
		},
		"no when": {
			build: func(b *RuleBuilder) *RuleBuilder {
				return b.Slot(ScreenHome, SlotHeader).Show(Content{Template: "T"})
			},
			want: ErrMissingWhen,
		},
		"no show": {
			build: func(b *RuleBuilder) *RuleBuilder {
				return b.Slot(ScreenHome, SlotHeader).When(And())
			},
			want: ErrMissingContent,
		},
		"empty template": {
			build: func(b *RuleBuilder) *RuleBuilder {
				return b.Slot(ScreenHome, SlotHeader).When(And()).Show(Content{})
			},
			want: ErrMissingTemplate,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			b := tc.build(NewProgram("test").Rule().Name(name))
			_, err := b.Build()
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)

			var buildErr *BuildError
			require.True(t, errors.As(err, &buildErr))
			assert.Equal(t, name, buildErr.Rule)
			assert.Panics(t, func() { b.MustBuild() })
		})
	}
}

func TestRuleBuilder_InvalidAIPropFails(t *testing.T) {
	call := func(*RuleContext) AICall {
		return AICall{Fn: func(context.Context) (any, error) { return "x", nil }}
	}
	key := func(*RuleContext) string { return "k" }

	build := func(p PropValue) error {
		_, err := NewProgram("test").Rule().
			Slot(ScreenHome, SlotHeader).
			When(And()).
			Show(Content{Template: "T", Props: Props{"body": p}}).
			Build()
		return err
	}

	assert.ErrorIs(t, build(AIText(AITextConfig{Key: key, TTL: "10", Call: call})), cache.ErrInvalidTTL)
	assert.ErrorIs(t, build(AIText(AITextConfig{Key: key, TTL: "bogus", Call: call})), cache.ErrInvalidTTL)
	assert.ErrorIs(t, build(AIPromptList(AITextConfig{TTL: "1d", Call: call})), ErrInvalidProp)
	assert.ErrorIs(t, build(AIText(AITextConfig{Key: key, TTL: "1d"})), ErrInvalidProp)
	assert.ErrorIs(t, build(Compute(nil)), ErrInvalidProp)
	assert.NoError(t, build(AIText(AITextConfig{Key: key, TTL: "1d", Call: call})))
}

func TestRuleBuilder_BuiltRulesAreIndependent(t *testing.T) {
	props := Static(map[string]any{"title": "a"})
	b := NewProgram("test").Rule().
		Slot(ScreenHome, SlotHeader).
		When(And()).
		Show(Content{Template: "T", Props: props}).
		Priority(1)

	first := b.MustBuild()
	props["title"] = Literal("b")
	second := b.Priority(2).MustBuild()

	assert.Equal(t, "a", first.Content.Props["title"].LiteralValue())
	assert.Equal(t, 1, first.Priority)
	assert.Equal(t, "b", second.Content.Props["title"].LiteralValue())
	assert.Equal(t, 2, second.Priority)
}

func TestProgram_SeriesCounts(t *testing.T) {
	p := NewProgram("series")
	p.Series().PPDays(0, 3, func(day int) Rule { return tipRule(p, day) })
	assert.Equal(t, 4, p.Len())

	p.Series().PPWeeks(0, 2, func(week int) Rule { return tipRule(p, week) })
	assert.Equal(t, 7, p.Len())

	p.Series().PPDays(5, 4, func(day int) Rule { return tipRule(p, day) })
	assert.Equal(t, 7, p.Len())
}

func TestProgram_SeriesPassesEachDay(t *testing.T) {
	p := NewProgram("series")
	var seen []int
	p.Series().PPDays(10, 13, func(day int) Rule {
		seen = append(seen, day)
		return tipRule(p, day)
	})
	assert.Equal(t, []int{10, 11, 12, 13}, seen)

	rs := p.Build()
	assert.True(t, Eval(rs[2].When, &RuleContext{Scope: ScopePostpartum, PPDay: Int(12)}))
	assert.False(t, Eval(rs[2].When, &RuleContext{Scope: ScopePostpartum, PPDay: Int(13)}))
}

func TestProgram_BuildReturnsCopy(t *testing.T) {
	p := NewProgram("copy")
	p.Add(tipRule(p, 1))

	rs := p.Build()
	rs[0].Priority = 999
	p.Add(tipRule(p, 2))

	again := p.Build()
	assert.Len(t, rs, 1)
	assert.Len(t, again, 2)
	assert.Equal(t, 45, again[0].Priority)
	assert.Equal(t, "copy", p.Name())
}

func TestProps_NamesSorted(t *testing.T) {
	props := Props{"zeta": Literal(1), "alpha": Literal(2), "mid": Literal(3)}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, props.Names())
	assert.Empty(t, Props(nil).Names())
}

func TestNewAICall_AdaptsTypes(t *testing.T) {
	type output struct{ Headline, Body string }
	call := NewAICall(func(context.Context) (output, error) {
		return output{Headline: "Day 7", Body: "One week in"}, nil
	}, func(o output) any { return o.Headline })

	out, err := call.Fn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Day 7", call.Pick(out))
	assert.Equal(t, "aiText", AIText(AITextConfig{}).Kind().String())
}
