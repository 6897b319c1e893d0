package programs

import (
	"fmt"

	"rgehrsitz/nest/internal/ai"
	"rgehrsitz/nest/internal/rules"
)

// Learning shows a daily tip for the first two weeks postpartum, weekly tips
// after that, and a carousel of AI-suggested questions.
func Learning(client ai.Client) *rules.Program {
	p := rules.NewProgram("learning")

	p.Series().PPDays(0, 13, func(day int) rules.Rule {
		return p.Rule().
			Name(fmt.Sprintf("learning-day-%d", day)).
			Slot(rules.ScreenLearning, rules.SlotCallout).
			When(rules.InScope(rules.ScopePostpartum), rules.Postpartum.Day().Eq(float64(day))).
			Show(rules.Content{
				Template: rules.TemplateTip,
				Props: rules.Props{
					"eyebrow": rules.Literal(fmt.Sprintf("Day %d", day)),
					"body": text(client, "7d",
						func(rc *rules.RuleContext) string {
							return fmt.Sprintf("learning:day:%d:%s", day, firstTime(rc))
						},
						func(rc *rules.RuleContext) string {
							return fmt.Sprintf("One practical tip for a %s parent on postpartum day %d.", firstTime(rc), day)
						}),
				},
			}).
			Priority(45).
			MustBuild()
	})

	p.Series().PPWeeks(2, 26, func(week int) rules.Rule {
		return p.Rule().
			Name(fmt.Sprintf("learning-week-%d", week)).
			Slot(rules.ScreenLearning, rules.SlotCallout).
			When(
				rules.InScope(rules.ScopePostpartum),
				rules.Postpartum.Week().Eq(float64(week)),
				rules.Not(rules.Postpartum.Day().Lt(14)),
			).
			Show(rules.Content{
				Template: rules.TemplateTip,
				Props: rules.Props{
					"eyebrow": rules.Literal(fmt.Sprintf("Week %d", week)),
					"body": text(client, "14d",
						func(rc *rules.RuleContext) string {
							return fmt.Sprintf("learning:week:%d:%s", week, rc.Season)
						},
						func(rc *rules.RuleContext) string {
							return fmt.Sprintf("One development tip for a baby in week %d, keeping the %s season in mind.", week, rc.Season)
						}),
				},
			}).
			Priority(45).
			MustBuild()
	})

	p.Add(p.Rule().
		Name("tummy-time").
		Slot(rules.ScreenLearning, rules.SlotCallout).
		When(
			rules.InScope(rules.ScopePostpartum),
			rules.Postpartum.Week().Between(2, 8),
			rules.NotDone(rules.DoneTummyTime),
		).
		Show(rules.Content{
			Template: rules.TemplateGoTo,
			Props: rules.Props{
				"label": rules.Literal("Try tummy time today"),
				"href":  rules.Literal("/learn/tummy-time"),
			},
		}).
		Priority(55).
		MustBuild())

	p.Add(p.Rule().
		Name("ask-anything").
		Slot(rules.ScreenLearning, rules.SlotCarousel).
		When(rules.Or(rules.InScope(rules.ScopePostpartum), rules.InScope(rules.ScopePregnancy))).
		Show(rules.Content{
			Template: rules.TemplatePromptList,
			Props: rules.Props{
				"title": rules.Literal("Questions other parents ask"),
				"prompts": promptList(client, "1d", 4,
					func(rc *rules.RuleContext) string {
						return fmt.Sprintf("prompts:%s:%d:%d", rc.Scope, intOr(rc.Week, -1), intOr(rc.PPWeek, -1))
					},
					func(rc *rules.RuleContext) string {
						if rc.Scope == rules.ScopePregnancy {
							return fmt.Sprintf("Questions a parent in pregnancy week %d might ask.", intOr(rc.Week, 0))
						}
						return fmt.Sprintf("Questions a parent in postpartum week %d might ask.", intOr(rc.PPWeek, 0))
					}),
			},
		}).
		Priority(50).
		MustBuild())

	return p
}
