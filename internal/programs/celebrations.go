package programs

import (
	"fmt"

	"rgehrsitz/nest/internal/ai"
	"rgehrsitz/nest/internal/rules"
)

type celebration struct {
	day   int
	title string
	emoji string
}

var namedCelebrations = []celebration{
	{day: 0, title: "Welcome to the world", emoji: "🎉"},
	{day: 1, title: "Your first full day together", emoji: "🌅"},
	{day: 7, title: "One week strong", emoji: "🥳"},
	{day: 14, title: "Two weeks of firsts", emoji: "🌱"},
	{day: 30, title: "One month old", emoji: "🎂"},
	{day: 42, title: "Six weeks: smiles are coming", emoji: "😊"},
	{day: 100, title: "100 days of you", emoji: "💯"},
}

// Celebrations shows a celebration card in the Learning header on named
// postpartum days, and a weekly card the rest of the first three months.
func Celebrations(client ai.Client) *rules.Program {
	p := rules.NewProgram("celebrations")

	for _, c := range namedCelebrations {
		p.Add(p.Rule().
			Name(fmt.Sprintf("celebration-day-%d", c.day)).
			Slot(rules.ScreenLearning, rules.SlotHeader).
			When(rules.InScope(rules.ScopePostpartum), rules.Postpartum.Day().Eq(float64(c.day))).
			Show(rules.Content{
				Template: rules.TemplateCelebration,
				Props: rules.Props{
					"title": rules.Literal(c.title),
					"emoji": rules.Literal(c.emoji),
					"message": cardBody(client, "30d",
						func(rc *rules.RuleContext) string {
							return fmt.Sprintf("celebration:day:%d:%s", c.day, babyName(rc))
						},
						func(rc *rules.RuleContext) string {
							return fmt.Sprintf("Write a celebration for %s reaching postpartum day %d (%q).", babyName(rc), c.day, c.title)
						}),
				},
			}).
			Priority(100).
			MustBuild())
	}

	p.Series().PPWeeks(1, 12, func(week int) rules.Rule {
		return p.Rule().
			Name(fmt.Sprintf("celebration-week-%d", week)).
			Slot(rules.ScreenLearning, rules.SlotHeader).
			When(rules.InScope(rules.ScopePostpartum), rules.Postpartum.Week().Eq(float64(week))).
			Show(rules.Content{
				Template: rules.TemplateCelebration,
				Props: rules.Props{
					"title": rules.Literal(fmt.Sprintf("Week %d", week)),
					"emoji": rules.Literal("⭐"),
					"subtitle": rules.Compute(func(rc *rules.RuleContext) any {
						return fmt.Sprintf("%s is %d weeks old", babyName(rc), week)
					}),
				},
			}).
			Priority(50).
			MustBuild()
	})

	return p
}
