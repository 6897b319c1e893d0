package programs

import (
	"fmt"

	"rgehrsitz/nest/internal/ai"
	"rgehrsitz/nest/internal/rules"
)

var pregnancyMilestones = map[int]string{
	12: "First trimester complete",
	20: "Halfway there",
	24: "Viability milestone",
	28: "Welcome to the third trimester",
	37: "Full term",
	40: "Due week",
}

// Milestones covers pregnancy week milestones, preparation nudges driven by
// checklist progress, and postpartum care reminders.
func Milestones(client ai.Client) *rules.Program {
	p := rules.NewProgram("milestones")

	p.Series().PregnancyWeeks(4, 40, func(week int) rules.Rule {
		title, named := pregnancyMilestones[week]
		priority := 45
		if named {
			priority = 100
		} else {
			title = fmt.Sprintf("Week %d", week)
		}
		return p.Rule().
			Name(fmt.Sprintf("pregnancy-week-%d", week)).
			Slot(rules.ScreenPregnancy, rules.SlotHeader).
			When(rules.InScope(rules.ScopePregnancy), rules.Week().Eq(float64(week))).
			Show(rules.Content{
				Template: rules.TemplateMilestone,
				Props: rules.Props{
					"title": rules.Literal(title),
					"week":  rules.Literal(week),
					"summary": text(client, "14d",
						func(rc *rules.RuleContext) string {
							return fmt.Sprintf("pregnancy:week:%d:%s", week, firstTime(rc))
						},
						func(rc *rules.RuleContext) string {
							return fmt.Sprintf("In two sentences, what is happening in pregnancy week %d for a %s parent?", week, firstTime(rc))
						}),
				},
			}).
			Priority(priority).
			MustBuild()
	})

	p.Add(p.Rule().
		Name("hospital-bag").
		Slot(rules.ScreenPregnancy, rules.SlotCallout).
		When(
			rules.InScope(rules.ScopePregnancy),
			rules.Week().Between(32, 40),
			rules.Progress(rules.ProgressHospitalBag).Lt(50),
		).
		Show(rules.Content{
			Template: rules.TemplateGoTo,
			Props: rules.Props{
				"label": rules.Literal("Pack your hospital bag"),
				"href":  rules.Literal("/checklists/hospital-bag"),
				"percent": rules.Compute(func(rc *rules.RuleContext) any {
					return rc.Progress[rules.ProgressHospitalBag]
				}),
			},
		}).
		Priority(70).
		MustBuild())

	p.Add(p.Rule().
		Name("birth-plan").
		Slot(rules.ScreenPregnancy, rules.SlotCallout).
		When(
			rules.InScope(rules.ScopePregnancy),
			rules.Week().Between(28, 36),
			rules.Progress(rules.ProgressBirthPlan).Lt(100),
		).
		Show(rules.Content{
			Template: rules.TemplateGoTo,
			Props: rules.Props{
				"label": rules.Literal("Finish your birth plan"),
				"href":  rules.Literal("/checklists/birth-plan"),
			},
		}).
		Priority(60).
		MustBuild())

	p.Add(p.Rule().
		Name("two-week-checkup").
		Slot(rules.ScreenHome, rules.SlotCallout).
		When(
			rules.InScope(rules.ScopePostpartum),
			rules.Postpartum.Day().Between(10, 16),
			rules.NotDone(rules.DoneTwoWeekCheckup),
		).
		Show(rules.Content{
			Template: rules.TemplateGoTo,
			Props: rules.Props{
				"label": rules.Literal("Book the two-week checkup"),
				"href":  rules.Literal("/visits/new"),
			},
		}).
		Priority(60).
		MustBuild())

	p.Add(p.Rule().
		Name("first-week-complete").
		Slot(rules.ScreenMilestones, rules.SlotHeader).
		When(rules.InScope(rules.ScopePostpartum), rules.Postpartum.Day().Eq(7)).
		Show(rules.Content{
			Template: rules.TemplateMilestone,
			Props:    rules.Static(map[string]any{"title": "First Week Complete"}),
		}).
		Priority(80).
		MustBuild())

	p.Add(p.Rule().
		Name("feeding-overdue").
		Slot(rules.ScreenActivity, rules.SlotBanner).
		When(
			rules.InScope(rules.ScopePostpartum),
			rules.Postpartum.Week().Lte(12),
			rules.Stale("feeding", 180),
		).
		Show(rules.Content{
			Template: rules.TemplateGoTo,
			Props: rules.Props{
				"label": rules.Literal("Log a feeding"),
				"href":  rules.Literal("/activity/feeding/new"),
				"minutesSince": rules.Compute(func(rc *rules.RuleContext) any {
					return int(rc.Clock().UnixMilli()-rc.Stale["feeding"]) / 60_000
				}),
			},
		}).
		Priority(90).
		MustBuild())

	p.Add(p.Rule().
		Name("diaper-overdue").
		Slot(rules.ScreenActivity, rules.SlotBanner).
		When(rules.InScope(rules.ScopePostpartum), rules.Stale("diaper", 240)).
		Show(rules.Content{
			Template: rules.TemplateGoTo,
			Props: rules.Props{
				"label": rules.Literal("Log a diaper change"),
				"href":  rules.Literal("/activity/diaper/new"),
			},
		}).
		Priority(80).
		MustBuild())

	return p
}
