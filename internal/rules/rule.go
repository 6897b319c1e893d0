// internal/rules/rule.go

package rules

// Screen is a named page the UI asks content for.
type Screen string

const (
	ScreenHome       Screen = "Home"
	ScreenLearning   Screen = "Learning"
	ScreenPregnancy  Screen = "Pregnancy"
	ScreenMilestones Screen = "Milestones"
	ScreenActivity   Screen = "Activity"
)

// Slot is a placement within a screen holding at most one card.
type Slot string

const (
	SlotHeader   Slot = "Header"
	SlotCallout  Slot = "Callout"
	SlotCarousel Slot = "Carousel"
	SlotBanner   Slot = "Banner"
	SlotFooter   Slot = "Footer"
)

// Templates understood by the UI layer.
const (
	TemplateCelebration = "Card.Celebration"
	TemplateMilestone   = "Card.Milestone"
	TemplateTip         = "Card.Tip"
	TemplateGoTo        = "CTA.GoTo"
	TemplatePromptList  = "Carousel.PromptList"
)

// Content is the card a rule shows: a template name plus the props that
// fill it.
type Content struct {
	Template string `json:"template" yaml:"template"`
	Props    Props  `json:"-" yaml:"-"`
}

// Rule targets one (screen, slot) pair and shows its content when the
// condition holds. Among matching rules the highest priority wins.
type Rule struct {
	Name     string    `json:"name,omitempty"`
	Screen   Screen    `json:"screen"`
	Slot     Slot      `json:"slot"`
	When     Condition `json:"when"`
	Content  Content   `json:"content"`
	Priority int       `json:"priority"`
}

// Targets reports whether the rule is registered for the given slot.
func (r Rule) Targets(screen Screen, slot Slot) bool {
	return r.Screen == screen && r.Slot == slot
}
