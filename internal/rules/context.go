// internal/rules/context.go

package rules

import "time"

// Scope is the life-stage bucket of the viewer.
type Scope string

const (
	ScopeTTC        Scope = "TTC"
	ScopePregnancy  Scope = "Pregnancy"
	ScopePostpartum Scope = "Postpartum"
)

// ProgressKey names a tracked checklist whose completion is reported as a percentage.
type ProgressKey string

const (
	ProgressHospitalBag   ProgressKey = "hospitalBag"
	ProgressBirthPlan     ProgressKey = "birthPlan"
	ProgressNursery       ProgressKey = "nursery"
	ProgressCarSeat       ProgressKey = "carSeat"
	ProgressPediatrician  ProgressKey = "pediatrician"
	ProgressFeedingPlan   ProgressKey = "feedingPlan"
	ProgressPostpartumKit ProgressKey = "postpartumKit"
)

// DoneKey names a one-off task the viewer can complete.
type DoneKey string

const (
	DoneFirstFeeding     DoneKey = "firstFeeding"
	DoneFirstBath        DoneKey = "firstBath"
	DoneNewbornScreening DoneKey = "newbornScreening"
	DoneTwoWeekCheckup   DoneKey = "twoWeekCheckup"
	DoneBirthCertificate DoneKey = "birthCertificate"
	DoneTummyTime        DoneKey = "tummyTime"
)

// Baby holds derived attributes of the baby being tracked.
type Baby struct {
	Name     string  `json:"name,omitempty"`
	AgeDays  int     `json:"ageDays"`
	AgeWeeks int     `json:"ageWeeks"`
	WeightKg float64 `json:"weightKg,omitempty"`
	LengthCm float64 `json:"lengthCm,omitempty"`
}

// RuleContext is a read-only snapshot of the viewer's state at evaluation time.
// The engine never mutates it. Nil pointers and nil maps mean "not known".
type RuleContext struct {
	Scope    Scope                   `json:"scope,omitempty"`
	Week     *int                    `json:"week,omitempty"`
	PPDay    *int                    `json:"ppDay,omitempty"`
	PPWeek   *int                    `json:"ppWeek,omitempty"`
	Progress map[ProgressKey]float64 `json:"progress,omitempty"`
	Done     map[DoneKey]bool        `json:"done,omitempty"`
	// Stale maps a resource name to the epoch milliseconds it was last touched.
	Stale            map[string]int64 `json:"stale,omitempty"`
	Traits           map[string]any   `json:"traits,omitempty"`
	Baby             *Baby            `json:"baby,omitempty"`
	EnhancedBabyData map[string]any   `json:"enhancedBabyData,omitempty"`
	Season           string           `json:"season,omitempty"`

	// Now is the instant staleness is measured against, as RFC 3339 in JSON.
	// Zero means the wall clock.
	Now time.Time `json:"now,omitzero"`
}

// Int returns a pointer to n, for filling the optional timeline fields.
func Int(n int) *int {
	return &n
}

// Clock returns the evaluation instant of the snapshot.
func (c *RuleContext) Clock() time.Time {
	if c == nil || c.Now.IsZero() {
		return time.Now()
	}
	return c.Now
}

// Trait looks up an arbitrary viewer attribute.
func (c *RuleContext) Trait(name string) (any, bool) {
	if c == nil || c.Traits == nil {
		return nil, false
	}
	v, ok := c.Traits[name]
	return v, ok
}

// TraitString returns a string trait or "" when it is absent or not a string.
func (c *RuleContext) TraitString(name string) string {
	v, ok := c.Trait(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
