// internal/rules/condition.go

package rules

import "time"

// Kind discriminates the variants of a Condition.
type Kind string

const (
	KindCompare Kind = "compare"
	KindScope   Kind = "scope"
	KindDone    Kind = "done"
	KindStale   Kind = "stale"
	KindAll     Kind = "all"
	KindAny     Kind = "any"
	KindNot     Kind = "not"
)

// Field is a numeric context field a comparison can read.
type Field string

const (
	FieldWeek     Field = "week"
	FieldPPDay    Field = "ppDay"
	FieldPPWeek   Field = "ppWeek"
	FieldProgress Field = "progress"
)

const (
	OperatorEqual              = "eq"
	OperatorGreaterThan        = "gt"
	OperatorGreaterThanOrEqual = "gte"
	OperatorLessThan           = "lt"
	OperatorLessThanOrEqual    = "lte"
	OperatorBetween            = "between"
)

var SupportedOperators = []string{
	OperatorEqual,
	OperatorGreaterThan,
	OperatorGreaterThanOrEqual,
	OperatorLessThan,
	OperatorLessThanOrEqual,
	OperatorBetween,
}

// Condition is a predicate over a RuleContext. Only the fields relevant to
// Kind are populated; conditions are values and are never mutated after
// construction.
type Condition struct {
	Kind     Kind        `json:"kind" yaml:"kind"`
	Field    Field       `json:"field,omitempty" yaml:"field,omitempty"`
	Key      string      `json:"key,omitempty" yaml:"key,omitempty"`
	Operator string      `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value    float64     `json:"value,omitempty" yaml:"value,omitempty"`
	Upper    float64     `json:"upper,omitempty" yaml:"upper,omitempty"`
	Scope    Scope       `json:"scope,omitempty" yaml:"scope,omitempty"`
	Negate   bool        `json:"negate,omitempty" yaml:"negate,omitempty"`
	Minutes  float64     `json:"minutes,omitempty" yaml:"minutes,omitempty"`
	All      []Condition `json:"all,omitempty" yaml:"all,omitempty"`
	Any      []Condition `json:"any,omitempty" yaml:"any,omitempty"`
	Not      *Condition  `json:"not,omitempty" yaml:"not,omitempty"`
}

// Comparator builds comparisons against one numeric field.
type Comparator struct {
	field Field
	key   string
}

// Week compares the pregnancy week.
func Week() Comparator { return Comparator{field: FieldWeek} }

type postpartum struct{}

// Postpartum groups the postpartum day and week comparators.
var Postpartum postpartum

// Day compares the postpartum day.
func (postpartum) Day() Comparator { return Comparator{field: FieldPPDay} }

// Week compares the postpartum week.
func (postpartum) Week() Comparator { return Comparator{field: FieldPPWeek} }

// Progress compares the completion percentage of a checklist. A missing
// entry reads as 0.
func Progress(key ProgressKey) Comparator {
	return Comparator{field: FieldProgress, key: string(key)}
}

func (c Comparator) compare(op string, v float64) Condition {
	return Condition{Kind: KindCompare, Field: c.field, Key: c.key, Operator: op, Value: v}
}

func (c Comparator) Eq(v float64) Condition  { return c.compare(OperatorEqual, v) }
func (c Comparator) Gt(v float64) Condition  { return c.compare(OperatorGreaterThan, v) }
func (c Comparator) Gte(v float64) Condition { return c.compare(OperatorGreaterThanOrEqual, v) }
func (c Comparator) Lt(v float64) Condition  { return c.compare(OperatorLessThan, v) }
func (c Comparator) Lte(v float64) Condition { return c.compare(OperatorLessThanOrEqual, v) }

// Between is inclusive on both ends.
func (c Comparator) Between(lo, hi float64) Condition {
	cond := c.compare(OperatorBetween, lo)
	cond.Upper = hi
	return cond
}

// InScope matches viewers in the given life stage.
func InScope(s Scope) Condition {
	return Condition{Kind: KindScope, Scope: s}
}

// Done matches when the task is marked done.
func Done(key DoneKey) Condition {
	return Condition{Kind: KindDone, Key: string(key)}
}

// NotDone matches when the task is not marked done, including when it was
// never reported.
func NotDone(key DoneKey) Condition {
	return Condition{Kind: KindDone, Key: string(key), Negate: true}
}

// Stale matches when the named resource was last touched at least
// thresholdMinutes ago. A resource never observed is not stale.
func Stale(name string, thresholdMinutes float64) Condition {
	return Condition{Kind: KindStale, Key: name, Minutes: thresholdMinutes}
}

// And matches when every sub-condition matches. And() matches everything.
func And(conds ...Condition) Condition {
	return Condition{Kind: KindAll, All: append([]Condition(nil), conds...)}
}

// Or matches when at least one sub-condition matches. Or() matches nothing.
func Or(conds ...Condition) Condition {
	return Condition{Kind: KindAny, Any: append([]Condition(nil), conds...)}
}

func Not(c Condition) Condition {
	return Condition{Kind: KindNot, Not: &c}
}

// Eval evaluates cond against ctx. It has no side effects; a nil ctx behaves
// like an empty snapshot.
func Eval(cond Condition, ctx *RuleContext) bool {
	if ctx == nil {
		ctx = &RuleContext{}
	}
	switch cond.Kind {
	case KindCompare:
		v, ok := fieldValue(cond, ctx)
		if !ok {
			return false
		}
		return compareValue(cond.Operator, v, cond.Value, cond.Upper)
	case KindScope:
		return ctx.Scope == cond.Scope
	case KindDone:
		done := ctx.Done[DoneKey(cond.Key)]
		return done != cond.Negate
	case KindStale:
		last, ok := ctx.Stale[cond.Key]
		if !ok {
			return false
		}
		threshold := time.Duration(cond.Minutes * float64(time.Minute))
		return ctx.Clock().UnixMilli()-last >= threshold.Milliseconds()
	case KindAll:
		for _, c := range cond.All {
			if !Eval(c, ctx) {
				return false
			}
		}
		return true
	case KindAny:
		for _, c := range cond.Any {
			if Eval(c, ctx) {
				return true
			}
		}
		return false
	case KindNot:
		if cond.Not == nil {
			return false
		}
		return !Eval(*cond.Not, ctx)
	default:
		return false
	}
}

// fieldValue reads the field a comparison targets. Timeline fields are absent
// when unset; progress entries default to 0.
func fieldValue(cond Condition, ctx *RuleContext) (float64, bool) {
	switch cond.Field {
	case FieldWeek:
		return intField(ctx.Week)
	case FieldPPDay:
		return intField(ctx.PPDay)
	case FieldPPWeek:
		return intField(ctx.PPWeek)
	case FieldProgress:
		return ctx.Progress[ProgressKey(cond.Key)], true
	default:
		return 0, false
	}
}

func intField(p *int) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return float64(*p), true
}

func compareValue(op string, v, target, upper float64) bool {
	switch op {
	case OperatorEqual:
		return v == target
	case OperatorGreaterThan:
		return v > target
	case OperatorGreaterThanOrEqual:
		return v >= target
	case OperatorLessThan:
		return v < target
	case OperatorLessThanOrEqual:
		return v <= target
	case OperatorBetween:
		return v >= target && v <= upper
	default:
		return false
	}
}

// IsValidOperator reports whether op is a supported comparison operator.
func IsValidOperator(op string) bool {
	for _, supported := range SupportedOperators {
		if op == supported {
			return true
		}
	}
	return false
}
