// internal/runtime/runtime.go

package runtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"rgehrsitz/nest/internal/cache"
	"rgehrsitz/nest/internal/metrics"
	"rgehrsitz/nest/internal/rules"
)

const (
	// PendingPlaceholder is shown while another request is generating the prop.
	PendingPlaceholder = "[AI_PENDING]"
	// ErrorPlaceholder is shown when generation failed.
	ErrorPlaceholder = "[AI_ERROR]"

	promptDelimiter = "||"
)

var errNoGenerator = errors.New("ai call has no generator function")

// Selection is the resolved card for a slot.
type Selection struct {
	Template string         `json:"template"`
	Props    map[string]any `json:"props"`
}

// Engine matches rules to slots and resolves their props. It holds no
// per-request state and is safe for concurrent use.
type Engine struct {
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used to stamp and age pending markers.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = New()

// PickForSlot selects and resolves content using the default engine.
func PickForSlot(ctx context.Context, rs []rules.Rule, screen rules.Screen, slot rules.Slot, rc *rules.RuleContext, c cache.Cache) *Selection {
	return defaultEngine.PickForSlot(ctx, rs, screen, slot, rc, c)
}

// ResolveProps resolves props using the default engine.
func ResolveProps(ctx context.Context, props rules.Props, rc *rules.RuleContext, c cache.Cache) map[string]any {
	return defaultEngine.ResolveProps(ctx, props, rc, c)
}

// Match returns the rules targeting (screen, slot) whose condition holds,
// highest priority first. Equal priorities keep registration order.
func (e *Engine) Match(rs []rules.Rule, screen rules.Screen, slot rules.Slot, rc *rules.RuleContext) []rules.Rule {
	var matched []rules.Rule
	for _, r := range rs {
		if r.Targets(screen, slot) && rules.Eval(r.When, rc) {
			matched = append(matched, r)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority > matched[j].Priority
	})
	return matched
}

// PickForSlot returns the resolved content of the highest-priority matching
// rule, or nil when no rule matches. Cache and generator failures are
// turned into placeholder values and never surface as errors.
func (e *Engine) PickForSlot(ctx context.Context, rs []rules.Rule, screen rules.Screen, slot rules.Slot, rc *rules.RuleContext, c cache.Cache) *Selection {
	matched := e.Match(rs, screen, slot, rc)
	screenLabel, slotLabel := targetLabels(rs, screen, slot)
	if len(matched) == 0 {
		metrics.SlotPicks.WithLabelValues(screenLabel, slotLabel, "false").Inc()
		log.Debug().Str("screen", string(screen)).Str("slot", string(slot)).Msg("no rule matched")
		return nil
	}

	best := matched[0]
	metrics.SlotPicks.WithLabelValues(screenLabel, slotLabel, "true").Inc()
	log.Debug().
		Str("screen", string(screen)).
		Str("slot", string(slot)).
		Str("rule", best.Name).
		Int("priority", best.Priority).
		Int("candidates", len(matched)).
		Msg("rule selected")

	return &Selection{
		Template: best.Content.Template,
		Props:    e.ResolveProps(ctx, best.Content.Props, rc, c),
	}
}

// targetLabels returns metric labels for a pick. Targets no rule declares
// collapse to metrics.OtherTarget so callers cannot mint new series.
func targetLabels(rs []rules.Rule, screen rules.Screen, slot rules.Slot) (string, string) {
	for _, r := range rs {
		if r.Targets(screen, slot) {
			return string(screen), string(slot)
		}
	}
	return metrics.OtherTarget, metrics.OtherTarget
}

// ResolveProps resolves every prop one at a time, in name order.
func (e *Engine) ResolveProps(ctx context.Context, props rules.Props, rc *rules.RuleContext, c cache.Cache) map[string]any {
	resolved := make(map[string]any, len(props))
	for _, name := range props.Names() {
		resolved[name] = e.resolveProp(ctx, name, props[name], rc, c)
	}
	return resolved
}

func (e *Engine) resolveProp(ctx context.Context, name string, p rules.PropValue, rc *rules.RuleContext, c cache.Cache) any {
	switch p.Kind() {
	case rules.PropLiteral:
		return p.LiteralValue()
	case rules.PropCompute:
		return e.compute(name, p, rc)
	case rules.PropAIText:
		return e.resolveAI(ctx, name, p.AIConfig(), rc, c, false)
	case rules.PropAIPromptList:
		return e.resolveAI(ctx, name, p.AIConfig(), rc, c, true)
	default:
		log.Error().Str("prop", name).Str("kind", p.Kind().String()).Msg("unknown prop kind")
		return nil
	}
}

func (e *Engine) compute(name string, p rules.PropValue, rc *rules.RuleContext) (v any) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("prop", name).Interface("panic", r).Msg("compute prop panicked")
			v = nil
		}
	}()
	return p.ComputeFunc()(rc)
}

// resolveAI runs the cache-aside protocol for one generated prop. A pending
// marker younger than cache.PendingTTL means another resolution is in
// flight; older markers are treated as abandoned. The check-then-mark step is
// not atomic, so two racing requests may both generate; the later write wins.
func (e *Engine) resolveAI(ctx context.Context, name string, cfg *rules.AITextConfig, rc *rules.RuleContext, c cache.Cache, list bool) any {
	if cfg == nil || cfg.Key == nil {
		log.Error().Str("prop", name).Msg("ai prop has no config")
		return ErrorPlaceholder
	}
	key := cfg.Key(rc)
	ttl, err := cache.ParseTTL(cfg.TTL)
	if err != nil {
		log.Error().Err(err).Str("prop", name).Str("key", key).Msg("ai prop ttl invalid")
		return ErrorPlaceholder
	}

	now := e.now()
	if entry, ok := c.Get(ctx, key); ok {
		marker, isMarker := cache.AsMarker(entry.Value)
		switch {
		case !isMarker:
			metrics.CacheLookups.WithLabelValues(metrics.LookupHit).Inc()
			return shape(entry.Value, list)
		case marker.IsPending() && marker.Age(now) <= cache.PendingTTL:
			metrics.CacheLookups.WithLabelValues(metrics.LookupPending).Inc()
			log.Debug().Str("prop", name).Str("key", key).Msg("generation in flight")
			return PendingPlaceholder
		case marker.IsPending():
			metrics.CacheLookups.WithLabelValues(metrics.LookupStalePending).Inc()
			log.Warn().Str("prop", name).Str("key", key).Dur("age", marker.Age(now)).Msg("abandoned pending marker, regenerating")
		default:
			metrics.CacheLookups.WithLabelValues(metrics.LookupErrorMarker).Inc()
			return ErrorPlaceholder
		}
	} else {
		metrics.CacheLookups.WithLabelValues(metrics.LookupMiss).Inc()
	}

	// Marker and result writes outlive the request so a client that hangs
	// up mid-generation cannot strand the pending marker.
	writeCtx := context.WithoutCancel(ctx)
	c.Set(writeCtx, key, cache.PendingMarker(now), cache.PendingTTL)

	start := time.Now()
	value, err := generate(ctx, cfg, rc)
	metrics.GenerationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Generations.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("prop", name).Str("key", key).Msg("ai generation failed")
		c.Set(writeCtx, key, cache.ErrorMarker(), cache.ErrorTTL)
		return ErrorPlaceholder
	}
	metrics.Generations.WithLabelValues("success").Inc()

	value = shape(value, list)
	c.Set(writeCtx, key, value, ttl)
	return value
}

// generate invokes the external generator, converting panics into errors.
func generate(ctx context.Context, cfg *rules.AITextConfig, rc *rules.RuleContext) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator panicked: %v", r)
		}
	}()

	if cfg.Call == nil {
		return nil, errNoGenerator
	}
	call := cfg.Call(rc)
	if call.Fn == nil {
		return nil, errNoGenerator
	}

	out, err := call.Fn(ctx)
	if err != nil {
		return nil, err
	}
	if call.Pick == nil {
		return out, nil
	}
	return call.Pick(out), nil
}

// shape splits prompt-list strings; other values pass through.
func shape(v any, list bool) any {
	if !list {
		return v
	}
	s, ok := v.(string)
	if !ok {
		return v
	}
	return SplitPrompts(s)
}

// SplitPrompts splits s on "||", trimming whitespace and dropping empty items.
func SplitPrompts(s string) []string {
	parts := strings.Split(s, promptDelimiter)
	prompts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			prompts = append(prompts, p)
		}
	}
	return prompts
}

// Key joins parts into a cache key, e.g. Key("tip", "baby-1", 7) is
// "tip:baby-1:7".
func Key(parts ...any) string {
	strs := make([]string, len(parts))
	for i, p := range parts {
		switch v := p.(type) {
		case string:
			strs[i] = v
		case int:
			strs[i] = strconv.Itoa(v)
		default:
			strs[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(strs, ":")
}
