// Package programs holds the built-in content rule sets.
package programs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"rgehrsitz/nest/internal/ai"
	"rgehrsitz/nest/internal/rules"
)

const systemPrompt = "You write warm, concise copy for a baby-care tracking app. " +
	"Never give medical advice; suggest asking a pediatrician when health is involved."

// cardCopy is the structured output requested for celebration cards.
type cardCopy struct {
	Headline string `json:"headline"`
	Body     string `json:"body"`
}

// text builds an AI prop that asks client for free text.
func text(client ai.Client, ttl string, key func(*rules.RuleContext) string, prompt func(*rules.RuleContext) string) rules.PropValue {
	return rules.AIText(rules.AITextConfig{
		Key: key,
		TTL: ttl,
		Call: func(rc *rules.RuleContext) rules.AICall {
			p := prompt(rc)
			return rules.NewAICall(func(ctx context.Context) (string, error) {
				return client.Complete(ctx, systemPrompt, p)
			}, func(out string) any { return out })
		},
	})
}

// cardBody asks for a JSON {headline, body} object and keeps the body.
func cardBody(client ai.Client, ttl string, key func(*rules.RuleContext) string, prompt func(*rules.RuleContext) string) rules.PropValue {
	return rules.AIText(rules.AITextConfig{
		Key: key,
		TTL: ttl,
		Call: func(rc *rules.RuleContext) rules.AICall {
			p := prompt(rc) + ` Reply with JSON: {"headline": string, "body": string}.`
			return rules.NewAICall(func(ctx context.Context) (cardCopy, error) {
				raw, err := client.Complete(ctx, systemPrompt, p)
				if err != nil {
					return cardCopy{}, err
				}
				return parseCardCopy(raw)
			}, func(out cardCopy) any { return out.Body })
		},
	})
}

// promptList asks for n prompts separated by "||".
func promptList(client ai.Client, ttl string, n int, key func(*rules.RuleContext) string, prompt func(*rules.RuleContext) string) rules.PropValue {
	return rules.AIPromptList(rules.AITextConfig{
		Key: key,
		TTL: ttl,
		Call: func(rc *rules.RuleContext) rules.AICall {
			p := fmt.Sprintf("%s Give %d short questions separated by ||.", prompt(rc), n)
			return rules.NewAICall(func(ctx context.Context) (string, error) {
				return client.Complete(ctx, systemPrompt, p)
			}, func(out string) any { return out })
		},
	})
}

func parseCardCopy(raw string) (cardCopy, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var out cardCopy
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		return cardCopy{}, fmt.Errorf("decode card copy: %w", err)
	}
	if out.Body == "" {
		return cardCopy{}, fmt.Errorf("decode card copy: empty body")
	}
	return out, nil
}

// babyName returns the baby's name, or "your baby".
func babyName(rc *rules.RuleContext) string {
	if rc != nil && rc.Baby != nil && rc.Baby.Name != "" {
		return rc.Baby.Name
	}
	return "your baby"
}

// firstTime describes whether this is the viewer's first pregnancy.
func firstTime(rc *rules.RuleContext) string {
	if v, ok := rc.Trait("firstPregnancy"); ok {
		if first, _ := v.(bool); first {
			return "first-time"
		}
		return "experienced"
	}
	return "any"
}

func intOr(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return *p
}

// All returns every built-in rule.
func All(client ai.Client) []rules.Rule {
	var all []rules.Rule
	for _, p := range []*rules.Program{Celebrations(client), Milestones(client), Learning(client)} {
		all = append(all, p.Build()...)
	}
	return all
}
