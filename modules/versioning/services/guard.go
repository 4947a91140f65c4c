package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/kestrelrisk/mrg-console/modules/versioning/domain/types"
	"github.com/kestrelrisk/mrg-console/pkg/httperr"
	"gopkg.in/yaml.v3"
)

// PublishRule is a cross-field precondition evaluated over a domain's draft
// set before any publish write happens. The expression is CEL over a `facts`
// map and must evaluate to true for the publish to proceed.
type PublishRule struct {
	Domain     string `yaml:"domain"`
	RuleID     string `yaml:"rule_id"`
	Expr       string `yaml:"expr"`
	ReasonCode string `yaml:"reason_code"`
}

type PublishRuleset struct {
	Version int           `yaml:"version"`
	Rules   []PublishRule `yaml:"rules"`
}

func ParsePublishRulesYAML(b []byte) (PublishRuleset, error) {
	var rs PublishRuleset
	if err := yaml.Unmarshal(b, &rs); err != nil {
		return PublishRuleset{}, err
	}
	if rs.Version != 1 {
		return PublishRuleset{}, errors.New("publish rules: unsupported version")
	}
	for _, rule := range rs.Rules {
		if rule.RuleID == "" || rule.Expr == "" || rule.ReasonCode == "" {
			return PublishRuleset{}, errors.New("publish rules: rule_id, expr and reason_code are required")
		}
		if _, ok := types.ParseConfigDomain(rule.Domain); !ok {
			return PublishRuleset{}, fmt.Errorf("publish rules: unknown domain %q", rule.Domain)
		}
	}
	return rs, nil
}

func LoadPublishRules(path string) (PublishRuleset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return PublishRuleset{}, err
	}
	return ParsePublishRulesYAML(b)
}

type compiledPublishRule struct {
	ruleID     string
	reasonCode string
	program    cel.Program
}

// PublishGuard evaluates the configured precondition rules for a domain.
// Failing rules surface as one FailedPrecondition carrying every failed
// reason code, so admins fix all violations in one pass.
type PublishGuard struct {
	rules map[types.ConfigDomain][]compiledPublishRule
}

func NewPublishGuard(rs PublishRuleset) (*PublishGuard, error) {
	env, err := cel.NewEnv(cel.Variable("facts", cel.MapType(cel.StringType, cel.DynType)))
	if err != nil {
		return nil, err
	}

	rules := make(map[types.ConfigDomain][]compiledPublishRule)
	for _, rule := range rs.Rules {
		domain, ok := types.ParseConfigDomain(rule.Domain)
		if !ok {
			return nil, fmt.Errorf("publish guard: unknown domain %q", rule.Domain)
		}
		ast, issues := env.Compile(rule.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("publish guard: rule %s: %w", rule.RuleID, issues.Err())
		}
		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("publish guard: rule %s: %w", rule.RuleID, err)
		}
		rules[domain] = append(rules[domain], compiledPublishRule{
			ruleID:     rule.RuleID,
			reasonCode: strings.TrimSpace(rule.ReasonCode),
			program:    program,
		})
	}
	return &PublishGuard{rules: rules}, nil
}

func (g *PublishGuard) Check(domain types.ConfigDomain, activeItems []types.DraftItem) error {
	compiled := g.rules[domain]
	if len(compiled) == 0 {
		return nil
	}

	facts := buildPublishFacts(domain, activeItems)
	reasons := make([]string, 0)
	for _, rule := range compiled {
		out, _, err := rule.program.Eval(map[string]any{"facts": facts})
		if err != nil {
			return fmt.Errorf("publish guard: rule %s: %w", rule.ruleID, err)
		}
		ok, isBool := out.Value().(bool)
		if !isBool {
			return fmt.Errorf("publish guard: rule %s: expression is not boolean", rule.ruleID)
		}
		if !ok {
			reasons = append(reasons, rule.reasonCode)
		}
	}
	if len(reasons) > 0 {
		return httperr.NewFailedPrecondition("PUBLISH_PRECONDITION_FAILED", "draft set fails publish preconditions", reasons...)
	}
	return nil
}

// buildPublishFacts derives the aggregate values the rules can reference.
// weight_sum totals numeric "weight" fields found in item payloads; items
// without one contribute nothing.
func buildPublishFacts(domain types.ConfigDomain, items []types.DraftItem) map[string]any {
	weightSum := 0.0
	weighted := 0
	for _, item := range items {
		var payload map[string]any
		if err := json.Unmarshal(item.Payload, &payload); err != nil {
			continue
		}
		if w, ok := payload["weight"].(float64); ok {
			weightSum += w
			weighted++
		}
	}
	return map[string]any{
		"domain":         string(domain),
		"item_count":     len(items),
		"weighted_count": weighted,
		"weight_sum":     weightSum,
	}
}
