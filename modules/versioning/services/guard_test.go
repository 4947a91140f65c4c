package services

import (
	"encoding/json"
	"testing"

	"github.com/kestrelrisk/mrg-console/modules/versioning/domain/types"
	"github.com/kestrelrisk/mrg-console/pkg/httperr"
)

func TestParsePublishRulesYAML(t *testing.T) {
	rs, err := ParsePublishRulesYAML([]byte(`
version: 1
rules:
  - domain: scorecard
    rule_id: weight-sum
    expr: 'facts.weight_sum == 100.0'
    reason_code: SCORECARD_WEIGHTS_MUST_SUM_TO_100
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rs.Rules) != 1 || rs.Rules[0].RuleID != "weight-sum" {
		t.Fatalf("rules = %+v", rs.Rules)
	}
}

func TestParsePublishRulesYAMLRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"wrong version", "version: 2\nrules: []\n"},
		{"missing reason", "version: 1\nrules:\n  - domain: scorecard\n    rule_id: r\n    expr: 'true'\n"},
		{"unknown domain", "version: 1\nrules:\n  - domain: nope\n    rule_id: r\n    expr: 'true'\n    reason_code: X\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParsePublishRulesYAML([]byte(tc.yaml)); err == nil {
				t.Fatalf("expected parse error")
			}
		})
	}
}

func TestNewPublishGuardRejectsUncompilableExpr(t *testing.T) {
	_, err := NewPublishGuard(PublishRuleset{Version: 1, Rules: []PublishRule{{
		Domain: "scorecard", RuleID: "broken", Expr: "facts ==", ReasonCode: "X",
	}}})
	if err == nil {
		t.Fatalf("expected compile error")
	}
}

func weightGuard(t *testing.T) *PublishGuard {
	t.Helper()
	guard, err := NewPublishGuard(PublishRuleset{Version: 1, Rules: []PublishRule{{
		Domain:     "scorecard",
		RuleID:     "weight-sum",
		Expr:       "facts.item_count == 0 || facts.weight_sum == 100.0",
		ReasonCode: "SCORECARD_WEIGHTS_MUST_SUM_TO_100",
	}}})
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	return guard
}

func TestPublishGuardCheck(t *testing.T) {
	guard := weightGuard(t)

	// Empty set publishes freely.
	if err := guard.Check(types.DomainScorecard, nil); err != nil {
		t.Fatalf("empty set: %v", err)
	}

	// Sum of 100 passes.
	ok := []types.DraftItem{
		{ItemID: "a", Active: true, Payload: json.RawMessage(`{"weight":60}`)},
		{ItemID: "b", Active: true, Payload: json.RawMessage(`{"weight":40}`)},
	}
	if err := guard.Check(types.DomainScorecard, ok); err != nil {
		t.Fatalf("sum 100: %v", err)
	}

	// Sum of 90 fails with the configured reason.
	bad := []types.DraftItem{
		{ItemID: "a", Active: true, Payload: json.RawMessage(`{"weight":60}`)},
		{ItemID: "b", Active: true, Payload: json.RawMessage(`{"weight":30}`)},
	}
	err := guard.Check(types.DomainScorecard, bad)
	if !httperr.IsFailedPrecondition(err) {
		t.Fatalf("err = %v, want FailedPrecondition", err)
	}
	reasons, _ := httperr.PreconditionReasons(err)
	if len(reasons) != 1 || reasons[0] != "SCORECARD_WEIGHTS_MUST_SUM_TO_100" {
		t.Fatalf("reasons = %v", reasons)
	}

	// Domains without rules are unguarded.
	if err := guard.Check(types.DomainResidualRiskMap, bad); err != nil {
		t.Fatalf("unguarded domain: %v", err)
	}
}
