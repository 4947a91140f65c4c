package routing

import "testing"

func TestParsePathPattern(t *testing.T) {
	if _, ok := parsePathPattern("/config/versions"); ok {
		t.Fatalf("literal path should not parse as pattern")
	}
	if _, ok := parsePathPattern("config/{domain}"); ok {
		t.Fatalf("pattern must start with /")
	}
	if _, ok := parsePathPattern("/config/{}"); ok {
		t.Fatalf("empty param should not parse")
	}
	if _, ok := parsePathPattern("/config/{domain}/versions/{version_id}"); !ok {
		t.Fatalf("two-param pattern should parse")
	}
}

func TestPathPatternMatch(t *testing.T) {
	p, ok := parsePathPattern("/config/{domain}/versions/{version_id}")
	if !ok {
		t.Fatalf("parse failed")
	}
	if !p.Match("/config/scorecard/versions/abc-123") {
		t.Fatalf("expected match")
	}
	if p.Match("/config/scorecard/versions") {
		t.Fatalf("shorter path must not match")
	}
	if p.Match("/config//versions/abc") {
		t.Fatalf("empty segment must not match")
	}
	if p.Match("/config/scorecard/bindings/abc") {
		t.Fatalf("literal mismatch must not match")
	}
}
