package routing

import "testing"

func TestParseAllowlistYAMLRejectsUnsupportedVersion(t *testing.T) {
	_, err := ParseAllowlistYAML([]byte("version: 2\nroutes:\n  - path: /health\n    methods: [GET]\n    route_class: ops\n"))
	if err == nil {
		t.Fatalf("expected error for unsupported version")
	}
}

func TestParseAllowlistYAMLRejectsEmptyRoutes(t *testing.T) {
	_, err := ParseAllowlistYAML([]byte("version: 1\nroutes: []\n"))
	if err == nil {
		t.Fatalf("expected error for empty routes")
	}
}

func TestParseAllowlistYAMLParsesRoutes(t *testing.T) {
	a, err := ParseAllowlistYAML([]byte(`
version: 1
routes:
  - path: /config/{domain}/publish
    methods: [POST]
    route_class: internal_api
  - path: /health
    methods: [GET]
    route_class: ops
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(a.Routes) != 2 {
		t.Fatalf("routes = %d, want 2", len(a.Routes))
	}
	if a.Routes[0].Path != "/config/{domain}/publish" || a.Routes[0].RouteClass != "internal_api" {
		t.Fatalf("unexpected first route: %+v", a.Routes[0])
	}
}
