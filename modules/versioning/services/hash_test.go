package services

import (
	"encoding/json"
	"testing"
)

func TestContentHashStableAcrossKeyOrder(t *testing.T) {
	a, err := ContentHash(json.RawMessage(`{"weight": 40, "label": "Data Quality"}`), 1)
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	b, err := ContentHash(json.RawMessage(`{"label":"Data Quality","weight":40}`), 1)
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}
	if a != b {
		t.Fatalf("hashes differ for equivalent payloads: %s vs %s", a, b)
	}
}

func TestContentHashSensitiveToPayloadAndSortOrder(t *testing.T) {
	base, err := ContentHash(json.RawMessage(`{"weight":40}`), 1)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	changedPayload, err := ContentHash(json.RawMessage(`{"weight":60}`), 1)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	changedOrder, err := ContentHash(json.RawMessage(`{"weight":40}`), 2)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if base == changedPayload {
		t.Fatalf("payload change did not change hash")
	}
	if base == changedOrder {
		t.Fatalf("sort order change did not change hash")
	}
}

func TestContentHashRejectsInvalidJSON(t *testing.T) {
	if _, err := ContentHash(json.RawMessage(`{not json`), 1); err == nil {
		t.Fatalf("expected error for invalid payload")
	}
}
