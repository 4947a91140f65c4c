package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/kestrelrisk/mrg-console/modules/versioning/domain/types"
)

// ContentHash fingerprints the policy-relevant fields of a draft item: the
// domain payload and the ordering key. Audit metadata (timestamps, actors)
// is deliberately excluded so that a no-op save never reads as drift.
func ContentHash(payload json.RawMessage, sortOrder int) (string, error) {
	canonical, err := canonicalJSON(payload)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write(canonical)
	fmt.Fprintf(h, "|%d", sortOrder)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// canonicalJSON re-encodes the payload so key order and whitespace do not
// affect the hash. encoding/json marshals map keys sorted.
func canonicalJSON(payload json.RawMessage) ([]byte, error) {
	if len(payload) == 0 {
		return []byte("null"), nil
	}
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func freezeItem(item types.DraftItem) (types.FrozenItem, error) {
	hash, err := ContentHash(item.Payload, item.SortOrder)
	if err != nil {
		return types.FrozenItem{}, err
	}
	return types.FrozenItem{
		ItemID:      item.ItemID,
		SortOrder:   item.SortOrder,
		ContentHash: hash,
		Payload:     append(json.RawMessage(nil), item.Payload...),
	}, nil
}
