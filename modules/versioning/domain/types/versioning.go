// Package types holds the data model for the versioned-configuration engine:
// mutable draft items, immutable numbered version snapshots, and the
// consumer bindings that pin downstream records to a snapshot.
package types

import (
	"encoding/json"
	"strings"
	"time"
)

// ConfigDomain is an independently versioned configuration area. Domains
// never cross-reference each other's versions.
type ConfigDomain string

const (
	DomainScorecard            ConfigDomain = "scorecard"
	DomainComponentDefinitions ConfigDomain = "component-definitions"
	DomainResidualRiskMap      ConfigDomain = "residual-risk-map"
)

func AllConfigDomains() []ConfigDomain {
	return []ConfigDomain{DomainScorecard, DomainComponentDefinitions, DomainResidualRiskMap}
}

func ParseConfigDomain(raw string) (ConfigDomain, bool) {
	switch ConfigDomain(strings.ToLower(strings.TrimSpace(raw))) {
	case DomainScorecard:
		return DomainScorecard, true
	case DomainComponentDefinitions:
		return DomainComponentDefinitions, true
	case DomainResidualRiskMap:
		return DomainResidualRiskMap, true
	default:
		return "", false
	}
}

// DraftItem is a currently mutable configuration row. The payload carries the
// domain-specific fields (a section/criteria tree, a component definition
// row, a matrix cell); the engine treats it as opaque JSON.
type DraftItem struct {
	ItemID    string          `json:"item_id"`
	SortOrder int             `json:"sort_order"`
	Active    bool            `json:"active"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (i DraftItem) Clone() DraftItem {
	i.Payload = append(json.RawMessage(nil), i.Payload...)
	return i
}

// FrozenItem is the deep copy of a draft item taken at publish time. It is
// never mutated after the owning Version is written.
type FrozenItem struct {
	ItemID      string          `json:"item_id"`
	SortOrder   int             `json:"sort_order"`
	ContentHash string          `json:"content_hash"`
	Payload     json.RawMessage `json:"payload"`
}

func (i FrozenItem) Clone() FrozenItem {
	i.Payload = append(json.RawMessage(nil), i.Payload...)
	return i
}

// Version is an immutable snapshot of a domain's active draft items.
// Version numbers start at 1 and strictly increase per domain; exactly one
// version per domain is active at any time once any exists.
type Version struct {
	VersionID     string       `json:"version_id"`
	Domain        ConfigDomain `json:"domain"`
	VersionNumber int          `json:"version_number"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	PublishedAt   time.Time    `json:"published_at"`
	PublishedBy   string       `json:"published_by"`
	IsActive      bool         `json:"is_active"`
	Items         []FrozenItem `json:"items"`
}

func (v Version) Clone() Version {
	items := make([]FrozenItem, 0, len(v.Items))
	for _, item := range v.Items {
		items = append(items, item.Clone())
	}
	v.Items = items
	return v
}

// Binding pins a downstream consumer (a published scorecard instance, a
// locked validation plan) to the version that was active when it locked.
type Binding struct {
	ConsumerID string       `json:"consumer_id"`
	Domain     ConfigDomain `json:"domain"`
	VersionID  string       `json:"version_id"`
	BoundAt    time.Time    `json:"bound_at"`
}

type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeRemoved  ChangeKind = "removed"
	ChangeModified ChangeKind = "modified"
)

type Change struct {
	Kind   ChangeKind `json:"kind"`
	ItemID string     `json:"item_id"`
}

// ChangeSet is the drift between a domain's draft set and its active version.
type ChangeSet struct {
	Domain  ConfigDomain `json:"domain"`
	Dirty   bool         `json:"dirty"`
	Changes []Change     `json:"changes"`
}
