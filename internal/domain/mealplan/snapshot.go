package mealplan

import (
	"encoding/json"
	"fmt"
)

// SnapshotKind tags the variant stored in a snapshot column.
type SnapshotKind string

const (
	SnapshotKindRequest    SnapshotKind = "request"
	SnapshotKindRules      SnapshotKind = "rules"
	SnapshotKindPlan       SnapshotKind = "plan"
	SnapshotKindEnrichment SnapshotKind = "enrichment"
)

// Current schema versions, one per snapshot kind so each can evolve
// independently.
const (
	RequestSnapshotVersion    = 1
	RulesSnapshotVersion      = 1
	PlanSnapshotVersion       = 1
	EnrichmentSnapshotVersion = 1
)

// Snapshot is the tagged-variant envelope persisted in snapshot columns.
// Schema evolution is explicit: readers dispatch on Kind and Version instead
// of structurally inferring what the payload holds.
type Snapshot struct {
	Kind    SnapshotKind    `json:"kind"`
	Version int             `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

// PlanPayload is the persisted form of a plan's day list plus metadata.
type PlanPayload struct {
	Days     []MealPlanDay `json:"days"`
	Metadata Metadata      `json:"metadata"`
}

// EnrichmentPayload is the persisted enrichment text, if any.
type EnrichmentPayload struct {
	Summary string            `json:"summary,omitempty"`
	PerDay  map[string]string `json:"perDay,omitempty"`
}

func newSnapshot(kind SnapshotKind, version int, payload interface{}) (Snapshot, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Snapshot{}, fmt.Errorf("marshal %s snapshot: %w", kind, err)
	}
	return Snapshot{Kind: kind, Version: version, Payload: raw}, nil
}

// NewRequestSnapshot freezes a request.
func NewRequestSnapshot(request PlanRequest) (Snapshot, error) {
	return newSnapshot(SnapshotKindRequest, RequestSnapshotVersion, request)
}

// NewRulesSnapshot freezes a derived rule set.
func NewRulesSnapshot(rules DietRuleSet) (Snapshot, error) {
	return newSnapshot(SnapshotKindRules, RulesSnapshotVersion, rules)
}

// NewPlanSnapshot freezes a finished plan body.
func NewPlanSnapshot(days []MealPlanDay, metadata Metadata) (Snapshot, error) {
	return newSnapshot(SnapshotKindPlan, PlanSnapshotVersion, PlanPayload{Days: days, Metadata: metadata})
}

// NewEnrichmentSnapshot freezes enrichment text.
func NewEnrichmentSnapshot(payload EnrichmentPayload) (Snapshot, error) {
	return newSnapshot(SnapshotKindEnrichment, EnrichmentSnapshotVersion, payload)
}

// Decode unmarshals the payload after checking the envelope tag.
func (s Snapshot) Decode(kind SnapshotKind, version int, out interface{}) error {
	if s.Kind != kind {
		return fmt.Errorf("snapshot kind mismatch: have %q, want %q", s.Kind, kind)
	}
	if s.Version != version {
		return fmt.Errorf("unsupported %s snapshot version %d", s.Kind, s.Version)
	}
	return json.Unmarshal(s.Payload, out)
}

// DecodeRequest unpacks a request snapshot.
func (s Snapshot) DecodeRequest() (PlanRequest, error) {
	var req PlanRequest
	err := s.Decode(SnapshotKindRequest, RequestSnapshotVersion, &req)
	return req, err
}

// DecodeRules unpacks a rules snapshot.
func (s Snapshot) DecodeRules() (DietRuleSet, error) {
	var rules DietRuleSet
	err := s.Decode(SnapshotKindRules, RulesSnapshotVersion, &rules)
	return rules, err
}

// DecodePlan unpacks a plan snapshot.
func (s Snapshot) DecodePlan() (PlanPayload, error) {
	var payload PlanPayload
	err := s.Decode(SnapshotKindPlan, PlanSnapshotVersion, &payload)
	return payload, err
}
