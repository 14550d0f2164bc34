package mealplan

// ProvenanceCounts records how many cells each tier contributed.
// Invariant: DBSlots + HistorySlots + AISlots == TotalSlots once complete.
type ProvenanceCounts struct {
	TotalSlots   int `json:"totalSlots"`
	DBSlots      int `json:"dbSlots"`
	HistorySlots int `json:"historySlots"`
	AISlots      int `json:"aiSlots"`
}

// DBCoverage is the db-sourced share of filled cells.
func (p ProvenanceCounts) DBCoverage() float64 {
	if p.TotalSlots == 0 {
		return 0
	}
	return float64(p.DBSlots) / float64(p.TotalSlots)
}

// Filled is the number of cells any tier has accounted for.
func (p ProvenanceCounts) Filled() int {
	return p.DBSlots + p.HistorySlots + p.AISlots
}

// VarietyScorecard is the diversity report computed over a finished plan.
type VarietyScorecard struct {
	DistinctVegetables     int      `json:"distinctVegetables"`
	DistinctProteinSources int      `json:"distinctProteinSources"`
	MaxSameRecipeRepeats   int      `json:"maxSameRecipeRepeats"`
	TargetsMet             bool     `json:"targetsMet"`
	Shortfalls             []string `json:"shortfalls,omitempty"`
	AttemptsUsed           int      `json:"attemptsUsed"`
}

// ScalingRecord documents the household-scaling pass.
type ScalingRecord struct {
	Policy        ScalingPolicy `json:"policy"`
	HouseholdSize int           `json:"householdSize"`
	Applied       bool          `json:"applied"`
}

// GuardrailsSummary is the content-hash-stamped allow/block decision attached
// as metadata. It never participates in generation control flow.
type GuardrailsSummary struct {
	Allowed     bool     `json:"allowed"`
	ContentHash string   `json:"contentHash"`
	Version     string   `json:"version"`
	Reasons     []string `json:"reasons,omitempty"`
}

// Metadata is the plan's observability bag: provenance, coverage, fallback
// reasons, variety, scaling and guardrails results.
type Metadata struct {
	Provenance      ProvenanceCounts       `json:"provenance"`
	SlotSources     map[string]Tier        `json:"slotSources"`
	FallbackReasons map[FallbackReason]int `json:"fallbackReasons,omitempty"`
	Variety         VarietyScorecard       `json:"variety"`
	Scaling         ScalingRecord          `json:"scaling"`
	Guardrails      GuardrailsSummary      `json:"guardrails"`
}

// NewMetadata prepares an empty metadata bag for a draft skeleton.
func NewMetadata(totalSlots int) Metadata {
	return Metadata{
		Provenance:      ProvenanceCounts{TotalSlots: totalSlots},
		SlotSources:     make(map[string]Tier),
		FallbackReasons: make(map[FallbackReason]int),
	}
}

// RecordSource attributes a filled cell to a tier.
func (m *Metadata) RecordSource(cell CellRef, tier Tier) {
	if prev, ok := m.SlotSources[cell.Key()]; ok {
		// re-fill during retry: release the earlier attribution first
		m.decrement(prev)
	}
	m.SlotSources[cell.Key()] = tier
	switch tier {
	case TierDB:
		m.Provenance.DBSlots++
	case TierHistory:
		m.Provenance.HistorySlots++
	case TierAI:
		m.Provenance.AISlots++
	}
}

// RecordFallback counts one deferral reason in the histogram.
func (m *Metadata) RecordFallback(reason FallbackReason) {
	m.FallbackReasons[reason]++
}

// Clone deep-copies the metadata bag.
func (m Metadata) Clone() Metadata {
	out := m
	out.SlotSources = make(map[string]Tier, len(m.SlotSources))
	for k, v := range m.SlotSources {
		out.SlotSources[k] = v
	}
	out.FallbackReasons = make(map[FallbackReason]int, len(m.FallbackReasons))
	for k, v := range m.FallbackReasons {
		out.FallbackReasons[k] = v
	}
	out.Variety.Shortfalls = append([]string(nil), m.Variety.Shortfalls...)
	out.Guardrails.Reasons = append([]string(nil), m.Guardrails.Reasons...)
	return out
}

func (m *Metadata) decrement(tier Tier) {
	switch tier {
	case TierDB:
		m.Provenance.DBSlots--
	case TierHistory:
		m.Provenance.HistorySlots--
	case TierAI:
		m.Provenance.AISlots--
	}
}
