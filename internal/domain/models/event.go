package models

import "time"

// Direction of the underlying move or tone of an event.
const (
	DirectionPositive = "positive"
	DirectionNegative = "negative"
	DirectionMixed    = "mixed"
	DirectionNeutral  = "neutral"
)

// Entity is a typed reference extracted from an event (ticker, fund, location...).
type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// DomainEvent is a normalized, scored signal emitted by one domain detector
// and consumed by the fusion engine.
type DomainEvent struct {
	ID        string    `json:"id"`
	Tenant    string    `json:"tenant,omitempty"`
	Domain    string    `json:"domain"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Severity  int       `json:"severity"` // 1..100
	Direction string    `json:"direction"`
	Sentiment string    `json:"sentiment,omitempty"`
	Keywords  []string  `json:"keywords,omitempty"`
	Entities  []Entity  `json:"entities,omitempty"`
	Rationale string    `json:"rationale,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MatchInfo describes why a group of events was correlated.
type MatchInfo struct {
	Type  string `json:"type"` // symbol | keyword | location
	Value string `json:"value"`
}

const (
	MatchTypeSymbol   = "symbol"
	MatchTypeKeyword  = "keyword"
	MatchTypeLocation = "location"
)

// Impact hints derived from fused severity.
const (
	ImpactHighAttention  = "high attention"
	ImpactWorthTracking  = "worth tracking"
	ImpactInformational  = "informational"
	ImpactHighThreshold  = 70
	ImpactTrackThreshold = 50
)

// FusedEvent is a synthesized event representing a correlated cross-domain group.
type FusedEvent struct {
	DomainEvent

	MatchedBy  MatchInfo `json:"matchedBy"`
	Domains    []string  `json:"domains"`
	SourceIDs  []string  `json:"sourceIds"`
	ImpactHint string    `json:"impactHint"`
}

// ImpactHintFor maps a severity score to its qualitative label.
func ImpactHintFor(severity int) string {
	switch {
	case severity >= ImpactHighThreshold:
		return ImpactHighAttention
	case severity >= ImpactTrackThreshold:
		return ImpactWorthTracking
	default:
		return ImpactInformational
	}
}
