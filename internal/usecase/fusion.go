package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"SignalFuse/internal/domain/models"
	drepo "SignalFuse/internal/domain/repository"
	"SignalFuse/pkg/logger"

	"github.com/google/uuid"
)

// entity types eligible for the entity-match pass
var fusableEntityTypes = map[string]bool{
	"ticker": true,
	"fund":   true,
	"future": true,
}

// FusionEngine correlates recent cross-domain events into fused events.
// Entity matching runs first and claims its members; the keyword-overlap pass
// only sees what is left. Each event joins at most one fused event per cycle.
type FusionEngine struct {
	events  drepo.EventStore
	alerts  drepo.AlertSink
	metrics drepo.Metrics
	audit   drepo.AuditLog
	log     *logger.Logger
	window  time.Duration
	now     func() time.Time
}

// FusionOption configures FusionEngine.
type FusionOption func(*FusionEngine)

// WithFusionWindow sets the trailing correlation window.
func WithFusionWindow(d time.Duration) FusionOption {
	return func(f *FusionEngine) {
		if d > 0 {
			f.window = d
		}
	}
}

// WithFusionClock overrides the time source (tests).
func WithFusionClock(now func() time.Time) FusionOption {
	return func(f *FusionEngine) { f.now = now }
}

// NewFusionEngine creates the fusion use case.
func NewFusionEngine(
	events drepo.EventStore,
	alerts drepo.AlertSink,
	metrics drepo.Metrics,
	audit drepo.AuditLog,
	log *logger.Logger,
	opts ...FusionOption,
) *FusionEngine {
	f := &FusionEngine{
		events:  events,
		alerts:  alerts,
		metrics: metrics,
		audit:   audit,
		log:     log,
		window:  10 * time.Minute,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run executes one fusion cycle. It never returns an error: a fatal failure
// before correlation is reflected as success=false in the result.
func (f *FusionEngine) Run(ctx context.Context, trigger string) *models.FusionResult {
	start := f.now()
	f.metrics.RecordFusionRun()

	result := &models.FusionResult{
		Success:   true,
		Errors:    []string{},
		Timestamp: start,
	}

	candidates, err := f.events.EventsSince(ctx, start.Add(-f.window), models.FusionSourceDomains)
	if err != nil {
		f.metrics.RecordError("fusion_read")
		f.log.Error("fusion candidate read failed", logger.Error(err))
		result.Success = false
		result.Errors = append(result.Errors, fmt.Sprintf("read candidates: %v", err))
		return result
	}
	result.Processed = len(candidates)

	if len(candidates) < 2 {
		return result
	}

	claimed := make(map[string]bool, len(candidates))
	groups := f.entityPass(candidates, claimed)
	groups = append(groups, f.keywordPass(candidates, claimed)...)

	for _, g := range groups {
		fused := f.buildFused(g.members, g.match)
		if err := f.events.SaveFused(ctx, fused); err != nil {
			f.metrics.RecordError("fused_save")
			f.log.Error("fused event persist failed",
				logger.String("match", g.match.Value), logger.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("persist %s: %v", g.match.Value, err))
			continue
		}
		if err := f.alerts.Publish(ctx, fused); err != nil {
			f.metrics.RecordError("alert_publish")
			f.log.Error("alert publish failed",
				logger.String("match", g.match.Value), logger.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("alert %s: %v", g.match.Value, err))
		}
		f.metrics.RecordFusedEvent(fused.MatchedBy.Type)
		result.Fused++
	}

	f.metrics.RecordLatency("fusion_engine", f.now().Sub(start).Seconds())
	if f.audit != nil {
		f.audit.RecordRun("fusion-engine", trigger, result.Processed, result.Fused, len(result.Errors))
	}
	return result
}

type correlationGroup struct {
	members []*models.DomainEvent
	match   models.MatchInfo
}

// entityPass groups candidates by normalized entity value for ticker-like
// entity types. Groups with at least 2 events across at least 2 domains are
// correlated and their members marked claimed.
func (f *FusionEngine) entityPass(candidates []*models.DomainEvent, claimed map[string]bool) []correlationGroup {
	byEntity := make(map[string][]*models.DomainEvent)
	var order []string

	for _, e := range candidates {
		joined := make(map[string]bool) // an event joins each entity key once
		for _, ent := range e.Entities {
			if !fusableEntityTypes[strings.ToLower(ent.Type)] {
				continue
			}
			key := strings.ToLower(strings.TrimSpace(ent.Value))
			if key == "" || joined[key] {
				continue
			}
			joined[key] = true
			if _, ok := byEntity[key]; !ok {
				order = append(order, key)
			}
			byEntity[key] = append(byEntity[key], e)
		}
	}

	var groups []correlationGroup
	for _, key := range order {
		var members []*models.DomainEvent
		domains := make(map[string]bool)
		for _, e := range byEntity[key] {
			if claimed[e.ID] {
				continue
			}
			members = append(members, e)
			domains[e.Domain] = true
		}
		if len(members) < 2 || len(domains) < 2 {
			continue
		}
		for _, e := range members {
			claimed[e.ID] = true
		}
		groups = append(groups, correlationGroup{
			members: members,
			match:   models.MatchInfo{Type: models.MatchTypeSymbol, Value: strings.ToUpper(key)},
		})
	}
	return groups
}

// keywordPass pairs unclaimed cross-domain events sharing at least 2
// lower-cased keywords. Pairwise only, no transitive closure: once a pair
// claims an event it cannot join another.
func (f *FusionEngine) keywordPass(candidates []*models.DomainEvent, claimed map[string]bool) []correlationGroup {
	var groups []correlationGroup

	for i := 0; i < len(candidates); i++ {
		a := candidates[i]
		if claimed[a.ID] {
			continue
		}
		for j := i + 1; j < len(candidates); j++ {
			b := candidates[j]
			if claimed[b.ID] || a.Domain == b.Domain {
				continue
			}
			shared := sharedKeywords(a.Keywords, b.Keywords)
			if len(shared) < 2 {
				continue
			}
			claimed[a.ID] = true
			claimed[b.ID] = true
			groups = append(groups, correlationGroup{
				members: []*models.DomainEvent{a, b},
				match:   models.MatchInfo{Type: models.MatchTypeKeyword, Value: strings.Join(shared, ",")},
			})
			break
		}
	}
	return groups
}

// sharedKeywords returns the lower-cased intersection in a's encounter order.
func sharedKeywords(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, k := range b {
		inB[strings.ToLower(k)] = true
	}
	var shared []string
	seen := make(map[string]bool)
	for _, k := range a {
		lk := strings.ToLower(k)
		if inB[lk] && !seen[lk] {
			seen[lk] = true
			shared = append(shared, lk)
		}
	}
	return shared
}

// buildFused synthesizes one fused event from a correlated group.
func (f *FusionEngine) buildFused(members []*models.DomainEvent, match models.MatchInfo) *models.FusedEvent {
	var (
		maxSeverity int
		domains     []string
		sourceIDs   []string
		keywords    []string
		entities    []models.Entity
		hasNegative bool
		hasPositive bool
	)
	seenDomain := make(map[string]bool)
	seenKeyword := make(map[string]bool)
	seenEntity := make(map[string]bool)

	for _, e := range members {
		if e.Severity > maxSeverity {
			maxSeverity = e.Severity
		}
		if !seenDomain[e.Domain] {
			seenDomain[e.Domain] = true
			domains = append(domains, e.Domain)
		}
		sourceIDs = append(sourceIDs, e.ID)
		switch e.Direction {
		case models.DirectionNegative:
			hasNegative = true
		case models.DirectionPositive:
			hasPositive = true
		}
		for _, k := range e.Keywords {
			lk := strings.ToLower(k)
			if !seenKeyword[lk] {
				seenKeyword[lk] = true
				keywords = append(keywords, lk)
			}
		}
		for _, ent := range e.Entities {
			key := strings.ToLower(ent.Type + ":" + ent.Value)
			if !seenEntity[key] {
				seenEntity[key] = true
				entities = append(entities, ent)
			}
		}
	}

	if len(keywords) > 10 {
		keywords = keywords[:10]
	}
	if len(entities) > 10 {
		entities = entities[:10]
	}

	severity := maxSeverity + 10*(len(domains)-1)
	if severity > 100 {
		severity = 100
	}

	direction := models.DirectionMixed
	switch {
	case hasNegative:
		direction = models.DirectionNegative
	case hasPositive:
		direction = models.DirectionPositive
	}

	return &models.FusedEvent{
		DomainEvent: models.DomainEvent{
			ID:        uuid.NewString(),
			Tenant:    members[0].Tenant,
			Domain:    models.DomainFusion,
			Type:      "cross_domain_correlation",
			Title:     fmt.Sprintf("Correlated %s activity across %s", match.Value, strings.Join(domains, ", ")),
			Severity:  severity,
			Direction: direction,
			Sentiment: direction,
			Keywords:  keywords,
			Entities:  entities,
			Timestamp: f.now(),
		},
		MatchedBy:  match,
		Domains:    domains,
		SourceIDs:  sourceIDs,
		ImpactHint: models.ImpactHintFor(severity),
	}
}
