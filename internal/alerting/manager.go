// Package alerting tracks per-source failure streaks and manages the
// crawl-failure alert lifecycle.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// EventSink receives alert lifecycle notifications. Delivery is
// fire-and-forget: a slow or failing sink never blocks the pipeline.
type EventSink interface {
	AlertRaised(a *domain.Alert)
	AlertEscalated(a *domain.Alert)
	AlertResolved(a *domain.Alert)
}

// Manager maintains consecutive-failure streaks per source and drives the
// alert state machine: warning at the threshold, critical at twice the
// threshold, resolution plus a recovery notice on the first success.
type Manager struct {
	store     storage.AlertStore
	sink      EventSink
	threshold int
	logger    *log.Logger
	now       func() time.Time

	mu      sync.Mutex
	streaks map[string]int
}

// Options for creating a Manager.
type Options struct {
	Store     storage.AlertStore
	Sink      EventSink // optional
	Threshold int       // consecutive failures before alerting, default 3
	Logger    *log.Logger
}

// NewManager creates an alert manager.
func NewManager(opts Options) *Manager {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = 3
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		store:     opts.Store,
		sink:      opts.Sink,
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
		streaks:   make(map[string]int),
	}
}

// WithClock overrides the time source for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// RecordFailure registers one failed poll for a source. Below the threshold
// nothing happens. At the threshold an active warning alert is created,
// idempotently: an existing active alert is escalated at twice the
// threshold but never duplicated.
func (m *Manager) RecordFailure(ctx context.Context, sourceID, cause string) error {
	m.mu.Lock()
	m.streaks[sourceID]++
	streak := m.streaks[sourceID]
	m.mu.Unlock()

	if streak < m.threshold {
		return nil
	}

	active, err := m.store.GetActive(ctx, sourceID, domain.AlertTypeCrawlFailure)
	switch {
	case err == nil:
		return m.maybeEscalate(ctx, active, streak)
	case errors.Is(err, storage.ErrNotFound):
		return m.raise(ctx, sourceID, cause, streak)
	default:
		return fmt.Errorf("lookup active alert for %s: %w", sourceID, err)
	}
}

// RecordSuccess resets the source's streak. An active failure alert is
// resolved and a companion recovery notice is emitted so downstream
// consumers see the transition, not just the silence.
func (m *Manager) RecordSuccess(ctx context.Context, sourceID string) error {
	m.mu.Lock()
	hadStreak := m.streaks[sourceID] > 0
	m.streaks[sourceID] = 0
	m.mu.Unlock()

	if !hadStreak {
		return nil
	}

	active, err := m.store.GetActive(ctx, sourceID, domain.AlertTypeCrawlFailure)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup active alert for %s: %w", sourceID, err)
	}

	nowMs := m.now().UnixMilli()
	if err := m.store.UpdateStatus(ctx, active.AlertID, domain.AlertStatusResolved, &nowMs); err != nil {
		return fmt.Errorf("resolve alert %s: %w", active.AlertID, err)
	}
	active.Status = domain.AlertStatusResolved
	active.ResolvedAt = &nowMs

	recovery := &domain.Alert{
		AlertID:   uuid.NewString(),
		AlertType: domain.AlertTypeCrawlRecovered,
		Severity:  domain.SeverityInfo,
		Status:    domain.AlertStatusResolved,
		SourceID:  sourceID,
		Title:     fmt.Sprintf("source %s recovered", sourceID),
		Message:   fmt.Sprintf("source %s is collecting again after a failure streak", sourceID),
		CreatedAt: nowMs,
	}
	recovery.ResolvedAt = &nowMs
	if err := m.store.Insert(ctx, recovery); err != nil {
		return fmt.Errorf("insert recovery notice for %s: %w", sourceID, err)
	}

	m.logger.Printf("[alerting] source %s recovered, alert %s resolved", sourceID, active.AlertID)
	m.notify(func(s EventSink) { s.AlertResolved(active) })
	return nil
}

// Acknowledge marks an active alert as seen by an operator.
func (m *Manager) Acknowledge(ctx context.Context, alertID string) error {
	if err := m.store.UpdateStatus(ctx, alertID, domain.AlertStatusAcknowledged, nil); err != nil {
		return fmt.Errorf("acknowledge alert %s: %w", alertID, err)
	}
	return nil
}

func (m *Manager) raise(ctx context.Context, sourceID, cause string, streak int) error {
	alert := &domain.Alert{
		AlertID:   uuid.NewString(),
		AlertType: domain.AlertTypeCrawlFailure,
		Severity:  domain.SeverityWarning,
		Status:    domain.AlertStatusActive,
		SourceID:  sourceID,
		Title:     fmt.Sprintf("source %s failing", sourceID),
		Message:   fmt.Sprintf("source %s failed %d consecutive polls: %s", sourceID, streak, cause),
		Details:   map[string]string{"streak": fmt.Sprintf("%d", streak), "cause": cause},
		CreatedAt: m.now().UnixMilli(),
	}
	if err := m.store.Insert(ctx, alert); err != nil {
		return fmt.Errorf("insert alert for %s: %w", sourceID, err)
	}

	m.logger.Printf("[alerting] raised %s alert %s for source %s (streak %d)", alert.Severity, alert.AlertID, sourceID, streak)
	m.notify(func(s EventSink) { s.AlertRaised(alert) })
	return nil
}

// maybeEscalate bumps an active warning to critical once the streak reaches
// twice the threshold. Already-critical alerts are left alone.
func (m *Manager) maybeEscalate(ctx context.Context, active *domain.Alert, streak int) error {
	if active.Severity == domain.SeverityCritical || streak < 2*m.threshold {
		return nil
	}

	escalated := &domain.Alert{
		AlertID:   uuid.NewString(),
		AlertType: domain.AlertTypeCrawlFailure,
		Severity:  domain.SeverityCritical,
		Status:    domain.AlertStatusActive,
		SourceID:  active.SourceID,
		Title:     fmt.Sprintf("source %s still failing", active.SourceID),
		Message:   fmt.Sprintf("source %s failed %d consecutive polls", active.SourceID, streak),
		Details:   map[string]string{"streak": fmt.Sprintf("%d", streak), "supersedes": active.AlertID},
		CreatedAt: m.now().UnixMilli(),
	}

	// The superseded warning resolves so the (source, type) active-alert
	// uniqueness holds.
	nowMs := m.now().UnixMilli()
	if err := m.store.UpdateStatus(ctx, active.AlertID, domain.AlertStatusResolved, &nowMs); err != nil {
		return fmt.Errorf("supersede alert %s: %w", active.AlertID, err)
	}
	if err := m.store.Insert(ctx, escalated); err != nil {
		return fmt.Errorf("insert escalated alert for %s: %w", active.SourceID, err)
	}

	m.logger.Printf("[alerting] escalated source %s to critical (streak %d)", active.SourceID, streak)
	m.notify(func(s EventSink) { s.AlertEscalated(escalated) })
	return nil
}

func (m *Manager) notify(fn func(EventSink)) {
	if m.sink == nil {
		return
	}
	go fn(m.sink)
}
