package memory

import (
	"context"
	"errors"
	"testing"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

func TestAlertStore_InsertAndGetActive(t *testing.T) {
	store := NewAlertStore()
	ctx := context.Background()

	alert := &domain.Alert{
		AlertID:   "alert1",
		AlertType: domain.AlertTypeCrawlFailure,
		Severity:  domain.SeverityWarning,
		Status:    domain.AlertStatusActive,
		SourceID:  "price-feed",
		Title:     "collector failing",
		CreatedAt: 1000,
	}

	if err := store.Insert(ctx, alert); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetActive(ctx, "price-feed", domain.AlertTypeCrawlFailure)
	if err != nil {
		t.Fatalf("GetActive failed: %v", err)
	}
	if got.AlertID != "alert1" {
		t.Errorf("AlertID mismatch: got %s", got.AlertID)
	}
}

func TestAlertStore_GetActive_IgnoresResolved(t *testing.T) {
	store := NewAlertStore()
	ctx := context.Background()

	alert := &domain.Alert{
		AlertID:   "alert1",
		AlertType: domain.AlertTypeCrawlFailure,
		Status:    domain.AlertStatusActive,
		SourceID:  "price-feed",
		CreatedAt: 1000,
	}
	if err := store.Insert(ctx, alert); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	resolvedAt := int64(2000)
	if err := store.UpdateStatus(ctx, "alert1", domain.AlertStatusResolved, &resolvedAt); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	_, err := store.GetActive(ctx, "price-feed", domain.AlertTypeCrawlFailure)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after resolve, got %v", err)
	}
}

func TestAlertStore_UpdateStatus_NotFound(t *testing.T) {
	store := NewAlertStore()

	err := store.UpdateStatus(context.Background(), "missing", domain.AlertStatusResolved, nil)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
