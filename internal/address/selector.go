package address

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/trikooo/storefront/internal/domain"
)

// SelectionStore is the slice of the guest store the selector needs.
type SelectionStore interface {
	SelectedAddress(ctx context.Context, guestID string) (*domain.Address, error)
	SetSelectedAddress(ctx context.Context, guestID string, addr domain.Address) error
	ClearSelectedAddress(ctx context.Context, guestID string) error
}

// Selector maintains the active checkout address. The saved selection, when
// present, is always structurally complete and matched a known address at the
// time it was saved.
type Selector struct {
	store SelectionStore
	log   *zap.Logger
}

func NewSelector(store SelectionStore, log *zap.Logger) *Selector {
	return &Selector{store: store, log: log}
}

// Restore resolves the active selection against the known address list.
// A saved selection survives only if it is complete and still matches one of
// the known addresses; otherwise the first known address wins, or the empty
// sentinel when the list is empty, and the stale entry is removed.
func (s *Selector) Restore(ctx context.Context, guestID string, known []domain.Address) (domain.Address, error) {
	saved, err := s.store.SelectedAddress(ctx, guestID)
	if err != nil {
		return domain.Address{}, fmt.Errorf("failed to load saved selection: %w", err)
	}

	if saved != nil && saved.IsComplete() && matchesAny(*saved, known) {
		return *saved, nil
	}

	if saved != nil {
		if err := s.store.ClearSelectedAddress(ctx, guestID); err != nil {
			s.log.Warn("failed to remove stale selection", zap.String("guest_id", guestID), zap.Error(err))
		}
	}

	if len(known) > 0 {
		return known[0], nil
	}
	return domain.Address{}, nil
}

// Current returns the saved selection without cross-checking it against a
// known list, for callers that only need a trustworthy checkout address. An
// incomplete saved entry is removed and the sentinel returned.
func (s *Selector) Current(ctx context.Context, guestID string) (domain.Address, error) {
	saved, err := s.store.SelectedAddress(ctx, guestID)
	if err != nil {
		return domain.Address{}, fmt.Errorf("failed to load saved selection: %w", err)
	}
	if saved == nil {
		return domain.Address{}, nil
	}

	if !saved.IsComplete() {
		if err := s.store.ClearSelectedAddress(ctx, guestID); err != nil {
			s.log.Warn("failed to remove incomplete selection", zap.String("guest_id", guestID), zap.Error(err))
		}
		return domain.Address{}, nil
	}

	return *saved, nil
}

// Select records addr as the active selection. The sentinel clears the saved
// entry; an incomplete address clears it too, because incomplete data must
// never be persisted as the selection.
func (s *Selector) Select(ctx context.Context, guestID string, addr domain.Address) error {
	if addr.IsEmpty() || !addr.IsComplete() {
		if err := s.store.ClearSelectedAddress(ctx, guestID); err != nil {
			return fmt.Errorf("failed to clear selection: %w", err)
		}
		return nil
	}

	if err := s.store.SetSelectedAddress(ctx, guestID, addr); err != nil {
		return fmt.Errorf("failed to save selection: %w", err)
	}
	return nil
}

func matchesAny(addr domain.Address, known []domain.Address) bool {
	for _, k := range known {
		if addr.SameLocation(k) {
			return true
		}
	}
	return false
}
