package gueststore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/trikooo/storefront/internal/domain"
)

// KV is the narrow storage surface the guest store needs. Consumers define
// this interface, not the Redis implementation.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
}

var ErrNotFound = errors.New("guest store: key not found")

// Store holds a guest's pre-authentication state: cart items, addresses and
// the currently selected address. Entries are JSON blobs validated on every
// read; a blob that fails to decode is deleted and replaced by the empty
// default so corrupt local data never propagates.
type Store struct {
	kv  KV
	log *zap.Logger
}

func NewStore(kv KV, log *zap.Logger) *Store {
	return &Store{kv: kv, log: log}
}

func cartKey(guestID string) string {
	return fmt.Sprintf("guest:%s:cart", guestID)
}

func addressesKey(guestID string) string {
	return fmt.Sprintf("guest:%s:addresses", guestID)
}

func selectedKey(guestID string) string {
	return fmt.Sprintf("guest:%s:selected_address", guestID)
}

// Cart returns the guest's cart items, or an empty slice when none are
// stored. A corrupt entry is dropped, not surfaced.
func (s *Store) Cart(ctx context.Context, guestID string) ([]domain.CartItem, error) {
	var items []domain.CartItem
	ok, err := s.read(ctx, cartKey(guestID), &items)
	if err != nil || !ok {
		return nil, err
	}
	return items, nil
}

func (s *Store) SetCart(ctx context.Context, guestID string, items []domain.CartItem) error {
	return s.write(ctx, cartKey(guestID), items)
}

func (s *Store) ClearCart(ctx context.Context, guestID string) error {
	return s.kv.Del(ctx, cartKey(guestID))
}

// Addresses returns the guest's saved addresses, empty when none.
func (s *Store) Addresses(ctx context.Context, guestID string) ([]domain.Address, error) {
	var addrs []domain.Address
	ok, err := s.read(ctx, addressesKey(guestID), &addrs)
	if err != nil || !ok {
		return nil, err
	}
	return addrs, nil
}

func (s *Store) SetAddresses(ctx context.Context, guestID string, addrs []domain.Address) error {
	return s.write(ctx, addressesKey(guestID), addrs)
}

// SelectedAddress returns the saved selection, or nil when there is none.
func (s *Store) SelectedAddress(ctx context.Context, guestID string) (*domain.Address, error) {
	var addr domain.Address
	ok, err := s.read(ctx, selectedKey(guestID), &addr)
	if err != nil || !ok {
		return nil, err
	}
	return &addr, nil
}

func (s *Store) SetSelectedAddress(ctx context.Context, guestID string, addr domain.Address) error {
	return s.write(ctx, selectedKey(guestID), addr)
}

func (s *Store) ClearSelectedAddress(ctx context.Context, guestID string) error {
	return s.kv.Del(ctx, selectedKey(guestID))
}

// read decodes the entry at key into v. It returns false when the key is
// absent. A malformed entry is deleted and reported as absent; only transport
// failures surface as errors.
func (s *Store) read(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("guest store get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		s.log.Warn("discarding corrupt guest store entry", zap.String("key", key), zap.Error(err))
		if delErr := s.kv.Del(ctx, key); delErr != nil {
			s.log.Warn("failed to delete corrupt entry", zap.String("key", key), zap.Error(delErr))
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) write(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("guest store marshal %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("guest store set %s: %w", key, err)
	}
	return nil
}
