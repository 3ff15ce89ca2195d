package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/trikooo/storefront/internal/cache"
	"github.com/trikooo/storefront/internal/domain"
	"github.com/trikooo/storefront/internal/repository"
)

// GuestCarts is the slice of the guest store the cart service needs.
type GuestCarts interface {
	Cart(ctx context.Context, guestID string) ([]domain.CartItem, error)
	SetCart(ctx context.Context, guestID string, items []domain.CartItem) error
	ClearCart(ctx context.Context, guestID string) error
}

type Service struct {
	repo   repository.CartRepository
	cache  cache.CartCache
	guests GuestCarts
	log    *zap.Logger
	sfg    singleflight.Group // Prevents cache stampede
}

func NewService(repo repository.CartRepository, cache cache.CartCache, guests GuestCarts, log *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		guests: guests,
		log:    log,
	}
}

func (s *Service) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {

		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil // cart is in cache
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("cache get error", zap.Error(err)) // log cache error but continue
		}

		cart, errGet := s.repo.GetCart(ctx, userID)
		if errGet != nil && errors.Is(errGet, repository.ErrCartNotFound) { // not found cart return empty cart
			return &domain.Cart{
				UserID:    userID,
				Items:     nil,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		}
		if errGet != nil {
			return nil, errGet // err from repo is not cache miss, return it
		}

		// set cache
		go func() {
			errSet := s.cache.Set(context.Background(), userID, cart)
			if errSet != nil {
				s.log.Warn("cache set error", zap.Error(errSet))
			}
		}()

		return cart, nil // cart was not in cache, return it from repo
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// Reconcile merges the guest's local cart into the user's account cart at
// login time.
//
// Ordering matters: the remote fetch fails closed (any error other than
// "no cart yet" aborts with the guest entry intact), the merged item list is
// written back in a single upsert, and the guest cart key is cleared
// immediately after that write succeeds. Clearing right away is what makes
// the merge at-most-once: a second Reconcile sees an empty guest cart and
// changes nothing.
func (s *Service) Reconcile(ctx context.Context, userID, guestID string) (*domain.Cart, error) {
	remote, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrCartNotFound) {
			return nil, fmt.Errorf("failed to fetch account cart: %w", err)
		}
		// No cart yet is not a conflict, it becomes a create.
		remote = &domain.Cart{UserID: userID}
	}

	guestItems, err := s.guests.Cart(ctx, guestID)
	if err != nil {
		return nil, fmt.Errorf("failed to read guest cart: %w", err)
	}

	if len(guestItems) == 0 {
		return remote, nil
	}

	for _, guest := range guestItems {
		if idx := remote.FindItem(guest.ProductID); idx >= 0 {
			// Same product on both sides: quantities accumulate, the stored
			// price stands.
			remote.Items[idx].Quantity += guest.Quantity
		} else {
			remote.Items = append(remote.Items, guest)
		}
	}

	if err := s.repo.UpsertCart(ctx, remote); err != nil {
		return nil, fmt.Errorf("failed to persist merged cart: %w", err)
	}

	if err := s.guests.ClearCart(ctx, guestID); err != nil {
		// The merge itself succeeded. Surface the failure so the caller can
		// retry the clear, but don't pretend the write didn't happen.
		s.log.Error("guest cart not cleared after merge",
			zap.String("guest_id", guestID), zap.Error(err))
	}

	s.invalidateCache(userID)
	return remote, nil
}

func (s *Service) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	errAdd := s.repo.AddItem(ctx, userID, item)
	if errAdd != nil {
		s.log.Warn("repo add item error", zap.Error(errAdd))
		return errAdd
	}

	s.invalidateCache(userID)
	return nil
}

// AddGuestItem is the unauthenticated counterpart of AddItem: the item lands
// in the guest store, merging by product id the same way.
func (s *Service) AddGuestItem(ctx context.Context, guestID string, item domain.CartItem) error {
	items, err := s.guests.Cart(ctx, guestID)
	if err != nil {
		return err
	}

	merged := false
	for i := range items {
		if items[i].ProductID == item.ProductID {
			items[i].Quantity += item.Quantity
			merged = true
			break
		}
	}
	if !merged {
		item.AddedAt = time.Now()
		items = append(items, item)
	}

	return s.guests.SetCart(ctx, guestID, items)
}

// GuestCart returns the guest's local cart wrapped in a cart shape so both
// flows render the same way.
func (s *Service) GuestCart(ctx context.Context, guestID string) (*domain.Cart, error) {
	items, err := s.guests.Cart(ctx, guestID)
	if err != nil {
		return nil, err
	}
	return &domain.Cart{Items: items}, nil
}

func (s *Service) UpdateQuantity(ctx context.Context, userID string, productID string, quantity int) error {
	errUpdate := s.repo.UpdateItemQuantity(ctx, userID, productID, quantity)
	if errUpdate != nil {
		s.log.Warn("repo update item quantity error", zap.Error(errUpdate))
		return errUpdate
	}

	s.invalidateCache(userID)
	return nil
}

func (s *Service) RemoveItem(ctx context.Context, userID string, productID string) error {
	errRemove := s.repo.RemoveItem(ctx, userID, productID)
	if errRemove != nil {
		s.log.Warn("repo remove item error", zap.Error(errRemove))
		return errRemove
	}

	s.invalidateCache(userID)
	return nil
}

func (s *Service) ClearCart(ctx context.Context, userID string) error {
	errDelete := s.repo.DeleteCart(ctx, userID)
	if errDelete != nil {
		s.log.Warn("repo delete cart error", zap.Error(errDelete))
		return errDelete
	}

	s.invalidateCache(userID)
	return nil
}

func (s *Service) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	errInvalidate := s.cache.Delete(ctx, userID)
	if errInvalidate != nil {
		s.log.Warn("cache invalidate error", zap.Error(errInvalidate))
	}
}
