package repository

import (
	"context"

	"github.com/trikooo/storefront/internal/domain"
)

// CartRepository defines the interface for cart data operations
// Consumers define this interface, not the MongoDB implementation
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	UpsertCart(ctx context.Context, cart *domain.Cart) error
	AddItem(ctx context.Context, userID string, item domain.CartItem) error
	UpdateItemQuantity(ctx context.Context, userID string, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID string, productID string) error
	DeleteCart(ctx context.Context, userID string) error
}

// AddressRepository covers the account-side address book.
type AddressRepository interface {
	ListAddresses(ctx context.Context, userID string) ([]domain.Address, error)
	CreateAddress(ctx context.Context, addr *domain.Address) error
	DeleteAddress(ctx context.Context, userID, addressID string) error
}
