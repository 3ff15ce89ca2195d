package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trikooo/storefront/internal/domain"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrAddressNotFound = errors.New("address not found")
)

type MongoRepository struct {
	carts     *mongo.Collection
	addresses *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		carts:     db.Collection("carts"),
		addresses: db.Collection("addresses"),
	}
}

func (m *MongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"user_id": userID}
	err := m.carts.FindOne(ctx, filter).Decode(&cart)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

func (m *MongoRepository) UpsertCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now()

	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	// String _id is assigned here, not by the server, so decoding back into
	// the domain type stays lossless.
	newID := primitive.NewObjectID().Hex()

	filter := bson.M{"user_id": cart.UserID}
	update := bson.M{
		"$set": bson.M{
			"user_id":    cart.UserID,
			"items":      cart.Items,
			"created_at": cart.CreatedAt,
			"updated_at": cart.UpdatedAt,
		},
		"$setOnInsert": bson.M{"_id": newID},
	}
	opts := options.Update().SetUpsert(true)

	result, err := m.carts.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}

	if cart.ID == "" {
		if result.UpsertedCount > 0 {
			cart.ID = newID
		} else {
			var stored domain.Cart
			if err := m.carts.FindOne(ctx, filter).Decode(&stored); err == nil {
				cart.ID = stored.ID
			}
		}
	}

	return nil
}

func (m *MongoRepository) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	now := time.Now()
	item.AddedAt = now

	filter := bson.M{"user_id": userID}

	var existingCart domain.Cart
	err := m.carts.FindOne(ctx, filter).Decode(&existingCart)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Cart doesn't exist, create it with the item
			cart := &domain.Cart{
				ID:        primitive.NewObjectID().Hex(),
				UserID:    userID,
				Items:     []domain.CartItem{item},
				CreatedAt: now,
				UpdatedAt: now,
			}

			_, err = m.carts.InsertOne(ctx, cart)
			if err != nil {
				return fmt.Errorf("failed to create cart with item: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to check existing cart: %w", err)
	}

	// One CartItem per product id: an existing entry accumulates quantity
	// instead of producing a duplicate.
	if idx := existingCart.FindItem(item.ProductID); idx >= 0 {
		update := bson.M{
			"$inc": bson.M{"items.$[elem].quantity": item.Quantity},
			"$set": bson.M{
				"items.$[elem].added_at": now,
				"updated_at":             now,
			},
		}
		arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"elem.product_id": item.ProductID},
			},
		})

		_, err = m.carts.UpdateOne(ctx, filter, update, arrayFilters)
		if err != nil {
			return fmt.Errorf("failed to update existing item: %w", err)
		}
	} else {
		update := bson.M{
			"$push": bson.M{"items": item},
			"$set":  bson.M{"updated_at": now},
		}

		_, err = m.carts.UpdateOne(ctx, filter, update)
		if err != nil {
			return fmt.Errorf("failed to add new item: %w", err)
		}
	}

	return nil
}

func (m *MongoRepository) UpdateItemQuantity(ctx context.Context, userID string, productID string, quantity int) error {
	filter := bson.M{
		"user_id":          userID,
		"items.product_id": productID,
	}

	update := bson.M{
		"$set": bson.M{
			"items.$[elem].quantity": quantity,
			"updated_at":             time.Now(),
		},
	}

	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.product_id": productID},
		},
	})

	result, err := m.carts.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to update item quantity: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (m *MongoRepository) RemoveItem(ctx context.Context, userID string, productID string) error {
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"product_id": productID},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.carts.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

func (m *MongoRepository) DeleteCart(ctx context.Context, userID string) error {
	filter := bson.M{"user_id": userID}

	result, err := m.carts.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

func (m *MongoRepository) ListAddresses(ctx context.Context, userID string) ([]domain.Address, error) {
	filter := bson.M{"user_id": userID}

	cursor, err := m.addresses.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer cursor.Close(ctx)

	var addrs []domain.Address
	if err := cursor.All(ctx, &addrs); err != nil {
		return nil, fmt.Errorf("failed to decode addresses: %w", err)
	}

	return addrs, nil
}

func (m *MongoRepository) CreateAddress(ctx context.Context, addr *domain.Address) error {
	if addr.ID == "" {
		addr.ID = primitive.NewObjectID().Hex()
	}

	if _, err := m.addresses.InsertOne(ctx, addr); err != nil {
		return fmt.Errorf("failed to create address: %w", err)
	}
	return nil
}

func (m *MongoRepository) DeleteAddress(ctx context.Context, userID, addressID string) error {
	result, err := m.addresses.DeleteOne(ctx, bson.M{"_id": addressID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrAddressNotFound
	}

	return nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	cartIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	if _, err := m.carts.Indexes().CreateMany(ctx, cartIndexes); err != nil {
		return fmt.Errorf("failed to create cart indexes: %w", err)
	}

	addressIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
	}

	if _, err := m.addresses.Indexes().CreateMany(ctx, addressIndexes); err != nil {
		return fmt.Errorf("failed to create address indexes: %w", err)
	}

	return nil
}
