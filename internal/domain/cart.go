package domain

import "time"

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    string     `bson:"user_id" json:"userId"`
	Items     []CartItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updatedAt"`
}

type CartItem struct {
	ProductID string          `bson:"product_id" json:"productId"`
	Quantity  int             `bson:"quantity" json:"quantity"`
	Price     float64         `bson:"price" json:"price"`
	Product   ProductSnapshot `bson:"product" json:"product"`
	AddedAt   time.Time       `bson:"added_at" json:"addedAt"`
}

// ProductSnapshot is the slice of product state a cart or order line item
// carries so it can be rendered and shipped without a catalog lookup.
// Weight is per-unit grams; zero means unknown and is treated as 1g when
// declaring shipments.
type ProductSnapshot struct {
	Name      string   `bson:"name" json:"name"`
	ImageURLs []string `bson:"image_urls,omitempty" json:"imageUrls,omitempty"`
	Weight    int      `bson:"weight,omitempty" json:"weight,omitempty"`
}

// FindItem returns the index of the item with the given product id, or -1.
func (c *Cart) FindItem(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}
