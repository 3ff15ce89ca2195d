package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) String() string {
	return string(s)
}

type Order struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId,omitempty"`
	Status        OrderStatus     `json:"status"`
	Items         []OrderLineItem `json:"items"`
	ShippingPrice float64         `json:"shippingPrice"`
	// Address is the account address the order was placed with; GuestAddress
	// is the one carried on the order itself when the buyer checked out as a
	// guest. At most one of the two is set.
	Address      *Address  `json:"address,omitempty"`
	GuestAddress *Address  `json:"guestAddress,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type OrderLineItem struct {
	ProductID      string          `json:"productId"`
	Quantity       int             `json:"quantity"`
	Price          float64         `json:"price"`
	Product        ProductSnapshot `json:"product"`
	NoestReady     bool            `json:"noestReady"`
	TrackingNumber string          `json:"trackingNumber,omitempty"`
}

// ShippingAddress resolves the destination for fulfillment: the account
// address wins, then the guest address, then the empty sentinel.
func (o *Order) ShippingAddress() Address {
	if o.Address != nil {
		return *o.Address
	}
	if o.GuestAddress != nil {
		return *o.GuestAddress
	}
	return Address{}
}

// Total is the payable amount: line subtotals plus shipping.
func (o *Order) Total() float64 {
	total := o.ShippingPrice
	for _, item := range o.Items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}
