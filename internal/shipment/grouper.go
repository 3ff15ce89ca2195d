package shipment

import (
	"strconv"
	"strings"

	"github.com/trikooo/storefront/internal/domain"
)

// deliveryTypeStandard is the provider's "classic delivery" type id.
const deliveryTypeStandard = 1

// Request is the provider-facing shipment payload, one per untracked bucket.
type Request struct {
	Reference   string  `json:"reference"`
	Client      string  `json:"client"`
	Phone       string  `json:"phone"`
	Phone2      string  `json:"phone_2,omitempty"`
	Adresse     string  `json:"adresse"`
	WilayaID    int     `json:"wilaya_id"`
	Commune     string  `json:"commune"`
	Montant     float64 `json:"montant"`
	Produit     string  `json:"produit"`
	TypeID      int     `json:"type_id"`
	Poids       int     `json:"poids"`
	StopDesk    int     `json:"stop_desk"`
	StationCode string  `json:"station_code,omitempty"`
	Stock       int     `json:"stock"`
	CanOpen     int     `json:"can_open"`

	// ProductIDs keeps track of which line items the request covers so
	// tracking numbers can be stamped back after submission. Not sent to the
	// provider.
	ProductIDs []string `json:"-"`
}

// Submittable reports whether the request was built from a real address.
// A request carrying the sentinel address must never reach the provider.
func (r *Request) Submittable() bool {
	return r.Adresse != "" && r.Commune != "" && r.WilayaID > 0
}

// Group partitions an order's line items into provider submissions.
//
// Only items flagged ready and not yet carrying a tracking number are
// eligible; already-tracked items are excluded outright so an item is never
// double-booked with the provider. All eligible items collapse into a single
// untracked bucket, so the result is zero or one request per order.
func Group(order *domain.Order) []Request {
	var eligible []domain.OrderLineItem
	for _, item := range order.Items {
		if item.NoestReady && item.TrackingNumber == "" {
			eligible = append(eligible, item)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	addr := order.ShippingAddress()

	grams := 0
	amount := order.ShippingPrice
	names := make([]string, 0, len(eligible))
	productIDs := make([]string, 0, len(eligible))
	for _, item := range eligible {
		weight := item.Product.Weight
		if weight <= 0 {
			weight = 1
		}
		grams += weight * item.Quantity
		amount += item.Price * float64(item.Quantity)
		names = append(names, item.Product.Name+" (x"+strconv.Itoa(item.Quantity)+")")
		productIDs = append(productIDs, item.ProductID)
	}

	req := Request{
		Reference:  order.ID,
		Client:     addr.FullName,
		Phone:      addr.PhoneNumber,
		Phone2:     addr.SecondPhoneNumber,
		Adresse:    addr.Address,
		WilayaID:   wilayaID(addr.WilayaValue),
		Commune:    addr.Commune,
		Montant:    amount,
		Produit:    strings.Join(names, ", "),
		TypeID:     deliveryTypeStandard,
		Poids:      kilograms(grams),
		ProductIDs: productIDs,
	}

	if addr.StopDesk {
		req.StopDesk = 1
		req.StationCode = addr.StationCode
	}

	return []Request{req}
}

// kilograms converts a gram total into the provider's kilogram unit, rounding
// up so a shipment is never under-declared.
func kilograms(grams int) int {
	return (grams + 999) / 1000
}

func wilayaID(value string) int {
	id, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return id
}
