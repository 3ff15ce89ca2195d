package domain

// Address is a delivery destination in the provider's wilaya/commune model.
// The zero value is the empty sentinel used when no address is known.
type Address struct {
	ID                string  `bson:"_id,omitempty" json:"id,omitempty"`
	UserID            string  `bson:"user_id,omitempty" json:"userId,omitempty"`
	FullName          string  `bson:"full_name" json:"fullName"`
	PhoneNumber       string  `bson:"phone_number" json:"phoneNumber"`
	SecondPhoneNumber string  `bson:"second_phone_number,omitempty" json:"secondPhoneNumber,omitempty"`
	WilayaValue       string  `bson:"wilaya_value" json:"wilayaValue"`
	WilayaLabel       string  `bson:"wilaya_label" json:"wilayaLabel"`
	Commune           string  `bson:"commune" json:"commune"`
	Address           string  `bson:"address" json:"address"`
	StopDesk          bool    `bson:"stop_desk" json:"stopDesk"`
	StationCode       string  `bson:"station_code,omitempty" json:"stationCode,omitempty"`
	StationName       string  `bson:"station_name,omitempty" json:"stationName,omitempty"`
	BaseShippingPrice float64 `bson:"base_shipping_price" json:"baseShippingPrice"`
}

// IsComplete reports whether the address can be trusted for checkout.
// Incomplete addresses must never become the active selection.
func (a Address) IsComplete() bool {
	return a.WilayaValue != "" && a.Commune != "" && a.Address != ""
}

// IsEmpty reports whether a is the empty sentinel.
func (a Address) IsEmpty() bool {
	return a == Address{}
}

// SameLocation is the identity used to match a saved selection against the
// known address list: wilaya code, commune and street line, nothing else.
func (a Address) SameLocation(b Address) bool {
	return a.WilayaValue == b.WilayaValue && a.Commune == b.Commune && a.Address == b.Address
}
