package model

import (
	"strings"
	"time"
)

// Address is the four field postal address kept on a customer profile.
type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// ParseAddress splits a spoken free-text address on commas into street, city,
// state and zip. Missing trailing fields stay empty and anything after the
// fourth comma separated part is ignored. It is not an address validator.
func ParseAddress(s string) Address {
	parts := strings.Split(s, ",")
	field := func(i int) string {
		if i < len(parts) {
			return strings.TrimSpace(parts[i])
		}
		return ""
	}
	return Address{
		Street: field(0),
		City:   field(1),
		State:  field(2),
		Zip:    field(3),
	}
}

// IsZero reports whether no field is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

// CustomerProfile is upserted by phone number when an order is placed.
type CustomerProfile struct {
	Phone         string  `json:"phone"`
	Name          string  `json:"name"`
	Address       Address `json:"address"`
	LastOrderDate string  `json:"last_order_date"`
}

// CustomerData is what the caller supplies at checkout.
type CustomerData struct {
	Name    string
	Phone   string
	Address Address
}

// Profile converts checkout data into a profile stamped with the order date.
func (d CustomerData) Profile(at time.Time) CustomerProfile {
	return CustomerProfile{
		Phone:         strings.TrimSpace(d.Phone),
		Name:          strings.TrimSpace(d.Name),
		Address:       d.Address,
		LastOrderDate: at.Format(DateLayout),
	}
}
