package types

import "github.com/shopspring/decimal"

type OrderRef struct {
	OrderID string
}

type ItemRef struct {
	OrderID string
	ItemID  string
}

type CustomerInput struct {
	Name      string
	LoyaltyID string
	Addresses []AddressInput
}

type AddressInput struct {
	Line1      string
	Line2      string
	City       string
	PostalCode string
	Country    string
}

// CreateOrderInput starts a basket. OrderID is optional; a retried create with
// the same id returns the existing order.
type CreateOrderInput struct {
	OrderID  string
	Type     string
	Customer *CustomerInput
	Comments string
}

type AssignCustomerInput struct {
	OrderID  string
	Customer CustomerInput
}

type AssignAddressInput struct {
	OrderID string
	Address AddressInput
}

type ChangeOrderTypeInput struct {
	OrderID string
	Type    string
}

// AddItemInput adds a line. ItemID doubles as the dedup key; UnitPrice is
// resolved through the pricer when nil. Without an ItemID, retries are only
// safe when they repeat the same IdempotencyKey.
type AddItemInput struct {
	OrderID        string
	ItemID         string
	IdempotencyKey string
	ProductID      string
	Quantity       int
	UnitPrice      *decimal.Decimal
	Comment        string
}

type ListOrdersInput struct {
	States []string
}
