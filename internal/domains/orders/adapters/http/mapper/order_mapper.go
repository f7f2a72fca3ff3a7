package mapper

import (
	"time"

	"github.com/shopspring/decimal"

	types "github.com/Apurer/order-lifecycle-engine/internal/domains/orders/application/types"
	"github.com/Apurer/order-lifecycle-engine/internal/domains/orders/domain"
)

// Address is the HTTP representation of a delivery or customer address.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Customer is the HTTP representation of the customer attached to an order.
type Customer struct {
	Name      string    `json:"name"`
	LoyaltyID string    `json:"loyaltyId,omitempty"`
	Addresses []Address `json:"addresses,omitempty"`
}

// CreateOrder is the body of POST /v1/orders. OrderID lets a client retry a create safely.
type CreateOrder struct {
	OrderID  string    `json:"orderId,omitempty"`
	Type     string    `json:"type" binding:"required"`
	Customer *Customer `json:"customer,omitempty"`
	Comments string    `json:"comments,omitempty"`
}

// ChangeType is the body of PUT /v1/orders/:orderId/type.
type ChangeType struct {
	Type string `json:"type" binding:"required"`
}

// AddItem is the body of POST /v1/orders/:orderId/items.
type AddItem struct {
	ItemID    string           `json:"itemId,omitempty"`
	ProductID string           `json:"productId" binding:"required"`
	Quantity  int              `json:"quantity" binding:"required"`
	UnitPrice *decimal.Decimal `json:"unitPrice,omitempty"`
	Comment   string           `json:"comment,omitempty"`
}

// LineItem is one item line in an order response.
type LineItem struct {
	ID         string          `json:"id"`
	ProductID  string          `json:"productId"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Comment    string          `json:"comment,omitempty"`
	State      string          `json:"state"`
	FinishedAt *time.Time      `json:"finishedAt,omitempty"`
}

// Order is the snapshot returned by every order endpoint.
type Order struct {
	ID              string            `json:"id"`
	Reference       string            `json:"reference"`
	Type            string            `json:"type"`
	State           string            `json:"state"`
	Customer        *Customer         `json:"customer,omitempty"`
	DeliveryAddress *Address          `json:"deliveryAddress,omitempty"`
	Items           []LineItem        `json:"items"`
	Comments        string            `json:"comments,omitempty"`
	Total           decimal.Decimal   `json:"total"`
	Timestamps      domain.Timestamps `json:"timestamps"`
	Version         int64             `json:"version"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func ToCustomerInput(in Customer) types.CustomerInput {
	out := types.CustomerInput{Name: in.Name, LoyaltyID: in.LoyaltyID}
	for _, addr := range in.Addresses {
		out.Addresses = append(out.Addresses, ToAddressInput(addr))
	}
	return out
}

func ToAddressInput(in Address) types.AddressInput {
	return types.AddressInput{
		Line1:      in.Line1,
		Line2:      in.Line2,
		City:       in.City,
		PostalCode: in.PostalCode,
		Country:    in.Country,
	}
}

// ToCreateInput maps the create body to the application input.
func ToCreateInput(in CreateOrder) types.CreateOrderInput {
	out := types.CreateOrderInput{OrderID: in.OrderID, Type: in.Type, Comments: in.Comments}
	if in.Customer != nil {
		customer := ToCustomerInput(*in.Customer)
		out.Customer = &customer
	}
	return out
}

// ToAddItemInput maps the add-item body for the given order.
func ToAddItemInput(orderID string, in AddItem) types.AddItemInput {
	return types.AddItemInput{
		OrderID:   orderID,
		ItemID:    in.ItemID,
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		UnitPrice: in.UnitPrice,
		Comment:   in.Comment,
	}
}

// FromProjection maps a stored order to its HTTP representation.
func FromProjection(p *types.OrderProjection) Order {
	if p == nil || p.Entity == nil {
		return Order{}
	}
	o := p.Entity
	out := Order{
		ID:         o.ID,
		Reference:  o.Reference,
		Type:       string(o.Type),
		State:      string(o.State),
		Items:      make([]LineItem, 0, len(o.Items)),
		Comments:   o.Comments,
		Total:      o.Total,
		Timestamps: o.Timestamps,
		Version:    p.Version,
		CreatedAt:  p.Metadata.CreatedAt,
		UpdatedAt:  p.Metadata.UpdatedAt,
	}
	if o.Customer != nil {
		customer := Customer{Name: o.Customer.Name, LoyaltyID: o.Customer.LoyaltyID}
		for _, addr := range o.Customer.Addresses {
			customer.Addresses = append(customer.Addresses, fromAddress(addr))
		}
		out.Customer = &customer
	}
	if o.DeliveryAddress != nil {
		addr := fromAddress(*o.DeliveryAddress)
		out.DeliveryAddress = &addr
	}
	for _, item := range o.Items {
		out.Items = append(out.Items, LineItem{
			ID:         item.ID,
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Subtotal:   item.Subtotal(),
			Comment:    item.Comment,
			State:      string(item.State),
			FinishedAt: item.FinishedAt,
		})
	}
	return out
}

// FromProjectionList maps a slice of stored orders.
func FromProjectionList(list []*types.OrderProjection) []Order {
	out := make([]Order, 0, len(list))
	for _, p := range list {
		out = append(out, FromProjection(p))
	}
	return out
}

func fromAddress(a domain.Address) Address {
	return Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}
