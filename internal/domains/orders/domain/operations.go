package domain

// OperationName identifies a lifecycle verb understood by the rule table.
type OperationName string

const (
	OpCreateOrder     OperationName = "CreateOrder"
	OpAssignCustomer  OperationName = "AssignCustomer"
	OpAssignAddress   OperationName = "AssignAddress"
	OpChangeOrderType OperationName = "ChangeOrderType"
	OpAddItem         OperationName = "AddItem"
	OpRemoveItem      OperationName = "RemoveItem"
	OpConfirmOrder    OperationName = "ConfirmOrder"
	OpConfirmPayment  OperationName = "ConfirmPayment"
	OpStartProcessing OperationName = "StartProcessing"
	OpItemFinished    OperationName = "ItemFinished"
	OpStartDelivery   OperationName = "StartDelivery"
	OpDelivered       OperationName = "Delivered"
	OpServed          OperationName = "Served"
)

// Operation is the serializable payload handed to Apply. Only the fields
// relevant to Name are read.
type Operation struct {
	Name     OperationName `json:"name"`
	OrderID  string        `json:"orderId,omitempty"`
	Type     OrderType     `json:"type,omitempty"`
	Customer *Customer     `json:"customer,omitempty"`
	Address  *Address      `json:"address,omitempty"`
	Item     *LineItem     `json:"item,omitempty"`
	ItemID   string        `json:"itemId,omitempty"`
	Comments string        `json:"comments,omitempty"`
}

// MutatingOperations lists every operation that targets an existing order.
func MutatingOperations() []OperationName {
	return []OperationName{
		OpAssignCustomer, OpAssignAddress, OpChangeOrderType, OpAddItem, OpRemoveItem,
		OpConfirmOrder, OpConfirmPayment, OpStartProcessing, OpItemFinished,
		OpStartDelivery, OpDelivered, OpServed,
	}
}

func CreateOrder(orderID string, orderType OrderType, customer *Customer, comments string) Operation {
	return Operation{Name: OpCreateOrder, OrderID: orderID, Type: orderType, Customer: customer, Comments: comments}
}

func AssignCustomer(customer Customer) Operation {
	return Operation{Name: OpAssignCustomer, Customer: &customer}
}

func AssignAddress(address Address) Operation {
	return Operation{Name: OpAssignAddress, Address: &address}
}

func ChangeOrderType(orderType OrderType) Operation {
	return Operation{Name: OpChangeOrderType, Type: orderType}
}

func AddItem(item LineItem) Operation {
	return Operation{Name: OpAddItem, Item: &item}
}

func RemoveItem(itemID string) Operation {
	return Operation{Name: OpRemoveItem, ItemID: itemID}
}

func ConfirmOrder() Operation { return Operation{Name: OpConfirmOrder} }

func ConfirmPayment() Operation { return Operation{Name: OpConfirmPayment} }

func StartProcessing() Operation { return Operation{Name: OpStartProcessing} }

func ItemFinished(itemID string) Operation {
	return Operation{Name: OpItemFinished, ItemID: itemID}
}

func StartDelivery() Operation { return Operation{Name: OpStartDelivery} }

func Delivered() Operation { return Operation{Name: OpDelivered} }

func Served() Operation { return Operation{Name: OpServed} }
