package domain

import "errors"

type OrderStatus string

// remember to add new statuses to the orderTransitions map
const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// orderTransitions lists the allowed targets per status, terminal statuses map to nothing.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  nil,
	OrderStatusCancelled:  nil,
}

func ToOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if _, ok := orderTransitions[status]; ok {
		return status, nil
	}

	return "", errors.New("invalid order status")
}

func OrderStatuses() []OrderStatus {
	result := make([]OrderStatus, 0, len(orderTransitions))
	for status := range orderTransitions {
		result = append(result, status)
	}
	return result
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// AllowedTransitions returns a copy of the statuses reachable from s in one step.
func (s OrderStatus) AllowedTransitions() []OrderStatus {
	return append(make([]OrderStatus, 0, len(orderTransitions[s])), orderTransitions[s]...)
}

func (s OrderStatus) CanTransition(target OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// ValidateTransition returns *InvalidStateTransitionError when target is not reachable from current.
func ValidateTransition(current, target OrderStatus) error {
	if !current.CanTransition(target) {
		return &InvalidStateTransitionError{Current: current, Target: target}
	}
	return nil
}
