package enums

import "fmt"

// SubOrderStatus tracks one shop's slice of a checkout. Statuses only advance
// forward; cancellation is the single exception and is only reachable from
// pending or processing.
type SubOrderStatus string

const (
	SubOrderStatusPending    SubOrderStatus = "pending"
	SubOrderStatusProcessing SubOrderStatus = "processing"
	SubOrderStatusShipped    SubOrderStatus = "shipped"
	SubOrderStatusDelivered  SubOrderStatus = "delivered"
	SubOrderStatusCancelled  SubOrderStatus = "cancelled"
)

var subOrderStatusRank = map[SubOrderStatus]int{
	SubOrderStatusPending:    0,
	SubOrderStatusProcessing: 1,
	SubOrderStatusShipped:    2,
	SubOrderStatusDelivered:  3,
}

// String implements fmt.Stringer.
func (s SubOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SubOrderStatus.
func (s SubOrderStatus) IsValid() bool {
	if s == SubOrderStatusCancelled {
		return true
	}
	_, ok := subOrderStatusRank[s]
	return ok
}

// CanTransitionTo reports whether the target status is reachable from s.
func (s SubOrderStatus) CanTransitionTo(target SubOrderStatus) bool {
	if target == SubOrderStatusCancelled {
		return s == SubOrderStatusPending || s == SubOrderStatusProcessing
	}
	from, okFrom := subOrderStatusRank[s]
	to, okTo := subOrderStatusRank[target]
	return okFrom && okTo && to > from
}

// ParseSubOrderStatus converts raw input into a SubOrderStatus.
func ParseSubOrderStatus(value string) (SubOrderStatus, error) {
	status := SubOrderStatus(value)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid sub-order status %q", value)
	}
	return status, nil
}

// ReturnStatus tracks the optional return workflow attached to a sub-order.
type ReturnStatus string

const (
	ReturnStatusRequested ReturnStatus = "requested"
	ReturnStatusApproved  ReturnStatus = "approved"
	ReturnStatusRejected  ReturnStatus = "rejected"
	ReturnStatusRefunded  ReturnStatus = "refunded"
)

var validReturnStatuses = []ReturnStatus{
	ReturnStatusRequested,
	ReturnStatusApproved,
	ReturnStatusRejected,
	ReturnStatusRefunded,
}

// String implements fmt.Stringer.
func (s ReturnStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReturnStatus.
func (s ReturnStatus) IsValid() bool {
	for _, candidate := range validReturnStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
