package enums

// OutboxEventType enumerates the domain events emitted through the outbox.
type OutboxEventType string

const (
	EventOrderPlaced          OutboxEventType = "order.placed"
	EventOrderPaid            OutboxEventType = "order.paid"
	EventSubOrderCancelled    OutboxEventType = "sub_order.cancelled"
	EventSubOrderSettled      OutboxEventType = "sub_order.settled"
	EventRefundIssued         OutboxEventType = "refund.issued"
	EventReconciliationAlert  OutboxEventType = "ledger.reconciliation_alert"
	EventShopKYCDecided       OutboxEventType = "shop.kyc_decided"
	EventPayoutDecided        OutboxEventType = "payout.decided"
	EventDisputeResolved      OutboxEventType = "dispute.resolved"
	EventNotificationEnqueued OutboxEventType = "notification.enqueued"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderPlaced,
	EventOrderPaid,
	EventSubOrderCancelled,
	EventSubOrderSettled,
	EventRefundIssued,
	EventReconciliationAlert,
	EventShopKYCDecided,
	EventPayoutDecided,
	EventDisputeResolved,
	EventNotificationEnqueued,
}

// IsValid reports whether the value is a known OutboxEventType.
func (t OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder    OutboxAggregateType = "order"
	AggregateSubOrder OutboxAggregateType = "sub_order"
	AggregateShop     OutboxAggregateType = "shop"
	AggregateWallet   OutboxAggregateType = "wallet"
	AggregatePayout   OutboxAggregateType = "payout_request"
	AggregateDispute  OutboxAggregateType = "dispute"
)

var validOutboxAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateSubOrder,
	AggregateShop,
	AggregateWallet,
	AggregatePayout,
	AggregateDispute,
}

// IsValid reports whether the value is a known OutboxAggregateType.
func (t OutboxAggregateType) IsValid() bool {
	for _, candidate := range validOutboxAggregateTypes {
		if candidate == t {
			return true
		}
	}
	return false
}
