package enums

// NotificationType labels stored notification rows.
type NotificationType string

const (
	NotificationTypeKYCDecision          NotificationType = "kyc_decision"
	NotificationTypePayoutDecision       NotificationType = "payout_decision"
	NotificationTypeOrderPaid            NotificationType = "order_paid"
	NotificationTypeSettlementReleased   NotificationType = "settlement_released"
	NotificationTypeReconciliationAlert  NotificationType = "reconciliation_alert"
	NotificationTypeReturnDecision       NotificationType = "return_decision"
	NotificationTypeDisputeResolved      NotificationType = "dispute_resolved"
	NotificationTypeSubOrderCancellation NotificationType = "sub_order_cancellation"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeKYCDecision,
	NotificationTypePayoutDecision,
	NotificationTypeOrderPaid,
	NotificationTypeSettlementReleased,
	NotificationTypeReconciliationAlert,
	NotificationTypeReturnDecision,
	NotificationTypeDisputeResolved,
	NotificationTypeSubOrderCancellation,
}

// IsValid reports whether the value is a known NotificationType.
func (t NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == t {
			return true
		}
	}
	return false
}
