package enums

import "fmt"

// PayoutStatus tracks a seller withdrawal request awaiting admin action.
type PayoutStatus string

const (
	PayoutStatusPending  PayoutStatus = "pending"
	PayoutStatusApproved PayoutStatus = "approved"
	PayoutStatusRejected PayoutStatus = "rejected"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusPending,
	PayoutStatusApproved,
	PayoutStatusRejected,
}

// String implements fmt.Stringer.
func (s PayoutStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PayoutStatus.
func (s PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}

// PayoutDecision represents the admin action on a payout request.
type PayoutDecision string

const (
	PayoutDecisionApprove PayoutDecision = "approve"
	PayoutDecisionReject  PayoutDecision = "reject"
)

// IsValid reports whether the value is a known PayoutDecision.
func (d PayoutDecision) IsValid() bool {
	return d == PayoutDecisionApprove || d == PayoutDecisionReject
}
