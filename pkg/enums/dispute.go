package enums

import "fmt"

// DisputeStatus tracks a buyer dispute against a sub-order.
type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "open"
	DisputeStatusResolved DisputeStatus = "resolved"
)

// String implements fmt.Stringer.
func (s DisputeStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DisputeStatus.
func (s DisputeStatus) IsValid() bool {
	return s == DisputeStatusOpen || s == DisputeStatusResolved
}

// DisputeOutcome is the admin resolution applied to an open dispute.
type DisputeOutcome string

const (
	// DisputeOutcomeRefund refunds the buyer and claws funds back from the
	// seller's escrow where still possible.
	DisputeOutcomeRefund DisputeOutcome = "refund"
	// DisputeOutcomeRelease sides with the seller; funds continue through the
	// normal settlement path.
	DisputeOutcomeRelease DisputeOutcome = "release"
)

// IsValid reports whether the value is a known DisputeOutcome.
func (o DisputeOutcome) IsValid() bool {
	return o == DisputeOutcomeRefund || o == DisputeOutcomeRelease
}

// ParseDisputeOutcome converts raw input into a DisputeOutcome.
func ParseDisputeOutcome(value string) (DisputeOutcome, error) {
	outcome := DisputeOutcome(value)
	if !outcome.IsValid() {
		return "", fmt.Errorf("invalid dispute outcome %q", value)
	}
	return outcome, nil
}
