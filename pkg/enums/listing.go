package enums

import "fmt"

// StockStatus maps to the stock_status enum in Postgres.
type StockStatus string

const (
	StockStatusInStock     StockStatus = "in_stock"
	StockStatusOutOfStock  StockStatus = "out_of_stock"
	StockStatusOnBackorder StockStatus = "on_backorder"
)

var validStockStatuses = []StockStatus{
	StockStatusInStock,
	StockStatusOutOfStock,
	StockStatusOnBackorder,
}

// String implements fmt.Stringer.
func (s StockStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockStatus.
func (s StockStatus) IsValid() bool {
	for _, candidate := range validStockStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockStatus converts raw input into a StockStatus.
func ParseStockStatus(value string) (StockStatus, error) {
	for _, candidate := range validStockStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock status %q", value)
}

// ShippingSpeed captures the fulfilment tier a listing promises.
type ShippingSpeed string

const (
	ShippingSpeedStandard  ShippingSpeed = "standard"
	ShippingSpeedExpedited ShippingSpeed = "expedited"
	ShippingSpeedOvernight ShippingSpeed = "overnight"
)

var validShippingSpeeds = []ShippingSpeed{
	ShippingSpeedStandard,
	ShippingSpeedExpedited,
	ShippingSpeedOvernight,
}

// String implements fmt.Stringer.
func (s ShippingSpeed) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShippingSpeed.
func (s ShippingSpeed) IsValid() bool {
	for _, candidate := range validShippingSpeeds {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseShippingSpeed converts raw input into a ShippingSpeed.
func ParseShippingSpeed(value string) (ShippingSpeed, error) {
	for _, candidate := range validShippingSpeeds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipping speed %q", value)
}
