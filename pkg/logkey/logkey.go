package logkey

// Attribute keys used across slog calls so log lines stay greppable.
const (
	TraceID    = "Trace ID"
	ERROR      = "ERROR"
	OrderID    = "OrderID"
	CustomerID = "CustomerID"
	ItemID     = "ItemID"
	CartLineID = "CartLineID"
	PaymentID  = "PaymentID"
	Status     = "Status"
	Event      = "Event"
	Coupon     = "Coupon"
)
