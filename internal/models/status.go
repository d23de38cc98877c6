package models

import (
	"strings"

	"fulfillment-service/internal/apperr"
)

type OrderStatus string

const (
	StatusConfirmed      OrderStatus = "Confirmed"
	StatusOutForDelivery OrderStatus = "Out for Delivery"
	StatusDelivered      OrderStatus = "Delivered"
	StatusCancelled      OrderStatus = "Cancelled"
)

// transitions lists, per state, every state an order may move to.
// Delivered -> Delivered is kept so a repeated update re-runs archival.
var transitions = map[OrderStatus][]OrderStatus{
	StatusConfirmed:      {StatusConfirmed, StatusOutForDelivery, StatusDelivered, StatusCancelled},
	StatusOutForDelivery: {StatusOutForDelivery, StatusDelivered},
	StatusDelivered:      {StatusDelivered},
}

var allStatuses = []OrderStatus{StatusConfirmed, StatusOutForDelivery, StatusDelivered, StatusCancelled}

// ParseStatus matches case-insensitively against the closed set of statuses.
func ParseStatus(s string) (OrderStatus, error) {
	s = strings.TrimSpace(s)
	for _, st := range allStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", apperr.Wrapf(apperr.ErrValidationFailed, "unknown order status %q", s)
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether a customer may still cancel the order.
func (s OrderStatus) Cancellable() bool {
	return s == StatusConfirmed
}

func (s OrderStatus) IsDelivered() bool {
	return s == StatusDelivered
}
