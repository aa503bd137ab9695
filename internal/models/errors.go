package models

import "errors"

// Domain errors. Three classes: data-format errors on the webhook path,
// business-rule violations which never corrupt state, and not-found
// conditions. The API layer maps each class to an HTTP status.
var (
	// Data-format errors (webhook payload).
	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrMissingMetadata  = errors.New("missing checkout metadata")

	// Not-found conditions.
	ErrMenuItemNotFound   = errors.New("menu item not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrTaskNotFound       = errors.New("kitchen task not found")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrCouponNotFound     = errors.New("coupon not found")
	ErrUserCouponNotFound = errors.New("user coupon not found")
	ErrAccountNotFound    = errors.New("loyalty account not found")

	// Business-rule violations.
	ErrInsufficientPoints  = errors.New("insufficient points")
	ErrCouponInactive      = errors.New("coupon is not active")
	ErrCouponExpired       = errors.New("coupon has expired")
	ErrCouponAlreadyUsed   = errors.New("coupon already used")
	ErrInvalidStatus       = errors.New("invalid kitchen status")
	ErrOrderCancelled      = errors.New("order is cancelled")
	ErrEmptyOrder          = errors.New("order has no items")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	ErrMenuItemUnavailable = errors.New("menu item unavailable")
	ErrForbidden           = errors.New("caller may not perform this action")
)
