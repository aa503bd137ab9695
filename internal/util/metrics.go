package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders placed",
	})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of rejected order placements",
	}, []string{"reason"})

	PaymentsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_confirmed_total",
		Help: "Total number of payments confirmed",
	})

	DuplicateWebhooksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duplicate_webhooks_total",
		Help: "Total number of replayed payment webhooks short-circuited by the idempotency gate",
	})

	WebhooksRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhooks_rejected_total",
		Help: "Total number of webhooks rejected as malformed",
	}, []string{"reason"})

	PaymentConfirmationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_confirmation_latency_seconds",
		Help:    "Latency of the payment confirmation transaction",
		Buckets: prometheus.DefBuckets,
	})

	KitchenTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kitchen_transitions_total",
		Help: "Total number of kitchen task status transitions",
	}, []string{"status"})

	KitchenTransitionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kitchen_transitions_rejected_total",
		Help: "Total number of rejected kitchen task transitions",
	}, []string{"reason"})

	PointsAwardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_points_awarded_total",
		Help: "Total loyalty points awarded for completed orders",
	})

	PointsReversedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_points_reversed_total",
		Help: "Total loyalty points reversed after cancellations",
	})

	PointsRedeemedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_points_redeemed_total",
		Help: "Total loyalty points redeemed for coupons",
	})

	PointsRefundedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_points_refunded_total",
		Help: "Total loyalty points refunded from deleted coupons",
	})

	CouponsPurchasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coupons_purchased_total",
		Help: "Total number of coupons purchased with points",
	})

	CouponPurchasesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coupon_purchases_failed_total",
		Help: "Total number of failed coupon purchases",
	}, []string{"reason"})

	CouponsRefundedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coupons_refunded_total",
		Help: "Total number of user coupons refunded on coupon deletion",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
