package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"campus-eats/internal/models"
	"campus-eats/internal/service"
	"campus-eats/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	orders   *service.OrderWorkflow
	kitchen  *service.KitchenTaskSync
	ledger   *service.LoyaltyLedger
	coupons  *service.CouponEngine
	payments *service.PaymentConfirmationProcessor
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orders *service.OrderWorkflow,
	kitchen *service.KitchenTaskSync,
	ledger *service.LoyaltyLedger,
	coupons *service.CouponEngine,
	payments *service.PaymentConfirmationProcessor,
) *Handler {
	return &Handler{
		orders:   orders,
		kitchen:  kitchen,
		ledger:   ledger,
		coupons:  coupons,
		payments: payments,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhooks/payment", h.paymentWebhook)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/menu/:id", h.getMenuItem)

		v1.POST("/checkout", h.startCheckout)
		v1.POST("/orders", h.placeOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/cancel", h.cancelOrder)

		v1.GET("/kitchen/board", h.kitchenBoard)
		v1.PATCH("/kitchen/tasks/:id/status", h.updateTaskStatus)
		v1.PATCH("/kitchen/tasks/:id/notes", h.updateTaskNotes)

		v1.GET("/loyalty/account", h.loyaltyAccount)

		v1.GET("/coupons", h.listCoupons)
		v1.GET("/coupons/mine", h.myCoupons)
		v1.POST("/coupons/:id/purchase", h.purchaseCoupon)

		v1.POST("/admin/coupons", h.createCoupon)
		v1.DELETE("/admin/coupons/:id", h.deleteCoupon)
	}
}

// identity extracts the authenticated caller supplied by the auth
// collaborator. Auth itself happens upstream; this service only consumes the
// resulting headers.
func identity(c *gin.Context) (string, models.Role) {
	userID := c.GetHeader("X-User-ID")
	role := models.Role(strings.ToLower(c.GetHeader("X-User-Role")))
	if role == "" {
		role = models.RoleStudent
	}
	return userID, role
}

// statusFor maps domain errors onto HTTP status codes: data-format and
// validation errors are 400, not-found 404, forbidden 403, business-rule
// conflicts 409, anything else 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrMalformedPayload),
		errors.Is(err, models.ErrMissingMetadata),
		errors.Is(err, models.ErrInvalidStatus),
		errors.Is(err, models.ErrEmptyOrder),
		errors.Is(err, models.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrOrderNotFound),
		errors.Is(err, models.ErrTaskNotFound),
		errors.Is(err, models.ErrPaymentNotFound),
		errors.Is(err, models.ErrCouponNotFound),
		errors.Is(err, models.ErrUserCouponNotFound),
		errors.Is(err, models.ErrMenuItemNotFound),
		errors.Is(err, models.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrInsufficientPoints),
		errors.Is(err, models.ErrCouponInactive),
		errors.Is(err, models.ErrCouponExpired),
		errors.Is(err, models.ErrCouponAlreadyUsed),
		errors.Is(err, models.ErrOrderCancelled),
		errors.Is(err, models.ErrMenuItemUnavailable):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// paymentWebhook handles the provider's payment-completed webhook
func (h *Handler) paymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	result, err := h.payments.Process(c.Request.Context(), payload)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// getMenuItem serves a menu item's current price and availability
func (h *Handler) getMenuItem(c *gin.Context) {
	item, err := h.orders.GetMenuItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// startCheckout creates a Pending payment for the caller's cart total
func (h *Handler) startCheckout(c *gin.Context) {
	userID, _ := identity(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}

	var req struct {
		Amount int64 `json:"amount" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	payment, err := h.payments.StartCheckout(c.Request.Context(), userID, req.Amount)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

// placeOrder handles direct (non-payment-gated) order placement
func (h *Handler) placeOrder(c *gin.Context) {
	userID, _ := identity(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}

	var req struct {
		Items []models.CartItem `json:"items" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	order, err := h.orders.PlaceOrder(c.Request.Context(), userID, req.Items)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// listOrders handles listing the caller's orders
func (h *Handler) listOrders(c *gin.Context) {
	userID, _ := identity(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}

	orders, err := h.orders.ListUserOrders(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	order, items, task, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"items": items,
		"task":  task,
	})
}

// cancelOrder handles order cancellation by the owner or a manager
func (h *Handler) cancelOrder(c *gin.Context) {
	userID, role := identity(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}

	cancelled, err := h.orders.Cancel(c.Request.Context(), c.Param("id"), userID, role)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
}

// kitchenBoard serves the kitchen display board from the Redis cache,
// falling back to the database when the cache is unavailable or empty.
func (h *Handler) kitchenBoard(c *gin.Context) {
	entries, source, err := h.kitchen.Board(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"board": entries, "source": source})
}

// updateTaskStatus handles kitchen task status transitions
func (h *Handler) updateTaskStatus(c *gin.Context) {
	workerID, _ := identity(c)

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	task, err := h.kitchen.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, workerID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// updateTaskNotes handles kitchen task notes updates
func (h *Handler) updateTaskNotes(c *gin.Context) {
	var req struct {
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	task, err := h.kitchen.UpdateNotes(c.Request.Context(), c.Param("id"), req.Notes)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// loyaltyAccount serves the caller's balance and ledger history
func (h *Handler) loyaltyAccount(c *gin.Context) {
	userID, _ := identity(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}

	account, txs, err := h.ledger.Account(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account":      account,
		"transactions": txs,
	})
}

// listCoupons serves the coupon catalog
func (h *Handler) listCoupons(c *gin.Context) {
	coupons, err := h.coupons.ListCoupons(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coupons": coupons})
}

// myCoupons serves the caller's purchased coupons
func (h *Handler) myCoupons(c *gin.Context) {
	userID, _ := identity(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}

	coupons, err := h.coupons.UserCoupons(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coupons": coupons})
}

// purchaseCoupon handles buying a coupon with loyalty points
func (h *Handler) purchaseCoupon(c *gin.Context) {
	userID, _ := identity(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}

	result, err := h.coupons.Purchase(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		if result != nil {
			// Business-rule rejection with a UI-facing message.
			c.JSON(statusFor(err), result)
			return
		}
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// createCoupon handles admin coupon creation
func (h *Handler) createCoupon(c *gin.Context) {
	_, role := identity(c)
	if role != models.RoleAdmin && role != models.RoleManager {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}

	var coupon models.Coupon
	if err := c.ShouldBindJSON(&coupon); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.coupons.CreateCoupon(c.Request.Context(), &coupon); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, coupon)
}

// deleteCoupon handles admin coupon deletion with holder refunds
func (h *Handler) deleteCoupon(c *gin.Context) {
	_, role := identity(c)
	if role != models.RoleAdmin && role != models.RoleManager {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}

	refunded, err := h.coupons.DeleteAndRefund(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refunded": refunded})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
