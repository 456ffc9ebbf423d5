package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"webhook-gateway/internal/models"
	"webhook-gateway/internal/service"
	"webhook-gateway/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Header names the commerce platform signs deliveries with.
const (
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
)

// WebhookResponse is the acknowledgement body returned to the sender.
type WebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"order_id,omitempty"`
}

// Handler contains HTTP handlers
type Handler struct {
	webhookService *service.WebhookService
}

// NewHandler creates a new HTTP handler
func NewHandler(webhookService *service.WebhookService) *Handler {
	return &Handler{
		webhookService: webhookService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhook", h.receiveWebhook)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/orders/:id", h.getOrder)
		v1.GET("/shops/:shop_id/orders", h.getShopOrders)
	}
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

// receiveWebhook ingests one delivery from the commerce platform. The
// sender's delivery contract is satisfied by receipt: every disposition
// except authentication failure and a malformed payload acknowledges
// with 200.
func (h *Handler) receiveWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, WebhookResponse{
			Success: false,
			Message: "unreadable body",
		})
		return
	}

	result, err := h.webhookService.HandleDelivery(
		c.Request.Context(),
		body,
		c.GetHeader(HeaderSignature),
		c.GetHeader(HeaderTimestamp),
		c.ClientIP(),
	)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAuthentication):
			c.JSON(http.StatusUnauthorized, WebhookResponse{
				Success: false,
				Message: "invalid signature",
			})
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, WebhookResponse{
				Success: false,
				Message: "invalid payload",
			})
		default:
			// The claim or persist step failed, so the delivery was not
			// durably accepted; a non-2xx tells the sender to redeliver.
			c.JSON(http.StatusInternalServerError, WebhookResponse{
				Success: false,
				Message: "temporary failure",
			})
		}
		return
	}

	c.JSON(http.StatusOK, WebhookResponse{
		Success: true,
		Message: ackMessage(result),
		OrderID: result.OrderID,
	})
}

func ackMessage(result *service.DeliveryResult) string {
	switch {
	case result.Duplicate:
		return "already processed"
	case result.InFlight:
		return "already in flight"
	case result.Outcome == models.OutcomeFailure:
		return "accepted, processing deferred"
	default:
		return "accepted"
	}
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID := c.Param("id")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, err := h.webhookService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Order not found",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// getShopOrders handles listing order snapshots for a shop
func (h *Handler) getShopOrders(c *gin.Context) {
	shopID := c.Param("shop_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	orders, err := h.webhookService.GetShopOrders(c.Request.Context(), shopID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list orders",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"shop_id": shopID,
		"orders":  orders,
	})
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
