package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/isolexIO/chainlink-pos-sub003/internal/event"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logger"
	"github.com/isolexIO/chainlink-pos-sub003/internal/metrics"
)

// maxWebhookBody Stripe 事件体上限
const maxWebhookBody = 64 * 1024

type WebhookHandler struct {
	verifier   *event.Verifier
	processors *event.ProcessorManager
}

func NewWebhookHandler(verifier *event.Verifier, processors *event.ProcessorManager) *WebhookHandler {
	return &WebhookHandler{
		verifier:   verifier,
		processors: processors,
	}
}

// StripeWebhook 接收 Stripe 转账事件
func (h *WebhookHandler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "failed to read request body")
		return
	}

	evt, err := h.verifier.Construct(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("invalid").Inc()
		if errors.Is(err, event.ErrWebhookNotConfigured) {
			logger.Error("Received stripe webhook but no webhook secret is configured")
			ErrorResponse(c, http.StatusServiceUnavailable, "webhook not configured")
			return
		}
		logger.Warn("Rejected stripe webhook: %v", err)
		ErrorResponse(c, http.StatusBadRequest, "invalid signature")
		return
	}

	metrics.WebhookEvents.WithLabelValues(string(evt.Type)).Inc()
	handled, err := h.processors.ProcessEvent(c.Request.Context(), evt)
	if err != nil {
		// 非 2xx 让 Stripe 重投
		logger.Error("Failed to process stripe event %s (%s): %v", evt.ID, evt.Type, err)
		ErrorResponse(c, http.StatusInternalServerError, "failed to process event")
		return
	}
	if !handled {
		logger.Debug("Acknowledged unhandled stripe event %s (%s)", evt.ID, evt.Type)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
