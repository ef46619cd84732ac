package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/isolexIO/chainlink-pos-sub003/internal/app"
	"github.com/isolexIO/chainlink-pos-sub003/internal/auth"
	"github.com/isolexIO/chainlink-pos-sub003/internal/handler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Setup(a *app.App) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "chainlink-pos-payouts",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API版本组
	v1 := r.Group("/api/v1")
	{
		// Stripe 回调使用签名校验，不走 JWT
		webhookHandler := handler.NewWebhookHandler(a.Webhook, a.Processors)
		v1.POST("/webhooks/stripe", webhookHandler.StripeWebhook)

		secured := v1.Group("")
		secured.Use(authMiddleware(a.Tokens))

		commissionHandler := handler.NewCommissionHandler(a.Commission)
		secured.POST("/commissions/accrue", commissionHandler.AccrueCommissions)

		payoutHandler := handler.NewPayoutHandler(a.Payout, a.Dispatch, a.Scheduler, a.Policy, a.Now)
		payouts := secured.Group("/payouts")
		{
			payouts.POST("/aggregate", payoutHandler.AggregatePayouts)
			payouts.POST("/preview", payoutHandler.PreviewPayout)
			payouts.POST("/process", payoutHandler.ProcessPayout)
			payouts.POST("/schedule", payoutHandler.RunSchedule)
			payouts.POST("/cancel", payoutHandler.CancelPayout)
			payouts.POST("/trigger", payoutHandler.TriggerPayout)
			payouts.GET("/:id", payoutHandler.GetPayout)
		}

		secured.GET("/dealers/:id/payouts", payoutHandler.GetDealerPayouts)
	}

	return r
}

// authMiddleware 未配置 jwt_secret 时拒绝全部请求
func authMiddleware(verifier *auth.TokenVerifier) gin.HandlerFunc {
	if verifier == nil {
		return func(c *gin.Context) {
			handler.ErrorResponse(c, http.StatusUnauthorized, "authentication is not configured")
			c.Abort()
		}
	}
	return auth.Middleware(verifier)
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, Stripe-Signature")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
