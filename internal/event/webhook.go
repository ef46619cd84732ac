package event

import (
	"errors"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// ErrWebhookNotConfigured 未配置 webhook 签名密钥
var ErrWebhookNotConfigured = errors.New("stripe webhook secret is not configured")

// Verifier 校验 Stripe-Signature 并解析事件
type Verifier struct {
	secret string
}

// NewVerifier 创建签名校验器
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Construct 校验签名（默认 5 分钟时间窗）并解析事件
func (v *Verifier) Construct(payload []byte, signatureHeader string) (*stripe.Event, error) {
	if v.secret == "" {
		return nil, ErrWebhookNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}
